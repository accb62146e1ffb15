package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordAndList(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	start := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	first := &Run{Mode: "Backup", Host: "10.0.0.2", Status: StatusCompleted, Lines: 4,
		StartedAt: start, FinishedAt: start.Add(3 * time.Second)}
	second := &Run{Mode: "Restore", Host: "10.0.0.2", Preserve: true, Status: StatusFailed,
		FailedTransfer: "pull documents", StartedAt: start.Add(time.Hour), FinishedAt: start.Add(time.Hour)}

	require.NoError(t, j.Record(ctx, first))
	require.NoError(t, j.Record(ctx, second))
	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEmpty(t, first.Machine)

	runs, err := j.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, second.ID, runs[0].ID, "newest first")
	assert.Equal(t, StatusFailed, runs[0].Status)
	assert.True(t, runs[0].Preserve)
	assert.Equal(t, "pull documents", runs[0].FailedTransfer)

	assert.Equal(t, "Backup", runs[1].Mode)
	assert.Equal(t, 4, runs[1].Lines)
	assert.Equal(t, 3*time.Second, runs[1].Duration())
	assert.True(t, start.Equal(runs[1].StartedAt))

	limited, err := j.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "share", "history.db")
	j, err := Open(path)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, j.Record(context.Background(), &Run{Mode: "Sync", Host: "h", Status: StatusCancelled, StartedAt: now, FinishedAt: now}))
	require.NoError(t, j.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	runs, err := reopened.List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, StatusCancelled, runs[0].Status)
}

func TestMachineID(t *testing.T) {
	assert.NotEmpty(t, MachineID())
}
