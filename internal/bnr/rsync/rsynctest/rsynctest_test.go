package rsynctest

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/HtoHe/dotfiles/internal/bnr/config"
	"github.com/HtoHe/dotfiles/internal/bnr/rsync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Executor, config.DirPair, string) {
	t.Helper()
	base := t.TempDir()
	remote := filepath.Join(base, "remote")
	pair := config.DirPair{Name: "documents", Local: filepath.Join(base, "local"), Remote: "backup/documents"}

	exec := New()
	exec.AddHost("10.0.0.2", remote)
	return exec, pair, filepath.Join(remote, pair.Remote)
}

func push(pair config.DirPair, opts rsync.Options) rsync.Transfer {
	return rsync.Transfer{Direction: rsync.Push, Pair: pair, Host: "10.0.0.2", Flags: rsync.BuildFlags(opts)}
}

func TestExecutor_PushMirrorsAndDeletes(t *testing.T) {
	exec, pair, remoteDir := setup(t)
	require.NoError(t, WriteTree(pair.Local, map[string]string{"a.txt": "a", "src/.git/HEAD": "ref", "sub/b.txt": "b"}))
	require.NoError(t, WriteTree(remoteDir, map[string]string{"stale.txt": "old"}))

	var out bytes.Buffer
	res, err := exec.Run(context.Background(), push(pair, rsync.Options{}), &out)
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Contains(t, out.String(), "deleting stale.txt")

	tree, err := Tree(remoteDir)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a.txt": "a", "sub/b.txt": "b"}, tree)
}

func TestExecutor_PreserveKeepsDestinationOnlyFiles(t *testing.T) {
	exec, pair, remoteDir := setup(t)
	require.NoError(t, WriteTree(pair.Local, map[string]string{"a.txt": "a"}))
	require.NoError(t, WriteTree(remoteDir, map[string]string{"only-remote.txt": "r"}))

	res, err := exec.Run(context.Background(), push(pair, rsync.Options{Preserve: true}), io.Discard)
	require.NoError(t, err)
	assert.True(t, res.OK())

	tree, err := Tree(remoteDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "only-remote.txt"}, Names(tree))
}

func TestExecutor_DryRunChangesNothing(t *testing.T) {
	exec, pair, remoteDir := setup(t)
	require.NoError(t, WriteTree(pair.Local, map[string]string{"a.txt": "a"}))

	tr := push(pair, rsync.Options{})
	tr.DryRun = true
	res, err := exec.Run(context.Background(), tr, io.Discard)
	require.NoError(t, err)
	assert.Contains(t, res.Lines, "a.txt")

	tree, err := Tree(remoteDir)
	require.NoError(t, err)
	assert.Empty(t, tree)
}

func TestExecutor_UpdateKeepsNewerReceiver(t *testing.T) {
	exec, pair, remoteDir := setup(t)
	require.NoError(t, WriteTree(pair.Local, map[string]string{"a.txt": "old local"}))
	require.NoError(t, WriteTree(remoteDir, map[string]string{"a.txt": "newer remote"}))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(pair.Local, "a.txt"), past, past))

	_, err := exec.Run(context.Background(), push(pair, rsync.Options{Preserve: true}), io.Discard)
	require.NoError(t, err)

	tree, err := Tree(remoteDir)
	require.NoError(t, err)
	assert.Equal(t, "newer remote", tree["a.txt"])
}

func TestExecutor_Failures(t *testing.T) {
	exec, pair, _ := setup(t)

	res, err := exec.Run(context.Background(), push(pair, rsync.Options{}), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, rsync.ExitPartial, res.ExitCode, "missing source")
	assert.True(t, res.SourceMissing())

	require.NoError(t, os.MkdirAll(pair.Local, 0o755))
	exec.FailOn(rsync.Push, pair.Name, 12)
	res, err = exec.Run(context.Background(), push(pair, rsync.Options{}), io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 12, res.ExitCode)

	unreachable := push(pair, rsync.Options{})
	unreachable.Host = "nowhere"
	res, err = exec.Run(context.Background(), unreachable, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 255, res.ExitCode)

	assert.Len(t, exec.Calls(), 3)
}

func TestExecutor_FileTransfer(t *testing.T) {
	exec, _, _ := setup(t)
	base := t.TempDir()
	logPair := config.DirPair{Name: "log", Local: filepath.Join(base, "bnr.log"), Remote: "bnr.log"}

	pull := rsync.Transfer{Direction: rsync.Pull, Pair: logPair, Host: "10.0.0.2", Flags: rsync.LogPullFlags, File: true}
	res, err := exec.Run(context.Background(), pull, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, rsync.ExitPartial, res.ExitCode)

	require.NoError(t, os.WriteFile(logPair.Local, []byte("Backup at ...\n"), 0o644))
	pushLog := rsync.Transfer{Direction: rsync.Push, Pair: logPair, Host: "10.0.0.2", Flags: rsync.LogPushFlags, File: true}
	res, err = exec.Run(context.Background(), pushLog, io.Discard)
	require.NoError(t, err)
	assert.True(t, res.OK())
}

func TestExecutor_FileTransferFailures(t *testing.T) {
	exec, _, remoteDir := setup(t)
	home := filepath.Dir(filepath.Dir(remoteDir))
	base := t.TempDir()
	logPair := config.DirPair{Name: "log", Local: filepath.Join(base, "bnr.log"), Remote: "bnr.log"}
	require.NoError(t, os.MkdirAll(home, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, "bnr.log"), []byte("x\n"), 0o644))
	pull := rsync.Transfer{Direction: rsync.Pull, Pair: logPair, Host: "10.0.0.2", Flags: rsync.LogPullFlags, File: true}

	exec.DenyOn(rsync.Pull, "log")
	res, err := exec.Run(context.Background(), pull, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, rsync.ExitPartial, res.ExitCode)
	assert.False(t, res.SourceMissing(), "unreadable is not missing")
	assert.NoFileExists(t, logPair.Local)

	exec.FailOn(rsync.Pull, "log", 12)
	res, err = exec.Run(context.Background(), pull, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, 12, res.ExitCode)

	dry := pull
	dry.DryRun = true
	res, err = exec.Run(context.Background(), dry, io.Discard)
	require.NoError(t, err)
	assert.True(t, res.OK(), "dry runs are never failed")
}
