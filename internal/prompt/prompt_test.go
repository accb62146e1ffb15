package prompt

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsole_Key(t *testing.T) {
	tests := []struct {
		input string
		want  rune
	}{
		{"b\n", 'b'},
		{"R\r\n", 'R'},
		{"bb\n", 0},
		{"\n", 0},
		{"x", 'x'},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var out bytes.Buffer
			c := NewConsole(strings.NewReader(tt.input), &out)

			got, err := c.Key(context.Background(), "Backup or Restore? [b/r] ")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "Backup or Restore? [b/r] ", out.String())
		})
	}
}

func TestConsole_Line(t *testing.T) {
	c := NewConsole(strings.NewReader("10.0.0.2\r\n\nlast"), io.Discard)
	ctx := context.Background()

	for _, want := range []string{"10.0.0.2", "", "last"} {
		got, err := c.Line(ctx, "> ")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := c.Line(ctx, "> ")
	assert.ErrorIs(t, err, io.EOF)
}

func TestConsole_Cancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	c := NewConsole(r, io.Discard)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Line(ctx, "> ")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// the interrupted read still delivers its line to the next caller
	go func() { _, _ = io.WriteString(w, "y\n") }()
	got, err := c.Line(context.Background(), "> ")
	require.NoError(t, err)
	assert.Equal(t, "y", got)
}

func TestConsole_KeyReader(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(strings.NewReader(""), &out)
	c.readKey = func(context.Context) (rune, error) { return 'r', nil }

	got, err := c.Key(context.Background(), "? ")
	require.NoError(t, err)
	assert.Equal(t, 'r', got)
	assert.Equal(t, "? r\n", out.String())

	c.readKey = func(context.Context) (rune, error) { return 0, ErrInterrupted }
	_, err = c.Key(context.Background(), "? ")
	assert.True(t, errors.Is(err, ErrInterrupted))
}
