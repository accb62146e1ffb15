package utils

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMultiLogHandler_RespectsPerHandlerLevels(t *testing.T) {
	var info, debug bytes.Buffer
	h := NewMultiLogHandler(
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)
	logger := slog.New(h).With("run", "r1")

	logger.Debug("dry run", "pair", "documents")
	logger.Info("transfer done")

	assert.NotContains(t, info.String(), "dry run")
	assert.Contains(t, info.String(), "transfer done")
	assert.Contains(t, debug.String(), "dry run")
	assert.Contains(t, debug.String(), "run=r1")
}
