package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON_StandardizesErrorKey(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSON(&buf, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Warn("run failed", "error", errors.New("boom"), "run_id", "r1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["err"])
	assert.NotContains(t, entry, "error")
	assert.Equal(t, "r1", entry["run_id"])
}

func TestNewNop(t *testing.T) {
	assert.NotPanics(t, func() { NewNop().Error("ignored", "err", errors.New("x")) })
}

func TestNewPretty_PlainOutsideTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger := NewPretty(&buf, slog.LevelDebug)

	logger.Info("graph loaded", "graph_id", "g1", "error", errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "graph loaded")
	assert.Contains(t, out, "graph_id=g1")
	assert.Contains(t, out, "err=boom")
	assert.NotContains(t, out, "\x1b[", "no ANSI colors when the writer is not a terminal")
}
