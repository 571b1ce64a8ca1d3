package logging

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestFanout(t *testing.T) {
	var console, pane bytes.Buffer
	path := filepath.Join(t.TempDir(), "run.log")

	logger, err := New(Options{Level: "info", Console: &console, File: path, Extra: []io.Writer{&pane}})
	require.NoError(t, err)

	logger.Debug("trial finished", slog.Int("diffs", 3))
	logger.Info("case finished", slog.String("label", "li $1, 0x8888"))
	require.NoError(t, logger.Close())

	assert.NotContains(t, console.String(), "trial finished")
	assert.Contains(t, console.String(), "case finished")
	assert.Contains(t, pane.String(), "case finished")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 2, "the file sink records debug messages too")

	var record map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &record))
	assert.Equal(t, "trial finished", record["msg"])
	assert.Equal(t, float64(3), record["diffs"])
}
