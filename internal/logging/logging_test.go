package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	// Given: a logging config pointing at a temp file, stderr disabled
	tmpDir := t.TempDir()
	cfg := Config{
		Level:         "info",
		FilePath:      filepath.Join(tmpDir, "docassist.log"),
		MaxSizeMB:     1,
		MaxFiles:      2,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)

	// When: logging a message and closing
	logger.Info("ingest complete", slog.Int("chunks", 3))
	cleanup()

	// Then: the log file contains the structured record
	data, err := os.ReadFile(cfg.FilePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"ingest complete"`)
	assert.Contains(t, string(data), `"chunks":3`)
}

func TestRotatingWriter_RotatesAtSizeLimit(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "r.log")

	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	// Force the size limit low enough to trigger rotation.
	w.maxSize = 64

	line := strings.Repeat("x", 40) + "\n"
	_, err = w.Write([]byte(line))
	require.NoError(t, err)
	_, err = w.Write([]byte(line))
	require.NoError(t, err)

	// Then: the previous file was rotated to .1
	_, err = os.Stat(path + ".1")
	assert.NoError(t, err)
}
