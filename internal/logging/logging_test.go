package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "api.log")

	logger, closeFn, err := NewFileLogger(path, "api", slog.LevelInfo)
	require.NoError(t, err)

	logger.Info("request handled", "path", "/api/v1/records")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "request handled", entry["msg"])
	assert.Equal(t, "api", entry["service"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestNewFileLoggerDropsBelowLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.log")

	logger, closeFn, err := NewFileLogger(path, "api", slog.LevelWarn)
	require.NoError(t, err)

	logger.Info("too quiet")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	if err == nil {
		assert.Empty(t, data)
	}
}

func TestEnableFileOutput(t *testing.T) {
	InitWithLevel(slog.LevelInfo)
	path := filepath.Join(t.TempDir(), "huelab.log")

	closeFn, err := EnableFileOutput(path, slog.LevelInfo)
	require.NoError(t, err)

	Info("server started", "port", "8080")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"server started"`)
	assert.Contains(t, string(data), `"port":"8080"`)
}
