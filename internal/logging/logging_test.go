package logging_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/torosent/dialogfire/internal/config"
	"github.com/torosent/dialogfire/internal/logging"
)

func TestNewWritesConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	logger, closeFn, err := logging.New(config.LogConfig{Level: "info", Format: "console", File: "load_test.log", MaxSizeMB: 1}, dir, &console)
	require.NoError(t, err)

	logger.Named("concurrent_dialogs").Info("dialog finished", zap.Int("dialog", 3))
	logger.Debug("hidden")
	require.NoError(t, closeFn())

	assert.Contains(t, console.String(), "dialog finished")
	assert.Contains(t, console.String(), "concurrent_dialogs")
	assert.NotContains(t, console.String(), "hidden")

	data, err := os.ReadFile(filepath.Join(dir, "load_test.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"dialog finished"`)
	assert.Contains(t, string(data), `"dialog":3`)
}

func TestNewJSONConsole(t *testing.T) {
	var console bytes.Buffer
	logger, closeFn, err := logging.New(config.LogConfig{Level: "debug", Format: "json"}, "", &console)
	require.NoError(t, err)

	logger.Debug("visible")
	require.NoError(t, closeFn())
	assert.Contains(t, console.String(), `"msg":"visible"`)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, _, err := logging.New(config.LogConfig{Level: "verbose"}, "", &bytes.Buffer{})
	assert.Error(t, err)
}
