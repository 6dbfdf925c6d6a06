package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vogtb/go-gridcalc/packages/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewProductionWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridcalc.log")
	logger, err := New(config.Log{Level: "warn", File: path}, config.Production)
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))

	logger.Info("dropped")
	logger.Warn("kept", zap.String("sheet", "Sheet1"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "Sheet1", entry["sheet"])
}

func TestNewDevelopmentIsDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dev.log")
	logger, err := New(config.Log{Level: "error", File: path}, config.Development)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger.Debug("hello")
	_ = logger.Sync()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
	assert.False(t, json.Valid([]byte(strings.TrimSpace(string(data)))), "console encoder")
}

func TestNewErrors(t *testing.T) {
	_, err := New(config.Log{Level: "loud"}, config.Production)
	assert.ErrorContains(t, err, "invalid log level")

	_, err = New(config.Log{}, "staging")
	assert.ErrorContains(t, err, "invalid environment")
}

func TestSetVerbose(t *testing.T) {
	cfg := config.Log{Level: "info"}
	SetVerbose(&cfg)
	assert.Equal(t, "debug", cfg.Level)
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() { Nop().Info("nothing") })
}
