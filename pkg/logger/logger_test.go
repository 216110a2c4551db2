package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ilenhanako/CoffeeWAutomation-TikTokTechJam2025/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestL_BeforeInitIsNop(t *testing.T) {
	ResetForTest()
	assert.NotNil(t, L())
	Info("no panic before init %d", 1)
}

func TestInit_ConsoleAndFile(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	var buf bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "run.log")
	Init(config.LoggerConfig{Level: "debug", Format: "json", File: logFile, MaxSize: 1}, zapcore.AddSync(&buf))

	Named("locator").Debug("resolved")
	Warn("attempt %d failed", 2)
	Sync()

	out := buf.String()
	assert.Contains(t, out, `"logger":"stepwise.locator"`)
	assert.Contains(t, out, "attempt 2 failed")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "resolved")
}

func TestInit_LevelFilters(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	var buf bytes.Buffer
	Init(config.LoggerConfig{Level: "warn", Format: "json"}, zapcore.AddSync(&buf))

	Info("hidden")
	Error("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestInit_OnlyOnce(t *testing.T) {
	ResetForTest()
	defer ResetForTest()

	var first, second bytes.Buffer
	Init(config.LoggerConfig{Level: "info", Format: "json"}, zapcore.AddSync(&first))
	Init(config.LoggerConfig{Level: "info", Format: "json"}, zapcore.AddSync(&second))

	Info("hello")
	assert.Contains(t, first.String(), "hello")
	assert.Empty(t, second.String())
}
