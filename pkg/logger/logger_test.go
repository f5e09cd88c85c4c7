package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	SetOutput(zap.New(core))
	t.Cleanup(func() {
		SetOutput(nil)
		SetLevel(INFO)
	})
	return logs
}

func TestInfoCF_AddsComponentAndFields(t *testing.T) {
	logs := observe(t)

	InfoCF("relay", "Record forwarded", map[string]any{
		"cursor": "abc",
		"lang":   "tr",
	})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Record forwarded", entry.Message)
	ctx := entry.ContextMap()
	assert.Equal(t, "relay", ctx["component"])
	assert.Equal(t, "abc", ctx["cursor"])
	assert.Equal(t, "tr", ctx["lang"])
}

func TestSetLevel_FiltersBelowThreshold(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetOutput(zap.New(core, zap.IncreaseLevel(level)))
	t.Cleanup(func() {
		SetOutput(nil)
		SetLevel(INFO)
	})

	SetLevel(WARN)
	InfoC("relay", "dropped")
	WarnC("relay", "kept")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "kept", logs.All()[0].Message)
	assert.Equal(t, WARN, GetLevel())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("warn"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel("info"))
	assert.Equal(t, INFO, ParseLevel("nonsense"))
}
