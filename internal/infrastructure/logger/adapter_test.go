package logger

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerAdapter_KeyValueFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))

	l.WithField("task", "t-1").Info("Task started", "goal", "search")
	l.WithFields(map[string]any{"turn": 2}).Warn("Retrying")

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, "Task started", entries[0].Message)
	assert.Equal(t, "t-1", entries[0].ContextMap()["task"])
	assert.Equal(t, "search", entries[0].ContextMap()["goal"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.EqualValues(t, 2, entries[1].ContextMap()["turn"])
}

func TestNewLoggerAdapter_WritesTaskFile(t *testing.T) {
	dir := t.TempDir()

	l, err := NewLoggerAdapter("find cheap flights!", Options{Level: "debug", Dir: dir})
	require.NoError(t, err)

	l.Info("hello", "k", "v")
	require.NoError(t, l.Close())

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Contains(t, files[0].Name(), "find_cheap_flights")

	data, err := os.ReadFile(dir + "/" + files[0].Name())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "task", sanitize("!!!"))
	assert.Equal(t, "a_b-c", sanitize("a b-c"))
	assert.Len(t, sanitize(strings.Repeat("x", 100)), 60)
}
