package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestKVLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := NewKVLogger(zap.New(core))

	l.Info("Shift opened", "shift_id", int64(4), "driver_id", int64(7))
	l.Error("Send failed", "user_id", "ou_1")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Shift opened", entries[0].Message)
	assert.Equal(t, int64(4), entries[0].ContextMap()["shift_id"])
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	assert.Equal(t, "ou_1", entries[1].ContextMap()["user_id"])
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "bot.log")
	logger, err := NewLogger(LoggerConfig{Level: "bogus", OutputPath: path, Format: "json"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
	assert.FileExists(t, path)
}

func TestOpenSink(t *testing.T) {
	for _, path := range []string{"", "stdout", "stderr"} {
		sink, err := openSink(path)
		require.NoError(t, err, path)
		assert.NotNil(t, sink)
	}

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	_, err := openSink(filepath.Join(blocker, "bot.log"))
	assert.Error(t, err, "a file cannot hold the log directory")
}
