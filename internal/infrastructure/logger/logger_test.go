package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Run("creates logger from config", func(t *testing.T) {
		log, err := New(&Config{Level: "debug", Format: "json", Output: "stdout"})
		require.NoError(t, err)
		require.NotNil(t, log)
		assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("level gates output", func(t *testing.T) {
		log, err := New(&Config{Level: "warn", Format: "console", Output: "stderr"})
		require.NoError(t, err)
		assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
		assert.True(t, log.Core().Enabled(zapcore.WarnLevel))
	})

	t.Run("logs to file", func(t *testing.T) {
		path := t.TempDir() + "/app.log"
		log, err := New(&Config{Level: "info", Format: "json", Output: path})
		require.NoError(t, err)

		log.Info("hello")
		require.NoError(t, Sync(log))

		assert.FileExists(t, path)
	})
}

func TestNewForEnvironment(t *testing.T) {
	t.Run("production", func(t *testing.T) {
		log, err := NewForEnvironment("production")
		require.NoError(t, err)
		assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("development", func(t *testing.T) {
		log, err := NewForEnvironment("development")
		require.NoError(t, err)
		require.NotNil(t, log)
	})
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"INFO":    zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), in)
	}
}
