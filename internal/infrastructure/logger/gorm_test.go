package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormlogger.LogLevel, slow time.Duration) (*GormLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return NewGormLogger(zap.New(core), level, slow), logs
}

func TestGormLogger_Trace(t *testing.T) {
	ctx := context.Background()
	query := func() (string, int64) { return "SELECT 1", 1 }

	t.Run("logs query errors", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Error, 0)

		gl.Trace(ctx, time.Now(), query, errors.New("syntax error"))

		assert.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		assert.Equal(t, zap.ErrorLevel, entry.Level)
		assert.Equal(t, "sql error", entry.Message)
	})

	t.Run("suppresses record not found", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Error, 0)

		gl.Trace(ctx, time.Now(), query, gormlogger.ErrRecordNotFound)

		assert.Equal(t, 0, logs.Len())
	})

	t.Run("warns on slow queries", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Warn, time.Nanosecond)

		gl.Trace(ctx, time.Now().Add(-time.Second), query, nil)

		assert.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		assert.Equal(t, zap.WarnLevel, entry.Level)
		assert.Equal(t, "slow sql", entry.Message)
	})

	t.Run("zero threshold selects the default", func(t *testing.T) {
		gl, _ := newObservedGormLogger(gormlogger.Warn, 0)
		assert.Equal(t, 200*time.Millisecond, gl.slow)
	})

	t.Run("silent level logs nothing", func(t *testing.T) {
		gl, logs := newObservedGormLogger(gormlogger.Silent, 0)

		gl.Trace(ctx, time.Now(), query, errors.New("boom"))

		assert.Equal(t, 0, logs.Len())
	})
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Error, MapGormLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("warn"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("info"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel("anything"))
}
