package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowThreshold = 200 * time.Millisecond

// GormLogger routes GORM's query log through zap. Queries slower than the
// threshold are logged at warn level; gorm.ErrRecordNotFound is not treated
// as an error since the repositories translate it themselves.
type GormLogger struct {
	log   *zap.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

var _ gormlogger.Interface = (*GormLogger)(nil)

// NewGormLogger builds a zap-backed GORM logger. A zero slowThreshold
// selects the default of 200ms.
func NewGormLogger(log *zap.Logger, level gormlogger.LogLevel, slowThreshold time.Duration) *GormLogger {
	if slowThreshold == 0 {
		slowThreshold = defaultSlowThreshold
	}
	return &GormLogger{
		log:   log.Named("gorm"),
		level: level,
		slow:  slowThreshold,
	}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		l.log.Sugar().Infof(msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		l.log.Sugar().Warnf(msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		l.log.Sugar().Errorf(msg, data...)
	}
}

// Trace logs one executed statement with its duration and row count.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}

	if err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound) {
		if l.level >= gormlogger.Error {
			l.log.Error("sql error", append(fields, zap.Error(err))...)
		}
		return
	}
	if elapsed >= l.slow {
		if l.level >= gormlogger.Warn {
			l.log.Warn("slow sql", append(fields, zap.Duration("threshold", l.slow))...)
		}
		return
	}
	if l.level >= gormlogger.Info {
		l.log.Debug("sql", fields...)
	}
}

var gormLevels = map[string]gormlogger.LogLevel{
	"silent": gormlogger.Silent,
	"error":  gormlogger.Error,
	"warn":   gormlogger.Warn,
	"info":   gormlogger.Info,
	"debug":  gormlogger.Info,
}

// MapGormLogLevel translates the textual log level from config into GORM's
// level scale, defaulting to warn for unknown values.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	if lv, ok := gormLevels[level]; ok {
		return lv
	}
	return gormlogger.Warn
}
