package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// gormLogger sends gorm's logs to zap.
type gormLogger struct {
	log   *zap.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

func newGormLogger(log *zap.Logger, level gormlogger.LogLevel) gormlogger.Interface {
	return &gormLogger{log: log.Named("gorm"), level: level, slow: slowQueryThreshold}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.log.Info(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.log.Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.log.Error(fmt.Sprintf(msg, args...))
	}
}

// Trace logs failed and slow statements. Record-not-found and missing side
// tables are expected and not logged as errors.
func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound) && !IsMissingTable(err):
		sql, rows := fc()
		l.log.Error("query failed", zap.Error(err), zap.String("sql", sql), zap.Int64("rows", rows), zap.Duration("elapsed", elapsed))
	case elapsed > l.slow && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.log.Warn("slow query", zap.String("sql", sql), zap.Int64("rows", rows), zap.Duration("elapsed", elapsed))
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.log.Debug("query", zap.String("sql", sql), zap.Int64("rows", rows), zap.Duration("elapsed", elapsed))
	}
}
