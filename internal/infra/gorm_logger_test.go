package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"promptlib/internal/logger"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	gormLogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormLogger.LogLevel) (*GormZapLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return &GormZapLogger{
		ZapLogger:                 zap.New(core),
		LogLevel:                  level,
		SlowThreshold:             50 * time.Millisecond,
		IgnoreRecordNotFoundError: true,
	}, logs
}

func TestGormZapLogger_Trace(t *testing.T) {
	l, logs := newObservedGormLogger(gormLogger.Warn)
	ctx := logger.WithTraceID(context.Background(), "trace-9")
	sql := func() (string, int64) { return "SELECT 1", 1 }

	l.Trace(ctx, time.Now(), sql, errors.New("boom"))
	l.Trace(ctx, time.Now(), sql, gormLogger.ErrRecordNotFound)
	l.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	l.Trace(ctx, time.Now(), sql, nil)

	assert.Equal(t, 1, logs.FilterMessage("SQL 执行错误").Len())
	assert.Equal(t, 1, logs.FilterMessage("SQL 慢查询").Len())
	assert.Zero(t, logs.FilterMessage("SQL 执行").Len())
	assert.Equal(t, "trace-9", logs.All()[0].ContextMap()["trace_id"])
}

func TestGormZapLogger_Silent(t *testing.T) {
	l, logs := newObservedGormLogger(gormLogger.Silent)
	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, errors.New("boom"))
	assert.Zero(t, logs.Len())

	loud := l.LogMode(gormLogger.Info)
	assert.NotSame(t, l, loud)
}

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, gormLogger.Silent, gormLogLevel("silent"))
	assert.Equal(t, gormLogger.Info, gormLogLevel("info"))
	assert.Equal(t, gormLogger.Warn, gormLogLevel(""))
}
