package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"promptlib/internal/logger"

	"go.uber.org/zap"
	gormLogger "gorm.io/gorm/logger"
)

// GormZapLogger 把 GORM 日志写入 zap，并带上请求上下文中的 trace_id 与 user_id
type GormZapLogger struct {
	ZapLogger                 *zap.Logger
	LogLevel                  gormLogger.LogLevel
	SlowThreshold             time.Duration
	IgnoreRecordNotFoundError bool
}

// LogMode 设置日志级别
func (l *GormZapLogger) LogMode(level gormLogger.LogLevel) gormLogger.Interface {
	clone := *l
	clone.LogLevel = level
	return &clone
}

func (l *GormZapLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= gormLogger.Info {
		l.with(ctx).Info(fmt.Sprintf(msg, data...))
	}
}

func (l *GormZapLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= gormLogger.Warn {
		l.with(ctx).Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *GormZapLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.LogLevel >= gormLogger.Error {
		l.with(ctx).Error(fmt.Sprintf(msg, data...))
	}
}

// Trace 记录 SQL：错误总是输出，慢查询记 Warn，其余仅在 Info 级别下以 Debug 输出
func (l *GormZapLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= gormLogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	slow := l.SlowThreshold > 0 && elapsed > l.SlowThreshold
	failed := err != nil && !(l.IgnoreRecordNotFoundError && errors.Is(err, gormLogger.ErrRecordNotFound))
	if !failed && !slow && l.LogLevel < gormLogger.Info {
		return
	}

	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows", rows))
	}

	zl := l.with(ctx)
	switch {
	case failed && l.LogLevel >= gormLogger.Error:
		zl.Error("SQL 执行错误", append(fields, zap.Error(err))...)
	case slow && l.LogLevel >= gormLogger.Warn:
		zl.Warn("SQL 慢查询", append(fields, zap.Duration("threshold", l.SlowThreshold))...)
	case l.LogLevel >= gormLogger.Info:
		zl.Debug("SQL 执行", fields...)
	}
}

func (l *GormZapLogger) with(ctx context.Context) *zap.Logger {
	zl := l.ZapLogger
	if zl == nil {
		zl = logger.Named("gorm")
	}
	if ctx == nil {
		return zl
	}
	return zl.With(logger.ContextFields(ctx)...)
}
