package storage

import (
	"context"
	"errors"
	"time"

	"netinspect/internal/ctxkeys"
	"netinspect/internal/logger"

	gormlogger "gorm.io/gorm/logger"
)

// slowQueryThreshold 超过该耗时的语句按慢查询告警
const slowQueryThreshold = 200 * time.Millisecond

// GormLogger 将 GORM 日志转发到 logger.Logger，并附带当前事务 ID
type GormLogger struct {
	log   logger.Logger
	level gormlogger.LogLevel
}

// NewGormLogger 创建 GORM 日志适配器，默认只输出警告以上
func NewGormLogger(l logger.Logger) *GormLogger {
	return &GormLogger{log: l, level: gormlogger.Warn}
}

// LogMode 返回指定级别的副本
func (g *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if g.level >= gormlogger.Info {
		g.log.Info(msg, g.fields(ctx, "data", data)...)
	}
}

func (g *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if g.level >= gormlogger.Warn {
		g.log.Warn(msg, g.fields(ctx, "data", data)...)
	}
}

func (g *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if g.level >= gormlogger.Error {
		g.log.Error(msg, g.fields(ctx, "data", data)...)
	}
}

// Trace 记录单条 SQL 的耗时与结果
func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	kv := g.fields(ctx, "sql", sql, "rows", rows, "elapsedMs", elapsed.Milliseconds())

	switch {
	case err != nil && !isRecordNotFound(err) && g.level >= gormlogger.Error:
		g.log.Err(err, "SQL执行失败", kv...)
	case elapsed > slowQueryThreshold && g.level >= gormlogger.Warn:
		g.log.Warn("慢SQL", kv...)
	case g.level >= gormlogger.Info:
		g.log.Debug("SQL", kv...)
	}
}

func (g *GormLogger) fields(ctx context.Context, kv ...any) []any {
	if id := ctxkeys.TraceID(ctx); id != "" {
		return append([]any{"txId", id}, kv...)
	}
	return kv
}

func isRecordNotFound(err error) bool {
	return errors.Is(err, gormlogger.ErrRecordNotFound)
}
