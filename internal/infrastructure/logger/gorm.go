package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

const maxLoggedSQL = 2048

// SQLLogConfig controls what the GORM bridge emits
type SQLLogConfig struct {
	Level gormlogger.LogLevel
	// SlowThreshold marks statements slower than this as slow; zero disables it.
	SlowThreshold time.Duration
	// LogNotFound logs gorm.ErrRecordNotFound as an error. Lookups that miss
	// are ordinary in the repositories, so this is off by default.
	LogNotFound bool
}

// SQLLogger routes GORM's statement log through zap with request correlation
type SQLLogger struct {
	base *zap.Logger
	cfg  SQLLogConfig
}

// NewSQLLogger creates a GORM logger on a "gorm" child of zapLogger
func NewSQLLogger(zapLogger *zap.Logger, cfg SQLLogConfig) *SQLLogger {
	return &SQLLogger{base: zapLogger.Named("gorm"), cfg: cfg}
}

// LogMode returns a copy at the given level
func (l *SQLLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.cfg.Level = level
	return &cp
}

func (l *SQLLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *SQLLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *SQLLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *SQLLogger) printf(ctx context.Context, min gormlogger.LogLevel, lvl zapcore.Level, msg string, data []any) {
	if l.cfg.Level < min {
		return
	}
	Enrich(ctx, l.base).Sugar().Logf(lvl, msg, data...)
}

// Trace logs one executed statement: failures at error, slow statements at
// warn, and the rest at debug when the level is Info.
func (l *SQLLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	level := l.cfg.Level
	if level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	log := Enrich(ctx, l.base)

	if err != nil {
		if level < gormlogger.Error || (!l.cfg.LogNotFound && errors.Is(err, gormlogger.ErrRecordNotFound)) {
			return
		}
		log.Error("SQL error", append(statementFields(elapsed, fc), zap.Error(err))...)
		return
	}
	if l.cfg.SlowThreshold > 0 && elapsed > l.cfg.SlowThreshold && level >= gormlogger.Warn {
		log.Warn("Slow SQL", append(statementFields(elapsed, fc), zap.Duration("threshold", l.cfg.SlowThreshold))...)
		return
	}
	if level >= gormlogger.Info {
		log.Debug("SQL query", statementFields(elapsed, fc)...)
	}
}

func statementFields(elapsed time.Duration, fc func() (string, int64)) []zap.Field {
	stmt, rows := fc()
	if len(stmt) > maxLoggedSQL {
		stmt = stmt[:maxLoggedSQL] + "..."
	}
	return []zap.Field{zap.Duration("elapsed", elapsed), zap.Int64("rows", rows), zap.String("sql", stmt)}
}

var sqlLevels = map[string]gormlogger.LogLevel{
	"silent": gormlogger.Silent,
	"error":  gormlogger.Error,
	"warn":   gormlogger.Warn,
	"info":   gormlogger.Info,
	"debug":  gormlogger.Info,
}

// ParseSQLLevel maps a config level name to a GORM level; unknown names mean warn
func ParseSQLLevel(name string) gormlogger.LogLevel {
	if level, ok := sqlLevels[name]; ok {
		return level
	}
	return gormlogger.Warn
}
