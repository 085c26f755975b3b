package templates

import (
	"context"
	"time"

	"github.com/facebookincubator/go-belt/tool/logger"
	gormlogger "gorm.io/gorm/logger"
)

// gormLogger forwards gorm's messages to the logger from the context.
type gormLogger struct{}

var _ gormlogger.Interface = gormLogger{}

func (l gormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return l
}

func (gormLogger) Info(ctx context.Context, format string, args ...any) {
	logger.Infof(ctx, format, args...)
}

func (gormLogger) Warn(ctx context.Context, format string, args ...any) {
	logger.Warnf(ctx, format, args...)
}

func (gormLogger) Error(ctx context.Context, format string, args ...any) {
	logger.Errorf(ctx, format, args...)
}

func (gormLogger) Trace(
	ctx context.Context,
	begin time.Time,
	fc func() (sql string, rowsAffected int64),
	err error,
) {
	if logger.FromCtx(ctx).Level() < logger.LevelTrace {
		return
	}
	sql, rows := fc()
	logger.Tracef(ctx, "%s [rows:%d, %v]: %v", sql, rows, time.Since(begin), err)
}
