package content

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lamgaraproperties/lamgara-web/internal/log"
)

// gormLogger routes gorm's statement logging into the service logger.
type gormLogger struct {
	l     log.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

func newGormLogger(l log.Logger, slow time.Duration) gormlogger.Interface {
	return gormLogger{l: l.With("component", "gorm"), level: gormlogger.Warn, slow: slow}
}

func (g gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	g.level = level
	return g
}

func (g gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if g.level >= gormlogger.Info {
		g.l.Info(ctx, fmt.Sprintf(msg, data...))
	}
}

func (g gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if g.level >= gormlogger.Warn {
		g.l.Warn(ctx, fmt.Sprintf(msg, data...))
	}
}

func (g gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if g.level >= gormlogger.Error {
		g.l.Error(ctx, fmt.Errorf(msg, data...), "gorm error")
	}
}

func (g gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= gormlogger.Error:
		sql, rows := fc()
		g.l.Error(ctx, err, "sql statement failed", "db.statement", sql, "db.rows", rows, "duration", elapsed.Seconds())
	case g.slow > 0 && elapsed > g.slow && g.level >= gormlogger.Warn:
		sql, rows := fc()
		g.l.Warn(ctx, "slow sql statement", "db.statement", sql, "db.rows", rows, "duration", elapsed.Seconds())
	case g.level >= gormlogger.Info:
		sql, rows := fc()
		g.l.Debug(ctx, "sql statement", "db.statement", sql, "db.rows", rows, "duration", elapsed.Seconds())
	}
}
