package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormLogger sends GORM's output to zerolog. Failed queries log at error,
// queries slower than the threshold at warn and the rest at trace.
// Missing rows are not errors.
type GormLogger struct {
	slow  time.Duration
	level logger.LogLevel
}

// NewGormLogger returns a logger at warn level.
func NewGormLogger(slow time.Duration) *GormLogger {
	return &GormLogger{slow: slow, level: logger.Warn}
}

func (g *GormLogger) LogMode(l logger.LogLevel) logger.Interface {
	cp := *g
	cp.level = l
	return &cp
}

func (g *GormLogger) Info(ctx context.Context, msg string, args ...any) {
	g.print(ctx, logger.Info, zerolog.InfoLevel, msg, args)
}

func (g *GormLogger) Warn(ctx context.Context, msg string, args ...any) {
	g.print(ctx, logger.Warn, zerolog.WarnLevel, msg, args)
}

func (g *GormLogger) Error(ctx context.Context, msg string, args ...any) {
	g.print(ctx, logger.Error, zerolog.ErrorLevel, msg, args)
}

func (g *GormLogger) print(ctx context.Context, need logger.LogLevel, lvl zerolog.Level, msg string, args []any) {
	if g.level < need {
		return
	}
	ctxLogger(ctx).WithLevel(lvl).Msg(fmt.Sprintf(msg, args...))
}

func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	var ev *zerolog.Event
	l := ctxLogger(ctx)
	switch {
	case err != nil && g.level >= logger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		ev = l.Error().Err(err)
	case g.slow > 0 && elapsed > g.slow && g.level >= logger.Warn:
		ev = l.Warn().Dur("threshold", g.slow)
	case g.level >= logger.Info:
		ev = l.Trace()
	default:
		return
	}
	sql, rows := fc()
	ev.Str("sql", sql).Int64("rows", rows).Dur("elapsed", elapsed).Msg("sql")
}

// ctxLogger prefers a logger carried on ctx.
func ctxLogger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
