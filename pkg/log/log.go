package log

import (
	"context"
	"log/slog"
	"os"
)

var (
	level         slog.LevelVar
	defaultLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     &level,
	}))
)

func init() {
	level.Set(slog.LevelInfo)
}

type ctxKey struct{}

// Ctx returns the logger stored in ctx, or the package default.
func Ctx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return defaultLogger
}

// With returns a copy of ctx carrying logger.
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// WithAttrs adds attrs to whatever logger ctx already carries.
func WithAttrs(ctx context.Context, attrs ...any) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	return With(ctx, Ctx(ctx).With(attrs...))
}

func SetDefaultLogLevel(l slog.Level) {
	level.Set(l)
}
