package log

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type logCtxKey int

// New builds the process logger. format is "console" for the human readable
// development encoder or "json" for production output.
func New(format string, debug bool) (*zap.Logger, error) {
	var cfg zap.Config
	switch format {
	case "", "console":
		cfg = zap.NewDevelopmentConfig()
	case "json":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

func IntoContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, logCtxKey(0), logger)
}

func FromContext(ctx context.Context) *zap.Logger {
	val := ctx.Value(logCtxKey(0))
	if val != nil {
		return val.(*zap.Logger)
	}
	zap.L().Warn("No logger in context, passing default")
	return zap.L()
}

// Named returns ctx carrying a child logger with name appended and fields
// added.
func Named(ctx context.Context, name string, fields ...zap.Field) context.Context {
	return IntoContext(ctx, FromContext(ctx).Named(name).With(fields...))
}
