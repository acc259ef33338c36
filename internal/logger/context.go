package logger

import (
	"context"
	"log/slog"
)

// contextKey is private so no other package can collide with it.
type contextKey struct{}

// WithContext returns a copy of ctx carrying logger.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx.
// It never returns nil: without a logger in ctx it falls back to slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithAttrs stores a child of the context logger enriched with args.
// Used to scope every log line of a unit of work (a replayed request, a sync cycle).
func WithAttrs(ctx context.Context, args ...any) context.Context {
	return WithContext(ctx, FromContext(ctx).With(args...))
}
