package log

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// WithLogger returns a context carrying logger. The trace middleware stores
// the per-request logger, already tagged with the request id, this way.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the request logger, or one built on slog.Default
// reporting as "unknown" when none was stored.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*Logger); ok && logger != nil {
		return logger
	}
	return &Logger{Logger: slog.Default(), component: "unknown"}
}
