// Package logging carries request-scoped slog loggers through contexts so
// handlers and services can log with the attributes the middleware added.
package logging

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// WithLogger returns a derived context carrying the provided logger. A nil
// logger leaves the context untouched.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, logger)
}

// Attached reports the logger carried by the context, if any.
func Attached(ctx context.Context) (*slog.Logger, bool) {
	if ctx == nil {
		return nil, false
	}
	logger, ok := ctx.Value(contextKey{}).(*slog.Logger)
	return logger, ok && logger != nil
}

// FromContext resolves the logger for an operation: the one carried by the
// context, else the fallback, else slog.Default. Never nil.
func FromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := Attached(ctx); ok {
		return logger
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}
