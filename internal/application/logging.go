package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/campus-booking/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	pairs = append(pairs, attrs...)
	return logging.FromContext(ctx, base).With(pairs...)
}

// ErrorKind maps sentinel and validation errors to a stable label used in
// both logs and HTTP error bodies.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrUnknownActor):
		return "UNKNOWN_ACTOR"
	case errors.Is(err, ErrUnknownRoom):
		return "UNKNOWN_ROOM"
	case errors.Is(err, ErrUnknownGroup):
		return "UNKNOWN_GROUP"
	case errors.Is(err, ErrNotAuthorized):
		return "NOT_AUTHORIZED"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrNotOrganizer):
		return "NOT_ORGANIZER"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrTimeout):
		return "TIMEOUT"
	case errors.Is(err, ErrChannelUnavailable):
		return "CHANNEL_UNAVAILABLE"
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "VALIDATION_ERROR"
	}

	return "INTERNAL_ERROR"
}
