package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/campus-booking/internal/application"
)

var (
	errBadRequestBody = errors.New("the request body could not be parsed")
	errInvalidRoomID  = errors.New("a room id is required in the path")
	errInvalidEventID = errors.New("an event id is required in the path")
	errInvalidUserID  = errors.New("a user id is required in the path")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := http.StatusText(status)
	if err != nil {
		if msg := err.Error(); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps the service error taxonomy onto HTTP statuses.
// Every kind keeps a stable error_code so clients can branch without
// parsing messages.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	kind := application.ErrorKind(err)

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: kind,
			Message:   "the request failed validation",
			Errors:    vErr.FieldErrors,
		})
		return
	}

	var conflict *application.ConflictError
	if errors.As(err, &conflict) {
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: kind,
			Message:   "the requested interval overlaps an existing booking",
			Conflict: &conflictDetail{
				EventID: conflict.EventID,
				Start:   conflict.Start.UTC().Format(time.RFC3339),
				End:     conflict.End.UTC().Format(time.RFC3339),
			},
		})
		return
	}

	switch {
	case errors.Is(err, application.ErrUnknownActor),
		errors.Is(err, application.ErrUnknownRoom),
		errors.Is(err, application.ErrUnknownGroup):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{
			ErrorCode: kind,
			Message:   "a referenced resource does not exist",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{
			ErrorCode: kind,
			Message:   "the requested event does not exist",
		})
	case errors.Is(err, application.ErrNotAuthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: kind,
			Message:   "the actor is not allowed to book this room under the chosen group",
		})
	case errors.Is(err, application.ErrNotOrganizer):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: kind,
			Message:   "only the organizer may modify this event",
		})
	case errors.Is(err, application.ErrTimeout):
		r.writeJSON(ctx, w, http.StatusGatewayTimeout, errorResponse{
			ErrorCode: kind,
			Message:   "the operation did not complete before its deadline",
		})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unhandled service error", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{
			ErrorCode: kind,
			Message:   "an internal error occurred",
		})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Conflict  *conflictDetail   `json:"conflict,omitempty"`
}

type conflictDetail struct {
	EventID string `json:"event_id"`
	Start   string `json:"start"`
	End     string `json:"end"`
}
