package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/campus-booking/internal/application"
)

type eventService interface {
	UpdateEvent(ctx context.Context, params application.UpdateEventParams) (application.Event, error)
	CancelEvent(ctx context.Context, params application.CancelEventParams) (application.Event, error)
}

type EventHandler struct {
	service   eventService
	responder responder
	logger    *slog.Logger
}

func NewEventHandler(service eventService, logger *slog.Logger) *EventHandler {
	base := defaultLogger(logger)
	return &EventHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *EventHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "EventHandler", operation, attrs...)
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	var req updateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "event_id", eventID, "error_kind", "bad_request").
			ErrorContext(r.Context(), "failed to decode update request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	params, err := req.toParams(eventID)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "Update", "event_id", eventID, "requester_id", params.RequesterID)

	event, err := h.service.UpdateEvent(r.Context(), params)
	if err != nil {
		logger.ErrorContext(r.Context(), "event update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "event updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: toEventDTO(event)})
}

func (h *EventHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	eventID, ok := EventIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	var req cancelEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Cancel", "event_id", eventID, "error_kind", "bad_request").
			ErrorContext(r.Context(), "failed to decode cancel request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Cancel", "event_id", eventID, "requester_id", req.RequesterID)

	event, err := h.service.CancelEvent(r.Context(), application.CancelEventParams{
		EventID:     eventID,
		RequesterID: strings.TrimSpace(req.RequesterID),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "event cancel failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "event cancelled")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: toEventDTO(event)})
}

type updateEventRequest struct {
	RequesterID string  `json:"requester_id"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Start       *string `json:"start"`
	End         *string `json:"end"`
}

func (r updateEventRequest) toParams(eventID string) (application.UpdateEventParams, error) {
	params := application.UpdateEventParams{
		EventID:     eventID,
		RequesterID: strings.TrimSpace(r.RequesterID),
		Title:       r.Title,
		Description: r.Description,
	}
	if r.Start != nil {
		start, err := time.Parse(time.RFC3339, *r.Start)
		if err != nil {
			return application.UpdateEventParams{}, errors.New("start must be a UTC ISO-8601 instant")
		}
		params.Start = &start
	}
	if r.End != nil {
		end, err := time.Parse(time.RFC3339, *r.End)
		if err != nil {
			return application.UpdateEventParams{}, errors.New("end must be a UTC ISO-8601 instant")
		}
		params.End = &end
	}
	return params, nil
}

type cancelEventRequest struct {
	RequesterID string `json:"requester_id"`
}

type eventResponse struct {
	Event eventDTO `json:"event"`
}
