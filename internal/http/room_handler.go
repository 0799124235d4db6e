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

type roomService interface {
	ListRooms(ctx context.Context) ([]application.Room, error)
}

type bookingService interface {
	Book(ctx context.Context, params application.BookParams) (application.BookingResult, error)
	ListRoomEvents(ctx context.Context, roomID string, from, until *time.Time, limit, offset int) ([]application.Event, error)
	CheckAvailability(ctx context.Context, roomID string, start, end time.Time) (application.Availability, error)
}

type RoomHandler struct {
	rooms     roomService
	bookings  bookingService
	responder responder
	logger    *slog.Logger
}

func NewRoomHandler(rooms roomService, bookings bookingService, logger *slog.Logger) *RoomHandler {
	base := defaultLogger(logger)
	return &RoomHandler{rooms: rooms, bookings: bookings, responder: newResponder(base), logger: base}
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "RoomHandler", operation, attrs...)
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.rooms == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	logger := h.log(r.Context(), "List")
	rooms, err := h.rooms.ListRooms(r.Context())
	if err != nil {
		logger.ErrorContext(r.Context(), "room list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(rooms)).InfoContext(r.Context(), "rooms listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomsResponse{Rooms: rooms})
}

func (h *RoomHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.bookings == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roomID, ok := RoomIDFromContext(r.Context())
	if !ok || strings.TrimSpace(roomID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
		return
	}

	from, err := optionalTimeQuery(r, "start")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	until, err := optionalTimeQuery(r, "end")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "ListEvents", "room_id", roomID)
	events, err := h.bookings.ListRoomEvents(r.Context(), roomID, from, until, 0, 0)
	if err != nil {
		logger.ErrorContext(r.Context(), "event list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(events)).InfoContext(r.Context(), "events listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listEventsResponse{Events: toEventDTOs(events)})
}

func (h *RoomHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.bookings == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roomID, ok := RoomIDFromContext(r.Context())
	if !ok || strings.TrimSpace(roomID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
		return
	}

	start, err := requiredTimeQuery(r, "start")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	end, err := requiredTimeQuery(r, "end")
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "Availability", "room_id", roomID)
	availability, err := h.bookings.CheckAvailability(r.Context(), roomID, start, end)
	if err != nil {
		logger.ErrorContext(r.Context(), "availability check failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("free", availability.Free).InfoContext(r.Context(), "availability checked")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, availability)
}

func (h *RoomHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.bookings == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roomID, ok := RoomIDFromContext(r.Context())
	if !ok || strings.TrimSpace(roomID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
		return
	}

	var req bookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "CreateEvent", "room_id", roomID, "error_kind", "bad_request").
			ErrorContext(r.Context(), "failed to decode booking request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	params, err := req.toParams(roomID)
	if err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	logger := h.log(r.Context(), "CreateEvent",
		"room_id", roomID, "actor_id", params.ActorID, "group_id", params.GroupID)

	result, err := h.bookings.Book(r.Context(), params)
	if err != nil {
		logger.ErrorContext(r.Context(), "booking failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("event_id", result.Event.ID).InfoContext(r.Context(), "booking created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, bookingResponse{
		Event:        toEventDTO(result.Event),
		Notification: result.Notification,
	})
}

type bookingRequest struct {
	ActorID     string `json:"actor_id"`
	GroupID     string `json:"group_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Start       string `json:"start"`
	End         string `json:"end"`
}

func (r bookingRequest) toParams(roomID string) (application.BookParams, error) {
	params := application.BookParams{
		ActorID:     strings.TrimSpace(r.ActorID),
		RoomID:      roomID,
		GroupID:     strings.TrimSpace(r.GroupID),
		Title:       r.Title,
		Description: r.Description,
	}
	if r.Start != "" {
		start, err := time.Parse(time.RFC3339, r.Start)
		if err != nil {
			return application.BookParams{}, errors.New("start must be a UTC ISO-8601 instant")
		}
		params.Start = start
	}
	if r.End != "" {
		end, err := time.Parse(time.RFC3339, r.End)
		if err != nil {
			return application.BookParams{}, errors.New("end must be a UTC ISO-8601 instant")
		}
		params.End = end
	}
	return params, nil
}

type bookingResponse struct {
	Event        eventDTO                       `json:"event"`
	Notification application.NotificationStatus `json:"notification"`
}

type listRoomsResponse struct {
	Rooms []application.Room `json:"rooms"`
}

type listEventsResponse struct {
	Events []eventDTO `json:"events"`
}

type eventDTO struct {
	ID            string `json:"id"`
	RoomID        string `json:"room_id"`
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	Start         string `json:"start"`
	End           string `json:"end"`
	OrganizerID   string `json:"organizer_id"`
	OrganizerName string `json:"organizer_name,omitempty"`
	GroupID       string `json:"group_id"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

func toEventDTO(event application.Event) eventDTO {
	return eventDTO{
		ID:            event.ID,
		RoomID:        event.RoomID,
		Title:         event.Title,
		Description:   event.Description,
		Start:         event.Start.UTC().Format(time.RFC3339),
		End:           event.End.UTC().Format(time.RFC3339),
		OrganizerID:   event.OrganizerID,
		OrganizerName: event.OrganizerName,
		GroupID:       event.GroupID,
		Status:        event.Status,
		CreatedAt:     event.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     event.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toEventDTOs(events []application.Event) []eventDTO {
	if len(events) == 0 {
		return nil
	}
	out := make([]eventDTO, 0, len(events))
	for _, event := range events {
		out = append(out, toEventDTO(event))
	}
	return out
}

func optionalTimeQuery(r *http.Request, key string) (*time.Time, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return nil, nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, errors.New(key + " must be a UTC ISO-8601 instant")
	}
	return &ts, nil
}

func requiredTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return time.Time{}, errors.New(key + " is required")
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be a UTC ISO-8601 instant")
	}
	return ts, nil
}
