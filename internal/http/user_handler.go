package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/campus-booking/internal/application"
)

type userService interface {
	ListUserGroups(ctx context.Context, actorID string, includeRooms bool) ([]application.GroupSummary, error)
}

type UserHandler struct {
	service   userService
	responder responder
	logger    *slog.Logger
}

func NewUserHandler(service userService, logger *slog.Logger) *UserHandler {
	base := defaultLogger(logger)
	return &UserHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *UserHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "UserHandler", operation, attrs...)
}

func (h *UserHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	userID, ok := UserIDFromContext(r.Context())
	if !ok || strings.TrimSpace(userID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}

	includeRooms := r.URL.Query().Get("rooms") == "true"

	logger := h.log(r.Context(), "ListGroups", "user_id", userID, "include_rooms", includeRooms)

	groups, err := h.service.ListUserGroups(r.Context(), userID, includeRooms)
	if err != nil {
		logger.ErrorContext(r.Context(), "group list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(groups)).InfoContext(r.Context(), "groups listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listGroupsResponse{Groups: groups})
}

type listGroupsResponse struct {
	Groups []application.GroupSummary `json:"groups"`
}
