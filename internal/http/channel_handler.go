package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/campus-booking/internal/metrics"
	"github.com/example/campus-booking/internal/notify"
)

type ChannelHandler struct {
	source    notify.Poller
	metrics   *metrics.Metrics
	responder responder
	logger    *slog.Logger
}

func NewChannelHandler(source notify.Poller, m *metrics.Metrics, logger *slog.Logger) *ChannelHandler {
	base := defaultLogger(logger)
	return &ChannelHandler{source: source, metrics: m, responder: newResponder(base), logger: base}
}

func (h *ChannelHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ChannelHandler", operation, attrs...)
}

// Poll serves the channel's current message. A consumer that is already up
// to date gets 204 and keeps its last seen version.
func (h *ChannelHandler) Poll(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.source == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sinceVersion := int64(0)
	if raw := strings.TrimSpace(r.URL.Query().Get("since_version")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest,
				errors.New("since_version must be a non-negative integer"))
			return
		}
		sinceVersion = parsed
	}

	if h.metrics != nil {
		h.metrics.ChannelPolls.Inc()
	}

	msg, err := h.source.Poll(r.Context(), sinceVersion)
	if err != nil {
		h.log(r.Context(), "Poll", "since_version", sinceVersion).
			ErrorContext(r.Context(), "channel poll failed", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusServiceUnavailable,
			errors.New("the notification channel is unavailable"))
		return
	}
	if msg == nil {
		h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, msg)
}
