package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/example/campus-booking/internal/metrics"
	"github.com/example/campus-booking/internal/notify"
	"github.com/example/campus-booking/internal/persistence"
)

// producerTag identifies this service on the notification channel.
const producerTag = "booking-service"

// EventStore captures the event persistence interactions needed by the service.
type EventStore interface {
	CreateEvent(ctx context.Context, event persistence.Event) (persistence.Event, error)
	GetEvent(ctx context.Context, id string) (persistence.Event, error)
	UpdateEvent(ctx context.Context, event persistence.Event) (persistence.Event, error)
	ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error)
	FirstOverlapping(ctx context.Context, roomID string, start, end time.Time, excludeEventID string) (persistence.Event, error)
}

// Authorizer answers whether an actor may book a room.
type Authorizer interface {
	Authorize(ctx context.Context, actorID, roomID string) (Authorization, error)
}

// BookingService orchestrates authorization, conflict detection, persistence
// and notification for reservation operations.
type BookingService struct {
	events      EventStore
	directory   Directory
	authorizer  Authorizer
	channel     notify.Publisher
	metrics     *metrics.Metrics
	pastGrace   time.Duration
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewBookingService wires dependencies for booking operations. The channel
// and metrics are optional; pastGrace bounds how far in the past a booking
// may start.
func NewBookingService(events EventStore, directory Directory, authorizer Authorizer, channel notify.Publisher, m *metrics.Metrics, pastGrace time.Duration, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BookingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		events:      events,
		directory:   directory,
		authorizer:  authorizer,
		channel:     channel,
		metrics:     m,
		pastGrace:   pastGrace,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// Book reserves a room. Each gate fails fast with no partial effects: the
// interval is validated, the actor authorized under the chosen group, the
// interval pre-checked for freedom, then the create re-validates freedom
// inside the store's own critical section. The notification publish is best
// effort and never rolls back a durable booking.
func (s *BookingService) Book(ctx context.Context, params BookParams) (BookingResult, error) {
	if s == nil || s.events == nil {
		return BookingResult{}, fmt.Errorf("event store not configured")
	}

	logger := serviceLogger(ctx, s.logger, "booking", "book",
		"actor_id", params.ActorID, "room_id", params.RoomID, "group_id", params.GroupID)

	result, err := s.book(ctx, params)
	if err != nil {
		s.countBooking(bookingOutcome(err))
		logger.Info("booking rejected", "kind", ErrorKind(err))
		return BookingResult{}, err
	}

	s.countBooking(metrics.OutcomeConfirmed)
	logger.Info("booking confirmed",
		"event_id", result.Event.ID, "delivered", result.Notification.Delivered)
	return result, nil
}

func (s *BookingService) book(ctx context.Context, params BookParams) (BookingResult, error) {
	params.Start = normalizeInstant(params.Start)
	params.End = normalizeInstant(params.End)

	vErr := &ValidationError{}
	validateBookingCore(params.Title, params.Start, params.End, vErr)
	if !params.Start.IsZero() && s.pastGrace >= 0 && params.Start.Before(s.now().Add(-s.pastGrace)) {
		vErr.add("start", "start is too far in the past")
	}
	if strings.TrimSpace(params.GroupID) == "" {
		vErr.add("group_id", "group_id is required")
	}
	if vErr.HasErrors() {
		return BookingResult{}, vErr
	}

	auth, err := s.authorizer.Authorize(ctx, params.ActorID, params.RoomID)
	if err != nil {
		return BookingResult{}, err
	}
	if !auth.Allowed {
		return BookingResult{}, ErrNotAuthorized
	}

	if _, err := s.directory.GetGroup(ctx, params.GroupID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return BookingResult{}, ErrUnknownGroup
		}
		return BookingResult{}, mapDeadline(err)
	}
	if !slices.Contains(auth.EligibleGroupIDs, params.GroupID) {
		return BookingResult{}, ErrNotAuthorized
	}

	// Fast-path rejection before touching the write path. The store repeats
	// this check inside its own critical section.
	if blocking, err := s.events.FirstOverlapping(ctx, params.RoomID, params.Start, params.End, ""); err == nil {
		return BookingResult{}, &ConflictError{EventID: blocking.ID, Start: blocking.Start, End: blocking.End}
	} else if !errors.Is(err, persistence.ErrNotFound) {
		return BookingResult{}, mapDeadline(err)
	}

	createdAt := s.now()
	event := persistence.Event{
		ID:          s.idGenerator(),
		RoomID:      params.RoomID,
		Title:       strings.TrimSpace(params.Title),
		Description: params.Description,
		Start:       params.Start.UTC(),
		End:         params.End.UTC(),
		OrganizerID: params.ActorID,
		GroupID:     params.GroupID,
		Status:      persistence.EventStatusConfirmed,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}

	persisted, err := s.createWithRetry(ctx, event)
	if err != nil {
		return BookingResult{}, err
	}

	notification := s.publish(ctx, "booking_confirmed",
		fmt.Sprintf("room %s booked from %s to %s",
			persisted.RoomID,
			persisted.Start.Format(time.RFC3339),
			persisted.End.Format(time.RFC3339)),
		persisted)

	return BookingResult{Event: s.toEvent(ctx, persisted), Notification: notification}, nil
}

// createWithRetry retries the atomic create once after a deadline or
// storage-busy error. The store re-runs the conflict check on the retry, so
// the operation stays idempotent with respect to the interval invariant.
func (s *BookingService) createWithRetry(ctx context.Context, event persistence.Event) (persistence.Event, error) {
	persisted, err := s.events.CreateEvent(ctx, event)
	if err == nil {
		return persisted, nil
	}
	if (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, persistence.ErrBusy)) && ctx.Err() == nil {
		persisted, err = s.events.CreateEvent(ctx, event)
		if err == nil {
			return persisted, nil
		}
	}
	return persistence.Event{}, mapEventStoreError(err)
}

// UpdateEvent patches title, description, or interval on an event. Only the
// organizer may update; a cancelled event behaves as if it did not exist.
func (s *BookingService) UpdateEvent(ctx context.Context, params UpdateEventParams) (Event, error) {
	if s == nil || s.events == nil {
		return Event{}, fmt.Errorf("event store not configured")
	}

	existing, err := s.events.GetEvent(ctx, params.EventID)
	if err != nil {
		return Event{}, mapEventStoreError(err)
	}
	if existing.Status == persistence.EventStatusCancelled {
		return Event{}, ErrNotFound
	}
	if existing.OrganizerID != params.RequesterID {
		return Event{}, ErrNotOrganizer
	}

	updated := existing
	if params.Title != nil {
		updated.Title = strings.TrimSpace(*params.Title)
	}
	if params.Description != nil {
		updated.Description = *params.Description
	}
	if params.Start != nil {
		updated.Start = normalizeInstant(*params.Start)
	}
	if params.End != nil {
		updated.End = normalizeInstant(*params.End)
	}

	vErr := &ValidationError{}
	validateBookingCore(updated.Title, updated.Start, updated.End, vErr)
	if vErr.HasErrors() {
		return Event{}, vErr
	}

	updated.UpdatedAt = s.now()
	persisted, err := s.events.UpdateEvent(ctx, updated)
	if err != nil {
		return Event{}, mapEventStoreError(err)
	}

	s.publish(ctx, "booking_updated",
		fmt.Sprintf("booking %s on room %s was updated", persisted.ID, persisted.RoomID),
		persisted)

	return s.toEvent(ctx, persisted), nil
}

// CancelEvent flips an event to cancelled. Cancelling an already cancelled
// event returns the current state unchanged.
func (s *BookingService) CancelEvent(ctx context.Context, params CancelEventParams) (Event, error) {
	if s == nil || s.events == nil {
		return Event{}, fmt.Errorf("event store not configured")
	}

	existing, err := s.events.GetEvent(ctx, params.EventID)
	if err != nil {
		err = mapEventStoreError(err)
		s.countCancellation(bookingOutcome(err))
		return Event{}, err
	}
	if existing.OrganizerID != params.RequesterID {
		s.countCancellation(metrics.OutcomeDenied)
		return Event{}, ErrNotOrganizer
	}
	if existing.Status == persistence.EventStatusCancelled {
		s.countCancellation(metrics.OutcomeConfirmed)
		return s.toEvent(ctx, existing), nil
	}

	existing.Status = persistence.EventStatusCancelled
	existing.UpdatedAt = s.now()
	persisted, err := s.events.UpdateEvent(ctx, existing)
	if err != nil {
		err = mapEventStoreError(err)
		s.countCancellation(bookingOutcome(err))
		return Event{}, err
	}

	s.countCancellation(metrics.OutcomeConfirmed)
	s.publish(ctx, "booking_cancelled",
		fmt.Sprintf("booking %s on room %s was cancelled", persisted.ID, persisted.RoomID),
		persisted)

	return s.toEvent(ctx, persisted), nil
}

// ListRoomEvents returns confirmed events on a room whose interval overlaps
// the optional [from, until) window, ordered by start time.
func (s *BookingService) ListRoomEvents(ctx context.Context, roomID string, from, until *time.Time, limit, offset int) ([]Event, error) {
	if s == nil || s.events == nil {
		return nil, fmt.Errorf("event store not configured")
	}

	if _, err := s.directory.GetRoom(ctx, roomID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, ErrUnknownRoom
		}
		return nil, mapDeadline(err)
	}

	records, err := s.events.ListEvents(ctx, persistence.EventFilter{
		RoomID:   roomID,
		From:     from,
		Until:    until,
		Statuses: []persistence.EventStatus{persistence.EventStatusConfirmed},
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, mapDeadline(err)
	}
	return s.toEvents(ctx, records), nil
}

// ListUpcomingByRoom returns confirmed events on a room starting at or after
// the current time.
func (s *BookingService) ListUpcomingByRoom(ctx context.Context, roomID string, limit int) ([]Event, error) {
	now := s.now()
	events, err := s.ListRoomEvents(ctx, roomID, &now, nil, 0, 0)
	if err != nil {
		return nil, err
	}
	return clipUpcoming(events, now, limit), nil
}

// ListUpcomingByUser returns confirmed events organized by a user starting
// at or after the current time.
func (s *BookingService) ListUpcomingByUser(ctx context.Context, userID string, limit int) ([]Event, error) {
	if s == nil || s.events == nil {
		return nil, fmt.Errorf("event store not configured")
	}

	if _, err := s.directory.GetUser(ctx, userID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, ErrUnknownActor
		}
		return nil, mapDeadline(err)
	}

	now := s.now()
	records, err := s.events.ListEvents(ctx, persistence.EventFilter{
		OrganizerID: userID,
		From:        &now,
		Statuses:    []persistence.EventStatus{persistence.EventStatusConfirmed},
	})
	if err != nil {
		return nil, mapDeadline(err)
	}
	return clipUpcoming(s.toEvents(ctx, records), now, limit), nil
}

// CheckAvailability reports whether [start, end) is free on a room, naming
// the earliest blocking event when it is not.
func (s *BookingService) CheckAvailability(ctx context.Context, roomID string, start, end time.Time) (Availability, error) {
	if s == nil || s.events == nil {
		return Availability{}, fmt.Errorf("event store not configured")
	}

	start = normalizeInstant(start)
	end = normalizeInstant(end)

	vErr := &ValidationError{}
	validateInterval(start, end, vErr)
	if vErr.HasErrors() {
		return Availability{}, vErr
	}

	if _, err := s.directory.GetRoom(ctx, roomID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Availability{}, ErrUnknownRoom
		}
		return Availability{}, mapDeadline(err)
	}

	blocking, err := s.events.FirstOverlapping(ctx, roomID, start, end, "")
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Availability{Free: true}, nil
		}
		return Availability{}, mapDeadline(err)
	}
	return Availability{
		Free:     false,
		Conflict: &ConflictSummary{EventID: blocking.ID, Start: blocking.Start, End: blocking.End},
	}, nil
}

// publish announces a booking change on the channel. Failures are logged and
// reported through the returned status, never as an error.
func (s *BookingService) publish(ctx context.Context, kind, message string, event persistence.Event) NotificationStatus {
	if s.channel == nil {
		return NotificationStatus{}
	}

	payload, err := json.Marshal(map[string]any{
		"event":        kind,
		"message":      message,
		"event_id":     event.ID,
		"room_id":      event.RoomID,
		"organizer_id": event.OrganizerID,
		"start":        event.Start.UTC().Format(time.RFC3339),
		"end":          event.End.UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.logger.Error("encode notification payload", "event_id", event.ID, "error", err)
		s.countPublish("error")
		return NotificationStatus{}
	}

	version, err := s.channel.Publish(ctx, payload, producerTag)
	if err != nil {
		s.logger.Warn("notification publish failed",
			"event_id", event.ID, "kind", ErrorKind(ErrChannelUnavailable), "error", err)
		s.countPublish("error")
		return NotificationStatus{}
	}

	s.countPublish("ok")
	return NotificationStatus{Delivered: true, Version: version}
}

func (s *BookingService) toEvent(ctx context.Context, record persistence.Event) Event {
	event := Event{
		ID:          record.ID,
		RoomID:      record.RoomID,
		Title:       record.Title,
		Description: record.Description,
		Start:       record.Start,
		End:         record.End,
		OrganizerID: record.OrganizerID,
		GroupID:     record.GroupID,
		Status:      string(record.Status),
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}
	if s.directory != nil {
		if user, err := s.directory.GetUser(ctx, record.OrganizerID); err == nil {
			event.OrganizerName = user.DisplayName
		}
	}
	return event
}

func (s *BookingService) toEvents(ctx context.Context, records []persistence.Event) []Event {
	out := make([]Event, 0, len(records))
	for _, record := range records {
		out = append(out, s.toEvent(ctx, record))
	}
	return out
}

func (s *BookingService) countBooking(outcome string) {
	if s.metrics != nil {
		s.metrics.Bookings.WithLabelValues(outcome).Inc()
	}
}

func (s *BookingService) countCancellation(outcome string) {
	if s.metrics != nil {
		s.metrics.Cancellations.WithLabelValues(outcome).Inc()
	}
}

func (s *BookingService) countPublish(outcome string) {
	if s.metrics != nil {
		s.metrics.ChannelPublish.WithLabelValues(outcome).Inc()
	}
}

func validateBookingCore(title string, start, end time.Time, vErr *ValidationError) {
	if strings.TrimSpace(title) == "" {
		vErr.add("title", "title is required")
	}
	validateInterval(start, end, vErr)
}

// normalizeInstant folds a timestamp to the engine's second granularity.
// Fractions are dropped before validation, so an interval that collapses to
// zero length fails the start-before-end check instead of diverging between
// storage backends.
func normalizeInstant(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Second)
}

func validateInterval(start, end time.Time, vErr *ValidationError) {
	if start.IsZero() {
		vErr.add("start", "start is required")
	}
	if end.IsZero() {
		vErr.add("end", "end is required")
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		vErr.add("time", "start must be before end")
	}
}

func clipUpcoming(events []Event, now time.Time, limit int) []Event {
	out := make([]Event, 0, len(events))
	for _, event := range events {
		if event.Start.Before(now) {
			continue
		}
		out = append(out, event)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeConfirmed
	case errors.Is(err, ErrConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, ErrNotAuthorized), errors.Is(err, ErrNotOrganizer):
		return metrics.OutcomeDenied
	case errors.Is(err, ErrTimeout):
		return metrics.OutcomeTimeout
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return metrics.OutcomeInvalid
	}
	if errors.Is(err, ErrUnknownActor) || errors.Is(err, ErrUnknownRoom) ||
		errors.Is(err, ErrUnknownGroup) || errors.Is(err, ErrNotFound) {
		return metrics.OutcomeInvalid
	}
	return metrics.OutcomeInternalError
}

func mapEventStoreError(err error) error {
	if err == nil {
		return nil
	}
	var conflict *persistence.ConflictError
	if errors.As(err, &conflict) {
		return &ConflictError{EventID: conflict.EventID, Start: conflict.Start, End: conflict.End}
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrBusy) {
		return ErrTimeout
	}
	return mapDeadline(err)
}
