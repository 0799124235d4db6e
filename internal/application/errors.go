package application

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownActor is returned when the acting user does not resolve in the directory.
	ErrUnknownActor = errors.New("application: unknown actor")
	// ErrUnknownRoom is returned when the target room does not resolve in the directory.
	ErrUnknownRoom = errors.New("application: unknown room")
	// ErrUnknownGroup is returned when the supplied group does not resolve in the directory.
	ErrUnknownGroup = errors.New("application: unknown group")
	// ErrNotAuthorized is returned when no eligible group grants booking on the room,
	// or the chosen group is not among the eligible set.
	ErrNotAuthorized = errors.New("application: not authorized")
	// ErrConflict is returned when a proposed interval overlaps a confirmed event.
	ErrConflict = errors.New("application: interval conflict")
	// ErrNotOrganizer is returned when an update or cancel comes from someone other
	// than the event's organizer.
	ErrNotOrganizer = errors.New("application: requester is not the organizer")
	// ErrNotFound is returned when the requested event does not exist or is cancelled.
	ErrNotFound = errors.New("application: not found")
	// ErrTimeout is returned when a store operation exceeded the caller's deadline.
	ErrTimeout = errors.New("application: deadline exceeded")
	// ErrChannelUnavailable marks a failed notification publish. It never aborts
	// the booking that triggered it.
	ErrChannelUnavailable = errors.New("application: notification channel unavailable")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// ConflictError reports the confirmed event already occupying the requested
// interval. It matches ErrConflict under errors.Is.
type ConflictError struct {
	EventID string
	Start   time.Time
	End     time.Time
}

// Error implements the error interface.
func (c *ConflictError) Error() string {
	return fmt.Sprintf("interval conflicts with event %s (%s to %s)",
		c.EventID, c.Start.Format(time.RFC3339), c.End.Format(time.RFC3339))
}

// Is lets errors.Is(err, ErrConflict) succeed for typed conflict errors.
func (c *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// mapDeadline folds context deadline errors into the service taxonomy so
// callers see a single Timeout kind.
func mapDeadline(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}
