package persistence

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a record with the same identity already exists.
	ErrDuplicate = errors.New("persistence: duplicate")
	// ErrBusy is returned when the storage engine could not take the write
	// lock in time. The operation is safe to retry.
	ErrBusy = errors.New("persistence: storage busy")
	// ErrConstraint is returned when a write violates a schema constraint
	// other than uniqueness.
	ErrConstraint = errors.New("persistence: constraint violated")
)

// ConflictError reports that a reservation could not be written because a
// confirmed event already occupies part of the requested interval. It is
// raised inside the store's critical section, so a successful write implies
// the interval was free at commit time.
type ConflictError struct {
	EventID string
	Start   time.Time
	End     time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("persistence: interval conflicts with event %s (%s - %s)",
		e.EventID, e.Start.UTC().Format(time.RFC3339), e.End.UTC().Format(time.RFC3339))
}
