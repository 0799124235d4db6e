package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/campus-booking/internal/persistence"
)

var eventBase = time.Date(2026, time.March, 9, 10, 0, 0, 0, time.UTC)

func confirmedEvent(id, roomID string, startOffset, endOffset time.Duration) persistence.Event {
	return persistence.Event{
		ID:          id,
		RoomID:      roomID,
		Title:       "Weekly sync",
		Start:       eventBase.Add(startOffset),
		End:         eventBase.Add(endOffset),
		OrganizerID: "user-smith",
		GroupID:     "grp-cs",
		Status:      persistence.EventStatusConfirmed,
		CreatedAt:   eventBase,
		UpdatedAt:   eventBase,
	}
}

func TestCreateEventConflict(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if _, err := store.CreateEvent(ctx, confirmedEvent("ev-1", "room-a101", 0, time.Hour)); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	_, err := store.CreateEvent(ctx, confirmedEvent("ev-2", "room-a101", 30*time.Minute, 90*time.Minute))
	var conflict *persistence.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.EventID != "ev-1" {
		t.Fatalf("conflict.EventID = %q, want ev-1", conflict.EventID)
	}

	// Back-to-back intervals are free.
	if _, err := store.CreateEvent(ctx, confirmedEvent("ev-3", "room-a101", time.Hour, 2*time.Hour)); err != nil {
		t.Fatalf("adjacent CreateEvent: %v", err)
	}

	// A different room is unaffected.
	if _, err := store.CreateEvent(ctx, confirmedEvent("ev-4", "room-b204", 0, time.Hour)); err != nil {
		t.Fatalf("other-room CreateEvent: %v", err)
	}
}

func TestCancelledEventsDoNotConflict(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	created, err := store.CreateEvent(ctx, confirmedEvent("ev-1", "room-a101", 0, time.Hour))
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	created.Status = persistence.EventStatusCancelled
	if _, err := store.UpdateEvent(ctx, created); err != nil {
		t.Fatalf("UpdateEvent: %v", err)
	}

	if _, err := store.CreateEvent(ctx, confirmedEvent("ev-2", "room-a101", 0, time.Hour)); err != nil {
		t.Fatalf("expected cancelled slot to be free, got %v", err)
	}
}

func TestUpdateEventSelfExclusion(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	created, err := store.CreateEvent(ctx, confirmedEvent("ev-1", "room-a101", 0, time.Hour))
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	created.Start = eventBase.Add(15 * time.Minute)
	created.End = eventBase.Add(45 * time.Minute)
	if _, err := store.UpdateEvent(ctx, created); err != nil {
		t.Fatalf("update overlapping only itself must succeed, got %v", err)
	}

	if _, err := store.CreateEvent(ctx, confirmedEvent("ev-2", "room-a101", time.Hour, 2*time.Hour)); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	created.End = eventBase.Add(90 * time.Minute)
	_, err = store.UpdateEvent(ctx, created)
	var conflict *persistence.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError against ev-2, got %v", err)
	}
	if conflict.EventID != "ev-2" {
		t.Fatalf("conflict.EventID = %q, want ev-2", conflict.EventID)
	}
}

func TestConcurrentCreatesExactlyOneWins(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	const attempts = 16
	var wg sync.WaitGroup
	results := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			event := confirmedEvent("", "room-a101", 0, time.Hour)
			event.ID = "ev-" + string(rune('a'+i))
			_, results[i] = store.CreateEvent(ctx, event)
		}(i)
	}
	wg.Wait()

	successes := 0
	conflicts := 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		default:
			var conflict *persistence.ConflictError
			if !errors.As(err, &conflict) {
				t.Fatalf("unexpected error: %v", err)
			}
			conflicts++
		}
	}
	if successes != 1 {
		t.Fatalf("successes = %d, want exactly 1", successes)
	}
	if conflicts != attempts-1 {
		t.Fatalf("conflicts = %d, want %d", conflicts, attempts-1)
	}
}

func TestListEventsFilter(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	events := []persistence.Event{
		confirmedEvent("ev-1", "room-a101", 0, time.Hour),
		confirmedEvent("ev-2", "room-a101", 2*time.Hour, 3*time.Hour),
		confirmedEvent("ev-3", "room-b204", time.Hour, 2*time.Hour),
	}
	for _, event := range events {
		if _, err := store.CreateEvent(ctx, event); err != nil {
			t.Fatalf("CreateEvent(%s): %v", event.ID, err)
		}
	}

	t.Run("by room ordered by start", func(t *testing.T) {
		out, err := store.ListEvents(ctx, persistence.EventFilter{RoomID: "room-a101"})
		if err != nil {
			t.Fatalf("ListEvents: %v", err)
		}
		if len(out) != 2 || out[0].ID != "ev-1" || out[1].ID != "ev-2" {
			t.Fatalf("unexpected result: %+v", out)
		}
	})

	t.Run("window uses overlap semantics", func(t *testing.T) {
		from := eventBase.Add(30 * time.Minute)
		until := eventBase.Add(90 * time.Minute)
		out, err := store.ListEvents(ctx, persistence.EventFilter{RoomID: "room-a101", From: &from, Until: &until})
		if err != nil {
			t.Fatalf("ListEvents: %v", err)
		}
		if len(out) != 1 || out[0].ID != "ev-1" {
			t.Fatalf("unexpected result: %+v", out)
		}
	})

	t.Run("status filter excludes cancelled", func(t *testing.T) {
		cancelled, err := store.GetEvent(ctx, "ev-2")
		if err != nil {
			t.Fatalf("GetEvent: %v", err)
		}
		cancelled.Status = persistence.EventStatusCancelled
		if _, err := store.UpdateEvent(ctx, cancelled); err != nil {
			t.Fatalf("UpdateEvent: %v", err)
		}

		out, err := store.ListEvents(ctx, persistence.EventFilter{
			RoomID:   "room-a101",
			Statuses: []persistence.EventStatus{persistence.EventStatusConfirmed},
		})
		if err != nil {
			t.Fatalf("ListEvents: %v", err)
		}
		if len(out) != 1 || out[0].ID != "ev-1" {
			t.Fatalf("unexpected result: %+v", out)
		}
	})
}

func TestFirstOverlapping(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	if _, err := store.CreateEvent(ctx, confirmedEvent("ev-1", "room-a101", 0, time.Hour)); err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}

	if _, err := store.FirstOverlapping(ctx, "room-a101", eventBase.Add(time.Hour), eventBase.Add(2*time.Hour), ""); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("adjacent window should be free, got %v", err)
	}

	hit, err := store.FirstOverlapping(ctx, "room-a101", eventBase.Add(30*time.Minute), eventBase.Add(90*time.Minute), "")
	if err != nil {
		t.Fatalf("FirstOverlapping: %v", err)
	}
	if hit.ID != "ev-1" {
		t.Fatalf("hit.ID = %q, want ev-1", hit.ID)
	}

	if _, err := store.FirstOverlapping(ctx, "room-a101", eventBase.Add(30*time.Minute), eventBase.Add(90*time.Minute), "ev-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("self-excluded window should be free, got %v", err)
	}
}
