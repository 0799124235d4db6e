package application

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/campus-booking/internal/notify"
	"github.com/example/campus-booking/internal/persistence"
	"github.com/example/campus-booking/internal/persistence/memory"
	"github.com/example/campus-booking/internal/testfixtures"
)

var testReference = testfixtures.ReferenceTime()

type serviceFixture struct {
	store     *memory.Store
	channel   *notify.MemoryChannel
	clock     *testfixtures.Clock
	directory *DirectoryService
	booking   *BookingService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	store := memory.NewStore()
	store.AddUser(persistence.User{ID: "user-1", DisplayName: "Morgan Smith", Email: "smith@campus.test"})
	store.AddUser(persistence.User{ID: "user-2", DisplayName: "Alex Johnson", Email: "johnson@campus.test"})
	store.AddGroup(persistence.Group{ID: "grp-1", Name: "Computer Science", Code: "CS", Type: persistence.GroupTypeDepartment})
	store.AddGroup(persistence.Group{ID: "grp-2", Name: "Chess Club", Code: "CHESS", Type: persistence.GroupTypeClub})
	store.AddMembership(persistence.Membership{UserID: "user-1", GroupID: "grp-1", Role: "member"})
	store.AddMembership(persistence.Membership{UserID: "user-1", GroupID: "grp-2", Role: "member"})
	store.AddMembership(persistence.Membership{UserID: "user-2", GroupID: "grp-2", Role: "member"})
	store.AddRoom(persistence.Room{ID: "room-1", Name: "Lecture Hall A", Capacity: 120, Type: "lecture"})
	store.AddRoom(persistence.Room{ID: "room-2", Name: "Seminar Room B", Capacity: 16, Type: "seminar"})
	// grp-1 has no grant on room-1; grp-2 may book it.
	store.AddPermission(persistence.Permission{GroupID: "grp-2", RoomID: "room-1", CanBook: true, CanView: true})
	store.AddPermission(persistence.Permission{GroupID: "grp-1", RoomID: "room-2", CanBook: true, CanView: true})

	channel := notify.NewMemoryChannel()
	clock := testfixtures.NewClock(testReference)
	directory := NewDirectoryService(store, nil)

	booking := NewBookingService(store, store, directory, channel, nil,
		5*time.Minute, testfixtures.NewIDGenerator("event").NextFunc(), clock.NowFunc(), nil)

	return &serviceFixture{store: store, channel: channel, clock: clock, directory: directory, booking: booking}
}

func (f *serviceFixture) book(t *testing.T, actorID, roomID, groupID string, startHour, endHour int) (BookingResult, error) {
	t.Helper()
	return f.booking.Book(context.Background(), BookParams{
		ActorID: actorID,
		RoomID:  roomID,
		GroupID: groupID,
		Title:   "Weekly sync",
		Start:   testReference.Add(time.Duration(startHour) * time.Hour),
		End:     testReference.Add(time.Duration(endHour) * time.Hour),
	})
}

func TestBookingService_Book(t *testing.T) {

	t.Run("overlapping interval conflicts, adjacent interval succeeds", func(t *testing.T) {
		f := newServiceFixture(t)

		first, err := f.book(t, "user-1", "room-1", "grp-2", 1, 2)
		if err != nil {
			t.Fatalf("first booking failed: %v", err)
		}

		start := testReference.Add(90 * time.Minute)
		end := testReference.Add(150 * time.Minute)
		_, err = f.booking.Book(context.Background(), BookParams{
			ActorID: "user-1", RoomID: "room-1", GroupID: "grp-2",
			Title: "Overlap", Start: start, End: end,
		})
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected conflict error, got %v", err)
		}
		if conflict.EventID != first.Event.ID {
			t.Fatalf("expected conflict with %s, got %s", first.Event.ID, conflict.EventID)
		}
		if !errors.Is(err, ErrConflict) {
			t.Fatal("conflict error should match ErrConflict")
		}

		if _, err := f.book(t, "user-1", "room-1", "grp-2", 2, 3); err != nil {
			t.Fatalf("adjacent booking should succeed: %v", err)
		}
	})

	t.Run("group without grant is rejected, eligible group succeeds", func(t *testing.T) {
		f := newServiceFixture(t)

		_, err := f.book(t, "user-1", "room-1", "grp-1", 1, 2)
		if !errors.Is(err, ErrNotAuthorized) {
			t.Fatalf("expected ErrNotAuthorized for grp-1, got %v", err)
		}

		if _, err := f.book(t, "user-1", "room-1", "grp-2", 1, 2); err != nil {
			t.Fatalf("booking via grp-2 should succeed: %v", err)
		}
	})

	t.Run("actor with no eligible groups is always rejected", func(t *testing.T) {
		f := newServiceFixture(t)
		f.store.AddUser(persistence.User{ID: "user-3", DisplayName: "Pat Davis", Email: "davis@campus.test"})

		for hour := 1; hour < 4; hour++ {
			_, err := f.book(t, "user-3", "room-1", "grp-2", hour, hour+1)
			if !errors.Is(err, ErrNotAuthorized) {
				t.Fatalf("expected ErrNotAuthorized, got %v", err)
			}
		}
	})

	t.Run("unknown references are distinguished", func(t *testing.T) {
		f := newServiceFixture(t)

		if _, err := f.book(t, "ghost", "room-1", "grp-2", 1, 2); !errors.Is(err, ErrUnknownActor) {
			t.Fatalf("expected ErrUnknownActor, got %v", err)
		}
		if _, err := f.book(t, "user-1", "room-x", "grp-2", 1, 2); !errors.Is(err, ErrUnknownRoom) {
			t.Fatalf("expected ErrUnknownRoom, got %v", err)
		}
		if _, err := f.book(t, "user-1", "room-1", "grp-x", 1, 2); !errors.Is(err, ErrUnknownGroup) {
			t.Fatalf("expected ErrUnknownGroup, got %v", err)
		}
	})

	t.Run("malformed intervals fail validation", func(t *testing.T) {
		f := newServiceFixture(t)

		_, err := f.book(t, "user-1", "room-1", "grp-2", 2, 1)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if _, ok := vErr.FieldErrors["time"]; !ok {
			t.Fatalf("expected time field error, got %v", vErr.FieldErrors)
		}

		_, err = f.booking.Book(context.Background(), BookParams{
			ActorID: "user-1", RoomID: "room-1", GroupID: "grp-2",
			Title: "Stale", Start: testReference.Add(-time.Hour), End: testReference,
		})
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error for past start, got %v", err)
		}
	})

	t.Run("timestamps are folded to second granularity", func(t *testing.T) {
		f := newServiceFixture(t)

		// A sub-second interval collapses to zero length and fails
		// validation instead of reaching the store.
		_, err := f.booking.Book(context.Background(), BookParams{
			ActorID: "user-1", RoomID: "room-1", GroupID: "grp-2",
			Title: "Blink",
			Start: testReference.Add(time.Hour + 200*time.Millisecond),
			End:   testReference.Add(time.Hour + 800*time.Millisecond),
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if _, ok := vErr.FieldErrors["time"]; !ok {
			t.Fatalf("expected time field error, got %v", vErr.FieldErrors)
		}

		// Fractions on a valid interval are dropped before storage.
		result, err := f.booking.Book(context.Background(), BookParams{
			ActorID: "user-1", RoomID: "room-1", GroupID: "grp-2",
			Title: "Seminar",
			Start: testReference.Add(time.Hour + 400*time.Millisecond),
			End:   testReference.Add(2*time.Hour + 600*time.Millisecond),
		})
		if err != nil {
			t.Fatalf("booking failed: %v", err)
		}
		if !result.Event.Start.Equal(testReference.Add(time.Hour)) {
			t.Fatalf("start not truncated: %v", result.Event.Start)
		}
		if !result.Event.End.Equal(testReference.Add(2 * time.Hour)) {
			t.Fatalf("end not truncated: %v", result.Event.End)
		}
	})

	t.Run("successful booking publishes a notification", func(t *testing.T) {
		f := newServiceFixture(t)

		result, err := f.book(t, "user-1", "room-1", "grp-2", 1, 2)
		if err != nil {
			t.Fatalf("booking failed: %v", err)
		}
		if !result.Notification.Delivered {
			t.Fatal("expected notification to be delivered")
		}
		if result.Notification.Version == 0 {
			t.Fatal("expected a non-zero channel version")
		}

		msg, err := f.channel.Poll(context.Background(), 0)
		if err != nil {
			t.Fatalf("poll failed: %v", err)
		}
		if msg == nil {
			t.Fatal("expected a channel message")
		}
		var payload map[string]any
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			t.Fatalf("payload is not valid JSON: %v", err)
		}
		if payload["event"] != "booking_confirmed" {
			t.Fatalf("unexpected event kind: %v", payload["event"])
		}
		if payload["event_id"] != result.Event.ID {
			t.Fatalf("expected event_id %s, got %v", result.Event.ID, payload["event_id"])
		}
		if msg.ProducerTag != "booking-service" {
			t.Fatalf("unexpected producer tag: %q", msg.ProducerTag)
		}
	})

	t.Run("publish failure never rolls back the booking", func(t *testing.T) {
		f := newServiceFixture(t)
		broken := &failingPublisher{}
		f.booking.channel = broken

		result, err := f.book(t, "user-1", "room-1", "grp-2", 1, 2)
		if err != nil {
			t.Fatalf("booking should survive a publish failure: %v", err)
		}
		if result.Notification.Delivered {
			t.Fatal("expected delivered=false after publish failure")
		}

		stored, err := f.store.GetEvent(context.Background(), result.Event.ID)
		if err != nil {
			t.Fatalf("booking was not persisted: %v", err)
		}
		if stored.Status != persistence.EventStatusConfirmed {
			t.Fatalf("expected confirmed status, got %s", stored.Status)
		}
	})

	t.Run("create is retried once after a deadline error", func(t *testing.T) {
		f := newServiceFixture(t)
		flaky := &flakyEventStore{EventStore: f.store, failures: 1, err: context.DeadlineExceeded}
		f.booking.events = flaky

		if _, err := f.book(t, "user-1", "room-1", "grp-2", 1, 2); err != nil {
			t.Fatalf("expected retry to succeed: %v", err)
		}
		if flaky.createCalls != 2 {
			t.Fatalf("expected 2 create attempts, got %d", flaky.createCalls)
		}

		flaky.failures = 2
		flaky.createCalls = 0
		_, err := f.book(t, "user-1", "room-1", "grp-2", 3, 4)
		if !errors.Is(err, ErrTimeout) {
			t.Fatalf("expected ErrTimeout after exhausted retry, got %v", err)
		}
	})

	t.Run("create is retried once when the store is busy", func(t *testing.T) {
		f := newServiceFixture(t)
		flaky := &flakyEventStore{EventStore: f.store, failures: 1, err: persistence.ErrBusy}
		f.booking.events = flaky

		if _, err := f.book(t, "user-1", "room-1", "grp-2", 1, 2); err != nil {
			t.Fatalf("expected retry to succeed: %v", err)
		}
		if flaky.createCalls != 2 {
			t.Fatalf("expected 2 create attempts, got %d", flaky.createCalls)
		}

		flaky.failures = 2
		flaky.createCalls = 0
		_, err := f.book(t, "user-1", "room-1", "grp-2", 3, 4)
		if !errors.Is(err, ErrTimeout) {
			t.Fatalf("expected ErrTimeout after exhausted retry, got %v", err)
		}
	})

	t.Run("organizer display name is denormalized", func(t *testing.T) {
		f := newServiceFixture(t)

		result, err := f.book(t, "user-1", "room-1", "grp-2", 1, 2)
		if err != nil {
			t.Fatalf("booking failed: %v", err)
		}
		if result.Event.OrganizerName != "Morgan Smith" {
			t.Fatalf("expected organizer name to be joined, got %q", result.Event.OrganizerName)
		}
		if result.Event.OrganizerID != "user-1" || result.Event.GroupID != "grp-2" {
			t.Fatalf("unexpected organizer identity: %s/%s", result.Event.OrganizerID, result.Event.GroupID)
		}
	})
}

func TestBookingService_ConcurrentBookings(t *testing.T) {
	f := newServiceFixture(t)

	const attempts = 12
	start := testReference.Add(time.Hour)
	end := testReference.Add(2 * time.Hour)

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.booking.Book(context.Background(), BookParams{
				ActorID: "user-1", RoomID: "room-1", GroupID: "grp-2",
				Title: "Contended slot", Start: start, End: end,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one success, got %d", successes)
	}
	if conflicts != attempts-1 {
		t.Fatalf("expected %d conflicts, got %d", attempts-1, conflicts)
	}
}

func TestBookingService_UpdateEvent(t *testing.T) {

	t.Run("self overlap never conflicts", func(t *testing.T) {
		f := newServiceFixture(t)
		result, err := f.book(t, "user-1", "room-1", "grp-2", 1, 2)
		if err != nil {
			t.Fatalf("booking failed: %v", err)
		}

		newStart := testReference.Add(90 * time.Minute)
		newEnd := testReference.Add(150 * time.Minute)
		updated, err := f.booking.UpdateEvent(context.Background(), UpdateEventParams{
			EventID:     result.Event.ID,
			RequesterID: "user-1",
			Start:       &newStart,
			End:         &newEnd,
		})
		if err != nil {
			t.Fatalf("self-overlapping update should succeed: %v", err)
		}
		if !updated.Start.Equal(newStart) || !updated.End.Equal(newEnd) {
			t.Fatalf("interval not applied: %v to %v", updated.Start, updated.End)
		}
	})

	t.Run("update onto another event conflicts", func(t *testing.T) {
		f := newServiceFixture(t)
		first, err := f.book(t, "user-1", "room-1", "grp-2", 1, 2)
		if err != nil {
			t.Fatalf("booking failed: %v", err)
		}
		second, err := f.book(t, "user-1", "room-1", "grp-2", 2, 3)
		if err != nil {
			t.Fatalf("booking failed: %v", err)
		}

		newStart := testReference.Add(90 * time.Minute)
		_, err = f.booking.UpdateEvent(context.Background(), UpdateEventParams{
			EventID:     second.Event.ID,
			RequesterID: "user-1",
			Start:       &newStart,
		})
		var conflict *ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected conflict, got %v", err)
		}
		if conflict.EventID != first.Event.ID {
			t.Fatalf("expected conflict with %s, got %s", first.Event.ID, conflict.EventID)
		}
	})

	t.Run("only the organizer may update", func(t *testing.T) {
		f := newServiceFixture(t)
		result, err := f.book(t, "user-1", "room-1", "grp-2", 1, 2)
		if err != nil {
			t.Fatalf("booking failed: %v", err)
		}

		title := "Hijacked"
		_, err = f.booking.UpdateEvent(context.Background(), UpdateEventParams{
			EventID:     result.Event.ID,
			RequesterID: "user-2",
			Title:       &title,
		})
		if !errors.Is(err, ErrNotOrganizer) {
			t.Fatalf("expected ErrNotOrganizer, got %v", err)
		}
	})

	t.Run("cancelled events behave as missing", func(t *testing.T) {
		f := newServiceFixture(t)
		result, err := f.book(t, "user-1", "room-1", "grp-2", 1, 2)
		if err != nil {
			t.Fatalf("booking failed: %v", err)
		}
		if _, err := f.booking.CancelEvent(context.Background(), CancelEventParams{
			EventID: result.Event.ID, RequesterID: "user-1",
		}); err != nil {
			t.Fatalf("cancel failed: %v", err)
		}

		title := "Too late"
		_, err = f.booking.UpdateEvent(context.Background(), UpdateEventParams{
			EventID:     result.Event.ID,
			RequesterID: "user-1",
			Title:       &title,
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound for cancelled event, got %v", err)
		}
	})
}

func TestBookingService_CancelEvent(t *testing.T) {
	f := newServiceFixture(t)
	result, err := f.book(t, "user-1", "room-1", "grp-2", 1, 2)
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	eventID := result.Event.ID

	if _, err := f.booking.CancelEvent(context.Background(), CancelEventParams{
		EventID: eventID, RequesterID: "user-2",
	}); !errors.Is(err, ErrNotOrganizer) {
		t.Fatalf("expected ErrNotOrganizer for user-2, got %v", err)
	}

	cancelled, err := f.booking.CancelEvent(context.Background(), CancelEventParams{
		EventID: eventID, RequesterID: "user-1",
	})
	if err != nil {
		t.Fatalf("cancel by organizer failed: %v", err)
	}
	if cancelled.Status != string(persistence.EventStatusCancelled) {
		t.Fatalf("expected cancelled status, got %s", cancelled.Status)
	}

	f.clock.Advance(10 * time.Minute)
	again, err := f.booking.CancelEvent(context.Background(), CancelEventParams{
		EventID: eventID, RequesterID: "user-1",
	})
	if err != nil {
		t.Fatalf("repeated cancel should be idempotent: %v", err)
	}
	if again.Status != string(persistence.EventStatusCancelled) {
		t.Fatalf("expected cancelled status on repeat, got %s", again.Status)
	}
	if !again.UpdatedAt.Equal(cancelled.UpdatedAt) {
		t.Fatal("repeated cancel should return the unchanged state")
	}

	// The freed slot is bookable again.
	if _, err := f.book(t, "user-1", "room-1", "grp-2", 1, 2); err != nil {
		t.Fatalf("cancelled slot should be free: %v", err)
	}
}

func TestBookingService_Availability(t *testing.T) {
	f := newServiceFixture(t)
	result, err := f.book(t, "user-1", "room-1", "grp-2", 1, 2)
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	busy, err := f.booking.CheckAvailability(context.Background(), "room-1",
		testReference.Add(90*time.Minute), testReference.Add(150*time.Minute))
	if err != nil {
		t.Fatalf("availability check failed: %v", err)
	}
	if busy.Free {
		t.Fatal("expected interval to be busy")
	}
	if busy.Conflict == nil || busy.Conflict.EventID != result.Event.ID {
		t.Fatalf("expected conflict summary for %s, got %+v", result.Event.ID, busy.Conflict)
	}

	free, err := f.booking.CheckAvailability(context.Background(), "room-1",
		testReference.Add(2*time.Hour), testReference.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("availability check failed: %v", err)
	}
	if !free.Free {
		t.Fatal("adjacent interval should be free")
	}

	if _, err := f.booking.CheckAvailability(context.Background(), "room-x",
		testReference, testReference.Add(time.Hour)); !errors.Is(err, ErrUnknownRoom) {
		t.Fatalf("expected ErrUnknownRoom, got %v", err)
	}
}

func TestBookingService_Listings(t *testing.T) {
	f := newServiceFixture(t)

	early, err := f.book(t, "user-1", "room-1", "grp-2", 1, 2)
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	late, err := f.book(t, "user-1", "room-1", "grp-2", 4, 5)
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	dropped, err := f.book(t, "user-1", "room-1", "grp-2", 6, 7)
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	if _, err := f.booking.CancelEvent(context.Background(), CancelEventParams{
		EventID: dropped.Event.ID, RequesterID: "user-1",
	}); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	listed, err := f.booking.ListRoomEvents(context.Background(), "room-1", nil, nil, 0, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listed) != 2 || listed[0].ID != early.Event.ID || listed[1].ID != late.Event.ID {
		t.Fatalf("expected the two confirmed events in start order, got %+v", listed)
	}

	// With the clock between the two events, only the later one is upcoming.
	f.clock.Set(testReference.Add(3 * time.Hour))

	upcoming, err := f.booking.ListUpcomingByUser(context.Background(), "user-1", 0)
	if err != nil {
		t.Fatalf("upcoming by user failed: %v", err)
	}
	if len(upcoming) != 1 || upcoming[0].ID != late.Event.ID {
		t.Fatalf("expected one upcoming event, got %+v", upcoming)
	}

	byRoom, err := f.booking.ListUpcomingByRoom(context.Background(), "room-1", 0)
	if err != nil {
		t.Fatalf("upcoming by room failed: %v", err)
	}
	if len(byRoom) != 1 || byRoom[0].ID != late.Event.ID {
		t.Fatalf("expected one upcoming event, got %+v", byRoom)
	}
}

type failingPublisher struct{}

func (f *failingPublisher) Publish(context.Context, json.RawMessage, string) (int64, error) {
	return 0, errors.New("channel down")
}

type flakyEventStore struct {
	EventStore
	failures    int
	err         error
	createCalls int
}

func (f *flakyEventStore) CreateEvent(ctx context.Context, event persistence.Event) (persistence.Event, error) {
	f.createCalls++
	if f.createCalls <= f.failures {
		return persistence.Event{}, f.err
	}
	return f.EventStore.CreateEvent(ctx, event)
}
