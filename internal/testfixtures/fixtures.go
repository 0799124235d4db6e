// Package testfixtures provides deterministic builders for directory and
// event records used across the persistence and service test suites.
package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/campus-booking/internal/persistence"
)

var (
	userCounter  uint64
	groupCounter uint64
	roomCounter  uint64
	eventCounter uint64
)

var referenceTime = time.Date(2026, time.March, 9, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserOption configures a generated user record.
type UserOption func(*persistence.User)

// NewUser returns a deterministic user record with optional overrides.
func NewUser(opts ...UserOption) persistence.User {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	user := persistence.User{
		ID:          id,
		DisplayName: fmt.Sprintf("User %03d", idx),
		Email:       fmt.Sprintf("%s@campus.test", id),
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	for _, opt := range opts {
		opt(&user)
	}
	return user
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(u *persistence.User) { u.ID = id }
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(u *persistence.User) { u.Email = email }
}

// WithUserDisplayName overrides the generated display name.
func WithUserDisplayName(name string) UserOption {
	return func(u *persistence.User) { u.DisplayName = name }
}

// ----------------------------- Group fixtures ----------------------------

// GroupOption configures a generated group record.
type GroupOption func(*persistence.Group)

// NewGroup returns a deterministic group record with optional overrides.
func NewGroup(opts ...GroupOption) persistence.Group {
	idx := atomic.AddUint64(&groupCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	group := persistence.Group{
		ID:        fmt.Sprintf("grp-%03d", idx),
		Name:      fmt.Sprintf("Group %03d", idx),
		Code:      fmt.Sprintf("G%03d", idx),
		Type:      persistence.GroupTypeClub,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&group)
	}
	return group
}

// WithGroupID overrides the generated group ID.
func WithGroupID(id string) GroupOption {
	return func(g *persistence.Group) { g.ID = id }
}

// WithGroupCode overrides the generated group code.
func WithGroupCode(code string) GroupOption {
	return func(g *persistence.Group) { g.Code = code }
}

// WithGroupType sets the group type.
func WithGroupType(t persistence.GroupType) GroupOption {
	return func(g *persistence.Group) { g.Type = t }
}

// ----------------------------- Room fixtures -----------------------------

// RoomOption configures a generated room record.
type RoomOption func(*persistence.Room)

// NewRoom returns a deterministic room record with optional overrides.
func NewRoom(opts ...RoomOption) persistence.Room {
	idx := atomic.AddUint64(&roomCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Hour)
	room := persistence.Room{
		ID:        fmt.Sprintf("room-%03d", idx),
		Name:      fmt.Sprintf("Room %03d", idx),
		Capacity:  int(8 + idx%24),
		Type:      "seminar",
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&room)
	}
	return room
}

// WithRoomID overrides the generated room ID.
func WithRoomID(id string) RoomOption {
	return func(r *persistence.Room) { r.ID = id }
}

// WithRoomCapacity overrides the generated capacity.
func WithRoomCapacity(capacity int) RoomOption {
	return func(r *persistence.Room) { r.Capacity = capacity }
}

// WithRoomEquipment sets the equipment tags.
func WithRoomEquipment(equipment ...string) RoomOption {
	return func(r *persistence.Room) {
		r.Equipment = append([]string(nil), equipment...)
	}
}

// ----------------------------- Event fixtures ----------------------------

// EventOption configures a generated event record.
type EventOption func(*persistence.Event)

// NewEvent returns a deterministic confirmed event with optional overrides.
// Successive events are placed in consecutive hour slots so they never
// conflict unless a test moves them.
func NewEvent(opts ...EventOption) persistence.Event {
	idx := atomic.AddUint64(&eventCounter, 1)
	start := referenceTime.Add(time.Duration(idx) * time.Hour)
	event := persistence.Event{
		ID:          fmt.Sprintf("event-%03d", idx),
		RoomID:      "room-001",
		Title:       fmt.Sprintf("Event %03d", idx),
		Start:       start,
		End:         start.Add(time.Hour),
		OrganizerID: "user-001",
		GroupID:     "grp-001",
		Status:      persistence.EventStatusConfirmed,
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&event)
	}
	return event
}

// WithEventID overrides the generated event ID.
func WithEventID(id string) EventOption {
	return func(e *persistence.Event) { e.ID = id }
}

// WithEventRoom sets the room the event occupies.
func WithEventRoom(roomID string) EventOption {
	return func(e *persistence.Event) { e.RoomID = roomID }
}

// WithEventOrganizer sets the organizer identity.
func WithEventOrganizer(userID, groupID string) EventOption {
	return func(e *persistence.Event) {
		e.OrganizerID = userID
		e.GroupID = groupID
	}
}

// WithEventInterval sets the start and end times.
func WithEventInterval(start, end time.Time) EventOption {
	return func(e *persistence.Event) {
		e.Start = start
		e.End = end
	}
}

// WithEventStatus sets the lifecycle status.
func WithEventStatus(status persistence.EventStatus) EventOption {
	return func(e *persistence.Event) { e.Status = status }
}
