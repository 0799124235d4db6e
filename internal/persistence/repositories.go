package persistence

import (
	"context"
	"time"
)

// DirectoryRepository exposes read operations over users, groups,
// memberships, rooms, and permission grants. The directory is read-mostly;
// implementations only need read consistency, not write serialization.
type DirectoryRepository interface {
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	GetGroup(ctx context.Context, id string) (Group, error)
	ListMembershipsForUser(ctx context.Context, userID string) ([]Membership, error)
	GetRoom(ctx context.Context, id string) (Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
	GetPermission(ctx context.Context, groupID, roomID string) (Permission, error)
	ListPermissionsForGroup(ctx context.Context, groupID string) ([]Permission, error)
}

// EventFilter narrows event queries. From and Until select events whose
// interval overlaps the half-open window [From, Until).
type EventFilter struct {
	RoomID      string
	OrganizerID string
	From        *time.Time
	Until       *time.Time
	Statuses    []EventStatus
	Limit       int
	Offset      int
}

// EventRepository stores reservation records.
//
// CreateEvent and UpdateEvent re-run conflict detection against confirmed
// events for the target room inside the same critical section as the write,
// returning *ConflictError when the interval is taken. UpdateEvent excludes
// the event being written from its own conflict set. Events are never
// physically deleted; cancellation flips Status to cancelled.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) (Event, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	UpdateEvent(ctx context.Context, event Event) (Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	FirstOverlapping(ctx context.Context, roomID string, start, end time.Time, excludeEventID string) (Event, error)
}
