package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/campus-booking/internal/booking"
	"github.com/example/campus-booking/internal/persistence"
)

// Store is an in-memory implementation of the persistence repositories. It
// backs tests and the demo wiring; the SQLite store is the durable option.
type Store struct {
	mu          sync.RWMutex
	users       map[string]persistence.User
	groups      map[string]persistence.Group
	memberships []persistence.Membership
	rooms       map[string]persistence.Room
	permissions map[string]persistence.Permission
	events      map[string]persistence.Event

	roomMu    sync.Mutex
	roomLocks map[string]*sync.Mutex
}

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		users:       make(map[string]persistence.User),
		groups:      make(map[string]persistence.Group),
		rooms:       make(map[string]persistence.Room),
		permissions: make(map[string]persistence.Permission),
		events:      make(map[string]persistence.Event),
		roomLocks:   make(map[string]*sync.Mutex),
	}
}

// roomLock returns the mutex serializing event writes for a single room.
// Writes for different rooms proceed in parallel.
func (s *Store) roomLock(roomID string) *sync.Mutex {
	s.roomMu.Lock()
	defer s.roomMu.Unlock()

	lock, ok := s.roomLocks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		s.roomLocks[roomID] = lock
	}
	return lock
}

func permissionKey(groupID, roomID string) string {
	return groupID + "\x00" + roomID
}

// --- DirectoryRepository implementation ---

// AddUser stores a user record, replacing any previous record with the same ID.
func (s *Store) AddUser(user persistence.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

// AddGroup stores a group record.
func (s *Store) AddGroup(group persistence.Group) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[group.ID] = group
}

// AddMembership links a user to a group.
func (s *Store) AddMembership(membership persistence.Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships = append(s.memberships, membership)
}

// AddRoom stores a room record.
func (s *Store) AddRoom(room persistence.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = cloneRoom(room)
}

// AddPermission stores a group-level grant on a room.
func (s *Store) AddPermission(permission persistence.Permission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissions[permissionKey(permission.GroupID, permission.RoomID)] = permission
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

// GetUserByEmail retrieves a user by email address, case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lower := strings.ToLower(email)
	for _, user := range s.users {
		if strings.ToLower(user.Email) == lower {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

// ListUsers returns all users ordered by ID.
func (s *Store) ListUsers(ctx context.Context) ([]persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]persistence.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// GetGroup retrieves a group by ID.
func (s *Store) GetGroup(ctx context.Context, id string) (persistence.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	group, ok := s.groups[id]
	if !ok {
		return persistence.Group{}, persistence.ErrNotFound
	}
	return group, nil
}

// ListMembershipsForUser returns the memberships of a user ordered by group ID.
func (s *Store) ListMembershipsForUser(ctx context.Context, userID string) ([]persistence.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []persistence.Membership
	for _, membership := range s.memberships {
		if membership.UserID == userID {
			out = append(out, membership)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupID < out[j].GroupID })
	return out, nil
}

// GetRoom retrieves a room by ID.
func (s *Store) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return persistence.Room{}, persistence.ErrNotFound
	}
	return cloneRoom(room), nil
}

// ListRooms returns all rooms ordered by name, then ID.
func (s *Store) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]persistence.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, cloneRoom(room))
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].Name == rooms[j].Name {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].Name < rooms[j].Name
	})
	return rooms, nil
}

// GetPermission retrieves the grant a group holds on a room.
func (s *Store) GetPermission(ctx context.Context, groupID, roomID string) (persistence.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	permission, ok := s.permissions[permissionKey(groupID, roomID)]
	if !ok {
		return persistence.Permission{}, persistence.ErrNotFound
	}
	return permission, nil
}

// ListPermissionsForGroup returns every grant held by a group ordered by room ID.
func (s *Store) ListPermissionsForGroup(ctx context.Context, groupID string) ([]persistence.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []persistence.Permission
	for _, permission := range s.permissions {
		if permission.GroupID == groupID {
			out = append(out, permission)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out, nil
}

// --- EventRepository implementation ---

// CreateEvent inserts a reservation after re-checking that the interval is
// free. The check and the insert run under the room's lock, so two racing
// creates for the same room cannot both observe a free interval.
func (s *Store) CreateEvent(ctx context.Context, event persistence.Event) (persistence.Event, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Event{}, err
	}

	lock := s.roomLock(event.RoomID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[event.ID]; ok {
		return persistence.Event{}, persistence.ErrDuplicate
	}
	if conflict, found := s.findConflictLocked(event.RoomID, event.Start, event.End, ""); found {
		return persistence.Event{}, conflict
	}

	s.events[event.ID] = event
	return event, nil
}

// GetEvent retrieves an event by ID, including cancelled ones.
func (s *Store) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[id]
	if !ok {
		return persistence.Event{}, persistence.ErrNotFound
	}
	return event, nil
}

// UpdateEvent rewrites an event. When the updated event is confirmed, the
// interval is re-checked against other confirmed events under the room lock.
func (s *Store) UpdateEvent(ctx context.Context, event persistence.Event) (persistence.Event, error) {
	if err := ctx.Err(); err != nil {
		return persistence.Event{}, err
	}

	lock := s.roomLock(event.RoomID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.events[event.ID]
	if !ok {
		return persistence.Event{}, persistence.ErrNotFound
	}

	if event.Status == persistence.EventStatusConfirmed {
		if conflict, found := s.findConflictLocked(event.RoomID, event.Start, event.End, event.ID); found {
			return persistence.Event{}, conflict
		}
	}

	event.CreatedAt = existing.CreatedAt
	s.events[event.ID] = event
	return event, nil
}

// ListEvents returns events matching the filter ordered by start time.
func (s *Store) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []persistence.Event
	for _, event := range s.events {
		if matchesFilter(event, filter) {
			out = append(out, event)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// FirstOverlapping returns the earliest confirmed event overlapping the given
// half-open interval, or ErrNotFound when the interval is free.
func (s *Store) FirstOverlapping(ctx context.Context, roomID string, start, end time.Time, excludeEventID string) (persistence.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *persistence.Event
	candidate := booking.Interval{Start: start, End: end}
	for _, event := range s.events {
		if event.RoomID != roomID || event.Status != persistence.EventStatusConfirmed {
			continue
		}
		if excludeEventID != "" && event.ID == excludeEventID {
			continue
		}
		if !candidate.Overlaps(booking.Interval{Start: event.Start, End: event.End}) {
			continue
		}
		if best == nil || event.Start.Before(best.Start) {
			clone := event
			best = &clone
		}
	}
	if best == nil {
		return persistence.Event{}, persistence.ErrNotFound
	}
	return *best, nil
}

func (s *Store) findConflictLocked(roomID string, start, end time.Time, excludeEventID string) (*persistence.ConflictError, bool) {
	entries := make([]booking.Entry, 0)
	ids := make([]string, 0, len(s.events))
	for id := range s.events {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		event := s.events[id]
		if event.RoomID != roomID || event.Status != persistence.EventStatusConfirmed {
			continue
		}
		entries = append(entries, booking.Entry{
			EventID:  event.ID,
			Interval: booking.Interval{Start: event.Start, End: event.End},
		})
	}

	conflict, found := booking.FindConflict(entries, booking.Interval{Start: start, End: end}, excludeEventID)
	if !found {
		return nil, false
	}
	return &persistence.ConflictError{
		EventID: conflict.EventID,
		Start:   conflict.Interval.Start,
		End:     conflict.Interval.End,
	}, true
}

func matchesFilter(event persistence.Event, filter persistence.EventFilter) bool {
	if filter.RoomID != "" && event.RoomID != filter.RoomID {
		return false
	}
	if filter.OrganizerID != "" && event.OrganizerID != filter.OrganizerID {
		return false
	}
	if filter.From != nil && !event.End.After(*filter.From) {
		return false
	}
	if filter.Until != nil && !event.Start.Before(*filter.Until) {
		return false
	}
	if len(filter.Statuses) > 0 {
		matched := false
		for _, status := range filter.Statuses {
			if event.Status == status {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func cloneRoom(room persistence.Room) persistence.Room {
	equipment := make([]string, len(room.Equipment))
	copy(equipment, room.Equipment)
	room.Equipment = equipment
	return room
}
