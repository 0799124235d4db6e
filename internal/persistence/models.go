package persistence

import "time"

// User represents a directory account that may act as a booking organizer.
type User struct {
	ID           string
	DisplayName  string
	Email        string
	DepartmentID string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GroupType classifies the organizational unit a group represents.
type GroupType string

const (
	GroupTypeDepartment GroupType = "department"
	GroupTypeClub       GroupType = "club"
	GroupTypeSociety    GroupType = "society"
)

// Group is the authorization unit through which room booking is granted.
type Group struct {
	ID        string
	Name      string
	Code      string
	Type      GroupType
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Membership links a user to a group with a role inside that group.
type Membership struct {
	UserID  string
	GroupID string
	Role    string
}

// Room is a bookable resource keyed by a stable string identifier.
type Room struct {
	ID        string
	Name      string
	Capacity  int
	Type      string
	Equipment []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Permission is a group-level grant on a room. Authorization is always
// mediated through a group, never directly by user.
type Permission struct {
	GroupID string
	RoomID  string
	CanBook bool
	CanView bool
}

// EventStatus tracks the reservation lifecycle. Cancelled events are kept
// for audit history and never conflict.
type EventStatus string

const (
	EventStatusConfirmed EventStatus = "confirmed"
	EventStatusCancelled EventStatus = "cancelled"
)

// Event is a durable reservation record. OrganizerID and GroupID together
// form the canonical organizer identity; display attributes are joined from
// the directory at read time.
type Event struct {
	ID          string
	RoomID      string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	OrganizerID string
	GroupID     string
	Status      EventStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
