package application

import "time"

// Room describes a bookable room as returned to callers.
type Room struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Capacity  int      `json:"capacity"`
	Type      string   `json:"type"`
	Equipment []string `json:"equipment,omitempty"`
}

// Group describes an authorization group as returned to callers.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
	Type string `json:"type"`
}

// RoomGrant summarizes a group's booking rights on a room.
type RoomGrant struct {
	RoomID   string `json:"room_id"`
	RoomName string `json:"room_name"`
	CanBook  bool   `json:"can_book"`
	CanView  bool   `json:"can_view"`
}

// GroupSummary pairs a group with the rooms it may book. Rooms are populated
// only when the caller asks for them.
type GroupSummary struct {
	Group
	Rooms []RoomGrant `json:"rooms,omitempty"`
}

// Event is the reservation record exposed to callers. OrganizerName is a
// read time denormalization from the directory; the canonical organizer
// identity is OrganizerID plus GroupID.
type Event struct {
	ID            string    `json:"id"`
	RoomID        string    `json:"room_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	OrganizerID   string    `json:"organizer_id"`
	OrganizerName string    `json:"organizer_name,omitempty"`
	GroupID       string    `json:"group_id"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Authorization is the permission resolver's answer for (actor, room).
// EligibleGroupIDs carries every group granting can_book so callers can
// disambiguate when the actor qualifies through more than one.
type Authorization struct {
	Allowed          bool     `json:"allowed"`
	EligibleGroupIDs []string `json:"eligible_group_ids,omitempty"`
	Reason           string   `json:"reason,omitempty"`
}

// ConflictSummary identifies the confirmed event blocking an interval.
type ConflictSummary struct {
	EventID string    `json:"event_id"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

// Availability reports whether an interval is free on a room.
type Availability struct {
	Free     bool             `json:"available"`
	Conflict *ConflictSummary `json:"conflict,omitempty"`
}

// NotificationStatus tells the caller whether the channel publish for a
// write succeeded and under which version.
type NotificationStatus struct {
	Delivered bool  `json:"delivered"`
	Version   int64 `json:"version,omitempty"`
}

// BookingResult bundles the created event with the notification outcome.
type BookingResult struct {
	Event        Event              `json:"event"`
	Notification NotificationStatus `json:"notification"`
}

// BookParams carries a booking request.
type BookParams struct {
	ActorID     string
	RoomID      string
	GroupID     string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
}

// UpdateEventParams patches an existing event. Nil fields are left unchanged.
type UpdateEventParams struct {
	EventID     string
	RequesterID string
	Title       *string
	Description *string
	Start       *time.Time
	End         *time.Time
}

// CancelEventParams identifies the event to cancel and who is asking.
type CancelEventParams struct {
	EventID     string
	RequesterID string
}
