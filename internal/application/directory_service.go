package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/example/campus-booking/internal/persistence"
)

// Directory captures the directory reads needed by the services.
type Directory interface {
	GetUser(ctx context.Context, id string) (persistence.User, error)
	GetGroup(ctx context.Context, id string) (persistence.Group, error)
	ListMembershipsForUser(ctx context.Context, userID string) ([]persistence.Membership, error)
	GetRoom(ctx context.Context, id string) (persistence.Room, error)
	ListRooms(ctx context.Context) ([]persistence.Room, error)
	GetPermission(ctx context.Context, groupID, roomID string) (persistence.Permission, error)
	ListPermissionsForGroup(ctx context.Context, groupID string) ([]persistence.Permission, error)
}

// DirectoryService answers permission questions and directory reads. It is
// the only place group membership is consulted for authorization.
type DirectoryService struct {
	directory Directory
	logger    *slog.Logger
}

// NewDirectoryService wires dependencies for directory operations.
func NewDirectoryService(directory Directory, logger *slog.Logger) *DirectoryService {
	return &DirectoryService{directory: directory, logger: defaultLogger(logger)}
}

// Authorize decides whether actorID may book roomID. It collects every group
// that grants can_book on the room; when more than one qualifies the caller
// must pick, so the full eligible list is returned rather than a silent
// first match.
func (s *DirectoryService) Authorize(ctx context.Context, actorID, roomID string) (Authorization, error) {
	if s == nil || s.directory == nil {
		return Authorization{}, fmt.Errorf("directory not configured")
	}

	logger := serviceLogger(ctx, s.logger, "directory", "authorize", "actor_id", actorID, "room_id", roomID)

	if _, err := s.directory.GetUser(ctx, actorID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Authorization{}, ErrUnknownActor
		}
		return Authorization{}, mapDeadline(err)
	}
	if _, err := s.directory.GetRoom(ctx, roomID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Authorization{}, ErrUnknownRoom
		}
		return Authorization{}, mapDeadline(err)
	}

	memberships, err := s.directory.ListMembershipsForUser(ctx, actorID)
	if err != nil {
		return Authorization{}, mapDeadline(err)
	}

	eligible := make([]string, 0, len(memberships))
	for _, membership := range memberships {
		grant, err := s.directory.GetPermission(ctx, membership.GroupID, roomID)
		if err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				continue
			}
			return Authorization{}, mapDeadline(err)
		}
		if grant.CanBook {
			eligible = append(eligible, membership.GroupID)
		}
	}
	sort.Strings(eligible)

	if len(eligible) == 0 {
		logger.Info("booking denied", "reason", "no eligible group")
		return Authorization{
			Allowed: false,
			Reason:  "no group of the actor grants booking on this room",
		}, nil
	}

	return Authorization{Allowed: true, EligibleGroupIDs: eligible}, nil
}

// ListUserGroups returns the groups actorID belongs to. When includeRooms is
// set, each group carries the rooms its grants cover.
func (s *DirectoryService) ListUserGroups(ctx context.Context, actorID string, includeRooms bool) ([]GroupSummary, error) {
	if s == nil || s.directory == nil {
		return nil, fmt.Errorf("directory not configured")
	}

	if _, err := s.directory.GetUser(ctx, actorID); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return nil, ErrUnknownActor
		}
		return nil, mapDeadline(err)
	}

	memberships, err := s.directory.ListMembershipsForUser(ctx, actorID)
	if err != nil {
		return nil, mapDeadline(err)
	}

	summaries := make([]GroupSummary, 0, len(memberships))
	for _, membership := range memberships {
		group, err := s.directory.GetGroup(ctx, membership.GroupID)
		if err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				continue
			}
			return nil, mapDeadline(err)
		}

		summary := GroupSummary{Group: toGroup(group)}
		if includeRooms {
			grants, err := s.directory.ListPermissionsForGroup(ctx, group.ID)
			if err != nil {
				return nil, mapDeadline(err)
			}
			summary.Rooms = s.buildRoomGrants(ctx, grants)
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	return summaries, nil
}

// ListRooms returns every room in the directory ordered by identifier.
func (s *DirectoryService) ListRooms(ctx context.Context) ([]Room, error) {
	if s == nil || s.directory == nil {
		return nil, fmt.Errorf("directory not configured")
	}

	rooms, err := s.directory.ListRooms(ctx)
	if err != nil {
		return nil, mapDeadline(err)
	}

	out := make([]Room, 0, len(rooms))
	for _, room := range rooms {
		out = append(out, toRoom(room))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *DirectoryService) buildRoomGrants(ctx context.Context, grants []persistence.Permission) []RoomGrant {
	out := make([]RoomGrant, 0, len(grants))
	for _, grant := range grants {
		entry := RoomGrant{RoomID: grant.RoomID, CanBook: grant.CanBook, CanView: grant.CanView}
		if room, err := s.directory.GetRoom(ctx, grant.RoomID); err == nil {
			entry.RoomName = room.Name
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}

func toGroup(group persistence.Group) Group {
	return Group{ID: group.ID, Name: group.Name, Code: group.Code, Type: string(group.Type)}
}

func toRoom(room persistence.Room) Room {
	equipment := make([]string, len(room.Equipment))
	copy(equipment, room.Equipment)
	if len(equipment) == 0 {
		equipment = nil
	}
	return Room{ID: room.ID, Name: room.Name, Capacity: room.Capacity, Type: room.Type, Equipment: equipment}
}
