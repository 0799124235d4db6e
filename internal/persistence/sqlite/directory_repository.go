package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/campus-booking/internal/persistence"
)

// DirectoryRepository implements persistence.DirectoryRepository over SQLite.
type DirectoryRepository struct {
	db *DB
}

// NewDirectoryRepository wires a directory repository onto the shared
// connection.
func NewDirectoryRepository(db *DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

const userColumns = "id, display_name, email, department_id, created_at, updated_at"

// GetUser retrieves a user by ID.
func (r *DirectoryRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	row := r.db.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return scanUser(row)
}

// GetUserByEmail retrieves a user by email address, case-insensitively.
func (r *DirectoryRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	row := r.db.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE lower(email) = lower(?)", strings.TrimSpace(email))
	return scanUser(row)
}

// ListUsers returns all users ordered by ID.
func (r *DirectoryRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	rows, err := r.db.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// GetGroup retrieves a group by ID.
func (r *DirectoryRepository) GetGroup(ctx context.Context, id string) (persistence.Group, error) {
	row := r.db.db.QueryRowContext(ctx,
		"SELECT id, name, code, type, created_at, updated_at FROM groups WHERE id = ?", id)

	var group persistence.Group
	var createdAt, updatedAt string
	if err := row.Scan(&group.ID, &group.Name, &group.Code, &group.Type, &createdAt, &updatedAt); err != nil {
		return persistence.Group{}, mapError(err)
	}
	var err error
	if group.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Group{}, err
	}
	if group.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Group{}, err
	}
	return group, nil
}

// ListMembershipsForUser returns the memberships of a user ordered by group ID.
func (r *DirectoryRepository) ListMembershipsForUser(ctx context.Context, userID string) ([]persistence.Membership, error) {
	rows, err := r.db.db.QueryContext(ctx,
		"SELECT user_id, group_id, role FROM memberships WHERE user_id = ? ORDER BY group_id", userID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var memberships []persistence.Membership
	for rows.Next() {
		var membership persistence.Membership
		if err := rows.Scan(&membership.UserID, &membership.GroupID, &membership.Role); err != nil {
			return nil, mapError(err)
		}
		memberships = append(memberships, membership)
	}
	return memberships, rows.Err()
}

const roomColumns = "id, name, capacity, type, equipment, created_at, updated_at"

// GetRoom retrieves a room by ID.
func (r *DirectoryRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	row := r.db.db.QueryRowContext(ctx,
		"SELECT "+roomColumns+" FROM rooms WHERE id = ?", id)
	return scanRoom(row)
}

// ListRooms returns all rooms ordered by name, then ID.
func (r *DirectoryRepository) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	rows, err := r.db.db.QueryContext(ctx,
		"SELECT "+roomColumns+" FROM rooms ORDER BY name, id")
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var rooms []persistence.Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// GetPermission retrieves the grant a group holds on a room.
func (r *DirectoryRepository) GetPermission(ctx context.Context, groupID, roomID string) (persistence.Permission, error) {
	row := r.db.db.QueryRowContext(ctx,
		"SELECT group_id, room_id, can_book, can_view FROM permissions WHERE group_id = ? AND room_id = ?",
		groupID, roomID)

	var permission persistence.Permission
	if err := row.Scan(&permission.GroupID, &permission.RoomID, &permission.CanBook, &permission.CanView); err != nil {
		return persistence.Permission{}, mapError(err)
	}
	return permission, nil
}

// ListPermissionsForGroup returns every grant held by a group ordered by room ID.
func (r *DirectoryRepository) ListPermissionsForGroup(ctx context.Context, groupID string) ([]persistence.Permission, error) {
	rows, err := r.db.db.QueryContext(ctx,
		"SELECT group_id, room_id, can_book, can_view FROM permissions WHERE group_id = ? ORDER BY room_id", groupID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var permissions []persistence.Permission
	for rows.Next() {
		var permission persistence.Permission
		if err := rows.Scan(&permission.GroupID, &permission.RoomID, &permission.CanBook, &permission.CanView); err != nil {
			return nil, mapError(err)
		}
		permissions = append(permissions, permission)
	}
	return permissions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (persistence.User, error) {
	var user persistence.User
	var createdAt, updatedAt string
	if err := row.Scan(&user.ID, &user.DisplayName, &user.Email, &user.DepartmentID, &createdAt, &updatedAt); err != nil {
		return persistence.User{}, mapError(err)
	}
	var err error
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}

func scanRoom(row rowScanner) (persistence.Room, error) {
	var room persistence.Room
	var equipment, createdAt, updatedAt string
	if err := row.Scan(&room.ID, &room.Name, &room.Capacity, &room.Type, &equipment, &createdAt, &updatedAt); err != nil {
		return persistence.Room{}, mapError(err)
	}
	if equipment != "" {
		if err := json.Unmarshal([]byte(equipment), &room.Equipment); err != nil {
			return persistence.Room{}, fmt.Errorf("sqlite: decode equipment for room %s: %w", room.ID, err)
		}
	}
	var err error
	if room.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Room{}, err
	}
	if room.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Room{}, err
	}
	return room, nil
}

// Seed inserts directory records, skipping rows that already exist. It is
// used by deployment bootstrap; the directory has no write API.
func (r *DirectoryRepository) Seed(ctx context.Context, users []persistence.User, groups []persistence.Group, memberships []persistence.Membership, rooms []persistence.Room, permissions []persistence.Permission) error {
	return r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, user := range users {
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO users (id, display_name, email, department_id, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				user.ID, user.DisplayName, user.Email, user.DepartmentID,
				formatTime(user.CreatedAt), formatTime(user.UpdatedAt))
			if err != nil {
				return mapError(err)
			}
		}
		for _, group := range groups {
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO groups (id, name, code, type, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				group.ID, group.Name, group.Code, string(group.Type),
				formatTime(group.CreatedAt), formatTime(group.UpdatedAt))
			if err != nil {
				return mapError(err)
			}
		}
		for _, membership := range memberships {
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO memberships (user_id, group_id, role) VALUES (?, ?, ?)`,
				membership.UserID, membership.GroupID, membership.Role)
			if err != nil {
				return mapError(err)
			}
		}
		for _, room := range rooms {
			equipment, err := json.Marshal(room.Equipment)
			if err != nil {
				return fmt.Errorf("sqlite: encode equipment for room %s: %w", room.ID, err)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO rooms (id, name, capacity, type, equipment, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				room.ID, room.Name, room.Capacity, room.Type, string(equipment),
				formatTime(room.CreatedAt), formatTime(room.UpdatedAt))
			if err != nil {
				return mapError(err)
			}
		}
		for _, permission := range permissions {
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO permissions (group_id, room_id, can_book, can_view) VALUES (?, ?, ?, ?)`,
				permission.GroupID, permission.RoomID, permission.CanBook, permission.CanView)
			if err != nil {
				return mapError(err)
			}
		}
		return nil
	})
}
