package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		display_name  TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE,
		department_id TEXT NOT NULL DEFAULT '',
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS groups (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		code       TEXT NOT NULL UNIQUE,
		type       TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS memberships (
		user_id  TEXT NOT NULL REFERENCES users(id),
		group_id TEXT NOT NULL REFERENCES groups(id),
		role     TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (user_id, group_id)
	)`,
	`CREATE TABLE IF NOT EXISTS rooms (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		capacity   INTEGER NOT NULL,
		type       TEXT NOT NULL DEFAULT '',
		equipment  TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS permissions (
		group_id TEXT NOT NULL REFERENCES groups(id),
		room_id  TEXT NOT NULL REFERENCES rooms(id),
		can_book INTEGER NOT NULL DEFAULT 0,
		can_view INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (group_id, room_id)
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id           TEXT PRIMARY KEY,
		room_id      TEXT NOT NULL REFERENCES rooms(id),
		title        TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		start_time   TEXT NOT NULL,
		end_time     TEXT NOT NULL,
		organizer_id TEXT NOT NULL REFERENCES users(id),
		group_id     TEXT NOT NULL REFERENCES groups(id),
		status       TEXT NOT NULL DEFAULT 'confirmed',
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL,
		CHECK (start_time < end_time)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_room_start
		ON events (room_id, start_time) WHERE status = 'confirmed'`,
	`CREATE TABLE IF NOT EXISTS channel_messages (
		version      INTEGER PRIMARY KEY AUTOINCREMENT,
		payload      TEXT NOT NULL,
		producer_tag TEXT NOT NULL,
		published_at TEXT NOT NULL
	)`,
}

// Migrate applies the schema inside a single transaction. Statements are
// idempotent, so re-running on startup is safe.
func (d *DB) Migrate(ctx context.Context) error {
	return d.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("sqlite: apply schema: %w", err)
			}
		}
		return nil
	})
}
