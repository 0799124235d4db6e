package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/example/campus-booking/internal/persistence"
)

// EventRepository implements persistence.EventRepository over SQLite. The
// conflict re-check and the write share one transaction, and the connection
// pool holds a single connection, so racing check-then-insert transactions
// run one after another and losers observe the winner's row.
type EventRepository struct {
	db *DB
}

// NewEventRepository wires an event repository onto the shared connection.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = "id, room_id, title, description, start_time, end_time, organizer_id, group_id, status, created_at, updated_at"

// CreateEvent inserts a reservation after re-checking the interval inside
// the insert transaction.
func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event) (persistence.Event, error) {
	err := r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if conflict := findConflictTx(ctx, tx, event.RoomID, event.Start, event.End, ""); conflict != nil {
			return conflict
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO events (`+eventColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			event.ID, event.RoomID, event.Title, event.Description,
			formatTime(event.Start), formatTime(event.End),
			event.OrganizerID, event.GroupID, string(event.Status),
			formatTime(event.CreatedAt), formatTime(event.UpdatedAt))
		return mapError(err)
	})
	if err != nil {
		return persistence.Event{}, err
	}
	return r.GetEvent(ctx, event.ID)
}

// GetEvent retrieves an event by ID, including cancelled ones.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	row := r.db.db.QueryRowContext(ctx,
		"SELECT "+eventColumns+" FROM events WHERE id = ?", id)
	return scanEvent(row)
}

// UpdateEvent rewrites an event. When the updated event is confirmed, the
// interval is re-checked against other confirmed events, excluding itself,
// inside the update transaction.
func (r *EventRepository) UpdateEvent(ctx context.Context, event persistence.Event) (persistence.Event, error) {
	err := r.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT 1 FROM events WHERE id = ?", event.ID).Scan(&exists); err != nil {
			return mapError(err)
		}

		if event.Status == persistence.EventStatusConfirmed {
			if conflict := findConflictTx(ctx, tx, event.RoomID, event.Start, event.End, event.ID); conflict != nil {
				return conflict
			}
		}

		_, err := tx.ExecContext(ctx,
			`UPDATE events
			 SET title = ?, description = ?, start_time = ?, end_time = ?, status = ?, updated_at = ?
			 WHERE id = ?`,
			event.Title, event.Description,
			formatTime(event.Start), formatTime(event.End),
			string(event.Status), formatTime(event.UpdatedAt), event.ID)
		return mapError(err)
	})
	if err != nil {
		return persistence.Event{}, err
	}
	return r.GetEvent(ctx, event.ID)
}

// ListEvents returns events matching the filter ordered by start time.
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	query := strings.Builder{}
	query.WriteString("SELECT " + eventColumns + " FROM events WHERE 1=1")
	args := make([]any, 0, 6)

	if filter.RoomID != "" {
		query.WriteString(" AND room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.OrganizerID != "" {
		query.WriteString(" AND organizer_id = ?")
		args = append(args, filter.OrganizerID)
	}
	if filter.From != nil {
		query.WriteString(" AND end_time > ?")
		args = append(args, formatTime(*filter.From))
	}
	if filter.Until != nil {
		query.WriteString(" AND start_time < ?")
		args = append(args, formatTime(*filter.Until))
	}
	if len(filter.Statuses) > 0 {
		query.WriteString(" AND status IN (?" + strings.Repeat(", ?", len(filter.Statuses)-1) + ")")
		for _, status := range filter.Statuses {
			args = append(args, string(status))
		}
	}

	query.WriteString(" ORDER BY start_time, id")
	if filter.Limit > 0 {
		query.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query.WriteString(" OFFSET ?")
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var events []persistence.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// FirstOverlapping returns the earliest confirmed event overlapping the given
// half-open interval, or ErrNotFound when the interval is free.
func (r *EventRepository) FirstOverlapping(ctx context.Context, roomID string, start, end time.Time, excludeEventID string) (persistence.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events
		WHERE room_id = ? AND status = 'confirmed' AND start_time < ? AND end_time > ?`
	args := []any{roomID, formatTime(end), formatTime(start)}
	if excludeEventID != "" {
		query += " AND id != ?"
		args = append(args, excludeEventID)
	}
	query += " ORDER BY start_time LIMIT 1"

	row := r.db.db.QueryRowContext(ctx, query, args...)
	return scanEvent(row)
}

// findConflictTx runs the overlap query inside the caller's transaction and
// returns a ConflictError when a confirmed event occupies the interval.
func findConflictTx(ctx context.Context, tx *sql.Tx, roomID string, start, end time.Time, excludeEventID string) error {
	query := `SELECT id, start_time, end_time FROM events
		WHERE room_id = ? AND status = 'confirmed' AND start_time < ? AND end_time > ?`
	args := []any{roomID, formatTime(end), formatTime(start)}
	if excludeEventID != "" {
		query += " AND id != ?"
		args = append(args, excludeEventID)
	}
	query += " ORDER BY start_time LIMIT 1"

	var id, startRaw, endRaw string
	err := tx.QueryRowContext(ctx, query, args...).Scan(&id, &startRaw, &endRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return mapError(err)
	}

	conflictStart, err := parseTime(startRaw)
	if err != nil {
		return err
	}
	conflictEnd, err := parseTime(endRaw)
	if err != nil {
		return err
	}
	return &persistence.ConflictError{EventID: id, Start: conflictStart, End: conflictEnd}
}

func scanEvent(row rowScanner) (persistence.Event, error) {
	var event persistence.Event
	var status, startRaw, endRaw, createdAt, updatedAt string
	if err := row.Scan(&event.ID, &event.RoomID, &event.Title, &event.Description,
		&startRaw, &endRaw, &event.OrganizerID, &event.GroupID, &status, &createdAt, &updatedAt); err != nil {
		return persistence.Event{}, mapError(err)
	}
	event.Status = persistence.EventStatus(status)

	var err error
	if event.Start, err = parseTime(startRaw); err != nil {
		return persistence.Event{}, err
	}
	if event.End, err = parseTime(endRaw); err != nil {
		return persistence.Event{}, err
	}
	if event.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Event{}, err
	}
	if event.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Event{}, err
	}
	return event, nil
}
