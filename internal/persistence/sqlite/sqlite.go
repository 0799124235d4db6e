package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/campus-booking/internal/persistence"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection with transaction helpers used by the
// repositories. The modernc driver is pure Go; a single connection pool is
// shared by all repositories.
type DB struct {
	db *sql.DB
}

// Open opens the SQLite database at the given DSN and verifies the
// connection.
func Open(ctx context.Context, dsn string) (*DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlite: empty DSN")
	}

	// Writers from other processes on the same file wait for the lock
	// instead of failing with SQLITE_BUSY.
	if !strings.Contains(dsn, "busy_timeout") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// SQLite allows one writer at a time. A single pooled connection
	// serializes the check-then-insert transactions of racing writers at
	// the database/sql level, so losers see the in-transaction conflict
	// re-check, never SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	return &DB{db: db}, nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// WithTransaction runs fn inside a transaction, rolling back when fn returns
// an error and committing otherwise. The conflict re-check performed by the
// event repository relies on this: check and write share one transaction.
func (d *DB) WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin transaction: %w", mapError(err))
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("sqlite: transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", mapError(err))
	}
	return nil
}

// mapError translates driver errors into persistence sentinel errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.ErrNotFound
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return persistence.ErrDuplicate
	case strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked"):
		return persistence.ErrBusy
	case strings.Contains(msg, "constraint failed"):
		return persistence.ErrConstraint
	}
	return err
}

// formatTime encodes a timestamp for storage. Columns hold second-precision
// RFC3339 UTC strings, so lexicographic comparison in SQL matches
// chronological order. Sub-second precision is deliberately dropped: variable
// fraction lengths would break the string ordering the overlap query relies on.
func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("sqlite: parse time %q: %w", value, err)
	}
	return t.UTC(), nil
}
