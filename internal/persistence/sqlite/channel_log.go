package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/campus-booking/internal/notify"
)

// ChannelLog implements the notification channel on top of the
// channel_messages table. Unlike the in-memory mailbox it keeps every
// published message: the AUTOINCREMENT primary key doubles as the
// strictly increasing channel version, and Poll reads only the newest
// row so consumers still observe skip-ahead semantics.
type ChannelLog struct {
	db  *DB
	now func() time.Time
}

// NewChannelLog returns a channel backed by db.
func NewChannelLog(db *DB) *ChannelLog {
	return &ChannelLog{db: db, now: time.Now}
}

// Publish appends a message and returns its assigned version.
func (c *ChannelLog) Publish(ctx context.Context, payload json.RawMessage, producerTag string) (int64, error) {
	var version int64
	err := c.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO channel_messages (payload, producer_tag, published_at) VALUES (?, ?, ?)`,
			string(payload), producerTag, formatTime(c.now()),
		)
		if err != nil {
			return fmt.Errorf("insert channel message: %w", err)
		}
		version, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("read channel version: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// Poll returns the newest message, or nil when the channel holds nothing
// newer than sinceVersion.
func (c *ChannelLog) Poll(ctx context.Context, sinceVersion int64) (*notify.Message, error) {
	row := c.db.db.QueryRowContext(ctx,
		`SELECT version, payload, producer_tag, published_at
		   FROM channel_messages
		  ORDER BY version DESC
		  LIMIT 1`,
	)

	var (
		msg         notify.Message
		payload     string
		publishedAt string
	)
	if err := row.Scan(&msg.Version, &payload, &msg.ProducerTag, &publishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query channel message: %w", err)
	}
	if msg.Version <= sinceVersion {
		return nil, nil
	}

	ts, err := parseTime(publishedAt)
	if err != nil {
		return nil, fmt.Errorf("parse published_at: %w", err)
	}
	msg.Payload = json.RawMessage(payload)
	msg.PublishedAt = ts
	return &msg, nil
}
