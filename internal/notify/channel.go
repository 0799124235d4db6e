// Package notify implements the inter-service notification channel: a
// single logical mailbox holding the most recent message under a strictly
// increasing version. Producers publish best-effort; consumers poll at a
// bounded interval and act only when the version advances. Delivery is
// at-least-once for the newest message; a consumer polling slower than the
// publish rate skips intermediate messages by design.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Message is one published payload together with its channel version.
type Message struct {
	Version     int64           `json:"version"`
	Payload     json.RawMessage `json:"payload"`
	ProducerTag string          `json:"updated_by"`
	PublishedAt time.Time       `json:"published_at"`
}

// Publisher is the producer half of the channel.
type Publisher interface {
	Publish(ctx context.Context, payload json.RawMessage, producerTag string) (int64, error)
}

// Poller is the consumer half of the channel. Poll returns the current
// message when its version is greater than sinceVersion, and nil when the
// channel has not advanced.
type Poller interface {
	Poll(ctx context.Context, sinceVersion int64) (*Message, error)
}

// Channel combines both halves.
type Channel interface {
	Publisher
	Poller
}

// MemoryChannel is the in-process channel backend. The version counter and
// the current slot are guarded by one mutex, so versions strictly increase
// and the slot always holds the payload of the latest version.
type MemoryChannel struct {
	mu      sync.Mutex
	version int64
	current *Message
	now     func() time.Time
}

// NewMemoryChannel returns an empty in-memory channel.
func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{now: time.Now}
}

// Publish replaces the current message and returns the new version.
func (c *MemoryChannel) Publish(ctx context.Context, payload json.RawMessage, producerTag string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.version++
	c.current = &Message{
		Version:     c.version,
		Payload:     append(json.RawMessage(nil), payload...),
		ProducerTag: producerTag,
		PublishedAt: c.now().UTC(),
	}
	return c.version, nil
}

// Poll returns the current message when it is newer than sinceVersion.
func (c *MemoryChannel) Poll(ctx context.Context, sinceVersion int64) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || c.current.Version <= sinceVersion {
		return nil, nil
	}
	clone := *c.current
	clone.Payload = append(json.RawMessage(nil), c.current.Payload...)
	return &clone, nil
}
