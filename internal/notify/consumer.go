package notify

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Handler processes one newly observed message. Returning an error leaves
// the consumer's last-seen version unchanged, so the message is retried on
// the next poll (at-least-once; handlers must be idempotent).
type Handler func(ctx context.Context, msg Message) error

// Consumer is an independent polling loop over a channel. It holds no
// coupling to the producer: cancellation of the run context is the only
// stop signal.
type Consumer struct {
	source   Poller
	handler  Handler
	interval time.Duration
	logger   *slog.Logger
	lastSeen atomic.Int64
}

// NewConsumer builds a consumer polling source every interval.
func NewConsumer(source Poller, handler Handler, interval time.Duration, logger *slog.Logger) *Consumer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{source: source, handler: handler, interval: interval, logger: logger}
}

// LastSeen returns the highest version the consumer has processed.
func (c *Consumer) LastSeen() int64 {
	return c.lastSeen.Load()
}

// Run polls until ctx is cancelled. Poll and handler failures are logged
// and retried on the next tick; they never stop the loop.
func (c *Consumer) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// First poll happens immediately so a freshly started consumer does
	// not idle a full interval before catching up.
	c.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.pollOnce(ctx)
		}
	}
}

func (c *Consumer) pollOnce(ctx context.Context) {
	msg, err := c.source.Poll(ctx, c.lastSeen.Load())
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.logger.Error("channel poll failed", "error", err)
		return
	}
	if msg == nil {
		return
	}

	if err := c.handler(ctx, *msg); err != nil {
		c.logger.Error("message handler failed", "version", msg.Version, "error", err)
		return
	}
	c.lastSeen.Store(msg.Version)
	c.logger.Debug("processed channel message", "version", msg.Version, "producer", msg.ProducerTag)
}
