package testfixtures

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Clock is a hand-driven time source. Services take a `func() time.Time`,
// so tests hand them NowFunc and move time explicitly.
type Clock struct {
	mu      sync.RWMutex
	current time.Time
}

// NewClock starts a clock at the supplied instant, or at ReferenceTime when
// start is the zero value.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// Now reports the instant the clock currently points at.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// NowFunc adapts the clock to the injection signature services expect.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set points the clock at an absolute instant.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new instant.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	c.current = c.current.Add(d)
	updated := c.current
	c.mu.Unlock()
	return updated
}

// IDGenerator yields "prefix-1", "prefix-2", ... so tests can predict the
// identifiers a service will assign.
type IDGenerator struct {
	prefix  string
	counter atomic.Uint64
}

// NewIDGenerator builds a generator for the given prefix, defaulting to "id".
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

// Next returns the next identifier in the sequence.
func (g *IDGenerator) Next() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.counter.Add(1))
}

// NextFunc adapts the generator to the injection signature services expect.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}
