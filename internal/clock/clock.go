package clock

import (
	"sync"
	"time"
)

// Clock supplies the current instant. Injected everywhere time matters so
// window checks and cache expiry are testable.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock in UTC.
type System struct{}

// Now returns the current UTC time.
func (System) Now() time.Time { return time.Now().UTC() }

// Fixed is a manually driven clock for tests.
type Fixed struct {
	mu  sync.Mutex
	cur time.Time
}

// NewFixed returns a clock pinned to start.
func NewFixed(start time.Time) *Fixed {
	return &Fixed{cur: start}
}

// Now returns the pinned instant.
func (c *Fixed) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

// Set moves the clock to t.
func (c *Fixed) Set(t time.Time) {
	c.mu.Lock()
	c.cur = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (c *Fixed) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	c.cur = c.cur.Add(d)
	t := c.cur
	c.mu.Unlock()
	return t
}
