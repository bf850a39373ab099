package testutil

import (
	"sync"
	"time"
)

// FixedClock is a clock for tests that only moves when told to.
//
// Runs read $now from it, so conversions that call now() produce the same
// statements on every test run.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

// DefaultTime is the time NewFixedClock starts at when given the zero time.
var DefaultTime = time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)

// NewFixedClock creates a clock stopped at t, or at DefaultTime when t is
// zero.
func NewFixedClock(t time.Time) *FixedClock {
	if t.IsZero() {
		t = DefaultTime
	}
	return &FixedClock{t: t}
}

// Now returns the clock's time.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
