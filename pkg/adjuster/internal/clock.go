// Package internal holds the time source shared by the interceptor's
// frame and stream timeouts.
package internal

import (
	"sync"
	"time"
)

// Clock reports the current time. Successive calls never go backwards.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// ManualClock only moves when told to. Background loops may read it while
// a test advances it.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock returns a clock stopped at start, or at 2001-09-09 when
// start is zero.
func NewManualClock(start time.Time) *ManualClock {
	if start.IsZero() {
		start = time.Unix(1_000_000_000, 0)
	}
	return &ManualClock{now: start}
}

// Now implements Clock.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock d forward. A negative d panics.
func (c *ManualClock) Advance(d time.Duration) {
	if d < 0 {
		panic("internal: clock cannot move backwards")
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
