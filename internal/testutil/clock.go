package testutil

import (
	"sync"
	"time"
)

// StepClock is a deterministic wall clock for tests.
//
// Each call to Now returns the current instant and then advances it by the
// step, so consecutive saves get distinct timestamps. A zero step freezes
// the clock.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	cur   time.Time
}

// NewStepClock creates a clock starting at the given unix second.
func NewStepClock(unix int64, step time.Duration) *StepClock {
	t := time.Unix(unix, 0)
	return &StepClock{start: t, step: step, cur: t}
}

// FixedClock returns a clock frozen at the given unix second.
func FixedClock(unix int64) *StepClock {
	return NewStepClock(unix, 0)
}

// Now returns the current instant and advances the clock.
//
// The method value c.Now satisfies graph.WithClock.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.cur
	c.cur = c.cur.Add(c.step)
	return t
}

// Current returns the next instant Now will report, without advancing.
func (c *StepClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

// Reset rewinds the clock to its starting instant.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.start
}
