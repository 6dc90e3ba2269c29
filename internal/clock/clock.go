// Package clock provides a strictly monotonic UTC wall clock.
package clock

import (
	"sync"
	"time"
)

// Clock выдаёт строго возрастающие отметки времени.
// Wall time is used while it moves forward; when it stalls or goes back
// (coarse timers, NTP adjustments) the clock advances by one nanosecond instead,
// so two readings never compare equal.
type Clock struct {
	last time.Time
	now  func() time.Time
	mu   sync.Mutex
}

// New creates a clock driven by time.Now.
func New() *Clock {
	return &Clock{now: time.Now}
}

// NewWithSource creates a clock driven by a custom time source.
// Используется в тестах для детерминированного времени.
func NewWithSource(now func() time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns a timestamp strictly greater than every timestamp returned
// before and every time passed to Observe.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Round(0) убирает monotonic reading, чтобы значения сравнивались по wall time
	t := c.now().UTC().Round(0)
	if !t.After(c.last) {
		t = c.last.Add(time.Nanosecond)
	}
	c.last = t

	return t
}

// Observe moves the clock past a timestamp received from elsewhere
// (for example a restored checkpoint).
func (c *Clock) Observe(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t = t.UTC().Round(0)
	if t.After(c.last) {
		c.last = t
	}
}

// Last returns the most recent timestamp without advancing the clock.
func (c *Clock) Last() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.last
}
