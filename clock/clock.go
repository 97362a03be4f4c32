// Package clock is a small clock abstraction so components that enforce
// wall-clock budgets (the convergence tracker, the liveness watchdog) can be
// tested against a manual clock instead of real time.
package clock

import (
	"sync"
	"time"
)

// Clock is the time source contract.
type Clock interface {
	Now() time.Time
}

// Wall is the real-time clock.
type Wall struct{}

func (Wall) Now() time.Time { return time.Now() }

// Manual is a test clock advanced by hand.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual starts a manual clock at the given instant.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}
