// Package clock abstracts the wall clock so that time-derived names are
// reproducible in tests. Production code injects Real(); tests inject
// Fixed() or a *Manual they can step forward.
package clock

import (
	"sync"
	"time"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Fixed returns a Clock that always reports t.
func Fixed(t time.Time) Clock { return fixedClock{t: t} }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// Manual is a Clock that only moves when Advance or Set is called.
// It is safe for concurrent use.
type Manual struct {
	mu      sync.Mutex
	current time.Time
}

// NewManual returns a Manual clock starting at initial.
func NewManual(initial time.Time) *Manual {
	return &Manual{current: initial}
}

// Now returns the current manual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.current = m.current.Add(d)
	m.mu.Unlock()
}

// Set jumps the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.current = t
	m.mu.Unlock()
}
