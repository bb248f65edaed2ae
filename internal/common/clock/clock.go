// Package clock abstracts the time source so that timing rules such as
// escalation deadlines can be driven deterministically.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

// Resolution is the precision every storage driver keeps. BSON datetimes
// hold milliseconds, so System drops anything finer.
const Resolution = time.Millisecond

// System reads the wall clock in UTC, truncated to Resolution.
type System struct{}

func NewSystemClock() Clock {
	return System{}
}

func (System) Now() time.Time {
	return time.Now().UTC().Truncate(Resolution)
}

// Manual only moves when told to. Safe for concurrent use.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}
