// Package clock abstracts the monotonic time source used by the dispatcher so
// that timing behaviour can be replayed deterministically in tests.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock provides the current time and a cancellable absolute sleep.
type Clock interface {
	Now() time.Time
	// SleepUntil blocks until deadline or until ctx is done, in which case
	// ctx.Err() is returned. A deadline in the past returns immediately.
	SleepUntil(ctx context.Context, deadline time.Time) error
}

// System is the wall clock backed by the runtime monotonic reading.
type System struct{}

func (System) Now() time.Time { return time.Now() }

func (System) SleepUntil(ctx context.Context, deadline time.Time) error {
	d := time.Until(deadline)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Manual is a Clock whose time only moves when Advance or SleepUntil is called.
// Sleeping jumps straight to the deadline.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Time
}

// NewManual returns a Manual clock starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

func (m *Manual) SleepUntil(ctx context.Context, deadline time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.sleeps = append(m.sleeps, deadline)
	if deadline.After(m.now) {
		m.now = deadline
	}
	m.mu.Unlock()
	return nil
}

// Sleeps returns the deadlines passed to SleepUntil, in call order.
func (m *Manual) Sleeps() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Time, len(m.sleeps))
	copy(out, m.sleeps)
	return out
}
