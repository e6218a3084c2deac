package scheduler

import (
	"fmt"
	"time"
)

// Task describes one periodic unit of work. Handle identifies the work for
// the Activator; the scheduler only compares it for equality.
type Task[H comparable] struct {
	Handle H
	// Name is used in logs and table dumps. It defaults to the handle's
	// default formatting.
	Name string
	// Period is the release interval in ticks.
	Period int
	// Priority orders placement; lower values are placed first.
	Priority int
	// Budget is the worst-case execution time reserved in each placement.
	Budget time.Duration

	// DeferralCount and Pending are builder working state, kept for
	// diagnostics after a build.
	DeferralCount int
	Pending       bool
}

func (t Task[H]) validate() error {
	if t.Period < 1 {
		return fmt.Errorf("%w: %s: period %d must be at least 1", ErrInvalidTask, t.label(), t.Period)
	}
	if t.Budget < 0 {
		return fmt.Errorf("%w: %s: negative budget %s", ErrInvalidTask, t.label(), t.Budget)
	}
	return nil
}

func (t Task[H]) label() string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprint(t.Handle)
}

// Registry is an insertion-ordered, fixed-capacity task list.
type Registry[H comparable] struct {
	tasks []Task[H]
	cap   int
}

// NewRegistry returns an empty registry able to hold capacity tasks.
func NewRegistry[H comparable](capacity int) *Registry[H] {
	if capacity < 0 {
		capacity = 0
	}
	return &Registry[H]{tasks: make([]Task[H], 0, capacity), cap: capacity}
}

// Add appends t after validating it.
func (r *Registry[H]) Add(t Task[H]) error {
	if err := t.validate(); err != nil {
		return err
	}
	if len(r.tasks) >= r.cap {
		return fmt.Errorf("%w: %d of %d slots used", ErrCapacityExceeded, len(r.tasks), r.cap)
	}
	if t.Name == "" {
		t.Name = t.label()
	}
	t.DeferralCount = 0
	t.Pending = false
	r.tasks = append(r.tasks, t)
	return nil
}

func (r *Registry[H]) Len() int { return len(r.tasks) }

func (r *Registry[H]) Cap() int { return r.cap }

// Tasks returns a copy of the registered tasks in registration order.
func (r *Registry[H]) Tasks() []Task[H] {
	out := make([]Task[H], len(r.tasks))
	copy(out, r.tasks)
	return out
}

// Periods returns the period of every task in registration order.
func (r *Registry[H]) Periods() []int {
	out := make([]int, len(r.tasks))
	for i, t := range r.tasks {
		out[i] = t.Period
	}
	return out
}

func (r *Registry[H]) clear() {
	r.tasks = r.tasks[:0]
}
