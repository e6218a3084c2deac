package scheduler

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCapacityExceeded is returned when registering beyond the fixed capacity.
	ErrCapacityExceeded = errors.New("scheduler: task capacity exceeded")
	// ErrInfeasible is returned when the task set cannot be placed in the table.
	ErrInfeasible = errors.New("scheduler: task set is not schedulable")
	// ErrAllocationFailure is returned when the table does not fit the memory budget.
	ErrAllocationFailure = errors.New("scheduler: schedule table allocation failed")
	// ErrInvalidState is returned when an operation is not allowed in the current state.
	ErrInvalidState = errors.New("scheduler: invalid state")
	// ErrInvalidTask is returned for descriptors with a non-positive period or a negative budget.
	ErrInvalidTask = errors.New("scheduler: invalid task")
	// ErrOverrun is returned by Start when the overrun policy aborts the run.
	ErrOverrun = errors.New("scheduler: tick overrun")
)

// InfeasibleError describes which task could not be placed and where.
type InfeasibleError struct {
	Task      string
	Tick      int
	Period    int
	Deferrals int
	Reason    string
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("%v: task %q at tick %d: %s (deferred %d, period %d)",
		ErrInfeasible, e.Task, e.Tick, e.Reason, e.Deferrals, e.Period)
}

func (e *InfeasibleError) Unwrap() error { return ErrInfeasible }

// OverrunError is returned when OverrunAbort stops the dispatch loop.
type OverrunError struct {
	Traversal uint64
	Tick      int
	By        time.Duration
}

func (e *OverrunError) Error() string {
	return fmt.Sprintf("%v: tick %d of traversal %d exceeded its deadline by %s", ErrOverrun, e.Tick, e.Traversal, e.By)
}

func (e *OverrunError) Unwrap() error { return ErrOverrun }
