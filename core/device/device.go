// Package device holds the periodic task bodies of the IO controller: LED
// and button synchronisation with the board, button-driven LED toggling and
// process image integrity checks.
package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/kilianp07/stbs/core/logger"
	"github.com/kilianp07/stbs/core/rtdb"
	"github.com/kilianp07/stbs/core/scheduler"
	"github.com/kilianp07/stbs/core/worker"
)

// Board is the physical or simulated IO hardware.
type Board interface {
	SetLED(i int, on bool) error
	Button(i int) (bool, error)
}

// Task names understood by Install.
const (
	IOSyncTask    = "io-sync"
	ToggleTask    = "toggle"
	IntegrityTask = "integrity"
	IdleTask      = "idle"
)

// DefaultTaskSet is the controller's stock task set for a 50 ms tick.
func DefaultTaskSet() []scheduler.TaskConfig {
	return []scheduler.TaskConfig{
		{Name: IOSyncTask, Period: 1, Priority: 1, BudgetMS: 3},
		{Name: ToggleTask, Period: 2, Priority: 2, BudgetMS: 3},
		{Name: IntegrityTask, Period: 2, Priority: 1, BudgetMS: 3},
	}
}

// Tasks implements the task bodies over a process image and a board.
type Tasks struct {
	store rtdb.Store
	board Board
	log   logger.Logger

	mu   sync.Mutex
	prev [rtdb.Pins]int
}

// NewTasks binds the task bodies to store and board.
func NewTasks(store rtdb.Store, board Board, log logger.Logger) *Tasks {
	return &Tasks{store: store, board: board, log: logger.OrNop(log)}
}

// IOSync drives the LEDs from the process image and samples the buttons
// back into it.
func (t *Tasks) IOSync(context.Context) error {
	snap, err := t.store.Snapshot()
	if err != nil {
		return fmt.Errorf("io-sync: %w", err)
	}
	for i, v := range snap.LEDs {
		if err := t.board.SetLED(i, v == 1); err != nil {
			return fmt.Errorf("io-sync: led %d: %w", i, err)
		}
	}
	var buttons [rtdb.Pins]int
	for i := range buttons {
		on, err := t.board.Button(i)
		if err != nil {
			return fmt.Errorf("io-sync: button %d: %w", i, err)
		}
		if on {
			buttons[i] = 1
		}
	}
	return t.store.SetButtons(buttons)
}

// Toggle flips an LED on every rising edge of its button.
func (t *Tasks) Toggle(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	snap, err := t.store.Snapshot()
	if err != nil {
		return fmt.Errorf("toggle: %w", err)
	}
	var mask [rtdb.Pins]bool
	changed := false
	for i, b := range snap.Buttons {
		if b == 1 && t.prev[i] == 0 {
			mask[i] = true
			changed = true
		}
	}
	t.prev = snap.Buttons
	if !changed {
		return nil
	}
	if err := t.store.ToggleLEDs(mask); err != nil {
		return fmt.Errorf("toggle: %w", err)
	}
	return nil
}

// Integrity repairs corrupted values in the process image.
func (t *Tasks) Integrity(context.Context) error {
	n, err := t.store.Sanitize()
	if err != nil {
		return fmt.Errorf("integrity: %w", err)
	}
	if n > 0 {
		t.log.Warnf("integrity: reset %d corrupted values", n)
	}
	return nil
}

// Idle does nothing. It fills spare budget in test task sets.
func Idle(context.Context) error { return nil }

// Bodies maps task names to their bodies.
func (t *Tasks) Bodies() map[string]worker.Func {
	return map[string]worker.Func{
		IOSyncTask:    t.IOSync,
		ToggleTask:    t.Toggle,
		IntegrityTask: t.Integrity,
		IdleTask:      Idle,
	}
}

// Install declares every configured task on the pool and registers it with
// the scheduler, using the task name as handle.
func Install(cfgs []scheduler.TaskConfig, bodies map[string]worker.Func, pool *worker.Pool, sched *scheduler.Scheduler[string]) error {
	for _, c := range cfgs {
		body, ok := bodies[c.Name]
		if !ok {
			return fmt.Errorf("device: unknown task %q", c.Name)
		}
		if err := pool.Add(c.Name, c.Budget(), body); err != nil {
			return err
		}
		err := sched.Register(scheduler.Task[string]{
			Handle:   c.Name,
			Name:     c.Name,
			Period:   c.Period,
			Priority: c.Priority,
			Budget:   c.Budget(),
		})
		if err != nil {
			return fmt.Errorf("device: register %s: %w", c.Name, err)
		}
	}
	return nil
}
