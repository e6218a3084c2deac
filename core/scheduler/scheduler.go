package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/kilianp07/stbs/core/clock"
	"github.com/kilianp07/stbs/core/events"
	"github.com/kilianp07/stbs/core/logger"
	"github.com/kilianp07/stbs/core/metrics"
	"github.com/kilianp07/stbs/internal/eventbus"
)

// State is the scheduler lifecycle state.
type State int

const (
	StateUnbuilt State = iota
	StateBuilt
	StateRunning
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnbuilt:
		return "unbuilt"
	case StateBuilt:
		return "built"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options configure a Scheduler. TickDuration and Capacity are required.
type Options struct {
	TickDuration time.Duration
	Capacity     int
	// MaxTableTicks bounds the macrocycle. Zero selects DefaultMaxTableTicks.
	MaxTableTicks int
	Overrun       OverrunPolicy
	Boundary      BoundaryPolicy
	// Settle delays the first tick after Start.
	Settle time.Duration

	Clock  clock.Clock
	Logger logger.Logger
	Sink   metrics.Sink
	Bus    eventbus.EventBus
	// LogLimit and LogBurst throttle overrun warnings. Zero values select
	// one message per second with a burst of 5.
	LogLimit rate.Limit
	LogBurst int
}

func (o *Options) setDefaults() {
	if o.MaxTableTicks == 0 {
		o.MaxTableTicks = DefaultMaxTableTicks
	}
	if o.Clock == nil {
		o.Clock = clock.System{}
	}
	o.Logger = logger.OrNop(o.Logger)
	if o.Sink == nil {
		o.Sink = metrics.NopSink{}
	}
	if o.LogLimit == 0 {
		o.LogLimit = rate.Every(time.Second)
	}
	if o.LogBurst <= 0 {
		o.LogBurst = 5
	}
}

// Scheduler is a static table-based cyclic executive over handles of type H.
// All methods are safe for concurrent use.
type Scheduler[H comparable] struct {
	mu      sync.Mutex
	opts    Options
	act     Activator[H]
	reg     *Registry[H]
	table   *Table[H]
	state   State
	runID   string
	cancel  context.CancelFunc
	done    chan struct{}
	limiter *rate.Limiter
	stats   stats
}

// New returns an empty, unbuilt scheduler.
func New[H comparable](act Activator[H], opts Options) (*Scheduler[H], error) {
	if act == nil {
		return nil, errors.New("scheduler: activator is required")
	}
	if opts.TickDuration <= 0 {
		return nil, fmt.Errorf("scheduler: tick duration must be positive, got %s", opts.TickDuration)
	}
	if opts.Capacity < 1 {
		return nil, fmt.Errorf("scheduler: capacity must be at least 1, got %d", opts.Capacity)
	}
	opts.setDefaults()
	s := &Scheduler[H]{
		opts:    opts,
		act:     act,
		reg:     NewRegistry[H](opts.Capacity),
		limiter: rate.NewLimiter(opts.LogLimit, opts.LogBurst),
	}
	return s, nil
}

// RegisterTask adds a task with the given period in ticks, priority and
// execution budget.
func (s *Scheduler[H]) RegisterTask(period int, handle H, priority int, budget time.Duration) error {
	return s.Register(Task[H]{Handle: handle, Period: period, Priority: priority, Budget: budget})
}

// Register adds t to the registry. Registration is only allowed before the
// table is built.
func (s *Scheduler[H]) Register(t Task[H]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateUnbuilt {
		return fmt.Errorf("%w: cannot register while %s", ErrInvalidState, s.state)
	}
	if err := s.reg.Add(t); err != nil {
		return err
	}
	s.opts.Logger.Debugf("registered task %s (period %d, priority %d, budget %s)",
		t.label(), t.Period, t.Priority, t.Budget)
	return nil
}

// Build computes the macrocycle and the schedule table. Building an already
// built scheduler is a no-op. On infeasibility the scheduler enters
// StateFailed and must be Reset.
func (s *Scheduler[H]) Build() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buildLocked()
}

func (s *Scheduler[H]) buildLocked() error {
	switch s.state {
	case StateBuilt:
		return nil
	case StateRunning, StateFailed:
		return fmt.Errorf("%w: cannot build while %s", ErrInvalidState, s.state)
	}
	if s.reg.Len() == 0 {
		return fmt.Errorf("%w: no tasks registered", ErrInvalidState)
	}
	start := s.opts.Clock.Now()
	macro, err := Macrocycle(s.reg.Periods(), s.opts.MaxTableTicks)
	if err != nil {
		s.opts.Logger.Errorf("build: %v", err)
		return err
	}

	work := s.reg.Tasks()
	for i := range work {
		work[i].DeferralCount = 0
		work[i].Pending = false
	}
	tbl, err := buildTable(work, s.opts.TickDuration, macro)
	for i := range work {
		s.reg.tasks[i].DeferralCount = work[i].DeferralCount
		s.reg.tasks[i].Pending = work[i].Pending
	}
	took := s.opts.Clock.Now().Sub(start)
	bev := metrics.BuildEvent{Tasks: len(work), Macrocycle: macro, Feasible: err == nil, Took: took, Time: start}
	if err != nil {
		s.releaseTable()
		s.setState(StateFailed)
		buildFailureTotal.Inc()
		s.recordBuild(bev)
		s.publish(events.BuildEvent{Tasks: len(work), Macrocycle: macro, Err: err, Took: took})
		s.opts.Logger.Errorf("build: %v", err)
		return err
	}
	s.table = tbl
	bev.Utilisation = tbl.Utilisation()
	macrocycleTicks.Set(float64(macro))
	tableUtilisation.Set(bev.Utilisation)
	s.setState(StateBuilt)
	s.recordBuild(bev)
	s.publish(events.BuildEvent{Tasks: len(work), Macrocycle: macro, Took: took})
	s.opts.Logger.Infow("schedule table built", map[string]any{
		"tasks":       len(work),
		"macrocycle":  macro,
		"tick":        s.opts.TickDuration.String(),
		"utilisation": bev.Utilisation,
	})
	return nil
}

// Start builds the table if needed and replays it until Stop is called,
// ctx is cancelled or the overrun policy aborts. It blocks for the whole
// run and returns nil after a clean stop. The table is released when Start
// returns.
func (s *Scheduler[H]) Start(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.state == StateRunning || s.state == StateFailed:
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: cannot start while %s", ErrInvalidState, st)
	case s.reg.Len() == 0:
		s.mu.Unlock()
		return fmt.Errorf("%w: no tasks registered", ErrInvalidState)
	}
	if err := s.buildLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.runID = uuid.NewString()
	d := &dispatcher[H]{
		table:    s.table,
		tasks:    s.reg.Tasks(),
		act:      s.act,
		clock:    s.opts.Clock,
		log:      s.opts.Logger,
		limiter:  s.limiter,
		sink:     s.opts.Sink,
		bus:      s.opts.Bus,
		overrun:  s.opts.Overrun,
		boundary: s.opts.Boundary,
		settle:   s.opts.Settle,
		runID:    s.runID,
		stats:    &s.stats,
	}
	s.setState(StateRunning)
	s.opts.Logger.Infof("dispatch started: run %s, %d ticks of %s", s.runID, s.table.Macrocycle(), s.opts.TickDuration)
	s.mu.Unlock()

	err := d.run(runCtx)

	s.mu.Lock()
	cancel()
	s.releaseTable()
	s.cancel = nil
	s.done = nil
	s.setState(StateUnbuilt)
	s.mu.Unlock()
	close(done)
	if err != nil {
		s.opts.Logger.Errorf("dispatch stopped: %v", err)
	} else {
		s.opts.Logger.Infof("dispatch stopped: run %s", d.runID)
	}
	return err
}

// Stop interrupts a running dispatch loop and waits for it to exit. The
// table is released and the registry kept. Stop on a built scheduler only
// releases the table; otherwise it does nothing. It must not be called from
// an Activator.
func (s *Scheduler[H]) Stop() {
	s.mu.Lock()
	switch s.state {
	case StateRunning:
		cancel, done := s.cancel, s.done
		s.mu.Unlock()
		cancel()
		<-done
	case StateBuilt:
		s.releaseTable()
		s.setState(StateUnbuilt)
		s.mu.Unlock()
	default:
		s.mu.Unlock()
	}
}

// Reset stops the scheduler and clears both the table and the registry.
func (s *Scheduler[H]) Reset() {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reg.clear()
	s.releaseTable()
	s.setState(StateUnbuilt)
}

func (s *Scheduler[H]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler[H]) TaskCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Len()
}

func (s *Scheduler[H]) TickDuration() time.Duration { return s.opts.TickDuration }

// Macrocycle returns the table length in ticks, or 0 when no table is held.
func (s *Scheduler[H]) Macrocycle() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.table == nil {
		return 0
	}
	return s.table.Macrocycle()
}

// Table returns a deep copy of the current table, or nil.
func (s *Scheduler[H]) Table() *Table[H] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.clone()
}

// Tasks returns the registered tasks in registration order.
func (s *Scheduler[H]) Tasks() []Task[H] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reg.Tasks()
}

// RunID identifies the current or last dispatch run.
func (s *Scheduler[H]) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// Stats returns cumulative dispatch counters.
func (s *Scheduler[H]) Stats() Stats { return s.stats.snapshot() }

// Print writes the operator view of the current table to w.
func (s *Scheduler[H]) Print(w io.Writer) error {
	s.mu.Lock()
	tbl := s.table.clone()
	tasks := s.reg.Tasks()
	s.mu.Unlock()
	return WriteTable(w, tbl, tasks)
}

// releaseTable drops the table and clears the gauges describing it.
func (s *Scheduler[H]) releaseTable() {
	s.table = nil
	macrocycleTicks.Set(0)
	tableUtilisation.Set(0)
}

func (s *Scheduler[H]) setState(to State) {
	if s.state == to {
		return
	}
	from := s.state
	s.state = to
	setStateGauge(to)
	s.publish(events.StateEvent{From: from.String(), To: to.String(), RunID: s.runID, Time: s.opts.Clock.Now()})
	s.opts.Logger.Debugf("scheduler state %s -> %s", from, to)
}

func (s *Scheduler[H]) recordBuild(ev metrics.BuildEvent) {
	rec, ok := s.opts.Sink.(metrics.BuildRecorder)
	if !ok {
		return
	}
	if err := rec.RecordBuild(ev); err != nil {
		s.opts.Logger.Warnf("record build: %v", err)
	}
}

func (s *Scheduler[H]) publish(ev eventbus.Event) {
	if s.opts.Bus != nil {
		s.opts.Bus.Publish(ev)
	}
}
