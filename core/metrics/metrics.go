package metrics

import "time"

// TickSample describes what happened during one tick of the dispatch loop.
type TickSample struct {
	RunID     string
	Traversal uint64
	Tick      int
	// Activations is the number of tasks resumed during the tick and Failed
	// the subset the activator rejected.
	Activations int
	Failed      int
	// Lateness is how far after its ideal release instant the tick started.
	Lateness time.Duration
	// Busy is the time spent activating tasks.
	Busy time.Duration
	// Slack is the time left before the release deadline once activations
	// finished. It is zero on overrun.
	Slack   time.Duration
	Overrun bool
	Time    time.Time
}

// BuildEvent summarises a schedule table build.
type BuildEvent struct {
	Tasks      int
	Macrocycle int
	// Utilisation is the committed budget over the table capacity, in [0,1].
	Utilisation float64
	Feasible    bool
	Took        time.Duration
	Time        time.Time
}

// ActivationSample describes one execution of a task body by a worker.
type ActivationSample struct {
	Task   string
	Exec   time.Duration
	Budget time.Duration
	// OverBudget is set when Exec exceeded a non-zero Budget.
	OverBudget bool
	Err        error
	Time       time.Time
}

// StateChange is a scheduler lifecycle transition.
type StateChange struct {
	From  string
	To    string
	RunID string
	Time  time.Time
}

// Sink records tick samples for observability purposes.
type Sink interface {
	RecordTick(s TickSample) error
}

// BuildRecorder records build outcomes.
type BuildRecorder interface {
	RecordBuild(ev BuildEvent) error
}

// ActivationRecorder records task executions.
type ActivationRecorder interface {
	RecordActivation(s ActivationSample) error
}

// StateRecorder records scheduler lifecycle transitions.
type StateRecorder interface {
	RecordState(c StateChange) error
}

// Closer is implemented by sinks holding connections that must be flushed.
type Closer interface {
	Close() error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordTick(TickSample) error  { return nil }
func (NopSink) RecordBuild(BuildEvent) error { return nil }

func (NopSink) RecordActivation(ActivationSample) error { return nil }

func (NopSink) RecordState(StateChange) error { return nil }
