package events

import "time"

// StateEvent is published on every scheduler lifecycle transition.
type StateEvent struct {
	From  string
	To    string
	RunID string
	Time  time.Time
}

// BuildEvent reports the result of a table build. Err is nil on success.
type BuildEvent struct {
	Tasks      int
	Macrocycle int
	Err        error
	Took       time.Duration
}

// OverrunEvent is published when a tick's activations finish at or after
// the tick's release deadline.
type OverrunEvent struct {
	RunID     string
	Traversal uint64
	Tick      int
	By        time.Duration
	Policy    string
}

// ActivationFailedEvent is published when a task could not be resumed.
type ActivationFailedEvent struct {
	RunID string
	Task  string
	Tick  int
	Err   error
}

// CycleEvent is published at the end of each macrocycle traversal.
type CycleEvent struct {
	RunID     string
	Traversal uint64
	Overruns  int
	Failures  int
}
