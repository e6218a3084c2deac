package scheduler

import (
	"fmt"
	"strings"
)

// OverrunPolicy selects what the dispatcher does when a tick's activations
// end at or after the tick's release deadline.
type OverrunPolicy int

const (
	// OverrunProceed starts the next tick immediately without advancing the
	// deadline. Every remaining tick of the traversal then runs back to back
	// until the boundary re-anchors.
	OverrunProceed OverrunPolicy = iota
	// OverrunResync re-anchors the deadline one tick after the overrun.
	OverrunResync
	// OverrunAbort stops the run and returns an *OverrunError.
	OverrunAbort
)

func (p OverrunPolicy) String() string {
	switch p {
	case OverrunProceed:
		return "proceed"
	case OverrunResync:
		return "resync"
	case OverrunAbort:
		return "abort"
	default:
		return fmt.Sprintf("OverrunPolicy(%d)", int(p))
	}
}

// ParseOverrunPolicy converts a configuration value. An empty string yields
// OverrunProceed.
func ParseOverrunPolicy(s string) (OverrunPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "proceed":
		return OverrunProceed, nil
	case "resync":
		return OverrunResync, nil
	case "abort":
		return OverrunAbort, nil
	}
	return 0, fmt.Errorf("unknown overrun policy %q", s)
}

// BoundaryPolicy selects how the release deadline is handled when the
// dispatcher wraps around to tick 0.
type BoundaryPolicy int

const (
	// BoundaryReanchor recomputes the deadline from the current time at the
	// start of every traversal. Drift accumulated in one macrocycle is
	// discarded.
	BoundaryReanchor BoundaryPolicy = iota
	// BoundaryContinuous anchors once and keeps the additive deadline across
	// traversals.
	BoundaryContinuous
)

func (p BoundaryPolicy) String() string {
	switch p {
	case BoundaryReanchor:
		return "reanchor"
	case BoundaryContinuous:
		return "continuous"
	default:
		return fmt.Sprintf("BoundaryPolicy(%d)", int(p))
	}
}

// ParseBoundaryPolicy converts a configuration value. An empty string yields
// BoundaryReanchor.
func ParseBoundaryPolicy(s string) (BoundaryPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reanchor":
		return BoundaryReanchor, nil
	case "continuous":
		return BoundaryContinuous, nil
	}
	return 0, fmt.Errorf("unknown boundary policy %q", s)
}
