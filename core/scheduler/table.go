package scheduler

import "time"

// TickEntry lists the tasks released in one tick, in placement order.
type TickEntry[H comparable] struct {
	Handles []H
	// Slots holds the registry index of each handle.
	Slots      []int
	Cumulative time.Duration
}

// Table is the static schedule replayed by the dispatcher. It has one
// entry per tick of the macrocycle.
type Table[H comparable] struct {
	TickDuration time.Duration
	Entries      []TickEntry[H]
}

// Macrocycle returns the number of ticks in the table.
func (t *Table[H]) Macrocycle() int { return len(t.Entries) }

// Utilisation is the committed budget over the table capacity.
func (t *Table[H]) Utilisation() float64 {
	if t == nil || len(t.Entries) == 0 || t.TickDuration <= 0 {
		return 0
	}
	var sum time.Duration
	for _, e := range t.Entries {
		sum += e.Cumulative
	}
	return float64(sum) / (float64(t.TickDuration) * float64(len(t.Entries)))
}

// Placements counts the activations of registry slot idx over one macrocycle.
func (t *Table[H]) Placements(idx int) int {
	n := 0
	for _, e := range t.Entries {
		for _, s := range e.Slots {
			if s == idx {
				n++
			}
		}
	}
	return n
}

func (t *Table[H]) clone() *Table[H] {
	if t == nil {
		return nil
	}
	out := &Table[H]{TickDuration: t.TickDuration, Entries: make([]TickEntry[H], len(t.Entries))}
	for i, e := range t.Entries {
		out.Entries[i] = TickEntry[H]{
			Handles:    append([]H(nil), e.Handles...),
			Slots:      append([]int(nil), e.Slots...),
			Cumulative: e.Cumulative,
		}
	}
	return out
}
