package scheduler

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/kilianp07/stbs/core/ratio"
)

// DefaultMaxTableTicks bounds the table length when Options leaves it unset.
const DefaultMaxTableTicks = 1 << 16

// Macrocycle returns the least common multiple of periods, or 0 when no
// period is given. It fails with ErrAllocationFailure on overflow or when
// the result exceeds maxTicks (ignored when maxTicks <= 0).
func Macrocycle(periods []int, maxTicks int) (int, error) {
	m, err := ratio.LCMAll(periods)
	if err != nil {
		return 0, fmt.Errorf("%w: macrocycle: %v", ErrAllocationFailure, err)
	}
	if maxTicks > 0 && m > maxTicks {
		return 0, fmt.Errorf("%w: macrocycle of %d ticks exceeds limit of %d", ErrAllocationFailure, m, maxTicks)
	}
	return m, nil
}

// SortOrder returns registry indices ordered by priority then period.
// Ties keep registration order. tasks is not modified.
func SortOrder[H comparable](tasks []Task[H]) []int {
	order := make([]int, len(tasks))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		if c := cmp.Compare(tasks[a].Priority, tasks[b].Priority); c != 0 {
			return c
		}
		return cmp.Compare(tasks[a].Period, tasks[b].Period)
	})
	return order
}

// buildTable places every release of every task. work is mutated and holds
// the deferral state observed when the build finished or failed.
func buildTable[H comparable](work []Task[H], tick time.Duration, macrocycle int) (*Table[H], error) {
	order := SortOrder(work)
	tbl := &Table[H]{TickDuration: tick, Entries: make([]TickEntry[H], macrocycle)}
	last := macrocycle - 1
	for t := 0; t < macrocycle; t++ {
		entry := &tbl.Entries[t]
		for _, idx := range order {
			task := &work[idx]
			if t%task.Period != 0 && !task.Pending {
				continue
			}
			if task.Budget+entry.Cumulative <= tick {
				entry.Handles = append(entry.Handles, task.Handle)
				entry.Slots = append(entry.Slots, idx)
				entry.Cumulative += task.Budget
				task.Pending = false
				task.DeferralCount = 0
				continue
			}
			task.DeferralCount++
			switch {
			case task.DeferralCount >= task.Period:
				return nil, &InfeasibleError{
					Task: task.Name, Tick: t, Period: task.Period, Deferrals: task.DeferralCount,
					Reason: "deadline missed",
				}
			case t == last:
				return nil, &InfeasibleError{
					Task: task.Name, Tick: t, Period: task.Period, Deferrals: task.DeferralCount,
					Reason: "still pending at end of macrocycle",
				}
			}
			task.Pending = true
		}
	}
	return tbl, nil
}
