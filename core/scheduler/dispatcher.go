package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/kilianp07/stbs/core/clock"
	"github.com/kilianp07/stbs/core/events"
	"github.com/kilianp07/stbs/core/logger"
	"github.com/kilianp07/stbs/core/metrics"
	"github.com/kilianp07/stbs/internal/eventbus"
)

// Activator resumes the work identified by a handle. It must not block for
// the duration of the work and must not call Stop or Reset.
type Activator[H comparable] interface {
	Activate(ctx context.Context, h H) error
}

// ActivatorFunc adapts a function to the Activator interface.
type ActivatorFunc[H comparable] func(ctx context.Context, h H) error

func (f ActivatorFunc[H]) Activate(ctx context.Context, h H) error { return f(ctx, h) }

// Stats are cumulative dispatch counters since the scheduler was created.
type Stats struct {
	Ticks       uint64 `json:"ticks"`
	Traversals  uint64 `json:"traversals"`
	Activations uint64 `json:"activations"`
	Failures    uint64 `json:"failures"`
	Overruns    uint64 `json:"overruns"`
}

type stats struct {
	ticks       atomic.Uint64
	traversals  atomic.Uint64
	activations atomic.Uint64
	failures    atomic.Uint64
	overruns    atomic.Uint64
}

func (s *stats) snapshot() Stats {
	return Stats{
		Ticks:       s.ticks.Load(),
		Traversals:  s.traversals.Load(),
		Activations: s.activations.Load(),
		Failures:    s.failures.Load(),
		Overruns:    s.overruns.Load(),
	}
}

type dispatcher[H comparable] struct {
	table    *Table[H]
	tasks    []Task[H]
	act      Activator[H]
	clock    clock.Clock
	log      logger.Logger
	limiter  *rate.Limiter
	sink     metrics.Sink
	bus      eventbus.EventBus
	overrun  OverrunPolicy
	boundary BoundaryPolicy
	settle   time.Duration
	runID    string
	stats    *stats
}

// run replays the table until ctx is cancelled. It returns nil on
// cancellation and an *OverrunError when OverrunAbort trips.
func (d *dispatcher[H]) run(ctx context.Context) error {
	if d.settle > 0 {
		if err := d.clock.SleepUntil(ctx, d.clock.Now().Add(d.settle)); err != nil {
			return nil
		}
	}
	tick := d.table.TickDuration
	var deadline time.Time
	anchored := false
	for trav := uint64(0); ; trav++ {
		if d.boundary == BoundaryReanchor || !anchored {
			deadline = d.clock.Now().Add(tick)
			anchored = true
		}
		var overruns, failures int
		for i := range d.table.Entries {
			if ctx.Err() != nil {
				return nil
			}
			sample := d.activate(ctx, trav, i, deadline.Add(-tick))
			failures += sample.Failed

			now := d.clock.Now()
			if now.Before(deadline) {
				sample.Slack = deadline.Sub(now)
				d.record(sample)
				if err := d.clock.SleepUntil(ctx, deadline); err != nil {
					return nil
				}
				deadline = deadline.Add(tick)
				continue
			}

			by := now.Sub(deadline)
			sample.Overrun = true
			d.record(sample)
			overruns++
			d.onOverrun(trav, i, by)
			switch d.overrun {
			case OverrunResync:
				deadline = now.Add(tick)
			case OverrunAbort:
				return &OverrunError{Traversal: trav, Tick: i, By: by}
			}
		}
		d.stats.traversals.Add(1)
		traversalsTotal.Inc()
		d.publish(events.CycleEvent{RunID: d.runID, Traversal: trav, Overruns: overruns, Failures: failures})
	}
}

func (d *dispatcher[H]) activate(ctx context.Context, trav uint64, tick int, ideal time.Time) metrics.TickSample {
	entry := d.table.Entries[tick]
	start := d.clock.Now()
	sample := metrics.TickSample{
		RunID:       d.runID,
		Traversal:   trav,
		Tick:        tick,
		Activations: len(entry.Handles),
		Time:        start,
	}
	if late := start.Sub(ideal); late > 0 {
		sample.Lateness = late
	}
	tickLateness.Observe(sample.Lateness.Seconds())
	for j, h := range entry.Handles {
		name := d.tasks[entry.Slots[j]].Name
		if err := d.act.Activate(ctx, h); err != nil {
			sample.Failed++
			activationsTotal.WithLabelValues(name, "error").Inc()
			d.log.Errorf("activate %s at tick %d: %v", name, tick, err)
			d.publish(events.ActivationFailedEvent{RunID: d.runID, Task: name, Tick: tick, Err: err})
			continue
		}
		activationsTotal.WithLabelValues(name, "ok").Inc()
	}
	sample.Busy = d.clock.Now().Sub(start)
	d.stats.ticks.Add(1)
	d.stats.activations.Add(uint64(len(entry.Handles)))
	d.stats.failures.Add(uint64(sample.Failed))
	ticksTotal.Inc()
	return sample
}

func (d *dispatcher[H]) onOverrun(trav uint64, tick int, by time.Duration) {
	d.stats.overruns.Add(1)
	overrunsTotal.WithLabelValues(d.overrun.String()).Inc()
	d.publish(events.OverrunEvent{RunID: d.runID, Traversal: trav, Tick: tick, By: by, Policy: d.overrun.String()})
	if d.limiter.Allow() {
		d.log.Warnf("tick %d of traversal %d overran its deadline by %s (policy %s)", tick, trav, by, d.overrun)
	}
}

func (d *dispatcher[H]) record(s metrics.TickSample) {
	if err := d.sink.RecordTick(s); err != nil && d.limiter.Allow() {
		d.log.Warnf("record tick sample: %v", err)
	}
}

func (d *dispatcher[H]) publish(ev eventbus.Event) {
	if d.bus != nil {
		d.bus.Publish(ev)
	}
}
