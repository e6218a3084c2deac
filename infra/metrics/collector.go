package metrics

import (
	"context"

	"github.com/kilianp07/stbs/core/events"
	coremetrics "github.com/kilianp07/stbs/core/metrics"
	"github.com/kilianp07/stbs/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records scheduler
// lifecycle transitions on sinks implementing StateRecorder. It stops when
// the context is canceled or the bus is closed. The returned channel is
// closed once the collector has unsubscribed.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.Sink) <-chan struct{} {
	done := make(chan struct{})
	rec, ok := sink.(coremetrics.StateRecorder)
	if bus == nil || !ok {
		close(done)
		return done
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if e, ok := ev.(events.StateEvent); ok {
					_ = rec.RecordState(coremetrics.StateChange{From: e.From, To: e.To, RunID: e.RunID, Time: e.Time})
				}
			}
		}
	}()
	return done
}
