package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/stbs/core/events"
	coremetrics "github.com/kilianp07/stbs/core/metrics"
	"github.com/kilianp07/stbs/internal/eventbus"
)

func TestPromSinkRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordTick(coremetrics.TickSample{Busy: time.Millisecond, Slack: 49 * time.Millisecond}))
	require.NoError(t, sink.RecordTick(coremetrics.TickSample{Busy: 60 * time.Millisecond, Overrun: true}))
	require.NoError(t, sink.RecordBuild(coremetrics.BuildEvent{Feasible: true, Took: time.Millisecond}))
	require.NoError(t, sink.RecordActivation(coremetrics.ActivationSample{Task: "toggle", Exec: 5 * time.Millisecond, OverBudget: true}))
	require.NoError(t, sink.RecordActivation(coremetrics.ActivationSample{Task: "toggle", Exec: 5 * time.Millisecond, OverBudget: true, Err: errors.New("x")}))

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.feasible))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.overBudget.WithLabelValues("toggle", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.overBudget.WithLabelValues("toggle", "true")))

	families, err := reg.Gather()
	require.NoError(t, err)
	counts := map[string]uint64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			if h := m.GetHistogram(); h != nil {
				counts[f.GetName()] += h.GetSampleCount()
			}
		}
	}
	assert.Equal(t, uint64(2), counts["stbs_tick_busy_seconds"])
	assert.Equal(t, uint64(1), counts["stbs_tick_slack_seconds"])
	assert.Equal(t, uint64(2), counts["stbs_task_exec_seconds"])
}

func TestPromSinkReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	s1, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	s2, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	assert.Same(t, s1.exec, s2.exec)
}

func TestSinkFactoryTypes(t *testing.T) {
	types := coremetrics.SinkTypes()
	assert.Contains(t, types, "prometheus")
	assert.Contains(t, types, "influx")
}

type stateSink struct {
	coremetrics.NopSink
	changes chan coremetrics.StateChange
}

func (s *stateSink) RecordState(c coremetrics.StateChange) error {
	s.changes <- c
	return nil
}

func TestEventCollectorRecordsStateChanges(t *testing.T) {
	bus := eventbus.New()
	sink := &stateSink{changes: make(chan coremetrics.StateChange, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	done := StartEventCollector(ctx, bus, sink)

	bus.Publish(events.OverrunEvent{Tick: 1})
	bus.Publish(events.StateEvent{From: "built", To: "running", RunID: "r1"})
	select {
	case c := <-sink.changes:
		assert.Equal(t, "running", c.To)
		assert.Equal(t, "r1", c.RunID)
	case <-time.After(2 * time.Second):
		t.Fatal("state change not recorded")
	}
	cancel()
	<-done

	closed := StartEventCollector(context.Background(), bus, tickOnlySink{})
	<-closed
}

type tickOnlySink struct{}

func (tickOnlySink) RecordTick(coremetrics.TickSample) error { return nil }
