package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/stbs/core/metrics"
)

// PromSink records tick, build and activation samples in Prometheus metrics.
// Tick counters and lateness are owned by the scheduler package; this sink
// adds the busy/slack distribution and per-task execution times.
type PromSink struct {
	busy       prometheus.Histogram
	slack      prometheus.Histogram
	exec       *prometheus.HistogramVec
	overBudget *prometheus.CounterVec
	buildTime  prometheus.Gauge
	feasible   prometheus.Gauge
}

// NewPromSink registers metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by an earlier sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	tickBuckets := prometheus.ExponentialBuckets(0.0001, 2, 14)
	s := &PromSink{
		busy: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stbs_tick_busy_seconds",
			Help:    "Time spent activating the tasks of a tick",
			Buckets: tickBuckets,
		}),
		slack: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stbs_tick_slack_seconds",
			Help:    "Time left before the release deadline after activations",
			Buckets: tickBuckets,
		}),
		exec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stbs_task_exec_seconds",
			Help:    "Measured execution time of task bodies",
			Buckets: tickBuckets,
		}, []string{"task"}),
		overBudget: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stbs_task_over_budget_total",
			Help: "Executions that exceeded the declared budget",
		}, []string{"task", "failed"}),
		buildTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stbs_build_duration_seconds",
			Help: "Duration of the last table build",
		}),
		feasible: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stbs_build_feasible",
			Help: "1 when the last table build succeeded",
		}),
	}
	var err error
	if s.busy, err = register(reg, s.busy); err != nil {
		return nil, err
	}
	if s.slack, err = register(reg, s.slack); err != nil {
		return nil, err
	}
	if s.exec, err = register(reg, s.exec); err != nil {
		return nil, err
	}
	if s.overBudget, err = register(reg, s.overBudget); err != nil {
		return nil, err
	}
	if s.buildTime, err = register(reg, s.buildTime); err != nil {
		return nil, err
	}
	if s.feasible, err = register(reg, s.feasible); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordTick observes the busy and slack time of the tick.
func (s *PromSink) RecordTick(t coremetrics.TickSample) error {
	s.busy.Observe(t.Busy.Seconds())
	if !t.Overrun {
		s.slack.Observe(t.Slack.Seconds())
	}
	return nil
}

// RecordBuild exposes the outcome of the last build.
func (s *PromSink) RecordBuild(ev coremetrics.BuildEvent) error {
	s.buildTime.Set(ev.Took.Seconds())
	if ev.Feasible {
		s.feasible.Set(1)
	} else {
		s.feasible.Set(0)
	}
	return nil
}

// RecordActivation observes a task execution.
func (s *PromSink) RecordActivation(a coremetrics.ActivationSample) error {
	s.exec.WithLabelValues(a.Task).Observe(a.Exec.Seconds())
	if a.OverBudget {
		s.overBudget.WithLabelValues(a.Task, strconv.FormatBool(a.Err != nil)).Inc()
	}
	return nil
}
