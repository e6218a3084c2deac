package scheduler

import "github.com/prometheus/client_golang/prometheus"

var (
	ticksTotal        prometheus.Counter
	overrunsTotal     *prometheus.CounterVec
	activationsTotal  *prometheus.CounterVec
	traversalsTotal   prometheus.Counter
	tickLateness      prometheus.Histogram
	schedulerState    *prometheus.GaugeVec
	macrocycleTicks   prometheus.Gauge
	tableUtilisation  prometheus.Gauge
	buildFailureTotal prometheus.Counter
)

func newCollectors() (prometheus.Counter, *prometheus.CounterVec, *prometheus.CounterVec, prometheus.Counter,
	prometheus.Histogram, *prometheus.GaugeVec, prometheus.Gauge, prometheus.Gauge, prometheus.Counter) {
	ticks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stbs_ticks_total",
		Help: "Number of ticks dispatched",
	})
	over := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stbs_tick_overruns_total",
		Help: "Number of ticks whose activations ended at or after the release deadline",
	}, []string{"policy"})
	act := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stbs_activations_total",
		Help: "Task activations by result",
	}, []string{"task", "result"})
	trav := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stbs_macrocycles_total",
		Help: "Number of completed macrocycle traversals",
	})
	late := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "stbs_tick_lateness_seconds",
		Help:    "Delay between a tick's ideal release and its actual start",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})
	state := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stbs_scheduler_state",
		Help: "1 for the current scheduler lifecycle state",
	}, []string{"state"})
	macro := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stbs_macrocycle_ticks",
		Help: "Length of the current schedule table in ticks",
	})
	util := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stbs_table_utilisation_ratio",
		Help: "Committed budget over table capacity",
	})
	bfail := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stbs_build_failures_total",
		Help: "Number of failed table builds",
	})
	return ticks, over, act, trav, late, state, macro, util, bfail
}

func init() {
	ticksTotal, overrunsTotal, activationsTotal, traversalsTotal, tickLateness,
		schedulerState, macrocycleTicks, tableUtilisation, buildFailureTotal = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers scheduler metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(ticksTotal, overrunsTotal, activationsTotal, traversalsTotal, tickLateness,
		schedulerState, macrocycleTicks, tableUtilisation, buildFailureTotal)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	ticksTotal, overrunsTotal, activationsTotal, traversalsTotal, tickLateness,
		schedulerState, macrocycleTicks, tableUtilisation, buildFailureTotal = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

func setStateGauge(s State) {
	for _, st := range []State{StateUnbuilt, StateBuilt, StateRunning, StateFailed} {
		v := 0.0
		if st == s {
			v = 1
		}
		schedulerState.WithLabelValues(st.String()).Set(v)
	}
}
