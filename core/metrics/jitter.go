package metrics

import (
	"math"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// JitterSummary describes the distribution of tick release lateness over the
// most recent window.
type JitterSummary struct {
	Samples  int           `json:"samples"`
	Overruns int           `json:"overruns"`
	Mean     time.Duration `json:"mean"`
	StdDev   time.Duration `json:"stddev"`
	P99      time.Duration `json:"p99"`
	Max      time.Duration `json:"max"`
}

// JitterWindow keeps the lateness of the last N ticks in a ring buffer. It is
// itself a Sink so it can be chained behind a MultiSink.
type JitterWindow struct {
	mu       sync.Mutex
	lateness []float64
	overrun  []bool
	next     int
	full     bool
}

// NewJitterWindow returns a window holding size samples (minimum 1).
func NewJitterWindow(size int) *JitterWindow {
	if size < 1 {
		size = 1
	}
	return &JitterWindow{lateness: make([]float64, size), overrun: make([]bool, size)}
}

// RecordTick stores the lateness of the sample.
func (w *JitterWindow) RecordTick(s TickSample) error {
	w.mu.Lock()
	w.lateness[w.next] = float64(s.Lateness)
	w.overrun[w.next] = s.Overrun
	w.next++
	if w.next == len(w.lateness) {
		w.next = 0
		w.full = true
	}
	w.mu.Unlock()
	return nil
}

// Summary computes the statistics over the samples currently in the window.
func (w *JitterWindow) Summary() JitterSummary {
	w.mu.Lock()
	n := w.next
	if w.full {
		n = len(w.lateness)
	}
	xs := make([]float64, n)
	copy(xs, w.lateness[:n])
	overruns := 0
	for _, o := range w.overrun[:n] {
		if o {
			overruns++
		}
	}
	w.mu.Unlock()

	if n == 0 {
		return JitterSummary{}
	}
	sort.Float64s(xs)
	sum := JitterSummary{Samples: n, Overruns: overruns, Max: time.Duration(xs[n-1])}
	if n == 1 {
		sum.Mean = time.Duration(xs[0])
		sum.P99 = time.Duration(xs[0])
		return sum
	}
	mean, std := stat.MeanStdDev(xs, nil)
	sum.Mean = time.Duration(math.Round(mean))
	sum.StdDev = time.Duration(math.Round(std))
	sum.P99 = time.Duration(stat.Quantile(0.99, stat.Empirical, xs, nil))
	return sum
}
