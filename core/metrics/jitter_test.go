package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJitterWindowEmpty(t *testing.T) {
	w := NewJitterWindow(4)
	assert.Equal(t, JitterSummary{}, w.Summary())
}

func TestJitterWindowSummary(t *testing.T) {
	w := NewJitterWindow(8)
	for _, ms := range []int{1, 2, 3, 4} {
		_ = w.RecordTick(TickSample{Lateness: time.Duration(ms) * time.Millisecond, Overrun: ms == 4})
	}
	s := w.Summary()
	assert.Equal(t, 4, s.Samples)
	assert.Equal(t, 1, s.Overruns)
	assert.Equal(t, 2500*time.Microsecond, s.Mean)
	assert.Equal(t, 4*time.Millisecond, s.Max)
	assert.Equal(t, 4*time.Millisecond, s.P99)
	assert.InDelta(t, float64(1290994), float64(s.StdDev), 1)
}

func TestJitterWindowWraps(t *testing.T) {
	w := NewJitterWindow(2)
	for _, ms := range []int{100, 1, 3} {
		_ = w.RecordTick(TickSample{Lateness: time.Duration(ms) * time.Millisecond})
	}
	s := w.Summary()
	assert.Equal(t, 2, s.Samples)
	assert.Equal(t, 3*time.Millisecond, s.Max, "oldest sample should have been evicted")
	assert.Equal(t, 2*time.Millisecond, s.Mean)
}

func TestJitterWindowSingle(t *testing.T) {
	w := NewJitterWindow(0)
	_ = w.RecordTick(TickSample{Lateness: time.Millisecond})
	s := w.Summary()
	assert.Equal(t, 1, s.Samples)
	assert.Equal(t, time.Duration(0), s.StdDev)
	assert.Equal(t, time.Millisecond, s.Mean)
}
