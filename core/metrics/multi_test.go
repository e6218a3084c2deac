package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/stbs/core/factory"
)

type recordSink struct {
	ticks  int
	builds int
	closed bool
	err    error
}

func (r *recordSink) RecordTick(TickSample) error {
	r.ticks++
	return r.err
}

func (r *recordSink) RecordBuild(BuildEvent) error {
	r.builds++
	return nil
}

func (r *recordSink) Close() error {
	r.closed = true
	return nil
}

// TestMultiSink ensures samples are forwarded to all sinks, even after an error.
func TestMultiSink(t *testing.T) {
	boom := errors.New("boom")
	s1 := &recordSink{err: boom}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2, NopSink{})
	err := m.RecordTick(TickSample{Tick: 1})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, m.RecordBuild(BuildEvent{Feasible: true}))
	require.NoError(t, m.Close())
	assert.Equal(t, 1, s1.ticks)
	assert.Equal(t, 1, s2.ticks)
	assert.Equal(t, 1, s2.builds)
	assert.True(t, s1.closed && s2.closed)
}

func TestNewSink(t *testing.T) {
	s, err := NewSink(nil)
	require.NoError(t, err)
	assert.IsType(t, NopSink{}, s)

	s, err = NewSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}})
	require.NoError(t, err)
	m, ok := s.(*MultiSink)
	require.True(t, ok, "expected MultiSink, got %T", s)
	assert.Len(t, m.Sinks, 2)

	_, err = NewSink([]factory.ModuleConfig{{Type: "missing"}})
	assert.Error(t, err)
	assert.Contains(t, SinkTypes(), "nop")
}
