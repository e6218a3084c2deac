package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/stbs/core/metrics"
)

type lineCapture struct {
	mu    sync.Mutex
	lines []string
}

func (c *lineCapture) handler(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	c.mu.Lock()
	for _, l := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if l != "" {
			c.lines = append(c.lines, l)
		}
	}
	c.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (c *lineCapture) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func TestInfluxSinkRecordTick(t *testing.T) {
	capt := &lineCapture{}
	srv := httptest.NewServer(http.HandlerFunc(capt.handler))
	defer srv.Close()

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket", BatchSize: 100})
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	sample := coremetrics.TickSample{
		RunID:       "run-1",
		Traversal:   3,
		Tick:        1,
		Activations: 2,
		Lateness:    150 * time.Microsecond,
		Busy:        2 * time.Millisecond,
		Slack:       48 * time.Millisecond,
		Time:        now,
	}
	require.NoError(t, sink.RecordTick(sample))
	require.NoError(t, sink.Close())

	p := write.NewPointWithMeasurement("tick_sample").
		AddTag("run_id", "run-1").
		AddTag("tick", "1").
		AddTag("overrun", "false").
		AddField("traversal", int64(3)).
		AddField("activations", 2).
		AddField("failed", 0).
		AddField("lateness_us", int64(150)).
		AddField("busy_us", int64(2000)).
		AddField("slack_us", int64(48000)).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Microsecond))
	require.Eventually(t, func() bool { return len(capt.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, expected, capt.all()[0])
}

func TestInfluxSinkRecordBuildActivationState(t *testing.T) {
	capt := &lineCapture{}
	srv := httptest.NewServer(http.HandlerFunc(capt.handler))
	defer srv.Close()

	sink := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Org: "org", Bucket: "bucket"})
	now := time.Now()
	require.NoError(t, sink.RecordBuild(coremetrics.BuildEvent{Tasks: 3, Macrocycle: 2, Utilisation: 0.12, Feasible: true, Time: now}))
	require.NoError(t, sink.RecordActivation(coremetrics.ActivationSample{Task: "toggle", Exec: time.Millisecond, Err: errors.New("gpio"), Time: now}))
	require.NoError(t, sink.RecordState(coremetrics.StateChange{From: "built", To: "running", RunID: "r", Time: now}))
	require.NoError(t, sink.Close())

	require.Eventually(t, func() bool { return len(capt.all()) == 3 }, 2*time.Second, 10*time.Millisecond)
	lines := strings.Join(capt.all(), "\n")
	assert.Contains(t, lines, "table_build,feasible=true")
	assert.Contains(t, lines, "task_exec,")
	assert.Contains(t, lines, "task=toggle")
	assert.Contains(t, lines, "over_budget=false")
	assert.Contains(t, lines, `error="gpio"`)
	assert.Contains(t, lines, `scheduler_state,run_id=r from="built"`)
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	_, isInflux := sink.(*InfluxSink)
	assert.False(t, isInflux, "expected NopSink on failing health check")
	assert.True(t, called, "health endpoint not called")
}
