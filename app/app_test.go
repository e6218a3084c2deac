package app

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/stbs/config"
	"github.com/kilianp07/stbs/core/device"
	"github.com/kilianp07/stbs/core/factory"
	"github.com/kilianp07/stbs/core/scheduler"
	"github.com/kilianp07/stbs/infra/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	logger.SetOutput(io.Discard)
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })
	cfg := &config.Config{}
	cfg.Scheduler.TickMS = 10
	cfg.API.Address = "127.0.0.1:0"
	cfg.Logging.Format = "json"
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestServiceRunsDefaultTaskSet(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	defer func() { assert.NoError(t, svc.Close()) }()
	assert.Equal(t, scheduler.StateBuilt, svc.Scheduler().State())
	assert.Equal(t, 2, svc.Scheduler().Macrocycle())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, svc.Run(ctx))

	assert.Equal(t, scheduler.StateUnbuilt, svc.Scheduler().State())
	assert.Positive(t, svc.Scheduler().Stats().Ticks)
	runs := map[string]uint64{}
	for _, st := range svc.Pool().Stats() {
		runs[st.Name] = st.Runs
	}
	assert.Positive(t, runs[device.IOSyncTask])
	assert.Positive(t, runs[device.IntegrityTask])
}

func TestNewRejectsInfeasibleTaskSet(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.Tasks = []scheduler.TaskConfig{{Name: device.IdleTask, Period: 1, Priority: 1, BudgetMS: 11}}
	_, err := New(cfg)
	assert.ErrorIs(t, err, scheduler.ErrInfeasible)
}

func TestNewRejectsUnknownTask(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.Tasks = []scheduler.TaskConfig{{Name: "blink", Period: 1, Priority: 1, BudgetMS: 1}}
	_, err := New(cfg)
	assert.ErrorContains(t, err, `unknown task "blink"`)
}

func TestNewRejectsUnknownSink(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "statsd"}}
	_, err := New(cfg)
	assert.ErrorContains(t, err, "metrics sink")
}

func TestPrintTable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.TickMS = 50
	var buf bytes.Buffer
	require.NoError(t, PrintTable(cfg, &buf))
	out := buf.String()
	assert.Contains(t, out, "Schedule table: 2 ticks of 50ms")
	assert.Contains(t, out, "io-sync")
	assert.Contains(t, out, "integrity")
	assert.Contains(t, out, "toggle")

	cfg.Scheduler.Tasks[0].BudgetMS = 60
	buf.Reset()
	assert.ErrorIs(t, PrintTable(cfg, &buf), scheduler.ErrInfeasible)
}
