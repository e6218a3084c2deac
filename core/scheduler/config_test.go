package scheduler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const taskSetYAML = `
tick_ms: 50
overrun_policy: resync
tasks:
  - name: io-sync
    period: 1
    priority: 1
    budget_ms: 3
  - name: toggle
    period: 2
    priority: 2
    budget_ms: 2.5
`

func TestDecodeTaskSetYAML(t *testing.T) {
	cfg, err := DecodeTaskSet(strings.NewReader(taskSetYAML), "yaml")
	require.NoError(t, err)
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	require.Len(t, cfg.Tasks, 2)
	assert.Equal(t, 2500*time.Microsecond, cfg.Tasks[1].Budget())
	assert.Equal(t, 8, cfg.Capacity)
	assert.Equal(t, "reanchor", cfg.BoundaryPolicy)

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, opts.TickDuration)
	assert.Equal(t, OverrunResync, opts.Overrun)
	assert.Equal(t, BoundaryReanchor, opts.Boundary)
}

func TestLoadTaskSetJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")
	data := `{"tick_ms": 10, "tasks": [{"name": "a", "period": 3, "priority": 0, "budget_ms": 1}]}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
	cfg, err := LoadTaskSet(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.TickMS)
	assert.Equal(t, "a", cfg.Tasks[0].Name)

	_, err = LoadTaskSet(filepath.Join(dir, "tasks.toml"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{
		TickMS:         -1,
		Capacity:       1,
		OverrunPolicy:  "explode",
		BoundaryPolicy: "sideways",
		Tasks: []TaskConfig{
			{Name: "a", Period: 0},
			{Name: "a", Period: 1, BudgetMS: -1},
		},
	}
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"tick_ms", "capacity", "overrun policy", "boundary policy", "duplicate", "period", "budget_ms"} {
		assert.Contains(t, err.Error(), want)
	}
	_, err = cfg.Options()
	assert.Error(t, err)
}

func TestParsePolicies(t *testing.T) {
	for _, p := range []OverrunPolicy{OverrunProceed, OverrunResync, OverrunAbort} {
		got, err := ParseOverrunPolicy(strings.ToUpper(p.String()))
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	for _, p := range []BoundaryPolicy{BoundaryReanchor, BoundaryContinuous} {
		got, err := ParseBoundaryPolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParseBoundaryPolicy("never")
	assert.Error(t, err)
}
