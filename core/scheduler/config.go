package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TaskConfig describes one task of a configured task set.
type TaskConfig struct {
	Name     string  `json:"name" yaml:"name" koanf:"name"`
	Period   int     `json:"period" yaml:"period" koanf:"period"`
	Priority int     `json:"priority" yaml:"priority" koanf:"priority"`
	BudgetMS float64 `json:"budget_ms" yaml:"budget_ms" koanf:"budget_ms"`
}

// Budget converts BudgetMS to a duration.
func (t TaskConfig) Budget() time.Duration {
	return time.Duration(t.BudgetMS * float64(time.Millisecond))
}

// Config defines scheduler parameters loaded from configuration.
type Config struct {
	TickMS         int          `json:"tick_ms" yaml:"tick_ms" koanf:"tick_ms"`
	Capacity       int          `json:"capacity" yaml:"capacity" koanf:"capacity"`
	MaxTableTicks  int          `json:"max_table_ticks" yaml:"max_table_ticks" koanf:"max_table_ticks"`
	OverrunPolicy  string       `json:"overrun_policy" yaml:"overrun_policy" koanf:"overrun_policy"`
	BoundaryPolicy string       `json:"boundary_policy" yaml:"boundary_policy" koanf:"boundary_policy"`
	SettleMS       int          `json:"settle_ms" yaml:"settle_ms" koanf:"settle_ms"`
	Tasks          []TaskConfig `json:"tasks" yaml:"tasks" koanf:"tasks"`
}

// SetDefaults fills unset fields. The capacity defaults to the number of
// configured tasks, with a minimum of 8.
func (c *Config) SetDefaults() {
	if c.TickMS == 0 {
		c.TickMS = 50
	}
	if c.Capacity == 0 {
		c.Capacity = max(8, len(c.Tasks))
	}
	if c.MaxTableTicks == 0 {
		c.MaxTableTicks = DefaultMaxTableTicks
	}
	if c.OverrunPolicy == "" {
		c.OverrunPolicy = OverrunProceed.String()
	}
	if c.BoundaryPolicy == "" {
		c.BoundaryPolicy = BoundaryReanchor.String()
	}
}

// Validate checks the configuration without building a table.
func (c Config) Validate() error {
	var errs []error
	if c.TickMS <= 0 {
		errs = append(errs, fmt.Errorf("tick_ms must be positive"))
	}
	if c.Capacity < len(c.Tasks) {
		errs = append(errs, fmt.Errorf("capacity %d is below the %d configured tasks", c.Capacity, len(c.Tasks)))
	}
	if _, err := ParseOverrunPolicy(c.OverrunPolicy); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseBoundaryPolicy(c.BoundaryPolicy); err != nil {
		errs = append(errs, err)
	}
	if c.SettleMS < 0 {
		errs = append(errs, fmt.Errorf("settle_ms must not be negative"))
	}
	seen := make(map[string]bool, len(c.Tasks))
	for i, t := range c.Tasks {
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("tasks[%d]: name is required", i))
		} else if seen[t.Name] {
			errs = append(errs, fmt.Errorf("tasks[%d]: duplicate name %q", i, t.Name))
		}
		seen[t.Name] = true
		if t.Period < 1 {
			errs = append(errs, fmt.Errorf("tasks[%d]: period must be at least 1", i))
		}
		if t.BudgetMS < 0 {
			errs = append(errs, fmt.Errorf("tasks[%d]: budget_ms must not be negative", i))
		}
	}
	return errors.Join(errs...)
}

// Options converts the configuration. Collaborators such as the clock and
// logger are left for the caller to set.
func (c Config) Options() (Options, error) {
	ov, err := ParseOverrunPolicy(c.OverrunPolicy)
	if err != nil {
		return Options{}, err
	}
	bd, err := ParseBoundaryPolicy(c.BoundaryPolicy)
	if err != nil {
		return Options{}, err
	}
	return Options{
		TickDuration:  time.Duration(c.TickMS) * time.Millisecond,
		Capacity:      c.Capacity,
		MaxTableTicks: c.MaxTableTicks,
		Overrun:       ov,
		Boundary:      bd,
		Settle:        time.Duration(c.SettleMS) * time.Millisecond,
	}, nil
}

// LoadTaskSet loads a scheduler Config from a JSON or YAML file.
func LoadTaskSet(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	cfg, err := DecodeTaskSet(f, ext)
	if err != nil {
		return Config{}, fmt.Errorf("load task set %s: %w", path, err)
	}
	return cfg, nil
}

// DecodeTaskSet reads from r to decode a scheduler Config.
func DecodeTaskSet(r io.Reader, format string) (Config, error) {
	var cfg Config
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported format: %s", format)
	}
	return cfg, nil
}
