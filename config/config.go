// Package config loads the controller configuration from a YAML or JSON file
// with STBS_ environment overrides.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/stbs/api"
	"github.com/kilianp07/stbs/core/device"
	"github.com/kilianp07/stbs/core/metrics"
	"github.com/kilianp07/stbs/core/scheduler"
	"github.com/kilianp07/stbs/infra/logger"
	"github.com/kilianp07/stbs/infra/mqtt"
	"github.com/kilianp07/stbs/infra/rtdb"
	"github.com/kilianp07/stbs/simulator"
)

// EnvPrefix prefixes environment overrides. Nested keys are separated by a
// double underscore, e.g. STBS_SCHEDULER__TICK_MS=20.
const EnvPrefix = "STBS_"

type Config struct {
	Scheduler scheduler.Config `json:"scheduler"`
	Logging   logger.Config    `json:"logging"`
	Metrics   metrics.Config   `json:"metrics"`
	MQTT      mqtt.Config      `json:"mqtt"`
	RTDB      rtdb.Config      `json:"rtdb"`
	API       api.Config       `json:"api"`
	Simulator simulator.Config `json:"simulator"`
}

// MQTTEnabled reports whether a broker is configured.
func (c Config) MQTTEnabled() bool { return c.MQTT.Broker != "" }

// SetDefaults applies the defaults of every section. Without configured
// tasks the stock device task set is used.
func (c *Config) SetDefaults() {
	if len(c.Scheduler.Tasks) == 0 {
		c.Scheduler.Tasks = device.DefaultTaskSet()
	}
	c.Scheduler.SetDefaults()
	c.Logging.SetDefaults()
	c.Metrics.SetDefaults()
	if c.MQTTEnabled() {
		c.MQTT.SetDefaults()
	}
	c.RTDB.SetDefaults()
	c.API.SetDefaults()
	c.Simulator.SetDefaults()
}

// Validate checks every section and reports all problems at once.
func (c Config) Validate() error {
	var errs []error
	if err := c.Scheduler.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scheduler: %w", err))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.MQTTEnabled() {
		if err := c.MQTT.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.RTDB.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Simulator.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// Load reads path (optional), applies environment overrides, defaults and
// validation.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
