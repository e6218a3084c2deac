// Package rtdb provides the process image backends selected by configuration.
package rtdb

import (
	"fmt"

	"github.com/kilianp07/stbs/core/rtdb"
)

// Config selects the process image backend.
type Config struct {
	Backend string `json:"backend" koanf:"backend"`
	Path    string `json:"path" koanf:"path"`
}

// SetDefaults selects the in-memory backend.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "sqlite" && c.Path == "" {
		c.Path = "stbs.db"
	}
}

// Validate checks the backend name.
func (c Config) Validate() error {
	switch c.Backend {
	case "memory", "sqlite":
		return nil
	}
	return fmt.Errorf("rtdb.backend: unsupported %q", c.Backend)
}

// Open returns the configured store and a function releasing it.
func Open(cfg Config) (rtdb.Store, func() error, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if cfg.Backend == "sqlite" {
		s, err := NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.Path, err)
		}
		return s, s.Close, nil
	}
	return rtdb.NewMemoryStore(), func() error { return nil }, nil
}
