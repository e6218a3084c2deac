package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	corelogger "github.com/kilianp07/stbs/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger discards everything.
type NopLogger = corelogger.Nop

// Config selects the global level and output format.
type Config struct {
	Level  string `json:"level" yaml:"level" koanf:"level"`
	Format string `json:"format" yaml:"format" koanf:"format"`
}

// SetDefaults applies sane defaults. The format follows APP_ENV: console in
// dev, JSON otherwise.
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		if strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
			c.Format = "console"
		} else {
			c.Format = "json"
		}
	}
}

// Validate checks level and format.
func (c Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Level)); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Format {
	case "json", "console":
		return nil
	}
	return fmt.Errorf("logging.format: unsupported %q", c.Format)
}

var (
	mu     sync.RWMutex
	out    io.Writer = os.Stdout
	format           = ""
)

// Configure applies cfg to every logger created afterwards.
func Configure(cfg Config) error {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	lvl, _ := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	zerolog.SetGlobalLevel(lvl)
	mu.Lock()
	format = cfg.Format
	mu.Unlock()
	return nil
}

// SetOutput redirects loggers created afterwards to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	out = w
	mu.Unlock()
}

// New returns a Logger for the given component using the configured output.
func New(component string) Logger {
	mu.RLock()
	w, f := out, format
	mu.RUnlock()
	if f == "" {
		c := Config{}
		c.SetDefaults()
		f = c.Format
	}
	return NewZerologLogger(w, f, component)
}
