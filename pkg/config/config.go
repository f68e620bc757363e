// Package config loads and validates collector tunables from YAML and can
// apply them to a live engine, including hot reload on file change.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"cyclegc/pkg/memory"
)

// Config holds the host-tunable collector settings.
type Config struct {
	// Enabled gates automatic threshold-triggered collection.
	Enabled bool `yaml:"enabled"`
	// Thresholds are the three generation thresholds, youngest first.
	Thresholds [3]int `yaml:"thresholds"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration a fresh engine starts with.
func Default() Config {
	return Config{
		Enabled:    true,
		Thresholds: memory.DefaultThresholds,
		LogLevel:   "info",
	}
}

// Load reads and validates a YAML config file. Unknown keys are rejected so
// that typos in tunable names fail loudly instead of silently using defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML config bytes.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration the same way the engine would, so a bad
// file is rejected before any engine state changes.
func (c Config) Validate() error {
	for i, t := range c.Thresholds {
		if t <= 0 {
			return fmt.Errorf("threshold[%d] = %d, must be positive: %w",
				i, t, memory.ErrInvalidConfiguration)
		}
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel maps the configured level name to a slog level.
func (c Config) SlogLevel() (slog.Level, error) {
	switch c.LogLevel {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q: %w",
			c.LogLevel, memory.ErrInvalidConfiguration)
	}
}

// Apply pushes thresholds and the enabled flag into a live engine.
func (c Config) Apply(e *memory.Engine) error {
	if err := e.SetThresholds(c.Thresholds[0], c.Thresholds[1], c.Thresholds[2]); err != nil {
		return err
	}
	if c.Enabled {
		e.Enable()
	} else {
		e.Disable()
	}
	return nil
}
