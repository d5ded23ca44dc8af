// Package config handles sparklebake configuration loading and management.
package config

import (
	"fmt"
	"time"
)

// Config holds all runtime settings.
type Config struct {
	Bake    BakeConfig    `yaml:"bake"`
	Export  ExportConfig  `yaml:"export"`
	Watch   WatchConfig   `yaml:"watch"`
	Preview PreviewConfig `yaml:"preview"`
	Logging LoggingConfig `yaml:"logging"`
}

// BakeConfig selects the position-map path for skinned meshes.
type BakeConfig struct {
	GPU             bool   `yaml:"gpu"`
	PowerPreference string `yaml:"power_preference"` // "high" or "low"
}

type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// WatchConfig controls mesh file watching.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

type PreviewConfig struct {
	MaxParticles int   `yaml:"max_particles"`
	Seed         int64 `yaml:"seed"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Bake: BakeConfig{
			GPU:             true,
			PowerPreference: "high",
		},
		Export: ExportConfig{
			Dir: "maps",
		},
		Watch: WatchConfig{
			Enabled:  false,
			Debounce: 100 * time.Millisecond,
		},
		Preview: PreviewConfig{
			MaxParticles: 4096,
			Seed:         1,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Bake.PowerPreference {
	case "high", "low":
	default:
		return fmt.Errorf("bake.power_preference: unknown value %q", c.Bake.PowerPreference)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unknown value %q", c.Logging.Level)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce: must not be negative, got %v", c.Watch.Debounce)
	}
	if c.Preview.MaxParticles <= 0 {
		return fmt.Errorf("preview.max_particles: must be positive, got %d", c.Preview.MaxParticles)
	}
	return nil
}
