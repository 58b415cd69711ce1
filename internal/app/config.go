package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/vk/framegridgo/internal/pool"
)

// Deadline policy names accepted by Config.Policy.
const (
	PolicyDegrade = "degrade"
	PolicyDrop    = "drop"
	PolicyProceed = "proceed"
)

// Defaults applied by NewConfig.
const (
	DefaultFPS     = 30
	DefaultWorkers = 4
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PatchPath string // hcl patch file

	FPS       int           // target frame rate
	Budget    time.Duration // per-frame compute budget; zero means the full frame period
	Workers   int           // scheduler worker goroutines
	HighWater int           // pooled buffers per frame class
	Policy    string        // deadline policy: degrade, drop or proceed
	Watch     bool          // hot-reload the patch file on change
	Represent bool          // re-present the last composite on dropped frames

	MetricsPort int // observability HTTP server; zero disables it
	LogFormat   string
	LogLevel    string
}

// NewConfig validates cfg and fills in defaults for zero-valued fields.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.PatchPath == "" {
		return nil, errors.New("PatchPath is a required configuration field and cannot be empty")
	}
	if cfg.FPS < 0 || cfg.FPS > 240 {
		return nil, fmt.Errorf("FPS must be between 1 and 240, got %d", cfg.FPS)
	}
	if cfg.FPS == 0 {
		cfg.FPS = DefaultFPS
	}
	if cfg.Budget < 0 {
		return nil, fmt.Errorf("Budget cannot be negative, got %s", cfg.Budget)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("Workers cannot be negative, got %d", cfg.Workers)
	}
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.HighWater < 0 {
		return nil, fmt.Errorf("HighWater cannot be negative, got %d", cfg.HighWater)
	}
	if cfg.HighWater == 0 {
		cfg.HighWater = pool.DefaultHighWater
	}

	switch cfg.Policy {
	case "":
		cfg.Policy = PolicyDegrade
	case PolicyDegrade, PolicyDrop, PolicyProceed:
	default:
		return nil, fmt.Errorf("unknown deadline policy %q", cfg.Policy)
	}

	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// period returns the frame interval the configured FPS implies.
func (c *Config) period() time.Duration {
	return time.Second / time.Duration(c.FPS)
}
