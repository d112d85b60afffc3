package scheduler

import (
	"time"

	"github.com/smallbiznis/referrals/internal/config"
)

// Config controls journal maintenance intervals and batch sizes.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	StaleAfter  time.Duration
	Retention   time.Duration
	BatchSize   int
	JobTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		RunInterval: 10 * time.Minute,
		StaleAfter:  15 * time.Minute,
		Retention:   90 * 24 * time.Hour,
		BatchSize:   500,
		JobTimeout:  30 * time.Second,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:     cfg.Maintenance.Enabled,
		RunInterval: cfg.Maintenance.Interval,
		StaleAfter:  cfg.Maintenance.StaleAfter,
		Retention:   cfg.Maintenance.Retention,
		BatchSize:   cfg.Maintenance.BatchSize,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = defaults.StaleAfter
	}
	if c.Retention <= 0 {
		c.Retention = defaults.Retention
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
