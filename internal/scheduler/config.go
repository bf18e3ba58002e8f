package scheduler

import (
	"time"

	"github.com/smallbiznis/crm/internal/config"
)

// Config controls how jobs are executed. Job intervals and job settings
// live in config.JobsConfig so they can be reloaded.
type Config struct {
	JobTimeout  time.Duration
	LeaseTTL    time.Duration
	LeasePrefix string
}

func DefaultConfig() Config {
	return Config{
		JobTimeout:  2 * time.Minute,
		LeaseTTL:    5 * time.Minute,
		LeasePrefix: "crm:scheduler:lease:",
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = defaults.LeaseTTL
	}
	if c.LeasePrefix == "" {
		c.LeasePrefix = defaults.LeasePrefix
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	out := DefaultConfig()
	if cfg.AppName != "" {
		out.LeasePrefix = cfg.AppName + ":scheduler:lease:"
	}
	return out
}
