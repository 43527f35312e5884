package matchsupplier

import (
	"fmt"
	"time"

	"invoice-workers/internal/matching"
)

type Config struct {
	Enabled       bool             `mapstructure:"enabled"`
	MaxJobsActive int              `mapstructure:"max_jobs_active"`
	Timeout       time.Duration    `mapstructure:"timeout"`
	Matching      matching.Options `mapstructure:"matching"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 10,
		Timeout:       15 * time.Second,
		Matching:      matching.DefaultOptions(),
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.Matching.FuzzyFloor < 0 || c.Matching.FuzzyFloor > 100 {
		return fmt.Errorf("fuzzy_floor must be within [0,100]")
	}
	if c.Matching.AcceptanceThreshold < 0 || c.Matching.AcceptanceThreshold > 100 {
		return fmt.Errorf("acceptance_threshold must be within [0,100]")
	}
	return nil
}
