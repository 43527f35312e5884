package extractinvoicefields

import (
	"fmt"
	"time"
)

type Config struct {
	Enabled             bool          `mapstructure:"enabled"`
	MaxJobsActive       int           `mapstructure:"max_jobs_active"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxDepth            int           `mapstructure:"max_depth"`
	ExtraVendorPatterns []string      `mapstructure:"extra_vendor_patterns"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 10,
		Timeout:       10 * time.Second,
		MaxDepth:      3,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.MaxDepth < 1 {
		return fmt.Errorf("max_depth must be at least 1")
	}
	return nil
}
