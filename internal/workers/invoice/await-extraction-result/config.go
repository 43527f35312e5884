package awaitextractionresult

import (
	"fmt"
	"time"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ResultPrefix  string        `mapstructure:"result_prefix"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	MaxWait       time.Duration `mapstructure:"max_wait"`
	CleanupWindow time.Duration `mapstructure:"cleanup_window"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 20,
		Timeout:       3 * time.Minute,
		ResultPrefix:  "bda-result/",
		PollInterval:  5 * time.Second,
		MaxWait:       2 * time.Minute,
		CleanupWindow: 5 * time.Minute,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.MaxWait <= 0 {
		return fmt.Errorf("max_wait must be positive")
	}
	if c.MaxWait >= c.Timeout {
		return fmt.Errorf("max_wait must be shorter than the job timeout")
	}
	return nil
}
