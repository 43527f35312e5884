package enrichextractionresult

import (
	"fmt"
	"time"

	"invoice-workers/internal/matching"
)

type Config struct {
	Enabled        bool             `mapstructure:"enabled"`
	MaxJobsActive  int              `mapstructure:"max_jobs_active"`
	Timeout        time.Duration    `mapstructure:"timeout"`
	ResultPrefix   string           `mapstructure:"result_prefix"`
	EnhancedPrefix string           `mapstructure:"enhanced_prefix"`
	Matching       matching.Options `mapstructure:"matching"`
	MaxDepth       int              `mapstructure:"max_depth"`
	VendorPatterns []string         `mapstructure:"extra_vendor_patterns"`
	CacheTTL       time.Duration    `mapstructure:"cache_ttl"`
	SearchEnabled  bool             `mapstructure:"search_enabled"`
	SearchIndex    string           `mapstructure:"search_index"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		MaxJobsActive:  5,
		Timeout:        30 * time.Second,
		ResultPrefix:   "bda-result/",
		EnhancedPrefix: "enhanced-result/",
		Matching:       matching.DefaultOptions(),
		MaxDepth:       3,
		CacheTTL:       5 * time.Minute,
		SearchIndex:    "invoice-extractions",
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.EnhancedPrefix == "" {
		return fmt.Errorf("enhanced_prefix is required")
	}
	if c.EnhancedPrefix == c.ResultPrefix {
		return fmt.Errorf("enhanced_prefix must differ from result_prefix")
	}
	if c.SearchEnabled && c.SearchIndex == "" {
		return fmt.Errorf("search_index is required when search is enabled")
	}
	return nil
}
