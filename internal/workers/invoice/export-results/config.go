package exportresults

import (
	"fmt"
	"time"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatJSON = "json"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ExportPrefix  string        `mapstructure:"export_prefix"`
	FileBaseName  string        `mapstructure:"file_base_name"`
	DefaultFormat string        `mapstructure:"default_format"`
	MaxItems      int           `mapstructure:"max_items"`
	MaxDepth      int           `mapstructure:"max_depth"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 2,
		Timeout:       2 * time.Minute,
		ExportPrefix:  "exports/",
		FileBaseName:  "bda-results-with-suppliers",
		DefaultFormat: FormatCSV,
		MaxItems:      500,
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
	if c.MaxItems <= 0 {
		return fmt.Errorf("max_items must be positive")
	}
	switch c.DefaultFormat {
	case FormatCSV, FormatXLSX, FormatJSON:
	default:
		return fmt.Errorf("default_format must be one of csv, xlsx, json")
	}
	return nil
}
