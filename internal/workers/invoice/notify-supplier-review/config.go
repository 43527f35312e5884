package notifysupplierreview

import (
	"fmt"
	"time"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`

	SNSEnabled bool   `mapstructure:"sns_enabled"`
	TopicARN   string `mapstructure:"topic_arn"`

	SESEnabled     bool     `mapstructure:"ses_enabled"`
	FromEmail      string   `mapstructure:"from_email"`
	ReviewerEmails []string `mapstructure:"reviewer_emails"`

	// Matches scoring below this are reported for review even though they
	// were accepted.
	LowConfidenceThreshold float64 `mapstructure:"low_confidence_threshold"`
	SubjectPrefix          string  `mapstructure:"subject_prefix"`
	MaxCandidates          int     `mapstructure:"max_candidates"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:                true,
		MaxJobsActive:          5,
		Timeout:                30 * time.Second,
		LowConfidenceThreshold: 75,
		SubjectPrefix:          "[Supplier review]",
		MaxCandidates:          5,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.SNSEnabled && c.TopicARN == "" {
		return fmt.Errorf("topic_arn is required when sns is enabled")
	}
	if c.SESEnabled && c.FromEmail == "" {
		return fmt.Errorf("from_email is required when ses is enabled")
	}
	if c.LowConfidenceThreshold < 0 || c.LowConfidenceThreshold > 100 {
		return fmt.Errorf("low_confidence_threshold must be between 0 and 100")
	}
	if c.MaxCandidates <= 0 {
		return fmt.Errorf("max_candidates must be positive")
	}
	return nil
}
