package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Storage       StorageConfig           `mapstructure:"storage"`
	Registry      RegistryConfig          `mapstructure:"registry"`
	Matching      MatchingConfig          `mapstructure:"matching"`
	Extraction    ExtractionConfig        `mapstructure:"extraction"`
	Polling       PollingConfig           `mapstructure:"polling"`
	Search        SearchConfig            `mapstructure:"search"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Metrics       MetricsConfig           `mapstructure:"metrics"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
	UsePlaintext   bool   `mapstructure:"use_plaintext"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// Enabled reports whether enough is configured to open a connection.
func (p PostgresConfig) Enabled() bool {
	return p.Host != "" && p.Database != ""
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Domain Sections ---

// StorageConfig points at the bucket holding uploaded documents, extraction
// results, the supplier list and generated exports.
type StorageConfig struct {
	Region         string `mapstructure:"region"`
	Bucket         string `mapstructure:"bucket"`
	Endpoint       string `mapstructure:"endpoint"`
	UsePathStyle   bool   `mapstructure:"use_path_style"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	DocumentPrefix string `mapstructure:"document_prefix"`
	ResultPrefix   string `mapstructure:"result_prefix"`
	EnhancedPrefix string `mapstructure:"enhanced_prefix"`
	ExportPrefix   string `mapstructure:"export_prefix"`
}

const (
	RegistrySourceS3       = "s3"
	RegistrySourcePostgres = "postgres"
)

// RegistryConfig selects where the supplier list is read from.
type RegistryConfig struct {
	Source          string `mapstructure:"source"` // s3 | postgres
	Key             string `mapstructure:"key"`
	Table           string `mapstructure:"table"`
	RefreshInterval int    `mapstructure:"refresh_interval"` // milliseconds
}

// MatchingConfig holds supplier matching thresholds.
type MatchingConfig struct {
	TopN                int     `mapstructure:"top_n"`
	FuzzyFloor          float64 `mapstructure:"fuzzy_floor"`
	AcceptanceThreshold float64 `mapstructure:"acceptance_threshold"`
	CacheEnabled        bool    `mapstructure:"cache_enabled"`
	CacheTTL            int     `mapstructure:"cache_ttl"` // milliseconds
}

type ExtractionConfig struct {
	MaxDepth            int      `mapstructure:"max_depth"`
	ExtraVendorPatterns []string `mapstructure:"extra_vendor_patterns"`
}

type PollingConfig struct {
	Interval      int `mapstructure:"interval"`       // milliseconds
	CleanupWindow int `mapstructure:"cleanup_window"` // milliseconds
	MaxWait       int `mapstructure:"max_wait"`       // milliseconds
}

// SearchConfig controls indexing of enriched results into Elasticsearch.
type SearchConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Index   string `mapstructure:"index"`
}

// NotificationConfig holds settings for the supplier review notifications.
type NotificationConfig struct {
	Region string `mapstructure:"region"`
	SNS    struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
	SES struct {
		Enabled        bool     `mapstructure:"enabled"`
		FromEmail      string   `mapstructure:"from_email"`
		ReviewerEmails []string `mapstructure:"reviewer_emails"`
	} `mapstructure:"ses"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}
