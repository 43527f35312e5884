package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top
// and lets environment variables override any key (storage.bucket -> STORAGE_BUCKET).
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)
	setDefaults(v)
	return v
}

// setDefaults covers keys where zero is a meaningful setting and cannot be
// told apart from "unset" after unmarshalling.
func setDefaults(v *viper.Viper) {
	v.SetDefault("matching.top_n", 5)
	v.SetDefault("matching.fuzzy_floor", 60.0)
	v.SetDefault("matching.acceptance_threshold", 40.0)
}

// bindEnvKeys registers the keys that may come only from the environment.
// AutomaticEnv alone does not surface keys missing from every config file.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"camunda.broker_address",
		"storage.bucket",
		"storage.region",
		"storage.endpoint",
		"storage.access_key",
		"storage.secret_key",
		"registry.source",
		"database.postgres.host",
		"database.postgres.database",
		"database.postgres.user",
		"database.postgres.password",
		"database.redis.address",
		"database.redis.password",
		"notifications.sns.topic_arn",
		"notifications.ses.from_email",
		"logging.level",
		"logging.format",
	} {
		_ = v.BindEnv(key)
	}
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok || !strings.Contains(strVal, "$") {
			continue
		}
		if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
			v.Set(key, expanded)
		}
	}
}

// overrideEmptyConfig fills well-known values from conventional variable names
// that do not follow the dotted-key mapping.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Camunda.BrokerAddress == "" {
		cfg.Camunda.BrokerAddress = os.Getenv("ZEEBE_ADDRESS")
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = os.Getenv("AWS_REGION")
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = os.Getenv("S3_BUCKET")
	}
	if cfg.Notifications.Region == "" {
		cfg.Notifications.Region = cfg.Storage.Region
	}
	if cfg.Database.Postgres.User == "" {
		cfg.Database.Postgres.User = os.Getenv("DB_USER")
	}
	if cfg.Database.Postgres.Password == "" {
		cfg.Database.Postgres.Password = os.Getenv("DB_PASSWORD")
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "invoice-workers"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Storage.DocumentPrefix == "" {
		cfg.Storage.DocumentPrefix = "datasets/documents/"
	}
	if cfg.Storage.ResultPrefix == "" {
		cfg.Storage.ResultPrefix = "bda-result/"
	}
	if cfg.Storage.EnhancedPrefix == "" {
		cfg.Storage.EnhancedPrefix = "enhanced-result/"
	}
	if cfg.Storage.ExportPrefix == "" {
		cfg.Storage.ExportPrefix = "exports/"
	}

	if cfg.Registry.Source == "" {
		cfg.Registry.Source = RegistrySourceS3
	}
	if cfg.Registry.Key == "" {
		cfg.Registry.Key = "SupplierList.csv"
	}
	if cfg.Registry.Table == "" {
		cfg.Registry.Table = "suppliers"
	}
	if cfg.Registry.RefreshInterval == 0 {
		cfg.Registry.RefreshInterval = 300000
	}

	if cfg.Matching.CacheTTL == 0 {
		cfg.Matching.CacheTTL = 300000
	}

	if cfg.Extraction.MaxDepth == 0 {
		cfg.Extraction.MaxDepth = 3
	}

	if cfg.Polling.Interval == 0 {
		cfg.Polling.Interval = 5000
	}
	if cfg.Polling.CleanupWindow == 0 {
		cfg.Polling.CleanupWindow = 300000
	}
	if cfg.Polling.MaxWait == 0 {
		cfg.Polling.MaxWait = 120000
	}

	if cfg.Search.Index == "" {
		cfg.Search.Index = "invoice-extractions"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":8080"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 30000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}
	if cfg.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required")
	}

	switch cfg.Registry.Source {
	case RegistrySourceS3:
	case RegistrySourcePostgres:
		if !cfg.Database.Postgres.Enabled() {
			return fmt.Errorf("database.postgres.host and database.postgres.database are required for registry.source=postgres")
		}
	default:
		return fmt.Errorf("registry.source must be %q or %q, got %q", RegistrySourceS3, RegistrySourcePostgres, cfg.Registry.Source)
	}

	if cfg.Matching.FuzzyFloor < 0 || cfg.Matching.FuzzyFloor > 100 {
		return fmt.Errorf("matching.fuzzy_floor must be within [0,100]")
	}
	if cfg.Matching.AcceptanceThreshold < 0 || cfg.Matching.AcceptanceThreshold > 100 {
		return fmt.Errorf("matching.acceptance_threshold must be within [0,100]")
	}
	if cfg.Matching.TopN < 0 {
		return fmt.Errorf("matching.top_n must not be negative")
	}

	if cfg.Matching.CacheEnabled && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when matching.cache_enabled is set")
	}
	if cfg.Search.Enabled && len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required when search.enabled is set")
	}
	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		return fmt.Errorf("notifications.sns.topic_arn is required when sns is enabled")
	}
	if cfg.Notifications.SES.Enabled && cfg.Notifications.SES.FromEmail == "" {
		return fmt.Errorf("notifications.ses.from_email is required when ses is enabled")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       30000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
