// Package config loads service settings from the environment.
// A .env file in the working directory is read first when present.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreBigQuery = "bigquery"
	StorePostgres = "postgres"
)

// Object store backends.
const (
	ObjectLocal = "local"
	ObjectGCS   = "gcs"
	ObjectS3    = "s3"
)

// Config holds every setting consumed by the api and cli binaries.
type Config struct {
	Port      string `mapstructure:"port"`
	APIPrefix string `mapstructure:"api_prefix"`
	AuthToken string `mapstructure:"auth_token"`
	LogLevel  string `mapstructure:"log_level"`
	LogJSON   bool   `mapstructure:"log_json"`

	GeminiAPIKey  string        `mapstructure:"gemini_api_key"`
	GeminiModel   string        `mapstructure:"gemini_model"`
	OracleTimeout time.Duration `mapstructure:"oracle_timeout"`

	StoreBackend string `mapstructure:"store_backend"`
	GCPProject   string `mapstructure:"gcp_project"`
	BQDataset    string `mapstructure:"bq_dataset"`
	DatabaseURL  string `mapstructure:"database_url"`

	ObjectStore string `mapstructure:"object_store"`
	UploadDir   string `mapstructure:"upload_dir"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	S3Bucket    string `mapstructure:"s3_bucket"`
	AWSRegion   string `mapstructure:"aws_region"`

	MaxUploadFiles int   `mapstructure:"max_upload_files"`
	MaxFileBytes   int64 `mapstructure:"max_file_bytes"`

	CrawlerDelay     time.Duration `mapstructure:"crawler_delay"`
	CrawlerBatchSize int           `mapstructure:"crawler_batch_size"`
}

var defaults = map[string]any{
	"port":               "8080",
	"api_prefix":         "/api",
	"auth_token":         "",
	"log_level":          "info",
	"log_json":           false,
	"gemini_api_key":     "",
	"gemini_model":       "gemini-2.5-flash",
	"oracle_timeout":     "90s",
	"store_backend":      StoreMemory,
	"gcp_project":        "",
	"bq_dataset":         "card_advisor",
	"database_url":       "",
	"object_store":       ObjectLocal,
	"upload_dir":         "./uploads",
	"gcs_bucket":         "",
	"s3_bucket":          "",
	"aws_region":         "ap-south-1",
	"max_upload_files":   5,
	"max_file_bytes":     10 << 20,
	"crawler_delay":      "2s",
	"crawler_batch_size": 1,
}

// New returns a viper instance with defaults registered and the environment bound.
// Callers may bind flags onto it before calling Load.
func New() *viper.Viper {
	_ = godotenv.Load()

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: unmarshal: %w", err)
	}
	cfg.APIPrefix = normalizePrefix(cfg.APIPrefix)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that the binaries cannot run without.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StoreBigQuery:
		if c.GCPProject == "" {
			return fmt.Errorf("config: GCP_PROJECT is required for the bigquery store")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.ObjectStore {
	case ObjectLocal:
		if c.UploadDir == "" {
			return fmt.Errorf("config: UPLOAD_DIR is required for the local object store")
		}
	case ObjectGCS:
		if c.GCSBucket == "" {
			return fmt.Errorf("config: GCS_BUCKET is required for the gcs object store")
		}
	case ObjectS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("config: S3_BUCKET is required for the s3 object store")
		}
	default:
		return fmt.Errorf("config: unknown OBJECT_STORE %q", c.ObjectStore)
	}

	if c.OracleTimeout <= 0 {
		return fmt.Errorf("config: ORACLE_TIMEOUT must be positive")
	}
	if c.MaxUploadFiles < 1 {
		return fmt.Errorf("config: MAX_UPLOAD_FILES must be at least 1")
	}
	if c.MaxFileBytes < 1 {
		return fmt.Errorf("config: MAX_FILE_BYTES must be positive")
	}
	if c.CrawlerBatchSize < 1 {
		return fmt.Errorf("config: CRAWLER_BATCH_SIZE must be at least 1")
	}
	if c.CrawlerDelay < 0 {
		return fmt.Errorf("config: CRAWLER_DELAY must not be negative")
	}
	return nil
}

func normalizePrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return ""
	}
	return "/" + strings.Trim(p, "/")
}
