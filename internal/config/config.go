// Package config holds all configuration for the import pipeline.
//
// Configuration can come from a YAML file (config.yaml) or environment
// variables. Environment variables always override YAML values. Secrets
// (database DSNs, API keys) must only come from environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the complete pipeline configuration.
type Config struct {
	// Server configuration (importd only).
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`

	Log     LogConfig     `yaml:"log"`
	Limits  LimitsConfig  `yaml:"limits"`
	Fetch   FetchConfig   `yaml:"fetch"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Watch   WatchConfig   `yaml:"watch"`
	Datadog DatadogConfig `yaml:"datadog"`

	// Database DSN for database-backed imports. Secret, env-only.
	DatabaseKind string `yaml:"database_kind" env:"DATABASE_KIND" env-default:""`
	DatabaseDSN  string `yaml:"-" env:"DATABASE_DSN"`
}

// LogConfig selects log verbosity and output encoding.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"text"`
}

// LimitsConfig holds the guardrails checked before any parsing happens.
type LimitsConfig struct {
	// MaxPasteBytes bounds pasted text. Default 10 MiB.
	MaxPasteBytes int64 `yaml:"max_paste_bytes" env:"MAX_PASTE_BYTES" env-default:"10485760"`

	// MaxFileBytes bounds uploaded and fetched files. Default 100 MiB.
	MaxFileBytes int64 `yaml:"max_file_bytes" env:"MAX_FILE_BYTES" env-default:"104857600"`

	// AllowedExtensions is the comma-separated upload allow-list.
	AllowedExtensions string `yaml:"allowed_extensions" env:"ALLOWED_EXTENSIONS" env-default:".csv,.tsv,.json,.xlsx,.xls"`

	// DisableFileUpload rejects the file import path entirely.
	DisableFileUpload bool `yaml:"disable_file_upload" env:"DISABLE_FILE_UPLOAD" env-default:"false"`

	// DisableDatabase rejects the database import path entirely.
	DisableDatabase bool `yaml:"disable_database" env:"DISABLE_DATABASE" env-default:"false"`
}

// FetchConfig configures URL imports.
type FetchConfig struct {
	TimeoutSeconds     int  `yaml:"timeout_seconds" env:"FETCH_TIMEOUT_SECONDS" env-default:"30"`
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" env:"FETCH_INSECURE_SKIP_VERIFY" env-default:"false"`
}

// IngestConfig points at the downstream ingest collaborator.
type IngestConfig struct {
	BaseURL        string `yaml:"base_url" env:"INGEST_BASE_URL" env-default:"http://localhost:5000"`
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"INGEST_TIMEOUT_SECONDS" env-default:"30"`
}

// WatchConfig holds the defaults for auto-refreshing sources.
type WatchConfig struct {
	// DefaultIntervalSeconds applies when a source enables auto-refresh
	// without naming an interval.
	DefaultIntervalSeconds int `yaml:"default_interval_seconds" env:"WATCH_DEFAULT_INTERVAL_SECONDS" env-default:"300"`
}

// DatadogConfig configures the metrics backend. Metrics are off unless
// Enabled is set; the API key comes from the Datadog SDK's own env vars.
type DatadogConfig struct {
	Enabled           bool   `yaml:"enabled" env:"DATADOG_ENABLED" env-default:"false"`
	JobName           string `yaml:"job_name" env:"DATADOG_JOB_NAME" env-default:"tableimport"`
	Tags              string `yaml:"tags" env:"DATADOG_TAGS" env-default:""`
	FlushEverySeconds int    `yaml:"flush_every_seconds" env:"DATADOG_FLUSH_EVERY_SECONDS" env-default:"60"`
}

// Load reads configuration from path with environment variable overrides.
// If the file does not exist, configuration comes from environment
// variables and defaults alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Limits.MaxPasteBytes <= 0 {
		return fmt.Errorf("max_paste_bytes must be positive, got %d", c.Limits.MaxPasteBytes)
	}
	if c.Limits.MaxFileBytes <= 0 {
		return fmt.Errorf("max_file_bytes must be positive, got %d", c.Limits.MaxFileBytes)
	}
	if c.Watch.DefaultIntervalSeconds <= 0 {
		return fmt.Errorf("watch default_interval_seconds must be positive, got %d", c.Watch.DefaultIntervalSeconds)
	}
	for _, ext := range c.AllowedExtensionList() {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("allowed extension %q must start with a dot", ext)
		}
	}
	return nil
}

// AllowedExtensionList returns the parsed, lowercased extension allow-list.
func (c *Config) AllowedExtensionList() []string {
	parts := strings.Split(c.Limits.AllowedExtensions, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FetchTimeout returns the fetch timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// IngestTimeout returns the ingest timeout as a duration.
func (c *Config) IngestTimeout() time.Duration {
	return time.Duration(c.Ingest.TimeoutSeconds) * time.Second
}

// WatchDefaultInterval returns the default auto-refresh interval.
func (c *Config) WatchDefaultInterval() time.Duration {
	return time.Duration(c.Watch.DefaultIntervalSeconds) * time.Second
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.BindAddr + ":" + c.Port
}
