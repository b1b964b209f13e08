package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ligustah/collate/internal/progress"
	"gopkg.in/yaml.v3"
)

// Config defines configuration for the collate CLI.
type Config struct {
	MetadataURL  string      `yaml:"metadata_url"`
	RoutingURL   string      `yaml:"routing_url"`
	ImageHost    string      `yaml:"image_host"`
	Bucket       string      `yaml:"bucket"`
	Format       string      `yaml:"format"`
	Packaging    string      `yaml:"packaging"`
	Split        bool        `yaml:"split"`
	Combine      bool        `yaml:"combine"`
	Workers      int         `yaml:"workers"`
	MaxFetchSize int64       `yaml:"max_fetch_size"`
	Progress     bool        `yaml:"progress"`
	AllowHTTP    bool        `yaml:"allow_http"`
	Retry        RetryConfig `yaml:"retry"`
}

// RetryConfig defines retry behavior for upstream fetches.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Format:       "png",
		Packaging:    "zip",
		Workers:      4,
		MaxFetchSize: 64 * 1024 * 1024, // 64MB per fetched object
		Retry: RetryConfig{
			Attempts:   3,
			Backoff:    500 * time.Millisecond,
			MaxBackoff: 10 * time.Second,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string fetch size.
type yamlConfig struct {
	MetadataURL  string          `yaml:"metadata_url"`
	RoutingURL   string          `yaml:"routing_url"`
	ImageHost    string          `yaml:"image_host"`
	Bucket       string          `yaml:"bucket"`
	Format       string          `yaml:"format"`
	Packaging    string          `yaml:"packaging"`
	Split        bool            `yaml:"split"`
	Combine      bool            `yaml:"combine"`
	Workers      int             `yaml:"workers"`
	MaxFetchSize string          `yaml:"max_fetch_size"`
	Progress     bool            `yaml:"progress"`
	AllowHTTP    bool            `yaml:"allow_http"`
	Retry        yamlRetryConfig `yaml:"retry"`
}

type yamlRetryConfig struct {
	Attempts   int    `yaml:"attempts"`
	Backoff    string `yaml:"backoff"`
	MaxBackoff string `yaml:"max_backoff"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.MetadataURL != "" {
		cfg.MetadataURL = yc.MetadataURL
	}
	if yc.RoutingURL != "" {
		cfg.RoutingURL = yc.RoutingURL
	}
	if yc.ImageHost != "" {
		cfg.ImageHost = yc.ImageHost
	}
	if yc.Bucket != "" {
		cfg.Bucket = yc.Bucket
	}
	if yc.Format != "" {
		cfg.Format = yc.Format
	}
	if yc.Packaging != "" {
		cfg.Packaging = yc.Packaging
	}
	cfg.Split = yc.Split
	cfg.Combine = yc.Combine
	if yc.Workers != 0 {
		cfg.Workers = yc.Workers
	}
	if yc.MaxFetchSize != "" {
		size, err := progress.ParseBytes(yc.MaxFetchSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse max_fetch_size: %w", err)
		}
		cfg.MaxFetchSize = size
	}
	cfg.Progress = yc.Progress
	cfg.AllowHTTP = yc.AllowHTTP
	if yc.Retry.Attempts != 0 {
		cfg.Retry.Attempts = yc.Retry.Attempts
	}
	if yc.Retry.Backoff != "" {
		d, err := time.ParseDuration(yc.Retry.Backoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.backoff: %w", err)
		}
		cfg.Retry.Backoff = d
	}
	if yc.Retry.MaxBackoff != "" {
		d, err := time.ParseDuration(yc.Retry.MaxBackoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.max_backoff: %w", err)
		}
		cfg.Retry.MaxBackoff = d
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the COLLATE_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("COLLATE_METADATA_URL"); v != "" {
		c.MetadataURL = v
	}
	if v := os.Getenv("COLLATE_ROUTING_URL"); v != "" {
		c.RoutingURL = v
	}
	if v := os.Getenv("COLLATE_IMAGE_HOST"); v != "" {
		c.ImageHost = v
	}
	if v := os.Getenv("COLLATE_BUCKET"); v != "" {
		c.Bucket = v
	}
	if v := os.Getenv("COLLATE_FORMAT"); v != "" {
		c.Format = v
	}
	if v := os.Getenv("COLLATE_PACKAGING"); v != "" {
		c.Packaging = v
	}
	if v := os.Getenv("COLLATE_SPLIT"); v != "" {
		c.Split = v == "true" || v == "1"
	}
	if v := os.Getenv("COLLATE_COMBINE"); v != "" {
		c.Combine = v == "true" || v == "1"
	}
	if v := os.Getenv("COLLATE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse COLLATE_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("COLLATE_MAX_FETCH_SIZE"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse COLLATE_MAX_FETCH_SIZE: %w", err)
		}
		c.MaxFetchSize = size
	}
	if v := os.Getenv("COLLATE_PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}
	if v := os.Getenv("COLLATE_ALLOW_HTTP"); v != "" {
		c.AllowHTTP = v == "true" || v == "1"
	}
	if v := os.Getenv("COLLATE_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse COLLATE_RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}
	if v := os.Getenv("COLLATE_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse COLLATE_RETRY_BACKOFF: %w", err)
		}
		c.Retry.Backoff = d
	}
	if v := os.Getenv("COLLATE_RETRY_MAX_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse COLLATE_RETRY_MAX_BACKOFF: %w", err)
		}
		c.Retry.MaxBackoff = d
	}

	return nil
}

// Validate validates the configuration. Format is intentionally not
// validated here: unknown formats downgrade to the lossless fallback at
// probe time instead of failing up front.
func (c *Config) Validate() error {
	if c.MetadataURL == "" {
		return errors.New("config: metadata_url is required")
	}
	if c.RoutingURL == "" {
		return errors.New("config: routing_url is required")
	}
	if c.ImageHost == "" {
		return errors.New("config: image_host is required")
	}
	if c.Bucket == "" {
		return errors.New("config: bucket is required")
	}
	if c.Packaging != "zip" && c.Packaging != "files" {
		return errors.New("config: packaging must be zip or files")
	}
	if c.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	if c.MaxFetchSize <= 0 {
		return errors.New("config: max_fetch_size must be positive")
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.MetadataURL != "" {
		c.MetadataURL = override.MetadataURL
	}
	if override.RoutingURL != "" {
		c.RoutingURL = override.RoutingURL
	}
	if override.ImageHost != "" {
		c.ImageHost = override.ImageHost
	}
	if override.Bucket != "" {
		c.Bucket = override.Bucket
	}
	if override.Format != "" {
		c.Format = override.Format
	}
	if override.Packaging != "" {
		c.Packaging = override.Packaging
	}
	if override.Split {
		c.Split = override.Split
	}
	if override.Combine {
		c.Combine = override.Combine
	}
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.MaxFetchSize != 0 {
		c.MaxFetchSize = override.MaxFetchSize
	}
	if override.Progress {
		c.Progress = override.Progress
	}
	if override.AllowHTTP {
		c.AllowHTTP = override.AllowHTTP
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	if override.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = override.Retry.MaxBackoff
	}
	return c
}
