package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hungpham2401/pdf.js/internal/progress"
)

// Config defines configuration for the pdffetch CLI.
type Config struct {
	URL           string         `yaml:"url"`
	Bucket        string         `yaml:"bucket"`
	Object        string         `yaml:"object"`
	Workers       int            `yaml:"workers"`
	ChunkSize     int64          `yaml:"chunk_size"`
	DisableRange  bool           `yaml:"disable_range"`
	Progress      bool           `yaml:"progress"`
	Force         bool           `yaml:"force"`
	Verbose       bool           `yaml:"verbose"`
	StateInterval int            `yaml:"state_interval"`
	Headers       map[string]any `yaml:"headers"`
	Retry         RetryConfig    `yaml:"retry"`
}

// RetryConfig defines retry behavior.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Workers:       8,
		ChunkSize:     64 * 1024,
		StateInterval: 10,
		Retry: RetryConfig{
			Attempts:   5,
			Backoff:    time.Second,
			MaxBackoff: 30 * time.Second,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with human-readable sizes
// and durations.
type yamlConfig struct {
	URL           string          `yaml:"url"`
	Bucket        string          `yaml:"bucket"`
	Object        string          `yaml:"object"`
	Workers       int             `yaml:"workers"`
	ChunkSize     string          `yaml:"chunk_size"`
	DisableRange  bool            `yaml:"disable_range"`
	Progress      bool            `yaml:"progress"`
	Force         bool            `yaml:"force"`
	Verbose       bool            `yaml:"verbose"`
	StateInterval int             `yaml:"state_interval"`
	Headers       map[string]any  `yaml:"headers"`
	Retry         yamlRetryConfig `yaml:"retry"`
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

	if yc.URL != "" {
		cfg.URL = yc.URL
	}
	if yc.Bucket != "" {
		cfg.Bucket = yc.Bucket
	}
	if yc.Object != "" {
		cfg.Object = yc.Object
	}
	if yc.Workers != 0 {
		cfg.Workers = yc.Workers
	}
	if yc.ChunkSize != "" {
		size, err := progress.ParseBytes(yc.ChunkSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse chunk_size: %w", err)
		}
		cfg.ChunkSize = size
	}
	cfg.DisableRange = yc.DisableRange
	cfg.Progress = yc.Progress
	cfg.Force = yc.Force
	cfg.Verbose = yc.Verbose
	if yc.StateInterval != 0 {
		cfg.StateInterval = yc.StateInterval
	}
	if len(yc.Headers) != 0 {
		cfg.Headers = yc.Headers
	}
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
// Environment variables use the PDFFETCH_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("PDFFETCH_URL"); v != "" {
		c.URL = v
	}
	if v := os.Getenv("PDFFETCH_BUCKET"); v != "" {
		c.Bucket = v
	}
	if v := os.Getenv("PDFFETCH_OBJECT"); v != "" {
		c.Object = v
	}
	if v := os.Getenv("PDFFETCH_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse PDFFETCH_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("PDFFETCH_CHUNK_SIZE"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse PDFFETCH_CHUNK_SIZE: %w", err)
		}
		c.ChunkSize = size
	}
	if v := os.Getenv("PDFFETCH_DISABLE_RANGE"); v != "" {
		c.DisableRange = v == "true" || v == "1"
	}
	if v := os.Getenv("PDFFETCH_PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}
	if v := os.Getenv("PDFFETCH_FORCE"); v != "" {
		c.Force = v == "true" || v == "1"
	}
	if v := os.Getenv("PDFFETCH_VERBOSE"); v != "" {
		c.Verbose = v == "true" || v == "1"
	}
	if v := os.Getenv("PDFFETCH_STATE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse PDFFETCH_STATE_INTERVAL: %w", err)
		}
		c.StateInterval = n
	}
	if v := os.Getenv("PDFFETCH_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse PDFFETCH_RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}
	if v := os.Getenv("PDFFETCH_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse PDFFETCH_RETRY_BACKOFF: %w", err)
		}
		c.Retry.Backoff = d
	}
	if v := os.Getenv("PDFFETCH_RETRY_MAX_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse PDFFETCH_RETRY_MAX_BACKOFF: %w", err)
		}
		c.Retry.MaxBackoff = d
	}

	return nil
}

// Validate validates the configuration. The object name is optional:
// when empty, the destination comes from the server's suggested
// filename or the URL path.
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("config: url is required")
	}
	if c.Bucket == "" {
		return errors.New("config: bucket is required")
	}
	if c.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: chunk_size must be positive")
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.URL != "" {
		c.URL = override.URL
	}
	if override.Bucket != "" {
		c.Bucket = override.Bucket
	}
	if override.Object != "" {
		c.Object = override.Object
	}
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.ChunkSize != 0 {
		c.ChunkSize = override.ChunkSize
	}
	if override.DisableRange {
		c.DisableRange = override.DisableRange
	}
	if override.Progress {
		c.Progress = override.Progress
	}
	if override.Force {
		c.Force = override.Force
	}
	if override.Verbose {
		c.Verbose = override.Verbose
	}
	if override.StateInterval != 0 {
		c.StateInterval = override.StateInterval
	}
	if len(override.Headers) != 0 {
		c.Headers = override.Headers
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
