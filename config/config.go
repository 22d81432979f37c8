package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds scraper configuration.
type Config struct {
	OutputDir       string        `yaml:"output_dir"`
	OutputFormat    string        `yaml:"output_format"` // csv, json, or dual
	PageDelay       time.Duration `yaml:"page_delay"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"max_retries"`
	RetryBackoff    time.Duration `yaml:"retry_backoff"`
	RetryBackoffMax time.Duration `yaml:"retry_backoff_max"`
	MaxPages        int           `yaml:"max_pages"`
	Concurrency     int           `yaml:"concurrency"`
	PageSize        int           `yaml:"page_size"`
	UserAgent       string        `yaml:"user_agent"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	LogFile         string        `yaml:"log_file"`
	Verbose         bool          `yaml:"verbose"`
}

// DefaultConfig returns the politeness-first defaults.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:       ".",
		OutputFormat:    "csv",
		PageDelay:       time.Second,
		Timeout:         30 * time.Second,
		MaxRetries:      2,
		RetryBackoff:    500 * time.Millisecond,
		RetryBackoffMax: 5 * time.Second,
		MaxPages:        100,
		Concurrency:     4,
		PageSize:        50,
		UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
	}
}

// LoadFile overlays a YAML file onto the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from TYRES_* environment variables.
func (c *Config) ApplyEnv() error {
	if value, ok := EnvString("TYRES_OUTPUT_DIR"); ok {
		c.OutputDir = value
	}
	if value, ok := EnvString("TYRES_OUTPUT_FORMAT"); ok {
		c.OutputFormat = strings.ToLower(value)
	}
	if value, ok, err := EnvDuration("TYRES_PAGE_DELAY"); err != nil {
		return err
	} else if ok {
		c.PageDelay = value
	}
	if value, ok, err := EnvDuration("TYRES_TIMEOUT"); err != nil {
		return err
	} else if ok {
		c.Timeout = value
	}
	if value, ok, err := EnvInt("TYRES_MAX_RETRIES"); err != nil {
		return err
	} else if ok {
		c.MaxRetries = value
	}
	if value, ok, err := EnvInt("TYRES_MAX_PAGES"); err != nil {
		return err
	} else if ok {
		c.MaxPages = value
	}
	if value, ok, err := EnvInt("TYRES_CONCURRENCY"); err != nil {
		return err
	} else if ok {
		c.Concurrency = value
	}
	if value, ok := EnvString("TYRES_METRICS_ADDR"); ok {
		c.MetricsAddr = value
	}
	if value, ok := EnvString("TYRES_LOG_FILE"); ok {
		c.LogFile = value
	}
	return nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.PageDelay < 0 {
		return fmt.Errorf("page delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	return nil
}

// EnvString returns a non-empty environment variable.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return strings.TrimSpace(value), true
}

// EnvInt parses an integer environment variable.
func EnvInt(key string) (int, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, true, nil
}

// EnvDuration parses a Go duration ("1500ms") environment variable.
func EnvDuration(key string) (time.Duration, bool, error) {
	value, ok := EnvString(key)
	if !ok {
		return 0, false, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, true, nil
}
