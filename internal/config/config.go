// Package config loads the optional YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/pfrederiksen/odmp-harvest/internal/harvest"
	"github.com/pfrederiksen/odmp-harvest/internal/logger"
	"github.com/pfrederiksen/odmp-harvest/internal/scraper"
	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrInvalidBaseURL    = errors.New("source.base_url must be an absolute http(s) URL")
	ErrInvalidTimeout    = errors.New("source.timeout must be positive")
	ErrInvalidRetries    = errors.New("source.retries must be non-negative")
	ErrInvalidRetryDelay = errors.New("source.retry_delay must be non-negative")
	ErrInvalidPageSize   = errors.New("harvest.page_size must be at least 1")
	ErrInvalidLogLevel   = errors.New("log.level must be one of: debug, info, warn, error")
)

// Config is the complete harvester configuration.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Harvest HarvestConfig `yaml:"harvest"`
	Log     LogConfig     `yaml:"log"`
}

// SourceConfig describes how the registry is reached.
type SourceConfig struct {
	BaseURL    string        `yaml:"base_url"`
	UserAgent  string        `yaml:"user_agent"`
	Timeout    time.Duration `yaml:"timeout"`
	Retries    int           `yaml:"retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// HarvestConfig controls pagination and row handling.
type HarvestConfig struct {
	PageSize      int  `yaml:"page_size"`
	SkipMalformed bool `yaml:"skip_malformed"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			BaseURL:    scraper.SearchURL,
			UserAgent:  scraper.UserAgent,
			Timeout:    scraper.Timeout,
			Retries:    scraper.Retries,
			RetryDelay: scraper.RetryDelay,
		},
		Harvest: HarvestConfig{
			PageSize: harvest.PageSize,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the result.
// Keys absent from the file keep their default values; unknown keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Source.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.Source.BaseURL)
	}
	if c.Source.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Source.Retries < 0 {
		return ErrInvalidRetries
	}
	if c.Source.RetryDelay < 0 {
		return ErrInvalidRetryDelay
	}
	if c.Harvest.PageSize < 1 {
		return ErrInvalidPageSize
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Log.Level)
	}
	return nil
}

// ScraperOptions maps the source section onto client options. A retry count of
// zero disables retrying.
func (c *Config) ScraperOptions() scraper.Options {
	retries := c.Source.Retries
	if retries == 0 {
		retries = -1
	}
	return scraper.Options{
		BaseURL:    c.Source.BaseURL,
		UserAgent:  c.Source.UserAgent,
		Timeout:    c.Source.Timeout,
		Retries:    retries,
		RetryDelay: c.Source.RetryDelay,
	}
}
