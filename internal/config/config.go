// Package config provides configuration management for the crawl pipeline.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrNoSources            = errors.New("at least one source is required")
	ErrSourceMissingName    = errors.New("source name is required")
	ErrNoEnabledSources     = errors.New("at least one source must be enabled")
	ErrInvalidDelay         = errors.New("scraping.delay_sec must be non-negative")
	ErrInvalidTimeout       = errors.New("scraping.timeout_sec must be at least 1")
	ErrNoUserAgents         = errors.New("scraping.user_agents must not be empty when rotation is enabled")
	ErrInvalidLowYield      = errors.New("scraping.low_yield_threshold must be at least 1")
	ErrInvalidMaxPages      = errors.New("scraping.default_max_pages must be non-negative")
	ErrInvalidConcurrency   = errors.New("scraping.max_concurrent_sources must be non-negative")
	ErrInvalidProgressEvery = errors.New("scraping.progress_every must be at least 1")
	ErrMissingDatabaseName  = errors.New("database.name is required")
	ErrInvalidLogLevel      = errors.New("logging.level must be one of: debug, info, warn, error")
)

// Config represents the complete pipeline configuration.
type Config struct {
	Crawler  CrawlerConfig  `yaml:"crawler"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
}

// CrawlerConfig contains crawler-specific settings.
type CrawlerConfig struct {
	Scraping ScrapingConfig `yaml:"scraping"`
	Sources  []SourceConfig `yaml:"sources"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ScrapingConfig defines the fetch-politeness and traversal knobs shared by
// every source's fetcher and walker.
type ScrapingConfig struct {
	DelaySec             float64  `yaml:"delay_sec"`
	TimeoutSec           int      `yaml:"timeout_sec"`
	UserAgentRotation    bool     `yaml:"user_agent_rotation"`
	UserAgents           []string `yaml:"user_agents"`
	LowYieldThreshold    int      `yaml:"low_yield_threshold"`
	DefaultMaxPages      int      `yaml:"default_max_pages"`
	MaxConcurrentSources int      `yaml:"max_concurrent_sources"`
	ProgressEvery        int      `yaml:"progress_every"`
}

// SourceConfig enables or disables one listing website.
type SourceConfig struct {
	Name    string `yaml:"name"`
	Enabled bool   `yaml:"enabled"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig holds the postgres connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// APIConfig holds the HTTP service settings.
type APIConfig struct {
	Port int `yaml:"port"`
}

// Default returns a configuration with the documented defaults applied.
func Default() *Config {
	return &Config{
		Crawler: CrawlerConfig{
			Scraping: ScrapingConfig{
				DelaySec:          1.0,
				TimeoutSec:        30,
				UserAgentRotation: true,
				UserAgents: []string{
					"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
					"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
					"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
				},
				LowYieldThreshold: 3,
				ProgressEvery:     10,
			},
			Logging: LoggingConfig{Level: "info"},
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			Name:    "propcrawl",
			SSLMode: "disable",
		},
		API: APIConfig{Port: 8080},
	}
}

// LoadConfig loads configuration from a YAML file on top of the defaults and
// applies environment overrides. A .env file next to the process, if present,
// is loaded first.
func LoadConfig(filepath string) (*Config, error) {
	// Missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	cfg := Default()

	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnv overrides secrets and tunables from the environment so deployment
// never needs credentials inside the YAML file.
func (c *Config) applyEnv() {
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Database.Host = v
	}

	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Database.Port = port
		}
	}

	if v := os.Getenv("DB_USER"); v != "" {
		c.Database.User = v
	}

	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}

	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database.Name = v
	}

	if v := os.Getenv("SCRAPING_DELAY"); v != "" {
		if delay, err := strconv.ParseFloat(v, 64); err == nil {
			c.Crawler.Scraping.DelaySec = delay
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Crawler.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Crawler.Sources) == 0 {
		return ErrNoSources
	}

	enabledCount := 0

	for i, src := range c.Crawler.Sources {
		if src.Name == "" {
			return fmt.Errorf("%w: source[%d]", ErrSourceMissingName, i)
		}

		if src.Enabled {
			enabledCount++
		}
	}

	if enabledCount == 0 {
		return ErrNoEnabledSources
	}

	s := c.Crawler.Scraping

	if s.DelaySec < 0 {
		return ErrInvalidDelay
	}

	if s.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	if s.UserAgentRotation && len(s.UserAgents) == 0 {
		return ErrNoUserAgents
	}

	if s.LowYieldThreshold < 1 {
		return ErrInvalidLowYield
	}

	if s.DefaultMaxPages < 0 {
		return ErrInvalidMaxPages
	}

	if s.MaxConcurrentSources < 0 {
		return ErrInvalidConcurrency
	}

	if s.ProgressEvery < 1 {
		return ErrInvalidProgressEvery
	}

	if c.Database.Name == "" {
		return ErrMissingDatabaseName
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Crawler.Logging.Level] {
		return ErrInvalidLogLevel
	}

	return nil
}

// GetEnabledSources returns only enabled source names, in config order.
func (c *Config) GetEnabledSources() []string {
	var enabled []string

	for _, src := range c.Crawler.Sources {
		if src.Enabled {
			enabled = append(enabled, src.Name)
		}
	}

	return enabled
}

// Delay returns the minimum pause between two requests of one fetcher.
func (s *ScrapingConfig) Delay() time.Duration {
	return time.Duration(s.DelaySec * float64(time.Second))
}

// Timeout returns the per-request HTTP timeout.
func (s *ScrapingConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

// DSN builds the postgres connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Sources: %d, Delay: %.1fs, Database: %s}",
		len(c.Crawler.Sources),
		c.Crawler.Scraping.DelaySec,
		c.Database.Name,
	)
}
