package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Sources   []Source  `yaml:"sources"`
	Ingest    Ingest    `yaml:"ingest"`
	HTTP      HTTP      `yaml:"http"`
	Retrieval Retrieval `yaml:"retrieval"`
	Scheduler Scheduler `yaml:"scheduler"`
	Output    Output    `yaml:"output"`
	Server    Server    `yaml:"server"`
	Logging   Logging   `yaml:"logging"`
}

// Source is a seed definition synced into the sources table at startup.
// Operators normally manage sources through the CLI; the config list exists
// so a fresh deployment starts with something to ingest.
type Source struct {
	Name         string `yaml:"name"`
	Provider     string `yaml:"provider"`
	Homepage     string `yaml:"homepage"`
	RSSURL       string `yaml:"rss_url"`
	SitemapURL   string `yaml:"sitemap_url"`
	Adapter      string `yaml:"adapter"`
	FetchMode    string `yaml:"fetch_mode"`
	Allowed      bool   `yaml:"allowed"`
	Priority     int    `yaml:"priority"`
	Category     string `yaml:"category"`
	Selector     string `yaml:"selector"`
	PageBudget   int    `yaml:"page_budget"`
	LookbackDays int    `yaml:"lookback_days"`
}

type Ingest struct {
	Concurrency  int `yaml:"concurrency"`
	DefaultLimit int `yaml:"default_limit"`
}

type HTTP struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	RetryCount     int    `yaml:"retry_count"`
	RetryBaseMS    int    `yaml:"retry_base_ms"`
	UserAgent      string `yaml:"user_agent"`
}

type Retrieval struct {
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
	DefaultLimit    int `yaml:"default_limit"`
}

type Scheduler struct {
	Enabled         bool `yaml:"enabled"`
	IntervalMinutes int  `yaml:"interval_minutes"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for gridwire.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "gridwire")
}

// DataDir returns the XDG data directory for gridwire.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "gridwire")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/gridwire/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'gridwire init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Ingest: Ingest{
			Concurrency:  4,
			DefaultLimit: 50,
		},
		HTTP: HTTP{
			TimeoutSeconds: 15,
			RetryCount:     3,
			RetryBaseMS:    500,
			UserAgent:      "gridwire/1.0 (fantasy football news aggregator)",
		},
		Retrieval: Retrieval{
			CacheTTLSeconds: 120,
			DefaultLimit:    30,
		},
		Scheduler: Scheduler{
			Enabled:         false,
			IntervalMinutes: 30,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "info"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Ingest.Concurrency < 1 {
		cfg.Ingest.Concurrency = 1
	}
	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// HTTPTimeout returns the configured per-request fetch timeout.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RetryBase returns the base delay for fetch retry backoff.
func (c *Config) RetryBase() time.Duration {
	return time.Duration(c.HTTP.RetryBaseMS) * time.Millisecond
}

// CacheTTL returns the retrieval cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Retrieval.CacheTTLSeconds) * time.Second
}

// SchedulerInterval returns the interval between scheduled ingest runs.
func (c *Config) SchedulerInterval() time.Duration {
	return time.Duration(c.Scheduler.IntervalMinutes) * time.Minute
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
