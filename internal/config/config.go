package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Remote   RemoteConfig   `yaml:"remote"`
	Sync     SyncConfig     `yaml:"sync"`
	Feed     FeedConfig     `yaml:"feed"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RemoteConfig configures the backend API client.
type RemoteConfig struct {
	BaseURL   string  `yaml:"base_url"`
	Timeout   string  `yaml:"timeout"`
	TokenPath string  `yaml:"token_path"`
	RateLimit float64 `yaml:"rate_limit"` // requests per second
	RateBurst int     `yaml:"rate_burst"`
}

// ParseTimeout returns the remote request timeout as time.Duration.
func (r RemoteConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(r.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// SyncConfig configures background sync and feed refresh intervals.
type SyncConfig struct {
	SyncInterval    string `yaml:"sync_interval"`
	RefreshInterval string `yaml:"refresh_interval"`
}

// ParseSyncInterval returns the bookmark/read-item sync interval.
func (s SyncConfig) ParseSyncInterval() time.Duration {
	d, err := time.ParseDuration(s.SyncInterval)
	if err != nil {
		return 15 * time.Minute
	}
	return d
}

// ParseRefreshInterval returns the feed cache refresh interval.
func (s SyncConfig) ParseRefreshInterval() time.Duration {
	d, err := time.ParseDuration(s.RefreshInterval)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// FeedConfig configures client-side aggregation.
type FeedConfig struct {
	MaxItems int `yaml:"max_items"`
	PageSize int `yaml:"page_size"`
}

// ServerConfig configures the local HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./feedquest.db"},
		Remote: RemoteConfig{
			BaseURL:   "https://api.feedquest.app",
			Timeout:   "30s",
			TokenPath: "./feedquest.token",
			RateLimit: 10,
			RateBurst: 20,
		},
		Sync: SyncConfig{
			SyncInterval:    "15m",
			RefreshInterval: "30m",
		},
		Feed: FeedConfig{
			MaxItems: 50,
			PageSize: 20,
		},
		Server: ServerConfig{Port: 8080},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FEEDQUEST_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FEEDQUEST_API_URL"); v != "" {
		cfg.Remote.BaseURL = v
	}
	if v := os.Getenv("FEEDQUEST_TOKEN_PATH"); v != "" {
		cfg.Remote.TokenPath = v
	}
	if v := os.Getenv("FEEDQUEST_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FEEDQUEST_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// LogLevel returns the configured log level, defaulting to info.
func (c *Config) LogLevel() string {
	if c.Log.Level == "" {
		return "info"
	}
	return c.Log.Level
}
