package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Database.Path != "./feedquest.db" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
	if cfg.Remote.BaseURL != "https://api.feedquest.app" {
		t.Errorf("base url = %q", cfg.Remote.BaseURL)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Feed.MaxItems != 50 {
		t.Errorf("max items = %d", cfg.Feed.MaxItems)
	}
	if got := cfg.Remote.ParseTimeout(); got != 30*time.Second {
		t.Errorf("timeout = %v", got)
	}
	if got := cfg.Sync.ParseSyncInterval(); got != 15*time.Minute {
		t.Errorf("sync interval = %v", got)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
database:
  path: /tmp/other.db
remote:
  base_url: https://staging.feedquest.app
  timeout: 10s
sync:
  sync_interval: 5m
server:
  port: 9090
log:
  level: debug
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Database.Path != "/tmp/other.db" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
	if cfg.Remote.BaseURL != "https://staging.feedquest.app" {
		t.Errorf("base url = %q", cfg.Remote.BaseURL)
	}
	if got := cfg.Remote.ParseTimeout(); got != 10*time.Second {
		t.Errorf("timeout = %v", got)
	}
	if got := cfg.Sync.ParseSyncInterval(); got != 5*time.Minute {
		t.Errorf("sync interval = %v", got)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.LogLevel() != "debug" {
		t.Errorf("log level = %q", cfg.LogLevel())
	}
	// Unset values keep their defaults.
	if cfg.Feed.MaxItems != 50 {
		t.Errorf("max items = %d, want default", cfg.Feed.MaxItems)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FEEDQUEST_DB_PATH", "/tmp/env.db")
	t.Setenv("FEEDQUEST_API_URL", "https://env.feedquest.app")
	t.Setenv("FEEDQUEST_PORT", "7070")
	t.Setenv("FEEDQUEST_LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
	if cfg.Remote.BaseURL != "https://env.feedquest.app" {
		t.Errorf("base url = %q", cfg.Remote.BaseURL)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.LogLevel() != "warn" {
		t.Errorf("log level = %q", cfg.LogLevel())
	}
}

func TestInvalidDurationFallsBack(t *testing.T) {
	cfg := Default()
	cfg.Remote.Timeout = "garbage"
	cfg.Sync.SyncInterval = ""

	if got := cfg.Remote.ParseTimeout(); got != 30*time.Second {
		t.Errorf("timeout fallback = %v", got)
	}
	if got := cfg.Sync.ParseSyncInterval(); got != 15*time.Minute {
		t.Errorf("sync interval fallback = %v", got)
	}
}
