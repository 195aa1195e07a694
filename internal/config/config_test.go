package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.HTTPAddr != ":8080" {
		t.Fatalf("http_addr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Board.DefaultCurrency != "EUR" || cfg.Board.DefaultPipeline != "Sales" {
		t.Fatalf("board defaults: %+v", cfg.Board)
	}
	if cfg.Board.RottenAfter != 720*time.Hour {
		t.Fatalf("rotten_after = %v", cfg.Board.RottenAfter)
	}
	if cfg.Move.MaxRetries != 3 {
		t.Fatalf("max_retries = %d", cfg.Move.MaxRetries)
	}
	if cfg.Feed.SubscriberBuffer != 64 || cfg.Feed.ReplayLimit != 500 {
		t.Fatalf("feed defaults: %+v", cfg.Feed)
	}
	if !cfg.Cron.Enabled || cfg.Cron.RottenScan == "" {
		t.Fatalf("cron defaults: %+v", cfg.Cron)
	}
	if cfg.Cache.Enabled {
		t.Fatalf("cache should default to disabled")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte("server:\n  http_addr: \":9999\"\nboard:\n  default_currency: USD\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.HTTPAddr != ":9999" {
		t.Fatalf("http_addr = %q, file value not applied", cfg.Server.HTTPAddr)
	}
	if cfg.Board.DefaultCurrency != "USD" {
		t.Fatalf("default_currency = %q", cfg.Board.DefaultCurrency)
	}
	// Unset keys keep their defaults.
	if cfg.Move.MaxRetries != 3 {
		t.Fatalf("max_retries = %d, default lost", cfg.Move.MaxRetries)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml", false); err == nil {
		t.Fatalf("missing config file should fail")
	}
}
