package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
	if cfg.Cache.ListingTTL != 5*time.Minute {
		t.Errorf("listing ttl = %v", cfg.Cache.ListingTTL)
	}
	if cfg.Storage.KeyFile != ".credentials.key" {
		t.Errorf("key file = %q", cfg.Storage.KeyFile)
	}
}

func TestLoadFromYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestrator.yaml")
	yaml := "server:\n  port: \"9090\"\nlogging:\n  level: debug\nstorage:\n  data_dir: /tmp/orch\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Logging.Level)
	}
	if cfg.Storage.DataDir != "/tmp/orch" {
		t.Errorf("data dir = %q", cfg.Storage.DataDir)
	}
	// Untouched sections keep defaults.
	if cfg.HTTP.Timeout != 30*time.Second {
		t.Errorf("timeout = %v", cfg.HTTP.Timeout)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestrator.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"9090\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ORCH_PORT", "7070")
	t.Setenv("ORCH_HTTP_TIMEOUT", "10s")
	t.Setenv("ORCH_KEY_FILE", "master.key")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
	if cfg.HTTP.Timeout != 10*time.Second {
		t.Errorf("timeout = %v", cfg.HTTP.Timeout)
	}
	if cfg.Storage.KeyFile != "master.key" {
		t.Errorf("key file = %q", cfg.Storage.KeyFile)
	}
}

func TestValidateRejectsEmptyPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestrator.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected validation error for empty port")
	}
}
