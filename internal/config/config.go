// Package config provides hierarchical configuration loading for the
// orchestrator core. Precedence: defaults < YAML file < environment
// variables.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds all runtime configuration for the orchestrator core service.
type Config struct {
	Server  Server  `yaml:"server"`
	Storage Storage `yaml:"storage"`
	Cache   Cache   `yaml:"cache"`
	Logging Logging `yaml:"logging"`
	HTTP    HTTP    `yaml:"http"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Storage holds data directory configuration. Entities, provider settings,
// and the encrypted credential file all live under DataDir. KeyFile is the
// name of the credential keyfile inside DataDir.
type Storage struct {
	DataDir string `yaml:"data_dir"`
	KeyFile string `yaml:"key_file"`
}

// Cache holds marketplace listing cache configuration.
type Cache struct {
	MaxSizeMB  int64         `yaml:"max_size_mb"`
	ListingTTL time.Duration `yaml:"listing_ttl"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// HTTP holds outbound HTTP client configuration for provider API calls.
type HTTP struct {
	Timeout time.Duration `yaml:"timeout"`
}

// Defaults returns a Config with sensible default values for local use.
func Defaults() Config {
	dataDir := ".orchestrator"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".orchestrator")
	}

	return Config{
		Server: Server{
			Port:       "8080",
			CORSOrigin: "http://localhost:3000",
		},
		Storage: Storage{
			DataDir: dataDir,
			KeyFile: ".credentials.key",
		},
		Cache: Cache{
			MaxSizeMB:  16,
			ListingTTL: 5 * time.Minute,
		},
		Logging: Logging{
			Level:   "info",
			Service: "orchestrator-core",
		},
		HTTP: HTTP{
			Timeout: 30 * time.Second,
		},
	}
}
