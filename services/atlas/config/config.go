// Copyright (C) 2026 Cartomind (oss@cartomind.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads atlas configuration from YAML with environment
// overrides, and supports hot reload of the settings that are safe to
// change at runtime.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full atlas configuration.
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server"`
	Backend BackendConfig `json:"backend" yaml:"backend"`
	Cache   CacheConfig   `json:"cache" yaml:"cache"`
	Session SessionConfig `json:"session" yaml:"session"`
	Summary SummaryConfig `json:"summary" yaml:"summary"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// ServerConfig configures the local REST server.
type ServerConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BackendConfig configures the graph backend connection.
type BackendConfig struct {
	// BaseURL is the backend root URL.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIKey authenticates backend requests. Prefer the
	// CARTOGRAPH_API_KEY environment variable over the file.
	APIKey string `json:"api_key" yaml:"api_key"`

	// PushURL is the WebSocket endpoint for server push updates.
	// Empty disables the push subscriber.
	PushURL string `json:"push_url" yaml:"push_url"`

	// Timeout bounds each backend request.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// CacheConfig configures the local snapshot cache.
type CacheConfig struct {
	// Enabled turns the cache on.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Path is the cache directory. Empty means in-memory.
	Path string `json:"path" yaml:"path"`

	// SnapshotTTL is how long cached versions live.
	SnapshotTTL time.Duration `json:"snapshot_ttl" yaml:"snapshot_ttl"`
}

// SessionConfig configures state reconciliation.
type SessionConfig struct {
	// PriorityWindow is how long user writes outrank fetches.
	PriorityWindow time.Duration `json:"priority_window" yaml:"priority_window"`

	// SyncInterval is how often to fetch authoritative state.
	// Hot-reloadable.
	SyncInterval time.Duration `json:"sync_interval" yaml:"sync_interval"`

	// RetryAttempts is the busy-retry attempt count.
	RetryAttempts int `json:"retry_attempts" yaml:"retry_attempts"`

	// RetryDelay is the fixed wait between busy retries.
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay"`
}

// SummaryConfig configures the optional diff summarizer.
type SummaryConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Model   string `json:"model" yaml:"model"`

	// APIKey for the model provider. Prefer the OPENAI_API_KEY
	// environment variable over the file.
	APIKey string `json:"api_key" yaml:"api_key"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Hot-reloadable.
	Level string `json:"level" yaml:"level"`

	// Dir receives log files. Empty logs to stderr only.
	Dir string `json:"dir" yaml:"dir"`

	// JSON selects JSON output instead of text.
	JSON bool `json:"json" yaml:"json"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{Host: "127.0.0.1", Port: 8085},
		Backend: BackendConfig{
			Timeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:     true,
			SnapshotTTL: 24 * time.Hour,
		},
		Session: SessionConfig{
			PriorityWindow: 5 * time.Second,
			SyncInterval:   15 * time.Second,
			RetryAttempts:  3,
			RetryDelay:     100 * time.Millisecond,
		},
		Summary: SummaryConfig{Model: "gpt-4o-mini"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML config file, layering it over Default and applying
// environment overrides last. A missing file is not an error; the
// defaults plus environment apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to env overrides
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays CARTOGRAPH_* and OPENAI_API_KEY variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("CARTOGRAPH_BACKEND_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("CARTOGRAPH_API_KEY"); v != "" {
		cfg.Backend.APIKey = v
	}
	if v := os.Getenv("CARTOGRAPH_PUSH_URL"); v != "" {
		cfg.Backend.PushURL = v
	}
	if v := os.Getenv("CARTOGRAPH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CARTOGRAPH_CACHE_PATH"); v != "" {
		cfg.Cache.Path = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Summary.APIKey = v
	}
}

// Validate rejects configurations that cannot work.
func (c Config) Validate() error {
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Session.PriorityWindow < 0 {
		return fmt.Errorf("priority window must not be negative")
	}
	if c.Session.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts must not be negative")
	}
	if c.Summary.Enabled && c.Summary.APIKey == "" {
		return fmt.Errorf("summary is enabled but no api key is configured")
	}
	return nil
}
