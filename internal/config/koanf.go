// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tarpit/config.yaml",
	"/etc/tarpit/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			ProtectionLevel:     "moderate",
			Stealth:             false,
			DefaultTTL:          0, // level preset
			MaxBatch:            100,
			MaxWeight:           100.0,
			MaintenanceInterval: time.Minute,
			MaxSessions:         100_000,
			MaxEventsPerSession: 256,
			SessionIdleTTL:      30 * time.Minute,
			BloomCapacity:       1_000_000,
		},
		Evolution: EvolutionConfig{
			BoostThreshold: 0.6,
			BoostFactor:    2.0,
			DecayThreshold: 0.05,
			DecayFactor:    0.8,
			Floor:          0.05,
			Interval:       0, // intelligence-driven only
			Window:         time.Hour,
			MinIssued:      20,
		},
		Store: StoreConfig{
			Enabled:        false,
			Path:           "/data/tarpit",
			InMemory:       false,
			QueueSize:      10_000,
			SyncWrites:     false,
			GCInterval:     10 * time.Minute,
			GCDiscardRatio: 0.5,
		},
		Export: ExportConfig{
			Enabled:            false,
			Backend:            "nats",
			NATSURL:            "nats://127.0.0.1:4222",
			EmbeddedPort:       4222,
			EmbeddedStoreDir:   "/data/tarpit/nats",
			JetStream:          true,
			TopicPrefix:        "tarpit",
			QueueSize:          10_000,
			RatePerSecond:      0,
			Burst:              100,
			BreakerMaxFailures: 5,
			BreakerTimeout:     30 * time.Second,
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8420,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			MaxBodyBytes:      1 << 20,
			RateLimitReqs:     600,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in defaults
//  2. Config File: optional YAML config file (if exists)
//  3. Environment Variables: override any mapped setting
//
// The result is validated; failures wrap trap.ErrInvalidConfiguration.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Engine
	"tarpit_protection_level":     "engine.protection_level",
	"tarpit_stealth":              "engine.stealth",
	"tarpit_default_ttl":          "engine.default_ttl",
	"tarpit_suspicious_threshold": "engine.suspicious_threshold",
	"tarpit_bot_threshold":        "engine.bot_threshold",
	"tarpit_max_batch":            "engine.max_batch",
	"tarpit_max_weight":           "engine.max_weight",
	"tarpit_maintenance_interval": "engine.maintenance_interval",
	"tarpit_max_sessions":         "engine.max_sessions",
	"tarpit_max_session_events":   "engine.max_events_per_session",
	"tarpit_session_idle_ttl":     "engine.session_idle_ttl",
	"tarpit_bloom_capacity":       "engine.bloom_capacity",
	"tarpit_minter_key":           "engine.minter_key",
	"tarpit_templates_file":       "engine.templates_file",

	// Evolution
	"evolution_boost_threshold": "evolution.boost_threshold",
	"evolution_boost_factor":    "evolution.boost_factor",
	"evolution_decay_threshold": "evolution.decay_threshold",
	"evolution_decay_factor":    "evolution.decay_factor",
	"evolution_floor":           "evolution.floor",
	"evolution_interval":        "evolution.interval",
	"evolution_window":          "evolution.window",
	"evolution_min_issued":      "evolution.min_issued",

	// Store
	"store_enabled":          "store.enabled",
	"store_path":             "store.path",
	"store_in_memory":        "store.in_memory",
	"store_queue_size":       "store.queue_size",
	"store_sync_writes":      "store.sync_writes",
	"store_gc_interval":      "store.gc_interval",
	"store_gc_discard_ratio": "store.gc_discard_ratio",

	// Export
	"export_enabled":              "export.enabled",
	"export_backend":              "export.backend",
	"nats_url":                    "export.nats_url",
	"nats_jetstream":              "export.jetstream",
	"export_embedded_port":        "export.embedded_port",
	"export_embedded_store_dir":   "export.embedded_store_dir",
	"export_topic_prefix":         "export.topic_prefix",
	"export_queue_size":           "export.queue_size",
	"export_rate_per_second":      "export.rate_per_second",
	"export_burst":                "export.burst",
	"export_breaker_max_failures": "export.breaker_max_failures",
	"export_breaker_timeout":      "export.breaker_timeout",

	// Server
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_idle_timeout":     "server.idle_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"http_max_body_bytes":   "server.max_body_bytes",
	"rate_limit_requests":   "server.rate_limit_reqs",
	"rate_limit_window":     "server.rate_limit_window",
	"disable_rate_limit":    "server.rate_limit_disabled",
	"cors_origins":          "server.cors_origins",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Supervisor
	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - TARPIT_PROTECTION_LEVEL -> engine.protection_level
//   - STORE_PATH -> store.path
//   - HTTP_PORT -> server.port
//
// Unmapped keys return "" so unrelated environment variables are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
