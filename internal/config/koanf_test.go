// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/tarpit/internal/trap"
)

// isolateEnv points CONFIG_PATH at a missing file so tests never pick up a
// config.yaml from the working directory or /etc.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	for key := range envMappings {
		name := strings.ToUpper(key)
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()

	if cfg.Engine.ProtectionLevel != "moderate" {
		t.Errorf("Engine.ProtectionLevel = %q, want moderate", cfg.Engine.ProtectionLevel)
	}
	if cfg.Engine.SessionIdleTTL != 30*time.Minute {
		t.Errorf("Engine.SessionIdleTTL = %v, want 30m", cfg.Engine.SessionIdleTTL)
	}
	if cfg.Evolution.BoostFactor != 2.0 || cfg.Evolution.DecayFactor != 0.8 {
		t.Errorf("Evolution factors = %v/%v, want 2.0/0.8", cfg.Evolution.BoostFactor, cfg.Evolution.DecayFactor)
	}
	if cfg.Store.Enabled {
		t.Error("Store.Enabled should be false by default")
	}
	if cfg.Export.Enabled {
		t.Error("Export.Enabled should be false by default")
	}
	if cfg.Server.Port != 8420 {
		t.Errorf("Server.Port = %d, want 8420", cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want info/json", cfg.Logging)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig().Validate() = %v, want nil", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env  string
		want string
	}{
		{"TARPIT_PROTECTION_LEVEL", "engine.protection_level"},
		{"TARPIT_MAX_SESSION_EVENTS", "engine.max_events_per_session"},
		{"EVOLUTION_INTERVAL", "evolution.interval"},
		{"STORE_PATH", "store.path"},
		{"NATS_URL", "export.nats_url"},
		{"EXPORT_EMBEDDED_PORT", "export.embedded_port"},
		{"HTTP_PORT", "server.port"},
		{"DISABLE_RATE_LIMIT", "server.rate_limit_disabled"},
		{"LOG_LEVEL", "logging.level"},
		{"SUPERVISOR_FAILURE_BACKOFF", "supervisor.failure_backoff"},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Parallel()
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestFindConfigFile(t *testing.T) {
	path := writeFile(t, "tarpit.yaml", "logging:\n  level: debug\n")

	t.Setenv(ConfigPathEnvVar, path)
	if got := findConfigFile(); got != path {
		t.Errorf("findConfigFile() = %q, want %q", got, path)
	}

	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			t.Skipf("default config path %s exists on this host", p)
		}
	}
	if got := findConfigFile(); got != "" {
		t.Errorf("findConfigFile() = %q, want empty", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	isolateEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.MaxBatch != 100 {
		t.Errorf("Engine.MaxBatch = %d, want 100", cfg.Engine.MaxBatch)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "*" {
		t.Errorf("Server.CORSOrigins = %v, want [*]", cfg.Server.CORSOrigins)
	}
}

func TestLoadEnvVars(t *testing.T) {
	isolateEnv(t)
	t.Setenv("TARPIT_PROTECTION_LEVEL", "aggressive")
	t.Setenv("TARPIT_STEALTH", "true")
	t.Setenv("TARPIT_SESSION_IDLE_TTL", "10m")
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("UNRELATED_SETTING", "ignored")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.ProtectionLevel != "aggressive" {
		t.Errorf("ProtectionLevel = %q, want aggressive", cfg.Engine.ProtectionLevel)
	}
	if !cfg.Engine.Stealth {
		t.Error("Stealth = false, want true")
	}
	if cfg.Engine.SessionIdleTTL != 10*time.Minute {
		t.Errorf("SessionIdleTTL = %v, want 10m", cfg.Engine.SessionIdleTTL)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[0] != want[0] || cfg.Server.CORSOrigins[1] != want[1] {
		t.Errorf("CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadConfigFile(t *testing.T) {
	isolateEnv(t)
	path := writeFile(t, "config.yaml", `
engine:
  protection_level: passive
  ttl_overrides:
    time_sink: 10m
    chain_step: 3h
evolution:
  interval: 15m
store:
  enabled: true
  in_memory: true
server:
  cors_origins:
    - https://site.example
`)
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.ProtectionLevel != "passive" {
		t.Errorf("ProtectionLevel = %q, want passive", cfg.Engine.ProtectionLevel)
	}
	if got := cfg.Engine.TTLOverrides["time_sink"]; got != 10*time.Minute {
		t.Errorf("TTLOverrides[time_sink] = %v, want 10m", got)
	}
	if got := cfg.Engine.TTLOverrides["chain_step"]; got != 3*time.Hour {
		t.Errorf("TTLOverrides[chain_step] = %v, want 3h", got)
	}
	if cfg.Evolution.Interval != 15*time.Minute {
		t.Errorf("Evolution.Interval = %v, want 15m", cfg.Evolution.Interval)
	}
	if !cfg.Store.Enabled || !cfg.Store.InMemory {
		t.Errorf("Store = %+v, want enabled in-memory", cfg.Store)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "https://site.example" {
		t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	// untouched sections keep defaults
	if cfg.Server.Port != 8420 {
		t.Errorf("Server.Port = %d, want default 8420", cfg.Server.Port)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	isolateEnv(t)
	path := writeFile(t, "config.yaml", "engine:\n  protection_level: passive\nlogging:\n  level: warn\n")
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("TARPIT_PROTECTION_LEVEL", "aggressive")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.ProtectionLevel != "aggressive" {
		t.Errorf("ProtectionLevel = %q, want env value aggressive", cfg.Engine.ProtectionLevel)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want file value warn", cfg.Logging.Level)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown protection level", map[string]string{"TARPIT_PROTECTION_LEVEL": "paranoid"}},
		{"invalid log level", map[string]string{"LOG_LEVEL": "verbose"}},
		{"invalid log format", map[string]string{"LOG_FORMAT": "xml"}},
		{"port out of range", map[string]string{"HTTP_PORT": "70000"}},
		{"bot threshold above one", map[string]string{"TARPIT_BOT_THRESHOLD": "1.5"}},
		{"inverted thresholds", map[string]string{"TARPIT_SUSPICIOUS_THRESHOLD": "0.8", "TARPIT_BOT_THRESHOLD": "0.5"}},
		{"inverted evolution thresholds", map[string]string{"EVOLUTION_DECAY_THRESHOLD": "0.7"}},
		{"boost factor below one", map[string]string{"EVOLUTION_BOOST_FACTOR": "0.5"}},
		{"non hex minter key", map[string]string{"TARPIT_MINTER_KEY": "not-hex"}},
		{"odd length minter key", map[string]string{"TARPIT_MINTER_KEY": "abc"}},
		{"persistent store without key", map[string]string{"STORE_ENABLED": "true"}},
		{"unknown export backend", map[string]string{"EXPORT_BACKEND": "kafka"}},
		{"embedded port out of range", map[string]string{"EXPORT_BACKEND": "embedded", "EXPORT_EMBEDDED_PORT": "70000"}},
		{"bad nats url", map[string]string{"EXPORT_ENABLED": "true", "NATS_URL": "http://nats:4222"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("Load() error = nil, want validation error")
			}
			if !errors.Is(err, trap.ErrInvalidConfiguration) {
				t.Errorf("Load() error = %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}

func TestValidateTTLOverrideClass(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Engine.TTLOverrides = map[string]time.Duration{"honeypot": time.Minute}
	if err := cfg.Validate(); !errors.Is(err, trap.ErrInvalidConfiguration) {
		t.Errorf("Validate() = %v, want ErrInvalidConfiguration for unknown class", err)
	}

	cfg.Engine.TTLOverrides = map[string]time.Duration{"time_sink": 0}
	if err := cfg.Validate(); !errors.Is(err, trap.ErrInvalidConfiguration) {
		t.Errorf("Validate() = %v, want ErrInvalidConfiguration for zero TTL", err)
	}

	cfg.Engine.TTLOverrides = map[string]time.Duration{"time_sink": time.Minute}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}
