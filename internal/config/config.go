// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration loaded from defaults, an
// optional YAML file and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in values for every setting
//  2. Config File: optional YAML file (CONFIG_PATH or config.yaml)
//  3. Environment Variables: override any mapped setting
//
// Sections:
//   - Engine: protection level, TTLs, thresholds and resource bounds
//   - Evolution: boost and decay policy for template weights
//   - Store: Badger persistence of issued traps
//   - Export: analytics hand-off over Watermill (NATS or in-memory)
//   - Server: HTTP binding, rate limiting and CORS
//   - Logging: zerolog level, format and caller
//   - Supervisor: suture restart policy
type Config struct {
	Engine     EngineConfig     `koanf:"engine"`
	Evolution  EvolutionConfig  `koanf:"evolution"`
	Store      StoreConfig      `koanf:"store"`
	Export     ExportConfig     `koanf:"export"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// EngineConfig configures trap generation and scoring.
type EngineConfig struct {
	// ProtectionLevel selects default TTLs, cost-class weights and
	// classification thresholds: passive, moderate or aggressive.
	// Default: moderate
	ProtectionLevel string `koanf:"protection_level" validate:"required,oneof=passive moderate aggressive"`

	// Stealth adds TTL jitter and decoy path segments.
	Stealth bool `koanf:"stealth"`

	// DefaultTTL overrides the protection level's base TTL. 0 keeps the preset.
	DefaultTTL time.Duration `koanf:"default_ttl" validate:"gte=0"`

	// TTLOverrides sets the TTL per trap class, e.g. time_sink: 10m.
	TTLOverrides map[string]time.Duration `koanf:"ttl_overrides" validate:"omitempty,dive,keys,trapclass,endkeys,gt=0"`

	// SuspiciousThreshold and BotThreshold override the level's thresholds.
	// 0 keeps the preset.
	SuspiciousThreshold float64 `koanf:"suspicious_threshold" validate:"gte=0,lte=1"`
	BotThreshold        float64 `koanf:"bot_threshold" validate:"gte=0,lte=1"`

	// MaxBatch caps the number of identifiers per generation request.
	MaxBatch int `koanf:"max_batch" validate:"gte=1,lte=10000"`

	// MaxWeight caps template weights after evolution.
	MaxWeight float64 `koanf:"max_weight" validate:"gt=0"`

	// MaintenanceInterval is the ledger sweep and idle eviction period.
	MaintenanceInterval time.Duration `koanf:"maintenance_interval" validate:"gt=0"`

	MaxSessions         int           `koanf:"max_sessions" validate:"gte=1"`
	MaxEventsPerSession int           `koanf:"max_events_per_session" validate:"gte=1"`
	SessionIdleTTL      time.Duration `koanf:"session_idle_ttl" validate:"gt=0"`

	// BloomCapacity is the number of identifiers per Bloom filter generation.
	BloomCapacity int `koanf:"bloom_capacity" validate:"gte=1000"`

	// MinterKey is a hex-encoded key for the token MAC. Empty draws a random
	// key per process; set it when store.enabled is true so restored tokens
	// stay resolvable.
	MinterKey string `koanf:"minter_key" validate:"omitempty,hexadecimal,max=128"`

	// TemplatesFile is an optional YAML file with a top-level templates list
	// that replaces the built-in catalog.
	TemplatesFile string `koanf:"templates_file"`
}

// EvolutionConfig configures rule evolution.
type EvolutionConfig struct {
	BoostThreshold float64 `koanf:"boost_threshold" validate:"gte=0,lte=1"`
	BoostFactor    float64 `koanf:"boost_factor" validate:"gte=1"`
	DecayThreshold float64 `koanf:"decay_threshold" validate:"gte=0,lte=1"`
	DecayFactor    float64 `koanf:"decay_factor" validate:"gt=0,lte=1"`
	Floor          float64 `koanf:"floor" validate:"gt=0"`

	// Interval runs evolution from the engine's own engagement counts.
	// 0 disables timed evolution; intelligence can still be posted.
	Interval time.Duration `koanf:"interval" validate:"gte=0"`

	// Window is how long per-template counts are kept.
	Window time.Duration `koanf:"window" validate:"gt=0"`

	// MinIssued skips templates with fewer issued identifiers.
	MinIssued int64 `koanf:"min_issued" validate:"gte=1"`
}

// StoreConfig configures Badger persistence of issued traps.
type StoreConfig struct {
	Enabled bool `koanf:"enabled"`

	// Path is the Badger directory. Ignored when InMemory is true.
	Path string `koanf:"path"`

	InMemory bool `koanf:"in_memory"`

	// QueueSize bounds pending writes; writes beyond it are dropped.
	QueueSize int `koanf:"queue_size" validate:"gte=1"`

	SyncWrites bool `koanf:"sync_writes"`

	// GCInterval runs value log garbage collection.
	GCInterval time.Duration `koanf:"gc_interval" validate:"gt=0"`

	// GCDiscardRatio is passed to RunValueLogGC.
	GCDiscardRatio float64 `koanf:"gc_discard_ratio" validate:"gt=0,lt=1"`
}

// ExportConfig configures the analytics exporter.
type ExportConfig struct {
	Enabled bool `koanf:"enabled"`

	// Backend is nats (external server), embedded (in-process NATS
	// server) or memory.
	Backend string `koanf:"backend" validate:"oneof=nats embedded memory"`

	NATSURL string `koanf:"nats_url"`

	// EmbeddedPort is the listen port of the embedded server; -1 picks one.
	EmbeddedPort int `koanf:"embedded_port" validate:"gte=-1,lte=65535"`

	// EmbeddedStoreDir holds embedded JetStream data.
	EmbeddedStoreDir string `koanf:"embedded_store_dir"`

	// JetStream enables JetStream publishing with auto-provisioned streams.
	JetStream bool `koanf:"jetstream"`

	// TopicPrefix prefixes the score and trap hit topics.
	TopicPrefix string `koanf:"topic_prefix" validate:"required"`

	QueueSize int `koanf:"queue_size" validate:"gte=1"`

	// RatePerSecond paces publishing; 0 is unlimited.
	RatePerSecond float64 `koanf:"rate_per_second" validate:"gte=0"`
	Burst         int     `koanf:"burst" validate:"gte=1"`

	// BreakerMaxFailures opens the circuit after that many consecutive
	// publish failures; BreakerTimeout is the open period.
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures" validate:"gte=1"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

// ServerConfig configures the HTTP binding.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port" validate:"gte=1,lte=65535"`

	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	// MaxBodyBytes limits request bodies.
	MaxBodyBytes int64 `koanf:"max_body_bytes" validate:"gte=1024"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gte=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level" validate:"loglevel"`

	// Format is json or console.
	// Default: json
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}

// SupervisorConfig holds the suture restart policy.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gt=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}
