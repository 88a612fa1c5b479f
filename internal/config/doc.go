// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

/*
Package config loads and validates Tarpit configuration.

Configuration is layered with Koanf v2: built-in defaults, then an optional
YAML file, then environment variables. Struct tags are checked with the
shared validator from package validation, followed by cross-field rules.
Every validation failure wraps trap.ErrInvalidConfiguration.

# Configuration File

The file is read from CONFIG_PATH when set, otherwise from the first of
DefaultConfigPaths that exists:

	engine:
	  protection_level: aggressive
	  stealth: true
	  ttl_overrides:
	    time_sink: 10m
	  minter_key: 8f1c...e2
	evolution:
	  interval: 15m
	store:
	  enabled: true
	  path: /data/tarpit
	export:
	  enabled: true
	  nats_url: nats://nats:4222

# Environment Variables

Only mapped names are read; everything else in the environment is ignored.

Engine:
  - TARPIT_PROTECTION_LEVEL: passive, moderate or aggressive (default: moderate)
  - TARPIT_STEALTH: TTL jitter and decoy path segments (default: false)
  - TARPIT_DEFAULT_TTL: base trap TTL (default: level preset)
  - TARPIT_MINTER_KEY: hex token MAC key (required with a persistent store)
  - TARPIT_TEMPLATES_FILE: YAML template catalog

Store:
  - STORE_ENABLED, STORE_PATH, STORE_IN_MEMORY, STORE_GC_INTERVAL

Export:
  - EXPORT_ENABLED, EXPORT_BACKEND (nats, embedded or memory), NATS_URL, NATS_JETSTREAM
  - EXPORT_EMBEDDED_PORT, EXPORT_EMBEDDED_STORE_DIR (embedded backend only)

Server:
  - HTTP_HOST, HTTP_PORT, RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW,
    DISABLE_RATE_LIMIT, CORS_ORIGINS (comma separated)

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Usage

	cfg, err := config.Load()
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	engineCfg, err := cfg.BuildEngineConfig()
*/
package config
