// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

// Package logging provides the process-wide zerolog logger.
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	logging.Info().Str("template", id).Msg("template boosted")
//	logging.Ctx(ctx).Warn().Err(err).Msg("generation exhausted")
//
// Ctx adds the request and correlation ids carried by ctx, so every line
// emitted while serving one HTTP request can be joined.
//
// Component loggers carry a fixed "component" field:
//
//	log := logging.WithComponent("ledger")
//	log.Debug().Int("evicted", n).Msg("sweep finished")
//
// # slog Bridge
//
// Libraries that log through log/slog (sutureslog in particular) are pointed
// at zerolog with NewSlogLogger.
//
// # Configuration
//
// Level, format (json|console) and caller reporting come from the logging
// section of the application config (LOG_LEVEL, LOG_FORMAT, LOG_CALLER).
package logging
