// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

// Package engine owns one protected site's trap state and exposes the four
// host call shapes:
//
//	traps, err := e.Generate(ctx, sessionID, 20)       // issue decoys
//	res, err := e.Observe(ctx, sessionID, observation) // forward events
//	score := e.Score(ctx, sessionID)                   // decide a response
//	summary, err := e.Ingest(ctx, outcomes)            // feed back engagement
//
// Component graph:
//
//	evolution.Controller -> catalog.Catalog -> generator.Generator -> ledger.Ledger
//	                                                                     ^
//	                         collector.Collector (MarkConsumed) ---------+
//	                                |
//	                         scoring.Scorer -> Sink (analytics hand-off)
//
// Generation, observation and scoring are synchronous and never block on a
// collaborator: the Persister and Sink are enqueue-and-return. Ledger expiry,
// idle session eviction and the optional timed evolution run in
// RunWithContext, which the supervisor tree owns.
//
// # Protection Levels
//
//	Level        TTL    cost-class weight   suspicious   bot
//	passive      2h     x0.5                0.50         0.85
//	moderate     1h     x1.0                0.40         0.75
//	aggressive   30m    x2.0                0.30         0.60
//
// The cost-class weight scales templates of the computation_challenge,
// memory_bloat and time_sink classes relative to plain resource sinks and
// chains. Explicit TTL overrides and thresholds win over the level preset.
// Stealth adds ±25% TTL jitter and decoy path segments.
package engine
