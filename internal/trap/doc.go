// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

// Package trap holds the data model shared by every engine component:
// trap identifiers and their issuance records, per-session observations,
// pattern templates, threat scores and the evolution feedback types.
//
// Lifecycle:
//
//	Template -> Identifier (generated) -> IssuanceRecord (ledger)
//	                                          |
//	Observation (collector) --MarkConsumed----+
//	        |
//	        v
//	Session.Events -> ThreatScore -> Session.Scores
//
// Identifiers are consumed at most once and purged after expiry regardless of
// consumption. Sessions are born at their first observation and evicted after
// an idle TTL. Template weights are mutated only by rule evolution.
//
// The package has no dependencies on other internal packages so that every
// component can import it without cycles.
package trap
