// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

// Package scoring turns a session's observation sequence into a threat score.
//
// Each Factor inspects the session and returns a signed, bounded
// contribution. Contributions are summed and mapped through
//
//	value = 1 - e^(-S)   for S > 0, otherwise 0
//
// so that independent evidence saturates towards 1 without ever exceeding
// it. Confidence grows with the number of observations: 1 - e^(-n/5).
//
// # Factors
//
//	trap_engagement            +0.40 first hit, +0.35 never issued, +0.30 expired (cap 2.5)
//	trap_cross_session_replay  +0.50 per hit on another session's trap      (cap 1.5)
//	trap_same_session_replay   +0.15 per repeated hit                       (cap 0.6)
//	timing_regularity          up to +0.8 (low variance) +0.6 (fast), -0.2 human-like
//	sequence_order             +0.25 out of order, +0.40 skipped chain step (cap 1.2)
//	environment                +2.5 when any automation flag is reported
//	navigation                 -0.05 per navigation step                    (cap -0.3)
//
// Scoring never fails: unknown sessions score 0 and classify as human.
package scoring
