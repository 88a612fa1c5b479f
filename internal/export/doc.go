// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

/*
Package export publishes engine analytics over Watermill.

The Exporter implements engine.Sink. Every computed threat score becomes a
ScoreEvent on "<prefix>.scores" and every recorded trap hit becomes a
TrapHitEvent on "<prefix>.trap_hits". Payloads are JSON; each message
carries event_type and session_id metadata and uses its UUID as the NATS
message id for JetStream deduplication.

The engine never waits on the exporter. Events are queued without
blocking and dropped when the queue is full. A single Run goroutine paces
publishing with an x/time/rate limiter and wraps each publish in a
gobreaker circuit breaker, so a broker outage costs one timeout per
breaker period instead of one per event.

Backends:
  - NewNATSPublisher: watermill-nats, JetStream optional
  - NewMemoryPublisher: Watermill gochannel, for tests and local runs
*/
package export
