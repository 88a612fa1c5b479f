// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

/*
Package metrics provides Prometheus metrics for the engine and its host
collaborators.

Collectors are package-level and registered with the default registry via
promauto. Callers use the Record* helpers rather than touching collectors
directly, so label sets stay consistent.

# Metrics Endpoint

Metrics are exposed at /metrics in Prometheus text format:

	curl http://localhost:8470/metrics

# Available Metrics

Engine:
  - tarpit_traps_generated_total{class}
  - tarpit_generation_failures_total{reason}
  - tarpit_batch_size (histogram)
  - tarpit_observations_total{kind}
  - tarpit_trap_hits_total{status}
  - tarpit_scores_total{classification}
  - tarpit_score_value (histogram)
  - tarpit_ledger_records, tarpit_sessions (gauges)
  - tarpit_evictions_total{kind}
  - tarpit_evolution_deltas_total{action}, tarpit_template_weight{template}

Collaborators:
  - tarpit_handoff_dropped_total{queue}
  - tarpit_store_operations_total{op,result}
  - tarpit_export_messages_total{topic,result}
  - circuit_breaker_state{name}, circuit_breaker_state_transitions_total

HTTP:
  - http_requests_total{method,endpoint,status}
  - http_request_duration_seconds{method,endpoint}
  - http_requests_in_flight
  - http_rate_limit_hits_total{endpoint}
*/
package metrics
