// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Generation
	TrapsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarpit_traps_generated_total",
			Help: "Total number of trap identifiers issued",
		},
		[]string{"class"},
	)

	GenerationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarpit_generation_failures_total",
			Help: "Total number of failed generation requests",
		},
		[]string{"reason"}, // "exhausted", "error"
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tarpit_batch_size",
			Help:    "Number of identifiers per generated batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	// Observation and scoring
	ObservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarpit_observations_total",
			Help: "Total number of recorded observations",
		},
		[]string{"kind"},
	)

	TrapHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarpit_trap_hits_total",
			Help: "Total number of trap hits by consumption status",
		},
		[]string{"status"},
	)

	ScoresComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarpit_scores_total",
			Help: "Total number of threat scores computed",
		},
		[]string{"classification"},
	)

	ScoreValue = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tarpit_score_value",
			Help:    "Distribution of computed threat score values",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)

	// State
	LedgerRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tarpit_ledger_records",
			Help: "Current number of live issuance records",
		},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tarpit_sessions",
			Help: "Current number of tracked sessions",
		},
	)

	Evictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarpit_evictions_total",
			Help: "Total number of evicted records",
		},
		[]string{"kind"}, // "trap", "session_idle"
	)

	// Evolution
	EvolutionDeltas = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarpit_evolution_deltas_total",
			Help: "Total number of template weight decisions",
		},
		[]string{"action"},
	)

	TemplateWeight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tarpit_template_weight",
			Help: "Current selection weight of each template",
		},
		[]string{"template"},
	)

	// Collaborators
	HandoffDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarpit_handoff_dropped_total",
			Help: "Total number of items dropped because a hand-off queue was full",
		},
		[]string{"queue"},
	)

	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarpit_store_operations_total",
			Help: "Total number of issuance store operations",
		},
		[]string{"op", "result"},
	)

	ExportMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tarpit_export_messages_total",
			Help: "Total number of analytics messages handled by the exporter",
		},
		[]string{"topic", "result"}, // result: "published", "failed", "rejected"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limit_hits_total",
			Help: "Total number of rate limited requests",
		},
		[]string{"endpoint"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordBatch records a generated batch.
func RecordBatch(classes map[string]int, size int) {
	for class, n := range classes {
		TrapsGenerated.WithLabelValues(class).Add(float64(n))
	}
	BatchSize.Observe(float64(size))
}

// RecordGenerationFailure records a failed generation request.
func RecordGenerationFailure(exhausted bool) {
	reason := "error"
	if exhausted {
		reason = "exhausted"
	}
	GenerationFailures.WithLabelValues(reason).Inc()
}

// RecordObservation records an observation and, for trap hits, its
// consumption status (empty otherwise).
func RecordObservation(kind, status string) {
	ObservationsTotal.WithLabelValues(kind).Inc()
	if status != "" {
		TrapHits.WithLabelValues(status).Inc()
	}
}

// RecordScore records a computed threat score.
func RecordScore(classification string, value float64) {
	ScoresComputed.WithLabelValues(classification).Inc()
	ScoreValue.Observe(value)
}

// RecordSweep records a maintenance sweep.
func RecordSweep(traps, sessions, liveTraps, liveSessions int) {
	Evictions.WithLabelValues("trap").Add(float64(traps))
	Evictions.WithLabelValues("session_idle").Add(float64(sessions))
	LedgerRecords.Set(float64(liveTraps))
	SessionsActive.Set(float64(liveSessions))
}

// RecordEvolutionDelta records one template weight decision.
func RecordEvolutionDelta(templateID, action string, weight float64, applied bool) {
	EvolutionDeltas.WithLabelValues(action).Inc()
	if applied {
		TemplateWeight.WithLabelValues(templateID).Set(weight)
	}
}

// RecordHandoffDrop records an item dropped by a full queue.
func RecordHandoffDrop(queue string) {
	HandoffDropped.WithLabelValues(queue).Inc()
}

// RecordStoreOperation records an issuance store operation.
func RecordStoreOperation(op string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	StoreOperations.WithLabelValues(op, result).Inc()
}

// RecordExport records an exporter publish attempt.
func RecordExport(topic, result string) {
	ExportMessages.WithLabelValues(topic, result).Inc()
}

// RecordCircuitBreakerTransition records a breaker state change.
// State values: 0=closed, 1=half-open, 2=open.
func RecordCircuitBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(circuitStateValue(to))
}

func circuitStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	}
	return 0
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
