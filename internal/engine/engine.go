// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/tarpit/internal/catalog"
	"github.com/tomtom215/tarpit/internal/collector"
	"github.com/tomtom215/tarpit/internal/evolution"
	"github.com/tomtom215/tarpit/internal/generator"
	"github.com/tomtom215/tarpit/internal/ledger"
	"github.com/tomtom215/tarpit/internal/logging"
	"github.com/tomtom215/tarpit/internal/metrics"
	"github.com/tomtom215/tarpit/internal/scoring"
	"github.com/tomtom215/tarpit/internal/trap"
)

// Sink receives analytics events. Implementations must enqueue and return.
type Sink interface {
	PublishScore(score trap.ThreatScore)
	PublishTrapHit(sessionID string, hit trap.Observation)
}

// Loader reads persisted issuance records that have not expired at now.
type Loader interface {
	LoadActive(ctx context.Context, now time.Time) ([]trap.IssuanceRecord, error)
}

// Option configures optional collaborators.
type Option func(*options)

type options struct {
	persister ledger.Persister
	sink      Sink
}

// WithPersister hands every ledger change to p.
func WithPersister(p ledger.Persister) Option {
	return func(o *options) { o.persister = p }
}

// WithSink hands score and trap hit events to s.
func WithSink(s Sink) Option {
	return func(o *options) { o.sink = s }
}

// Engine is one protected site's trap generation and scoring state.
// All methods are safe for concurrent use.
type Engine struct {
	cfg Config

	catalog   *catalog.Catalog
	ledger    *ledger.Ledger
	minter    *generator.Minter
	generator *generator.Generator
	collector *collector.Collector
	scorer    *scoring.Scorer
	evolution *evolution.Controller
	tracker   *evolution.Tracker

	sink Sink
	now  func() time.Time
	log  zerolog.Logger
}

// SweepResult reports one maintenance pass.
type SweepResult struct {
	Traps    int `json:"traps_evicted"`
	Sessions int `json:"sessions_evicted"`
}

// Stats is a point-in-time summary of engine state.
type Stats struct {
	Level           ProtectionLevel `json:"protection_level"`
	Stealth         bool            `json:"stealth"`
	LiveTraps       int             `json:"live_traps"`
	Sessions        int             `json:"sessions"`
	EvictedSessions int64           `json:"evicted_sessions"`
	Templates       int             `json:"templates"`
	TotalWeight     float64         `json:"total_weight"`
}

// New validates cfg and builds an engine. Configuration errors wrap
// trap.ErrInvalidConfiguration.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	def := DefaultConfig()
	if cfg.MaintenanceInterval == 0 {
		cfg.MaintenanceInterval = def.MaintenanceInterval
	}
	if cfg.EvolutionWindow == 0 {
		cfg.EvolutionWindow = def.EvolutionWindow
	}
	if cfg.EvolutionMinIssued <= 0 {
		cfg.EvolutionMinIssued = def.EvolutionMinIssued
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	cat, err := catalog.New(catalog.Config{MaxWeight: cfg.MaxWeight}, cfg.templates())
	if err != nil {
		return nil, err
	}

	led := ledger.New(ledger.Config{
		BloomCapacity: cfg.BloomCapacity,
		Persister:     o.persister,
	})

	minter, err := generator.NewMinter(cfg.MinterKey)
	if err != nil {
		return nil, err
	}

	gen, err := generator.New(cat, led, minter, generator.Config{
		MaxBatch: cfg.MaxBatch,
		TTL:      cfg.ttlPolicy(),
		Stealth:  cfg.Stealth,
		Rand:     cfg.Rand,
		Clock:    now,
	})
	if err != nil {
		return nil, err
	}

	col, err := collector.New(led, collector.Config{
		MaxSessions: cfg.MaxSessions,
		MaxEvents:   cfg.MaxEvents,
		IdleTTL:     cfg.SessionIdleTTL,
		Clock:       now,
	})
	if err != nil {
		return nil, err
	}

	sc := cfg.scoringConfig()
	sc.Clock = now
	scorer, err := scoring.New(col, sc)
	if err != nil {
		return nil, err
	}

	evo, err := evolution.NewController(cat, cfg.Evolution)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		catalog:   cat,
		ledger:    led,
		minter:    minter,
		generator: gen,
		collector: col,
		scorer:    scorer,
		evolution: evo,
		tracker:   evolution.NewTracker(cfg.EvolutionWindow, now),
		sink:      o.sink,
		now:       now,
		log:       logging.WithComponent("engine"),
	}

	for _, t := range cat.Snapshot() {
		metrics.TemplateWeight.WithLabelValues(t.ID).Set(t.Weight)
	}
	e.log.Info().
		Str("level", string(cfg.Level)).
		Bool("stealth", cfg.Stealth).
		Int("templates", cat.Len()).
		Msg("trap engine configured")
	return e, nil
}

// Generate issues a batch of trap identifiers for sessionID (empty for
// unattributed batches). The count is clamped to [1, MaxBatch]. The only
// hard failure is trap.ErrGenerationExhausted; the host then degrades to
// passive monitoring.
func (e *Engine) Generate(ctx context.Context, sessionID string, count int) ([]trap.Identifier, error) {
	ids, err := e.generator.GenerateBatch(sessionID, count)
	if err != nil {
		metrics.RecordGenerationFailure(errors.Is(err, trap.ErrGenerationExhausted))
		logging.Ctx(ctx).Warn().
			Err(err).
			Str("session_id", sessionID).
			Int("count", count).
			Msg("trap generation failed")
		return nil, err
	}

	classes := make(map[string]int)
	templates := make(map[string]int)
	for i := range ids {
		classes[string(ids[i].Class)]++
		templates[ids[i].TemplateID]++
	}
	for id, n := range templates {
		e.tracker.RecordIssued(id, n)
	}
	metrics.RecordBatch(classes, len(ids))
	return ids, nil
}

// Observe records one observation for sessionID. A trap hit that carries
// only the requested path is resolved to its token first.
func (e *Engine) Observe(ctx context.Context, sessionID string, obs trap.Observation) (trap.ObserveResult, error) {
	if obs.Kind == trap.ObservationTrapHit && obs.TrapID == "" && obs.Path != "" {
		if token, ok := e.minter.FindToken(obs.Path); ok {
			obs.TrapID = token
		}
	}
	if obs.Timestamp.IsZero() {
		obs.Timestamp = e.now()
	}

	view, err := e.collector.Record(sessionID, obs)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("session_id", sessionID).Msg("observation rejected")
		return trap.ObserveResult{}, err
	}

	res := trap.ObserveResult{SessionID: view.ID, EventCount: view.EventCount}
	var status string
	if c := view.Consumption; c != nil {
		res.Status = c.Status
		res.CrossSession = c.CrossSession
		status = string(c.Status)

		if c.Status == trap.ConsumptionFirst && c.TemplateID != "" {
			e.tracker.RecordEngaged(c.TemplateID)
		}
		if e.sink != nil {
			obs.Consumption = c
			e.sink.PublishTrapHit(view.ID, obs)
		}
	}
	metrics.RecordObservation(string(obs.Kind), status)
	return res, nil
}

// Score computes a fresh threat score for sessionID and appends it to the
// session's history. It never fails: unknown sessions score 0, human.
func (e *Engine) Score(ctx context.Context, sessionID string) trap.ThreatScore {
	score := e.scorer.Score(sessionID)
	known := e.collector.AppendScore(sessionID, trap.ScorePoint{
		At:             score.ComputedAt,
		Value:          score.Value,
		Classification: score.Classification,
	})
	metrics.RecordScore(string(score.Classification), score.Value)

	if score.Classification == trap.ClassificationBot {
		logging.Ctx(ctx).Info().
			Str("session_id", sessionID).
			Float64("score", score.Value).
			Float64("confidence", score.Confidence).
			Msg("session classified as bot")
	}
	if known && e.sink != nil {
		e.sink.PublishScore(score)
	}
	return score
}

// Ingest applies externally aggregated engagement to template weights.
// On cancellation the deltas applied so far are returned with ctx.Err().
func (e *Engine) Ingest(ctx context.Context, in trap.AggregatedOutcomes) (trap.DeltaSummary, error) {
	summary, err := e.evolution.Ingest(ctx, in)
	for _, d := range summary.Deltas {
		metrics.RecordEvolutionDelta(d.TemplateID, string(d.Action), d.New, d.Action != trap.DeltaSkipped)
	}

	ev := logging.Ctx(ctx).Info()
	if err != nil {
		ev = logging.Ctx(ctx).Warn().Err(err)
	}
	ev.Str("source", in.Source).
		Int("outcomes", len(in.Outcomes)).
		Int("boosted", summary.Boosted).
		Int("decayed", summary.Decayed).
		Int("held", summary.Held).
		Int("skipped", summary.Skipped).
		Msg("intelligence ingested")
	return summary, err
}

// Evolve ingests the engine's own windowed engagement counts. Templates
// that issued fewer than EvolutionMinIssued identifiers are left alone.
func (e *Engine) Evolve(ctx context.Context) (trap.DeltaSummary, error) {
	out := e.tracker.Drain(e.cfg.EvolutionMinIssued)
	if len(out.Outcomes) == 0 {
		return trap.DeltaSummary{}, nil
	}
	return e.Ingest(ctx, out)
}

// ResolvePath extracts a verifiable trap token from a requested path.
func (e *Engine) ResolvePath(path string) (string, bool) {
	return e.minter.FindToken(path)
}

// Lookup returns the issuance record of a trap identifier.
func (e *Engine) Lookup(id string) (trap.IssuanceRecord, error) {
	return e.ledger.Lookup(id)
}

// Session returns a copy of the engine's view of sessionID.
func (e *Engine) Session(sessionID string) (trap.Session, error) {
	s, ok := e.collector.Get(sessionID)
	if !ok {
		return trap.Session{}, fmt.Errorf("session %s: %w", sessionID, trap.ErrNotFound)
	}
	return s, nil
}

// Sweep purges expired identifiers and idle sessions as of now.
func (e *Engine) Sweep(now time.Time) SweepResult {
	res := SweepResult{
		Traps:    e.ledger.EvictExpired(now),
		Sessions: e.collector.EvictIdle(now),
	}
	e.tracker.Prune()
	metrics.RecordSweep(res.Traps, res.Sessions, e.ledger.Len(), e.collector.Len())

	if res.Traps > 0 || res.Sessions > 0 {
		e.log.Debug().
			Int("traps", res.Traps).
			Int("sessions", res.Sessions).
			Msg("maintenance sweep evicted entries")
	}
	return res
}

// Stats returns a summary of engine state.
func (e *Engine) Stats() Stats {
	return Stats{
		Level:           e.cfg.Level,
		Stealth:         e.cfg.Stealth,
		LiveTraps:       e.ledger.Len(),
		Sessions:        e.collector.Len(),
		EvictedSessions: e.collector.Evicted(),
		Templates:       e.catalog.Len(),
		TotalWeight:     e.catalog.TotalWeight(),
	}
}

// Catalog returns a snapshot of the templates and their current weights.
func (e *Engine) Catalog() []trap.Template {
	return e.catalog.Snapshot()
}

// Restore loads persisted, unexpired issuance records into the ledger.
// Records already present are skipped.
func (e *Engine) Restore(ctx context.Context, loader Loader) (int, error) {
	now := e.now()
	recs, err := loader.LoadActive(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to load issuance records: %w", err)
	}

	restored := 0
	for i := range recs {
		if recs[i].Identifier.Expired(now) {
			continue
		}
		if err := e.ledger.Restore(recs[i]); err != nil {
			if errors.Is(err, trap.ErrDuplicate) {
				continue
			}
			return restored, err
		}
		restored++
	}
	e.log.Info().Int("restored", restored).Int("loaded", len(recs)).Msg("issuance ledger restored")
	return restored, nil
}

// RunWithContext runs maintenance, and timed evolution when configured,
// until ctx is canceled.
func (e *Engine) RunWithContext(ctx context.Context) error {
	e.log.Info().
		Dur("maintenance_interval", e.cfg.MaintenanceInterval).
		Dur("evolution_interval", e.cfg.EvolutionInterval).
		Msg("trap engine started")

	maintenance := time.NewTicker(e.cfg.MaintenanceInterval)
	defer maintenance.Stop()

	var evolve <-chan time.Time
	if e.cfg.EvolutionInterval > 0 {
		t := time.NewTicker(e.cfg.EvolutionInterval)
		defer t.Stop()
		evolve = t.C
	}

	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("trap engine shutting down")
			return ctx.Err()
		case <-maintenance.C:
			e.Sweep(e.now())
		case <-evolve:
			if _, err := e.Evolve(ctx); err != nil && ctx.Err() == nil {
				e.log.Warn().Err(err).Msg("timed evolution failed")
			}
		}
	}
}
