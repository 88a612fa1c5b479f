// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

// Package collector keeps the engine's bounded, per-session view of
// observations.
//
// The session map is an LRU (bounded session count); each session has its own
// mutex, held while an observation is appended and, for trap hits, while the
// ledger marks the identifier consumed. Observations of one session are
// therefore appended in the order their consumption was decided.
package collector

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/tarpit/internal/cache"
	"github.com/tomtom215/tarpit/internal/trap"
)

// Defaults for Config.
const (
	DefaultMaxSessions = 100_000
	DefaultMaxEvents   = 1024
	DefaultMaxScores   = 64
	DefaultIdleTTL     = 30 * time.Minute
)

// Consumer marks trap identifiers consumed.
type Consumer interface {
	MarkConsumed(id, sessionID string, at time.Time) trap.Consumption
}

// Config configures a Collector.
type Config struct {
	MaxSessions int
	MaxEvents   int // per session; the oldest are dropped first
	MaxScores   int // score history per session
	IdleTTL     time.Duration
	Clock       func() time.Time
}

// DefaultConfig returns the default collector configuration.
func DefaultConfig() Config {
	return Config{
		MaxSessions: DefaultMaxSessions,
		MaxEvents:   DefaultMaxEvents,
		MaxScores:   DefaultMaxScores,
		IdleTTL:     DefaultIdleTTL,
	}
}

// Collector records observations per session.
type Collector struct {
	cfg      Config
	consumer Consumer
	sessions *cache.LRU[*session]
	now      func() time.Time

	evicted atomic.Int64
}

type session struct {
	mu         sync.Mutex
	id         string
	firstSeen  time.Time
	lastSeen   time.Time
	lastActive time.Time // collector clock, drives idle eviction
	events     []trap.Observation
	scores     []trap.ScorePoint
	dropped    int
	gone       bool // removed from the map; callers must re-fetch
}

// New creates a collector that marks trap hits consumed through consumer.
func New(consumer Consumer, cfg Config) (*Collector, error) {
	if consumer == nil {
		return nil, fmt.Errorf("collector requires a consumer: %w", trap.ErrInvalidConfiguration)
	}
	def := DefaultConfig()
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = def.MaxSessions
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = def.MaxEvents
	}
	if cfg.MaxScores <= 0 {
		cfg.MaxScores = def.MaxScores
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = def.IdleTTL
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	c := &Collector{cfg: cfg, consumer: consumer, now: now}
	c.sessions = cache.NewLRU[*session](cfg.MaxSessions, func(_ string, s *session) {
		s.mu.Lock()
		s.gone = true
		s.mu.Unlock()
		c.evicted.Add(1)
	})
	return c, nil
}

// Record appends obs to sessionID's sequence, creating the session if needed.
// Trap hits are marked consumed while the session lock is held and the
// resulting annotation is stored with the observation and returned.
// A zero Timestamp is replaced with the collector clock.
func (c *Collector) Record(sessionID string, obs trap.Observation) (trap.SessionView, error) {
	if sessionID == "" {
		return trap.SessionView{}, fmt.Errorf("empty session id: %w", trap.ErrInvalidObservation)
	}
	if err := obs.Validate(); err != nil {
		return trap.SessionView{}, err
	}

	arrived := c.now()
	if obs.Timestamp.IsZero() {
		obs.Timestamp = arrived
	}
	obs.Flags = append([]string(nil), obs.Flags...)
	obs.Consumption = nil

	for {
		s, _ := c.sessions.GetOrAdd(sessionID, func() *session {
			return &session{id: sessionID, firstSeen: obs.Timestamp, lastSeen: obs.Timestamp, lastActive: arrived}
		})

		s.mu.Lock()
		if s.gone {
			s.mu.Unlock()
			continue
		}

		if obs.Kind == trap.ObservationTrapHit {
			consumption := c.consumer.MarkConsumed(obs.TrapID, sessionID, arrived)
			obs.Consumption = &consumption
		}
		s.append(obs, c.cfg.MaxEvents)
		s.lastActive = arrived

		view := trap.SessionView{
			ID:         s.id,
			FirstSeen:  s.firstSeen,
			LastSeen:   s.lastSeen,
			EventCount: len(s.events),
			Dropped:    s.dropped,
		}
		if obs.Consumption != nil {
			cp := *obs.Consumption
			view.Consumption = &cp
		}
		s.mu.Unlock()
		return view, nil
	}
}

func (s *session) append(obs trap.Observation, limit int) {
	if len(s.events) >= limit {
		n := len(s.events) - limit + 1
		copy(s.events, s.events[n:])
		s.events = s.events[:len(s.events)-n]
		s.dropped += n
	}
	s.events = append(s.events, obs)

	if obs.Timestamp.Before(s.firstSeen) {
		s.firstSeen = obs.Timestamp
	}
	if obs.Timestamp.After(s.lastSeen) {
		s.lastSeen = obs.Timestamp
	}
}

// Get returns a deep copy of the session without refreshing its recency.
func (c *Collector) Get(sessionID string) (trap.Session, bool) {
	s, ok := c.sessions.Peek(sessionID)
	if !ok {
		return trap.Session{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone {
		return trap.Session{}, false
	}

	out := trap.Session{
		ID:        s.id,
		FirstSeen: s.firstSeen,
		LastSeen:  s.lastSeen,
		Events:    make([]trap.Observation, len(s.events)),
		Scores:    append([]trap.ScorePoint(nil), s.scores...),
		Dropped:   s.dropped,
	}
	for i, e := range s.events {
		out.Events[i] = cloneObservation(e)
	}
	return out, true
}

// AppendScore adds a point to the session's score history. Unknown sessions
// are ignored.
func (c *Collector) AppendScore(sessionID string, point trap.ScorePoint) bool {
	s, ok := c.sessions.Peek(sessionID)
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone {
		return false
	}
	if len(s.scores) >= c.cfg.MaxScores {
		n := len(s.scores) - c.cfg.MaxScores + 1
		copy(s.scores, s.scores[n:])
		s.scores = s.scores[:len(s.scores)-n]
	}
	s.scores = append(s.scores, point)
	return true
}

// EvictIdle removes sessions with no activity for longer than IdleTTL and
// returns how many were removed. Candidates come from a snapshot of the keys
// and are rechecked under their own lock.
func (c *Collector) EvictIdle(now time.Time) int {
	removed := 0
	for _, id := range c.sessions.Keys() {
		s, ok := c.sessions.Peek(id)
		if !ok {
			continue
		}

		s.mu.Lock()
		if !s.gone && now.Sub(s.lastActive) > c.cfg.IdleTTL {
			s.gone = true
			c.sessions.Remove(id)
			removed++
		}
		s.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked sessions.
func (c *Collector) Len() int {
	return c.sessions.Len()
}

// Evicted returns how many sessions were pushed out by the session limit.
func (c *Collector) Evicted() int64 {
	return c.evicted.Load()
}

func cloneObservation(o trap.Observation) trap.Observation {
	o.Flags = append([]string(nil), o.Flags...)
	if o.Consumption != nil {
		cp := *o.Consumption
		if cp.Chain != nil {
			chain := *cp.Chain
			cp.Chain = &chain
		}
		o.Consumption = &cp
	}
	return o
}
