// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/tarpit/internal/trap"
)

// Default classification thresholds.
const (
	DefaultSuspiciousThreshold = 0.4
	DefaultBotThreshold        = 0.75

	confidenceScale = 5.0
)

// SessionSource provides session snapshots.
type SessionSource interface {
	Get(sessionID string) (trap.Session, bool)
}

// Config configures a Scorer.
type Config struct {
	SuspiciousThreshold float64
	BotThreshold        float64

	// Factors overrides DefaultFactors().
	Factors []Factor

	Clock func() time.Time
}

// DefaultConfig returns the default scorer configuration.
func DefaultConfig() Config {
	return Config{
		SuspiciousThreshold: DefaultSuspiciousThreshold,
		BotThreshold:        DefaultBotThreshold,
	}
}

// Validate checks the thresholds.
func (c Config) Validate() error {
	if c.SuspiciousThreshold <= 0 || c.BotThreshold > 1 || c.SuspiciousThreshold >= c.BotThreshold {
		return fmt.Errorf("thresholds must satisfy 0 < suspicious (%v) < bot (%v) <= 1: %w",
			c.SuspiciousThreshold, c.BotThreshold, trap.ErrInvalidConfiguration)
	}
	return nil
}

// Scorer computes threat scores.
type Scorer struct {
	cfg      Config
	factors  []Factor
	sessions SessionSource
	now      func() time.Time
}

// New creates a scorer reading sessions from sessions.
func New(sessions SessionSource, cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	factors := cfg.Factors
	if len(factors) == 0 {
		factors = DefaultFactors()
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Scorer{cfg: cfg, factors: factors, sessions: sessions, now: now}, nil
}

// Score returns the current score of sessionID. Unknown sessions score 0.
func (s *Scorer) Score(sessionID string) trap.ThreatScore {
	if s.sessions != nil {
		if sess, ok := s.sessions.Get(sessionID); ok {
			return s.Evaluate(&sess)
		}
	}
	return s.Evaluate(&trap.Session{ID: sessionID})
}

// Evaluate scores a session snapshot.
func (s *Scorer) Evaluate(sess *trap.Session) trap.ThreatScore {
	score := trap.ThreatScore{
		SessionID:      sess.ID,
		Classification: trap.ClassificationHuman,
		Factors:        make(map[string]float64),
		ComputedAt:     s.now().UTC(),
	}
	if len(sess.Events) == 0 {
		return score
	}

	var sum float64
	for _, f := range s.factors {
		v := f.Evaluate(sess)
		if v == 0 || math.IsNaN(v) {
			continue
		}
		score.Factors[f.Name()] += v
		sum += v
	}

	if sum > 0 {
		score.Value = math.Min(1, 1-math.Exp(-sum))
	}
	score.Classification = s.Classify(score.Value)
	score.Confidence = 1 - math.Exp(-float64(len(sess.Events))/confidenceScale)
	return score
}

// Classify maps a score value to a classification.
func (s *Scorer) Classify(value float64) trap.Classification {
	switch {
	case value >= s.cfg.BotThreshold:
		return trap.ClassificationBot
	case value >= s.cfg.SuspiciousThreshold:
		return trap.ClassificationSuspicious
	}
	return trap.ClassificationHuman
}

// Thresholds returns the suspicious and bot thresholds.
func (s *Scorer) Thresholds() (suspicious, bot float64) {
	return s.cfg.SuspiciousThreshold, s.cfg.BotThreshold
}
