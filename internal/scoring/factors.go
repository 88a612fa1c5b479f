// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package scoring

import (
	"math"
	"time"

	"github.com/tomtom215/tarpit/internal/trap"
)

// Factor names as they appear in ThreatScore.Factors.
const (
	FactorTrapEngagement     = "trap_engagement"
	FactorCrossSessionReplay = "trap_cross_session_replay"
	FactorSameSessionReplay  = "trap_same_session_replay"
	FactorTimingRegularity   = "timing_regularity"
	FactorSequenceOrder      = "sequence_order"
	FactorEnvironment        = "environment"
	FactorNavigation         = "navigation"
)

// Factor is one independent line of evidence.
type Factor interface {
	// Name returns the key used in ThreatScore.Factors.
	Name() string

	// Evaluate returns the factor's signed contribution for the session.
	Evaluate(s *trap.Session) float64
}

// capAt bounds v to [min(0,limit), max(0,limit)].
func capAt(v, limit float64) float64 {
	if limit >= 0 {
		return math.Min(v, limit)
	}
	return math.Max(v, limit)
}

// trapHits calls fn for every annotated trap hit.
func trapHits(s *trap.Session, fn func(o *trap.Observation, c *trap.Consumption)) {
	for i := range s.Events {
		o := &s.Events[i]
		if o.Kind == trap.ObservationTrapHit && o.Consumption != nil {
			fn(o, o.Consumption)
		}
	}
}

// EngagementFactor scores hits on trap identifiers a human never sees.
type EngagementFactor struct {
	First     float64
	NotIssued float64
	Expired   float64
	Cap       float64
}

// DefaultEngagementFactor returns the default engagement weights.
func DefaultEngagementFactor() *EngagementFactor {
	return &EngagementFactor{First: 0.40, NotIssued: 0.35, Expired: 0.30, Cap: 2.5}
}

func (f *EngagementFactor) Name() string { return FactorTrapEngagement }

func (f *EngagementFactor) Evaluate(s *trap.Session) float64 {
	var sum float64
	trapHits(s, func(_ *trap.Observation, c *trap.Consumption) {
		switch c.Status {
		case trap.ConsumptionFirst:
			if !c.CrossSession {
				sum += f.First
			}
		case trap.ConsumptionNotIssued:
			sum += f.NotIssued
		case trap.ConsumptionExpired:
			sum += f.Expired
		}
	})
	return capAt(sum, f.Cap)
}

// ReplayFactor scores hits on identifiers that were issued to, or already
// consumed by, someone else (cross-session) or consumed before by this
// session (same-session).
type ReplayFactor struct {
	Cross  bool
	PerHit float64
	Cap    float64
}

// DefaultCrossSessionReplayFactor returns the cross-session replay factor.
func DefaultCrossSessionReplayFactor() *ReplayFactor {
	return &ReplayFactor{Cross: true, PerHit: 0.50, Cap: 1.5}
}

// DefaultSameSessionReplayFactor returns the same-session replay factor.
func DefaultSameSessionReplayFactor() *ReplayFactor {
	return &ReplayFactor{Cross: false, PerHit: 0.15, Cap: 0.6}
}

func (f *ReplayFactor) Name() string {
	if f.Cross {
		return FactorCrossSessionReplay
	}
	return FactorSameSessionReplay
}

func (f *ReplayFactor) Evaluate(s *trap.Session) float64 {
	var sum float64
	trapHits(s, func(_ *trap.Observation, c *trap.Consumption) {
		if !c.Issued() {
			return
		}
		if f.Cross && c.CrossSession {
			sum += f.PerHit
		}
		if !f.Cross && !c.CrossSession && c.Status == trap.ConsumptionRepeat {
			sum += f.PerHit
		}
	})
	return capAt(sum, f.Cap)
}

// TimingFactor scores machine-like request timing. Samples are the gaps
// between consecutive non-timing events plus explicit timing deltas.
type TimingFactor struct {
	MinSamples int

	// Regular intervals: cv below RegularCV adds up to RegularWeight.
	RegularCV     float64
	RegularWeight float64

	// Fast intervals: mean gap below FastMean adds up to FastWeight.
	FastMean   time.Duration
	FastWeight float64

	// Human-like spread: cv above HumanCV with mean above HumanMean.
	HumanCV     float64
	HumanMean   time.Duration
	HumanWeight float64
}

// DefaultTimingFactor returns the default timing thresholds.
func DefaultTimingFactor() *TimingFactor {
	return &TimingFactor{
		MinSamples:    3,
		RegularCV:     0.15,
		RegularWeight: 0.8,
		FastMean:      150 * time.Millisecond,
		FastWeight:    0.6,
		HumanCV:       0.6,
		HumanMean:     400 * time.Millisecond,
		HumanWeight:   -0.2,
	}
}

func (f *TimingFactor) Name() string { return FactorTimingRegularity }

func (f *TimingFactor) Evaluate(s *trap.Session) float64 {
	samples := timingSamples(s)
	if len(samples) < f.MinSamples {
		return 0
	}

	mean, cv := meanCV(samples)
	var v float64
	if cv < f.RegularCV {
		v += f.RegularWeight * (1 - cv/f.RegularCV)
	}
	if fast := float64(f.FastMean); mean < fast {
		v += f.FastWeight * (1 - mean/fast)
	}
	if cv > f.HumanCV && mean > float64(f.HumanMean) {
		v += f.HumanWeight
	}
	return v
}

func timingSamples(s *trap.Session) []float64 {
	var (
		samples []float64
		prev    time.Time
	)
	for i := range s.Events {
		o := &s.Events[i]
		if o.Kind == trap.ObservationTiming {
			samples = append(samples, float64(o.Delta))
			continue
		}
		if !prev.IsZero() {
			// Out-of-order client timestamps carry no interval information.
			if gap := o.Timestamp.Sub(prev); gap >= 0 {
				samples = append(samples, float64(gap))
			}
		}
		prev = o.Timestamp
	}
	return samples
}

// meanCV returns the mean and coefficient of variation of xs.
func meanCV(xs []float64) (mean, cv float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	if mean == 0 {
		return 0, 0
	}

	var variance float64
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	return mean, math.Sqrt(variance) / mean
}

// SequenceFactor scores trap hits that disagree with presentation order:
// identifiers of one batch requested out of sequence, and chain steps
// requested without their predecessors.
type SequenceFactor struct {
	OutOfOrder  float64
	SkippedStep float64
	Cap         float64
}

// DefaultSequenceFactor returns the default sequence weights.
func DefaultSequenceFactor() *SequenceFactor {
	return &SequenceFactor{OutOfOrder: 0.25, SkippedStep: 0.40, Cap: 1.2}
}

func (f *SequenceFactor) Name() string { return FactorSequenceOrder }

func (f *SequenceFactor) Evaluate(s *trap.Session) float64 {
	var (
		sum       float64
		seen      = make(map[string]bool)
		batchHigh = make(map[string]int)
		chainHigh = make(map[string]int)
	)
	trapHits(s, func(o *trap.Observation, c *trap.Consumption) {
		if !c.Issued() || seen[o.TrapID] {
			return
		}
		seen[o.TrapID] = true

		if c.BatchID != "" {
			if c.Sequence < batchHigh[c.BatchID] {
				sum += f.OutOfOrder
			} else {
				batchHigh[c.BatchID] = c.Sequence
			}
		}
		if c.Chain != nil {
			high := chainHigh[c.Chain.ChainID]
			if skipped := c.Chain.Step - high - 1; skipped > 0 {
				sum += f.SkippedStep * float64(skipped)
			}
			if c.Chain.Step > high {
				chainHigh[c.Chain.ChainID] = c.Chain.Step
			}
		}
	})
	return capAt(sum, f.Cap)
}

// EnvironmentFactor scores reported automation markers (webdriver,
// headless user agent, missing plugins and the like).
type EnvironmentFactor struct {
	Weight float64
}

// DefaultEnvironmentFactor returns the default environment weight.
func DefaultEnvironmentFactor() *EnvironmentFactor {
	return &EnvironmentFactor{Weight: 2.5}
}

func (f *EnvironmentFactor) Name() string { return FactorEnvironment }

func (f *EnvironmentFactor) Evaluate(s *trap.Session) float64 {
	for i := range s.Events {
		if s.Events[i].Kind == trap.ObservationEnvironment && len(s.Events[i].Flags) > 0 {
			return f.Weight
		}
	}
	return 0
}

// NavigationFactor credits ordinary navigation between real pages.
type NavigationFactor struct {
	PerStep float64
	Cap     float64
}

// DefaultNavigationFactor returns the default navigation credit.
func DefaultNavigationFactor() *NavigationFactor {
	return &NavigationFactor{PerStep: -0.05, Cap: -0.3}
}

func (f *NavigationFactor) Name() string { return FactorNavigation }

func (f *NavigationFactor) Evaluate(s *trap.Session) float64 {
	var sum float64
	for i := range s.Events {
		if s.Events[i].Kind == trap.ObservationNavigation {
			sum += f.PerStep
		}
	}
	return capAt(sum, f.Cap)
}

// DefaultFactors returns every factor with default weights.
func DefaultFactors() []Factor {
	return []Factor{
		DefaultEngagementFactor(),
		DefaultCrossSessionReplayFactor(),
		DefaultSameSessionReplayFactor(),
		DefaultTimingFactor(),
		DefaultSequenceFactor(),
		DefaultEnvironmentFactor(),
		DefaultNavigationFactor(),
	}
}
