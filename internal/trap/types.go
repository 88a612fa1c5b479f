// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package trap

import (
	"fmt"
	"time"
)

// Class identifies the cost-imposing behavior a host must enact when a trap
// identifier is dereferenced.
type Class string

const (
	// ClassResourceSink serves endless or very large decoy data.
	ClassResourceSink Class = "resource_sink"

	// ClassComputationChallenge serves a CPU-bound challenge.
	ClassComputationChallenge Class = "computation_challenge"

	// ClassMemoryBloat serves payloads that inflate parser memory.
	ClassMemoryBloat Class = "memory_bloat"

	// ClassTimeSink delays the response (tarpit).
	ClassTimeSink Class = "time_sink"

	// ClassChainStep is one step of a multi-request chain.
	ClassChainStep Class = "chain_step"
)

// AllClasses returns every trap class in declaration order.
func AllClasses() []Class {
	return []Class{
		ClassResourceSink,
		ClassComputationChallenge,
		ClassMemoryBloat,
		ClassTimeSink,
		ClassChainStep,
	}
}

// Valid reports whether c is a known trap class.
func (c Class) Valid() bool {
	switch c {
	case ClassResourceSink, ClassComputationChallenge, ClassMemoryBloat, ClassTimeSink, ClassChainStep:
		return true
	}
	return false
}

// ParseClass converts a string into a Class.
func ParseClass(s string) (Class, error) {
	c := Class(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown trap class %q: %w", s, ErrInvalidConfiguration)
	}
	return c, nil
}

// ChainPosition places an identifier inside a multi-step chain.
type ChainPosition struct {
	ChainID string `json:"chain_id"`
	Step    int    `json:"step"`  // 1-based
	Total   int    `json:"total"` // steps in the chain
}

// Identifier is a generated trap resource identifier.
//
// ID is an opaque token, unique across the ledger's retention window.
// BatchID and Sequence record the presentation order the host was given,
// which the scorer compares against the order traps are actually requested.
type Identifier struct {
	ID          string            `json:"id"`
	Class       Class             `json:"trap_class"`
	TemplateID  string            `json:"template_id"`
	Path        string            `json:"path"`
	Params      map[string]string `json:"params,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	BatchID     string            `json:"batch_id"`
	Sequence    int               `json:"sequence"`
	IssuedAt    time.Time         `json:"issued_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
	Chain       *ChainPosition    `json:"chain_position,omitempty"`
}

// Expired reports whether the identifier is past its expiry at now.
func (i *Identifier) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// Clone returns a deep copy.
func (i *Identifier) Clone() Identifier {
	c := *i
	if i.Params != nil {
		c.Params = make(map[string]string, len(i.Params))
		for k, v := range i.Params {
			c.Params[k] = v
		}
	}
	if i.Chain != nil {
		chain := *i.Chain
		c.Chain = &chain
	}
	return c
}

// IssuanceRecord is the ledger's record of one issued identifier.
// SessionID is a weak reference: the ledger never owns session lifecycle.
// Consumed transitions false -> true exactly once.
type IssuanceRecord struct {
	Identifier Identifier `json:"identifier"`
	SessionID  string     `json:"session_id,omitempty"`
	Consumed   bool       `json:"consumed"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	ConsumedBy string     `json:"consumed_by,omitempty"`
}

// ConsumptionStatus is the outcome of marking an identifier consumed.
type ConsumptionStatus string

const (
	// ConsumptionNotIssued means the ledger never issued the identifier.
	ConsumptionNotIssued ConsumptionStatus = "not_issued"

	// ConsumptionExpired means the identifier is no longer in the ledger but
	// was probably issued before (probabilistic, see ledger).
	ConsumptionExpired ConsumptionStatus = "expired"

	// ConsumptionFirst means this call performed the first consumption.
	ConsumptionFirst ConsumptionStatus = "first"

	// ConsumptionRepeat means the identifier had already been consumed.
	ConsumptionRepeat ConsumptionStatus = "already_consumed"
)

// Consumption annotates a trap hit with issuance and consumption metadata.
// Template, batch and chain fields are empty when the identifier is unknown.
type Consumption struct {
	Status        ConsumptionStatus `json:"status"`
	CrossSession  bool              `json:"cross_session"`
	IssuedTo      string            `json:"issued_to,omitempty"`
	FirstConsumer string            `json:"first_consumer,omitempty"`
	TemplateID    string            `json:"template_id,omitempty"`
	Class         Class             `json:"trap_class,omitempty"`
	BatchID       string            `json:"batch_id,omitempty"`
	Sequence      int               `json:"sequence,omitempty"`
	Chain         *ChainPosition    `json:"chain_position,omitempty"`
}

// Issued reports whether the ledger held a record for the identifier.
func (c *Consumption) Issued() bool {
	return c.Status == ConsumptionFirst || c.Status == ConsumptionRepeat
}

// ObservationKind discriminates Observation payloads.
type ObservationKind string

const (
	ObservationTrapHit     ObservationKind = "trap_hit"
	ObservationTiming      ObservationKind = "timing"
	ObservationEnvironment ObservationKind = "environment"
	ObservationNavigation  ObservationKind = "navigation"
)

// Valid reports whether k is a known observation kind.
func (k ObservationKind) Valid() bool {
	switch k {
	case ObservationTrapHit, ObservationTiming, ObservationEnvironment, ObservationNavigation:
		return true
	}
	return false
}

// Observation is one event in a session's sequence. Only the fields relevant
// to Kind are set. Consumption is attached by the collector for trap hits.
// Observations are immutable once appended.
type Observation struct {
	Kind        ObservationKind `json:"kind"`
	Timestamp   time.Time       `json:"timestamp"`
	TrapID      string          `json:"trap_id,omitempty"`
	Delta       time.Duration   `json:"delta,omitempty"`
	Flags       []string        `json:"flags,omitempty"`
	Path        string          `json:"path,omitempty"`
	Consumption *Consumption    `json:"consumption,omitempty"`
}

// Validate checks the kind-specific required fields.
func (o *Observation) Validate() error {
	if !o.Kind.Valid() {
		return fmt.Errorf("unknown observation kind %q: %w", o.Kind, ErrInvalidObservation)
	}
	switch o.Kind {
	case ObservationTrapHit:
		if o.TrapID == "" {
			return fmt.Errorf("trap hit without identifier: %w", ErrInvalidObservation)
		}
	case ObservationTiming:
		if o.Delta < 0 {
			return fmt.Errorf("negative timing delta: %w", ErrInvalidObservation)
		}
	}
	return nil
}

// ScorePoint is one entry of a session's score history.
type ScorePoint struct {
	At             time.Time      `json:"at"`
	Value          float64        `json:"value"`
	Classification Classification `json:"classification"`
}

// Session is a copy of the engine's bounded view of one session.
type Session struct {
	ID        string        `json:"session_id"`
	FirstSeen time.Time     `json:"first_seen"`
	LastSeen  time.Time     `json:"last_seen"`
	Events    []Observation `json:"events"`
	Scores    []ScorePoint  `json:"score_history"`

	// Dropped counts events discarded from the front of a full buffer.
	Dropped int `json:"dropped_events,omitempty"`
}

// SessionView is the summary returned after recording an observation.
type SessionView struct {
	ID          string       `json:"session_id"`
	FirstSeen   time.Time    `json:"first_seen"`
	LastSeen    time.Time    `json:"last_seen"`
	EventCount  int          `json:"event_count"`
	Dropped     int          `json:"dropped_events,omitempty"`
	Consumption *Consumption `json:"consumption,omitempty"`
}

// ObserveResult is returned to the host for each forwarded observation.
type ObserveResult struct {
	SessionID    string            `json:"session_id"`
	Status       ConsumptionStatus `json:"consumption_status,omitempty"`
	CrossSession bool              `json:"cross_session,omitempty"`
	EventCount   int               `json:"event_count"`
}

// Template is a parameterized pattern for trap identifiers.
//
// PathShape and ParamShape use placeholders ({word}, {slug}, {hex:N},
// {num:N}, {token}) that the generator fills from a random source.
type Template struct {
	ID          string  `json:"id"`
	PathShape   string  `json:"path_shape"`
	ParamShape  string  `json:"parameter_shape,omitempty"`
	ContentType string  `json:"content_type,omitempty"`
	Class       Class   `json:"trap_class"`
	Weight      float64 `json:"weight"`

	// ChainLength is the number of steps emitted for chain-step templates.
	ChainLength int `json:"chain_length,omitempty"`
}

// Classification is the verdict attached to a threat score.
type Classification string

const (
	ClassificationHuman      Classification = "human"
	ClassificationSuspicious Classification = "suspicious"
	ClassificationBot        Classification = "bot"
)

// ThreatScore is a calibrated estimate that a session is automated.
// Factors maps factor names to signed contributions and is always non-nil.
type ThreatScore struct {
	SessionID      string             `json:"session_id"`
	Value          float64            `json:"value"`
	Classification Classification     `json:"classification"`
	Confidence     float64            `json:"confidence"`
	Factors        map[string]float64 `json:"factors"`
	ComputedAt     time.Time          `json:"computed_at"`
}

// TemplateOutcome is externally aggregated engagement for one template.
type TemplateOutcome struct {
	TemplateID     string  `json:"template_id" validate:"required"`
	Issued         int64   `json:"issued" validate:"gte=0"`
	Engaged        int64   `json:"engaged" validate:"gte=0"`
	EngagementRate float64 `json:"engagement_rate" validate:"gte=0,lte=1"`
}

// Rate returns the engagement rate in [0,1]. Counts win over the explicit
// rate when Issued is set.
func (o TemplateOutcome) Rate() float64 {
	rate := o.EngagementRate
	if o.Issued > 0 {
		rate = float64(o.Engaged) / float64(o.Issued)
	}
	switch {
	case rate < 0:
		return 0
	case rate > 1:
		return 1
	}
	return rate
}

// AggregatedOutcomes is the intelligence fed to rule evolution.
type AggregatedOutcomes struct {
	Source   string            `json:"source,omitempty"`
	Window   time.Duration     `json:"window,omitempty"`
	Outcomes []TemplateOutcome `json:"outcomes" validate:"dive"`
}

// DeltaAction describes what evolution did to a template.
type DeltaAction string

const (
	DeltaBoost   DeltaAction = "boost"
	DeltaDecay   DeltaAction = "decay"
	DeltaHold    DeltaAction = "hold"
	DeltaSkipped DeltaAction = "skipped"
)

// WeightDelta records one template's weight change.
type WeightDelta struct {
	TemplateID string      `json:"template_id"`
	Action     DeltaAction `json:"action"`
	Rate       float64     `json:"engagement_rate"`
	Old        float64     `json:"old_weight"`
	New        float64     `json:"new_weight"`
	Reason     string      `json:"reason,omitempty"`
}

// DeltaSummary is the result of one intelligence ingestion.
type DeltaSummary struct {
	Deltas  []WeightDelta `json:"applied_deltas"`
	Boosted int           `json:"boosted"`
	Decayed int           `json:"decayed"`
	Held    int           `json:"held"`
	Skipped int           `json:"skipped"`
}

// Add appends d and updates the counters.
func (s *DeltaSummary) Add(d WeightDelta) {
	s.Deltas = append(s.Deltas, d)
	switch d.Action {
	case DeltaBoost:
		s.Boosted++
	case DeltaDecay:
		s.Decayed++
	case DeltaHold:
		s.Held++
	case DeltaSkipped:
		s.Skipped++
	}
}
