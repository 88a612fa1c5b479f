// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package export

import (
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/tarpit/internal/trap"
)

// Topic suffixes appended to Config.TopicPrefix.
const (
	TopicScores   = "scores"
	TopicTrapHits = "trap_hits"
)

// Metadata keys set on every message.
const (
	MetadataEventType = "event_type"
	MetadataSessionID = "session_id"
)

// ScoreEvent is published for every computed threat score.
type ScoreEvent struct {
	EventID        string              `json:"event_id"`
	SessionID      string              `json:"session_id"`
	Value          float64             `json:"value"`
	Classification trap.Classification `json:"classification"`
	Confidence     float64             `json:"confidence"`
	Factors        map[string]float64  `json:"factors"`
	ComputedAt     time.Time           `json:"computed_at"`
}

// NewScoreEvent builds the event for score.
func NewScoreEvent(score trap.ThreatScore) ScoreEvent {
	factors := make(map[string]float64, len(score.Factors))
	for k, v := range score.Factors {
		factors[k] = v
	}
	return ScoreEvent{
		EventID:        uuid.New().String(),
		SessionID:      score.SessionID,
		Value:          score.Value,
		Classification: score.Classification,
		Confidence:     score.Confidence,
		Factors:        factors,
		ComputedAt:     score.ComputedAt,
	}
}

// TrapHitEvent is published for every recorded trap hit.
type TrapHitEvent struct {
	EventID      string                 `json:"event_id"`
	SessionID    string                 `json:"session_id"`
	TrapID       string                 `json:"trap_id"`
	Path         string                 `json:"path,omitempty"`
	Status       trap.ConsumptionStatus `json:"consumption_status,omitempty"`
	CrossSession bool                   `json:"cross_session,omitempty"`
	IssuedTo     string                 `json:"issued_to,omitempty"`
	TemplateID   string                 `json:"template_id,omitempty"`
	Class        trap.Class             `json:"trap_class,omitempty"`
	OccurredAt   time.Time              `json:"occurred_at"`
}

// NewTrapHitEvent builds the event for a trap hit observation.
func NewTrapHitEvent(sessionID string, hit trap.Observation) TrapHitEvent {
	ev := TrapHitEvent{
		EventID:    uuid.New().String(),
		SessionID:  sessionID,
		TrapID:     hit.TrapID,
		Path:       hit.Path,
		OccurredAt: hit.Timestamp,
	}
	if c := hit.Consumption; c != nil {
		ev.Status = c.Status
		ev.CrossSession = c.CrossSession
		ev.IssuedTo = c.IssuedTo
		ev.TemplateID = c.TemplateID
		ev.Class = c.Class
	}
	return ev
}
