// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package evolution

import (
	"strings"
	"time"

	"github.com/tomtom215/tarpit/internal/cache"
	"github.com/tomtom215/tarpit/internal/trap"
)

const (
	issuedPrefix  = "issued:"
	engagedPrefix = "engaged:"

	trackerBuckets = 12
	trackerMaxKeys = 4096
)

// Tracker counts issued and engaged identifiers per template over a
// sliding window, for hosts without an external aggregator.
type Tracker struct {
	counts *cache.SlidingWindowStore
	window time.Duration
}

// NewTracker creates a tracker over window. A nil clock uses time.Now.
func NewTracker(window time.Duration, clock cache.Clock) *Tracker {
	if window <= 0 {
		window = time.Hour
	}
	return &Tracker{
		counts: cache.NewSlidingWindowStore(window, trackerBuckets, trackerMaxKeys, clock),
		window: window,
	}
}

// RecordIssued counts n identifiers issued from templateID.
func (t *Tracker) RecordIssued(templateID string, n int) {
	if n > 0 {
		t.counts.IncrementBy(issuedPrefix+templateID, int64(n))
	}
}

// RecordEngaged counts one first consumption of a templateID identifier.
func (t *Tracker) RecordEngaged(templateID string) {
	t.counts.Increment(engagedPrefix + templateID)
}

// Outcomes returns the windowed engagement of every template that issued at
// least minIssued identifiers, sorted by template id.
func (t *Tracker) Outcomes(minIssued int64) trap.AggregatedOutcomes {
	if minIssued < 1 {
		minIssued = 1
	}
	out := trap.AggregatedOutcomes{Source: "tracker", Window: t.window}
	for _, key := range t.counts.Keys() {
		id, ok := strings.CutPrefix(key, issuedPrefix)
		if !ok {
			continue
		}
		issued := t.counts.Count(key)
		if issued < minIssued {
			continue
		}
		engaged := min(t.counts.Count(engagedPrefix+id), issued)
		out.Outcomes = append(out.Outcomes, trap.TemplateOutcome{
			TemplateID:     id,
			Issued:         issued,
			Engaged:        engaged,
			EngagementRate: float64(engaged) / float64(issued),
		})
	}
	return out
}

// Prune drops templates with nothing left in the window.
func (t *Tracker) Prune() int {
	return t.counts.CleanupInactive()
}

// Drain returns Outcomes(minIssued) and resets the counters of every
// reported template, so consecutive evolutions never count the same
// engagement twice.
func (t *Tracker) Drain(minIssued int64) trap.AggregatedOutcomes {
	out := t.Outcomes(minIssued)
	for _, o := range out.Outcomes {
		t.counts.Remove(issuedPrefix + o.TemplateID)
		t.counts.Remove(engagedPrefix + o.TemplateID)
	}
	return out
}
