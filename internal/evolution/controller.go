// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

// Package evolution adjusts template weights from aggregated engagement.
//
// Templates that bots engage with often are boosted, templates nobody
// touches decay towards a floor, and everything in between is held. Weights
// are changed one template at a time through the catalog, so a cancelled
// ingestion leaves every template either fully updated or untouched.
package evolution

import (
	"context"
	"fmt"
	"math"

	"github.com/tomtom215/tarpit/internal/trap"
)

// WeightUpdater atomically rewrites a template weight.
type WeightUpdater interface {
	Update(id string, fn func(old float64) float64) (oldWeight, newWeight float64, err error)
}

// Config configures a Controller.
type Config struct {
	BoostThreshold float64 // rate >= boosts
	BoostFactor    float64
	DecayThreshold float64 // rate <= decays
	DecayFactor    float64
	Floor          float64 // decay never goes below
}

// DefaultConfig returns the default evolution policy.
func DefaultConfig() Config {
	return Config{
		BoostThreshold: 0.6,
		BoostFactor:    2.0,
		DecayThreshold: 0.05,
		DecayFactor:    0.8,
		Floor:          0.05,
	}
}

// Validate checks the policy.
func (c Config) Validate() error {
	switch {
	case c.Floor <= 0:
		return fmt.Errorf("evolution floor must be positive: %w", trap.ErrInvalidConfiguration)
	case c.BoostFactor < 1:
		return fmt.Errorf("boost factor must be at least 1: %w", trap.ErrInvalidConfiguration)
	case c.DecayFactor <= 0 || c.DecayFactor > 1:
		return fmt.Errorf("decay factor must be in (0,1]: %w", trap.ErrInvalidConfiguration)
	case c.DecayThreshold < 0 || c.BoostThreshold > 1 || c.DecayThreshold >= c.BoostThreshold:
		return fmt.Errorf("thresholds must satisfy 0 <= decay < boost <= 1: %w", trap.ErrInvalidConfiguration)
	}
	return nil
}

// Controller applies evolution policy to a catalog.
type Controller struct {
	cfg     Config
	weights WeightUpdater
}

// NewController creates a controller.
func NewController(weights WeightUpdater, cfg Config) (*Controller, error) {
	if weights == nil {
		return nil, fmt.Errorf("evolution requires a catalog: %w", trap.ErrInvalidConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Controller{cfg: cfg, weights: weights}, nil
}

// Ingest applies one weight delta per outcome. ctx is checked between
// templates; on cancellation the deltas applied so far are returned with
// ctx.Err().
func (c *Controller) Ingest(ctx context.Context, in trap.AggregatedOutcomes) (trap.DeltaSummary, error) {
	summary := trap.DeltaSummary{Deltas: make([]trap.WeightDelta, 0, len(in.Outcomes))}

	for _, o := range in.Outcomes {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Add(c.apply(o))
	}
	return summary, nil
}

func (c *Controller) apply(o trap.TemplateOutcome) trap.WeightDelta {
	d := trap.WeightDelta{TemplateID: o.TemplateID}
	if o.TemplateID == "" || o.Issued < 0 || o.Engaged < 0 || math.IsNaN(o.EngagementRate) {
		d.Action = trap.DeltaSkipped
		d.Reason = "malformed outcome"
		return d
	}
	d.Rate = o.Rate()

	var fn func(float64) float64
	switch {
	case d.Rate >= c.cfg.BoostThreshold:
		d.Action = trap.DeltaBoost
		fn = func(w float64) float64 { return math.Max(w, c.cfg.Floor) * c.cfg.BoostFactor }
	case d.Rate <= c.cfg.DecayThreshold:
		d.Action = trap.DeltaDecay
		fn = func(w float64) float64 { return math.Max(c.cfg.Floor, w*c.cfg.DecayFactor) }
	default:
		d.Action = trap.DeltaHold
		fn = func(w float64) float64 { return w }
	}

	old, nw, err := c.weights.Update(o.TemplateID, fn)
	if err != nil {
		d.Action = trap.DeltaSkipped
		d.Reason = "unknown template"
		return d
	}
	d.Old, d.New = old, nw
	return d
}
