// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package generator

import (
	"fmt"
	"time"

	"github.com/tomtom215/tarpit/internal/trap"
)

// TTLPolicy maps trap classes to lifetimes.
type TTLPolicy struct {
	// PerClass overrides Default for individual classes.
	PerClass map[trap.Class]time.Duration

	// Default applies to classes without an override.
	Default time.Duration

	// Jitter spreads each TTL uniformly over ±Jitter of its value (0 disables).
	Jitter float64
}

// DefaultTTLPolicy returns a one-hour policy with longer-lived chains.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		PerClass: map[trap.Class]time.Duration{
			trap.ClassChainStep: 2 * time.Hour,
		},
		Default: time.Hour,
	}
}

// Validate checks the policy.
func (p TTLPolicy) Validate() error {
	if p.Default <= 0 {
		return fmt.Errorf("default ttl must be positive: %w", trap.ErrInvalidConfiguration)
	}
	for class, ttl := range p.PerClass {
		if !class.Valid() {
			return fmt.Errorf("ttl override for unknown class %q: %w", class, trap.ErrInvalidConfiguration)
		}
		if ttl <= 0 {
			return fmt.Errorf("ttl for %s must be positive: %w", class, trap.ErrInvalidConfiguration)
		}
	}
	if p.Jitter < 0 || p.Jitter >= 1 {
		return fmt.Errorf("ttl jitter must be in [0,1): %w", trap.ErrInvalidConfiguration)
	}
	return nil
}

// TTL returns the base lifetime for class.
func (p TTLPolicy) TTL(class trap.Class) time.Duration {
	if ttl, ok := p.PerClass[class]; ok {
		return ttl
	}
	return p.Default
}

// ExpiresAt returns the expiry for an identifier of class issued at issued.
// draw is a uniform value in [0,1) used for jitter.
func (p TTLPolicy) ExpiresAt(class trap.Class, issued time.Time, draw float64) time.Time {
	ttl := p.TTL(class)
	if p.Jitter > 0 {
		ttl = time.Duration(float64(ttl) * (1 + p.Jitter*(2*draw-1)))
	}
	if ttl < time.Second {
		ttl = time.Second
	}
	return issued.Add(ttl)
}
