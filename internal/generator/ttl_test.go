// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package generator

import (
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/tarpit/internal/trap"
)

func TestTTLPolicy_ExpiresAt(t *testing.T) {
	issued := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := TTLPolicy{
		PerClass: map[trap.Class]time.Duration{trap.ClassTimeSink: 10 * time.Minute},
		Default:  time.Hour,
		Jitter:   0.5,
	}

	tests := []struct {
		name  string
		class trap.Class
		draw  float64
		want  time.Duration
	}{
		{"override low", trap.ClassTimeSink, 0, 5 * time.Minute},
		{"override mid", trap.ClassTimeSink, 0.5, 10 * time.Minute},
		{"default mid", trap.ClassResourceSink, 0.5, time.Hour},
		{"default high", trap.ClassResourceSink, 0.75, 75 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.ExpiresAt(tt.class, issued, tt.draw).Sub(issued); got != tt.want {
				t.Errorf("ExpiresAt() ttl = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTTLPolicy_Validate(t *testing.T) {
	tests := []struct {
		name string
		p    TTLPolicy
		ok   bool
	}{
		{"default", DefaultTTLPolicy(), true},
		{"zero default", TTLPolicy{}, false},
		{"bad class", TTLPolicy{Default: time.Hour, PerClass: map[trap.Class]time.Duration{"x": time.Hour}}, false},
		{"negative override", TTLPolicy{Default: time.Hour, PerClass: map[trap.Class]time.Duration{trap.ClassTimeSink: -1}}, false},
		{"jitter too large", TTLPolicy{Default: time.Hour, Jitter: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, trap.ErrInvalidConfiguration) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}
