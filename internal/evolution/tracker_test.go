// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package evolution

import (
	"testing"
	"time"
)

func TestTracker_Outcomes(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	tr := NewTracker(time.Hour, clock)

	tr.RecordIssued("a", 10)
	tr.RecordIssued("b", 2)
	for i := 0; i < 9; i++ {
		tr.RecordEngaged("a")
	}
	tr.RecordEngaged("untracked")

	out := tr.Outcomes(5)
	if out.Window != time.Hour || len(out.Outcomes) != 1 {
		t.Fatalf("Outcomes() = %+v, want only template a", out)
	}
	o := out.Outcomes[0]
	if o.TemplateID != "a" || o.Issued != 10 || o.Engaged != 9 || o.EngagementRate != 0.9 {
		t.Errorf("outcome = %+v", o)
	}

	if got := tr.Outcomes(0); len(got.Outcomes) != 2 {
		t.Errorf("Outcomes(0) returned %d templates, want 2", len(got.Outcomes))
	}
}

func TestTracker_DrainResets(t *testing.T) {
	tr := NewTracker(time.Hour, nil)
	tr.RecordIssued("a", 4)
	tr.RecordEngaged("a")

	if got := tr.Drain(1); len(got.Outcomes) != 1 {
		t.Fatalf("Drain() = %+v", got)
	}
	if got := tr.Drain(1); len(got.Outcomes) != 0 {
		t.Errorf("second Drain() = %+v, want empty", got)
	}
}

func TestTracker_WindowExpiry(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTracker(time.Hour, func() time.Time { return now })
	tr.RecordIssued("a", 3)

	now = now.Add(2 * time.Hour)
	if got := tr.Outcomes(1); len(got.Outcomes) != 0 {
		t.Errorf("Outcomes() after window = %+v, want empty", got)
	}
	if n := tr.Prune(); n != 1 {
		t.Errorf("Prune() = %d, want 1", n)
	}
}
