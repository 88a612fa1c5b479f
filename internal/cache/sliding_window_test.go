// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package cache

import (
	"reflect"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestSlidingWindowCounter_BasicOperations(t *testing.T) {
	sw := NewSlidingWindowCounter(time.Second, 10, nil)

	if sw.Count() != 0 {
		t.Errorf("Expected initial count 0, got %d", sw.Count())
	}

	sw.Increment(1)
	sw.Increment(1)
	sw.Increment(3)

	if sw.Count() != 5 {
		t.Errorf("Expected count 5, got %d", sw.Count())
	}

	sw.Reset()
	if sw.Count() != 0 {
		t.Errorf("Expected count 0 after reset, got %d", sw.Count())
	}
}

func TestSlidingWindowCounter_Expiration(t *testing.T) {
	clock := newFakeClock()
	// 10 buckets of 10s each.
	sw := NewSlidingWindowCounter(100*time.Second, 10, clock.Now)

	sw.Increment(10)
	clock.Advance(55 * time.Second)
	sw.Increment(5)

	if got := sw.Count(); got != 15 {
		t.Fatalf("Expected 15 inside the window, got %d", got)
	}

	// The first increment falls out, the second stays.
	clock.Advance(50 * time.Second)
	if got := sw.Count(); got != 5 {
		t.Errorf("Expected 5 after partial expiry, got %d", got)
	}

	clock.Advance(200 * time.Second)
	if got := sw.Count(); got != 0 {
		t.Errorf("Expected 0 after full expiry, got %d", got)
	}
}

func TestSlidingWindowCounter_NoDriftOnFrequentCalls(t *testing.T) {
	clock := newFakeClock()
	sw := NewSlidingWindowCounter(10*time.Second, 10, clock.Now)

	sw.Increment(1)
	// Polling every 600ms must still age the bucket out after the window.
	for i := 0; i < 20; i++ {
		clock.Advance(600 * time.Millisecond)
		sw.Count()
	}
	if got := sw.Count(); got != 0 {
		t.Errorf("Expected 0 after 12s, got %d", got)
	}
}

func TestSlidingWindowStore(t *testing.T) {
	clock := newFakeClock()
	s := NewSlidingWindowStore(time.Minute, 6, 0, clock.Now)

	s.Increment("issued:a")
	s.Increment("issued:a")
	s.IncrementBy("engaged:a", 3)

	if got := s.Count("issued:a"); got != 2 {
		t.Errorf("Count(issued:a) = %d, want 2", got)
	}
	if got := s.Count("unknown"); got != 0 {
		t.Errorf("Count(unknown) = %d, want 0", got)
	}
	if got := s.Keys(); !reflect.DeepEqual(got, []string{"engaged:a", "issued:a"}) {
		t.Errorf("Keys() = %v", got)
	}

	clock.Advance(2 * time.Minute)
	if removed := s.CleanupInactive(); removed != 2 {
		t.Errorf("CleanupInactive() = %d, want 2", removed)
	}
	if s.Len() != 0 {
		t.Errorf("Expected empty store, got %d", s.Len())
	}
}

func TestSlidingWindowStore_MaxKeysPrefersInactive(t *testing.T) {
	clock := newFakeClock()
	s := NewSlidingWindowStore(time.Minute, 6, 2, clock.Now)

	s.Increment("old")
	clock.Advance(2 * time.Minute)
	s.Increment("live")
	s.Increment("new")

	if s.Len() != 2 {
		t.Fatalf("Expected 2 keys, got %d", s.Len())
	}
	if s.Count("live") != 1 || s.Count("new") != 1 {
		t.Error("Expected live and new to survive eviction")
	}

	s.Remove("live")
	if s.Len() != 1 {
		t.Errorf("Expected 1 key after Remove, got %d", s.Len())
	}
}
