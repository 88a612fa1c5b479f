// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package cache

import (
	"sort"
	"sync"
	"time"
)

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// SlidingWindowCounter counts events over a moving window split into buckets.
//
// Complexity:
//   - Increment: O(1) amortized
//   - Count: O(k) where k = number of buckets
//   - Memory: O(k) per counter
type SlidingWindowCounter struct {
	mu         sync.Mutex
	buckets    []int64 // circular buffer
	bucketSize time.Duration
	numBuckets int
	current    int
	bucketTime time.Time // start of the current bucket
	now        Clock
}

// NewSlidingWindowCounter creates a counter over windowSize divided into
// numBuckets buckets. A nil clock uses time.Now.
//
// Example: NewSlidingWindowCounter(time.Hour, 12, nil) tracks the last hour
// in 5-minute buckets.
func NewSlidingWindowCounter(windowSize time.Duration, numBuckets int, clock Clock) *SlidingWindowCounter {
	if numBuckets <= 0 {
		numBuckets = 10
	}
	if windowSize <= 0 {
		windowSize = 5 * time.Minute
	}
	if clock == nil {
		clock = time.Now
	}

	bucketSize := windowSize / time.Duration(numBuckets)
	if bucketSize <= 0 {
		bucketSize = time.Nanosecond
	}

	return &SlidingWindowCounter{
		buckets:    make([]int64, numBuckets),
		bucketSize: bucketSize,
		numBuckets: numBuckets,
		bucketTime: clock(),
		now:        clock,
	}
}

// Increment adds delta to the current bucket.
func (sw *SlidingWindowCounter) Increment(delta int64) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.advance()
	sw.buckets[sw.current] += delta
}

// Count returns the sum over the window.
func (sw *SlidingWindowCounter) Count() int64 {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.advance()

	var total int64
	for _, c := range sw.buckets {
		total += c
	}
	return total
}

// Reset clears all buckets.
func (sw *SlidingWindowCounter) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	for i := range sw.buckets {
		sw.buckets[i] = 0
	}
	sw.current = 0
	sw.bucketTime = sw.now()
}

// advance rotates past buckets that have aged out. Caller holds mu.
func (sw *SlidingWindowCounter) advance() {
	now := sw.now()
	elapsed := int(now.Sub(sw.bucketTime) / sw.bucketSize)
	if elapsed <= 0 {
		return
	}

	if elapsed >= sw.numBuckets {
		for i := range sw.buckets {
			sw.buckets[i] = 0
		}
		sw.current = 0
		sw.bucketTime = now
		return
	}

	for i := 0; i < elapsed; i++ {
		sw.current = (sw.current + 1) % sw.numBuckets
		sw.buckets[sw.current] = 0
	}
	// Keep bucket boundaries aligned instead of drifting to the last call.
	sw.bucketTime = sw.bucketTime.Add(time.Duration(elapsed) * sw.bucketSize)
}

// SlidingWindowStore keys sliding window counters, e.g. per template.
//
//	store := NewSlidingWindowStore(time.Hour, 12, 1024, nil)
//	store.Increment("issued:" + templateID)
//	n := store.Count("issued:" + templateID)
type SlidingWindowStore struct {
	mu         sync.RWMutex
	counters   map[string]*SlidingWindowCounter
	windowSize time.Duration
	numBuckets int
	maxKeys    int // 0 = unlimited
	now        Clock
}

// NewSlidingWindowStore creates an empty store.
func NewSlidingWindowStore(windowSize time.Duration, numBuckets, maxKeys int, clock Clock) *SlidingWindowStore {
	if clock == nil {
		clock = time.Now
	}
	return &SlidingWindowStore{
		counters:   make(map[string]*SlidingWindowCounter),
		windowSize: windowSize,
		numBuckets: numBuckets,
		maxKeys:    maxKeys,
		now:        clock,
	}
}

// Increment adds 1 to key's counter.
func (s *SlidingWindowStore) Increment(key string) {
	s.IncrementBy(key, 1)
}

// IncrementBy adds delta to key's counter, creating it if needed.
func (s *SlidingWindowStore) IncrementBy(key string, delta int64) {
	s.mu.Lock()
	counter, ok := s.counters[key]
	if !ok {
		if s.maxKeys > 0 && len(s.counters) >= s.maxKeys {
			s.evictInactiveLocked()
		}
		counter = NewSlidingWindowCounter(s.windowSize, s.numBuckets, s.now)
		s.counters[key] = counter
	}
	s.mu.Unlock()

	counter.Increment(delta)
}

// Count returns key's count within the window; 0 for unknown keys.
func (s *SlidingWindowStore) Count(key string) int64 {
	s.mu.RLock()
	counter, ok := s.counters[key]
	s.mu.RUnlock()

	if !ok {
		return 0
	}
	return counter.Count()
}

// Remove drops key's counter.
func (s *SlidingWindowStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, key)
}

// Keys returns all keys in sorted order.
func (s *SlidingWindowStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.counters))
	for k := range s.counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of counters.
func (s *SlidingWindowStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.counters)
}

// CleanupInactive removes counters with nothing left in the window and
// returns how many were removed.
func (s *SlidingWindowStore) CleanupInactive() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, c := range s.counters {
		if c.Count() == 0 {
			delete(s.counters, k)
			removed++
		}
	}
	return removed
}

// evictInactiveLocked frees room for one key, preferring empty counters.
func (s *SlidingWindowStore) evictInactiveLocked() {
	var victim string
	for k, c := range s.counters {
		if c.Count() == 0 {
			delete(s.counters, k)
			return
		}
		if victim == "" {
			victim = k
		}
	}
	delete(s.counters, victim)
}
