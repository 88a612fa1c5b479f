// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package cache

import (
	"hash/fnv"
	"math"
	"sync"
)

// BloomFilter is a probabilistic set with no false negatives.
//
//   - Test() == false: the key was definitely never added
//   - Test() == true: the key was probably added (false positive rate is configurable)
//
// Keys cannot be removed; callers that need bounded error rotate filters
// once Count reaches Capacity.
type BloomFilter struct {
	mu       sync.RWMutex
	bits     []uint64
	size     uint64 // number of bits
	hashFns  int
	count    int
	capacity int
}

// NewBloomFilter sizes a filter for expectedItems at the given false positive rate.
//
//	m = -n * ln(p) / ln(2)^2   bits
//	k = (m / n) * ln(2)        hash functions, capped at 10
func NewBloomFilter(expectedItems int, falsePositiveRate float64) *BloomFilter {
	if expectedItems <= 0 {
		expectedItems = 10000
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}

	m := int(math.Ceil(-float64(expectedItems) * math.Log(falsePositiveRate) / (math.Ln2 * math.Ln2)))
	if m < 64 {
		m = 64
	}

	k := int(math.Round(float64(m) / float64(expectedItems) * math.Ln2))
	if k < 1 {
		k = 1
	}
	if k > 10 {
		k = 10
	}

	words := (m + 63) / 64
	return &BloomFilter{
		bits:     make([]uint64, words),
		size:     uint64(words * 64),
		hashFns:  k,
		capacity: expectedItems,
	}
}

// Add records key.
func (bf *BloomFilter) Add(key string) {
	h1, h2 := bloomHashes(key)

	bf.mu.Lock()
	defer bf.mu.Unlock()

	for i := 0; i < bf.hashFns; i++ {
		idx := (h1 + uint64(i)*h2) % bf.size
		bf.bits[idx/64] |= 1 << (idx % 64)
	}
	bf.count++
}

// Test reports whether key was probably added.
func (bf *BloomFilter) Test(key string) bool {
	h1, h2 := bloomHashes(key)

	bf.mu.RLock()
	defer bf.mu.RUnlock()

	for i := 0; i < bf.hashFns; i++ {
		idx := (h1 + uint64(i)*h2) % bf.size
		if bf.bits[idx/64]&(1<<(idx%64)) == 0 {
			return false
		}
	}
	return true
}

// Clear resets the filter.
func (bf *BloomFilter) Clear() {
	bf.mu.Lock()
	defer bf.mu.Unlock()

	for i := range bf.bits {
		bf.bits[i] = 0
	}
	bf.count = 0
}

// Count returns the number of Add calls since the last Clear.
func (bf *BloomFilter) Count() int {
	bf.mu.RLock()
	defer bf.mu.RUnlock()
	return bf.count
}

// Capacity returns the item count the filter was sized for.
func (bf *BloomFilter) Capacity() int {
	return bf.capacity
}

// Full reports whether Count has reached Capacity, past which the false
// positive rate exceeds the configured target.
func (bf *BloomFilter) Full() bool {
	return bf.Count() >= bf.capacity
}

// FillRatio returns the fraction of set bits.
func (bf *BloomFilter) FillRatio() float64 {
	bf.mu.RLock()
	defer bf.mu.RUnlock()

	set := 0
	for _, word := range bf.bits {
		set += popcount(word)
	}
	return float64(set) / float64(bf.size)
}

// bloomHashes returns the two base hashes for double hashing: h(i) = h1 + i*h2.
func bloomHashes(key string) (uint64, uint64) {
	h1 := fnv.New64a()
	_, _ = h1.Write([]byte(key))

	h2 := fnv.New64()
	_, _ = h2.Write([]byte(key))
	_, _ = h2.Write([]byte{0xff})

	// An even h2 would cycle through half the table at most.
	return h1.Sum64(), h2.Sum64() | 1
}

// popcount counts set bits (Kernighan).
func popcount(x uint64) int {
	n := 0
	for x != 0 {
		x &= x - 1
		n++
	}
	return n
}
