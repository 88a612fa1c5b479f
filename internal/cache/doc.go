// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

// Package cache provides the in-memory data structures the engine builds on.
//
// # Data Structures
//
//   - BloomFilter: probabilistic set membership. The issuance ledger uses it to
//     remember every token it has ever issued, so evicted tokens are never
//     re-minted and hits on evicted tokens can be told apart from forgeries.
//   - LRU: generic least-recently-used map with an eviction callback. The
//     observation collector bounds its session view with it.
//   - SlidingWindowCounter / SlidingWindowStore: bucketed counters over a
//     moving time window. Rule evolution tracks per-template issuance and
//     engagement with them.
//
// All types are safe for concurrent use.
//
// # Complexity
//
//	BloomFilter.Add/Test         O(k), k = hash functions (<= 10)
//	LRU.Get/Add/Remove           O(1)
//	SlidingWindowCounter.Count   O(b), b = buckets
package cache
