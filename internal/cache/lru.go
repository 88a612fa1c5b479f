// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package cache

import "sync"

type lruEntry[V any] struct {
	key   string
	value V
	prev  *lruEntry[V]
	next  *lruEntry[V]
}

// LRU is a thread-safe least-recently-used map with O(1) operations.
//
// When Add or GetOrAdd would exceed capacity, the least recently used entry
// is removed and OnEvict is called with it after the cache lock is released,
// so the callback may call back into the cache.
type LRU[V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*lruEntry[V]

	// head.next is the most recently used, tail.prev the least.
	head *lruEntry[V]
	tail *lruEntry[V]

	onEvict func(key string, value V)
}

// NewLRU creates an LRU holding at most capacity entries. onEvict may be nil.
func NewLRU[V any](capacity int, onEvict func(key string, value V)) *LRU[V] {
	if capacity <= 0 {
		capacity = 10000
	}
	c := &LRU[V]{
		capacity: capacity,
		items:    make(map[string]*lruEntry[V]),
		head:     &lruEntry[V]{},
		tail:     &lruEntry[V]{},
		onEvict:  onEvict,
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Get returns key's value and marks it most recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

// Peek returns key's value without touching recency.
func (c *LRU[V]) Peek(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Add inserts or replaces key's value.
func (c *LRU[V]) Add(key string, value V) {
	c.mu.Lock()
	if e, ok := c.items[key]; ok {
		e.value = value
		c.moveToFront(e)
		c.mu.Unlock()
		return
	}
	evicted := c.insertLocked(key, value)
	c.mu.Unlock()

	c.notify(evicted)
}

// GetOrAdd returns the existing value for key, or stores and returns the
// result of create. loaded reports whether the value already existed.
func (c *LRU[V]) GetOrAdd(key string, create func() V) (value V, loaded bool) {
	c.mu.Lock()
	if e, ok := c.items[key]; ok {
		c.moveToFront(e)
		c.mu.Unlock()
		return e.value, true
	}
	value = create()
	evicted := c.insertLocked(key, value)
	c.mu.Unlock()

	c.notify(evicted)
	return value, false
}

// Remove deletes key without calling OnEvict. It reports whether key existed.
func (c *LRU[V]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return false
	}
	c.unlink(e)
	delete(c.items, key)
	return true
}

// Keys returns keys from most to least recently used.
func (c *LRU[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	for e := c.head.next; e != c.tail; e = e.next {
		keys = append(keys, e.key)
	}
	return keys
}

// Len returns the number of entries.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Capacity returns the maximum number of entries.
func (c *LRU[V]) Capacity() int {
	return c.capacity
}

func (c *LRU[V]) insertLocked(key string, value V) *lruEntry[V] {
	var evicted *lruEntry[V]
	if len(c.items) >= c.capacity {
		evicted = c.tail.prev
		c.unlink(evicted)
		delete(c.items, evicted.key)
	}

	e := &lruEntry[V]{key: key, value: value}
	c.items[key] = e
	c.pushFront(e)
	return evicted
}

func (c *LRU[V]) notify(evicted *lruEntry[V]) {
	if evicted != nil && c.onEvict != nil {
		c.onEvict(evicted.key, evicted.value)
	}
}

func (c *LRU[V]) moveToFront(e *lruEntry[V]) {
	c.unlink(e)
	c.pushFront(e)
}

func (c *LRU[V]) pushFront(e *lruEntry[V]) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *LRU[V]) unlink(e *lruEntry[V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev = nil
	e.next = nil
}
