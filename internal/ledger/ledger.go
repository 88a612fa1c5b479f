// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

// Package ledger records which trap identifiers were issued, to whom, and
// whether they have been consumed.
//
// Records live in 32 shards, each a map guarded by its own RWMutex, so
// operations on different identifiers rarely contend. Consumption is a
// compare-and-set under the shard lock: exactly one caller observes the
// first consumption of an identifier.
//
// Every registered identifier is also added to a Bloom filter that outlives
// the record. After an identifier expires and is swept, a later hit on it
// is reported as expired rather than never issued, and the generator avoids
// re-minting it. The filter rotates through two generations once full, so
// its false positive rate stays bounded on long-running processes.
package ledger

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/tomtom215/tarpit/internal/cache"
	"github.com/tomtom215/tarpit/internal/trap"
)

const shardCount = 32

// Defaults for Config.
const (
	DefaultBloomCapacity      = 1_000_000
	DefaultBloomFalsePositive = 0.001
)

// Persister receives ledger changes. Implementations must enqueue and
// return; Persist is called while the record's shard lock is held.
type Persister interface {
	Persist(rec trap.IssuanceRecord)
	Forget(ids []string)
}

// Config configures a Ledger.
type Config struct {
	// BloomCapacity is the number of identifiers per filter generation.
	BloomCapacity int

	// BloomFalsePositive is the target false positive rate per generation.
	BloomFalsePositive float64

	// Persister is optional.
	Persister Persister
}

// Ledger is the sharded issuance ledger.
type Ledger struct {
	shards [shardCount]shard

	bloomMu  sync.RWMutex
	current  *cache.BloomFilter
	previous *cache.BloomFilter
	bloomCap int
	bloomFP  float64

	persister Persister
}

type shard struct {
	mu      sync.RWMutex
	records map[string]*trap.IssuanceRecord
}

// New creates an empty ledger.
func New(cfg Config) *Ledger {
	if cfg.BloomCapacity <= 0 {
		cfg.BloomCapacity = DefaultBloomCapacity
	}
	if cfg.BloomFalsePositive <= 0 || cfg.BloomFalsePositive >= 1 {
		cfg.BloomFalsePositive = DefaultBloomFalsePositive
	}
	l := &Ledger{
		current:   cache.NewBloomFilter(cfg.BloomCapacity, cfg.BloomFalsePositive),
		bloomCap:  cfg.BloomCapacity,
		bloomFP:   cfg.BloomFalsePositive,
		persister: cfg.Persister,
	}
	for i := range l.shards {
		l.shards[i].records = make(map[string]*trap.IssuanceRecord)
	}
	return l
}

// Register records an issued identifier attributed to sessionID, which may
// be empty. An identifier already present returns trap.ErrDuplicate.
func (l *Ledger) Register(id trap.Identifier, sessionID string) error {
	if id.ID == "" {
		return fmt.Errorf("register: empty identifier: %w", trap.ErrInvalidConfiguration)
	}
	rec := &trap.IssuanceRecord{Identifier: id.Clone(), SessionID: sessionID}
	return l.insert(rec, l.persister != nil)
}

// Restore inserts a previously persisted record, consumption state included.
func (l *Ledger) Restore(rec trap.IssuanceRecord) error {
	if rec.Identifier.ID == "" {
		return fmt.Errorf("restore: empty identifier: %w", trap.ErrInvalidConfiguration)
	}
	c := cloneRecord(&rec)
	return l.insert(&c, false)
}

// insert publishes rec. When persist is set the copy is handed to the
// persister under the shard lock, so hand-offs for one identifier keep the
// order of its changes.
func (l *Ledger) insert(rec *trap.IssuanceRecord, persist bool) error {
	id := rec.Identifier.ID
	s := l.shard(id)

	s.mu.Lock()
	if _, ok := s.records[id]; ok {
		s.mu.Unlock()
		return fmt.Errorf("identifier %s: %w", id, trap.ErrDuplicate)
	}
	s.records[id] = rec
	if persist {
		l.persister.Persist(cloneRecord(rec))
	}
	s.mu.Unlock()

	l.remember(id)
	return nil
}

// Lookup returns a copy of the record for id, or trap.ErrNotFound for
// unknown and evicted identifiers.
func (l *Ledger) Lookup(id string) (trap.IssuanceRecord, error) {
	s := l.shard(id)

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return trap.IssuanceRecord{}, fmt.Errorf("identifier %s: %w", id, trap.ErrNotFound)
	}
	return cloneRecord(rec), nil
}

// MarkConsumed records that sessionID requested id at at. It is idempotent:
// only the first call for an issued identifier reports ConsumptionFirst.
//
// CrossSession is set when the consumer differs from the session the
// identifier was issued to, or on a repeat when it differs from the first
// consumer.
func (l *Ledger) MarkConsumed(id, sessionID string, at time.Time) trap.Consumption {
	s := l.shard(id)

	s.mu.Lock()
	rec, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		if l.MaybeIssued(id) {
			return trap.Consumption{Status: trap.ConsumptionExpired}
		}
		return trap.Consumption{Status: trap.ConsumptionNotIssued}
	}

	c := trap.Consumption{
		IssuedTo:   rec.SessionID,
		TemplateID: rec.Identifier.TemplateID,
		Class:      rec.Identifier.Class,
		BatchID:    rec.Identifier.BatchID,
		Sequence:   rec.Identifier.Sequence,
	}
	if rec.Identifier.Chain != nil {
		chain := *rec.Identifier.Chain
		c.Chain = &chain
	}

	switch {
	case rec.Consumed:
		c.Status = trap.ConsumptionRepeat
		c.FirstConsumer = rec.ConsumedBy
		c.CrossSession = crossed(rec.SessionID, sessionID) || sessionID != rec.ConsumedBy
	case rec.Identifier.Expired(at):
		// Not yet swept; treated as gone and left unconsumed.
		c.Status = trap.ConsumptionExpired
		c.CrossSession = crossed(rec.SessionID, sessionID)
	default:
		consumedAt := at
		rec.Consumed = true
		rec.ConsumedAt = &consumedAt
		rec.ConsumedBy = sessionID
		c.Status = trap.ConsumptionFirst
		c.FirstConsumer = sessionID
		c.CrossSession = crossed(rec.SessionID, sessionID)
		if l.persister != nil {
			l.persister.Persist(cloneRecord(rec))
		}
	}
	s.mu.Unlock()
	return c
}

// crossed reports whether consumer differs from a non-empty issuing session.
func crossed(issuedTo, consumer string) bool {
	return issuedTo != "" && consumer != issuedTo
}

// MaybeIssued reports whether id was probably registered at some point,
// including identifiers that have since been evicted.
func (l *Ledger) MaybeIssued(id string) bool {
	l.bloomMu.RLock()
	defer l.bloomMu.RUnlock()

	if l.current.Test(id) {
		return true
	}
	return l.previous != nil && l.previous.Test(id)
}

func (l *Ledger) remember(id string) {
	l.bloomMu.RLock()
	current := l.current
	l.bloomMu.RUnlock()

	current.Add(id)
	if !current.Full() {
		return
	}

	l.bloomMu.Lock()
	if l.current == current {
		l.previous = current
		l.current = cache.NewBloomFilter(l.bloomCap, l.bloomFP)
	}
	l.bloomMu.Unlock()
}

// EvictExpired removes records whose expiry is strictly before now and
// returns how many were removed. Each shard is scanned under a read lock
// and swept under a write lock, rechecking expiry.
func (l *Ledger) EvictExpired(now time.Time) int {
	var evicted []string
	for i := range l.shards {
		s := &l.shards[i]

		s.mu.RLock()
		var candidates []string
		for id, rec := range s.records {
			if now.After(rec.Identifier.ExpiresAt) {
				candidates = append(candidates, id)
			}
		}
		s.mu.RUnlock()

		if len(candidates) == 0 {
			continue
		}

		s.mu.Lock()
		for _, id := range candidates {
			if rec, ok := s.records[id]; ok && now.After(rec.Identifier.ExpiresAt) {
				delete(s.records, id)
				evicted = append(evicted, id)
			}
		}
		s.mu.Unlock()
	}

	if len(evicted) > 0 && l.persister != nil {
		l.persister.Forget(evicted)
	}
	return len(evicted)
}

// Revoke removes ids that were registered but never handed out, such as
// the issued part of a failed batch. Revoked ids stay in the "ever issued"
// filter, so a later request for one reports expired. It returns how many
// records were removed.
func (l *Ledger) Revoke(ids []string) int {
	var removed []string
	for _, id := range ids {
		s := l.shard(id)
		s.mu.Lock()
		if _, ok := s.records[id]; ok {
			delete(s.records, id)
			removed = append(removed, id)
		}
		s.mu.Unlock()
	}

	if len(removed) > 0 && l.persister != nil {
		l.persister.Forget(removed)
	}
	return len(removed)
}

// Len returns the number of live records.
func (l *Ledger) Len() int {
	n := 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.RLock()
		n += len(s.records)
		s.mu.RUnlock()
	}
	return n
}

// Records returns a copy of every live record. Shards are copied one at a
// time, so the result is not a point-in-time snapshot across shards.
func (l *Ledger) Records() []trap.IssuanceRecord {
	out := make([]trap.IssuanceRecord, 0, l.Len())
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.RLock()
		for _, rec := range s.records {
			out = append(out, cloneRecord(rec))
		}
		s.mu.RUnlock()
	}
	return out
}

func (l *Ledger) shard(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &l.shards[h.Sum32()%shardCount]
}

func cloneRecord(rec *trap.IssuanceRecord) trap.IssuanceRecord {
	c := *rec
	c.Identifier = rec.Identifier.Clone()
	if rec.ConsumedAt != nil {
		at := *rec.ConsumedAt
		c.ConsumedAt = &at
	}
	return c
}
