// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"

	"github.com/tomtom215/tarpit/internal/logging"
	"github.com/tomtom215/tarpit/internal/trap"
)

// Key prefix for issuance records.
const prefixTrap = "trap:"

// Defaults for Config.
const (
	DefaultGCDiscardRatio = 0.5
	DefaultCloseTimeout   = 30 * time.Second
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("store closed")

// Config configures a BadgerStore.
type Config struct {
	// Path is the Badger directory. Ignored when InMemory is set.
	Path     string
	InMemory bool

	SyncWrites  bool
	Compression bool

	// GCDiscardRatio is passed to RunValueLogGC.
	GCDiscardRatio float64

	CloseTimeout time.Duration

	// Clock supplies the time used for record TTLs. Defaults to time.Now.
	Clock func() time.Time
}

// BadgerStore persists issuance records in BadgerDB. Each record is stored
// under "trap:<id>" with a Badger TTL matching the identifier's expiry, so
// expired records disappear even if a delete is lost.
type BadgerStore struct {
	db  *badger.DB
	cfg Config

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the store.
func Open(cfg Config) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, fmt.Errorf("store path is required: %w", trap.ErrInvalidConfiguration)
	}
	if cfg.GCDiscardRatio <= 0 || cfg.GCDiscardRatio >= 1 {
		cfg.GCDiscardRatio = DefaultGCDiscardRatio
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = DefaultCloseTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	if cfg.Compression {
		opts.Compression = options.Snappy
	}

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("Issuance store opened")

	return &BadgerStore{db: db, cfg: cfg}, nil
}

// Save writes rec, replacing any earlier version. Records that have
// already expired are not written.
func (s *BadgerStore) Save(ctx context.Context, rec trap.IssuanceRecord) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	ttl := rec.Identifier.ExpiresAt.Sub(s.cfg.Clock())
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.Identifier.ID, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key(rec.Identifier.ID), data).WithTTL(ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("write record %s: %w", rec.Identifier.ID, err)
	}
	return nil
}

// Delete removes the records for ids. Missing ids are ignored.
func (s *BadgerStore) Delete(ctx context.Context, ids []string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, id := range ids {
		if err := wb.Delete(key(id)); err != nil {
			return fmt.Errorf("delete record %s: %w", id, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush deletes: %w", err)
	}
	return nil
}

// Get returns the record for id or trap.ErrNotFound.
func (s *BadgerStore) Get(ctx context.Context, id string) (trap.IssuanceRecord, error) {
	if err := s.check(ctx); err != nil {
		return trap.IssuanceRecord{}, err
	}

	var rec trap.IssuanceRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("record %s: %w", id, trap.ErrNotFound)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	return rec, err
}

// LoadActive returns every stored record that has not expired at now.
// Undecodable records are skipped and logged.
func (s *BadgerStore) LoadActive(ctx context.Context, now time.Time) ([]trap.IssuanceRecord, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var records []trap.IssuanceRecord
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixTrap)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()

			var rec trap.IssuanceRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Skipping undecodable issuance record")
				continue
			}
			if rec.Identifier.Expired(now) {
				continue
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	return records, nil
}

// Count returns the number of stored records.
func (s *BadgerStore) Count() (int, error) {
	if err := s.check(context.Background()); err != nil {
		return 0, err
	}

	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixTrap)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// RunGC runs value log garbage collection until nothing is left to
// rewrite. It is a no-op for in-memory stores.
func (s *BadgerStore) RunGC() error {
	if err := s.check(context.Background()); err != nil {
		return err
	}
	if s.cfg.InMemory {
		return nil
	}

	for {
		err := s.db.RunValueLogGC(s.cfg.GCDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close closes the database, giving up after the configured timeout.
func (s *BadgerStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("Issuance store closed")
		return nil
	case <-time.After(s.cfg.CloseTimeout):
		logging.Warn().Dur("timeout", s.cfg.CloseTimeout).Msg("BadgerDB close timed out")
		return fmt.Errorf("badgerdb close timeout after %v", s.cfg.CloseTimeout)
	}
}

func (s *BadgerStore) check(ctx context.Context) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	return ctx.Err()
}

func key(id string) []byte {
	return []byte(prefixTrap + id)
}
