// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package store

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tomtom215/tarpit/internal/logging"
	"github.com/tomtom215/tarpit/internal/metrics"
	"github.com/tomtom215/tarpit/internal/trap"
)

// Defaults for WriterConfig.
const (
	DefaultQueueSize  = 10_000
	DefaultGCInterval = 10 * time.Minute
	drainTimeout      = 5 * time.Second
)

// Store is the storage the AsyncWriter drains into.
type Store interface {
	Save(ctx context.Context, rec trap.IssuanceRecord) error
	Delete(ctx context.Context, ids []string) error
	RunGC() error
}

// WriterConfig configures an AsyncWriter.
type WriterConfig struct {
	QueueSize  int
	GCInterval time.Duration
}

type op struct {
	rec    *trap.IssuanceRecord
	forget []string
}

// AsyncWriter implements ledger.Persister on top of a Store. Persist and
// Forget enqueue without blocking; when the queue is full the change is
// dropped and counted. Run applies queued changes in order.
type AsyncWriter struct {
	store      Store
	queue      chan op
	gcInterval time.Duration

	dropped atomic.Int64
	written atomic.Int64
}

// NewAsyncWriter creates a writer for s.
func NewAsyncWriter(s Store, cfg WriterConfig) *AsyncWriter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.GCInterval <= 0 {
		cfg.GCInterval = DefaultGCInterval
	}
	return &AsyncWriter{
		store:      s,
		queue:      make(chan op, cfg.QueueSize),
		gcInterval: cfg.GCInterval,
	}
}

// Persist enqueues a save of rec.
func (w *AsyncWriter) Persist(rec trap.IssuanceRecord) {
	w.enqueue(op{rec: &rec})
}

// Forget enqueues a delete of ids.
func (w *AsyncWriter) Forget(ids []string) {
	if len(ids) == 0 {
		return
	}
	cp := make([]string, len(ids))
	copy(cp, ids)
	w.enqueue(op{forget: cp})
}

func (w *AsyncWriter) enqueue(o op) {
	select {
	case w.queue <- o:
	default:
		if w.dropped.Add(1)%1000 == 1 {
			logging.Warn().Int64("dropped", w.dropped.Load()).Msg("Store queue full, dropping ledger change")
		}
		metrics.RecordHandoffDrop("store")
	}
}

// Dropped returns how many changes were dropped on a full queue.
func (w *AsyncWriter) Dropped() int64 {
	return w.dropped.Load()
}

// Written returns how many changes were applied.
func (w *AsyncWriter) Written() int64 {
	return w.written.Load()
}

// Pending returns the number of queued changes.
func (w *AsyncWriter) Pending() int {
	return len(w.queue)
}

// Run applies queued changes and runs periodic garbage collection until
// ctx is cancelled. Changes still queued at cancellation are applied with
// a short timeout before Run returns.
func (w *AsyncWriter) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case o := <-w.queue:
			w.apply(ctx, o)
		case <-ticker.C:
			err := w.store.RunGC()
			metrics.RecordStoreOperation("gc", err)
			if err != nil {
				logging.Error().Err(err).Msg("Issuance store GC failed")
			}
		}
	}
}

func (w *AsyncWriter) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		select {
		case o := <-w.queue:
			w.apply(ctx, o)
		default:
			return
		}
		if ctx.Err() != nil {
			logging.Warn().Int("pending", len(w.queue)).Msg("Store drain timed out")
			return
		}
	}
}

func (w *AsyncWriter) apply(ctx context.Context, o op) {
	if o.rec != nil {
		err := w.store.Save(ctx, *o.rec)
		metrics.RecordStoreOperation("save", err)
		if err != nil {
			logging.Error().Err(err).Str("trap_id", o.rec.Identifier.ID).Msg("Failed to persist issuance record")
			return
		}
		w.written.Add(1)
		return
	}

	err := w.store.Delete(ctx, o.forget)
	metrics.RecordStoreOperation("delete", err)
	if err != nil {
		logging.Error().Err(err).Int("count", len(o.forget)).Msg("Failed to delete issuance records")
		return
	}
	w.written.Add(1)
}
