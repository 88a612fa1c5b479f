// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package main

import (
	"context"

	"github.com/tomtom215/tarpit/internal/config"
	"github.com/tomtom215/tarpit/internal/logging"
	"github.com/tomtom215/tarpit/internal/store"
)

// storeComponents holds the issuance store and its asynchronous writer.
type storeComponents struct {
	store  *store.BadgerStore
	writer *store.AsyncWriter
}

// initStore opens the issuance store when persistence is enabled.
// It returns nil, nil when disabled.
func initStore(cfg *config.Config) (*storeComponents, error) {
	if !cfg.Store.Enabled {
		logging.Info().Msg("Issuance persistence disabled, ledger is memory only")
		return nil, nil
	}

	st, err := store.Open(store.Config{
		Path:           cfg.Store.Path,
		InMemory:       cfg.Store.InMemory,
		SyncWrites:     cfg.Store.SyncWrites,
		Compression:    true,
		GCDiscardRatio: cfg.Store.GCDiscardRatio,
	})
	if err != nil {
		return nil, err
	}

	writer := store.NewAsyncWriter(st, store.WriterConfig{
		QueueSize:  cfg.Store.QueueSize,
		GCInterval: cfg.Store.GCInterval,
	})

	logging.Info().
		Str("path", cfg.Store.Path).
		Bool("in_memory", cfg.Store.InMemory).
		Int("queue_size", cfg.Store.QueueSize).
		Msg("Issuance store opened")

	return &storeComponents{store: st, writer: writer}, nil
}

func (c *storeComponents) healthCheck(context.Context) error {
	_, err := c.store.Count()
	return err
}

func (c *storeComponents) close() {
	logging.Info().
		Int64("written", c.writer.Written()).
		Int64("dropped", c.writer.Dropped()).
		Msg("Closing issuance store")
	if err := c.store.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing issuance store")
	}
}
