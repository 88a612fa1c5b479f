// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

/*
Package store persists the issuance ledger in BadgerDB so issued traps
survive a restart.

BadgerStore keeps one JSON-encoded trap.IssuanceRecord per key with a
Badger TTL equal to the identifier's remaining lifetime. AsyncWriter sits
between the ledger and the store: the ledger hands it every registration,
consumption and eviction without blocking, and a single goroutine applies
them in order.

On start the engine reloads unexpired records with LoadActive. Tokens are
MACed, so the minter key must be stable across restarts for restored
records to resolve.

Example:

	st, err := store.Open(store.Config{Path: "/data/tarpit"})
	if err != nil {
	    return err
	}
	defer st.Close()

	w := store.NewAsyncWriter(st, store.WriterConfig{})
	eng, err := engine.New(cfg, engine.WithPersister(w))
	n, err := eng.Restore(ctx, st)
	go w.Run(ctx)
*/
package store
