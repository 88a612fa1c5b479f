// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

// Package generator turns catalog templates into concrete trap identifiers.
//
// For each item of a batch the generator draws a template from the catalog,
// fills the template's shapes from crypto/rand, mints a token, computes the
// expiry from the per-class TTL policy and registers the identifier with the
// issuance ledger before the batch is returned. Chain-step templates expand
// into a whole chain that shares one chain id.
//
// # Tokens
//
// A token is 16 random bytes followed by a 5-byte keyed BLAKE2b tag, encoded
// as unpadded lowercase base32 (34 characters). The tag lets a host reject
// noise cheaply with Minter.Verify before touching the ledger; it is not a
// security boundary.
package generator
