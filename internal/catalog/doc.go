// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

// Package catalog holds the weighted set of trap pattern templates.
//
// Templates are kept in insertion order and selected by weighted draw:
// the caller supplies a uniform value in [0,1) and the catalog walks the
// cumulative weights. When every weight is zero, selection falls back to a
// small built-in set so generation never silently stops.
//
// Weights change at runtime through ApplyWeightDelta and Update (driven by
// rule evolution); every change is visible to the next Select.
//
// # Shape Language
//
// PathShape and ParamShape are literal text with placeholders:
//
//	{word}     a dictionary word            (backup)
//	{slug}     two words joined by a dash   (quarterly-report)
//	{hex:N}    N lowercase hex characters   ({hex:8} -> 9f2c01ab)
//	{num:N}    N decimal digits             ({num:4} -> 0417)
//	{token}    the minted trap token (path only, at most once)
//
// ParamShape is a query-style list: "format=json&page={num:2}".
package catalog
