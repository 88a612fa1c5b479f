// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package trap

import "errors"

// Sentinel errors returned by engine components. Callers compare with errors.Is;
// components wrap them with context using fmt.Errorf("...: %w", err).
var (
	// ErrNotFound reports an unknown identifier, session or template.
	// Callers treat it as "no information", never as a failure.
	ErrNotFound = errors.New("not found")

	// ErrGenerationExhausted reports that no template could be selected:
	// every weight is zero and no fallback set is available.
	ErrGenerationExhausted = errors.New("generation exhausted: no usable templates")

	// ErrInvalidConfiguration reports out-of-range settings at initialization.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrDuplicate reports an identifier that is already registered.
	ErrDuplicate = errors.New("duplicate identifier")

	// ErrInvalidObservation reports an observation that cannot be recorded
	// (missing session id, unknown kind, trap hit without an identifier).
	ErrInvalidObservation = errors.New("invalid observation")
)
