// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

// Package validation wraps a singleton go-playground/validator instance.
//
// It is used for configuration sections and HTTP request bodies. Field names
// in messages come from json tags (falling back to koanf tags), so errors
// refer to the names a caller actually wrote.
//
// Custom tags:
//
//	trapclass   a known trap class (resource_sink, chain_step, ...)
//	sessionid   1-128 characters of [A-Za-z0-9._:-]
//	loglevel    a level name accepted by the logging package
//
// Example:
//
//	type generateRequest struct {
//	    SessionID string `json:"session_id" validate:"omitempty,sessionid"`
//	    Count     int    `json:"count" validate:"gte=1"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    ...
//	}
package validation
