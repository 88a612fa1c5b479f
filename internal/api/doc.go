// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

/*
Package api exposes the trap engine over HTTP using the chi router.

Routes:

	POST /api/v1/traps                        generate a batch of trap identifiers
	GET  /api/v1/traps/{id}                   issuance record of one identifier
	GET  /api/v1/resolve?path=                extract a trap token from a requested path
	GET  /api/v1/sessions/{id}                session events and score history
	POST /api/v1/sessions/{id}/observations   forward one observation
	GET  /api/v1/sessions/{id}/score          compute a threat score
	POST /api/v1/intelligence                 ingest aggregated engagement
	POST /api/v1/evolve                       evolve from locally tracked engagement
	GET  /api/v1/catalog                      templates and current weights
	GET  /api/v1/stats                        engine summary
	GET  /api/v1/health                       liveness plus dependency checks
	GET  /metrics                             Prometheus exposition

Every JSON response uses the APIResponse envelope. When the catalog has no
usable template left, trap generation answers 202 with an empty list and
degraded set, and the host continues in passive monitoring mode.

Requests are rate limited per client IP with go-chi/httprate and bodies are
validated with go-playground/validator before they reach the engine.
*/
package api
