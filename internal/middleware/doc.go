// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

/*
Package middleware provides HTTP middleware shared by the API router.

  - RequestID: assigns or propagates X-Request-ID and seeds the logging
    context with request and correlation ids
  - PrometheusMetrics: request count, latency histogram and in-flight gauge,
    labelled by chi route pattern
  - AccessLog: one structured zerolog line per request, escalated for slow
    requests and server errors

All middleware has the chi signature func(http.Handler) http.Handler.

Example:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(time.Second))
	r.Use(middleware.PrometheusMetrics)
*/
package middleware
