// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/tarpit/internal/middleware"
)

// Router wires handlers and middleware into a chi mux.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
	slowRequest   time.Duration
}

// NewRouter creates a Router. A nil mw uses DefaultChiMiddlewareConfig.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil)
	}
	return &Router{
		handler:       handler,
		chiMiddleware: mw,
		slowRequest:   middleware.DefaultSlowRequestThreshold,
	}
}

// SetupChi builds the HTTP handler.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(middleware.AccessLog(router.slowRequest))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Route not found", nil)
	})

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitCustom(1000, time.Minute))
		r.Use(APISecurityHeaders())
		r.Get("/", router.handler.Health)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)

		r.Post("/traps", router.handler.GenerateTraps)
		r.Get("/traps/{id}", router.handler.Lookup)
		r.Get("/resolve", router.handler.Resolve)

		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", router.handler.Session)
			r.Post("/observations", router.handler.Observe)
			r.Get("/score", router.handler.Score)
		})

		r.Get("/catalog", router.handler.Catalog)
		r.Get("/stats", router.handler.Stats)

		// Evolution rewrites weights for every host, so it gets a tighter budget.
		r.With(router.chiMiddleware.RateLimitCustom(30, time.Minute)).Post("/intelligence", router.handler.Intelligence)
		r.With(router.chiMiddleware.RateLimitCustom(30, time.Minute)).Post("/evolve", router.handler.Evolve)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
