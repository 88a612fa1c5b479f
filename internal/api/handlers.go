// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/tarpit/internal/engine"
	"github.com/tomtom215/tarpit/internal/logging"
	"github.com/tomtom215/tarpit/internal/trap"
)

// DefaultMaxBodyBytes bounds request bodies when HandlerConfig leaves it 0.
const DefaultMaxBodyBytes = 1 << 20

// Engine is the subset of *engine.Engine served over HTTP.
type Engine interface {
	Generate(ctx context.Context, sessionID string, count int) ([]trap.Identifier, error)
	Observe(ctx context.Context, sessionID string, obs trap.Observation) (trap.ObserveResult, error)
	Score(ctx context.Context, sessionID string) trap.ThreatScore
	Ingest(ctx context.Context, in trap.AggregatedOutcomes) (trap.DeltaSummary, error)
	Evolve(ctx context.Context) (trap.DeltaSummary, error)
	ResolvePath(path string) (string, bool)
	Lookup(id string) (trap.IssuanceRecord, error)
	Session(sessionID string) (trap.Session, error)
	Catalog() []trap.Template
	Stats() engine.Stats
}

// HealthCheck reports the health of one dependency. A nil error is healthy.
type HealthCheck func(ctx context.Context) error

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	MaxBodyBytes int64
	Version      string

	// Checks are run by the health endpoint, keyed by component name.
	Checks map[string]HealthCheck
}

// Handler serves the engine operations.
type Handler struct {
	engine    Engine
	cfg       HandlerConfig
	startTime time.Time
}

// NewHandler creates a Handler for eng.
func NewHandler(eng Engine, cfg HandlerConfig) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return &Handler{
		engine:    eng,
		cfg:       cfg,
		startTime: time.Now(),
	}
}

// GenerateRequest asks for a batch of trap identifiers. An empty session id
// requests an unattributed batch.
type GenerateRequest struct {
	SessionID string `json:"session_id" validate:"omitempty,sessionid"`
	Count     int    `json:"count" validate:"gte=0"`
}

// GenerateResponse carries a generated batch. Degraded is set when no
// usable template remains and the host should fall back to passive
// monitoring.
type GenerateResponse struct {
	Traps    []trap.Identifier `json:"traps"`
	Degraded bool              `json:"degraded,omitempty"`
}

// ObservationRequest is one observation forwarded by the host.
type ObservationRequest struct {
	Kind      string     `json:"kind" validate:"required,oneof=trap_hit timing environment navigation"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	TrapID    string     `json:"trap_id,omitempty" validate:"omitempty,max=256"`
	// DeltaMs is capped at one day.
	DeltaMs   float64    `json:"delta_ms,omitempty" validate:"gte=0,lte=86400000"`
	Flags     []string   `json:"flags,omitempty" validate:"max=64,dive,max=128"`
	Path      string     `json:"path,omitempty" validate:"omitempty,max=2048"`
}

func (o *ObservationRequest) observation() trap.Observation {
	obs := trap.Observation{
		Kind:   trap.ObservationKind(o.Kind),
		TrapID: o.TrapID,
		Delta:  time.Duration(o.DeltaMs * float64(time.Millisecond)),
		Flags:  o.Flags,
		Path:   o.Path,
	}
	if o.Timestamp != nil {
		obs.Timestamp = o.Timestamp.UTC()
	}
	return obs
}

// ResolveResponse reports whether a requested path carries a trap token.
type ResolveResponse struct {
	TrapID  string `json:"trap_id,omitempty"`
	Matched bool   `json:"matched"`
}

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	Uptime     float64           `json:"uptime_seconds"`
	Components map[string]string `json:"components,omitempty"`
	Engine     engine.Stats      `json:"engine"`
}

type sessionParam struct {
	ID string `json:"session_id" validate:"sessionid"`
}

// sessionID reads and validates the {id} URL parameter.
func sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	p := sessionParam{ID: chi.URLParam(r, "id")}
	if !validateRequest(w, r, &p) {
		return "", false
	}
	return p.ID, true
}

// decodeJSON decodes a bounded request body into v.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes))
	if err != nil {
		respondEngineError(w, r, err)
		return false
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// GenerateTraps handles POST /api/v1/traps.
func (h *Handler) GenerateTraps(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if !h.decodeJSON(w, r, &req) || !validateRequest(w, r, &req) {
		return
	}

	ids, err := h.engine.Generate(r.Context(), req.SessionID, req.Count)
	if errors.Is(err, trap.ErrGenerationExhausted) {
		respondJSON(w, r, http.StatusAccepted, GenerateResponse{
			Traps:    []trap.Identifier{},
			Degraded: true,
		})
		return
	}
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, GenerateResponse{Traps: ids})
}

// Observe handles POST /api/v1/sessions/{id}/observations.
func (h *Handler) Observe(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req ObservationRequest
	if !h.decodeJSON(w, r, &req) || !validateRequest(w, r, &req) {
		return
	}

	res, err := h.engine.Observe(r.Context(), id, req.observation())
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, res)
}

// Score handles GET /api/v1/sessions/{id}/score.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	respondJSON(w, r, http.StatusOK, h.engine.Score(r.Context(), id))
}

// Session handles GET /api/v1/sessions/{id}.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	s, err := h.engine.Session(id)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, s)
}

// Intelligence handles POST /api/v1/intelligence.
func (h *Handler) Intelligence(w http.ResponseWriter, r *http.Request) {
	var req trap.AggregatedOutcomes
	if !h.decodeJSON(w, r, &req) || !validateRequest(w, r, &req) {
		return
	}

	summary, err := h.engine.Ingest(r.Context(), req)
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, summary)
}

// Evolve handles POST /api/v1/evolve.
func (h *Handler) Evolve(w http.ResponseWriter, r *http.Request) {
	summary, err := h.engine.Evolve(r.Context())
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, summary)
}

// Catalog handles GET /api/v1/catalog.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, h.engine.Catalog())
}

// Resolve handles GET /api/v1/resolve?path=.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		respondError(w, r, http.StatusBadRequest, ErrCodeBadRequest, "path query parameter is required", nil)
		return
	}
	token, ok := h.engine.ResolvePath(path)
	respondJSON(w, r, http.StatusOK, ResolveResponse{TrapID: token, Matched: ok})
}

// Lookup handles GET /api/v1/traps/{id}.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	rec, err := h.engine.Lookup(chi.URLParam(r, "id"))
	if err != nil {
		respondEngineError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, rec)
}

// Stats handles GET /api/v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, h.engine.Stats())
}

// Health handles GET /api/v1/health. It answers 503 when any dependency
// check fails.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:  "healthy",
		Version: h.cfg.Version,
		Uptime:  time.Since(h.startTime).Seconds(),
		Engine:  h.engine.Stats(),
	}
	if len(h.cfg.Checks) > 0 {
		resp.Components = make(map[string]string, len(h.cfg.Checks))
	}
	for name, check := range h.cfg.Checks {
		if err := check(ctx); err != nil {
			resp.Status = "degraded"
			resp.Components[name] = err.Error()
			logging.Ctx(r.Context()).Warn().Err(err).Str("component", name).Msg("health check failed")
			continue
		}
		resp.Components[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, r, status, resp)
}
