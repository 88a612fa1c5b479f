// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tarpit/internal/engine"
	"github.com/tomtom215/tarpit/internal/trap"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func sinkTemplate(id string, weight float64) trap.Template {
	return trap.Template{
		ID:          id,
		PathShape:   "/files/" + id + "/{slug}/{token}.zip",
		ContentType: "application/zip",
		Class:       trap.ClassResourceSink,
		Weight:      weight,
	}
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.BloomCapacity = 10_000
	cfg.MaxSessions = 100
	cfg.Templates = []trap.Template{sinkTemplate("a", 1), sinkTemplate("b", 2)}
	e, err := engine.New(cfg)
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	return e
}

func newTestServer(t *testing.T, eng Engine, hcfg HandlerConfig, mcfg *ChiMiddlewareConfig) http.Handler {
	t.Helper()
	if mcfg == nil {
		mcfg = DefaultChiMiddlewareConfig()
		mcfg.RateLimitDisabled = true
	}
	return NewRouter(NewHandler(eng, hcfg), NewChiMiddleware(mcfg)).SetupChi()
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s: %v\n%s", method, target, err, rec.Body.String())
		}
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("decode data: %v\n%s", err, env.Data)
	}
}

func generate(t *testing.T, h http.Handler, sessionID string, count int) []trap.Identifier {
	t.Helper()
	body, _ := json.Marshal(GenerateRequest{SessionID: sessionID, Count: count})
	rec, env := do(t, h, http.MethodPost, "/api/v1/traps", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("generate status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp GenerateResponse
	decodeData(t, env, &resp)
	return resp.Traps
}

func TestGenerateTraps(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, newTestEngine(t), HandlerConfig{}, nil)

	rec, env := do(t, h, http.MethodPost, "/api/v1/traps", `{"session_id":"sess-1","count":5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if !env.Success || env.Meta == nil || env.Meta.RequestID == "" {
		t.Errorf("envelope = %+v", env)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}

	var resp GenerateResponse
	decodeData(t, env, &resp)
	if len(resp.Traps) != 5 || resp.Degraded {
		t.Fatalf("response = %+v", resp)
	}
	batch := resp.Traps[0].BatchID
	for i, id := range resp.Traps {
		if id.BatchID != batch || id.Sequence != i+1 {
			t.Errorf("trap %d batch/sequence = %s/%d", i, id.BatchID, id.Sequence)
		}
	}
}

func TestGenerateTrapsValidation(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, newTestEngine(t), HandlerConfig{}, nil)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"bad session id", `{"session_id":"bad id","count":1}`, "VALIDATION_ERROR"},
		{"negative count", `{"count":-1}`, "VALIDATION_ERROR"},
		{"unknown field", `{"count":1,"colour":"red"}`, ErrCodeBadRequest},
		{"malformed", `{"count":`, ErrCodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, http.MethodPost, "/api/v1/traps", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if env.Success || env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("error = %+v, want code %s", env.Error, tt.code)
			}
		})
	}
}

// exhaustedEngine fails every generation with ErrGenerationExhausted.
type exhaustedEngine struct {
	*engine.Engine
}

func (exhaustedEngine) Generate(context.Context, string, int) ([]trap.Identifier, error) {
	return nil, trap.ErrGenerationExhausted
}

func TestGenerateTrapsDegraded(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, exhaustedEngine{newTestEngine(t)}, HandlerConfig{}, nil)

	rec, env := do(t, h, http.MethodPost, "/api/v1/traps", `{"count":3}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if !strings.Contains(string(env.Data), `"traps":[]`) {
		t.Errorf("data = %s, want empty trap list", env.Data)
	}
	var resp GenerateResponse
	decodeData(t, env, &resp)
	if !resp.Degraded {
		t.Error("degraded not set")
	}
}

func TestObserveAndScore(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, newTestEngine(t), HandlerConfig{}, nil)

	traps := generate(t, h, "sess-1", 3)
	hit := `{"kind":"trap_hit","trap_id":"` + traps[0].ID + `"}`

	statuses := []trap.ConsumptionStatus{trap.ConsumptionFirst, trap.ConsumptionRepeat}
	for i, want := range statuses {
		rec, env := do(t, h, http.MethodPost, "/api/v1/sessions/sess-1/observations", hit)
		if rec.Code != http.StatusOK {
			t.Fatalf("observe %d status = %d: %s", i, rec.Code, rec.Body.String())
		}
		var res trap.ObserveResult
		decodeData(t, env, &res)
		if res.Status != want || res.EventCount != i+1 {
			t.Errorf("observe %d = %+v, want status %s", i, res, want)
		}
	}

	rec, env := do(t, h, http.MethodPost, "/api/v1/sessions/sess-2/observations", hit)
	if rec.Code != http.StatusOK {
		t.Fatalf("cross-session status = %d", rec.Code)
	}
	var cross trap.ObserveResult
	decodeData(t, env, &cross)
	if !cross.CrossSession {
		t.Errorf("cross-session hit = %+v", cross)
	}

	rec, env = do(t, h, http.MethodGet, "/api/v1/sessions/sess-1/score", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("score status = %d", rec.Code)
	}
	var score trap.ThreatScore
	decodeData(t, env, &score)
	if score.SessionID != "sess-1" || score.Value <= 0 || score.Factors == nil {
		t.Errorf("score = %+v", score)
	}

	rec, env = do(t, h, http.MethodGet, "/api/v1/sessions/sess-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("session status = %d", rec.Code)
	}
	var sess trap.Session
	decodeData(t, env, &sess)
	if len(sess.Events) != 2 || len(sess.Scores) != 1 {
		t.Errorf("session events=%d scores=%d, want 2 and 1", len(sess.Events), len(sess.Scores))
	}
}

func TestObserveErrors(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, newTestEngine(t), HandlerConfig{}, nil)

	tests := []struct {
		name   string
		target string
		body   string
		status int
		code   string
	}{
		{"unknown kind", "/api/v1/sessions/s1/observations", `{"kind":"teleport"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"negative delta", "/api/v1/sessions/s1/observations", `{"kind":"timing","delta_ms":-5}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"delta beyond a day", "/api/v1/sessions/s1/observations", `{"kind":"timing","delta_ms":1e13}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"hit without token", "/api/v1/sessions/s1/observations", `{"kind":"trap_hit"}`, http.StatusBadRequest, ErrCodeInvalidObservation},
		{"bad session id", "/api/v1/sessions/bad%20id/observations", `{"kind":"timing"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, http.MethodPost, tt.target, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			if env.Error == nil || env.Error.Code != tt.code {
				t.Errorf("error = %+v, want code %s", env.Error, tt.code)
			}
		})
	}
}

func TestObserveTrapHitByPath(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, newTestEngine(t), HandlerConfig{}, nil)

	traps := generate(t, h, "sess-1", 1)
	body, _ := json.Marshal(ObservationRequest{Kind: "trap_hit", Path: traps[0].Path})
	rec, env := do(t, h, http.MethodPost, "/api/v1/sessions/sess-1/observations", string(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var res trap.ObserveResult
	decodeData(t, env, &res)
	if res.Status != trap.ConsumptionFirst {
		t.Errorf("status = %s, want first", res.Status)
	}
}

func TestResolveAndLookup(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, newTestEngine(t), HandlerConfig{}, nil)
	id := generate(t, h, "sess-1", 1)[0]

	rec, env := do(t, h, http.MethodGet, "/api/v1/resolve?path="+id.Path, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve status = %d", rec.Code)
	}
	var res ResolveResponse
	decodeData(t, env, &res)
	if !res.Matched || res.TrapID != id.ID {
		t.Errorf("resolve = %+v, want %s", res, id.ID)
	}

	_, env = do(t, h, http.MethodGet, "/api/v1/resolve?path=/robots.txt", "")
	res = ResolveResponse{}
	decodeData(t, env, &res)
	if res.Matched {
		t.Errorf("plain path resolved: %+v", res)
	}

	rec, _ = do(t, h, http.MethodGet, "/api/v1/resolve", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing path status = %d, want 400", rec.Code)
	}

	rec, env = do(t, h, http.MethodGet, "/api/v1/traps/"+id.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup status = %d", rec.Code)
	}
	var record trap.IssuanceRecord
	decodeData(t, env, &record)
	if record.SessionID != "sess-1" || record.Consumed {
		t.Errorf("record = %+v", record)
	}

	rec, env = do(t, h, http.MethodGet, "/api/v1/traps/nope", "")
	if rec.Code != http.StatusNotFound || env.Error.Code != ErrCodeNotFound {
		t.Errorf("unknown lookup = %d %+v", rec.Code, env.Error)
	}
}

func TestSessionNotFound(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, newTestEngine(t), HandlerConfig{}, nil)

	rec, env := do(t, h, http.MethodGet, "/api/v1/sessions/ghost", "")
	if rec.Code != http.StatusNotFound || env.Error == nil || env.Error.Code != ErrCodeNotFound {
		t.Errorf("status = %d error = %+v", rec.Code, env.Error)
	}

	// Scoring an unknown session never fails.
	rec, env = do(t, h, http.MethodGet, "/api/v1/sessions/ghost/score", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("score status = %d", rec.Code)
	}
	var score trap.ThreatScore
	decodeData(t, env, &score)
	if score.Value != 0 || score.Classification != trap.ClassificationHuman {
		t.Errorf("score = %+v", score)
	}
}

func TestIntelligence(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, newTestEngine(t), HandlerConfig{}, nil)

	rec, env := do(t, h, http.MethodPost, "/api/v1/intelligence",
		`{"source":"fleet","outcomes":[{"template_id":"a","engagement_rate":0.9},{"template_id":"zzz","engagement_rate":0.5}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var summary trap.DeltaSummary
	decodeData(t, env, &summary)
	if summary.Boosted != 1 || summary.Skipped != 1 {
		t.Errorf("summary = %+v", summary)
	}

	_, env = do(t, h, http.MethodGet, "/api/v1/catalog", "")
	var templates []trap.Template
	decodeData(t, env, &templates)
	weights := make(map[string]float64)
	for _, tpl := range templates {
		weights[tpl.ID] = tpl.Weight
	}
	if weights["a"] <= 1 || weights["b"] != 2 {
		t.Errorf("weights = %v", weights)
	}

	rec, env = do(t, h, http.MethodPost, "/api/v1/intelligence",
		`{"outcomes":[{"template_id":"a","engagement_rate":2}]}`)
	if rec.Code != http.StatusBadRequest || env.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("out of range rate = %d %+v", rec.Code, env.Error)
	}
}

func TestEvolveWithoutEngagement(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, newTestEngine(t), HandlerConfig{}, nil)

	rec, env := do(t, h, http.MethodPost, "/api/v1/evolve", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var summary trap.DeltaSummary
	decodeData(t, env, &summary)
	if len(summary.Deltas) != 0 {
		t.Errorf("summary = %+v, want no deltas", summary)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, newTestEngine(t), HandlerConfig{}, nil)
	generate(t, h, "sess-1", 4)

	_, env := do(t, h, http.MethodGet, "/api/v1/stats", "")
	var stats engine.Stats
	decodeData(t, env, &stats)
	if stats.LiveTraps != 4 || stats.Templates != 2 || stats.Level != engine.LevelModerate {
		t.Errorf("stats = %+v", stats)
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		checks map[string]HealthCheck
		status int
		want   string
	}{
		{"no checks", nil, http.StatusOK, "healthy"},
		{"passing", map[string]HealthCheck{
			"store": func(context.Context) error { return nil },
		}, http.StatusOK, "healthy"},
		{"failing", map[string]HealthCheck{
			"store":  func(context.Context) error { return nil },
			"export": func(context.Context) error { return errors.New("circuit open") },
		}, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newTestServer(t, newTestEngine(t), HandlerConfig{Version: "test", Checks: tt.checks}, nil)
			rec, env := do(t, h, http.MethodGet, "/api/v1/health", "")
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			var resp HealthResponse
			decodeData(t, env, &resp)
			if resp.Status != tt.want || resp.Version != "test" {
				t.Errorf("health = %+v", resp)
			}
			if tt.want == "degraded" && resp.Components["export"] != "circuit open" {
				t.Errorf("components = %v", resp.Components)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()
	mcfg := DefaultChiMiddlewareConfig()
	mcfg.RateLimitRequests = 2
	h := newTestServer(t, newTestEngine(t), HandlerConfig{}, mcfg)

	for i := 0; i < 2; i++ {
		if rec, _ := do(t, h, http.MethodGet, "/api/v1/stats", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec, env := do(t, h, http.MethodGet, "/api/v1/stats", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if env.Error == nil || env.Error.Code != ErrCodeTooManyRequests {
		t.Errorf("error = %+v", env.Error)
	}
}

func TestBodyTooLarge(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, newTestEngine(t), HandlerConfig{MaxBodyBytes: 16}, nil)

	rec, env := do(t, h, http.MethodPost, "/api/v1/traps", `{"session_id":"a-rather-long-session","count":1}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	if env.Error == nil || env.Error.Code != ErrCodeRequestTooLarge {
		t.Errorf("error = %+v", env.Error)
	}
}

func TestRoutingMisc(t *testing.T) {
	t.Parallel()
	h := newTestServer(t, newTestEngine(t), HandlerConfig{}, nil)

	rec, env := do(t, h, http.MethodGet, "/api/v1/nothing-here", "")
	if rec.Code != http.StatusNotFound || env.Error == nil {
		t.Errorf("unknown route = %d %+v", rec.Code, env.Error)
	}

	rec, _ = do(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "tarpit_") {
		t.Errorf("metrics status = %d", rec.Code)
	}
}

func TestSanitizeLogValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"/api/v1/traps", "/api/v1/traps"},
		{"line\nbreak", `line\x0abreak`},
		{"tab\there", `tab\x09here`},
	}
	for _, tt := range tests {
		if got := sanitizeLogValue(tt.in); got != tt.want {
			t.Errorf("sanitizeLogValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
