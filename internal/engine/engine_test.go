// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/tarpit/internal/metrics"
	"github.com/tomtom215/tarpit/internal/scoring"
	"github.com/tomtom215/tarpit/internal/trap"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// recordingSink implements Sink for testing.
type recordingSink struct {
	mu     sync.Mutex
	scores []trap.ThreatScore
	hits   []trap.Observation
}

func (s *recordingSink) PublishScore(score trap.ThreatScore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores = append(s.scores, score)
}

func (s *recordingSink) PublishTrapHit(_ string, hit trap.Observation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits = append(s.hits, hit)
}

// staticLoader implements Loader for testing.
type staticLoader struct {
	recs []trap.IssuanceRecord
	err  error
}

func (l staticLoader) LoadActive(context.Context, time.Time) ([]trap.IssuanceRecord, error) {
	return l.recs, l.err
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

func newTestEngine(t *testing.T, mutate func(*Config), opts ...Option) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BloomCapacity = 10_000
	cfg.MaxSessions = 1000
	if mutate != nil {
		mutate(&cfg)
	}
	e, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return e
}

func TestNew_InvalidConfiguration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown level", func(c *Config) { c.Level = "paranoid" }},
		{"inverted thresholds", func(c *Config) { c.SuspiciousThreshold, c.BotThreshold = 0.8, 0.5 }},
		{"bot threshold above one", func(c *Config) { c.BotThreshold = 1.5 }},
		{"negative ttl override", func(c *Config) {
			c.TTLOverrides = map[trap.Class]time.Duration{trap.ClassTimeSink: -time.Minute}
		}},
		{"ttl override for unknown class", func(c *Config) {
			c.TTLOverrides = map[trap.Class]time.Duration{"teleport": time.Minute}
		}},
		{"negative default ttl", func(c *Config) { c.DefaultTTL = -time.Hour }},
		{"zero evolution floor", func(c *Config) { c.Evolution.Floor = 0 }},
		{"floor above max weight", func(c *Config) { c.MaxWeight = 0.01 }},
		{"negative max batch", func(c *Config) { c.MaxBatch = -1 }},
		{"oversized minter key", func(c *Config) { c.MinterKey = make([]byte, 65) }},
		{"invalid template", func(c *Config) {
			c.Templates = []trap.Template{{ID: "broken", PathShape: "no-slash", Class: trap.ClassResourceSink}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if _, err := New(cfg); !errors.Is(err, trap.ErrInvalidConfiguration) {
				t.Errorf("New() error = %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}

func TestGenerate_ResourceSinkBatch(t *testing.T) {
	before := testutil.ToFloat64(metrics.TrapsGenerated.WithLabelValues(string(trap.ClassResourceSink)))

	e := newTestEngine(t, func(c *Config) {
		c.Templates = []trap.Template{sinkTemplate("sink", 1.0)}
	})

	ids, err := e.Generate(context.Background(), "sess-1", 50)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(ids) != 50 {
		t.Fatalf("len(ids) = %d, want 50", len(ids))
	}

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id.ID] {
			t.Fatalf("duplicate identifier %s", id.ID)
		}
		seen[id.ID] = true

		if id.Class != trap.ClassResourceSink {
			t.Errorf("class = %s, want resource_sink", id.Class)
		}
		token, ok := e.ResolvePath(id.Path)
		if !ok || token != id.ID {
			t.Errorf("ResolvePath(%q) = %q, %v", id.Path, token, ok)
		}
		rec, err := e.Lookup(token)
		if err != nil {
			t.Fatalf("Lookup(%s) error = %v", token, err)
		}
		if rec.Identifier.Class != trap.ClassResourceSink || rec.SessionID != "sess-1" {
			t.Errorf("record = %+v", rec)
		}
	}

	after := testutil.ToFloat64(metrics.TrapsGenerated.WithLabelValues(string(trap.ClassResourceSink)))
	if after-before != 50 {
		t.Errorf("traps generated metric delta = %v, want 50", after-before)
	}
}

func TestGenerate_ClampsCount(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, func(c *Config) {
		c.MaxBatch = 10
		c.Templates = []trap.Template{sinkTemplate("sink", 1)}
	})

	ids, err := e.Generate(context.Background(), "", 1000)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(ids) != 10 {
		t.Errorf("len(ids) = %d, want clamp to 10", len(ids))
	}

	ids, err = e.Generate(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("len(ids) = %d, want clamp to 1", len(ids))
	}
}

func TestGenerate_ZeroWeightsFallBack(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, func(c *Config) {
		c.Templates = []trap.Template{sinkTemplate("dead", 0)}
	})

	ids, err := e.Generate(context.Background(), "s", 5)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	for _, id := range ids {
		if id.TemplateID == "dead" {
			t.Errorf("zero-weight template selected")
		}
		if _, ok := e.ResolvePath(id.Path); !ok {
			t.Errorf("fallback path %q does not resolve", id.Path)
		}
	}
}

func TestGenerate_ProtectionLevelTTL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level ProtectionLevel
		want  time.Duration
	}{
		{LevelPassive, 2 * time.Hour},
		{LevelModerate, time.Hour},
		{LevelAggressive, 30 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			t.Parallel()
			clock := newFakeClock()
			e := newTestEngine(t, func(c *Config) {
				c.Level = tt.level
				c.Clock = clock.Now
				c.Templates = []trap.Template{sinkTemplate("sink", 1)}
			})
			ids, err := e.Generate(context.Background(), "s", 3)
			if err != nil {
				t.Fatalf("Generate() error = %v", err)
			}
			for _, id := range ids {
				if got := id.ExpiresAt.Sub(id.IssuedAt); got != tt.want {
					t.Errorf("ttl = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestGenerate_TTLOverride(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, func(c *Config) {
		c.TTLOverrides = map[trap.Class]time.Duration{trap.ClassResourceSink: 5 * time.Minute}
		c.Templates = []trap.Template{sinkTemplate("sink", 1)}
	})
	ids, err := e.Generate(context.Background(), "s", 3)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	for _, id := range ids {
		if got := id.ExpiresAt.Sub(id.IssuedAt); got != 5*time.Minute {
			t.Errorf("ttl = %v, want 5m", got)
		}
	}
}

func TestGenerate_StealthJitter(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, func(c *Config) {
		c.Stealth = true
		c.Templates = []trap.Template{sinkTemplate("sink", 1)}
	})
	ids, err := e.Generate(context.Background(), "s", 100)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	lo := time.Duration(float64(time.Hour) * (1 - StealthJitter))
	hi := time.Duration(float64(time.Hour) * (1 + StealthJitter))
	distinct := make(map[time.Duration]bool)
	for _, id := range ids {
		ttl := id.ExpiresAt.Sub(id.IssuedAt)
		if ttl < lo-time.Second || ttl > hi+time.Second {
			t.Errorf("ttl %v outside [%v, %v]", ttl, lo, hi)
		}
		distinct[ttl] = true
		if token, ok := e.ResolvePath(id.Path); !ok || token != id.ID {
			t.Errorf("stealth path %q does not resolve", id.Path)
		}
	}
	if len(distinct) < 2 {
		t.Error("stealth produced identical lifetimes")
	}
}

func TestCatalog_CostClassScale(t *testing.T) {
	t.Parallel()

	templates := []trap.Template{
		sinkTemplate("sink", 1),
		{ID: "cpu", PathShape: "/api/{token}", Class: trap.ClassComputationChallenge, Weight: 1},
	}
	tests := []struct {
		level ProtectionLevel
		want  float64
	}{
		{LevelPassive, 0.5},
		{LevelModerate, 1},
		{LevelAggressive, 2},
	}
	for _, tt := range tests {
		e := newTestEngine(t, func(c *Config) {
			c.Level = tt.level
			c.Templates = templates
		})
		weights := make(map[string]float64)
		for _, tpl := range e.Catalog() {
			weights[tpl.ID] = tpl.Weight
		}
		if weights["sink"] != 1 || weights["cpu"] != tt.want {
			t.Errorf("%s: weights = %v, want sink=1 cpu=%v", tt.level, weights, tt.want)
		}
	}
	if templates[1].Weight != 1 {
		t.Error("configured templates were mutated")
	}
}

func TestScore_FreshSession(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)
	score := e.Score(context.Background(), "never-seen")

	if score.Classification != trap.ClassificationHuman || score.Value != 0 {
		t.Errorf("score = %+v, want human 0", score)
	}
	if score.Factors == nil || len(score.Factors) != 0 {
		t.Errorf("factors = %v, want empty non-nil map", score.Factors)
	}
}

func TestScore_NeverIssuedBurstIsBot(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		res, err := e.Observe(ctx, "crawler", trap.Observation{
			Kind:      trap.ObservationTrapHit,
			TrapID:    fmt.Sprintf("never-issued-%02d", i),
			Timestamp: start.Add(time.Duration(i) * 20 * time.Millisecond),
		})
		if err != nil {
			t.Fatalf("Observe() error = %v", err)
		}
		if res.Status != trap.ConsumptionNotIssued {
			t.Errorf("status = %s, want not_issued", res.Status)
		}
	}

	score := e.Score(ctx, "crawler")
	if score.Classification != trap.ClassificationBot || score.Value < 0.75 {
		t.Fatalf("score = %+v, want bot >= 0.75", score)
	}

	type kv struct {
		name  string
		value float64
	}
	var ranked []kv
	for name, v := range score.Factors {
		ranked = append(ranked, kv{name, v})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].value > ranked[j].value })
	if len(ranked) < 2 {
		t.Fatalf("factors = %v", score.Factors)
	}
	top := map[string]bool{ranked[0].name: true, ranked[1].name: true}
	if !top[scoring.FactorTrapEngagement] || !top[scoring.FactorTimingRegularity] {
		t.Errorf("dominant factors = %v, want trap engagement and timing regularity", ranked[:2])
	}

	sess, err := e.Session("crawler")
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if len(sess.Scores) != 1 || sess.Scores[0].Classification != trap.ClassificationBot {
		t.Errorf("score history = %+v", sess.Scores)
	}
}

func TestObserve_IdempotentConsumption(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)
	ctx := context.Background()
	ids, err := e.Generate(ctx, "alice", 1)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	hit := trap.Observation{Kind: trap.ObservationTrapHit, TrapID: ids[0].ID}

	first, err := e.Observe(ctx, "alice", hit)
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	second, err := e.Observe(ctx, "alice", hit)
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if first.Status != trap.ConsumptionFirst || second.Status != trap.ConsumptionRepeat {
		t.Errorf("statuses = %s, %s; want first, already_consumed", first.Status, second.Status)
	}
	if first.CrossSession || second.CrossSession {
		t.Error("same-session consumption flagged cross-session")
	}
}

func TestObserve_ConcurrentSingleFirst(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)
	ctx := context.Background()
	ids, err := e.Generate(ctx, "s", 1)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	const workers = 16
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		firsts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := e.Observe(ctx, fmt.Sprintf("s-%d", i%2), trap.Observation{
				Kind:   trap.ObservationTrapHit,
				TrapID: ids[0].ID,
			})
			if err != nil {
				t.Errorf("Observe() error = %v", err)
				return
			}
			if res.Status == trap.ConsumptionFirst {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if firsts != 1 {
		t.Errorf("first consumptions = %d, want 1", firsts)
	}
}

func TestObserve_CrossSessionDiffersFromSameSession(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)
	ctx := context.Background()
	ids, err := e.Generate(ctx, "alice", 2)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	// alice re-requests her own identifier.
	for i := 0; i < 2; i++ {
		if _, err := e.Observe(ctx, "alice", trap.Observation{Kind: trap.ObservationTrapHit, TrapID: ids[0].ID}); err != nil {
			t.Fatalf("Observe() error = %v", err)
		}
	}
	// mallory replays an identifier issued to alice.
	res, err := e.Observe(ctx, "mallory", trap.Observation{Kind: trap.ObservationTrapHit, TrapID: ids[1].ID})
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if !res.CrossSession {
		t.Error("replay from another session not flagged cross-session")
	}

	same := e.Score(ctx, "alice")
	cross := e.Score(ctx, "mallory")

	if same.Value <= 0 || cross.Value <= 0 {
		t.Fatalf("both sessions should raise a signal: same=%v cross=%v", same.Value, cross.Value)
	}
	if _, ok := same.Factors[scoring.FactorSameSessionReplay]; !ok {
		t.Errorf("same-session factors = %v", same.Factors)
	}
	if _, ok := same.Factors[scoring.FactorCrossSessionReplay]; ok {
		t.Errorf("same-session reuse produced cross-session factor: %v", same.Factors)
	}
	if _, ok := cross.Factors[scoring.FactorCrossSessionReplay]; !ok {
		t.Errorf("cross-session factors = %v", cross.Factors)
	}
	if _, ok := cross.Factors[scoring.FactorSameSessionReplay]; ok {
		t.Errorf("cross-session replay produced same-session factor: %v", cross.Factors)
	}
}

func TestObserve_ResolvesPath(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)
	ctx := context.Background()
	ids, err := e.Generate(ctx, "s", 1)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	res, err := e.Observe(ctx, "s", trap.Observation{
		Kind: trap.ObservationTrapHit,
		Path: ids[0].Path + "?utm_source=x",
	})
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if res.Status != trap.ConsumptionFirst {
		t.Errorf("status = %s, want first", res.Status)
	}
}

func TestObserve_Invalid(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		session string
		obs     trap.Observation
	}{
		{"empty session", "", trap.Observation{Kind: trap.ObservationNavigation}},
		{"unknown kind", "s", trap.Observation{Kind: "telepathy"}},
		{"trap hit without id", "s", trap.Observation{Kind: trap.ObservationTrapHit}},
		{"unresolvable path", "s", trap.Observation{Kind: trap.ObservationTrapHit, Path: "/about"}},
	}
	for _, tt := range tests {
		if _, err := e.Observe(ctx, tt.session, tt.obs); !errors.Is(err, trap.ErrInvalidObservation) {
			t.Errorf("%s: error = %v, want ErrInvalidObservation", tt.name, err)
		}
	}
}

func TestObserve_PublishesToSink(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	e := newTestEngine(t, nil, WithSink(sink))
	ctx := context.Background()

	ids, err := e.Generate(ctx, "s", 1)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, err := e.Observe(ctx, "s", trap.Observation{Kind: trap.ObservationTrapHit, TrapID: ids[0].ID}); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if _, err := e.Observe(ctx, "s", trap.Observation{Kind: trap.ObservationNavigation, Path: "/"}); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	e.Score(ctx, "s")
	e.Score(ctx, "unknown")

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.hits) != 1 || sink.hits[0].Consumption == nil || sink.hits[0].Consumption.Status != trap.ConsumptionFirst {
		t.Errorf("hits = %+v", sink.hits)
	}
	if len(sink.scores) != 1 || sink.scores[0].SessionID != "s" {
		t.Errorf("scores = %+v, want only the known session", sink.scores)
	}
}

func TestIngest_HighEngagementDoublesWeight(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, func(c *Config) {
		c.Templates = []trap.Template{sinkTemplate("a", 1), sinkTemplate("b", 2), sinkTemplate("c", 3)}
	})

	summary, err := e.Ingest(context.Background(), trap.AggregatedOutcomes{
		Outcomes: []trap.TemplateOutcome{{TemplateID: "a", EngagementRate: 0.9}},
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if summary.Boosted != 1 {
		t.Errorf("summary = %+v", summary)
	}

	weights := make(map[string]float64)
	for _, tpl := range e.Catalog() {
		weights[tpl.ID] = tpl.Weight
	}
	if weights["a"] != 2 {
		t.Errorf("a = %v, want 2", weights["a"])
	}
	if weights["b"] != 2 || weights["c"] != 3 || weights["b"] >= weights["c"] {
		t.Errorf("other weights changed: %v", weights)
	}
}

func TestIngest_BoostBoundedByMaxWeight(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, func(c *Config) {
		c.MaxWeight = 3
		c.Templates = []trap.Template{sinkTemplate("a", 2)}
	})
	if _, err := e.Ingest(context.Background(), trap.AggregatedOutcomes{
		Outcomes: []trap.TemplateOutcome{{TemplateID: "a", EngagementRate: 0.9}},
	}); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if w := e.Catalog()[0].Weight; w != 3 {
		t.Errorf("weight = %v, want clamp to 3", w)
	}
}

func TestIngest_DecayNeverReachesZero(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, func(c *Config) {
		c.Templates = []trap.Template{sinkTemplate("a", 1), sinkTemplate("b", 1)}
	})
	ctx := context.Background()
	for i := 0; i < 200; i++ {
		if _, err := e.Ingest(ctx, trap.AggregatedOutcomes{
			Outcomes: []trap.TemplateOutcome{{TemplateID: "a", EngagementRate: 0}},
		}); err != nil {
			t.Fatalf("Ingest() error = %v", err)
		}
	}
	for _, tpl := range e.Catalog() {
		if tpl.Weight <= 0 {
			t.Errorf("template %s weight = %v", tpl.ID, tpl.Weight)
		}
		if tpl.ID == "a" && tpl.Weight != e.cfg.Evolution.Floor {
			t.Errorf("a = %v, want floor %v", tpl.Weight, e.cfg.Evolution.Floor)
		}
	}
}

func TestEvolve_UsesOwnEngagement(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, func(c *Config) {
		c.EvolutionMinIssued = 1
		c.Templates = []trap.Template{sinkTemplate("hot", 1), sinkTemplate("cold", 1)}
	})
	ctx := context.Background()

	ids, err := e.Generate(ctx, "s", 60)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	issued := make(map[string]bool)
	for _, id := range ids {
		issued[id.TemplateID] = true
		if id.TemplateID == "hot" {
			if _, err := e.Observe(ctx, "s", trap.Observation{Kind: trap.ObservationTrapHit, TrapID: id.ID}); err != nil {
				t.Fatalf("Observe() error = %v", err)
			}
		}
	}

	summary, err := e.Evolve(ctx)
	if err != nil {
		t.Fatalf("Evolve() error = %v", err)
	}
	for _, d := range summary.Deltas {
		switch d.TemplateID {
		case "hot":
			if d.Action != trap.DeltaBoost || d.New != 2 {
				t.Errorf("hot delta = %+v", d)
			}
		case "cold":
			if d.Action != trap.DeltaDecay {
				t.Errorf("cold delta = %+v", d)
			}
		}
	}
	if issued["hot"] && summary.Boosted != 1 {
		t.Errorf("summary = %+v", summary)
	}

	// Counts are drained: a second evolution has nothing to apply.
	again, err := e.Evolve(ctx)
	if err != nil {
		t.Fatalf("Evolve() error = %v", err)
	}
	if len(again.Deltas) != 0 {
		t.Errorf("second evolve applied %d deltas", len(again.Deltas))
	}
}

func TestSweep_PurgesOnlyExpired(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	e := newTestEngine(t, func(c *Config) {
		c.Clock = clock.Now
		c.Templates = []trap.Template{sinkTemplate("sink", 1)}
		c.SessionIdleTTL = 10 * time.Minute
	})
	ctx := context.Background()

	ids, err := e.Generate(ctx, "s", 5)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, err := e.Observe(ctx, "s", trap.Observation{Kind: trap.ObservationNavigation, Path: "/"}); err != nil {
		t.Fatalf("Observe() error = %v", err)
	}

	clock.Advance(30 * time.Minute)
	res := e.Sweep(clock.Now())
	if res.Traps != 0 {
		t.Errorf("swept %d traps before expiry", res.Traps)
	}
	if res.Sessions != 1 {
		t.Errorf("swept %d idle sessions, want 1", res.Sessions)
	}
	if _, err := e.Lookup(ids[0].ID); err != nil {
		t.Errorf("Lookup() before expiry error = %v", err)
	}

	clock.Advance(31 * time.Minute)
	res = e.Sweep(clock.Now())
	if res.Traps != 5 {
		t.Errorf("swept %d traps, want 5", res.Traps)
	}
	for _, id := range ids {
		if _, err := e.Lookup(id.ID); !errors.Is(err, trap.ErrNotFound) {
			t.Errorf("Lookup(%s) error = %v, want ErrNotFound", id.ID, err)
		}
	}

	// A purged identifier is still recognized as probably issued.
	out, err := e.Observe(ctx, "late", trap.Observation{Kind: trap.ObservationTrapHit, TrapID: ids[0].ID})
	if err != nil {
		t.Fatalf("Observe() error = %v", err)
	}
	if out.Status != trap.ConsumptionExpired {
		t.Errorf("status = %s, want expired", out.Status)
	}

	stats := e.Stats()
	if stats.LiveTraps != 0 || stats.Templates != 1 || stats.Level != LevelModerate {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRestore(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	e := newTestEngine(t, func(c *Config) { c.Clock = clock.Now })
	now := clock.Now()

	live := trap.IssuanceRecord{
		Identifier: trap.Identifier{
			ID:         "live-token",
			Class:      trap.ClassTimeSink,
			TemplateID: "legacy-cgi",
			IssuedAt:   now.Add(-time.Minute),
			ExpiresAt:  now.Add(time.Hour),
		},
		SessionID: "s",
	}
	stale := live
	stale.Identifier.ID = "stale-token"
	stale.Identifier.ExpiresAt = now.Add(-time.Second)

	n, err := e.Restore(context.Background(), staticLoader{recs: []trap.IssuanceRecord{live, stale, live}})
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if n != 1 {
		t.Errorf("restored = %d, want 1", n)
	}
	if _, err := e.Lookup("live-token"); err != nil {
		t.Errorf("Lookup(live) error = %v", err)
	}
	if _, err := e.Lookup("stale-token"); !errors.Is(err, trap.ErrNotFound) {
		t.Errorf("Lookup(stale) error = %v", err)
	}

	wantErr := errors.New("disk on fire")
	if _, err := e.Restore(context.Background(), staticLoader{err: wantErr}); !errors.Is(err, wantErr) {
		t.Errorf("Restore() error = %v, want wrapped loader error", err)
	}
}

func TestSession_NotFound(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)
	if _, err := e.Session("nobody"); !errors.Is(err, trap.ErrNotFound) {
		t.Errorf("Session() error = %v, want ErrNotFound", err)
	}
}

func TestRunWithContext_StopsOnCancel(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, func(c *Config) {
		c.MaintenanceInterval = 5 * time.Millisecond
		c.EvolutionInterval = 5 * time.Millisecond
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.RunWithContext(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithContext() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunWithContext did not stop")
	}
}
