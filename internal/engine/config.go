// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package engine

import (
	"fmt"
	"io"
	"time"

	"github.com/tomtom215/tarpit/internal/catalog"
	"github.com/tomtom215/tarpit/internal/collector"
	"github.com/tomtom215/tarpit/internal/evolution"
	"github.com/tomtom215/tarpit/internal/generator"
	"github.com/tomtom215/tarpit/internal/ledger"
	"github.com/tomtom215/tarpit/internal/scoring"
	"github.com/tomtom215/tarpit/internal/trap"
)

// ProtectionLevel selects default TTLs, cost-class weights and thresholds.
type ProtectionLevel string

const (
	LevelPassive    ProtectionLevel = "passive"
	LevelModerate   ProtectionLevel = "moderate"
	LevelAggressive ProtectionLevel = "aggressive"
)

// StealthJitter is the TTL jitter fraction applied in stealth mode.
const StealthJitter = 0.25

// Defaults for Config.
const (
	DefaultMaintenanceInterval = time.Minute
	DefaultEvolutionWindow     = time.Hour
	DefaultEvolutionMinIssued  = 20
)

type levelPreset struct {
	ttl        time.Duration
	costScale  float64
	suspicious float64
	bot        float64
}

var presets = map[ProtectionLevel]levelPreset{
	LevelPassive:    {ttl: 2 * time.Hour, costScale: 0.5, suspicious: 0.5, bot: 0.85},
	LevelModerate:   {ttl: time.Hour, costScale: 1.0, suspicious: 0.4, bot: 0.75},
	LevelAggressive: {ttl: 30 * time.Minute, costScale: 2.0, suspicious: 0.3, bot: 0.6},
}

// Valid reports whether l is a known protection level.
func (l ProtectionLevel) Valid() bool {
	_, ok := presets[l]
	return ok
}

// costClass reports whether class imposes CPU, memory or time cost.
func costClass(class trap.Class) bool {
	switch class {
	case trap.ClassComputationChallenge, trap.ClassMemoryBloat, trap.ClassTimeSink:
		return true
	}
	return false
}

// Config configures an Engine. Zero values take the protection level preset
// or the component default.
type Config struct {
	Level   ProtectionLevel
	Stealth bool

	// DefaultTTL overrides the level's base TTL; TTLOverrides override it
	// per class.
	DefaultTTL   time.Duration
	TTLOverrides map[trap.Class]time.Duration

	SuspiciousThreshold float64
	BotThreshold        float64

	MaxBatch  int
	MaxWeight float64

	// Templates replaces catalog.DefaultTemplates().
	Templates []trap.Template

	Evolution          evolution.Config
	EvolutionInterval  time.Duration // 0 disables timed evolution
	EvolutionWindow    time.Duration
	EvolutionMinIssued int64

	MaintenanceInterval time.Duration

	MaxSessions    int
	MaxEvents      int
	SessionIdleTTL time.Duration
	BloomCapacity  int

	// MinterKey keys the token MAC. Empty draws a random per-process key;
	// set it when issuance is persisted across restarts.
	MinterKey []byte

	Clock func() time.Time
	Rand  io.Reader
}

// DefaultConfig returns a moderate, non-stealth configuration.
func DefaultConfig() Config {
	return Config{
		Level:               LevelModerate,
		MaxBatch:            generator.DefaultMaxBatch,
		MaxWeight:           catalog.DefaultMaxWeight,
		Evolution:           evolution.DefaultConfig(),
		EvolutionWindow:     DefaultEvolutionWindow,
		EvolutionMinIssued:  DefaultEvolutionMinIssued,
		MaintenanceInterval: DefaultMaintenanceInterval,
		MaxSessions:         collector.DefaultMaxSessions,
		MaxEvents:           collector.DefaultMaxEvents,
		SessionIdleTTL:      collector.DefaultIdleTTL,
		BloomCapacity:       ledger.DefaultBloomCapacity,
	}
}

// Validate checks the configuration. Every failure wraps
// trap.ErrInvalidConfiguration.
func (c *Config) Validate() error {
	if !c.Level.Valid() {
		return fmt.Errorf("unknown protection level %q: %w", c.Level, trap.ErrInvalidConfiguration)
	}
	if err := c.ttlPolicy().Validate(); err != nil {
		return err
	}
	if err := c.scoringConfig().Validate(); err != nil {
		return err
	}
	if err := c.Evolution.Validate(); err != nil {
		return err
	}
	switch {
	case c.MaxBatch < 0:
		return fmt.Errorf("max batch must not be negative: %w", trap.ErrInvalidConfiguration)
	case c.MaxWeight < 0:
		return fmt.Errorf("max weight must not be negative: %w", trap.ErrInvalidConfiguration)
	case c.MaxWeight > 0 && c.Evolution.Floor > c.MaxWeight:
		return fmt.Errorf("evolution floor %v exceeds max weight %v: %w",
			c.Evolution.Floor, c.MaxWeight, trap.ErrInvalidConfiguration)
	case c.EvolutionInterval < 0 || c.EvolutionWindow < 0 || c.MaintenanceInterval < 0:
		return fmt.Errorf("intervals must not be negative: %w", trap.ErrInvalidConfiguration)
	case c.SessionIdleTTL < 0:
		return fmt.Errorf("session idle ttl must not be negative: %w", trap.ErrInvalidConfiguration)
	case len(c.MinterKey) > generator.MaxKeySize:
		return fmt.Errorf("minter key longer than %d bytes: %w", generator.MaxKeySize, trap.ErrInvalidConfiguration)
	}
	return nil
}

func (c *Config) preset() levelPreset {
	return presets[c.Level]
}

func (c *Config) ttlPolicy() generator.TTLPolicy {
	p := generator.TTLPolicy{
		PerClass: make(map[trap.Class]time.Duration, len(c.TTLOverrides)+1),
		Default:  c.preset().ttl,
	}
	if c.DefaultTTL != 0 {
		p.Default = c.DefaultTTL
	}
	// Chains need time for every step to be followed.
	p.PerClass[trap.ClassChainStep] = 2 * p.Default
	for class, ttl := range c.TTLOverrides {
		p.PerClass[class] = ttl
	}
	if c.Stealth {
		p.Jitter = StealthJitter
	}
	return p
}

func (c *Config) scoringConfig() scoring.Config {
	sc := scoring.Config{
		SuspiciousThreshold: c.preset().suspicious,
		BotThreshold:        c.preset().bot,
		Clock:               c.Clock,
	}
	if c.SuspiciousThreshold != 0 {
		sc.SuspiciousThreshold = c.SuspiciousThreshold
	}
	if c.BotThreshold != 0 {
		sc.BotThreshold = c.BotThreshold
	}
	return sc
}

// templates returns the configured templates with the level's cost-class
// weight scale applied.
func (c *Config) templates() []trap.Template {
	src := c.Templates
	if src == nil {
		src = catalog.DefaultTemplates()
	}
	scale := c.preset().costScale
	out := make([]trap.Template, len(src))
	for i, t := range src {
		if costClass(t.Class) {
			t.Weight *= scale
		}
		out[i] = t
	}
	return out
}
