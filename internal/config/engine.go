// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package config

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/tarpit/internal/engine"
	"github.com/tomtom215/tarpit/internal/evolution"
	"github.com/tomtom215/tarpit/internal/trap"
)

// BuildEngineConfig converts the engine and evolution sections into an
// engine.Config, reading the templates file when one is set.
func (c *Config) BuildEngineConfig() (engine.Config, error) {
	e := c.Engine
	out := engine.Config{
		Level:               engine.ProtectionLevel(e.ProtectionLevel),
		Stealth:             e.Stealth,
		DefaultTTL:          e.DefaultTTL,
		SuspiciousThreshold: e.SuspiciousThreshold,
		BotThreshold:        e.BotThreshold,
		MaxBatch:            e.MaxBatch,
		MaxWeight:           e.MaxWeight,
		Evolution: evolution.Config{
			BoostThreshold: c.Evolution.BoostThreshold,
			BoostFactor:    c.Evolution.BoostFactor,
			DecayThreshold: c.Evolution.DecayThreshold,
			DecayFactor:    c.Evolution.DecayFactor,
			Floor:          c.Evolution.Floor,
		},
		EvolutionInterval:   c.Evolution.Interval,
		EvolutionWindow:     c.Evolution.Window,
		EvolutionMinIssued:  c.Evolution.MinIssued,
		MaintenanceInterval: e.MaintenanceInterval,
		MaxSessions:         e.MaxSessions,
		MaxEvents:           e.MaxEventsPerSession,
		SessionIdleTTL:      e.SessionIdleTTL,
		BloomCapacity:       e.BloomCapacity,
	}

	if len(e.TTLOverrides) > 0 {
		out.TTLOverrides = make(map[trap.Class]time.Duration, len(e.TTLOverrides))
		for name, ttl := range e.TTLOverrides {
			class, err := trap.ParseClass(name)
			if err != nil {
				return engine.Config{}, fmt.Errorf("engine.ttl_overrides: %w", err)
			}
			out.TTLOverrides[class] = ttl
		}
	}

	if e.MinterKey != "" {
		key, err := hex.DecodeString(e.MinterKey)
		if err != nil {
			return engine.Config{}, fmt.Errorf("engine.minter_key: %v: %w", err, trap.ErrInvalidConfiguration)
		}
		out.MinterKey = key
	}

	if e.TemplatesFile != "" {
		templates, err := LoadTemplates(e.TemplatesFile)
		if err != nil {
			return engine.Config{}, err
		}
		out.Templates = templates
	}

	return out, nil
}

// LoadTemplates reads a YAML file with a top-level templates list:
//
//	templates:
//	  - id: backup-archive
//	    path_shape: /backup/{slug}/{token}.tar.gz
//	    trap_class: resource_sink
//	    weight: 2
func LoadTemplates(path string) ([]trap.Template, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load templates file %s: %w", path, err)
	}

	var templates []trap.Template
	if err := k.UnmarshalWithConf("templates", &templates, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal templates file %s: %w", path, err)
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("templates file %s defines no templates: %w", path, trap.ErrInvalidConfiguration)
	}
	for i := range templates {
		if !templates[i].Class.Valid() {
			return nil, fmt.Errorf("template %q: unknown trap class %q: %w",
				templates[i].ID, templates[i].Class, trap.ErrInvalidConfiguration)
		}
	}
	return templates, nil
}
