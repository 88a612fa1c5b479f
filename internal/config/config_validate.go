// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package config

import (
	"fmt"
	"strings"

	"github.com/tomtom215/tarpit/internal/trap"
	"github.com/tomtom215/tarpit/internal/validation"
)

// Validate checks struct tags and then the cross-field rules.
// Every failure wraps trap.ErrInvalidConfiguration.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return fmt.Errorf("%s: %w", verr.Error(), trap.ErrInvalidConfiguration)
	}

	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateEvolution(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	return c.validateExport()
}

func (c *Config) validateEngine() error {
	e := c.Engine
	if e.SuspiciousThreshold > 0 && e.BotThreshold > 0 && e.SuspiciousThreshold >= e.BotThreshold {
		return invalid("engine.suspicious_threshold (%v) must be below engine.bot_threshold (%v)",
			e.SuspiciousThreshold, e.BotThreshold)
	}
	if c.Evolution.Floor > e.MaxWeight {
		return invalid("evolution.floor (%v) exceeds engine.max_weight (%v)", c.Evolution.Floor, e.MaxWeight)
	}
	if len(e.MinterKey)%2 != 0 {
		return invalid("engine.minter_key must have an even number of hex digits")
	}
	return nil
}

func (c *Config) validateEvolution() error {
	if c.Evolution.DecayThreshold >= c.Evolution.BoostThreshold {
		return invalid("evolution.decay_threshold (%v) must be below evolution.boost_threshold (%v)",
			c.Evolution.DecayThreshold, c.Evolution.BoostThreshold)
	}
	if c.Evolution.Interval > 0 && c.Evolution.Interval > c.Evolution.Window {
		return invalid("evolution.interval (%v) must not exceed evolution.window (%v)",
			c.Evolution.Interval, c.Evolution.Window)
	}
	return nil
}

func (c *Config) validateStore() error {
	if !c.Store.Enabled || c.Store.InMemory {
		return nil
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return invalid("store.path is required when store.enabled=true")
	}
	if c.Engine.MinterKey == "" {
		return invalid("engine.minter_key is required when store.enabled=true")
	}
	return nil
}

func (c *Config) validateExport() error {
	if !c.Export.Enabled {
		return nil
	}
	if c.Export.Backend == "embedded" && c.Export.JetStream && c.Export.EmbeddedStoreDir == "" {
		return invalid("export.embedded_store_dir is required for embedded JetStream")
	}
	if c.Export.Backend != "nats" {
		return nil
	}
	if !strings.HasPrefix(c.Export.NATSURL, "nats://") && !strings.HasPrefix(c.Export.NATSURL, "tls://") {
		return invalid("export.nats_url must be a nats:// or tls:// URL, got %q", c.Export.NATSURL)
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, trap.ErrInvalidConfiguration)...)
}
