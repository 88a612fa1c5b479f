// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package generator

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/tarpit/internal/catalog"
	"github.com/tomtom215/tarpit/internal/trap"
)

// Defaults for Config.
const (
	DefaultMaxBatch        = 500
	DefaultMaxMintAttempts = 8
)

// Selector picks templates by weighted draw.
type Selector interface {
	Select(draw float64) (trap.Template, error)
}

// Registrar records issued identifiers.
type Registrar interface {
	Register(id trap.Identifier, sessionID string) error

	// MaybeIssued reports whether id may have been issued before, including
	// identifiers already evicted.
	MaybeIssued(id string) bool

	// Revoke removes registered identifiers that were never returned.
	Revoke(ids []string) int
}

// Config configures a Generator.
type Config struct {
	// MaxBatch caps the count of a single batch.
	MaxBatch int

	// TTL decides identifier lifetimes.
	TTL TTLPolicy

	// Stealth inserts decoy path segments into roughly half the identifiers.
	Stealth bool

	// MaxMintAttempts bounds re-minting when a token collides.
	MaxMintAttempts int

	// Rand overrides crypto/rand as the randomness source (tests only).
	Rand io.Reader

	// Clock overrides time.Now.
	Clock func() time.Time
}

// DefaultConfig returns the default generator configuration.
func DefaultConfig() Config {
	return Config{
		MaxBatch:        DefaultMaxBatch,
		TTL:             DefaultTTLPolicy(),
		MaxMintAttempts: DefaultMaxMintAttempts,
	}
}

// Generator produces batches of registered trap identifiers.
type Generator struct {
	selector  Selector
	registrar Registrar
	minter    *Minter
	cfg       Config
	src       *source
	now       func() time.Time
}

// New creates a generator.
func New(selector Selector, registrar Registrar, minter *Minter, cfg Config) (*Generator, error) {
	if selector == nil || registrar == nil || minter == nil {
		return nil, fmt.Errorf("generator requires selector, registrar and minter: %w", trap.ErrInvalidConfiguration)
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = DefaultMaxBatch
	}
	if cfg.MaxMintAttempts <= 0 {
		cfg.MaxMintAttempts = DefaultMaxMintAttempts
	}
	if err := cfg.TTL.Validate(); err != nil {
		return nil, err
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Generator{
		selector:  selector,
		registrar: registrar,
		minter:    minter,
		cfg:       cfg,
		src:       newSource(cfg.Rand),
		now:       now,
	}, nil
}

// MaxBatch returns the batch size ceiling.
func (g *Generator) MaxBatch() int {
	return g.cfg.MaxBatch
}

// ClampCount clamps a requested count to [1, MaxBatch].
func (g *Generator) ClampCount(count int) int {
	switch {
	case count < 1:
		return 1
	case count > g.cfg.MaxBatch:
		return g.cfg.MaxBatch
	}
	return count
}

// GenerateBatch produces exactly ClampCount(count) identifiers attributed to
// sessionID (empty for unattributed), each registered with the ledger before
// return. trap.ErrGenerationExhausted is returned when no template can be
// selected or no unique token can be minted. A failed batch revokes the
// identifiers it had already registered.
func (g *Generator) GenerateBatch(sessionID string, count int) ([]trap.Identifier, error) {
	out, err := g.generate(sessionID, g.ClampCount(count))
	if err != nil {
		if len(out) > 0 {
			ids := make([]string, len(out))
			for i := range out {
				ids[i] = out[i].ID
			}
			g.registrar.Revoke(ids)
		}
		return nil, err
	}
	return out, nil
}

// generate returns the identifiers registered so far alongside any error.
func (g *Generator) generate(sessionID string, count int) ([]trap.Identifier, error) {
	batchID := uuid.NewString()
	issuedAt := g.now().UTC()

	out := make([]trap.Identifier, 0, count)
	for len(out) < count {
		draw, err := g.src.Float64()
		if err != nil {
			return out, err
		}
		tmpl, err := g.selector.Select(draw)
		if err != nil {
			return out, fmt.Errorf("select template: %w", err)
		}
		compiled, err := catalog.Compile(tmpl)
		if err != nil {
			return out, fmt.Errorf("compile template %s: %w", tmpl.ID, err)
		}

		steps := 1
		var chainID string
		if tmpl.Class == trap.ClassChainStep && tmpl.ChainLength > 1 {
			steps = min(tmpl.ChainLength, count-len(out))
			chainID = uuid.NewString()
		}

		for step := 1; step <= steps; step++ {
			id, err := g.instantiate(compiled, issuedAt)
			if err != nil {
				return out, err
			}
			id.BatchID = batchID
			id.Sequence = len(out) + 1
			if chainID != "" {
				id.Chain = &trap.ChainPosition{ChainID: chainID, Step: step, Total: steps}
			}
			if err := g.register(&id, compiled, sessionID); err != nil {
				return out, err
			}
			out = append(out, id)
		}
	}
	return out, nil
}

// instantiate fills every field except batch, sequence and chain.
func (g *Generator) instantiate(c catalog.Compiled, issuedAt time.Time) (trap.Identifier, error) {
	token, err := g.mint()
	if err != nil {
		return trap.Identifier{}, err
	}
	id := trap.Identifier{
		ID:          token,
		Class:       c.Template.Class,
		TemplateID:  c.Template.ID,
		ContentType: c.Template.ContentType,
		IssuedAt:    issuedAt,
	}
	if err := g.fill(&id, c); err != nil {
		return trap.Identifier{}, err
	}
	jitter, err := g.src.Float64()
	if err != nil {
		return trap.Identifier{}, err
	}
	id.ExpiresAt = g.cfg.TTL.ExpiresAt(id.Class, issuedAt, jitter)
	return id, nil
}

func (g *Generator) fill(id *trap.Identifier, c catalog.Compiled) error {
	decoy := false
	if g.cfg.Stealth {
		draw, err := g.src.Float64()
		if err != nil {
			return err
		}
		decoy = draw < 0.5
	}
	path, err := g.src.renderPath(c, id.ID, decoy)
	if err != nil {
		return err
	}
	params, err := g.src.renderParams(c)
	if err != nil {
		return err
	}
	id.Path = path
	id.Params = params
	return nil
}

// mint returns a token the ledger has probably never issued.
func (g *Generator) mint() (string, error) {
	for attempt := 0; attempt < g.cfg.MaxMintAttempts; attempt++ {
		token, err := g.minter.Mint(g.src.r)
		if err != nil {
			return "", err
		}
		if !g.registrar.MaybeIssued(token) {
			return token, nil
		}
	}
	return "", fmt.Errorf("no unique token after %d attempts: %w", g.cfg.MaxMintAttempts, trap.ErrGenerationExhausted)
}

// register records id, re-minting if a concurrent batch claimed the token.
func (g *Generator) register(id *trap.Identifier, c catalog.Compiled, sessionID string) error {
	for attempt := 0; ; attempt++ {
		err := g.registrar.Register(*id, sessionID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, trap.ErrDuplicate) || attempt+1 >= g.cfg.MaxMintAttempts {
			return fmt.Errorf("register %s: %w", id.TemplateID, err)
		}
		token, err := g.mint()
		if err != nil {
			return err
		}
		id.ID = token
		if err := g.fill(id, c); err != nil {
			return err
		}
	}
}
