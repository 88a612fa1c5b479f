// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package catalog

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/tomtom215/tarpit/internal/trap"
)

// DefaultMaxWeight caps template weights when Config.MaxWeight is unset.
const DefaultMaxWeight = 100.0

// Config configures a Catalog.
type Config struct {
	// MaxWeight is the upper clamp for every template weight.
	MaxWeight float64

	// Fallback is selected uniformly when the total weight is zero.
	// Nil uses FallbackTemplates(); an empty non-nil slice disables fallback.
	Fallback []trap.Template
}

// Catalog is the weighted, ordered set of pattern templates.
// All methods are safe for concurrent use.
type Catalog struct {
	mu        sync.RWMutex
	templates []trap.Template // insertion order
	index     map[string]int
	fallback  []trap.Template
	maxWeight float64
}

// New creates a catalog from templates, validating each one.
func New(cfg Config, templates []trap.Template) (*Catalog, error) {
	maxWeight := cfg.MaxWeight
	if maxWeight == 0 {
		maxWeight = DefaultMaxWeight
	}
	if maxWeight < 0 || math.IsNaN(maxWeight) || math.IsInf(maxWeight, 0) {
		return nil, fmt.Errorf("max weight %v: %w", cfg.MaxWeight, trap.ErrInvalidConfiguration)
	}

	fallback := cfg.Fallback
	if fallback == nil {
		fallback = FallbackTemplates()
	}
	for i := range fallback {
		if err := Validate(fallback[i]); err != nil {
			return nil, fmt.Errorf("fallback template: %w", err)
		}
	}

	c := &Catalog{
		templates: make([]trap.Template, 0, len(templates)),
		index:     make(map[string]int, len(templates)),
		fallback:  append([]trap.Template(nil), fallback...),
		maxWeight: maxWeight,
	}
	for _, t := range templates {
		if err := c.Add(t); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Validate checks a template's fields and shapes.
func Validate(t trap.Template) error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("template without id: %w", trap.ErrInvalidConfiguration)
	}
	if !t.Class.Valid() {
		return fmt.Errorf("template %s: unknown class %q: %w", t.ID, t.Class, trap.ErrInvalidConfiguration)
	}
	if t.Weight < 0 || math.IsNaN(t.Weight) || math.IsInf(t.Weight, 0) {
		return fmt.Errorf("template %s: weight %v: %w", t.ID, t.Weight, trap.ErrInvalidConfiguration)
	}
	if !strings.HasPrefix(t.PathShape, "/") {
		return fmt.Errorf("template %s: path shape must start with '/': %w", t.ID, trap.ErrInvalidConfiguration)
	}
	if t.Class == trap.ClassChainStep && t.ChainLength < 2 {
		return fmt.Errorf("template %s: chain length must be at least 2: %w", t.ID, trap.ErrInvalidConfiguration)
	}
	if _, err := Compile(t); err != nil {
		return fmt.Errorf("template %s: %w", t.ID, err)
	}
	return nil
}

// Add appends a template. An existing id returns trap.ErrDuplicate.
func (c *Catalog) Add(t trap.Template) error {
	if err := Validate(t); err != nil {
		return err
	}
	if t.Weight > c.maxWeight {
		t.Weight = c.maxWeight
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.index[t.ID]; ok {
		return fmt.Errorf("template %s: %w", t.ID, trap.ErrDuplicate)
	}
	c.index[t.ID] = len(c.templates)
	c.templates = append(c.templates, t)
	return nil
}

// Get returns a copy of the template with the given id.
func (c *Catalog) Get(id string) (trap.Template, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[id]
	if !ok {
		return trap.Template{}, fmt.Errorf("template %s: %w", id, trap.ErrNotFound)
	}
	return c.templates[i], nil
}

// Select picks a template by weighted draw. draw is a uniform value in
// [0,1); values outside are clamped. With zero total weight the fallback set
// is drawn from uniformly, and without one trap.ErrGenerationExhausted is
// returned.
func (c *Catalog) Select(draw float64) (trap.Template, error) {
	if draw < 0 || math.IsNaN(draw) {
		draw = 0
	}
	if draw >= 1 {
		draw = math.Nextafter(1, 0)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.totalLocked()
	if total <= 0 {
		if len(c.fallback) == 0 {
			return trap.Template{}, trap.ErrGenerationExhausted
		}
		return c.fallback[int(draw*float64(len(c.fallback)))], nil
	}

	target := draw * total
	last := -1
	var cumulative float64
	for i := range c.templates {
		w := c.templates[i].Weight
		if w <= 0 {
			continue
		}
		cumulative += w
		last = i
		if target < cumulative {
			return c.templates[i], nil
		}
	}
	// Rounding can leave target a hair above the final cumulative sum.
	return c.templates[last], nil
}

// Update atomically replaces a template's weight with fn(old), clamped to
// [0, MaxWeight].
func (c *Catalog) Update(id string, fn func(old float64) float64) (oldWeight, newWeight float64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[id]
	if !ok {
		return 0, 0, fmt.Errorf("template %s: %w", id, trap.ErrNotFound)
	}
	oldWeight = c.templates[i].Weight
	newWeight = c.clamp(fn(oldWeight))
	c.templates[i].Weight = newWeight
	return oldWeight, newWeight, nil
}

// ApplyWeightDelta adds delta to a template's weight, clamped to [0, MaxWeight].
func (c *Catalog) ApplyWeightDelta(id string, delta float64) (oldWeight, newWeight float64, err error) {
	return c.Update(id, func(old float64) float64 { return old + delta })
}

// SetWeight sets a template's weight, clamped to [0, MaxWeight].
func (c *Catalog) SetWeight(id string, weight float64) (oldWeight float64, err error) {
	oldWeight, _, err = c.Update(id, func(float64) float64 { return weight })
	return oldWeight, err
}

// Scale multiplies every weight by factor.
func (c *Catalog) Scale(factor float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.templates {
		c.templates[i].Weight = c.clamp(c.templates[i].Weight * factor)
	}
}

// Snapshot returns a copy of all templates in insertion order.
func (c *Catalog) Snapshot() []trap.Template {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]trap.Template(nil), c.templates...)
}

// TotalWeight returns the sum of all weights.
func (c *Catalog) TotalWeight() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totalLocked()
}

// Len returns the number of templates, excluding fallbacks.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.templates)
}

// MaxWeight returns the weight ceiling.
func (c *Catalog) MaxWeight() float64 {
	return c.maxWeight
}

func (c *Catalog) totalLocked() float64 {
	var total float64
	for i := range c.templates {
		total += c.templates[i].Weight
	}
	return total
}

func (c *Catalog) clamp(w float64) float64 {
	switch {
	case math.IsNaN(w), w < 0:
		return 0
	case w > c.maxWeight:
		return c.maxWeight
	}
	return w
}

// Compiled is a template with its shapes parsed.
type Compiled struct {
	Template trap.Template
	Path     Shape
	Params   []Param
}

// Compile parses a template's shapes.
func Compile(t trap.Template) (Compiled, error) {
	path, err := ParseShape(t.PathShape)
	if err != nil {
		return Compiled{}, err
	}
	tokens := 0
	for _, p := range path {
		if p.Kind == PartToken {
			tokens++
		}
	}
	if tokens > 1 {
		return Compiled{}, fmt.Errorf("path shape has %d {token} placeholders: %w", tokens, trap.ErrInvalidConfiguration)
	}
	params, err := ParseParams(t.ParamShape)
	if err != nil {
		return Compiled{}, err
	}
	return Compiled{Template: t, Path: path, Params: params}, nil
}
