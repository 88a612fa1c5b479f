// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tomtom215/tarpit/internal/trap"
)

// PartKind identifies a shape segment.
type PartKind int

const (
	PartLiteral PartKind = iota
	PartWord
	PartSlug
	PartHex
	PartNum
	PartToken
)

// Limits for sized placeholders.
const (
	MaxHexLen = 64
	MaxNumLen = 18
)

// Part is one parsed segment of a shape. Text is set for literals, N for
// sized placeholders.
type Part struct {
	Kind PartKind
	Text string
	N    int
}

// Shape is a parsed path or parameter shape.
type Shape []Part

// HasToken reports whether the shape contains a {token} placeholder.
func (s Shape) HasToken() bool {
	for _, p := range s {
		if p.Kind == PartToken {
			return true
		}
	}
	return false
}

// Param is one parsed name=value pair of a parameter shape.
type Param struct {
	Name  string
	Value Shape
}

// ParseShape parses a shape string.
func ParseShape(s string) (Shape, error) {
	var parts Shape
	rest := s
	for rest != "" {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			parts = append(parts, Part{Kind: PartLiteral, Text: rest})
			break
		}
		if open > 0 {
			parts = append(parts, Part{Kind: PartLiteral, Text: rest[:open]})
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return nil, fmt.Errorf("unterminated placeholder in %q: %w", s, trap.ErrInvalidConfiguration)
		}
		p, err := parsePlaceholder(rest[open+1 : open+end])
		if err != nil {
			return nil, fmt.Errorf("shape %q: %w", s, err)
		}
		parts = append(parts, p)
		rest = rest[open+end+1:]
	}
	return parts, nil
}

// ParseParams parses a query-style parameter shape. Parameter values may not
// contain {token}; the token always lives in the path.
func ParseParams(s string) ([]Param, error) {
	if s == "" {
		return nil, nil
	}
	var params []Param
	for _, pair := range strings.Split(s, "&") {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("malformed parameter %q: %w", pair, trap.ErrInvalidConfiguration)
		}
		shape, err := ParseShape(value)
		if err != nil {
			return nil, err
		}
		if shape.HasToken() {
			return nil, fmt.Errorf("parameter %q may not carry {token}: %w", name, trap.ErrInvalidConfiguration)
		}
		params = append(params, Param{Name: name, Value: shape})
	}
	return params, nil
}

func parsePlaceholder(body string) (Part, error) {
	name, arg, sized := strings.Cut(body, ":")
	switch name {
	case "word":
		return Part{Kind: PartWord}, nil
	case "slug":
		return Part{Kind: PartSlug}, nil
	case "token":
		return Part{Kind: PartToken}, nil
	case "hex", "num":
		if !sized {
			return Part{}, fmt.Errorf("{%s} needs a length: %w", name, trap.ErrInvalidConfiguration)
		}
		n, err := strconv.Atoi(arg)
		limit := MaxHexLen
		kind := PartHex
		if name == "num" {
			limit = MaxNumLen
			kind = PartNum
		}
		if err != nil || n < 1 || n > limit {
			return Part{}, fmt.Errorf("{%s:%s} length must be 1..%d: %w", name, arg, limit, trap.ErrInvalidConfiguration)
		}
		return Part{Kind: kind, N: n}, nil
	}
	return Part{}, fmt.Errorf("unknown placeholder {%s}: %w", body, trap.ErrInvalidConfiguration)
}
