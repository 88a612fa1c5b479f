// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package generator

import (
	"strings"

	"github.com/tomtom215/tarpit/internal/catalog"
)

// render fills a shape. token replaces {token}.
func (s *source) render(shape catalog.Shape, token string) (string, error) {
	var b strings.Builder
	for _, p := range shape {
		var (
			v   string
			err error
		)
		switch p.Kind {
		case catalog.PartLiteral:
			v = p.Text
		case catalog.PartWord:
			v, err = s.Word()
		case catalog.PartSlug:
			v, err = s.slug()
		case catalog.PartHex:
			v, err = s.Hex(p.N)
		case catalog.PartNum:
			v, err = s.Digits(p.N)
		case catalog.PartToken:
			v = token
		}
		if err != nil {
			return "", err
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

func (s *source) slug() (string, error) {
	first, err := s.Word()
	if err != nil {
		return "", err
	}
	second, err := s.Word()
	if err != nil {
		return "", err
	}
	return first + "-" + second, nil
}

// renderPath fills a path shape and guarantees the token appears in it.
// With decoy set, a random slug segment is inserted after the first segment.
func (s *source) renderPath(c catalog.Compiled, token string, decoy bool) (string, error) {
	path, err := s.render(c.Path, token)
	if err != nil {
		return "", err
	}
	if !c.Path.HasToken() {
		path = strings.TrimSuffix(path, "/") + "/" + token
	}
	if decoy {
		seg, err := s.slug()
		if err != nil {
			return "", err
		}
		if i := strings.IndexByte(path[1:], '/'); i >= 0 {
			path = path[:i+1] + "/" + seg + path[i+1:]
		}
	}
	return path, nil
}

// renderParams fills a template's parameters; nil when it has none.
func (s *source) renderParams(c catalog.Compiled) (map[string]string, error) {
	if len(c.Params) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(c.Params))
	for _, p := range c.Params {
		v, err := s.render(p.Value, "")
		if err != nil {
			return nil, err
		}
		params[p.Name] = v
	}
	return params, nil
}
