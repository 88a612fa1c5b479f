// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package services

import (
	"context"
)

// ContextRunner is satisfied by *engine.Engine.
type ContextRunner interface {
	RunWithContext(ctx context.Context) error
}

// EngineService runs the engine's maintenance and evolution loop.
type EngineService struct {
	engine ContextRunner
	name   string
}

// NewEngineService creates a new engine service wrapper.
func NewEngineService(engine ContextRunner) *EngineService {
	return &EngineService{
		engine: engine,
		name:   "trap-engine",
	}
}

// Serve implements suture.Service.
func (s *EngineService) Serve(ctx context.Context) error {
	return s.engine.RunWithContext(ctx)
}

// String implements fmt.Stringer.
func (s *EngineService) String() string {
	return s.name
}
