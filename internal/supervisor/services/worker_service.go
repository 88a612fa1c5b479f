// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package services

import (
	"context"
	"fmt"
)

// Runner is satisfied by *store.AsyncWriter and *export.Exporter.
type Runner interface {
	Run(ctx context.Context) error
}

// WorkerService supervises a background queue consumer. The worker's Run
// drains its queue on cancellation before returning.
type WorkerService struct {
	worker Runner
	name   string
}

// NewWorkerService creates a worker service named name.
func NewWorkerService(name string, worker Runner) *WorkerService {
	return &WorkerService{
		worker: worker,
		name:   name,
	}
}

// Serve implements suture.Service. A worker that stops while ctx is still
// live is reported as failed so the supervisor restarts it.
func (s *WorkerService) Serve(ctx context.Context) error {
	err := s.worker.Run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		return fmt.Errorf("%s stopped unexpectedly", s.name)
	}
	return fmt.Errorf("%s failed: %w", s.name, err)
}

// String implements fmt.Stringer.
func (s *WorkerService) String() string {
	return s.name
}
