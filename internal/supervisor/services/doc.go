// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

/*
Package services provides suture.Service wrappers for Tarpit components.

Each wrapper translates a component lifecycle into suture's
Serve(ctx) error pattern and names itself through fmt.Stringer:

  - HTTPServerService: ListenAndServe plus graceful Shutdown
  - EngineService: engine.RunWithContext
  - WorkerService: Run(ctx) queue consumers such as the store writer and
    the exporter
*/
package services
