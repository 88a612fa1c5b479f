// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

/*
Package supervisor provides process supervision using suture v4.

Long-running components are organized into a tree of layers so that a
failing dependency restarts on its own without taking the API down:

	RootSupervisor ("tarpit")
	├── DataSupervisor ("data-layer")
	│   └── WorkerService "store-writer" (if STORE_ENABLED)
	├── MessagingSupervisor ("messaging-layer")
	│   └── WorkerService "exporter" (if EXPORT_ENABLED)
	├── EngineSupervisor ("engine-layer")
	│   └── EngineService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Crashed services are restarted with suture's backoff. Supervisor events are
logged through sutureslog into the process slog logger, which in turn writes
through zerolog.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{})
	if err != nil {
	    return err
	}
	tree.AddEngineService(services.NewEngineService(eng))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	err = tree.Serve(ctx)
*/
package supervisor
