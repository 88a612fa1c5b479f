// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

/*
Package main is the entry point for the Tarpit server.

Tarpit issues decoy resource identifiers (trap links) to web hosts, records
what each client session does with them, and scores sessions on how likely
they are to be automated. Engagement statistics feed back into the template
weights so that traps that catch bots are issued more often.

# Application Architecture

The server runs under a suture v4 supervisor tree:

	RootSupervisor ("tarpit")
	├── DataSupervisor ("data-layer")
	│   └── store-writer (STORE_ENABLED=true)
	├── MessagingSupervisor ("messaging-layer")
	│   └── exporter (EXPORT_ENABLED=true)
	├── EngineSupervisor ("engine-layer")
	│   └── trap-engine (maintenance sweep, timed evolution)
	└── APISupervisor ("api-layer")
	    └── http-server

Initialization order:

 1. Configuration: koanf v2 (defaults, config.yaml, environment)
 2. Logging: zerolog, bridged to slog for suture and Watermill
 3. Issuance store: BadgerDB plus an asynchronous writer (optional)
 4. Exporter: Watermill publisher over NATS, an embedded NATS server or
    gochannel (optional)
 5. Engine: catalog, generator, ledger, collector, scorer, evolution
 6. Ledger restore from the issuance store
 7. HTTP server: chi router with httprate, CORS and Prometheus metrics

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains for
HTTP_SHUTDOWN_TIMEOUT, the store writer and exporter flush their queues,
and services that fail to stop in time are reported.

# Example Usage

	export TARPIT_PROTECTION_LEVEL=aggressive
	export TARPIT_MINTER_KEY=$(openssl rand -hex 32)
	export STORE_ENABLED=true
	export STORE_PATH=/data/tarpit
	./tarpit
*/
package main
