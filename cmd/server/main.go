// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/tarpit/internal/api"
	"github.com/tomtom215/tarpit/internal/config"
	"github.com/tomtom215/tarpit/internal/engine"
	"github.com/tomtom215/tarpit/internal/logging"
	"github.com/tomtom215/tarpit/internal/supervisor"
	"github.com/tomtom215/tarpit/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("version", version).
		Str("protection_level", cfg.Engine.ProtectionLevel).
		Bool("stealth", cfg.Engine.Stealth).
		Bool("store_enabled", cfg.Store.Enabled).
		Bool("export_enabled", cfg.Export.Enabled).
		Msg("Starting Tarpit with supervisor tree")

	engineCfg, err := cfg.BuildEngineConfig()
	if err != nil {
		logging.Fatal().Err(err).Msg("Invalid engine configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureDecay:     cfg.Supervisor.FailureDecay,
		FailureBackoff:   cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	var opts []engine.Option
	checks := make(map[string]api.HealthCheck)

	persistence, err := initStore(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open issuance store")
	}
	if persistence != nil {
		defer persistence.close()
		opts = append(opts, engine.WithPersister(persistence.writer))
		checks["store"] = persistence.healthCheck
		tree.AddDataService(services.NewWorkerService("store-writer", persistence.writer))
	}

	exp, err := initExport(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize exporter")
	}
	if exp != nil {
		defer exp.close()
		opts = append(opts, engine.WithSink(exp.exporter))
		checks["export"] = exp.healthCheck
		tree.AddMessagingService(services.NewWorkerService("exporter", exp.exporter))
	}

	eng, err := engine.New(engineCfg, opts...)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create trap engine")
	}
	if persistence != nil {
		if _, err := eng.Restore(ctx, persistence.store); err != nil {
			logging.Error().Err(err).Msg("Failed to restore issuance ledger, starting empty")
		}
	}
	tree.AddEngineService(services.NewEngineService(eng))

	server := newHTTPServer(cfg, eng, checks)
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree stopped with error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service did not stop within shutdown timeout")
	}

	logging.Info().Msg("Tarpit stopped")
}

// newHTTPServer builds the HTTP server around the API router.
func newHTTPServer(cfg *config.Config, eng *engine.Engine, checks map[string]api.HealthCheck) *http.Server {
	mwCfg := api.DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = cfg.Server.CORSOrigins
	mwCfg.RateLimitRequests = cfg.Server.RateLimitReqs
	mwCfg.RateLimitWindow = cfg.Server.RateLimitWindow
	mwCfg.RateLimitDisabled = cfg.Server.RateLimitDisabled

	handler := api.NewHandler(eng, api.HandlerConfig{
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Version:      version,
		Checks:       checks,
	})
	router := api.NewRouter(handler, api.NewChiMiddleware(mwCfg))

	return &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}
