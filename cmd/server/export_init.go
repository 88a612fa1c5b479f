// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/tarpit/internal/config"
	"github.com/tomtom215/tarpit/internal/export"
	"github.com/tomtom215/tarpit/internal/logging"
)

var errBreakerOpen = errors.New("export circuit breaker open")

// exportComponents holds the exporter and, for the embedded backend, the
// in-process NATS server it publishes to.
type exportComponents struct {
	exporter *export.Exporter
	embedded *export.EmbeddedServer
}

// initExport builds the analytics exporter when export is enabled.
// It returns nil, nil when disabled.
func initExport(cfg *config.Config) (*exportComponents, error) {
	if !cfg.Export.Enabled {
		logging.Info().Msg("Analytics export disabled")
		return nil, nil
	}

	logger := export.NewLogger()

	var (
		pub      message.Publisher
		embedded *export.EmbeddedServer
	)
	switch cfg.Export.Backend {
	case "embedded":
		srv, err := export.NewEmbeddedServer(export.EmbeddedConfig{
			Port:      cfg.Export.EmbeddedPort,
			JetStream: cfg.Export.JetStream,
			StoreDir:  cfg.Export.EmbeddedStoreDir,
		})
		if err != nil {
			return nil, fmt.Errorf("embedded nats: %w", err)
		}
		p, err := export.NewNATSPublisher(export.NATSConfig{
			URL:       srv.ClientURL(),
			JetStream: cfg.Export.JetStream,
		}, logger)
		if err != nil {
			shutdownEmbedded(srv)
			return nil, fmt.Errorf("nats publisher: %w", err)
		}
		pub, embedded = p, srv
		logging.Info().Str("url", srv.ClientURL()).Msg("Embedded NATS server started")
	case "nats":
		p, err := export.NewNATSPublisher(export.NATSConfig{
			URL:       cfg.Export.NATSURL,
			JetStream: cfg.Export.JetStream,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("nats publisher: %w", err)
		}
		pub = p
	case "memory":
		// Events go nowhere unless something subscribes in-process.
		pub = export.NewMemoryPublisher(int64(cfg.Export.QueueSize), logger)
	default:
		return nil, fmt.Errorf("unknown export backend %q", cfg.Export.Backend)
	}

	exp, err := export.New(pub, export.Config{
		TopicPrefix:   cfg.Export.TopicPrefix,
		QueueSize:     cfg.Export.QueueSize,
		RatePerSecond: cfg.Export.RatePerSecond,
		Burst:         cfg.Export.Burst,
		Breaker: export.BreakerConfig{
			Name:             "export-" + cfg.Export.Backend,
			Timeout:          cfg.Export.BreakerTimeout,
			FailureThreshold: cfg.Export.BreakerMaxFailures,
		},
	})
	if err != nil {
		_ = pub.Close()
		if embedded != nil {
			shutdownEmbedded(embedded)
		}
		return nil, err
	}

	scores, hits := exp.Topics()
	logging.Info().
		Str("backend", cfg.Export.Backend).
		Str("scores_topic", scores).
		Str("trap_hits_topic", hits).
		Msg("Analytics export enabled")

	return &exportComponents{exporter: exp, embedded: embedded}, nil
}

func (c *exportComponents) healthCheck(context.Context) error {
	if c.exporter.BreakerState() == "open" {
		return errBreakerOpen
	}
	return nil
}

func (c *exportComponents) close() {
	published, failed, dropped := c.exporter.Stats()
	logging.Info().
		Int64("published", published).
		Int64("failed", failed).
		Int64("dropped", dropped).
		Msg("Closing exporter")
	if err := c.exporter.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing exporter")
	}
	if c.embedded != nil {
		shutdownEmbedded(c.embedded)
	}
}

func shutdownEmbedded(srv *export.EmbeddedServer) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logging.Error().Err(err).Msg("Error stopping embedded NATS server")
	}
}
