// Tarpit - Bot Trap Generation and Threat Scoring Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tarpit

package export

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/tarpit/internal/logging"
	"github.com/tomtom215/tarpit/internal/metrics"
	"github.com/tomtom215/tarpit/internal/trap"
)

// Defaults for Config.
const (
	DefaultTopicPrefix = "tarpit"
	DefaultQueueSize   = 10_000
	DefaultBurst       = 100
)

// Config configures an Exporter.
type Config struct {
	TopicPrefix string
	QueueSize   int

	// RatePerSecond paces publishing; 0 is unlimited.
	RatePerSecond float64
	Burst         int

	Breaker BreakerConfig
}

type envelope struct {
	topic     string
	eventType string
	sessionID string
	payload   interface{}
}

// Exporter hands engine analytics to a Watermill publisher. PublishScore
// and PublishTrapHit enqueue without blocking and drop on a full queue;
// Run publishes through a rate limiter and a circuit breaker. Events that
// fail or hit an open breaker are dropped: analytics are best effort.
type Exporter struct {
	pub     message.Publisher
	queue   chan envelope
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[interface{}]

	scoreTopic string
	hitTopic   string

	dropped   atomic.Int64
	published atomic.Int64
	failed    atomic.Int64
}

// New creates an exporter that publishes to pub.
func New(pub message.Publisher, cfg Config) (*Exporter, error) {
	if pub == nil {
		return nil, fmt.Errorf("exporter requires a publisher: %w", trap.ErrInvalidConfiguration)
	}
	if cfg.RatePerSecond < 0 {
		return nil, fmt.Errorf("export rate must not be negative: %w", trap.ErrInvalidConfiguration)
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker.Name = "export"
	}
	if cfg.Breaker.Timeout <= 0 {
		cfg.Breaker.Timeout = 30 * time.Second
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	return &Exporter{
		pub:        pub,
		queue:      make(chan envelope, cfg.QueueSize),
		limiter:    rate.NewLimiter(limit, cfg.Burst),
		breaker:    NewCircuitBreaker(cfg.Breaker),
		scoreTopic: cfg.TopicPrefix + "." + TopicScores,
		hitTopic:   cfg.TopicPrefix + "." + TopicTrapHits,
	}, nil
}

// PublishScore enqueues a score event.
func (e *Exporter) PublishScore(score trap.ThreatScore) {
	e.enqueue(envelope{
		topic:     e.scoreTopic,
		eventType: TopicScores,
		sessionID: score.SessionID,
		payload:   NewScoreEvent(score),
	})
}

// PublishTrapHit enqueues a trap hit event.
func (e *Exporter) PublishTrapHit(sessionID string, hit trap.Observation) {
	e.enqueue(envelope{
		topic:     e.hitTopic,
		eventType: TopicTrapHits,
		sessionID: sessionID,
		payload:   NewTrapHitEvent(sessionID, hit),
	})
}

func (e *Exporter) enqueue(env envelope) {
	select {
	case e.queue <- env:
	default:
		if e.dropped.Add(1)%1000 == 1 {
			logging.Warn().Int64("dropped", e.dropped.Load()).Msg("Export queue full, dropping event")
		}
		metrics.RecordHandoffDrop("export")
	}
}

// Topics returns the score and trap hit topics.
func (e *Exporter) Topics() (scores, trapHits string) {
	return e.scoreTopic, e.hitTopic
}

// Stats returns published, failed and dropped counts.
func (e *Exporter) Stats() (published, failed, dropped int64) {
	return e.published.Load(), e.failed.Load(), e.dropped.Load()
}

// BreakerState returns the circuit breaker state name.
func (e *Exporter) BreakerState() string {
	return e.breaker.State().String()
}

// Run publishes queued events until ctx is cancelled.
func (e *Exporter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-e.queue:
			if err := e.limiter.Wait(ctx); err != nil {
				return ctx.Err()
			}
			e.publish(env)
		}
	}
}

func (e *Exporter) publish(env envelope) {
	data, err := json.Marshal(env.payload)
	if err != nil {
		e.failed.Add(1)
		metrics.RecordExport(env.topic, "failed")
		logging.Error().Err(err).Str("topic", env.topic).Msg("Failed to marshal export event")
		return
	}

	msg := message.NewMessage(uuid.New().String(), data)
	msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	msg.Metadata.Set(MetadataEventType, env.eventType)
	msg.Metadata.Set(MetadataSessionID, env.sessionID)

	_, err = e.breaker.Execute(func() (interface{}, error) {
		return nil, e.pub.Publish(env.topic, msg)
	})
	switch {
	case err == nil:
		e.published.Add(1)
		metrics.RecordExport(env.topic, "published")
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		e.failed.Add(1)
		metrics.RecordExport(env.topic, "rejected")
	default:
		e.failed.Add(1)
		metrics.RecordExport(env.topic, "failed")
		logging.Error().Err(err).Str("topic", env.topic).Msg("Failed to publish export event")
	}
}

// Close closes the underlying publisher.
func (e *Exporter) Close() error {
	return e.pub.Close()
}
