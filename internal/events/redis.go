package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"aidtrace/pkg/platform/circuit"
)

// RedisSink publishes events as JSON on a Redis pub/sub channel for the
// presentation layer. A circuit breaker sheds publishes while Redis is down.
type RedisSink struct {
	client  redis.UniversalClient
	channel string
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *Metrics
}

func NewRedisSink(client redis.UniversalClient, channel string, breaker *circuit.Breaker, logger *slog.Logger, metrics *Metrics) *RedisSink {
	if breaker == nil {
		breaker = circuit.New("redis-events")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSink{
		client:  client,
		channel: channel,
		breaker: breaker,
		logger:  logger,
		metrics: metrics,
	}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Deliver(ctx context.Context, evts []Event) error {
	if !s.breaker.Allow() {
		s.metrics.incCircuitDropped(s.Name(), len(evts))
		return nil
	}

	pipe := s.client.Pipeline()
	for _, e := range evts {
		body, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", e.ID, err)
		}
		pipe.Publish(ctx, s.channel, body)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		if _, change := s.breaker.RecordFailure(); change.Opened {
			s.metrics.setCircuitState(s.Name(), true)
			s.logger.WarnContext(ctx, "redis event channel circuit opened", "error", err)
		}
		return fmt.Errorf("publish to %s: %w", s.channel, err)
	}
	if _, change := s.breaker.RecordSuccess(); change.Closed {
		s.metrics.setCircuitState(s.Name(), false)
		s.logger.InfoContext(ctx, "redis event channel circuit closed")
	}
	return nil
}
