// Package relay moves committed outbox entries to Kafka.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"aidtrace/internal/events"
	"aidtrace/internal/events/outbox"
)

// Outbox is the subset of outbox.Store the relay drives.
type Outbox interface {
	Process(ctx context.Context, limit int, fn func(ctx context.Context, records []outbox.Record) error) (int, error)
}

// Producer is the subset of *kgo.Client used to publish.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Relay polls the outbox and produces each entry to topic, keyed by aggregate
// so one asset's events stay ordered within a partition. Delivery is
// at-least-once: a crash between produce and commit re-sends the batch.
type Relay struct {
	outbox   Outbox
	producer Producer
	topic    string
	interval time.Duration
	batch    int
	logger   *slog.Logger
	metrics  *events.Metrics
}

// Option configures a Relay.
type Option func(*Relay)

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *events.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func New(ob Outbox, producer Producer, topic string, opts ...Option) *Relay {
	r := &Relay{
		outbox:   ob,
		producer: producer,
		topic:    topic,
		interval: time.Second,
		batch:    100,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drains the outbox until ctx is cancelled. Failed cycles are logged and
// retried on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if _, err := r.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.metrics.IncRelayFailures()
			r.logger.WarnContext(ctx, "outbox relay cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Drain relays batches until the outbox is empty and returns how many entries moved.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	total := 0
	for {
		n, err := r.outbox.Process(ctx, r.batch, r.produce)
		total += n
		if err != nil {
			return total, err
		}
		r.metrics.IncRelayPublished(n)
		if n < r.batch {
			return total, nil
		}
	}
}

func (r *Relay) produce(ctx context.Context, records []outbox.Record) error {
	krs := make([]*kgo.Record, len(records))
	for i, rec := range records {
		krs[i] = &kgo.Record{
			Topic: r.topic,
			Key:   []byte(rec.AggregateID),
			Value: rec.Payload,
			Headers: []kgo.RecordHeader{
				{Key: "event_id", Value: []byte(rec.ID.String())},
				{Key: "event_type", Value: []byte(rec.EventType)},
				{Key: "category", Value: []byte(rec.EventType.Category())},
			},
			Timestamp: rec.CreatedAt,
		}
	}
	if err := r.producer.ProduceSync(ctx, krs...).FirstErr(); err != nil {
		return fmt.Errorf("produce %d outbox entries: %w", len(krs), err)
	}
	return nil
}
