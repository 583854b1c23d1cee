package events

import (
	"context"
	"log/slog"
)

// Sink delivers committed events to one destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, evts []Event) error
}

// Fanout delivers each batch to every sink in order. A sink failure is logged
// and counted; it never fails the write that produced the events, which has
// already committed.
type Fanout struct {
	sinks   []Sink
	logger  *slog.Logger
	metrics *Metrics
}

// FanoutOption configures a Fanout.
type FanoutOption func(*Fanout)

func WithLogger(logger *slog.Logger) FanoutOption {
	return func(f *Fanout) {
		if logger != nil {
			f.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) FanoutOption {
	return func(f *Fanout) {
		f.metrics = m
	}
}

// NewFanout builds a publisher over sinks. Nil sinks are skipped so optional
// backends can be passed unconditionally.
func NewFanout(sinks []Sink, opts ...FanoutOption) *Fanout {
	f := &Fanout{logger: slog.Default()}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Publish implements the ledger's EventPublisher.
func (f *Fanout) Publish(ctx context.Context, evts ...Event) {
	if len(evts) == 0 {
		return
	}
	for _, s := range f.sinks {
		if err := s.Deliver(ctx, evts); err != nil {
			f.metrics.incFailure(s.Name())
			f.logger.WarnContext(ctx, "event delivery failed",
				"sink", s.Name(),
				"events", len(evts),
				"first_event", evts[0].ID,
				"error", err,
			)
			continue
		}
		f.metrics.incDelivered(s.Name(), evts)
	}
}

// LogSink writes one structured log line per event.
type LogSink struct {
	logger *slog.Logger
	level  slog.Level
}

func NewLogSink(logger *slog.Logger, level slog.Level) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger, level: level}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(ctx context.Context, evts []Event) error {
	for _, e := range evts {
		s.logger.Log(ctx, s.level, "ledger event",
			"event_id", e.ID,
			"type", e.Type,
			"category", e.Type.Category(),
			"asset_id", e.AssetID,
			"actor", e.Actor,
			"request_id", e.RequestID,
		)
	}
	return nil
}
