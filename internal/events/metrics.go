package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for event delivery.
type Metrics struct {
	Delivered           *prometheus.CounterVec
	DeliveryFailures    *prometheus.CounterVec
	CircuitDropped      *prometheus.CounterVec
	CircuitBreakerState *prometheus.GaugeVec
	RelayPublished      prometheus.Counter
	RelayFailures       prometheus.Counter
}

// NewMetrics registers event metrics on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers on reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Delivered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aidtrace_events_delivered_total",
			Help: "Events delivered per sink and category",
		}, []string{"sink", "category"}),
		DeliveryFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aidtrace_events_delivery_failures_total",
			Help: "Event batches a sink failed to deliver",
		}, []string{"sink"}),
		CircuitDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aidtrace_events_circuit_dropped_total",
			Help: "Events dropped because the sink circuit breaker was open",
		}, []string{"sink"}),
		CircuitBreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aidtrace_events_circuit_breaker_state",
			Help: "Sink circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}, []string{"sink"}),
		RelayPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "aidtrace_outbox_relay_published_total",
			Help: "Outbox entries produced to Kafka",
		}),
		RelayFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "aidtrace_outbox_relay_failures_total",
			Help: "Outbox relay cycles that failed",
		}),
	}
}

func (m *Metrics) incDelivered(sink string, evts []Event) {
	if m == nil {
		return
	}
	for _, e := range evts {
		m.Delivered.WithLabelValues(sink, string(e.Type.Category())).Inc()
	}
}

func (m *Metrics) incFailure(sink string) {
	if m == nil {
		return
	}
	m.DeliveryFailures.WithLabelValues(sink).Inc()
}

func (m *Metrics) incCircuitDropped(sink string, n int) {
	if m == nil {
		return
	}
	m.CircuitDropped.WithLabelValues(sink).Add(float64(n))
}

func (m *Metrics) setCircuitState(sink string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.CircuitBreakerState.WithLabelValues(sink).Set(v)
}

// IncRelayPublished counts entries the relay produced.
func (m *Metrics) IncRelayPublished(n int) {
	if m == nil {
		return
	}
	m.RelayPublished.Add(float64(n))
}

// IncRelayFailures counts failed relay cycles.
func (m *Metrics) IncRelayFailures() {
	if m == nil {
		return
	}
	m.RelayFailures.Inc()
}
