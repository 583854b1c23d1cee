package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for ledger operations.
type Metrics struct {
	AssetsCreated     prometheus.Counter
	ScansLogged       prometheus.Counter
	AnomaliesDetected *prometheus.CounterVec
	MilestonesPaid    prometheus.Counter
	FundsReleased     *prometheus.CounterVec
	FundsRefunded     prometheus.Counter
	OperationErrors   *prometheus.CounterVec
	OperationLatency  *prometheus.HistogramVec
}

// New registers ledger metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers on reg, so tests can use a private registry.
func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AssetsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "aidtrace_assets_created_total",
			Help: "Assets registered and funded",
		}),
		ScansLogged: f.NewCounter(prometheus.CounterOpts{
			Name: "aidtrace_scans_logged_total",
			Help: "Custody scans appended to asset logs",
		}),
		AnomaliesDetected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aidtrace_anomalies_detected_total",
			Help: "Anomaly conditions triggered by scans",
		}, []string{"condition"}),
		MilestonesPaid: f.NewCounter(prometheus.CounterOpts{
			Name: "aidtrace_milestones_released_total",
			Help: "Milestones paid out",
		}),
		FundsReleased: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aidtrace_funds_released_total",
			Help: "Value released from escrow",
		}, []string{"kind"}),
		FundsRefunded: f.NewCounter(prometheus.CounterOpts{
			Name: "aidtrace_funds_refunded_total",
			Help: "Value refunded to donors",
		}),
		OperationErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "aidtrace_ledger_errors_total",
			Help: "Ledger operations that failed, by error code",
		}, []string{"operation", "code"}),
		OperationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aidtrace_ledger_operation_duration_seconds",
			Help:    "Ledger operation latency including the transaction",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncAssetsCreated() {
	if m == nil {
		return
	}
	m.AssetsCreated.Inc()
}

func (m *Metrics) IncScansLogged() {
	if m == nil {
		return
	}
	m.ScansLogged.Inc()
}

func (m *Metrics) IncAnomaly(condition string) {
	if m == nil {
		return
	}
	m.AnomaliesDetected.WithLabelValues(condition).Inc()
}

func (m *Metrics) IncMilestonesPaid(n int) {
	if m == nil {
		return
	}
	m.MilestonesPaid.Add(float64(n))
}

// AddReleased counts value released; kind is "milestone" or "manual".
func (m *Metrics) AddReleased(kind string, amount uint64) {
	if m == nil {
		return
	}
	m.FundsReleased.WithLabelValues(kind).Add(float64(amount))
}

func (m *Metrics) AddRefunded(amount uint64) {
	if m == nil {
		return
	}
	m.FundsRefunded.Add(float64(amount))
}

func (m *Metrics) IncError(operation, code string) {
	if m == nil {
		return
	}
	m.OperationErrors.WithLabelValues(operation, code).Inc()
}

func (m *Metrics) ObserveLatency(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
}
