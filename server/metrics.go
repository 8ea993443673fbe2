package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricRequestsTotal       = "tender_requests_total"
	MetricRequestDuration     = "tender_request_duration_seconds"
	MetricConnectionsRejected = "tender_connections_rejected_total"
	MetricReceiptsIssued      = "tender_receipts_issued_total"
)

// Status labels for request outcomes.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics contains Prometheus metrics for the request server.
// All operations are thread-safe.
type Metrics struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	connectionsRejected prometheus.Counter
	receiptsIssued      prometheus.Counter
}

// NewMetrics creates a Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRequestsTotal,
				Help: "Total number of requests by type and status",
			},
			[]string{"type", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricRequestDuration,
				Help:    "Histogram of request handling duration in seconds by type",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"type"},
		),
		connectionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricConnectionsRejected,
			Help: "Connections closed because the worker pool was full",
		}),
		receiptsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricReceiptsIssued,
			Help: "Signed ranking receipts issued",
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Collectors returns all Prometheus collectors.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.requestsTotal,
		m.requestDuration,
		m.connectionsRejected,
		m.receiptsIssued,
	}
}

// ObserveRequest records one handled request.
func (m *Metrics) ObserveRequest(reqType, status string, seconds float64) {
	m.requestsTotal.WithLabelValues(reqType, status).Inc()
	m.requestDuration.WithLabelValues(reqType).Observe(seconds)
}

// IncConnectionsRejected counts a connection dropped at capacity.
func (m *Metrics) IncConnectionsRejected() {
	m.connectionsRejected.Inc()
}

// IncReceiptsIssued counts a signed receipt.
func (m *Metrics) IncReceiptsIssued() {
	m.receiptsIssued.Inc()
}
