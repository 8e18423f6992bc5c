package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ShipmentsTotal  *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// NewMetrics creates and registers Prometheus metrics. Registration on
// the default registry happens once; later calls return the same set.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "courier_bridge_requests_total",
					Help: "Total number of admin API requests by operation and status",
				},
				[]string{"operation", "status"},
			),
			RequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "courier_bridge_request_duration_seconds",
					Help:    "Admin API request duration in seconds by operation",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"operation"},
			),
			ShipmentsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "courier_bridge_shipments_total",
					Help: "Total shipment submissions by outcome",
				},
				[]string{"outcome"},
			),
		}
	})
	return metrics
}

// RecordRequest records an admin API request metric.
func (m *Metrics) RecordRequest(operation, status string, duration float64) {
	m.RequestsTotal.WithLabelValues(operation, status).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(duration)
}

// RecordShipment records a shipment submission outcome.
func (m *Metrics) RecordShipment(outcome string) {
	m.ShipmentsTotal.WithLabelValues(outcome).Inc()
}
