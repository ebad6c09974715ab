package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/ofio/pkg/handle"
	"github.com/marmos91/ofio/pkg/metrics"
)

// storageMetrics is the Prometheus implementation of handle.Metrics.
type storageMetrics struct {
	backend           string
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTotal        *prometheus.CounterVec
}

// NewStorageMetrics creates Prometheus-backed handle service metrics for
// the named backend.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewStorageMetrics(backend string) handle.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &storageMetrics{
		backend: backend,
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ofio_storage_operations_total",
				Help: "Total number of handle service operations by backend, operation and status",
			},
			[]string{"backend", "operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "ofio_storage_operation_duration_milliseconds",
				Help: "Duration of handle service operations in milliseconds",
				Buckets: []float64{
					0.01, // 10us - memory backend
					0.1,  // 100us - page cache
					1,    // 1ms - local disk
					10,   // 10ms
					50,   // 50ms - object store range read
					250,  // 250ms
					1000, // 1s
					5000, // 5s - object upload on close
				},
			},
			[]string{"backend", "operation"},
		),
		bytesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ofio_storage_bytes_total",
				Help: "Total bytes moved by handle service operations",
			},
			[]string{"backend", "operation"},
		),
	}
}

func (m *storageMetrics) ObserveOperation(op string, bytes int, duration time.Duration, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	m.operationsTotal.WithLabelValues(m.backend, op, status).Inc()
	m.operationDuration.WithLabelValues(m.backend, op).Observe(float64(duration.Microseconds()) / 1000)
	if bytes > 0 {
		m.bytesTotal.WithLabelValues(m.backend, op).Add(float64(bytes))
	}
}
