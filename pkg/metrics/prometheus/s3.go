package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	s3handle "github.com/marmos91/ofio/pkg/handle/s3"
	"github.com/marmos91/ofio/pkg/metrics"
)

// s3Metrics is the Prometheus implementation of s3handle.Metrics.
type s3Metrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	bytesTransferred *prometheus.CounterVec
}

// NewS3Metrics creates Prometheus-backed S3 request metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewS3Metrics() s3handle.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &s3Metrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ofio_s3_requests_total",
				Help: "Total number of S3 requests by operation and status",
			},
			[]string{"operation", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "ofio_s3_request_duration_milliseconds",
				Help: "Duration of S3 requests in milliseconds, retries included",
				Buckets: []float64{
					10,    // 10ms - HeadObject
					50,    // 50ms - one chunk GET
					100,   // 100ms
					500,   // 500ms
					1000,  // 1s - whole-object download
					5000,  // 5s - large PutObject
					10000, // 10s
					30000, // 30s - retries with backoff
				},
			},
			[]string{"operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ofio_s3_bytes_transferred_total",
				Help: "Total bytes transferred to and from S3",
			},
			[]string{"direction"}, // "upload", "download"
		),
	}
}

func (m *s3Metrics) ObserveRequest(op string, duration time.Duration, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	m.requestsTotal.WithLabelValues(op, status).Inc()
	m.requestDuration.WithLabelValues(op).Observe(duration.Seconds() * 1000)
}

func (m *s3Metrics) RecordBytes(direction string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesTransferred.WithLabelValues(direction).Add(float64(n))
}
