package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	badgerhandle "github.com/marmos91/ofio/pkg/handle/badger"
	"github.com/marmos91/ofio/pkg/metrics"
)

// badgerMetrics is the Prometheus implementation of badgerhandle.Metrics.
type badgerMetrics struct {
	conflicts prometheus.Counter
	dbSize    *prometheus.GaugeVec
}

// NewBadgerMetrics creates Prometheus-backed BadgerDB metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewBadgerMetrics() badgerhandle.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &badgerMetrics{
		conflicts: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "ofio_badger_txn_conflicts_total",
				Help: "Total number of BadgerDB transactions retried after a conflict",
			},
		),
		dbSize: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ofio_badger_size_bytes",
				Help: "BadgerDB on-disk size by component",
			},
			[]string{"component"}, // "lsm", "vlog"
		),
	}
}

func (m *badgerMetrics) RecordConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

func (m *badgerMetrics) RecordDBSize(lsm, vlog int64) {
	if m == nil {
		return
	}
	m.dbSize.WithLabelValues("lsm").Set(float64(lsm))
	m.dbSize.WithLabelValues("vlog").Set(float64(vlog))
}
