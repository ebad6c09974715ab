// Package metrics owns the Prometheus registry shared by every collector.
//
// Collectors in pkg/metrics/prometheus return nil until InitRegistry has
// been called; components treat a nil collector as "metrics disabled" and
// skip recording entirely.
//
// Usage:
//
//	metrics.InitRegistry()
//	eng, _ := aio.New(svc, cfg, aio.WithMetrics(prometheus.NewAIOMetrics()))
//	go metrics.Serve(ctx, 9090, backend)
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry creates the registry with Go runtime and process collectors.
// Calling it again keeps the existing registry.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()

	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// Reset drops the registry. Intended for tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	registry = nil
}

// Handler returns the HTTP handler exposing the registry.
func Handler() http.Handler {
	reg := GetRegistry()
	if reg == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
