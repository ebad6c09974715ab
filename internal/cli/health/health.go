// Package health reports backend reachability for CLI output.
package health

import (
	"context"
	"time"
)

// Status values of a Report.
const (
	StatusHealthy     = "healthy"
	StatusUnhealthy   = "unhealthy"
	StatusUnsupported = "n/a"
)

// Checker is implemented by backends that can check their store.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Report is the outcome of one health check.
type Report struct {
	Status  string        `json:"status" yaml:"status"`
	Latency time.Duration `json:"latency_ns,omitempty" yaml:"latency,omitempty"`
	Error   string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Check runs the health check of backend if it implements Checker.
func Check(ctx context.Context, backend any) Report {
	c, ok := backend.(Checker)
	if !ok {
		return Report{Status: StatusUnsupported}
	}

	start := time.Now()
	err := c.HealthCheck(ctx)
	r := Report{Status: StatusHealthy, Latency: time.Since(start)}
	if err != nil {
		r.Status = StatusUnhealthy
		r.Error = err.Error()
	}
	return r
}
