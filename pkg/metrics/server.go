package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/ofio/internal/cli/health"
	"github.com/marmos91/ofio/internal/logger"
)

// HealthCheckTimeout bounds one backend check behind /health/backend.
const HealthCheckTimeout = 5 * time.Second

// healthResponse is the body of every /health route.
type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Backend   *health.Report `json:"backend,omitempty"`
	Uptime    string         `json:"uptime,omitempty"`
}

// NewRouter builds the HTTP routes of the metrics server.
//
// Routes:
//   - GET /metrics - Prometheus exposition of the registry
//   - GET /health - Liveness with uptime
//   - GET /health/backend - Backend health check; 503 when it is unhealthy
//
// backend may be nil or a backend without a HealthCheck method; the
// backend route then reports "n/a" with 200.
func NewRouter(backend any) http.Handler {
	started := time.Now()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", Handler())

	r.Route("/health", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, healthResponse{
				Status:    health.StatusHealthy,
				Timestamp: time.Now().UTC(),
				Uptime:    time.Since(started).Round(time.Second).String(),
			})
		})
		r.Get("/backend", func(w http.ResponseWriter, req *http.Request) {
			ctx, cancel := context.WithTimeout(req.Context(), HealthCheckTimeout)
			defer cancel()

			report := health.Check(ctx, backend)
			status := http.StatusOK
			if report.Status == health.StatusUnhealthy {
				status = http.StatusServiceUnavailable
			}
			writeJSON(w, status, healthResponse{
				Status:    report.Status,
				Timestamp: time.Now().UTC(),
				Backend:   &report,
			})
		})
	})

	return r
}

// Serve exposes NewRouter(backend) on port until ctx is done.
func Serve(ctx context.Context, port int, backend any) error {
	if !IsEnabled() {
		return errors.New("metrics registry not initialized")
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           NewRouter(backend),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server listening", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requestLogger logs every request at DEBUG.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logger.Debug("metrics request completed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyDurationMs, time.Since(start).Milliseconds())
	})
}
