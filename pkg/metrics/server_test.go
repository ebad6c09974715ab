package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/ofio/internal/cli/health"
)

type stubBackend struct {
	err error
}

func (b stubBackend) HealthCheck(context.Context) error { return b.err }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) healthResponse {
	t.Helper()
	var resp healthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestRouterMetrics(t *testing.T) {
	InitRegistry()
	t.Cleanup(Reset)

	w := get(t, NewRouter(nil), "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "go_goroutines"))
}

func TestRouterMetricsDisabled(t *testing.T) {
	Reset()
	w := get(t, NewRouter(nil), "/metrics")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterLiveness(t *testing.T) {
	w := get(t, NewRouter(nil), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	resp := decode(t, w)
	assert.Equal(t, health.StatusHealthy, resp.Status)
	assert.NotEmpty(t, resp.Uptime)
	assert.Nil(t, resp.Backend)
}

func TestRouterBackendHealth(t *testing.T) {
	tests := []struct {
		name    string
		backend any
		code    int
		status  string
	}{
		{"Healthy", stubBackend{}, http.StatusOK, health.StatusHealthy},
		{"Unhealthy", stubBackend{err: errors.New("bucket missing")}, http.StatusServiceUnavailable, health.StatusUnhealthy},
		{"NoChecker", struct{}{}, http.StatusOK, health.StatusUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, NewRouter(tt.backend), "/health/backend")
			assert.Equal(t, tt.code, w.Code)

			resp := decode(t, w)
			assert.Equal(t, tt.status, resp.Status)
			require.NotNil(t, resp.Backend)
			assert.Equal(t, tt.status, resp.Backend.Status)
		})
	}

	w := get(t, NewRouter(stubBackend{err: errors.New("bucket missing")}), "/health/backend")
	assert.Equal(t, "bucket missing", decode(t, w).Backend.Error)
}

func TestServeRequiresRegistry(t *testing.T) {
	Reset()
	err := Serve(context.Background(), 0, nil)
	assert.Error(t, err)
}
