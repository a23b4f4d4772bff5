package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestHealthBeforeAndAfterReady(t *testing.T) {
	health := &Health{}
	r := Router(health, nil)

	code, _ := get(t, r, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	health.MarkReady()
	code, body := get(t, r, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", body)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "autopilot_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	code, body := get(t, Router(&Health{}, reg), "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "autopilot_test_total 1")
}

func TestMetricsAbsentWithoutGatherer(t *testing.T) {
	code, _ := get(t, Router(&Health{}, nil), "/metrics")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestNewServer(t *testing.T) {
	srv := New(9090, http.NotFoundHandler())
	assert.Equal(t, ":9090", srv.Addr)
	assert.NotZero(t, srv.ReadTimeout)
}
