// Package server exposes the liveness probe and Prometheus metrics of a
// scheduler process.
package server

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Health reports 503 until MarkReady is called, 200 afterwards. It does not
// track cycle outcomes.
type Health struct {
	ready atomic.Bool
}

// MarkReady flips the probe to healthy
func (h *Health) MarkReady() {
	h.ready.Store(true)
}

// Ready reports whether startup completed
func (h *Health) Ready() bool {
	return h.ready.Load()
}

// ServeHTTP implements http.Handler
func (h *Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !h.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("starting"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Router mounts /health and, when gatherer is non-nil, /metrics
func Router(health *Health, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/health", health)
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("site-autopilot scheduler"))
	})
	return r
}

// New constructs an *http.Server with conservative timeouts
func New(port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
