package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the scheduler's Prometheus instruments
type Metrics struct {
	Cycles          *prometheus.CounterVec
	Dispatches      *prometheus.CounterVec
	ChannelOutcomes *prometheus.CounterVec
	ChannelErrors   *prometheus.CounterVec
	CycleDuration   prometheus.Histogram
	Candidates      prometheus.Gauge
}

// NewMetrics creates the instruments and registers them with reg.
// A nil reg leaves them unregistered (tests, run-once).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autopilot_cycles_total",
				Help: "Scheduler cycles by result (ran, skipped, lock_error, list_error).",
			}, []string{"result"}),

		Dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autopilot_dispatches_total",
				Help: "Jobs enqueued per channel.",
			}, []string{"channel"}),

		ChannelOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autopilot_channel_outcomes_total",
				Help: "Channel evaluations by outcome.",
			}, []string{"channel", "outcome"}),

		ChannelErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "autopilot_channel_errors_total",
				Help: "Channel evaluations aborted by an error or panic.",
			}, []string{"channel"}),

		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "autopilot_cycle_duration_seconds",
				Help:    "Wall time of cycles that held the lock.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			}),

		Candidates: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "autopilot_candidate_sites",
				Help: "Sites with at least one channel enabled in the last cycle.",
			}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Cycles,
			m.Dispatches,
			m.ChannelOutcomes,
			m.ChannelErrors,
			m.CycleDuration,
			m.Candidates,
		)
	}
	return m
}
