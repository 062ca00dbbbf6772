package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SweepMetrics records per-kind sweep outcomes.
type SweepMetrics struct {
	duration *prometheus.HistogramVec
	claimed  *prometheus.CounterVec
	failures *prometheus.CounterVec
}

// NewSweepMetrics registers the sweep metrics on the provided registerer.
// A nil registerer yields a no-op recorder, which tests use.
func NewSweepMetrics(reg prometheus.Registerer) *SweepMetrics {
	if reg == nil {
		return &SweepMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sweep_duration_seconds",
		Help:    "Duration of one sweep tick in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	claimed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sweep_entities_claimed_total",
		Help: "Expired entities claimed by sweeps.",
	}, []string{"kind"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sweep_entity_failures_total",
		Help: "Entities whose lifecycle handler returned an error.",
	}, []string{"kind"})
	reg.MustRegister(duration, claimed, failures)
	return &SweepMetrics{
		duration: duration,
		claimed:  claimed,
		failures: failures,
	}
}

// ObserveDuration records the duration of one tick for the kind.
func (m *SweepMetrics) ObserveDuration(kind string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(kind).Observe(d.Seconds())
}

// AddClaimed counts entities claimed by a tick.
func (m *SweepMetrics) AddClaimed(kind string, n int) {
	if m == nil || m.claimed == nil {
		return
	}
	m.claimed.WithLabelValues(kind).Add(float64(n))
}

// IncFailure counts a handler failure.
func (m *SweepMetrics) IncFailure(kind string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}
