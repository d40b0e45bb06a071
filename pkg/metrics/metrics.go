package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records metadata for cart/favorites reconciliation runs.
type SyncMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	skipped  *prometheus.CounterVec
}

// NewSyncMetrics registers the reconciliation metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "state_sync_duration_seconds",
		Help:    "Duration of state reconciliation runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "state_sync_success",
		Help: "Reconciliation runs that flushed changes to the server.",
	}, []string{"kind"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "state_sync_failure",
		Help: "Reconciliation runs that surfaced an error.",
	}, []string{"kind"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "state_sync_skipped",
		Help: "Reconciliation runs short-circuited by an unchanged fingerprint.",
	}, []string{"kind"})
	reg.MustRegister(duration, success, failure, skipped)
	return &SyncMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		skipped:  skipped,
	}
}

// ObserveDuration records the duration for the named state kind.
func (s *SyncMetrics) ObserveDuration(kind string, duration time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.WithLabelValues(normalizeLabel(kind)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named state kind.
func (s *SyncMetrics) IncSuccess(kind string) {
	if s == nil || s.success == nil {
		return
	}
	s.success.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncFailure increments the failure counter for the named state kind.
func (s *SyncMetrics) IncFailure(kind string) {
	if s == nil || s.failure == nil {
		return
	}
	s.failure.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncSkipped increments the skip counter for the named state kind.
func (s *SyncMetrics) IncSkipped(kind string) {
	if s == nil || s.skipped == nil {
		return
	}
	s.skipped.WithLabelValues(normalizeLabel(kind)).Inc()
}

// CheckoutMetrics records payment session creation outcomes.
type CheckoutMetrics struct {
	duration *prometheus.HistogramVec
	sessions *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of checkout session creation in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	sessions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_sessions_total",
		Help: "Checkout session attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(duration, sessions)
	return &CheckoutMetrics{
		duration: duration,
		sessions: sessions,
	}
}

// Observe records one checkout attempt with its outcome label.
func (c *CheckoutMetrics) Observe(outcome string, duration time.Duration) {
	if c == nil || c.sessions == nil {
		return
	}
	label := normalizeLabel(outcome)
	c.sessions.WithLabelValues(label).Inc()
	c.duration.WithLabelValues(label).Observe(duration.Seconds())
}

func normalizeLabel(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}
