package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the dispatcher's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	dispatched      *prometheus.CounterVec
	detached        *prometheus.CounterVec
	detachedGauge   prometheus.Gauge
	forwardDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is what tests usually want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_dispatch_total",
			Help: "Onboarding requests by how the bounded wait resolved.",
		}, []string{"outcome"}),
		detached: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onboarding_detached_total",
			Help: "Detached forwarding calls by eventual result.",
		}, []string{"result"}),
		detachedGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "onboarding_detached_inflight",
			Help: "Forwarding calls still running after their request was answered.",
		}),
		forwardDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "onboarding_forward_duration_seconds",
			Help:    "Latency of forwarding calls to the ingestion sink.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.dispatched, m.detached, m.detachedGauge, m.forwardDuration)
	}
	return m
}

func (m *Metrics) observeOutcome(o Outcome) {
	if m == nil {
		return
	}
	m.dispatched.WithLabelValues(o.String()).Inc()
}

func (m *Metrics) observeForward(d time.Duration) {
	if m == nil {
		return
	}
	m.forwardDuration.Observe(d.Seconds())
}

func (m *Metrics) detachStarted() {
	if m == nil {
		return
	}
	m.detachedGauge.Inc()
}

func (m *Metrics) detachFinished(err error) {
	if m == nil {
		return
	}
	m.detachedGauge.Dec()
	result := "completed"
	if err != nil {
		result = "failed"
	}
	m.detached.WithLabelValues(result).Inc()
}
