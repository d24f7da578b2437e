package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PortalMetrics exposes counters/histograms for backend calls and appointment actions.
type PortalMetrics struct {
	backendTotal   *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec
	actionsTotal   *prometheus.CounterVec
	staleDiscarded prometheus.Counter
	sessionsOpen   prometheus.Gauge
	cacheLookups   *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *PortalMetrics {
	m := &PortalMetrics{
		backendTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Total requests sent to the scheduling backend",
		}, []string{"operation", "outcome"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Latency of scheduling backend requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "appointments",
			Name:      "actions_total",
			Help:      "Cancel and reschedule submissions by outcome",
		}, []string{"action", "outcome"}),
		staleDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "reschedule",
			Name:      "stale_responses_total",
			Help:      "Slot or availability responses dropped because a newer selection superseded them",
		}),
		sessionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "portal",
			Subsystem: "reschedule",
			Name:      "sessions_open",
			Help:      "Reschedule sessions currently held in memory",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "cache",
			Name:      "availability_lookups_total",
			Help:      "Doctor availability cache lookups by result",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.backendTotal, m.backendLatency, m.actionsTotal, m.staleDiscarded, m.sessionsOpen, m.cacheLookups)
	return m
}

func (m *PortalMetrics) ObserveBackend(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.backendTotal.WithLabelValues(operation, outcome).Inc()
	m.backendLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *PortalMetrics) ObserveAction(action, outcome string) {
	if m == nil {
		return
	}
	m.actionsTotal.WithLabelValues(action, outcome).Inc()
}

func (m *PortalMetrics) StaleDiscarded() {
	if m == nil {
		return
	}
	m.staleDiscarded.Inc()
}

func (m *PortalMetrics) SetSessionsOpen(n int) {
	if m == nil {
		return
	}
	m.sessionsOpen.Set(float64(n))
}

func (m *PortalMetrics) ObserveCache(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}
