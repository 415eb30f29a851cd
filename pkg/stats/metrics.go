package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	attempts *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// WithRegisterer enables Prometheus instrumentation on the store,
// registering the collectors with the given registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Store) {
		m := &metrics{
			attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "infragate",
				Subsystem: "dispatch",
				Name:      "attempts_total",
				Help:      "Backend attempts by task, backend and outcome.",
			}, []string{"task", "backend", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "infragate",
				Subsystem: "dispatch",
				Name:      "attempt_duration_seconds",
				Help:      "Backend attempt latency by task and backend.",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
			}, []string{"task", "backend"}),
		}
		reg.MustRegister(m.attempts, m.latency)
		s.metrics = m
	}
}

func (m *metrics) observe(task, backend string, success bool, latency time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.attempts.WithLabelValues(task, backend, outcome).Inc()
	m.latency.WithLabelValues(task, backend).Observe(latency.Seconds())
}
