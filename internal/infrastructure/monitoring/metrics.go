// Package monitoring exposes Prometheus counters over the audit stream and
// run outcomes.
package monitoring

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ngoclaw/agentcore/internal/domain/valueobject"
)

// Metrics holds the collectors the core updates.
type Metrics struct {
	auditEvents *prometheus.CounterVec
	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
}

// NewMetrics registers the collectors with reg (use prometheus.DefaultRegisterer
// in production, a private registry in tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		auditEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentcore",
			Name:      "audit_events_total",
			Help:      "Audit events emitted, by event type.",
		}, []string{"event_type"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentcore",
			Name:      "runs_total",
			Help:      "Cognitive-cycle runs, by terminal status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "agentcore",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of cognitive-cycle runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
	}
	reg.MustRegister(m.auditEvents, m.runs, m.runDuration)
	return m
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(status valueobject.RunStatus, durationMS int64) {
	m.runs.WithLabelValues(string(status)).Inc()
	m.runDuration.Observe(float64(durationMS) / 1000)
}

// Sink adapts Metrics to the audit.Sink interface.
type Sink struct {
	metrics *Metrics
}

// NewSink wraps metrics as an audit sink.
func NewSink(metrics *Metrics) *Sink {
	return &Sink{metrics: metrics}
}

// Write counts the event; it never fails.
func (s *Sink) Write(_ context.Context, event valueobject.AuditEvent) error {
	s.metrics.auditEvents.WithLabelValues(string(event.EventType)).Inc()
	return nil
}
