// Package metrics holds the Prometheus instrumentation exposed on /metrics.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	namespace   = "bookfoldar"
	maxLabelLen = 64
)

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	accessChecks     *prometheus.CounterVec
	checkoutSessions *prometheus.CounterVec
	webhookEvents    *prometheus.CounterVec
	trialStarts      prometheus.Counter
}

// New creates the metrics on a private registry together with the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		accessChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "access",
				Name:      "checks_total",
				Help:      "Access checks by resolved tier",
			},
			[]string{"tier"},
		),
		checkoutSessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "checkout",
				Name:      "sessions_total",
				Help:      "Checkout session requests by outcome",
			},
			[]string{"outcome"},
		),
		webhookEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "webhook",
				Name:      "events_total",
				Help:      "Webhook deliveries by event type and outcome",
			},
			[]string{"type", "outcome"},
		),
		trialStarts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "trial",
				Name:      "starts_total",
				Help:      "Trials created",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.accessChecks,
		m.checkoutSessions,
		m.webhookEvents,
		m.trialStarts,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) AccessCheck(tier string) {
	if m == nil {
		return
	}
	m.accessChecks.WithLabelValues(sanitizeLabel(tier)).Inc()
}

func (m *Metrics) CheckoutSession(outcome string) {
	if m == nil {
		return
	}
	m.checkoutSessions.WithLabelValues(sanitizeLabel(outcome)).Inc()
}

func (m *Metrics) WebhookEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(sanitizeLabel(eventType), sanitizeLabel(outcome)).Inc()
}

func (m *Metrics) TrialStarted() {
	if m == nil {
		return
	}
	m.trialStarts.Inc()
}

func sanitizeLabel(s string) string {
	if s == "" {
		return "unknown"
	}
	s = strings.ReplaceAll(s, " ", "_")
	if len(s) > maxLabelLen {
		s = s[:maxLabelLen]
	}
	return s
}
