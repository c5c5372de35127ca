// Package metrics exposes the consistency counters of the learning core.
package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	registry           *prometheus.Registry
	dueRecomputations  *prometheus.CounterVec
	scopeViolations    *prometheus.CounterVec
	sessionTransitions *prometheus.CounterVec
	profileMissing     prometheus.Counter
	liveStreamsEnded   prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		dueRecomputations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prolean",
			Name:      "due_recomputations_total",
			Help:      "Recomputations of a student's total amount due, by whether the stored value changed.",
		}, []string{"outcome"}),
		scopeViolations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prolean",
			Name:      "scope_violations_total",
			Help:      "Operations rejected because the actor was outside its city scope.",
		}, []string{"operation"}),
		sessionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "prolean",
			Name:      "session_transitions_total",
			Help:      "Session status transitions, by target status.",
		}, []string{"status"}),
		profileMissing: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "prolean",
			Name:      "profile_missing_total",
			Help:      "Authenticated requests whose user had no profile.",
		}),
		liveStreamsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "prolean",
			Name:      "live_streams_force_ended_total",
			Help:      "Live streams ended because their session completed.",
		}),
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.dueRecomputations,
		m.scopeViolations,
		m.sessionTransitions,
		m.profileMissing,
		m.liveStreamsEnded,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) DueRecomputed(changed bool) {
	if m == nil {
		return
	}
	outcome := "unchanged"
	if changed {
		outcome = "changed"
	}
	m.dueRecomputations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ScopeViolation(operation string) {
	if m == nil {
		return
	}
	m.scopeViolations.WithLabelValues(operation).Inc()
}

func (m *Metrics) SessionTransition(status string) {
	if m == nil {
		return
	}
	m.sessionTransitions.WithLabelValues(status).Inc()
}

func (m *Metrics) ProfileMissing() {
	if m == nil {
		return
	}
	m.profileMissing.Inc()
}

func (m *Metrics) LiveStreamsEnded(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.liveStreamsEnded.Add(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
