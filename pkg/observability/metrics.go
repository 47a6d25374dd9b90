// Package observability exposes engine lifecycle hooks as Prometheus
// metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/loom/pkg/domain"
)

// Metrics holds the engine collectors.
type Metrics struct {
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	bailouts    *prometheus.CounterVec
	completions *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg (use
// prometheus.DefaultRegisterer for the process default).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loom_transitions_total",
				Help: "Successful transitions taken, by machine and edge.",
			},
			[]string{"machine", "from", "to"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loom_validation_failures_total",
				Help: "Event validation failures recorded, by machine and producing state.",
			},
			[]string{"machine", "from"},
		),
		bailouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loom_bailouts_total",
				Help: "Fatal bail-outs, by machine and originating state.",
			},
			[]string{"machine", "from"},
		),
		completions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loom_completions_total",
				Help: "Instances reaching their terminal state, by machine.",
			},
			[]string{"machine"},
		),
	}
	reg.MustRegister(m.transitions, m.failures, m.bailouts, m.completions)
	return m
}

// Hooks returns lifecycle hooks feeding the collectors. Merge them onto a
// context before starting instances.
func (m *Metrics) Hooks() domain.Hooks {
	return domain.Hooks{
		OnTransition: func(machine string, entry domain.TrailEntry) {
			m.transitions.WithLabelValues(machine, entry.From, entry.To).Inc()
		},
		OnFailure: func(machine string, entry domain.TrailEntry) {
			m.failures.WithLabelValues(machine, entry.From).Inc()
		},
		OnBailout: func(machine, from string, _ any) {
			m.bailouts.WithLabelValues(machine, from).Inc()
		},
		OnComplete: func(machine string, _ domain.Trail) {
			m.completions.WithLabelValues(machine).Inc()
		},
	}
}
