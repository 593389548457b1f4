package observability

import (
	"context"
	"time"

	"github.com/aretw0/handoff/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine collectors.
type Metrics struct {
	events      *prometheus.CounterVec
	transitions *prometheus.CounterVec
	outcomes    *prometheus.CounterVec
	faults      *prometheus.CounterVec
	checks      prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handoff_events_total",
				Help: "Total number of session events recorded",
			},
			[]string{"type"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handoff_transitions_total",
				Help: "Total number of committed agent transitions",
			},
			[]string{"from", "to", "kind"},
		),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handoff_check_outcomes_total",
				Help: "Transition checks by outcome status",
			},
			[]string{"status"},
		),
		faults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handoff_condition_faults_total",
				Help: "Condition predicates that failed or panicked",
			},
			[]string{"kind"},
		),
		checks: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "handoff_check_duration_seconds",
				Help:    "Duration of transition checks",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),
	}
	for _, c := range []prometheus.Collector{m.events, m.transitions, m.outcomes, m.faults, m.checks} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks records every lifecycle callback.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnEvent: func(_ context.Context, _ string, e domain.Event) {
			m.events.WithLabelValues(string(e.Type)).Inc()
		},
		OnTransition: func(_ context.Context, te *domain.TransitionEvent) {
			m.transitions.WithLabelValues(te.From, te.To, string(te.Kind)).Inc()
		},
		OnOutcome: func(_ context.Context, _ string, o domain.Outcome, d time.Duration) {
			m.outcomes.WithLabelValues(string(o.Status)).Inc()
			m.checks.Observe(d.Seconds())
		},
		OnConditionFault: func(_ context.Context, _ string, f *domain.ConditionEvaluationFault) {
			m.faults.WithLabelValues(string(f.Kind)).Inc()
		},
	}
}
