package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts enrollment activity.
type Metrics struct {
	Enrolled    prometheus.Counter
	Transitions *prometheus.CounterVec
	Evaluations *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Enrolled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dgtt_candidate_enrolled_total",
			Help: "Candidates enrolled by authorized schools",
		}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dgtt_candidate_transitions_total",
			Help: "Candidate status transitions applied, by event",
		}, []string{"event"}),
		Evaluations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dgtt_candidate_evaluations_total",
			Help: "Practice evaluations recorded, by type and outcome",
		}, []string{"type", "passed"}),
	}
}

func (m *Metrics) IncrementEnrolled() {
	m.Enrolled.Inc()
}

func (m *Metrics) IncrementTransition(event string) {
	m.Transitions.WithLabelValues(event).Inc()
}

func (m *Metrics) IncrementEvaluation(evaluationType string, passed bool) {
	outcome := "false"
	if passed {
		outcome = "true"
	}
	m.Evaluations.WithLabelValues(evaluationType, outcome).Inc()
}
