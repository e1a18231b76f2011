package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts exam office activity.
type Metrics struct {
	Scheduled   prometheus.Counter
	Transitions *prometheus.CounterVec
	Results     *prometheus.CounterVec
	HandOffs    *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Scheduled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dgtt_exam_scheduled_total",
			Help: "Exams programmed from validated dossiers",
		}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dgtt_exam_transitions_total",
			Help: "Exam status transitions applied, by event",
		}, []string{"event"}),
		Results: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dgtt_exam_results_total",
			Help: "Exams graded, by type and outcome",
		}, []string{"type", "passed"}),
		HandOffs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dgtt_exam_candidate_handoffs_total",
			Help: "Candidate status updates driven by exams, by target status and result",
		}, []string{"target", "result"}),
	}
}

func (m *Metrics) IncrementScheduled() {
	m.Scheduled.Inc()
}

func (m *Metrics) IncrementTransition(event string) {
	m.Transitions.WithLabelValues(event).Inc()
}

func (m *Metrics) IncrementResult(examType string, passed bool) {
	outcome := "false"
	if passed {
		outcome = "true"
	}
	m.Results.WithLabelValues(examType, outcome).Inc()
}

func (m *Metrics) IncrementHandOff(target, result string) {
	m.HandOffs.WithLabelValues(target, result).Inc()
}
