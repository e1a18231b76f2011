package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts accreditation activity.
type Metrics struct {
	SchoolsCreated   prometheus.Counter
	Transitions      *prometheus.CounterVec
	PaymentsRejected prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		SchoolsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dgtt_school_created_total",
			Help: "Accreditation requests filed",
		}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dgtt_school_transitions_total",
			Help: "School status transitions applied, by event",
		}, []string{"event"}),
		PaymentsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dgtt_school_payments_rejected_total",
			Help: "Payment references refused by the gateway",
		}),
	}
}

func (m *Metrics) IncrementCreated() {
	m.SchoolsCreated.Inc()
}

func (m *Metrics) IncrementTransition(event string) {
	m.Transitions.WithLabelValues(event).Inc()
}

func (m *Metrics) IncrementPaymentRejected() {
	m.PaymentsRejected.Inc()
}
