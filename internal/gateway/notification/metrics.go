package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts notification outcomes by event.
type Metrics struct {
	Delivered *prometheus.CounterVec
	Failed    *prometheus.CounterVec
	Skipped   prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		Delivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dgtt_notifications_delivered_total",
			Help: "Notifications delivered, by event",
		}, []string{"event"}),
		Failed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dgtt_notifications_failed_total",
			Help: "Notifications that failed and were dropped, by event",
		}, []string{"event"}),
		Skipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dgtt_notifications_deduplicated_total",
			Help: "Notifications suppressed because they were already sent",
		}),
	}
}

func (m *Metrics) observe(event Event, err error) {
	if err != nil {
		m.Failed.WithLabelValues(string(event)).Inc()
		return
	}
	m.Delivered.WithLabelValues(string(event)).Inc()
}
