package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the audit trail.
type Metrics struct {
	EntriesRecorded *prometheus.CounterVec
	EntriesPurged   prometheus.Counter
	RecordFailures  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		EntriesRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dgtt_audit_entries_recorded_total",
			Help: "Audit entries appended, by security level",
		}, []string{"level"}),
		EntriesPurged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dgtt_audit_entries_purged_total",
			Help: "Audit entries removed by retention purge",
		}),
		RecordFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dgtt_audit_record_failures_total",
			Help: "Audit appends that failed",
		}),
	}
}

func (m *Metrics) IncrementRecorded(level string) {
	m.EntriesRecorded.WithLabelValues(level).Inc()
}

func (m *Metrics) AddPurged(n int64) {
	m.EntriesPurged.Add(float64(n))
}

func (m *Metrics) IncrementRecordFailure() {
	m.RecordFailures.Inc()
}
