// Package notification delivers workflow events to downstream services.
//
// Delivery is fire-and-forget from the coordinators' point of view: the
// Dispatcher bounds each send with a timeout, logs and counts failures, and
// never reports them back. A failed notification never undoes the state
// transition it followed.
package notification

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"
)

// Event names a workflow milestone downstream services subscribe to.
type Event string

const (
	EventSchoolCreated          Event = "AUTO_ECOLE_CREEE"
	EventSchoolPaymentValidated Event = "AUTO_ECOLE_PAIEMENT_VALIDE"
	EventSchoolAuthorized       Event = "AUTO_ECOLE_AUTORISATION_PROVISOIRE"
	EventSchoolStatusChanged    Event = "AUTO_ECOLE_STATUT_MODIFIE"
	EventCandidateEnrolled      Event = "CANDIDAT_ENROLE"
	EventCandidateStatusChanged Event = "CANDIDAT_STATUT_MODIFIE"
	EventExamScheduled          Event = "EXAMEN_PROGRAMME"
	EventExamPlanned            Event = "EXAMEN_PLANIFIE"
	EventExamFinished           Event = "EXAMEN_TERMINE"
	EventPermitIssuance         Event = "PERMIS_A_GENERER"
)

// Message is the payload published for an event.
type Message struct {
	Event      Event             `json:"event"`
	EntityType string            `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	Reference  string            `json:"reference,omitempty"`
	Status     string            `json:"status,omitempty"`
	Revision   int64             `json:"revision,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Key identifies a message for de-duplication. Revision is the entity's
// last update time in nanoseconds, so each committed step gets its own key
// while a re-sent message for the same step does not.
func (m Message) Key() string {
	return string(m.Event) + ":" + m.EntityID + ":" + m.Status + ":" + strconv.FormatInt(m.Revision, 10)
}

// Sink delivers a message somewhere.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// Fanout sends to every sink and joins their errors.
type Fanout []Sink

func (f Fanout) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range f {
		if err := s.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes messages to the structured log.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "notification",
		"event", msg.Event,
		"entity_type", msg.EntityType,
		"entity_id", msg.EntityID,
		"reference", msg.Reference,
		"status", msg.Status,
	)
	return nil
}

// Dispatcher is what coordinators hold. Notify never fails.
type Dispatcher struct {
	sink    Sink
	timeout time.Duration
	logger  *slog.Logger
	metrics *Metrics
}

type Option func(*Dispatcher)

func WithTimeout(d time.Duration) Option {
	return func(n *Dispatcher) { n.timeout = d }
}

func WithLogger(logger *slog.Logger) Option {
	return func(n *Dispatcher) { n.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(n *Dispatcher) { n.metrics = m }
}

func NewDispatcher(sink Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{sink: sink, timeout: 3 * time.Second}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Notify(ctx context.Context, msg Message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	err := d.sink.Send(ctx, msg)
	if d.metrics != nil {
		d.metrics.observe(msg.Event, err)
	}
	if err != nil && d.logger != nil {
		d.logger.WarnContext(ctx, "notification delivery failed",
			"event", msg.Event,
			"entity_id", msg.EntityID,
			"error", err,
		)
	}
}
