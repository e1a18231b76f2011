package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	auditmetrics "dgtt/internal/audit/metrics"
	dErrors "dgtt/pkg/domain-errors"
	"dgtt/pkg/identifier"
	"dgtt/pkg/requestcontext"
)

// Store persists audit entries. Append and PurgeBefore are the only mutations.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
	Count(ctx context.Context, groupBy GroupBy, filter Filter) ([]Count, error)
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Record describes one audited mutation. Actor fields default to the
// principal carried by the context.
type Record struct {
	Action     Action
	EntityType EntityType
	EntityID   string
	Message    string
	ActorID    string
	ActorRole  string
	Before     any
	After      any
}

// Service classifies and appends audit entries and answers compliance queries.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *auditmetrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *auditmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record derives the security level, stamps actor and request metadata, and
// appends the entry. Called inside the caller's transaction when one exists.
func (s *Service) Record(ctx context.Context, rec Record) (Entry, error) {
	if rec.Action == "" || rec.EntityType == "" || rec.EntityID == "" {
		return Entry{}, dErrors.New(dErrors.CodeValidation, "audit record requires action and entity")
	}

	actor := requestcontext.Actor(ctx)
	if rec.ActorID == "" {
		rec.ActorID = actor.ID
		if rec.ActorRole == "" {
			rec.ActorRole = string(actor.Role)
		}
	}

	before, err := snapshot(rec.Before)
	if err != nil {
		return Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to serialize audit snapshot")
	}
	after, err := snapshot(rec.After)
	if err != nil {
		return Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to serialize audit snapshot")
	}

	now := requestcontext.Now(ctx)
	entry := Entry{
		ID:         identifier.Sortable(now),
		Action:     rec.Action,
		Level:      LevelFor(rec.Action),
		EntityType: rec.EntityType,
		EntityID:   rec.EntityID,
		ActorID:    rec.ActorID,
		ActorRole:  rec.ActorRole,
		Message:    rec.Message,
		Before:     before,
		After:      after,
		ClientIP:   requestcontext.ClientIP(ctx),
		UserAgent:  requestcontext.UserAgent(ctx),
		RequestID:  requestcontext.RequestID(ctx),
		CreatedAt:  now,
	}

	if err := s.store.Append(ctx, entry); err != nil {
		if s.metrics != nil {
			s.metrics.IncrementRecordFailure()
		}
		return Entry{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to append audit entry")
	}

	if s.metrics != nil {
		s.metrics.IncrementRecorded(string(entry.Level))
	}
	if s.logger != nil {
		level := slog.LevelInfo
		if entry.NeedsAlert() {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, string(entry.Action),
			"log_type", "audit",
			"entity_type", entry.EntityType,
			"entity_id", entry.EntityID,
			"actor_id", entry.ActorID,
			"security_level", entry.Level,
			"request_id", entry.RequestID,
		)
	}
	return entry, nil
}

// Query returns entries matching filter, newest first.
func (s *Service) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	if filter.MinLevel != "" && !filter.MinLevel.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown security level %q", filter.MinLevel)
	}
	entries, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query audit entries")
	}
	return entries, nil
}

// History returns the trail of a single entity.
func (s *Service) History(ctx context.Context, entityType EntityType, entityID string) ([]Entry, error) {
	return s.Query(ctx, Filter{EntityType: entityType, EntityID: entityID})
}

// Counts aggregates entries matching filter along one dimension.
func (s *Service) Counts(ctx context.Context, groupBy GroupBy, filter Filter) ([]Count, error) {
	if !groupBy.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown grouping %q", groupBy)
	}
	counts, err := s.store.Count(ctx, groupBy, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count audit entries")
	}
	return counts, nil
}

// NeedsAlert returns entries at or above minLevel recorded within the
// trailing window ending now.
func (s *Service) NeedsAlert(ctx context.Context, minLevel Level, window time.Duration) ([]Entry, error) {
	if minLevel == "" {
		minLevel = DefaultAlertLevel
	}
	if window <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "alert window must be positive")
	}
	now := requestcontext.Now(ctx)
	return s.Query(ctx, Filter{MinLevel: minLevel, From: now.Add(-window)})
}

// Purge deletes entries created strictly before cutoff and returns how many
// were removed.
func (s *Service) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	removed, err := s.store.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to purge audit entries")
	}
	if s.metrics != nil {
		s.metrics.AddPurged(removed)
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "audit entries purged",
			"cutoff", cutoff,
			"removed", removed,
		)
	}
	return removed, nil
}

func snapshot(v any) (json.RawMessage, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return t, nil
	case []byte:
		return json.RawMessage(t), nil
	}
	return json.Marshal(v)
}
