// Package service enrolls candidates and drives their dossier through
// training, evaluations and validation up to permit delivery.
//
// Steps share the school pipeline's shape: guard and mutation inside the
// store's Execute, audit in the same transaction, notification after commit.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/trace"

	"dgtt/internal/audit"
	candidatemetrics "dgtt/internal/candidate/metrics"
	"dgtt/internal/candidate/models"
	"dgtt/internal/gateway/documents"
	"dgtt/internal/gateway/notification"
	schoolmodels "dgtt/internal/school/models"
	id "dgtt/pkg/domain"
	dErrors "dgtt/pkg/domain-errors"
	"dgtt/pkg/identifier"
	"dgtt/pkg/platform/sentinel"
	"dgtt/pkg/platform/tracing"
	txcontext "dgtt/pkg/platform/tx"
	"dgtt/pkg/requestcontext"
)

// DefaultFee is the enrollment fee when none is configured.
const DefaultFee = 50000

type Store interface {
	Create(ctx context.Context, c *models.Candidate) error
	FindByID(ctx context.Context, candidateID id.CandidateID) (*models.Candidate, error)
	FindByLicenseNumber(ctx context.Context, number string) (*models.Candidate, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Candidate, error)
	ListBySchool(ctx context.Context, schoolID id.SchoolID) ([]*models.Candidate, error)
	CountByStatus(ctx context.Context) (map[models.Status]int, error)
	Execute(ctx context.Context, candidateID id.CandidateID, validate func(*models.Candidate) error, mutate func(*models.Candidate)) (*models.Candidate, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, rec audit.Record) (audit.Entry, error)
}

type PaymentGateway interface {
	Verify(ctx context.Context, reference string, amount float64) (bool, error)
}

type Notifier interface {
	Notify(ctx context.Context, msg notification.Message)
}

// SchoolDirectory resolves the enrolling school and records the candidate on it.
type SchoolDirectory interface {
	Get(ctx context.Context, schoolID id.SchoolID) (*schoolmodels.School, error)
	AttachCandidate(ctx context.Context, schoolID id.SchoolID, candidateID id.CandidateID) error
}

// Service coordinates candidate enrollment.
type Service struct {
	store    Store
	audit    AuditRecorder
	payments PaymentGateway
	schools  SchoolDirectory
	notifier Notifier
	tx       txcontext.Runner
	ids      *identifier.Generator
	fee      float64
	logger   *slog.Logger
	metrics  *candidatemetrics.Metrics
	tracer   trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *candidatemetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTx(runner txcontext.Runner) Option {
	return func(s *Service) { s.tx = runner }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithIdentifiers(g *identifier.Generator) Option {
	return func(s *Service) { s.ids = g }
}

// WithFee sets the enrollment fee recorded on new candidates.
func WithFee(fee float64) Option {
	return func(s *Service) {
		if fee > 0 {
			s.fee = fee
		}
	}
}

func New(store Store, recorder AuditRecorder, payments PaymentGateway, schools SchoolDirectory, opts ...Option) *Service {
	s := &Service{
		store:    store,
		audit:    recorder,
		payments: payments,
		schools:  schools,
		tx:       txcontext.NewInMemory(),
		ids:      identifier.New(),
		fee:      DefaultFee,
		logger:   slog.Default(),
		tracer:   tracing.Tracer("dgtt/candidate"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enroll registers a candidate with an authorized school. The candidate
// starts in ENROLE with its license and evaluation numbers minted.
func (s *Service) Enroll(ctx context.Context, req *models.EnrollRequest) (_ *models.Candidate, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "candidate.Enroll", req.SchoolID.String())
	defer func() { tracing.End(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	school, err := s.schools.Get(ctx, req.SchoolID)
	if err != nil {
		return nil, err
	}
	if !school.CanEnrollCandidates() {
		return nil, dErrors.Newf(dErrors.CodeGuardNotSatisfied, "school %s cannot enroll candidates", school.Status)
	}

	now := requestcontext.Now(ctx)
	license := s.ids.LicenseNumber()
	candidate := &models.Candidate{
		ID:               id.NewCandidateID(),
		SchoolID:         school.ID,
		LicenseNumber:    license,
		EvaluationNumber: s.ids.EvaluationNumber(),
		QRPayload:        documents.CandidateQR(license),
		Status:           models.StatusEnrole,
		LastName:         req.LastName,
		FirstName:        req.FirstName,
		BirthDate:        req.BirthDate,
		BirthPlace:       req.BirthPlace,
		NationalID:       req.NationalID,
		Email:            req.Email,
		Phone:            req.Phone,
		Address:          req.Address,
		City:             req.City,
		Category:         req.Category,
		PaymentAmount:    s.fee,
		Documents:        map[models.DocumentKind]models.Document{},
		Evaluations:      []models.Evaluation{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.schools.AttachCandidate(txCtx, school.ID, candidate.ID); err != nil {
			return err
		}
		if err := s.store.Create(txCtx, candidate); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "license number already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create candidate")
		}
		_, err := s.audit.Record(txCtx, audit.Record{
			Action:     audit.ActionCreation,
			EntityType: audit.EntityCandidate,
			EntityID:   candidate.ID.String(),
			Message:    "Candidat enrôlé " + candidate.LicenseNumber + " par " + school.RequestNumber,
			After:      candidate,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementEnrolled()
	}
	s.logger.InfoContext(ctx, "candidate enrolled",
		"candidate_id", candidate.ID,
		"school_id", school.ID,
		"license_number", candidate.LicenseNumber,
	)
	s.notify(ctx, notification.EventCandidateEnrolled, candidate)
	return candidate, nil
}

func (s *Service) RequestPayment(ctx context.Context, candidateID id.CandidateID) (_ *models.Candidate, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "candidate.RequestPayment", candidateID.String())
	defer func() { tracing.End(span, err) }()

	return s.transition(ctx, candidateID, step{
		event:   models.EventRequestPayment,
		action:  audit.ActionPaiement,
		message: "Paiement demandé",
		notify:  notification.EventCandidateStatusChanged,
	})
}

// ConfirmPayment verifies reference with the gateway and moves the candidate
// to PRE_ENROLE. A refused reference changes nothing.
func (s *Service) ConfirmPayment(ctx context.Context, candidateID id.CandidateID, reference string) (_ *models.Candidate, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "candidate.ConfirmPayment", candidateID.String())
	defer func() { tracing.End(span, err) }()

	if reference == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "reference is required")
	}
	current, err := s.Get(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if _, ok := models.Machine().Target(current.Status, models.EventConfirmPayment); !ok {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition, "cannot confirm payment of a candidate in %s", current.Status)
	}

	ok, err := s.payments.Verify(ctx, reference, current.PaymentAmount)
	if err != nil {
		if dErrors.Is(err) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "payment gateway unavailable")
	}
	if !ok {
		s.logger.WarnContext(ctx, "payment refused",
			"candidate_id", candidateID,
			"reference", reference,
		)
		return nil, dErrors.New(dErrors.CodePaymentInvalid, "payment reference was refused")
	}

	return s.transition(ctx, candidateID, step{
		event:   models.EventConfirmPayment,
		action:  audit.ActionPaiement,
		message: "Paiement confirmé, référence " + reference,
		notify:  notification.EventCandidateStatusChanged,
		prepare: func(c *models.Candidate, now time.Time) {
			c.PaymentReference = reference
			c.PaidAt = &now
		},
	})
}

// AttachDocument files or replaces a dossier document. The status is unchanged.
func (s *Service) AttachDocument(ctx context.Context, candidateID id.CandidateID, req *models.AttachDocumentRequest) (_ *models.Candidate, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "candidate.AttachDocument", candidateID.String())
	defer func() { tracing.End(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.transition(ctx, candidateID, step{
		keepStatus: true,
		action:     audit.ActionUploadFichier,
		message:    "Document " + string(req.Kind) + " déposé",
		check: func(c *models.Candidate) error {
			if models.Machine().IsTerminal(c.Status) || c.Status == models.StatusSuspendu {
				return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot file documents for a candidate in %s", c.Status)
			}
			return nil
		},
		prepare: func(c *models.Candidate, now time.Time) {
			if c.Documents == nil {
				c.Documents = make(map[models.DocumentKind]models.Document)
			}
			c.Documents[req.Kind] = models.Document{Kind: req.Kind, URL: req.URL, UploadedAt: now}
		},
	})
}

func (s *Service) StartTraining(ctx context.Context, candidateID id.CandidateID) (_ *models.Candidate, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "candidate.StartTraining", candidateID.String())
	defer func() { tracing.End(span, err) }()

	return s.transition(ctx, candidateID, step{
		event:   models.EventStartTraining,
		action:  audit.ActionModification,
		message: "Formation démarrée",
		notify:  notification.EventCandidateStatusChanged,
	})
}

// RecordEvaluation appends a practice evaluation. The first evaluation moves
// a candidate in training to EVALUATION_EN_COURS. Each type allows at most
// MaxAttempts attempts, numbered in order, and none after a pass.
func (s *Service) RecordEvaluation(ctx context.Context, candidateID id.CandidateID, req *models.RecordEvaluationRequest) (_ *models.Candidate, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "candidate.RecordEvaluation", candidateID.String())
	defer func() { tracing.End(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	passed := models.EvaluationPassed(req.Score, req.Errors)

	updated, err := s.transition(ctx, candidateID, step{
		eventFor: func(c *models.Candidate) (models.Event, bool) {
			if c.Status == models.StatusEnFormation {
				return models.EventStartEvaluation, true
			}
			return "", false
		},
		action:  audit.ActionEvaluation,
		message: "Évaluation " + string(req.Type) + " passage " + strconv.Itoa(req.PassNumber) + resultLabel(passed),
		check: func(c *models.Candidate) error {
			if c.Status != models.StatusEnFormation && c.Status != models.StatusEvaluationEnCours {
				return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot record an evaluation for a candidate in %s", c.Status)
			}
			attempts := c.Attempts(req.Type)
			if attempts >= models.MaxAttempts {
				return dErrors.Newf(dErrors.CodeGuardNotSatisfied, "%s already attempted %d times", req.Type, attempts)
			}
			for _, e := range c.Evaluations {
				if e.Type == req.Type && e.Passed {
					return dErrors.Newf(dErrors.CodeGuardNotSatisfied, "%s already passed", req.Type)
				}
			}
			if req.PassNumber != attempts+1 {
				return dErrors.Newf(dErrors.CodeValidation, "pass_number must be %d", attempts+1)
			}
			return nil
		},
		prepare: func(c *models.Candidate, now time.Time) {
			c.Evaluations = append(c.Evaluations, models.Evaluation{
				Type:        req.Type,
				PassNumber:  req.PassNumber,
				Score:       req.Score,
				Errors:      req.Errors,
				Passed:      passed,
				Evaluator:   req.Evaluator,
				Comments:    req.Comments,
				EvaluatedAt: now,
			})
		},
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementEvaluation(string(req.Type), passed)
	}
	return updated, nil
}

func (s *Service) CompleteEvaluations(ctx context.Context, candidateID id.CandidateID) (_ *models.Candidate, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "candidate.CompleteEvaluations", candidateID.String())
	defer func() { tracing.End(span, err) }()

	return s.transition(ctx, candidateID, step{
		event:   models.EventCompleteEvaluations,
		action:  audit.ActionEvaluation,
		message: "Évaluations terminées",
		notify:  notification.EventCandidateStatusChanged,
	})
}

// ValidateDossier requires payment and every required document on file.
func (s *Service) ValidateDossier(ctx context.Context, candidateID id.CandidateID) (_ *models.Candidate, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "candidate.ValidateDossier", candidateID.String())
	defer func() { tracing.End(span, err) }()

	return s.transition(ctx, candidateID, step{
		event:   models.EventValidateDossier,
		action:  audit.ActionValidation,
		message: "Dossier validé",
		notify:  notification.EventCandidateStatusChanged,
		prepare: func(c *models.Candidate, now time.Time) {
			c.DossierValidAt = &now
		},
	})
}

func (s *Service) DeliverPermit(ctx context.Context, candidateID id.CandidateID) (_ *models.Candidate, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "candidate.DeliverPermit", candidateID.String())
	defer func() { tracing.End(span, err) }()

	return s.transition(ctx, candidateID, step{
		event:   models.EventDeliverPermit,
		action:  audit.ActionValidation,
		message: "Permis délivré",
		notify:  notification.EventCandidateStatusChanged,
		prepare: func(c *models.Candidate, now time.Time) {
			c.PermitDeliveredAt = &now
		},
	})
}

func (s *Service) Reject(ctx context.Context, candidateID id.CandidateID, reason string) (*models.Candidate, error) {
	return s.exit(ctx, candidateID, models.EventReject, audit.ActionRejet, "Candidat rejeté", reason)
}

func (s *Service) Suspend(ctx context.Context, candidateID id.CandidateID, reason string) (*models.Candidate, error) {
	return s.exit(ctx, candidateID, models.EventSuspend, audit.ActionModification, "Candidat suspendu", reason)
}

func (s *Service) exit(ctx context.Context, candidateID id.CandidateID, ev models.Event, action audit.Action, message, reason string) (_ *models.Candidate, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "candidate."+string(ev), candidateID.String())
	defer func() { tracing.End(span, err) }()

	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	return s.transition(ctx, candidateID, step{
		event:   ev,
		action:  action,
		message: message + ": " + reason,
		notify:  notification.EventCandidateStatusChanged,
		prepare: func(c *models.Candidate, _ time.Time) {
			c.StatusReason = reason
		},
	})
}

// Advance moves the candidate along the single edge leading to target. It is
// the entry point of the exam pipeline. A candidate already at target, or
// with no edge to it, yields InvalidTransition.
func (s *Service) Advance(ctx context.Context, candidateID id.CandidateID, target models.Status, action audit.Action, message string) (_ *models.Candidate, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "candidate.Advance", candidateID.String())
	defer func() { tracing.End(span, err) }()

	if !target.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown status %q", target)
	}
	return s.transition(ctx, candidateID, step{
		eventFor: func(c *models.Candidate) (models.Event, bool) {
			return models.EventTo(c.Status, target)
		},
		requireEvent: true,
		action:       action,
		message:      message,
		notify:       notification.EventCandidateStatusChanged,
		prepare: func(c *models.Candidate, _ time.Time) {
			if target == models.StatusRejete || target == models.StatusSuspendu {
				c.StatusReason = message
			}
		},
	})
}

func (s *Service) Get(ctx context.Context, candidateID id.CandidateID) (*models.Candidate, error) {
	if candidateID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "candidate id is required")
	}
	c, err := s.store.FindByID(ctx, candidateID)
	if err != nil {
		return nil, wrapCandidateErr(err)
	}
	return c, nil
}

func (s *Service) GetByLicenseNumber(ctx context.Context, number string) (*models.Candidate, error) {
	if !identifier.HasPrefix(number, identifier.PrefixLicense) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "malformed license number")
	}
	c, err := s.store.FindByLicenseNumber(ctx, number)
	if err != nil {
		return nil, wrapCandidateErr(err)
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, filter models.ListFilter) ([]*models.Candidate, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown status %q", filter.Status)
	}
	candidates, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list candidates")
	}
	return candidates, nil
}

func (s *Service) ListBySchool(ctx context.Context, schoolID id.SchoolID) ([]*models.Candidate, error) {
	candidates, err := s.store.ListBySchool(ctx, schoolID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list candidates")
	}
	return candidates, nil
}

func (s *Service) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count candidates")
	}
	return counts, nil
}

// step describes one candidate mutation. The status moves along event, or
// along eventFor when it resolves one; keepStatus steps only record data.
// check runs on the stored candidate before prepare; prepare runs on a copy
// before the guard and again on the stored candidate.
type step struct {
	event        models.Event
	eventFor     func(c *models.Candidate) (models.Event, bool)
	requireEvent bool
	keepStatus   bool
	check        func(c *models.Candidate) error
	action       audit.Action
	message      string
	notify       notification.Event
	prepare      func(c *models.Candidate, now time.Time)
}

func (s *Service) transition(ctx context.Context, candidateID id.CandidateID, st step) (*models.Candidate, error) {
	now := requestcontext.Now(ctx)
	var (
		updated *models.Candidate
		applied models.Event
	)
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var (
			before *models.Candidate
			target models.Status
		)
		c, err := s.store.Execute(txCtx, candidateID,
			func(c *models.Candidate) error {
				if st.check != nil {
					if err := st.check(c); err != nil {
						return err
					}
				}
				staged := c.Clone()
				if st.prepare != nil {
					st.prepare(staged, now)
				}
				ev, move := st.event, !st.keepStatus
				if st.eventFor != nil {
					resolved, ok := st.eventFor(c)
					switch {
					case ok:
						ev, move = resolved, true
					case st.requireEvent:
						return dErrors.Newf(dErrors.CodeInvalidTransition, "no transition from %s", c.Status)
					default:
						move = false
					}
				}
				target = c.Status
				if move {
					next, err := models.Next(staged, ev)
					if err != nil {
						return err
					}
					target = next
					applied = ev
				}
				before = c.Clone()
				return nil
			},
			func(c *models.Candidate) {
				if st.prepare != nil {
					st.prepare(c, now)
				}
				c.Status = target
				c.UpdatedAt = now
			},
		)
		if err != nil {
			return wrapCandidateErr(err)
		}
		if _, err := s.audit.Record(txCtx, audit.Record{
			Action:     st.action,
			EntityType: audit.EntityCandidate,
			EntityID:   c.ID.String(),
			Message:    st.message,
			Before:     before,
			After:      c,
		}); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	if applied != "" && s.metrics != nil {
		s.metrics.IncrementTransition(string(applied))
	}
	s.logger.InfoContext(ctx, "candidate updated",
		"candidate_id", updated.ID,
		"action", st.action,
		"event", applied,
		"status", updated.Status,
		"request_id", requestcontext.RequestID(ctx),
	)
	if applied != "" {
		notify := st.notify
		if notify == "" {
			notify = notification.EventCandidateStatusChanged
		}
		s.notify(ctx, notify, updated)
	}
	return updated, nil
}

func (s *Service) notify(ctx context.Context, ev notification.Event, c *models.Candidate) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, notification.Message{
		Event:      ev,
		EntityType: string(audit.EntityCandidate),
		EntityID:   c.ID.String(),
		Reference:  c.LicenseNumber,
		Status:     string(c.Status),
		Revision:   c.UpdatedAt.UnixNano(),
		OccurredAt: requestcontext.Now(ctx),
		Attributes: map[string]string{
			"school_id": c.SchoolID.String(),
			"category":  c.Category,
			"name":      c.FullName(),
		},
	})
}

func resultLabel(passed bool) string {
	if passed {
		return ": réussi"
	}
	return ": échoué"
}

func wrapCandidateErr(err error) error {
	if err == nil || dErrors.Is(err) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "candidate not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "candidate store failure")
}
