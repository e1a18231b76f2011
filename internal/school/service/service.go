// Package service runs the accreditation pipeline of driving schools.
//
// Every step follows the same shape: inside one transaction the store's
// Execute checks the transition against the school machine and applies it,
// then the audit entry is appended. Notifications go out after commit and
// never undo the step.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"dgtt/internal/audit"
	candidatemodels "dgtt/internal/candidate/models"
	"dgtt/internal/gateway/documents"
	"dgtt/internal/gateway/notification"
	schoolmetrics "dgtt/internal/school/metrics"
	"dgtt/internal/school/models"
	id "dgtt/pkg/domain"
	dErrors "dgtt/pkg/domain-errors"
	"dgtt/pkg/identifier"
	"dgtt/pkg/platform/sentinel"
	"dgtt/pkg/platform/tracing"
	txcontext "dgtt/pkg/platform/tx"
	"dgtt/pkg/requestcontext"
)

// DefaultFee is the accreditation fee when none is configured.
const DefaultFee = 100000

type Store interface {
	Create(ctx context.Context, school *models.School) error
	FindByID(ctx context.Context, schoolID id.SchoolID) (*models.School, error)
	FindByRequestNumber(ctx context.Context, number string) (*models.School, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.School, error)
	CountByStatus(ctx context.Context) (map[models.Status]int, error)
	Execute(ctx context.Context, schoolID id.SchoolID, validate func(*models.School) error, mutate func(*models.School)) (*models.School, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, rec audit.Record) (audit.Entry, error)
}

type PaymentGateway interface {
	Verify(ctx context.Context, reference string, amount float64) (bool, error)
	GeneratePaymentLink(ctx context.Context, requestID string, amount float64, description string) (string, error)
}

type Notifier interface {
	Notify(ctx context.Context, msg notification.Message)
}

// CandidateDirectory reads the candidates attached to schools.
type CandidateDirectory interface {
	ListBySchool(ctx context.Context, schoolID id.SchoolID) ([]*candidatemodels.Candidate, error)
	CountByStatus(ctx context.Context) (map[candidatemodels.Status]int, error)
}

// Service coordinates school accreditation.
type Service struct {
	store      Store
	audit      AuditRecorder
	payments   PaymentGateway
	notifier   Notifier
	candidates CandidateDirectory
	tx         txcontext.Runner
	ids        *identifier.Generator
	fee        float64
	logger     *slog.Logger
	metrics    *schoolmetrics.Metrics
	tracer     trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *schoolmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithTx(runner txcontext.Runner) Option {
	return func(s *Service) { s.tx = runner }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithCandidates(c CandidateDirectory) Option {
	return func(s *Service) { s.candidates = c }
}

func WithIdentifiers(g *identifier.Generator) Option {
	return func(s *Service) { s.ids = g }
}

// WithFee sets the accreditation fee charged at creation.
func WithFee(fee float64) Option {
	return func(s *Service) {
		if fee > 0 {
			s.fee = fee
		}
	}
}

func New(store Store, recorder AuditRecorder, payments PaymentGateway, opts ...Option) *Service {
	s := &Service{
		store:    store,
		audit:    recorder,
		payments: payments,
		tx:       txcontext.NewInMemory(),
		ids:      identifier.New(),
		fee:      DefaultFee,
		logger:   slog.Default(),
		tracer:   tracing.Tracer("dgtt/school"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create files a new accreditation request in EN_ATTENTE.
func (s *Service) Create(ctx context.Context, req *models.CreateSchoolRequest) (_ *models.School, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "school.Create", "")
	defer func() { tracing.End(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	number := s.ids.RequestNumber()
	school := &models.School{
		ID:            id.NewSchoolID(),
		RequestNumber: number,
		QRPayload:     documents.SchoolQR(number),
		Status:        models.StatusEnAttente,
		Name:          req.Name,
		OwnerName:     req.OwnerName,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
		City:          req.City,
		Province:      req.Province,
		Categories:    req.Categories,
		PaymentAmount: s.fee,
		CandidateIDs:  []id.CandidateID{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.Create(txCtx, school); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "request number already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create school")
		}
		_, err := s.audit.Record(txCtx, audit.Record{
			Action:     audit.ActionCreation,
			EntityType: audit.EntitySchool,
			EntityID:   school.ID.String(),
			Message:    "Demande d'agrément " + school.RequestNumber,
			After:      school,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementCreated()
	}
	s.logger.InfoContext(ctx, "school created",
		"school_id", school.ID,
		"request_number", school.RequestNumber,
	)
	s.notify(ctx, notification.EventSchoolCreated, school)
	return school, nil
}

// ValidatePayment verifies reference with the payment gateway and moves the
// school to PAIEMENT_VALIDE. A refused payment leaves the school untouched.
func (s *Service) ValidatePayment(ctx context.Context, schoolID id.SchoolID, reference string) (_ *models.School, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "school.ValidatePayment", schoolID.String())
	defer func() { tracing.End(span, err) }()

	current, err := s.Get(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	if _, err := models.Next(current, models.EventValidatePayment); err != nil {
		return nil, err
	}

	ok, err := s.payments.Verify(ctx, reference, current.PaymentAmount)
	if err != nil {
		if dErrors.Is(err) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "payment gateway unavailable")
	}
	if !ok {
		if s.metrics != nil {
			s.metrics.IncrementPaymentRejected()
		}
		s.logger.WarnContext(ctx, "payment refused",
			"school_id", schoolID,
			"reference", reference,
		)
		return nil, dErrors.New(dErrors.CodePaymentInvalid, "payment reference was refused")
	}

	return s.transition(ctx, schoolID, step{
		event:   models.EventValidatePayment,
		action:  audit.ActionPaiement,
		message: "Paiement validé, référence " + reference,
		notify:  notification.EventSchoolPaymentValidated,
		prepare: func(sc *models.School, now time.Time) {
			sc.PaymentReference = reference
			sc.PaidAt = &now
		},
	})
}

func (s *Service) ScheduleInspection(ctx context.Context, schoolID id.SchoolID, inspector models.Inspector) (_ *models.School, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "school.ScheduleInspection", schoolID.String())
	defer func() { tracing.End(span, err) }()

	if inspector.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "inspector is required")
	}
	return s.transition(ctx, schoolID, step{
		event:   models.EventScheduleInspection,
		action:  audit.ActionInspection,
		message: "Inspection programmée, inspecteur " + inspector.LastName,
		notify:  notification.EventSchoolStatusChanged,
		prepare: func(sc *models.School, _ time.Time) {
			sc.Inspector = inspector
		},
	})
}

func (s *Service) ValidateInspection(ctx context.Context, schoolID id.SchoolID, report string) (_ *models.School, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "school.ValidateInspection", schoolID.String())
	defer func() { tracing.End(span, err) }()

	if report == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "inspection report is required")
	}
	return s.transition(ctx, schoolID, step{
		event:   models.EventValidateInspection,
		action:  audit.ActionInspection,
		message: "Inspection validée",
		notify:  notification.EventSchoolStatusChanged,
		prepare: func(sc *models.School, now time.Time) {
			sc.InspectionReport = report
			sc.InspectedAt = &now
		},
	})
}

// GrantProvisionalAuthorization mints the AUTH code valid for six months.
func (s *Service) GrantProvisionalAuthorization(ctx context.Context, schoolID id.SchoolID) (_ *models.School, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "school.GrantProvisionalAuthorization", schoolID.String())
	defer func() { tracing.End(span, err) }()

	code := s.ids.AuthorizationCode()
	return s.transition(ctx, schoolID, step{
		event:   models.EventGrantProvisional,
		action:  audit.ActionApprobation,
		message: "Autorisation provisoire " + code,
		notify:  notification.EventSchoolAuthorized,
		prepare: func(sc *models.School, now time.Time) {
			sc.AuthorizationCode = code
			openWindow(sc, now)
		},
	})
}

func (s *Service) ConfirmAuthorization(ctx context.Context, schoolID id.SchoolID) (_ *models.School, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "school.ConfirmAuthorization", schoolID.String())
	defer func() { tracing.End(span, err) }()

	return s.transition(ctx, schoolID, step{
		event:   models.EventConfirmAuthorization,
		action:  audit.ActionValidation,
		message: "Autorisation confirmée",
		notify:  notification.EventSchoolStatusChanged,
	})
}

func (s *Service) StartRenewal(ctx context.Context, schoolID id.SchoolID) (_ *models.School, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "school.StartRenewal", schoolID.String())
	defer func() { tracing.End(span, err) }()

	return s.transition(ctx, schoolID, step{
		event:   models.EventStartRenewal,
		action:  audit.ActionModification,
		message: "Renouvellement demandé",
		notify:  notification.EventSchoolStatusChanged,
	})
}

// CompleteRenewal opens a new six-month window starting now.
func (s *Service) CompleteRenewal(ctx context.Context, schoolID id.SchoolID) (_ *models.School, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "school.CompleteRenewal", schoolID.String())
	defer func() { tracing.End(span, err) }()

	return s.transition(ctx, schoolID, step{
		event:   models.EventCompleteRenewal,
		action:  audit.ActionApprobation,
		message: "Autorisation renouvelée",
		notify:  notification.EventSchoolStatusChanged,
		prepare: openWindow,
	})
}

func (s *Service) Reject(ctx context.Context, schoolID id.SchoolID, reason string) (*models.School, error) {
	return s.exit(ctx, schoolID, models.EventReject, audit.ActionRejet, "Demande rejetée", reason)
}

func (s *Service) Suspend(ctx context.Context, schoolID id.SchoolID, reason string) (*models.School, error) {
	return s.exit(ctx, schoolID, models.EventSuspend, audit.ActionModification, "Auto-école suspendue", reason)
}

func (s *Service) Close(ctx context.Context, schoolID id.SchoolID, reason string) (*models.School, error) {
	return s.exit(ctx, schoolID, models.EventClose, audit.ActionModification, "Auto-école fermée", reason)
}

func (s *Service) exit(ctx context.Context, schoolID id.SchoolID, ev models.Event, action audit.Action, message, reason string) (_ *models.School, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "school."+string(ev), schoolID.String())
	defer func() { tracing.End(span, err) }()

	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	return s.transition(ctx, schoolID, step{
		event:   ev,
		action:  action,
		message: message + ": " + reason,
		notify:  notification.EventSchoolStatusChanged,
		prepare: func(sc *models.School, _ time.Time) {
			sc.StatusReason = reason
		},
	})
}

// Update changes contact fields of a school that is still open.
func (s *Service) Update(ctx context.Context, schoolID id.SchoolID, req *models.UpdateSchoolRequest) (_ *models.School, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "school.Update", schoolID.String())
	defer func() { tracing.End(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var updated *models.School
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var before *models.School
		school, err := s.store.Execute(txCtx, schoolID,
			func(sc *models.School) error {
				if models.Machine().IsTerminal(sc.Status) {
					return dErrors.Newf(dErrors.CodeInvalidTransition, "school is %s and can no longer be modified", sc.Status)
				}
				before = sc.Clone()
				return nil
			},
			func(sc *models.School) {
				req.Apply(sc)
				sc.UpdatedAt = now
			},
		)
		if err != nil {
			return wrapSchoolErr(err)
		}
		if _, err := s.audit.Record(txCtx, audit.Record{
			Action:     audit.ActionModification,
			EntityType: audit.EntitySchool,
			EntityID:   school.ID.String(),
			Message:    "Informations mises à jour",
			Before:     before,
			After:      school,
		}); err != nil {
			return err
		}
		updated = school
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AttachCandidate records candidateID on the school. Attaching twice is a no-op.
func (s *Service) AttachCandidate(ctx context.Context, schoolID id.SchoolID, candidateID id.CandidateID) error {
	now := requestcontext.Now(ctx)
	_, err := s.store.Execute(ctx, schoolID,
		func(sc *models.School) error {
			if !sc.CanEnrollCandidates() {
				return dErrors.Newf(dErrors.CodeGuardNotSatisfied, "school %s cannot enroll candidates", sc.Status)
			}
			return nil
		},
		func(sc *models.School) {
			if sc.HasCandidate(candidateID) {
				return
			}
			sc.CandidateIDs = append(sc.CandidateIDs, candidateID)
			sc.UpdatedAt = now
		},
	)
	return wrapSchoolErr(err)
}

func (s *Service) Get(ctx context.Context, schoolID id.SchoolID) (*models.School, error) {
	if schoolID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "school id is required")
	}
	school, err := s.store.FindByID(ctx, schoolID)
	if err != nil {
		return nil, wrapSchoolErr(err)
	}
	return school, nil
}

func (s *Service) GetByRequestNumber(ctx context.Context, number string) (*models.School, error) {
	if !identifier.HasPrefix(number, identifier.PrefixSchoolRequest) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "malformed request number")
	}
	school, err := s.store.FindByRequestNumber(ctx, number)
	if err != nil {
		return nil, wrapSchoolErr(err)
	}
	return school, nil
}

func (s *Service) List(ctx context.Context, filter models.ListFilter) ([]*models.School, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown status %q", filter.Status)
	}
	schools, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list schools")
	}
	return schools, nil
}

// ListCandidates returns the candidates enrolled by the school.
func (s *Service) ListCandidates(ctx context.Context, schoolID id.SchoolID) ([]*candidatemodels.Candidate, error) {
	if _, err := s.Get(ctx, schoolID); err != nil {
		return nil, err
	}
	if s.candidates == nil {
		return []*candidatemodels.Candidate{}, nil
	}
	candidates, err := s.candidates.ListBySchool(ctx, schoolID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list candidates")
	}
	return candidates, nil
}

// Statistics counts schools and candidates by status. Both stores are read
// concurrently.
func (s *Service) Statistics(ctx context.Context) (*models.Statistics, error) {
	var (
		schools    map[models.Status]int
		candidates map[candidatemodels.Status]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		schools, err = s.store.CountByStatus(gctx)
		return err
	})
	if s.candidates != nil {
		g.Go(func() error {
			var err error
			candidates, err = s.candidates.CountByStatus(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to compute statistics")
	}

	stats := &models.Statistics{
		SchoolsByStatus:   make(map[models.Status]int, len(schools)),
		CandidatesByState: make(map[string]int, len(candidates)),
	}
	for st, n := range schools {
		stats.SchoolsByStatus[st] = n
		stats.TotalSchools += n
	}
	for st, n := range candidates {
		stats.CandidatesByState[string(st)] = n
		stats.TotalCandidates += n
	}
	return stats, nil
}

// PaymentLink asks the gateway for a link paying the accreditation fee.
func (s *Service) PaymentLink(ctx context.Context, schoolID id.SchoolID) (string, error) {
	school, err := s.Get(ctx, schoolID)
	if err != nil {
		return "", err
	}
	if school.HasPaid() {
		return "", dErrors.New(dErrors.CodeInvalidTransition, "fee already paid")
	}
	link, err := s.payments.GeneratePaymentLink(ctx, school.RequestNumber, school.PaymentAmount, "Frais d'agrément "+school.Name)
	if err != nil {
		if dErrors.Is(err) {
			return "", err
		}
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "payment gateway unavailable")
	}
	return link, nil
}

// step describes one pipeline transition. prepare sets the fields the step
// records; it runs on a copy before the guard check and again on the stored
// school.
type step struct {
	event   models.Event
	action  audit.Action
	message string
	notify  notification.Event
	prepare func(sc *models.School, now time.Time)
}

func (s *Service) transition(ctx context.Context, schoolID id.SchoolID, st step) (*models.School, error) {
	now := requestcontext.Now(ctx)
	var updated *models.School
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var (
			before *models.School
			target models.Status
		)
		school, err := s.store.Execute(txCtx, schoolID,
			func(sc *models.School) error {
				staged := sc.Clone()
				if st.prepare != nil {
					st.prepare(staged, now)
				}
				next, err := models.Next(staged, st.event)
				if err != nil {
					return err
				}
				before = sc.Clone()
				target = next
				return nil
			},
			func(sc *models.School) {
				if st.prepare != nil {
					st.prepare(sc, now)
				}
				sc.Status = target
				sc.UpdatedAt = now
			},
		)
		if err != nil {
			return wrapSchoolErr(err)
		}
		if _, err := s.audit.Record(txCtx, audit.Record{
			Action:     st.action,
			EntityType: audit.EntitySchool,
			EntityID:   school.ID.String(),
			Message:    st.message,
			Before:     before,
			After:      school,
		}); err != nil {
			return err
		}
		updated = school
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementTransition(string(st.event))
	}
	s.logger.InfoContext(ctx, "school transition",
		"school_id", updated.ID,
		"event", st.event,
		"status", updated.Status,
		"request_id", requestcontext.RequestID(ctx),
	)
	if st.notify != "" {
		s.notify(ctx, st.notify, updated)
	}
	return updated, nil
}

func (s *Service) notify(ctx context.Context, ev notification.Event, school *models.School) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, notification.Message{
		Event:      ev,
		EntityType: string(audit.EntitySchool),
		EntityID:   school.ID.String(),
		Reference:  school.RequestNumber,
		Status:     string(school.Status),
		Revision:   school.UpdatedAt.UnixNano(),
		OccurredAt: requestcontext.Now(ctx),
		Attributes: map[string]string{
			"name": school.Name,
			"city": school.City,
		},
	})
}

func openWindow(sc *models.School, now time.Time) {
	expires := now.AddDate(0, models.AuthorizationValidity, 0)
	sc.AuthorizationIssuedAt = &now
	sc.AuthorizationExpiresAt = &expires
}

func wrapSchoolErr(err error) error {
	if err == nil || dErrors.Is(err) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "school not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "school store failure")
}
