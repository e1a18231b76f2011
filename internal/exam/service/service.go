// Package service runs the official exam pipeline: a validated dossier is
// programmed, sat, graded and validated, and each exam step hands the
// candidate on through the candidate workflow.
//
// Exam and candidate live in separate stores. Every operation commits the
// exam step first and then advances the candidate; a failure between the two
// is repaired with Reconcile, which re-drives the candidate to the status the
// exam implies.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"dgtt/internal/audit"
	candidatemodels "dgtt/internal/candidate/models"
	"dgtt/internal/exam/metrics"
	"dgtt/internal/exam/models"
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

type Store interface {
	Create(ctx context.Context, e *models.Exam) error
	FindByID(ctx context.Context, examID id.ExamID) (*models.Exam, error)
	FindByNumber(ctx context.Context, number string) (*models.Exam, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Exam, error)
	CountByStatus(ctx context.Context) (map[models.Status]int, error)
	Execute(ctx context.Context, examID id.ExamID, validate func(*models.Exam) error, mutate func(*models.Exam)) (*models.Exam, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, rec audit.Record) (audit.Entry, error)
}

type Notifier interface {
	Notify(ctx context.Context, msg notification.Message)
}

// CandidateWorkflow is the part of the candidate service the exam office drives.
type CandidateWorkflow interface {
	Get(ctx context.Context, candidateID id.CandidateID) (*candidatemodels.Candidate, error)
	Advance(ctx context.Context, candidateID id.CandidateID, target candidatemodels.Status, action audit.Action, message string) (*candidatemodels.Candidate, error)
}

type SchoolDirectory interface {
	Get(ctx context.Context, schoolID id.SchoolID) (*schoolmodels.School, error)
}

// Documents produces the report (procès-verbal) and signature references.
type Documents interface {
	Report(ctx context.Context, in documents.ReportInput) (string, error)
	Sign(ctx context.Context, signer, examNumber, reportRef string) (string, error)
}

// Service coordinates exams with their candidates.
type Service struct {
	store      Store
	audit      AuditRecorder
	candidates CandidateWorkflow
	schools    SchoolDirectory
	documents  Documents
	notifier   Notifier
	tx         txcontext.Runner
	ids        *identifier.Generator
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
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

func New(store Store, recorder AuditRecorder, candidates CandidateWorkflow, schools SchoolDirectory, docs Documents, opts ...Option) *Service {
	s := &Service{
		store:      store,
		audit:      recorder,
		candidates: candidates,
		schools:    schools,
		documents:  docs,
		tx:         txcontext.NewInMemory(),
		ids:        identifier.New(),
		logger:     slog.Default(),
		tracer:     tracing.Tracer("dgtt/exam"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReceiveValidatedDossier programmes an exam for a candidate whose dossier
// is validated and whose school may still enroll. If the candidate cannot be
// moved to EXAMEN_PROGRAMME the new exam is cancelled.
func (s *Service) ReceiveValidatedDossier(ctx context.Context, req *models.ReceiveDossierRequest) (_ *models.Exam, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "exam.ReceiveValidatedDossier", req.CandidateID.String())
	defer func() { tracing.End(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	candidate, err := s.candidates.Get(ctx, req.CandidateID)
	if err != nil {
		return nil, err
	}
	if candidate.Status != candidatemodels.StatusDossierValide {
		return nil, dErrors.Newf(dErrors.CodeGuardNotSatisfied, "candidate dossier is %s, not validated", candidate.Status)
	}
	school, err := s.schools.Get(ctx, candidate.SchoolID)
	if err != nil {
		return nil, err
	}
	if !school.CanEnrollCandidates() {
		return nil, dErrors.Newf(dErrors.CodeGuardNotSatisfied, "school %s cannot present candidates", school.Status)
	}

	now := requestcontext.Now(ctx)
	number := s.ids.ExamNumber()
	exam := &models.Exam{
		ID:          id.NewExamID(),
		ExamNumber:  number,
		CandidateID: candidate.ID,
		SchoolID:    candidate.SchoolID,
		Type:        req.Type,
		Status:      models.StatusProgramme,
		ScheduledAt: req.ScheduledAt,
		Place:       req.Place,
		Examiner:    req.Examiner,
		QRPayload:   documents.ExamQR(number),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.Create(txCtx, exam); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "exam number already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create exam")
		}
		_, err := s.audit.Record(txCtx, audit.Record{
			Action:     audit.ActionProgrammationExamen,
			EntityType: audit.EntityExam,
			EntityID:   exam.ID.String(),
			Message:    "Examen " + exam.ExamNumber + " programmé pour " + candidate.LicenseNumber,
			After:      exam,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.advanceCandidate(ctx, exam, candidatemodels.StatusExamenProgramme); err != nil {
		if _, cerr := s.transition(ctx, exam.ID, step{
			event:   models.EventCancel,
			action:  audit.ActionModification,
			message: "Programmation annulée: candidat non transmis",
			prepare: func(e *models.Exam, _ time.Time) {
				e.StatusReason = "candidat non transmis"
			},
		}); cerr != nil {
			s.logger.ErrorContext(ctx, "exam compensation failed",
				"exam_id", exam.ID,
				"error", cerr,
			)
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementScheduled()
	}
	s.logger.InfoContext(ctx, "exam programmed",
		"exam_id", exam.ID,
		"exam_number", exam.ExamNumber,
		"candidate_id", candidate.ID,
		"type", exam.Type,
	)
	s.notify(ctx, notification.EventExamScheduled, exam)
	return exam, nil
}

// Schedule sets or changes the date, place and examiner of a programmed exam.
func (s *Service) Schedule(ctx context.Context, examID id.ExamID, req *models.ScheduleRequest) (_ *models.Exam, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "exam.Schedule", examID.String())
	defer func() { tracing.End(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.transition(ctx, examID, step{
		keepStatus: true,
		action:     audit.ActionProgrammationExamen,
		message:    fmt.Sprintf("Examen planifié le %s à %s", req.ScheduledAt.Format("02/01/2006 15:04"), req.Place),
		notify:     notification.EventExamPlanned,
		check: func(e *models.Exam) error {
			if e.Status != models.StatusProgramme {
				return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot schedule an exam in %s", e.Status)
			}
			return nil
		},
		prepare: func(e *models.Exam, _ time.Time) {
			at := req.ScheduledAt
			e.ScheduledAt = &at
			e.Place = req.Place
			e.Examiner = req.Examiner
		},
	})
}

func (s *Service) Start(ctx context.Context, examID id.ExamID) (_ *models.Exam, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "exam.Start", examID.String())
	defer func() { tracing.End(span, err) }()

	exam, err := s.transition(ctx, examID, step{
		event:   models.EventStart,
		action:  audit.ActionDebutExamen,
		message: "Examen démarré",
		prepare: func(e *models.Exam, now time.Time) {
			e.StartedAt = &now
		},
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.advanceCandidate(ctx, exam, candidatemodels.StatusExamenEnCours); err != nil {
		return nil, err
	}
	return exam, nil
}

// Finish grades the sitting with the rule of the exam type and moves the
// candidate to EXAMEN_REUSSI or REJETE accordingly.
func (s *Service) Finish(ctx context.Context, examID id.ExamID, req *models.FinishRequest) (_ *models.Exam, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "exam.Finish", examID.String())
	defer func() { tracing.End(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	exam, err := s.transition(ctx, examID, step{
		event:   models.EventFinish,
		action:  audit.ActionFinExamen,
		message: fmt.Sprintf("Examen terminé: %.2f points, %d erreur(s)", req.Score, req.Errors),
		notify:  notification.EventExamFinished,
		check: func(e *models.Exam) error {
			if e.Status != models.StatusEnCours {
				return nil
			}
			if limit := e.Type.Rule().MaxScore; req.Score > limit {
				return dErrors.Newf(dErrors.CodeValidation, "score %.2f exceeds the %s maximum of %.0f", req.Score, e.Type, limit)
			}
			return nil
		},
		prepare: func(e *models.Exam, now time.Time) {
			score := req.Score
			passed := e.Type.Rule().Passed(req.Score, req.Errors)
			e.Score = &score
			e.Passed = &passed
			e.Errors = req.Errors
			e.ElapsedMinutes = req.ElapsedMinutes
			e.Comments = req.Comments
			e.FinishedAt = &now
		},
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementResult(string(exam.Type), exam.HasPassed())
	}

	target := candidatemodels.StatusExamenReussi
	if !exam.HasPassed() {
		target = candidatemodels.StatusRejete
	}
	if _, err := s.advanceCandidate(ctx, exam, target); err != nil {
		return nil, err
	}
	return exam, nil
}

// Validate produces the report and both signatures, then closes the exam.
// A passed exam hands the candidate to STIAS for permit issuance.
func (s *Service) Validate(ctx context.Context, examID id.ExamID) (_ *models.Exam, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "exam.Validate", examID.String())
	defer func() { tracing.End(span, err) }()

	current, err := s.Get(ctx, examID)
	if err != nil {
		return nil, err
	}
	if current.Status != models.StatusTermine {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition, "cannot validate an exam in %s", current.Status)
	}
	if current.Score == nil || current.Passed == nil {
		return nil, dErrors.New(dErrors.CodeGuardNotSatisfied, "exam has no recorded score")
	}
	candidate, err := s.candidates.Get(ctx, current.CandidateID)
	if err != nil {
		return nil, err
	}

	report, err := s.documents.Report(ctx, documents.ReportInput{
		ExamNumber:    current.ExamNumber,
		LicenseNumber: candidate.LicenseNumber,
		ExamType:      string(current.Type),
		Score:         *current.Score,
		Errors:        current.Errors,
		Passed:        current.HasPassed(),
	})
	if err != nil {
		return nil, documentErr(err, "report generation failed")
	}
	examinerSig, err := s.documents.Sign(ctx, documents.SignerExaminer, current.ExamNumber, report)
	if err != nil {
		return nil, documentErr(err, "examiner signature failed")
	}
	candidateSig, err := s.documents.Sign(ctx, documents.SignerCandidate, current.ExamNumber, report)
	if err != nil {
		return nil, documentErr(err, "candidate signature failed")
	}

	exam, err := s.transition(ctx, examID, step{
		event:   models.EventValidate,
		action:  audit.ActionValidationExamen,
		message: "Examen validé, procès-verbal " + report,
		check: func(e *models.Exam) error {
			staged := e.Clone()
			staged.ReportRef = report
			if !staged.CanBeValidated() {
				return dErrors.New(dErrors.CodeGuardNotSatisfied, "exam cannot be validated")
			}
			return nil
		},
		prepare: func(e *models.Exam, now time.Time) {
			e.ReportRef = report
			e.ExaminerSignature = examinerSig
			e.CandidateSignature = candidateSig
			e.ValidatedAt = &now
		},
		extra: func(e *models.Exam) []audit.Record {
			return []audit.Record{
				{Action: audit.ActionGenerationProcesVerbal, Message: "Procès-verbal " + e.ReportRef},
				{Action: audit.ActionSignatureNumerique, Message: "Signatures examinateur et candidat apposées"},
			}
		},
	})
	if err != nil {
		return nil, err
	}

	if exam.HasPassed() {
		if _, err := s.advanceCandidate(ctx, exam, candidatemodels.StatusPermisGenere); err != nil {
			return nil, err
		}
	}
	return exam, nil
}

// Cancel withdraws an exam that has not finished. The candidate is left as is.
func (s *Service) Cancel(ctx context.Context, examID id.ExamID, reason string) (_ *models.Exam, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "exam.Cancel", examID.String())
	defer func() { tracing.End(span, err) }()

	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	return s.transition(ctx, examID, step{
		event:   models.EventCancel,
		action:  audit.ActionModification,
		message: "Examen annulé: " + reason,
		prepare: func(e *models.Exam, _ time.Time) {
			e.StatusReason = reason
		},
	})
}

// Reject voids an exam that has not finished and rejects its candidate.
func (s *Service) Reject(ctx context.Context, examID id.ExamID, reason string) (_ *models.Exam, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "exam.Reject", examID.String())
	defer func() { tracing.End(span, err) }()

	if reason == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	exam, err := s.transition(ctx, examID, step{
		event:   models.EventReject,
		action:  audit.ActionRejet,
		message: "Examen rejeté: " + reason,
		prepare: func(e *models.Exam, _ time.Time) {
			e.StatusReason = reason
		},
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.advanceCandidate(ctx, exam, candidatemodels.StatusRejete); err != nil {
		return nil, err
	}
	return exam, nil
}

// Reconcile re-drives the candidate of an exam to the status the exam
// implies. A candidate already there is left untouched, so calling it
// repeatedly records nothing new.
func (s *Service) Reconcile(ctx context.Context, examID id.ExamID) (_ *candidatemodels.Candidate, err error) {
	ctx, span := tracing.Start(ctx, s.tracer, "exam.Reconcile", examID.String())
	defer func() { tracing.End(span, err) }()

	exam, err := s.Get(ctx, examID)
	if err != nil {
		return nil, err
	}
	candidate, err := s.candidates.Get(ctx, exam.CandidateID)
	if err != nil {
		return nil, err
	}
	path := impliedPath(exam)
	if len(path) == 0 {
		return candidate, nil
	}
	final := path[len(path)-1]

	for hops := 0; !reached(candidate.Status, final); hops++ {
		next, ok := nextHop(candidate.Status, path)
		if !ok || hops > len(path) {
			return nil, dErrors.Newf(dErrors.CodeInvalidTransition,
				"candidate in %s cannot follow exam in %s", candidate.Status, exam.Status)
		}
		candidate, err = s.advanceCandidate(ctx, exam, next)
		if err != nil {
			return nil, err
		}
	}
	s.logger.InfoContext(ctx, "exam reconciled",
		"exam_id", exam.ID,
		"candidate_id", candidate.ID,
		"candidate_status", candidate.Status,
	)
	return candidate, nil
}

func (s *Service) Get(ctx context.Context, examID id.ExamID) (*models.Exam, error) {
	if examID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "exam id is required")
	}
	e, err := s.store.FindByID(ctx, examID)
	if err != nil {
		return nil, wrapExamErr(err)
	}
	return e, nil
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*models.Exam, error) {
	if !identifier.HasPrefix(number, identifier.PrefixExam) {
		return nil, dErrors.New(dErrors.CodeBadRequest, "malformed exam number")
	}
	e, err := s.store.FindByNumber(ctx, number)
	if err != nil {
		return nil, wrapExamErr(err)
	}
	return e, nil
}

func (s *Service) ListByCandidate(ctx context.Context, candidateID id.CandidateID) ([]*models.Exam, error) {
	if candidateID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "candidate id is required")
	}
	return s.list(ctx, models.ListFilter{CandidateID: candidateID})
}

func (s *Service) ListBySchool(ctx context.Context, schoolID id.SchoolID) ([]*models.Exam, error) {
	if schoolID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "school id is required")
	}
	return s.list(ctx, models.ListFilter{SchoolID: schoolID})
}

// ListByStatus returns exams in any of statuses; none lists every exam.
func (s *Service) ListByStatus(ctx context.Context, statuses ...models.Status) ([]*models.Exam, error) {
	for _, st := range statuses {
		if !st.IsValid() {
			return nil, dErrors.Newf(dErrors.CodeValidation, "unknown status %q", st)
		}
	}
	return s.list(ctx, models.ListFilter{Statuses: statuses})
}

func (s *Service) CountByStatus(ctx context.Context) (map[models.Status]int, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count exams")
	}
	return counts, nil
}

func (s *Service) list(ctx context.Context, filter models.ListFilter) ([]*models.Exam, error) {
	exams, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list exams")
	}
	return exams, nil
}

// step describes one exam mutation. check runs on the stored exam, prepare
// on a copy before the guard and again on the stored exam. extra entries are
// recorded after the main one in the same transaction.
type step struct {
	event      models.Event
	keepStatus bool
	check      func(e *models.Exam) error
	action     audit.Action
	message    string
	notify     notification.Event
	prepare    func(e *models.Exam, now time.Time)
	extra      func(e *models.Exam) []audit.Record
}

func (s *Service) transition(ctx context.Context, examID id.ExamID, st step) (*models.Exam, error) {
	now := requestcontext.Now(ctx)
	var updated *models.Exam
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		var (
			before *models.Exam
			target models.Status
		)
		e, err := s.store.Execute(txCtx, examID,
			func(e *models.Exam) error {
				if st.check != nil {
					if err := st.check(e); err != nil {
						return err
					}
				}
				staged := e.Clone()
				if st.prepare != nil {
					st.prepare(staged, now)
				}
				target = e.Status
				if !st.keepStatus {
					next, err := models.Next(staged, st.event)
					if err != nil {
						return err
					}
					target = next
				}
				before = e.Clone()
				return nil
			},
			func(e *models.Exam) {
				if st.prepare != nil {
					st.prepare(e, now)
				}
				e.Status = target
				e.UpdatedAt = now
			},
		)
		if err != nil {
			return wrapExamErr(err)
		}
		if _, err := s.audit.Record(txCtx, audit.Record{
			Action:     st.action,
			EntityType: audit.EntityExam,
			EntityID:   e.ID.String(),
			Message:    st.message,
			Before:     before,
			After:      e,
		}); err != nil {
			return err
		}
		if st.extra != nil {
			for _, rec := range st.extra(e) {
				rec.EntityType = audit.EntityExam
				rec.EntityID = e.ID.String()
				if _, err := s.audit.Record(txCtx, rec); err != nil {
					return err
				}
			}
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !st.keepStatus && s.metrics != nil {
		s.metrics.IncrementTransition(string(st.event))
	}
	s.logger.InfoContext(ctx, "exam updated",
		"exam_id", updated.ID,
		"action", st.action,
		"event", st.event,
		"status", updated.Status,
		"request_id", requestcontext.RequestID(ctx),
	)
	if st.notify != "" {
		s.notify(ctx, st.notify, updated)
	}
	return updated, nil
}

// advanceCandidate moves the candidate of e one edge to target. Reaching
// PERMIS_GENERE announces the permit issuance.
func (s *Service) advanceCandidate(ctx context.Context, e *models.Exam, target candidatemodels.Status) (*candidatemodels.Candidate, error) {
	action, message := handOff(e, target)
	c, err := s.candidates.Advance(ctx, e.CandidateID, target, action, message)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncrementHandOff(string(target), "failed")
		}
		s.logger.WarnContext(ctx, "candidate hand-off failed",
			"exam_id", e.ID,
			"candidate_id", e.CandidateID,
			"target", target,
			"error", err,
		)
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementHandOff(string(target), "ok")
	}
	if target == candidatemodels.StatusPermisGenere && s.notifier != nil {
		s.notifier.Notify(ctx, notification.Message{
			Event:      notification.EventPermitIssuance,
			EntityType: string(audit.EntityCandidate),
			EntityID:   c.ID.String(),
			Reference:  c.LicenseNumber,
			Status:     string(c.Status),
			Revision:   c.UpdatedAt.UnixNano(),
			OccurredAt: requestcontext.Now(ctx),
			Attributes: map[string]string{
				"exam_number": e.ExamNumber,
				"report_ref":  e.ReportRef,
				"category":    c.Category,
				"name":        c.FullName(),
			},
		})
	}
	return c, nil
}

func handOff(e *models.Exam, target candidatemodels.Status) (audit.Action, string) {
	switch target {
	case candidatemodels.StatusExamenProgramme:
		return audit.ActionProgrammationExamen, "Examen " + e.ExamNumber + " programmé"
	case candidatemodels.StatusExamenEnCours:
		return audit.ActionDebutExamen, "Examen " + e.ExamNumber + " en cours"
	case candidatemodels.StatusExamenReussi:
		return audit.ActionFinExamen, "Examen " + e.ExamNumber + " réussi"
	case candidatemodels.StatusPermisGenere:
		return audit.ActionEnvoiSTIAS, "Dossier transmis au STIAS, examen " + e.ExamNumber
	case candidatemodels.StatusRejete:
		if e.Status == models.StatusRejete {
			return audit.ActionRejet, "Examen rejeté: " + e.StatusReason
		}
		return audit.ActionFinExamen, "Échec à l'examen"
	}
	return audit.ActionModification, "Examen " + e.ExamNumber
}

// impliedPath lists the candidate statuses an exam in its current state
// implies, in the order the candidate reaches them.
func impliedPath(e *models.Exam) []candidatemodels.Status {
	switch e.Status {
	case models.StatusProgramme:
		return []candidatemodels.Status{candidatemodels.StatusExamenProgramme}
	case models.StatusEnCours:
		return []candidatemodels.Status{candidatemodels.StatusExamenProgramme, candidatemodels.StatusExamenEnCours}
	case models.StatusTermine:
		if !e.HasPassed() {
			return []candidatemodels.Status{candidatemodels.StatusRejete}
		}
		return []candidatemodels.Status{candidatemodels.StatusExamenProgramme, candidatemodels.StatusExamenReussi}
	case models.StatusValide:
		if !e.HasPassed() {
			return []candidatemodels.Status{candidatemodels.StatusRejete}
		}
		return []candidatemodels.Status{
			candidatemodels.StatusExamenProgramme,
			candidatemodels.StatusExamenReussi,
			candidatemodels.StatusPermisGenere,
		}
	case models.StatusRejete:
		return []candidatemodels.Status{candidatemodels.StatusRejete}
	}
	return nil
}

func reached(current, final candidatemodels.Status) bool {
	if current == final {
		return true
	}
	return final == candidatemodels.StatusPermisGenere && current == candidatemodels.StatusPermisDelivre
}

// nextHop picks the furthest status on path the candidate has an edge to.
func nextHop(current candidatemodels.Status, path []candidatemodels.Status) (candidatemodels.Status, bool) {
	for i := len(path) - 1; i >= 0; i-- {
		if _, ok := candidatemodels.EventTo(current, path[i]); ok {
			return path[i], true
		}
	}
	return "", false
}

func (s *Service) notify(ctx context.Context, ev notification.Event, e *models.Exam) {
	if s.notifier == nil {
		return
	}
	attrs := map[string]string{
		"candidate_id": e.CandidateID.String(),
		"school_id":    e.SchoolID.String(),
		"type":         string(e.Type),
	}
	if e.ScheduledAt != nil {
		attrs["scheduled_at"] = e.ScheduledAt.Format(time.RFC3339)
	}
	if e.Passed != nil {
		attrs["passed"] = fmt.Sprint(*e.Passed)
	}
	s.notifier.Notify(ctx, notification.Message{
		Event:      ev,
		EntityType: string(audit.EntityExam),
		EntityID:   e.ID.String(),
		Reference:  e.ExamNumber,
		Status:     string(e.Status),
		Revision:   e.UpdatedAt.UnixNano(),
		OccurredAt: requestcontext.Now(ctx),
		Attributes: attrs,
	})
}

func documentErr(err error, msg string) error {
	if dErrors.Is(err) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
}

func wrapExamErr(err error) error {
	if err == nil || dErrors.Is(err) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "exam not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "exam store failure")
}
