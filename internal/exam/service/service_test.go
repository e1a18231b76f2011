package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"dgtt/internal/audit"
	auditstore "dgtt/internal/audit/store/memory"
	candidatemodels "dgtt/internal/candidate/models"
	candidateservice "dgtt/internal/candidate/service"
	candidatestore "dgtt/internal/candidate/store"
	"dgtt/internal/exam/models"
	"dgtt/internal/exam/service/mocks"
	"dgtt/internal/exam/store"
	"dgtt/internal/gateway/documents"
	"dgtt/internal/gateway/notification"
	schoolmodels "dgtt/internal/school/models"
	id "dgtt/pkg/domain"
	dErrors "dgtt/pkg/domain-errors"
	"dgtt/pkg/identifier"
	"dgtt/pkg/requestcontext"
)

type ExamServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	schools    *mocks.MockSchoolDirectory
	notifier   *mocks.MockNotifier
	store      *store.InMemory
	candidates *candidatestore.InMemory
	audit      *audit.Service
	signer     *documents.Signer
	workflow   *candidateservice.Service
	service    *Service
	school     *schoolmodels.School
	events     []notification.Message
	logger     *slog.Logger
	now        time.Time
	ctx        context.Context
}

func TestExamServiceSuite(t *testing.T) {
	suite.Run(t, new(ExamServiceSuite))
}

func (s *ExamServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.schools = mocks.NewMockSchoolDirectory(s.ctrl)
	s.notifier = mocks.NewMockNotifier(s.ctrl)
	s.events = nil
	s.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Do(func(_ context.Context, msg notification.Message) {
		s.events = append(s.events, msg)
	}).AnyTimes()

	var err error
	s.signer, err = documents.NewSigner("exam-suite-key")
	s.Require().NoError(err)

	s.logger = slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	s.store = store.NewInMemory()
	s.candidates = candidatestore.NewInMemory()
	s.audit = audit.NewService(auditstore.NewInMemoryStore())
	s.workflow = candidateservice.New(s.candidates, s.audit, nil, nil, candidateservice.WithLogger(s.logger))
	s.service = New(s.store, s.audit, s.workflow, s.schools, s.signer,
		WithNotifier(s.notifier),
		WithLogger(s.logger),
	)

	s.school = &schoolmodels.School{
		ID:            id.NewSchoolID(),
		RequestNumber: identifier.New().RequestNumber(),
		Status:        schoolmodels.StatusAutorisationValide,
		Name:          "Auto-école du Komo",
	}
	s.now = time.Date(2026, 5, 4, 8, 15, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.ctx = requestcontext.WithActor(s.ctx, requestcontext.Principal{ID: "examinateur-12", Role: requestcontext.RoleSEV})
}

// validatedCandidate stores a candidate whose dossier is complete and validated.
func (s *ExamServiceSuite) validatedCandidate() *candidatemodels.Candidate {
	paidAt := s.now.Add(-30 * 24 * time.Hour)
	validAt := s.now.Add(-24 * time.Hour)
	c := &candidatemodels.Candidate{
		ID:               id.NewCandidateID(),
		SchoolID:         s.school.ID,
		LicenseNumber:    identifier.New().LicenseNumber(),
		Status:           candidatemodels.StatusDossierValide,
		LastName:         "Ndong",
		FirstName:        "Arsène",
		Category:         "B",
		PaymentAmount:    50000,
		PaymentReference: "REF-77",
		PaidAt:           &paidAt,
		Documents:        map[candidatemodels.DocumentKind]candidatemodels.Document{},
		DossierValidAt:   &validAt,
		CreatedAt:        paidAt,
		UpdatedAt:        validAt,
	}
	for _, kind := range candidatemodels.RequiredDocuments {
		c.Documents[kind] = candidatemodels.Document{Kind: kind, URL: "https://files.dgtt.ga/" + string(kind), UploadedAt: paidAt}
	}
	for _, t := range candidatemodels.RequiredEvaluations {
		c.Evaluations = append(c.Evaluations, candidatemodels.Evaluation{Type: t, PassNumber: 1, Score: 17, Passed: true})
	}
	s.Require().NoError(s.candidates.Create(s.ctx, c))
	return c
}

func (s *ExamServiceSuite) receive(c *candidatemodels.Candidate, t models.Type) *models.Exam {
	s.schools.EXPECT().Get(gomock.Any(), s.school.ID).Return(s.school, nil)
	e, err := s.service.ReceiveValidatedDossier(s.ctx, &models.ReceiveDossierRequest{CandidateID: c.ID, Type: t})
	s.Require().NoError(err)
	return e
}

func (s *ExamServiceSuite) sit(e *models.Exam, score float64, errs int) *models.Exam {
	_, err := s.service.Start(s.ctx, e.ID)
	s.Require().NoError(err)
	e, err = s.service.Finish(s.ctx, e.ID, &models.FinishRequest{Score: score, Errors: errs, ElapsedMinutes: 35})
	s.Require().NoError(err)
	return e
}

func (s *ExamServiceSuite) candidate(candidateID id.CandidateID) *candidatemodels.Candidate {
	c, err := s.candidates.FindByID(s.ctx, candidateID)
	s.Require().NoError(err)
	return c
}

func (s *ExamServiceSuite) actions(entityType audit.EntityType, entityID string) map[audit.Action]int {
	entries, err := s.audit.History(s.ctx, entityType, entityID)
	s.Require().NoError(err)
	out := make(map[audit.Action]int)
	for _, e := range entries {
		out[e.Action]++
	}
	return out
}

func (s *ExamServiceSuite) emitted() []notification.Event {
	out := make([]notification.Event, 0, len(s.events))
	for _, m := range s.events {
		out = append(out, m.Event)
	}
	return out
}

func (s *ExamServiceSuite) TestPassedExamReachesPermitIssuance() {
	c := s.validatedCandidate()

	e := s.receive(c, models.TypeConduitePratique)
	s.Equal(models.StatusProgramme, e.Status)
	s.True(identifier.HasPrefix(e.ExamNumber, identifier.PrefixExam))
	s.Equal("EXAMEN:"+e.ExamNumber, e.QRPayload)
	s.Equal(s.school.ID, e.SchoolID)
	s.Equal(candidatemodels.StatusExamenProgramme, s.candidate(c.ID).Status)

	e, err := s.service.Schedule(s.ctx, e.ID, &models.ScheduleRequest{
		ScheduledAt: s.now.Add(72 * time.Hour),
		Place:       " Centre d'examen de Libreville ",
		Examiner:    models.Examiner{LastName: "Mintsa", FirstName: "Jean", Badge: "ex-04"},
	})
	s.Require().NoError(err)
	s.Equal(models.StatusProgramme, e.Status)
	s.Equal("Centre d'examen de Libreville", e.Place)
	s.Equal("EX-04", e.Examiner.Badge)

	started, err := s.service.Start(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusEnCours, started.Status)
	s.Require().NotNil(started.StartedAt)
	s.Equal(candidatemodels.StatusExamenEnCours, s.candidate(c.ID).Status)

	finished, err := s.service.Finish(s.ctx, e.ID, &models.FinishRequest{Score: 16, Errors: 2, ElapsedMinutes: 40, Comments: " bonne maîtrise "})
	s.Require().NoError(err)
	s.Equal(models.StatusTermine, finished.Status)
	s.True(finished.HasPassed())
	s.Equal("bonne maîtrise", finished.Comments)
	s.Equal(candidatemodels.StatusExamenReussi, s.candidate(c.ID).Status)

	validated, err := s.service.Validate(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusValide, validated.Status)
	s.Require().NotNil(validated.ValidatedAt)
	s.Contains(validated.ReportRef, "pv/"+e.ExamNumber+"/")
	s.True(s.signer.VerifySignature(validated.ExaminerSignature, documents.SignerExaminer, e.ExamNumber, validated.ReportRef))
	s.True(s.signer.VerifySignature(validated.CandidateSignature, documents.SignerCandidate, e.ExamNumber, validated.ReportRef))
	s.Equal(candidatemodels.StatusPermisGenere, s.candidate(c.ID).Status)

	s.Equal(map[audit.Action]int{
		audit.ActionProgrammationExamen:    2,
		audit.ActionDebutExamen:            1,
		audit.ActionFinExamen:              1,
		audit.ActionValidationExamen:       1,
		audit.ActionGenerationProcesVerbal: 1,
		audit.ActionSignatureNumerique:     1,
	}, s.actions(audit.EntityExam, e.ID.String()))
	s.Equal(map[audit.Action]int{
		audit.ActionProgrammationExamen: 1,
		audit.ActionDebutExamen:         1,
		audit.ActionFinExamen:           1,
		audit.ActionEnvoiSTIAS:          1,
	}, s.actions(audit.EntityCandidate, c.ID.String()))

	s.Equal([]notification.Event{
		notification.EventExamScheduled,
		notification.EventExamPlanned,
		notification.EventExamFinished,
		notification.EventPermitIssuance,
	}, s.emitted())
	permit := s.events[len(s.events)-1]
	s.Equal(c.LicenseNumber, permit.Reference)
	s.Equal(e.ExamNumber, permit.Attributes["exam_number"])
}

func (s *ExamServiceSuite) TestReceiveValidatedDossierGuards() {
	s.Run("a dossier cannot be programmed twice", func() {
		c := s.validatedCandidate()
		s.receive(c, "")

		s.schools.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)
		_, err := s.service.ReceiveValidatedDossier(s.ctx, &models.ReceiveDossierRequest{CandidateID: c.ID})
		s.True(dErrors.HasCode(err, dErrors.CodeGuardNotSatisfied))

		exams, err := s.service.ListByCandidate(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Require().Len(exams, 1)
		s.Equal(models.DefaultType, exams[0].Type)
	})

	s.Run("dossier not yet validated", func() {
		c := s.validatedCandidate()
		_, err := s.candidates.Execute(s.ctx, c.ID,
			func(*candidatemodels.Candidate) error { return nil },
			func(cd *candidatemodels.Candidate) { cd.Status = candidatemodels.StatusEvaluationComplete },
		)
		s.Require().NoError(err)

		_, err = s.service.ReceiveValidatedDossier(s.ctx, &models.ReceiveDossierRequest{CandidateID: c.ID})
		s.True(dErrors.HasCode(err, dErrors.CodeGuardNotSatisfied))
		s.Empty(s.actions(audit.EntityCandidate, c.ID.String()))
	})

	s.Run("school no longer authorized", func() {
		c := s.validatedCandidate()
		suspended := *s.school
		suspended.Status = schoolmodels.StatusSuspendu
		s.schools.EXPECT().Get(gomock.Any(), s.school.ID).Return(&suspended, nil)

		_, err := s.service.ReceiveValidatedDossier(s.ctx, &models.ReceiveDossierRequest{CandidateID: c.ID})
		s.True(dErrors.HasCode(err, dErrors.CodeGuardNotSatisfied))
		s.Equal(candidatemodels.StatusDossierValide, s.candidate(c.ID).Status)
	})

	s.Run("unknown exam type", func() {
		_, err := s.service.ReceiveValidatedDossier(s.ctx, &models.ReceiveDossierRequest{CandidateID: id.NewCandidateID(), Type: "CONDUITE_NEIGE"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown candidate", func() {
		_, err := s.service.ReceiveValidatedDossier(s.ctx, &models.ReceiveDossierRequest{CandidateID: id.NewCandidateID()})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ExamServiceSuite) TestFailedExamRejectsCandidate() {
	c := s.validatedCandidate()
	e := s.receive(c, models.TypeCodeRoute)

	finished := s.sit(e, 10, 0)
	s.Equal(models.StatusTermine, finished.Status)
	s.Require().NotNil(finished.Passed)
	s.False(*finished.Passed)

	rejected := s.candidate(c.ID)
	s.Equal(candidatemodels.StatusRejete, rejected.Status)
	s.Equal("Échec à l'examen", rejected.StatusReason)

	validated, err := s.service.Validate(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusValide, validated.Status)
	s.Equal(candidatemodels.StatusRejete, s.candidate(c.ID).Status)
	s.NotContains(s.emitted(), notification.EventPermitIssuance)
}

func (s *ExamServiceSuite) TestTransitionOrder() {
	c := s.validatedCandidate()
	e := s.receive(c, models.TypeConduiteNuit)

	s.Run("finish before start", func() {
		_, err := s.service.Finish(s.ctx, e.ID, &models.FinishRequest{Score: 18})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("validate before finish", func() {
		_, err := s.service.Validate(s.ctx, e.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("negative score", func() {
		_, err := s.service.Finish(s.ctx, e.ID, &models.FinishRequest{Score: -1})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("schedule needs place and examiner", func() {
		_, err := s.service.Schedule(s.ctx, e.ID, &models.ScheduleRequest{ScheduledAt: s.now})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("failed attempts leave the trail untouched", func() {
		s.Equal(map[audit.Action]int{audit.ActionProgrammationExamen: 1}, s.actions(audit.EntityExam, e.ID.String()))
	})

	s.Run("night driving tolerates a single error", func() {
		finished := s.sit(e, 19, 2)
		s.False(finished.HasPassed())
		s.Equal(candidatemodels.StatusRejete, s.candidate(c.ID).Status)
	})

	s.Run("start twice", func() {
		_, err := s.service.Start(s.ctx, e.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func (s *ExamServiceSuite) TestFinishRejectsOutOfRangeScore() {
	c := s.validatedCandidate()
	e := s.receive(c, models.TypeCodeRoute)
	_, err := s.service.Start(s.ctx, e.ID)
	s.Require().NoError(err)

	for name, score := range map[string]float64{
		"above the maximum": 20.01,
		"not a number":      math.NaN(),
		"infinite":          math.Inf(1),
	} {
		s.Run(name, func() {
			_, err := s.service.Finish(s.ctx, e.ID, &models.FinishRequest{Score: score})
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)

			current, err := s.service.Get(s.ctx, e.ID)
			s.Require().NoError(err)
			s.Equal(models.StatusEnCours, current.Status)
			s.Nil(current.Score)
			s.Equal(candidatemodels.StatusExamenEnCours, s.candidate(c.ID).Status)
		})
	}

	s.Equal(map[audit.Action]int{
		audit.ActionProgrammationExamen: 1,
		audit.ActionDebutExamen:         1,
	}, s.actions(audit.EntityExam, e.ID.String()))

	finished, err := s.service.Finish(s.ctx, e.ID, &models.FinishRequest{Score: 20})
	s.Require().NoError(err)
	s.True(finished.HasPassed())
}

func (s *ExamServiceSuite) TestValidateWithoutScoreIsGuarded() {
	c := s.validatedCandidate()
	e := &models.Exam{
		ID:          id.NewExamID(),
		ExamNumber:  identifier.New().ExamNumber(),
		CandidateID: c.ID,
		SchoolID:    s.school.ID,
		Type:        models.TypeConduitePratique,
		Status:      models.StatusTermine,
		CreatedAt:   s.now,
		UpdatedAt:   s.now,
	}
	s.Require().NoError(s.store.Create(s.ctx, e))

	_, err := s.service.Validate(s.ctx, e.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeGuardNotSatisfied), "got %v", err)
	s.Empty(s.actions(audit.EntityExam, e.ID.String()))
}

func (s *ExamServiceSuite) TestEachStepNotifiesUnderItsOwnKey() {
	c := s.validatedCandidate()
	e := s.receive(c, models.TypeConduitePratique)

	req := &models.ScheduleRequest{
		ScheduledAt: s.now.Add(48 * time.Hour),
		Place:       "Centre d'examen d'Owendo",
		Examiner:    models.Examiner{LastName: "Obiang", FirstName: "Paul"},
	}
	_, err := s.service.Schedule(s.ctx, e.ID, req)
	s.Require().NoError(err)

	later := requestcontext.WithTime(s.ctx, s.now.Add(time.Hour))
	req.ScheduledAt = s.now.Add(96 * time.Hour)
	_, err = s.service.Schedule(later, e.ID, req)
	s.Require().NoError(err)

	s.Require().Len(s.events, 3)
	keys := map[string]bool{}
	for _, msg := range s.events {
		s.False(keys[msg.Key()], "duplicate key %s", msg.Key())
		keys[msg.Key()] = true
	}
	s.Equal(notification.EventExamPlanned, s.events[2].Event)
	s.Equal(req.ScheduledAt.Format(time.RFC3339), s.events[2].Attributes["scheduled_at"])
}

func (s *ExamServiceSuite) TestCancelAndReject() {
	s.Run("cancel needs a reason and keeps the candidate", func() {
		c := s.validatedCandidate()
		e := s.receive(c, "")

		_, err := s.service.Cancel(s.ctx, e.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		cancelled, err := s.service.Cancel(s.ctx, e.ID, "examinateur indisponible")
		s.Require().NoError(err)
		s.Equal(models.StatusAnnule, cancelled.Status)
		s.Equal("examinateur indisponible", cancelled.StatusReason)
		s.Equal(candidatemodels.StatusExamenProgramme, s.candidate(c.ID).Status)

		_, err = s.service.Start(s.ctx, e.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("reject voids the exam and rejects the candidate", func() {
		c := s.validatedCandidate()
		e := s.receive(c, "")
		_, err := s.service.Start(s.ctx, e.ID)
		s.Require().NoError(err)

		rejected, err := s.service.Reject(s.ctx, e.ID, "fraude constatée")
		s.Require().NoError(err)
		s.Equal(models.StatusRejete, rejected.Status)

		cd := s.candidate(c.ID)
		s.Equal(candidatemodels.StatusRejete, cd.Status)
		s.Equal("Examen rejeté: fraude constatée", cd.StatusReason)
	})
}

func (s *ExamServiceSuite) TestCandidateHandOffFailureCancelsExam() {
	workflow := mocks.NewMockCandidateWorkflow(s.ctrl)
	svc := New(s.store, s.audit, workflow, s.schools, s.signer, WithLogger(s.logger))

	c := &candidatemodels.Candidate{
		ID:       id.NewCandidateID(),
		SchoolID: s.school.ID,
		Status:   candidatemodels.StatusDossierValide,
	}
	workflow.EXPECT().Get(gomock.Any(), c.ID).Return(c, nil)
	s.schools.EXPECT().Get(gomock.Any(), s.school.ID).Return(s.school, nil)
	boom := dErrors.New(dErrors.CodeGuardNotSatisfied, "candidate can sit the exam")
	workflow.EXPECT().
		Advance(gomock.Any(), c.ID, candidatemodels.StatusExamenProgramme, audit.ActionProgrammationExamen, gomock.Any()).
		Return(nil, boom)

	_, err := svc.ReceiveValidatedDossier(s.ctx, &models.ReceiveDossierRequest{CandidateID: c.ID})
	s.ErrorIs(err, boom)

	exams, err := s.store.List(s.ctx, models.ListFilter{CandidateID: c.ID})
	s.Require().NoError(err)
	s.Require().Len(exams, 1)
	s.Equal(models.StatusAnnule, exams[0].Status)
}

func (s *ExamServiceSuite) TestDocumentFailureKeepsExamFinished() {
	docs := mocks.NewMockDocuments(s.ctrl)
	svc := New(s.store, s.audit, s.workflow, s.schools, docs, WithLogger(s.logger))

	c := s.validatedCandidate()
	e := s.sit(s.receive(c, ""), 17, 0)

	docs.EXPECT().Report(gomock.Any(), gomock.Any()).Return("", errors.New("renderer down"))
	_, err := svc.Validate(s.ctx, e.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	got, err := s.service.Get(s.ctx, e.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusTermine, got.Status)
	s.Empty(got.ReportRef)
}

func (s *ExamServiceSuite) TestReconcile() {
	force := func(examID id.ExamID, status models.Status, passed bool) {
		score := 15.0
		_, err := s.store.Execute(s.ctx, examID,
			func(*models.Exam) error { return nil },
			func(e *models.Exam) {
				e.Status = status
				e.Score, e.Passed = &score, &passed
				e.ReportRef = "pv/forced"
			},
		)
		s.Require().NoError(err)
	}

	s.Run("candidate left behind is re-driven once", func() {
		c := s.validatedCandidate()
		e := s.receive(c, "")
		force(e.ID, models.StatusTermine, true)

		got, err := s.service.Reconcile(s.ctx, e.ID)
		s.Require().NoError(err)
		s.Equal(candidatemodels.StatusExamenReussi, got.Status)
		before := s.actions(audit.EntityCandidate, c.ID.String())

		again, err := s.service.Reconcile(s.ctx, e.ID)
		s.Require().NoError(err)
		s.Equal(candidatemodels.StatusExamenReussi, again.Status)
		s.Equal(before, s.actions(audit.EntityCandidate, c.ID.String()))
	})

	s.Run("validated exam walks the candidate to permit issuance", func() {
		c := s.validatedCandidate()
		e := s.receive(c, "")
		force(e.ID, models.StatusValide, true)
		s.events = nil

		got, err := s.service.Reconcile(s.ctx, e.ID)
		s.Require().NoError(err)
		s.Equal(candidatemodels.StatusPermisGenere, got.Status)
		s.Equal([]notification.Event{notification.EventPermitIssuance}, s.emitted())
	})

	s.Run("failed exam rejects the candidate", func() {
		c := s.validatedCandidate()
		e := s.receive(c, "")
		force(e.ID, models.StatusTermine, false)

		got, err := s.service.Reconcile(s.ctx, e.ID)
		s.Require().NoError(err)
		s.Equal(candidatemodels.StatusRejete, got.Status)
	})

	s.Run("cancelled exam implies nothing", func() {
		c := s.validatedCandidate()
		e := s.receive(c, "")
		_, err := s.service.Cancel(s.ctx, e.ID, "salle indisponible")
		s.Require().NoError(err)

		got, err := s.service.Reconcile(s.ctx, e.ID)
		s.Require().NoError(err)
		s.Equal(candidatemodels.StatusExamenProgramme, got.Status)
	})

	s.Run("candidate that cannot follow", func() {
		c := s.validatedCandidate()
		e := s.receive(c, "")
		_, err := s.workflow.Suspend(s.ctx, c.ID, "enquête en cours")
		s.Require().NoError(err)
		force(e.ID, models.StatusTermine, true)

		_, err = s.service.Reconcile(s.ctx, e.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func (s *ExamServiceSuite) TestQueries() {
	c := s.validatedCandidate()
	e := s.receive(c, "")

	s.Run("by number", func() {
		got, err := s.service.GetByNumber(s.ctx, e.ExamNumber)
		s.Require().NoError(err)
		s.Equal(e.ID, got.ID)

		_, err = s.service.GetByNumber(s.ctx, "LIC123")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("missing exam", func() {
		_, err := s.service.Get(s.ctx, id.NewExamID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("by school and status", func() {
		bySchool, err := s.service.ListBySchool(s.ctx, s.school.ID)
		s.Require().NoError(err)
		s.Len(bySchool, 1)

		open, err := s.service.ListByStatus(s.ctx, models.StatusProgramme, models.StatusEnCours)
		s.Require().NoError(err)
		s.Len(open, 1)

		_, err = s.service.ListByStatus(s.ctx, "PERDU")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("counts", func() {
		counts, err := s.service.CountByStatus(s.ctx)
		s.Require().NoError(err)
		s.Equal(map[models.Status]int{models.StatusProgramme: 1}, counts)
	})
}
