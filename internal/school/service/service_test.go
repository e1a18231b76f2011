package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"dgtt/internal/audit"
	auditstore "dgtt/internal/audit/store/memory"
	candidatemodels "dgtt/internal/candidate/models"
	"dgtt/internal/gateway/notification"
	"dgtt/internal/school/models"
	"dgtt/internal/school/service/mocks"
	"dgtt/internal/school/store"
	id "dgtt/pkg/domain"
	dErrors "dgtt/pkg/domain-errors"
	"dgtt/pkg/identifier"
	"dgtt/pkg/requestcontext"
)

type SchoolServiceSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	payments   *mocks.MockPaymentGateway
	candidates *mocks.MockCandidateDirectory
	store      *store.InMemory
	audit      *audit.Service
	service    *Service
	events     []notification.Event
	now        time.Time
	ctx        context.Context
}

func TestSchoolServiceSuite(t *testing.T) {
	suite.Run(t, new(SchoolServiceSuite))
}

func (s *SchoolServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.payments = mocks.NewMockPaymentGateway(s.ctrl)
	s.candidates = mocks.NewMockCandidateDirectory(s.ctrl)
	notifier := mocks.NewMockNotifier(s.ctrl)
	s.events = nil
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Do(func(_ context.Context, msg notification.Message) {
		s.events = append(s.events, msg.Event)
	}).AnyTimes()

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	s.store = store.NewInMemory()
	s.audit = audit.NewService(auditstore.NewInMemoryStore())
	s.service = New(s.store, s.audit, s.payments,
		WithNotifier(notifier),
		WithCandidates(s.candidates),
		WithIdentifiers(identifier.New()),
		WithLogger(logger),
		WithFee(150000),
	)

	s.now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.ctx = requestcontext.WithActor(s.ctx, requestcontext.Principal{ID: "agent-saf-1", Role: requestcontext.RoleSAF})
}

func (s *SchoolServiceSuite) createSchool() *models.School {
	school, err := s.service.Create(s.ctx, &models.CreateSchoolRequest{
		Name:      "Auto-école du Littoral",
		OwnerName: "Moussavou",
		Email:     "contact@littoral.ga",
		City:      "Libreville",
		Province:  "Estuaire",
	})
	s.Require().NoError(err)
	return school
}

func (s *SchoolServiceSuite) authorizedSchool() *models.School {
	school := s.createSchool()
	s.payments.EXPECT().Verify(gomock.Any(), "PAY-001", 150000.0).Return(true, nil)
	_, err := s.service.ValidatePayment(s.ctx, school.ID, "PAY-001")
	s.Require().NoError(err)
	_, err = s.service.ScheduleInspection(s.ctx, school.ID, models.Inspector{LastName: "Ondo", FirstName: "Paul"})
	s.Require().NoError(err)
	_, err = s.service.ValidateInspection(s.ctx, school.ID, "Locaux conformes")
	s.Require().NoError(err)
	school, err = s.service.GrantProvisionalAuthorization(s.ctx, school.ID)
	s.Require().NoError(err)
	return school
}

func (s *SchoolServiceSuite) actions(schoolID id.SchoolID) map[audit.Action]int {
	entries, err := s.audit.History(s.ctx, audit.EntitySchool, schoolID.String())
	s.Require().NoError(err)
	out := make(map[audit.Action]int)
	for _, e := range entries {
		out[e.Action]++
	}
	return out
}

func (s *SchoolServiceSuite) TestCreate() {
	s.Run("new request waits for payment", func() {
		school := s.createSchool()
		s.Equal(models.StatusEnAttente, school.Status)
		s.True(identifier.HasPrefix(school.RequestNumber, identifier.PrefixSchoolRequest))
		s.Equal("AUTO_ECOLE:"+school.RequestNumber, school.QRPayload)
		s.Equal(150000.0, school.PaymentAmount)
		s.Equal(s.now, school.CreatedAt)
		s.Equal(map[audit.Action]int{audit.ActionCreation: 1}, s.actions(school.ID))
		s.Contains(s.events, notification.EventSchoolCreated)
	})

	s.Run("invalid request is rejected before any write", func() {
		_, err := s.service.Create(s.ctx, &models.CreateSchoolRequest{Name: "  "})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *SchoolServiceSuite) TestAccreditationPipeline() {
	school := s.authorizedSchool()

	s.Equal(models.StatusAutorisationProvisoire, school.Status)
	s.True(identifier.HasPrefix(school.AuthorizationCode, identifier.PrefixAuthorization))
	s.Require().NotNil(school.AuthorizationExpiresAt)
	s.Equal(s.now.AddDate(0, 6, 0), *school.AuthorizationExpiresAt)
	s.True(school.IsAuthorizationValid(s.now))
	s.False(school.IsAuthorizationValid(s.now.AddDate(0, 6, 0)))
	s.True(school.CanEnrollCandidates())

	s.Equal(map[audit.Action]int{
		audit.ActionCreation:    1,
		audit.ActionPaiement:    1,
		audit.ActionInspection:  2,
		audit.ActionApprobation: 1,
	}, s.actions(school.ID))
	s.Contains(s.events, notification.EventSchoolPaymentValidated)
	s.Contains(s.events, notification.EventSchoolAuthorized)

	stored, err := s.service.Get(s.ctx, school.ID)
	s.Require().NoError(err)
	s.Equal("Ondo", stored.Inspector.LastName)
	s.Equal("Locaux conformes", stored.InspectionReport)
	s.Equal("PAY-001", stored.PaymentReference)
}

func (s *SchoolServiceSuite) TestValidatePayment() {
	s.Run("second validation fails and leaves one payment entry", func() {
		school := s.createSchool()
		s.payments.EXPECT().Verify(gomock.Any(), "PAY-002", 150000.0).Return(true, nil).Times(1)

		_, err := s.service.ValidatePayment(s.ctx, school.ID, "PAY-002")
		s.Require().NoError(err)
		_, err = s.service.ValidatePayment(s.ctx, school.ID, "PAY-002")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

		s.Equal(1, s.actions(school.ID)[audit.ActionPaiement])
	})

	s.Run("refused payment leaves the school waiting", func() {
		school := s.createSchool()
		s.payments.EXPECT().Verify(gomock.Any(), "BAD", 150000.0).Return(false, nil)

		_, err := s.service.ValidatePayment(s.ctx, school.ID, "BAD")
		s.True(dErrors.HasCode(err, dErrors.CodePaymentInvalid))

		stored, err := s.service.Get(s.ctx, school.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusEnAttente, stored.Status)
		s.Nil(stored.PaidAt)
		s.Zero(s.actions(school.ID)[audit.ActionPaiement])
	})

	s.Run("gateway failure is reported as unavailable", func() {
		school := s.createSchool()
		s.payments.EXPECT().Verify(gomock.Any(), "PAY-003", gomock.Any()).Return(false, errors.New("connection refused"))

		_, err := s.service.ValidatePayment(s.ctx, school.ID, "PAY-003")
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	s.Run("unknown school", func() {
		_, err := s.service.ValidatePayment(s.ctx, id.NewSchoolID(), "PAY-004")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *SchoolServiceSuite) TestOutOfOrderSteps() {
	school := s.createSchool()

	_, err := s.service.ScheduleInspection(s.ctx, school.ID, models.Inspector{LastName: "Ondo"})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	_, err = s.service.GrantProvisionalAuthorization(s.ctx, school.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	s.Equal(map[audit.Action]int{audit.ActionCreation: 1}, s.actions(school.ID))
}

func (s *SchoolServiceSuite) TestRenewal() {
	school := s.authorizedSchool()

	_, err := s.service.ConfirmAuthorization(s.ctx, school.ID)
	s.Require().NoError(err)
	_, err = s.service.StartRenewal(s.ctx, school.ID)
	s.Require().NoError(err)

	later := s.now.AddDate(0, 5, 0)
	renewed, err := s.service.CompleteRenewal(requestcontext.WithTime(s.ctx, later), school.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusAutorisationValide, renewed.Status)
	s.Equal(later.AddDate(0, 6, 0), *renewed.AuthorizationExpiresAt)
	s.Equal(school.AuthorizationCode, renewed.AuthorizationCode)
}

func (s *SchoolServiceSuite) TestExits() {
	s.Run("reason is required", func() {
		school := s.createSchool()
		_, err := s.service.Reject(s.ctx, school.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("closed school cannot be suspended or updated", func() {
		school := s.createSchool()
		closed, err := s.service.Close(s.ctx, school.ID, "cessation d'activité")
		s.Require().NoError(err)
		s.Equal(models.StatusFerme, closed.Status)
		s.Equal("cessation d'activité", closed.StatusReason)

		_, err = s.service.Suspend(s.ctx, school.ID, "contrôle")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

		_, err = s.service.Update(s.ctx, school.ID, &models.UpdateSchoolRequest{Phone: "011"})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func (s *SchoolServiceSuite) TestUpdate() {
	school := s.createSchool()

	updated, err := s.service.Update(s.ctx, school.ID, &models.UpdateSchoolRequest{Phone: " 011 44 55 66 "})
	s.Require().NoError(err)
	s.Equal("011 44 55 66", updated.Phone)
	s.Equal(school.Name, updated.Name)

	entries, err := s.audit.Query(s.ctx, audit.Filter{EntityID: school.ID.String(), Action: audit.ActionModification})
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Contains(string(entries[0].Before), `"phone":""`)
	s.Contains(string(entries[0].After), `"phone":"011 44 55 66"`)
	s.Equal(audit.LevelWarning, entries[0].Level)
	s.Equal("agent-saf-1", entries[0].ActorID)
}

func (s *SchoolServiceSuite) TestAttachCandidate() {
	s.Run("pending school cannot enroll", func() {
		school := s.createSchool()
		err := s.service.AttachCandidate(s.ctx, school.ID, id.NewCandidateID())
		s.True(dErrors.HasCode(err, dErrors.CodeGuardNotSatisfied))
	})

	s.Run("attaching twice keeps one reference", func() {
		school := s.authorizedSchool()
		cid := id.NewCandidateID()
		s.Require().NoError(s.service.AttachCandidate(s.ctx, school.ID, cid))
		s.Require().NoError(s.service.AttachCandidate(s.ctx, school.ID, cid))

		stored, err := s.service.Get(s.ctx, school.ID)
		s.Require().NoError(err)
		s.Equal([]id.CandidateID{cid}, stored.CandidateIDs)
	})
}

func (s *SchoolServiceSuite) TestQueries() {
	first := s.createSchool()
	second, err := s.service.Create(s.ctx, &models.CreateSchoolRequest{
		Name: "Conduite Plus", OwnerName: "Nze", City: "Franceville", Province: "Haut-Ogooué",
	})
	s.Require().NoError(err)

	s.Run("lookup by request number", func() {
		got, err := s.service.GetByRequestNumber(s.ctx, second.RequestNumber)
		s.Require().NoError(err)
		s.Equal(second.ID, got.ID)

		_, err = s.service.GetByRequestNumber(s.ctx, "XX123")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("list filters by city", func() {
		got, err := s.service.List(s.ctx, models.ListFilter{City: "libreville"})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(first.ID, got[0].ID)

		_, err = s.service.List(s.ctx, models.ListFilter{Status: "OUVERT"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("statistics combine both stores", func() {
		s.candidates.EXPECT().CountByStatus(gomock.Any()).Return(map[candidatemodels.Status]int{
			candidatemodels.StatusEnrole:      3,
			candidatemodels.StatusEnFormation: 1,
		}, nil)

		stats, err := s.service.Statistics(s.ctx)
		s.Require().NoError(err)
		s.Equal(2, stats.TotalSchools)
		s.Equal(2, stats.SchoolsByStatus[models.StatusEnAttente])
		s.Equal(4, stats.TotalCandidates)
		s.Equal(3, stats.CandidatesByState["ENROLE"])
	})

	s.Run("list candidates delegates to the directory", func() {
		c := &candidatemodels.Candidate{ID: id.NewCandidateID(), SchoolID: first.ID}
		s.candidates.EXPECT().ListBySchool(gomock.Any(), first.ID).Return([]*candidatemodels.Candidate{c}, nil)

		got, err := s.service.ListCandidates(s.ctx, first.ID)
		s.Require().NoError(err)
		s.Equal([]*candidatemodels.Candidate{c}, got)
	})

	s.Run("payment link uses the request number", func() {
		s.payments.EXPECT().
			GeneratePaymentLink(gomock.Any(), first.RequestNumber, 150000.0, "Frais d'agrément Auto-école du Littoral").
			Return("https://pay/"+first.RequestNumber, nil)

		link, err := s.service.PaymentLink(s.ctx, first.ID)
		s.Require().NoError(err)
		s.Equal("https://pay/"+first.RequestNumber, link)
	})
}
