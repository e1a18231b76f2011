//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"dgtt/internal/exam/models"
	"dgtt/internal/exam/store"
	id "dgtt/pkg/domain"
	"dgtt/pkg/identifier"
	"dgtt/pkg/platform/sentinel"
	"dgtt/pkg/testutil/containers"
)

type ExamPostgresIntegrationSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
	ids      *identifier.Generator
}

func TestExamPostgresIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ExamPostgresIntegrationSuite))
}

func (s *ExamPostgresIntegrationSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.ids = identifier.New()
}

func (s *ExamPostgresIntegrationSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "examens"))
}

func (s *ExamPostgresIntegrationSuite) newExam(candidate id.CandidateID, school id.SchoolID, status models.Status) *models.Exam {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Exam{
		ID:          id.NewExamID(),
		ExamNumber:  s.ids.ExamNumber(),
		CandidateID: candidate,
		SchoolID:    school,
		Type:        models.TypeConduitePratique,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *ExamPostgresIntegrationSuite) TestRoundTripAndFilters() {
	ctx := context.Background()
	candidate, school := id.NewCandidateID(), id.NewSchoolID()
	first := s.newExam(candidate, school, models.StatusProgramme)
	s.Require().NoError(s.store.Create(ctx, first))
	s.Require().NoError(s.store.Create(ctx, s.newExam(candidate, school, models.StatusAnnule)))
	s.Require().NoError(s.store.Create(ctx, s.newExam(id.NewCandidateID(), id.NewSchoolID(), models.StatusProgramme)))

	dup := s.newExam(candidate, school, models.StatusProgramme)
	dup.ExamNumber = first.ExamNumber
	s.ErrorIs(s.store.Create(ctx, dup), sentinel.ErrConflict)

	byCandidate, err := s.store.List(ctx, models.ListFilter{CandidateID: candidate})
	s.Require().NoError(err)
	s.Len(byCandidate, 2)

	programmed, err := s.store.List(ctx, models.ListFilter{Statuses: []models.Status{models.StatusProgramme, models.StatusEnCours}})
	s.Require().NoError(err)
	s.Len(programmed, 2)

	score, passed := 17.5, true
	updated, err := s.store.Execute(ctx, first.ID,
		func(*models.Exam) error { return nil },
		func(e *models.Exam) {
			e.Status = models.StatusTermine
			e.Score, e.Passed = &score, &passed
		},
	)
	s.Require().NoError(err)
	s.Equal(models.StatusTermine, updated.Status)

	got, err := s.store.FindByNumber(ctx, first.ExamNumber)
	s.Require().NoError(err)
	s.Require().NotNil(got.Score)
	s.InDelta(17.5, *got.Score, 0.001)

	counts, err := s.store.CountByStatus(ctx)
	s.Require().NoError(err)
	s.Equal(1, counts[models.StatusProgramme])
	s.Equal(1, counts[models.StatusTermine])
	s.Equal(1, counts[models.StatusAnnule])
}
