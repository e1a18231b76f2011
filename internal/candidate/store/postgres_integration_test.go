//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"dgtt/internal/candidate/models"
	"dgtt/internal/candidate/store"
	id "dgtt/pkg/domain"
	"dgtt/pkg/identifier"
	"dgtt/pkg/platform/sentinel"
	"dgtt/pkg/testutil/containers"
)

type CandidatePostgresIntegrationSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
	ids      *identifier.Generator
}

func TestCandidatePostgresIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CandidatePostgresIntegrationSuite))
}

func (s *CandidatePostgresIntegrationSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.ids = identifier.New()
}

func (s *CandidatePostgresIntegrationSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "candidats"))
}

func (s *CandidatePostgresIntegrationSuite) newCandidate(school id.SchoolID, category string) *models.Candidate {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Candidate{
		ID:            id.NewCandidateID(),
		SchoolID:      school,
		LicenseNumber: s.ids.LicenseNumber(),
		Status:        models.StatusEnrole,
		LastName:      "Ondo",
		FirstName:     "Marie",
		Category:      category,
		Documents:     map[models.DocumentKind]models.Document{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *CandidatePostgresIntegrationSuite) TestRoundTripAndFilters() {
	ctx := context.Background()
	school := id.NewSchoolID()
	first := s.newCandidate(school, "B")
	s.Require().NoError(s.store.Create(ctx, first))
	s.Require().NoError(s.store.Create(ctx, s.newCandidate(school, "A")))
	s.Require().NoError(s.store.Create(ctx, s.newCandidate(id.NewSchoolID(), "B")))

	dup := s.newCandidate(school, "B")
	dup.LicenseNumber = first.LicenseNumber
	s.ErrorIs(s.store.Create(ctx, dup), sentinel.ErrConflict)

	bySchool, err := s.store.ListBySchool(ctx, school)
	s.Require().NoError(err)
	s.Len(bySchool, 2)

	byCategory, err := s.store.List(ctx, models.ListFilter{SchoolID: school, Category: "B"})
	s.Require().NoError(err)
	s.Require().Len(byCategory, 1)
	s.Equal(first.ID, byCategory[0].ID)

	updated, err := s.store.Execute(ctx, first.ID,
		func(*models.Candidate) error { return nil },
		func(c *models.Candidate) { c.Status = models.StatusPaiementEnAttente },
	)
	s.Require().NoError(err)
	s.Equal(models.StatusPaiementEnAttente, updated.Status)

	counts, err := s.store.CountByStatus(ctx)
	s.Require().NoError(err)
	s.Equal(2, counts[models.StatusEnrole])
	s.Equal(1, counts[models.StatusPaiementEnAttente])
}
