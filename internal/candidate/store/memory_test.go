package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"dgtt/internal/candidate/models"
	id "dgtt/pkg/domain"
	"dgtt/pkg/platform/sentinel"
)

type CandidateMemorySuite struct {
	suite.Suite
	store  *InMemory
	ctx    context.Context
	base   time.Time
	school id.SchoolID
}

func TestCandidateMemorySuite(t *testing.T) {
	suite.Run(t, new(CandidateMemorySuite))
}

func (s *CandidateMemorySuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.base = time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	s.school = id.NewSchoolID()
}

func (s *CandidateMemorySuite) add(license, category string, school id.SchoolID, offset time.Duration) *models.Candidate {
	c := &models.Candidate{
		ID:            id.NewCandidateID(),
		SchoolID:      school,
		LicenseNumber: license,
		Status:        models.StatusEnrole,
		LastName:      "Mba",
		FirstName:     "Aurore",
		Category:      category,
		Documents:     map[models.DocumentKind]models.Document{},
		CreatedAt:     s.base.Add(offset),
	}
	s.Require().NoError(s.store.Create(s.ctx, c))
	return c
}

func (s *CandidateMemorySuite) TestCreateAndFind() {
	c := s.add("LIC1", "B", s.school, 0)

	s.Run("duplicate license number conflicts", func() {
		dup := &models.Candidate{ID: id.NewCandidateID(), LicenseNumber: "LIC1"}
		s.ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrConflict)
	})

	s.Run("returned candidates are copies", func() {
		got, err := s.store.FindByID(s.ctx, c.ID)
		s.Require().NoError(err)
		got.Documents[models.DocumentPhoto] = models.Document{Kind: models.DocumentPhoto, URL: "x"}

		again, err := s.store.FindByLicenseNumber(s.ctx, "LIC1")
		s.Require().NoError(err)
		s.Empty(again.Documents)
	})

	s.Run("missing candidate", func() {
		_, err := s.store.FindByID(s.ctx, id.NewCandidateID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *CandidateMemorySuite) TestListAndCount() {
	other := id.NewSchoolID()
	s.add("LIC3", "B", s.school, 3*time.Hour)
	s.add("LIC1", "A", s.school, time.Hour)
	s.add("LIC2", "B", other, 2*time.Hour)

	bySchool, err := s.store.ListBySchool(s.ctx, s.school)
	s.Require().NoError(err)
	s.Require().Len(bySchool, 2)
	s.Equal("LIC1", bySchool[0].LicenseNumber)

	byCategory, err := s.store.List(s.ctx, models.ListFilter{Category: "B"})
	s.Require().NoError(err)
	s.Len(byCategory, 2)

	counts, err := s.store.CountByStatus(s.ctx)
	s.Require().NoError(err)
	s.Equal(map[models.Status]int{models.StatusEnrole: 3}, counts)
}

func (s *CandidateMemorySuite) TestExecute() {
	c := s.add("LIC1", "B", s.school, 0)

	s.Run("validation failure leaves the candidate untouched", func() {
		boom := errors.New("guard failed")
		_, err := s.store.Execute(s.ctx, c.ID,
			func(*models.Candidate) error { return boom },
			func(cd *models.Candidate) { cd.Status = models.StatusRejete },
		)
		s.ErrorIs(err, boom)

		got, err := s.store.FindByID(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusEnrole, got.Status)
	})

	s.Run("concurrent mutations are serialized", func() {
		var wg sync.WaitGroup
		for i := 0; i < 30; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.store.Execute(s.ctx, c.ID,
					func(*models.Candidate) error { return nil },
					func(cd *models.Candidate) {
						cd.Evaluations = append(cd.Evaluations, models.Evaluation{Type: models.EvaluationCode})
					},
				)
				s.NoError(err)
			}()
		}
		wg.Wait()

		got, err := s.store.FindByID(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Len(got.Evaluations, 30)
	})
}
