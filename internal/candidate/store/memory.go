// Package store persists candidates in memory or in Postgres.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"dgtt/internal/candidate/models"
	id "dgtt/pkg/domain"
	"dgtt/pkg/platform/sentinel"
)

// InMemory keeps candidates in a map guarded by one mutex.
type InMemory struct {
	mu         sync.RWMutex
	candidates map[id.CandidateID]*models.Candidate
	byLicense  map[string]id.CandidateID
}

func NewInMemory() *InMemory {
	return &InMemory{
		candidates: make(map[id.CandidateID]*models.Candidate),
		byLicense:  make(map[string]id.CandidateID),
	}
}

func (s *InMemory) Create(_ context.Context, c *models.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.candidates[c.ID]; ok {
		return fmt.Errorf("candidate %s: %w", c.ID, sentinel.ErrConflict)
	}
	if _, ok := s.byLicense[c.LicenseNumber]; ok {
		return fmt.Errorf("license number %s: %w", c.LicenseNumber, sentinel.ErrConflict)
	}
	s.candidates[c.ID] = c.Clone()
	s.byLicense[c.LicenseNumber] = c.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, candidateID id.CandidateID) (*models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.candidates[candidateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

func (s *InMemory) FindByLicenseNumber(_ context.Context, number string) (*models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	candidateID, ok := s.byLicense[number]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.candidates[candidateID].Clone(), nil
}

// List returns matching candidates, oldest first.
func (s *InMemory) List(_ context.Context, filter models.ListFilter) ([]*models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Candidate, 0)
	for _, c := range s.candidates {
		if filter.Matches(c) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].LicenseNumber < out[j].LicenseNumber
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemory) ListBySchool(ctx context.Context, schoolID id.SchoolID) ([]*models.Candidate, error) {
	return s.List(ctx, models.ListFilter{SchoolID: schoolID})
}

func (s *InMemory) CountByStatus(_ context.Context) (map[models.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[models.Status]int)
	for _, c := range s.candidates {
		counts[c.Status]++
	}
	return counts, nil
}

// Execute validates and mutates a candidate under the store lock.
func (s *InMemory) Execute(_ context.Context, candidateID id.CandidateID, validate func(*models.Candidate) error, mutate func(*models.Candidate)) (*models.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.candidates[candidateID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := current.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.candidates[candidateID] = working
	return working.Clone(), nil
}
