// Package store persists schools in memory or in Postgres.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"dgtt/internal/school/models"
	id "dgtt/pkg/domain"
	"dgtt/pkg/platform/sentinel"
)

// InMemory keeps schools in a map guarded by one mutex. Execute holds the
// lock across validate and mutate.
type InMemory struct {
	mu       sync.RWMutex
	schools  map[id.SchoolID]*models.School
	byNumber map[string]id.SchoolID
}

func NewInMemory() *InMemory {
	return &InMemory{
		schools:  make(map[id.SchoolID]*models.School),
		byNumber: make(map[string]id.SchoolID),
	}
}

func (s *InMemory) Create(_ context.Context, school *models.School) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schools[school.ID]; ok {
		return fmt.Errorf("school %s: %w", school.ID, sentinel.ErrConflict)
	}
	if _, ok := s.byNumber[school.RequestNumber]; ok {
		return fmt.Errorf("request number %s: %w", school.RequestNumber, sentinel.ErrConflict)
	}
	s.schools[school.ID] = school.Clone()
	s.byNumber[school.RequestNumber] = school.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, schoolID id.SchoolID) (*models.School, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	school, ok := s.schools[schoolID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return school.Clone(), nil
}

func (s *InMemory) FindByRequestNumber(_ context.Context, number string) (*models.School, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	schoolID, ok := s.byNumber[number]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.schools[schoolID].Clone(), nil
}

// List returns matching schools, oldest first.
func (s *InMemory) List(_ context.Context, filter models.ListFilter) ([]*models.School, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.School, 0, len(s.schools))
	for _, school := range s.schools {
		if filter.Matches(school) {
			out = append(out, school.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].RequestNumber < out[j].RequestNumber
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemory) CountByStatus(_ context.Context) (map[models.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[models.Status]int)
	for _, school := range s.schools {
		counts[school.Status]++
	}
	return counts, nil
}

// Execute validates and mutates a school atomically. When validate fails the
// stored school is left untouched.
func (s *InMemory) Execute(_ context.Context, schoolID id.SchoolID, validate func(*models.School) error, mutate func(*models.School)) (*models.School, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.schools[schoolID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := current.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.schools[schoolID] = working
	return working.Clone(), nil
}
