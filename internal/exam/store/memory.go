// Package store persists exams in memory or in Postgres.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"dgtt/internal/exam/models"
	id "dgtt/pkg/domain"
	"dgtt/pkg/platform/sentinel"
)

// InMemory keeps exams in a map guarded by one mutex.
type InMemory struct {
	mu       sync.RWMutex
	exams    map[id.ExamID]*models.Exam
	byNumber map[string]id.ExamID
}

func NewInMemory() *InMemory {
	return &InMemory{
		exams:    make(map[id.ExamID]*models.Exam),
		byNumber: make(map[string]id.ExamID),
	}
}

func (s *InMemory) Create(_ context.Context, e *models.Exam) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.exams[e.ID]; ok {
		return fmt.Errorf("exam %s: %w", e.ID, sentinel.ErrConflict)
	}
	if _, ok := s.byNumber[e.ExamNumber]; ok {
		return fmt.Errorf("exam number %s: %w", e.ExamNumber, sentinel.ErrConflict)
	}
	s.exams[e.ID] = e.Clone()
	s.byNumber[e.ExamNumber] = e.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, examID id.ExamID) (*models.Exam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.exams[examID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return e.Clone(), nil
}

func (s *InMemory) FindByNumber(_ context.Context, number string) (*models.Exam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	examID, ok := s.byNumber[number]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.exams[examID].Clone(), nil
}

// List returns matching exams, oldest first.
func (s *InMemory) List(_ context.Context, filter models.ListFilter) ([]*models.Exam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Exam, 0)
	for _, e := range s.exams {
		if filter.Matches(e) {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ExamNumber < out[j].ExamNumber
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemory) CountByStatus(_ context.Context) (map[models.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[models.Status]int)
	for _, e := range s.exams {
		out[e.Status]++
	}
	return out, nil
}

// Execute validates and mutates an exam under the store lock.
func (s *InMemory) Execute(_ context.Context, examID id.ExamID, validate func(*models.Exam) error, mutate func(*models.Exam)) (*models.Exam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.exams[examID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := current.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.exams[examID] = working
	return working.Clone(), nil
}
