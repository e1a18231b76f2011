package models

import (
	"math"
	"strings"
	"time"

	id "dgtt/pkg/domain"
	dErrors "dgtt/pkg/domain-errors"
)

// ReceiveDossierRequest hands a validated candidate over to the exam office.
type ReceiveDossierRequest struct {
	CandidateID id.CandidateID `json:"candidate_id"`
	Type        Type           `json:"type"`
	ScheduledAt *time.Time     `json:"scheduled_at"`
	Place       string         `json:"place"`
	Examiner    Examiner       `json:"examiner"`
}

func (r *ReceiveDossierRequest) Normalize() {
	r.Type = Type(strings.ToUpper(strings.TrimSpace(string(r.Type))))
	if r.Type == "" {
		r.Type = DefaultType
	}
	r.Place = strings.TrimSpace(r.Place)
	r.Examiner = r.Examiner.normalized()
}

func (r *ReceiveDossierRequest) Validate() error {
	if r.CandidateID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "candidate_id is required")
	}
	if !r.Type.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown exam type %q", r.Type)
	}
	return nil
}

// ScheduleRequest sets the date, place and examiner of a programmed exam.
type ScheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at"`
	Place       string    `json:"place"`
	Examiner    Examiner  `json:"examiner"`
}

func (r *ScheduleRequest) Normalize() {
	r.Place = strings.TrimSpace(r.Place)
	r.Examiner = r.Examiner.normalized()
}

func (r *ScheduleRequest) Validate() error {
	if r.ScheduledAt.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "scheduled_at is required")
	}
	if r.Place == "" {
		return dErrors.New(dErrors.CodeValidation, "place is required")
	}
	if r.Examiner.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "examiner last_name is required")
	}
	return nil
}

// FinishRequest carries the results of a sitting.
type FinishRequest struct {
	Score          float64 `json:"score"`
	Errors         int     `json:"errors"`
	ElapsedMinutes int     `json:"elapsed_minutes"`
	Comments       string  `json:"comments"`
}

func (r *FinishRequest) Normalize() { r.Comments = strings.TrimSpace(r.Comments) }

func (r *FinishRequest) Validate() error {
	if math.IsNaN(r.Score) || r.Score < 0 {
		return dErrors.New(dErrors.CodeValidation, "score must be a number between 0 and the exam maximum")
	}
	if r.Errors < 0 {
		return dErrors.New(dErrors.CodeValidation, "errors cannot be negative")
	}
	if r.ElapsedMinutes < 0 {
		return dErrors.New(dErrors.CodeValidation, "elapsed_minutes cannot be negative")
	}
	return nil
}

type ReasonRequest struct {
	Reason string `json:"reason"`
}

func (r *ReasonRequest) Normalize() { r.Reason = strings.TrimSpace(r.Reason) }

func (r *ReasonRequest) Validate() error {
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	return nil
}

func (e Examiner) normalized() Examiner {
	return Examiner{
		LastName:  strings.TrimSpace(e.LastName),
		FirstName: strings.TrimSpace(e.FirstName),
		Badge:     strings.ToUpper(strings.TrimSpace(e.Badge)),
	}
}
