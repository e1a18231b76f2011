package models

import (
	"slices"
	"time"

	id "dgtt/pkg/domain"
)

// Status is the position of an official exam in its lifecycle.
type Status string

const (
	StatusProgramme Status = "PROGRAMME"
	StatusEnCours   Status = "EN_COURS"
	StatusTermine   Status = "TERMINE"
	StatusValide    Status = "VALIDE"
	StatusRejete    Status = "REJETE"
	StatusAnnule    Status = "ANNULE"
)

var AllStatuses = []Status{
	StatusProgramme,
	StatusEnCours,
	StatusTermine,
	StatusValide,
	StatusRejete,
	StatusAnnule,
}

func (s Status) IsValid() bool { return slices.Contains(AllStatuses, s) }

// Type is the kind of official exam.
type Type string

const (
	TypeCodeRoute         Type = "CODE_ROUTE"
	TypeConduitePratique  Type = "CONDUITE_PRATIQUE"
	TypeConduiteUrbaine   Type = "CONDUITE_URBAINE"
	TypeConduiteAutoroute Type = "CONDUITE_AUTOROUTE"
	TypeConduiteNuit      Type = "CONDUITE_NUIT"
	TypeConduiteMeteo     Type = "CONDUITE_METEO"
)

// DefaultType is used when an exam is scheduled without a type.
const DefaultType = TypeConduitePratique

// Rule is the grading table entry of an exam type.
type Rule struct {
	Label     string
	MaxScore  float64
	MaxErrors int
}

const passRatio = 0.70

var rules = map[Type]Rule{
	TypeCodeRoute:         {Label: "Code de la route", MaxScore: 20, MaxErrors: 5},
	TypeConduitePratique:  {Label: "Conduite pratique", MaxScore: 20, MaxErrors: 3},
	TypeConduiteUrbaine:   {Label: "Conduite urbaine", MaxScore: 20, MaxErrors: 3},
	TypeConduiteAutoroute: {Label: "Conduite autoroute", MaxScore: 20, MaxErrors: 2},
	TypeConduiteNuit:      {Label: "Conduite de nuit", MaxScore: 20, MaxErrors: 1},
	TypeConduiteMeteo:     {Label: "Conduite par mauvais temps", MaxScore: 20, MaxErrors: 1},
}

func (t Type) IsValid() bool {
	_, ok := rules[t]
	return ok
}

// Rule returns the grading rule of t. Unknown types grade as DefaultType.
func (t Type) Rule() Rule {
	if r, ok := rules[t]; ok {
		return r
	}
	return rules[DefaultType]
}

// PassMark is 70% of the maximum score.
func (r Rule) PassMark() float64 { return passRatio * r.MaxScore }

// Passed is the scorer: the pass mark must be reached and the error count
// must not exceed the tolerance of the type.
func (r Rule) Passed(score float64, errors int) bool {
	return score >= r.PassMark() && errors <= r.MaxErrors
}

// Examiner is the official conducting the exam.
type Examiner struct {
	LastName  string `json:"last_name"`
	FirstName string `json:"first_name"`
	Badge     string `json:"badge,omitempty"`
}

func (e Examiner) IsZero() bool { return e.LastName == "" }

func (e Examiner) FullName() string {
	if e.FirstName == "" {
		return e.LastName
	}
	return e.FirstName + " " + e.LastName
}

// Exam is the official exam sat by one candidate. SchoolID is copied from
// the candidate at scheduling time.
type Exam struct {
	ID          id.ExamID      `json:"id"`
	ExamNumber  string         `json:"exam_number"`
	CandidateID id.CandidateID `json:"candidate_id"`
	SchoolID    id.SchoolID    `json:"school_id"`
	Type        Type           `json:"type"`
	Status      Status         `json:"status"`

	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	Place       string     `json:"place,omitempty"`
	Examiner    Examiner   `json:"examiner"`

	Score          *float64 `json:"score,omitempty"`
	Errors         int      `json:"errors"`
	ElapsedMinutes int      `json:"elapsed_minutes"`
	Passed         *bool    `json:"passed,omitempty"`
	Comments       string   `json:"comments,omitempty"`

	QRPayload          string `json:"qr_payload"`
	ReportRef          string `json:"report_ref,omitempty"`
	ExaminerSignature  string `json:"examiner_signature,omitempty"`
	CandidateSignature string `json:"candidate_signature,omitempty"`

	StatusReason string     `json:"status_reason,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ValidatedAt  *time.Time `json:"validated_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsComplete holds once score, outcome and report are all recorded.
func (e *Exam) IsComplete() bool {
	return e.Score != nil && e.Passed != nil && e.ReportRef != ""
}

// CanBeValidated is the validation guard.
func (e *Exam) CanBeValidated() bool {
	return e.Status == StatusTermine && e.IsComplete()
}

func (e *Exam) HasPassed() bool { return e.Passed != nil && *e.Passed }

func (e *Exam) Clone() *Exam {
	if e == nil {
		return nil
	}
	cp := *e
	cp.ScheduledAt = clonePtr(e.ScheduledAt)
	cp.Score = clonePtr(e.Score)
	cp.Passed = clonePtr(e.Passed)
	cp.StartedAt = clonePtr(e.StartedAt)
	cp.FinishedAt = clonePtr(e.FinishedAt)
	cp.ValidatedAt = clonePtr(e.ValidatedAt)
	return &cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ListFilter narrows List. Zero fields match everything; Statuses matches
// any of the listed statuses.
type ListFilter struct {
	CandidateID id.CandidateID
	SchoolID    id.SchoolID
	Statuses    []Status
}

func (f ListFilter) Matches(e *Exam) bool {
	if !f.CandidateID.IsNil() && e.CandidateID != f.CandidateID {
		return false
	}
	if !f.SchoolID.IsNil() && e.SchoolID != f.SchoolID {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, e.Status) {
		return false
	}
	return true
}
