package models

import (
	"math"
	"net/mail"
	"regexp"
	"strings"
	"time"

	id "dgtt/pkg/domain"
	dErrors "dgtt/pkg/domain-errors"
)

var categoryPattern = regexp.MustCompile(`^[A-G]$`)

const birthDateLayout = "2006-01-02"

// EnrollRequest is filed by an authorized school for a new candidate.
type EnrollRequest struct {
	SchoolID   id.SchoolID `json:"school_id"`
	LastName   string      `json:"last_name"`
	FirstName  string      `json:"first_name"`
	BirthDate  string      `json:"birth_date"`
	BirthPlace string      `json:"birth_place"`
	NationalID string      `json:"national_id"`
	Email      string      `json:"email"`
	Phone      string      `json:"phone"`
	Address    string      `json:"address"`
	City       string      `json:"city"`
	Category   string      `json:"category"`
}

func (r *EnrollRequest) Normalize() {
	r.LastName = strings.TrimSpace(r.LastName)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.BirthDate = strings.TrimSpace(r.BirthDate)
	r.BirthPlace = strings.TrimSpace(r.BirthPlace)
	r.NationalID = strings.TrimSpace(r.NationalID)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	r.Address = strings.TrimSpace(r.Address)
	r.City = strings.TrimSpace(r.City)
	r.Category = strings.ToUpper(strings.TrimSpace(r.Category))
}

func (r *EnrollRequest) Validate() error {
	if r.SchoolID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "school_id is required")
	}
	if r.LastName == "" || r.FirstName == "" {
		return dErrors.New(dErrors.CodeValidation, "last_name and first_name are required")
	}
	if _, err := time.Parse(birthDateLayout, r.BirthDate); err != nil {
		return dErrors.New(dErrors.CodeValidation, "birth_date must be formatted YYYY-MM-DD")
	}
	if r.Phone == "" {
		return dErrors.New(dErrors.CodeValidation, "phone is required")
	}
	if !categoryPattern.MatchString(r.Category) {
		return dErrors.Newf(dErrors.CodeValidation, "category %q must be a single letter A-G", r.Category)
	}
	if r.Email != "" {
		if _, err := mail.ParseAddress(r.Email); err != nil {
			return dErrors.New(dErrors.CodeValidation, "email is invalid")
		}
	}
	return nil
}

type ConfirmPaymentRequest struct {
	Reference string `json:"reference"`
}

func (r *ConfirmPaymentRequest) Normalize() { r.Reference = strings.TrimSpace(r.Reference) }

func (r *ConfirmPaymentRequest) Validate() error {
	if r.Reference == "" {
		return dErrors.New(dErrors.CodeValidation, "reference is required")
	}
	return nil
}

type AttachDocumentRequest struct {
	Kind DocumentKind `json:"kind"`
	URL  string       `json:"url"`
}

func (r *AttachDocumentRequest) Normalize() {
	r.Kind = DocumentKind(strings.ToUpper(strings.TrimSpace(string(r.Kind))))
	r.URL = strings.TrimSpace(r.URL)
}

func (r *AttachDocumentRequest) Validate() error {
	if !r.Kind.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown document kind %q", r.Kind)
	}
	if r.URL == "" {
		return dErrors.New(dErrors.CodeValidation, "url is required")
	}
	return nil
}

type RecordEvaluationRequest struct {
	Type       EvaluationType `json:"type"`
	PassNumber int            `json:"pass_number"`
	Score      float64        `json:"score"`
	Errors     int            `json:"errors"`
	Evaluator  string         `json:"evaluator"`
	Comments   string         `json:"comments"`
}

func (r *RecordEvaluationRequest) Normalize() {
	r.Type = EvaluationType(strings.ToUpper(strings.TrimSpace(string(r.Type))))
	r.Evaluator = strings.TrimSpace(r.Evaluator)
	r.Comments = strings.TrimSpace(r.Comments)
}

func (r *RecordEvaluationRequest) Validate() error {
	if !r.Type.IsValid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown evaluation type %q", r.Type)
	}
	if r.PassNumber < 1 || r.PassNumber > MaxAttempts {
		return dErrors.Newf(dErrors.CodeValidation, "pass_number must be between 1 and %d", MaxAttempts)
	}
	if math.IsNaN(r.Score) || r.Score < 0 || r.Score > EvaluationMaxScore {
		return dErrors.Newf(dErrors.CodeValidation, "score must be between 0 and %.0f", EvaluationMaxScore)
	}
	if r.Errors < 0 {
		return dErrors.New(dErrors.CodeValidation, "errors cannot be negative")
	}
	return nil
}

// ReasonRequest carries the motive for reject and suspend.
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
