package models

import (
	"net/mail"
	"strings"

	dErrors "dgtt/pkg/domain-errors"
)

// CreateSchoolRequest is the application filed by a school owner.
type CreateSchoolRequest struct {
	Name       string `json:"name"`
	OwnerName  string `json:"owner_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Province   string `json:"province"`
	Categories string `json:"categories"`
}

func (r *CreateSchoolRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.OwnerName = strings.TrimSpace(r.OwnerName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	r.Address = strings.TrimSpace(r.Address)
	r.City = strings.TrimSpace(r.City)
	r.Province = strings.TrimSpace(r.Province)
	r.Categories = strings.ToUpper(strings.ReplaceAll(r.Categories, " ", ""))
}

func (r *CreateSchoolRequest) Validate() error {
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.OwnerName == "" {
		return dErrors.New(dErrors.CodeValidation, "owner_name is required")
	}
	if r.City == "" || r.Province == "" {
		return dErrors.New(dErrors.CodeValidation, "city and province are required")
	}
	if r.Email != "" {
		if _, err := mail.ParseAddress(r.Email); err != nil {
			return dErrors.New(dErrors.CodeValidation, "email is invalid")
		}
	}
	return nil
}

// UpdateSchoolRequest changes contact fields. Empty fields are left as is.
type UpdateSchoolRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	City     string `json:"city"`
	Province string `json:"province"`
}

func (r *UpdateSchoolRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	r.Address = strings.TrimSpace(r.Address)
	r.City = strings.TrimSpace(r.City)
	r.Province = strings.TrimSpace(r.Province)
}

func (r *UpdateSchoolRequest) Validate() error {
	if *r == (UpdateSchoolRequest{}) {
		return dErrors.New(dErrors.CodeValidation, "at least one field must be provided")
	}
	if r.Email != "" {
		if _, err := mail.ParseAddress(r.Email); err != nil {
			return dErrors.New(dErrors.CodeValidation, "email is invalid")
		}
	}
	return nil
}

// Apply copies the non-empty fields onto s.
func (r *UpdateSchoolRequest) Apply(s *School) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&s.Name, r.Name)
	set(&s.Email, r.Email)
	set(&s.Phone, r.Phone)
	set(&s.Address, r.Address)
	set(&s.City, r.City)
	set(&s.Province, r.Province)
}

type ValidatePaymentRequest struct {
	Reference string `json:"reference"`
}

func (r *ValidatePaymentRequest) Normalize() { r.Reference = strings.TrimSpace(r.Reference) }

func (r *ValidatePaymentRequest) Validate() error {
	if r.Reference == "" {
		return dErrors.New(dErrors.CodeValidation, "reference is required")
	}
	return nil
}

type ScheduleInspectionRequest struct {
	InspectorLastName  string `json:"inspector_last_name"`
	InspectorFirstName string `json:"inspector_first_name"`
}

func (r *ScheduleInspectionRequest) Normalize() {
	r.InspectorLastName = strings.TrimSpace(r.InspectorLastName)
	r.InspectorFirstName = strings.TrimSpace(r.InspectorFirstName)
}

func (r *ScheduleInspectionRequest) Validate() error {
	if r.InspectorLastName == "" {
		return dErrors.New(dErrors.CodeValidation, "inspector_last_name is required")
	}
	return nil
}

type ValidateInspectionRequest struct {
	Report string `json:"report"`
}

func (r *ValidateInspectionRequest) Normalize() { r.Report = strings.TrimSpace(r.Report) }

func (r *ValidateInspectionRequest) Validate() error {
	if r.Report == "" {
		return dErrors.New(dErrors.CodeValidation, "report is required")
	}
	return nil
}

// ReasonRequest carries the motive for reject, suspend and close.
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
