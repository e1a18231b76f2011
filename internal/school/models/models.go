package models

import (
	"slices"
	"strings"
	"time"

	id "dgtt/pkg/domain"
)

// AuthorizationValidity is how long a provisional or renewed authorization lasts.
const AuthorizationValidity = 6 // months

// Status is the accreditation state of a school.
type Status string

const (
	StatusEnAttente              Status = "EN_ATTENTE"
	StatusPaiementValide         Status = "PAIEMENT_VALIDE"
	StatusInspectionEnCours      Status = "INSPECTION_EN_COURS"
	StatusInspectionValidee      Status = "INSPECTION_VALIDEE"
	StatusAutorisationProvisoire Status = "AUTORISATION_PROVISOIRE"
	StatusAutorisationValide     Status = "AUTORISATION_VALIDE"
	StatusRenouvellementEnCours  Status = "RENOUVELLEMENT_EN_COURS"
	StatusRejete                 Status = "REJETE"
	StatusSuspendu               Status = "SUSPENDU"
	StatusFerme                  Status = "FERME"
)

// AllStatuses is the closed set, in pipeline order.
var AllStatuses = []Status{
	StatusEnAttente,
	StatusPaiementValide,
	StatusInspectionEnCours,
	StatusInspectionValidee,
	StatusAutorisationProvisoire,
	StatusAutorisationValide,
	StatusRenouvellementEnCours,
	StatusRejete,
	StatusSuspendu,
	StatusFerme,
}

func (s Status) IsValid() bool { return slices.Contains(AllStatuses, s) }

// CanEnrollCandidates holds only while the school operates under an authorization.
func (s Status) CanEnrollCandidates() bool {
	return s == StatusAutorisationProvisoire || s == StatusAutorisationValide
}

// Inspector is the agent assigned to the on-site inspection.
type Inspector struct {
	LastName  string `json:"last_name"`
	FirstName string `json:"first_name"`
}

func (i Inspector) IsZero() bool { return i.LastName == "" && i.FirstName == "" }

// School is an auto-école going through accreditation. Candidates are
// referenced by ID only.
type School struct {
	ID            id.SchoolID `json:"id"`
	RequestNumber string      `json:"request_number"`
	QRPayload     string      `json:"qr_payload"`
	Status        Status      `json:"status"`

	Name       string `json:"name"`
	OwnerName  string `json:"owner_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Province   string `json:"province"`
	Categories string `json:"categories,omitempty"`

	PaymentAmount    float64    `json:"payment_amount"`
	PaymentReference string     `json:"payment_reference,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`

	Inspector        Inspector  `json:"inspector"`
	InspectionReport string     `json:"inspection_report,omitempty"`
	InspectedAt      *time.Time `json:"inspected_at,omitempty"`

	AuthorizationCode      string     `json:"authorization_code,omitempty"`
	AuthorizationIssuedAt  *time.Time `json:"authorization_issued_at,omitempty"`
	AuthorizationExpiresAt *time.Time `json:"authorization_expires_at,omitempty"`

	StatusReason string           `json:"status_reason,omitempty"`
	CandidateIDs []id.CandidateID `json:"candidate_ids"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsAuthorizationValid reports whether a code was issued and now is before its expiry.
func (s *School) IsAuthorizationValid(now time.Time) bool {
	return s.AuthorizationCode != "" && s.AuthorizationExpiresAt != nil && now.Before(*s.AuthorizationExpiresAt)
}

func (s *School) CanEnrollCandidates() bool { return s.Status.CanEnrollCandidates() }

func (s *School) HasPaid() bool { return s.PaidAt != nil && s.PaymentReference != "" }

// HasCandidate reports whether cid is attached.
func (s *School) HasCandidate(cid id.CandidateID) bool {
	return slices.Contains(s.CandidateIDs, cid)
}

// Clone returns a deep copy safe to hand out of a store.
func (s *School) Clone() *School {
	if s == nil {
		return nil
	}
	c := *s
	c.PaidAt = cloneTime(s.PaidAt)
	c.InspectedAt = cloneTime(s.InspectedAt)
	c.AuthorizationIssuedAt = cloneTime(s.AuthorizationIssuedAt)
	c.AuthorizationExpiresAt = cloneTime(s.AuthorizationExpiresAt)
	c.CandidateIDs = slices.Clone(s.CandidateIDs)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// ListFilter narrows List. Empty fields match everything; Name matches a
// case-insensitive substring, City and Province match exactly ignoring case.
type ListFilter struct {
	Status   Status
	City     string
	Province string
	Name     string
}

func (f ListFilter) Matches(s *School) bool {
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.City != "" && !strings.EqualFold(s.City, f.City) {
		return false
	}
	if f.Province != "" && !strings.EqualFold(s.Province, f.Province) {
		return false
	}
	if f.Name != "" && !strings.Contains(strings.ToLower(s.Name), strings.ToLower(f.Name)) {
		return false
	}
	return true
}

// Statistics summarizes schools and the candidates they enrolled.
type Statistics struct {
	TotalSchools      int            `json:"total_schools"`
	TotalCandidates   int            `json:"total_candidates"`
	SchoolsByStatus   map[Status]int `json:"schools_by_status"`
	CandidatesByState map[string]int `json:"candidates_by_status"`
}
