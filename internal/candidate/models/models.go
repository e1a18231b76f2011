package models

import (
	"maps"
	"slices"
	"time"

	id "dgtt/pkg/domain"
)

// Status is the position of a candidate in the licensing pipeline.
type Status string

const (
	StatusEnrole             Status = "ENROLE"
	StatusPaiementEnAttente  Status = "PAIEMENT_EN_ATTENTE"
	StatusPreEnrole          Status = "PRE_ENROLE"
	StatusEnFormation        Status = "EN_FORMATION"
	StatusEvaluationEnCours  Status = "EVALUATION_EN_COURS"
	StatusEvaluationComplete Status = "EVALUATION_COMPLETE"
	StatusDossierValide      Status = "DOSSIER_VALIDE"
	StatusExamenProgramme    Status = "EXAMEN_PROGRAMME"
	StatusExamenEnCours      Status = "EXAMEN_EN_COURS"
	StatusExamenReussi       Status = "EXAMEN_REUSSI"
	StatusPermisGenere       Status = "PERMIS_GENERE"
	StatusPermisDelivre      Status = "PERMIS_DELIVRE"
	StatusRejete             Status = "REJETE"
	StatusSuspendu           Status = "SUSPENDU"
)

// AllStatuses is the closed set, in pipeline order.
var AllStatuses = []Status{
	StatusEnrole,
	StatusPaiementEnAttente,
	StatusPreEnrole,
	StatusEnFormation,
	StatusEvaluationEnCours,
	StatusEvaluationComplete,
	StatusDossierValide,
	StatusExamenProgramme,
	StatusExamenEnCours,
	StatusExamenReussi,
	StatusPermisGenere,
	StatusPermisDelivre,
	StatusRejete,
	StatusSuspendu,
}

func (s Status) IsValid() bool { return slices.Contains(AllStatuses, s) }

// DocumentKind names a supporting document of the dossier.
type DocumentKind string

const (
	DocumentPhoto     DocumentKind = "PHOTO_IDENTITE"
	DocumentIdentity  DocumentKind = "PIECE_IDENTITE"
	DocumentMedical   DocumentKind = "CERTIFICAT_MEDICAL"
	DocumentResidence DocumentKind = "ATTESTATION_RESIDENCE"
)

// RequiredDocuments must all be on file before the dossier is validated.
var RequiredDocuments = []DocumentKind{DocumentPhoto, DocumentIdentity, DocumentMedical, DocumentResidence}

func (k DocumentKind) IsValid() bool { return slices.Contains(RequiredDocuments, k) }

type Document struct {
	Kind       DocumentKind `json:"kind"`
	URL        string       `json:"url"`
	UploadedAt time.Time    `json:"uploaded_at"`
}

// EvaluationType is one of the practice evaluations run by the school.
type EvaluationType string

const (
	EvaluationCode      EvaluationType = "CODE_ROUTE"
	EvaluationCreneau   EvaluationType = "CRENEAU"
	EvaluationCityDrive EvaluationType = "CONDUITE_VILLE"
)

// RequiredEvaluations must each have one passed attempt.
var RequiredEvaluations = []EvaluationType{EvaluationCode, EvaluationCreneau, EvaluationCityDrive}

func (t EvaluationType) IsValid() bool { return slices.Contains(RequiredEvaluations, t) }

const (
	EvaluationMaxScore  = 20.0
	EvaluationMaxErrors = 3
	MaxAttempts         = 3
	passRatio           = 0.70
)

// EvaluationPassed applies the pass rule: 70% of the maximum and at most three errors.
func EvaluationPassed(score float64, errors int) bool {
	return score >= passRatio*EvaluationMaxScore && errors <= EvaluationMaxErrors
}

type Evaluation struct {
	Type        EvaluationType `json:"type"`
	PassNumber  int            `json:"pass_number"`
	Score       float64        `json:"score"`
	Errors      int            `json:"errors"`
	Passed      bool           `json:"passed"`
	Evaluator   string         `json:"evaluator,omitempty"`
	Comments    string         `json:"comments,omitempty"`
	EvaluatedAt time.Time      `json:"evaluated_at"`
}

// Candidate is a person enrolled by an authorized school.
type Candidate struct {
	ID               id.CandidateID `json:"id"`
	SchoolID         id.SchoolID    `json:"school_id"`
	LicenseNumber    string         `json:"license_number"`
	EvaluationNumber string         `json:"evaluation_number"`
	QRPayload        string         `json:"qr_payload"`
	Status           Status         `json:"status"`

	LastName   string `json:"last_name"`
	FirstName  string `json:"first_name"`
	BirthDate  string `json:"birth_date"`
	BirthPlace string `json:"birth_place,omitempty"`
	NationalID string `json:"national_id,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	Category   string `json:"category"`

	PaymentAmount    float64    `json:"payment_amount"`
	PaymentReference string     `json:"payment_reference,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`

	Documents   map[DocumentKind]Document `json:"documents"`
	Evaluations []Evaluation              `json:"evaluations"`

	StatusReason      string     `json:"status_reason,omitempty"`
	DossierValidAt    *time.Time `json:"dossier_validated_at,omitempty"`
	PermitDeliveredAt *time.Time `json:"permit_delivered_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Candidate) HasPaid() bool { return c.PaidAt != nil && c.PaymentReference != "" }

func (c *Candidate) HasDocument(kind DocumentKind) bool {
	doc, ok := c.Documents[kind]
	return ok && doc.URL != ""
}

// MissingDocuments lists required documents not yet on file, in a stable order.
func (c *Candidate) MissingDocuments() []DocumentKind {
	var missing []DocumentKind
	for _, kind := range RequiredDocuments {
		if !c.HasDocument(kind) {
			missing = append(missing, kind)
		}
	}
	return missing
}

func (c *Candidate) HasRequiredDocuments() bool { return len(c.MissingDocuments()) == 0 }

// Attempts counts the evaluations already recorded for t.
func (c *Candidate) Attempts(t EvaluationType) int {
	n := 0
	for _, e := range c.Evaluations {
		if e.Type == t {
			n++
		}
	}
	return n
}

// EvaluationsComplete holds when every required type has a passed attempt.
// A candidate with no evaluation at all is not complete.
func (c *Candidate) EvaluationsComplete() bool {
	if len(c.Evaluations) == 0 {
		return false
	}
	for _, t := range RequiredEvaluations {
		if !slices.ContainsFunc(c.Evaluations, func(e Evaluation) bool { return e.Type == t && e.Passed }) {
			return false
		}
	}
	return true
}

// IsDossierComplete holds once payment and every required document are on file.
func (c *Candidate) IsDossierComplete() bool { return c.HasPaid() && c.HasRequiredDocuments() }

// CanSitExam holds for a validated dossier that has not yet sat the exam.
func (c *Candidate) CanSitExam() bool {
	if c.Status != StatusDossierValide && c.Status != StatusExamenProgramme {
		return false
	}
	return c.IsDossierComplete()
}

// FullName is the display name used on exam reports.
func (c *Candidate) FullName() string {
	if c.FirstName == "" {
		return c.LastName
	}
	return c.FirstName + " " + c.LastName
}

func (c *Candidate) Clone() *Candidate {
	if c == nil {
		return nil
	}
	cp := *c
	cp.PaidAt = cloneTime(c.PaidAt)
	cp.DossierValidAt = cloneTime(c.DossierValidAt)
	cp.PermitDeliveredAt = cloneTime(c.PermitDeliveredAt)
	cp.Documents = maps.Clone(c.Documents)
	cp.Evaluations = slices.Clone(c.Evaluations)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// ListFilter narrows List. Zero fields match everything.
type ListFilter struct {
	SchoolID id.SchoolID
	Status   Status
	Category string
}

func (f ListFilter) Matches(c *Candidate) bool {
	if !f.SchoolID.IsNil() && c.SchoolID != f.SchoolID {
		return false
	}
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.Category != "" && c.Category != f.Category {
		return false
	}
	return true
}
