// Package domain holds the typed identifiers shared by every module.
//
// Entities reference each other through these IDs only; no package holds a
// pointer to another entity kind.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "dgtt/pkg/domain-errors"
)

type (
	SchoolID    uuid.UUID
	CandidateID uuid.UUID
	ExamID      uuid.UUID
)

func NewSchoolID() SchoolID       { return SchoolID(uuid.New()) }
func NewCandidateID() CandidateID { return CandidateID(uuid.New()) }
func NewExamID() ExamID           { return ExamID(uuid.New()) }

func (id SchoolID) String() string    { return uuid.UUID(id).String() }
func (id CandidateID) String() string { return uuid.UUID(id).String() }
func (id ExamID) String() string      { return uuid.UUID(id).String() }

func (id SchoolID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id CandidateID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ExamID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

func (id SchoolID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id CandidateID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id ExamID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }

func (id *SchoolID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *CandidateID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ExamID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }

func ParseSchoolID(s string) (SchoolID, error) {
	u, err := parseUUID(s, "school")
	return SchoolID(u), err
}

func ParseCandidateID(s string) (CandidateID, error) {
	u, err := parseUUID(s, "candidate")
	return CandidateID(u), err
}

func ParseExamID(s string) (ExamID, error) {
	u, err := parseUUID(s, "exam")
	return ExamID(u), err
}

// parseUUID rejects empty, malformed and nil UUIDs at the trust boundary.
func parseUUID(s, kind string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id is required", kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s id", kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s id cannot be nil", kind)
	}
	return u, nil
}
