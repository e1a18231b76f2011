// Package documents produces references to exam reports (procès-verbaux),
// digital signatures and QR payloads. Rendering the artifacts themselves is
// out of scope; references are stable and verifiable.
package documents

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"

	dErrors "dgtt/pkg/domain-errors"
)

// Signer roles on an exam report.
const (
	SignerExaminer  = "EXAMINATEUR"
	SignerCandidate = "CANDIDAT"
)

// ReportInput is what a report reference is derived from.
type ReportInput struct {
	ExamNumber    string
	LicenseNumber string
	ExamType      string
	Score         float64
	Errors        int
	Passed        bool
}

// Generator is the document collaborator port used by the exam pipeline.
type Generator interface {
	Report(ctx context.Context, in ReportInput) (string, error)
	Sign(ctx context.Context, signer, examNumber, reportRef string) (string, error)
}

// Signer derives references from keyed BLAKE2b-256 digests.
type Signer struct {
	key []byte
}

// NewSigner requires a key of 1 to 64 bytes.
func NewSigner(key string) (*Signer, error) {
	if len(key) == 0 || len(key) > blake2b.Size {
		return nil, fmt.Errorf("document signing key must be 1-%d bytes", blake2b.Size)
	}
	return &Signer{key: []byte(key)}, nil
}

func (s *Signer) digest(parts ...string) (string, error) {
	h, err := blake2b.New256(s.key)
	if err != nil {
		return "", err
	}
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Report returns "pv/<examNumber>/<digest>".
func (s *Signer) Report(ctx context.Context, in ReportInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeTimeout, "report generation cancelled")
	}
	if in.ExamNumber == "" {
		return "", dErrors.New(dErrors.CodeValidation, "exam number is required")
	}
	sum, err := s.digest("pv", in.ExamNumber, in.LicenseNumber, in.ExamType,
		fmt.Sprintf("%.2f", in.Score), fmt.Sprint(in.Errors), fmt.Sprint(in.Passed))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to digest report")
	}
	return "pv/" + in.ExamNumber + "/" + sum[:32], nil
}

// Sign returns "sig/<signer>/<examNumber>/<digest>" binding the signer to the report.
func (s *Signer) Sign(ctx context.Context, signer, examNumber, reportRef string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeTimeout, "signature cancelled")
	}
	if signer == "" || examNumber == "" || reportRef == "" {
		return "", dErrors.New(dErrors.CodeValidation, "signer, exam number and report are required")
	}
	sum, err := s.digest("sig", signer, examNumber, reportRef)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to digest signature")
	}
	return "sig/" + signer + "/" + examNumber + "/" + sum, nil
}

// VerifySignature checks that ref was produced by Sign for the same inputs.
func (s *Signer) VerifySignature(ref, signer, examNumber, reportRef string) bool {
	want, err := s.digest("sig", signer, examNumber, reportRef)
	if err != nil {
		return false
	}
	got, ok := strings.CutPrefix(ref, "sig/"+signer+"/"+examNumber+"/")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// QR payloads printed on certificates and convocations.
func SchoolQR(requestNumber string) string    { return "AUTO_ECOLE:" + requestNumber }
func CandidateQR(licenseNumber string) string { return "CANDIDAT:" + licenseNumber }
func ExamQR(examNumber string) string         { return "EXAMEN:" + examNumber }
