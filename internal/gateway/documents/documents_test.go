package documents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignerReferences(t *testing.T) {
	s, err := NewSigner("unit-test-key")
	require.NoError(t, err)
	ctx := context.Background()

	in := ReportInput{ExamNumber: "EXAM1", LicenseNumber: "LIC1", ExamType: "CODE_ROUTE", Score: 15, Errors: 2, Passed: true}
	report, err := s.Report(ctx, in)
	require.NoError(t, err)
	assert.Regexp(t, `^pv/EXAM1/[0-9a-f]{32}$`, report)

	again, err := s.Report(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, report, again)

	in.Score = 14
	changed, err := s.Report(ctx, in)
	require.NoError(t, err)
	assert.NotEqual(t, report, changed)

	sig, err := s.Sign(ctx, SignerExaminer, "EXAM1", report)
	require.NoError(t, err)
	assert.True(t, s.VerifySignature(sig, SignerExaminer, "EXAM1", report))
	assert.False(t, s.VerifySignature(sig, SignerCandidate, "EXAM1", report))
	assert.False(t, s.VerifySignature(sig, SignerExaminer, "EXAM1", changed))

	other, _ := NewSigner("another-key")
	assert.False(t, other.VerifySignature(sig, SignerExaminer, "EXAM1", report))
}

func TestSignerRejectsBadInput(t *testing.T) {
	_, err := NewSigner("")
	assert.Error(t, err)

	s, _ := NewSigner("k")
	_, err = s.Sign(context.Background(), "", "EXAM1", "pv/x")
	assert.Error(t, err)
	_, err = s.Report(context.Background(), ReportInput{})
	assert.Error(t, err)
}

func TestQRPayloads(t *testing.T) {
	assert.Equal(t, "AUTO_ECOLE:AE1", SchoolQR("AE1"))
	assert.Equal(t, "CANDIDAT:LIC1", CandidateQR("LIC1"))
	assert.Equal(t, "EXAMEN:EXAM1", ExamQR("EXAM1"))
}
