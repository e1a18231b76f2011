package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "dgtt/pkg/domain-errors"
)

func TestParseID_Invariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE auto_ecoles;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Empty string", "", true},
		{"Nil UUID", uuid.Nil.String(), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSchoolID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	valid := uuid.New().String()

	t.Run("all accept valid UUID", func(t *testing.T) {
		s, errSchool := ParseSchoolID(valid)
		c, errCandidate := ParseCandidateID(valid)
		e, errExam := ParseExamID(valid)

		require.NoError(t, errSchool)
		require.NoError(t, errCandidate)
		require.NoError(t, errExam)
		assert.Equal(t, valid, s.String())
		assert.Equal(t, valid, c.String())
		assert.Equal(t, valid, e.String())
	})

	for _, input := range []string{"", "invalid", uuid.Nil.String()} {
		t.Run("all reject: "+input, func(t *testing.T) {
			_, errSchool := ParseSchoolID(input)
			_, errCandidate := ParseCandidateID(input)
			_, errExam := ParseExamID(input)

			require.Error(t, errSchool)
			require.Error(t, errCandidate)
			require.Error(t, errExam)
		})
	}
}

func TestIDText(t *testing.T) {
	id := NewCandidateID()
	b, err := id.MarshalText()
	require.NoError(t, err)

	var decoded CandidateID
	require.NoError(t, decoded.UnmarshalText(b))
	assert.Equal(t, id, decoded)
	assert.False(t, decoded.IsNil())
	assert.True(t, CandidateID{}.IsNil())
}
