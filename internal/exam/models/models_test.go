package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "dgtt/pkg/domain"
	dErrors "dgtt/pkg/domain-errors"
	"dgtt/pkg/testutil"
)

func TestScorer(t *testing.T) {
	t.Run("thresholds per type", func(t *testing.T) {
		want := map[Type]int{
			TypeCodeRoute:         5,
			TypeConduitePratique:  3,
			TypeConduiteUrbaine:   3,
			TypeConduiteAutoroute: 2,
			TypeConduiteNuit:      1,
			TypeConduiteMeteo:     1,
		}
		for typ, maxErrors := range want {
			r := typ.Rule()
			assert.Equal(t, 20.0, r.MaxScore, typ)
			assert.Equal(t, maxErrors, r.MaxErrors, typ)
			assert.InDelta(t, 14.0, r.PassMark(), 1e-9, typ)
		}
	})

	t.Run("boundaries", func(t *testing.T) {
		for _, typ := range []Type{TypeCodeRoute, TypeConduitePratique, TypeConduiteNuit} {
			r := typ.Rule()
			assert.True(t, r.Passed(14.0, r.MaxErrors), typ)
			assert.False(t, r.Passed(13.99, 0), typ)
			assert.False(t, r.Passed(20, r.MaxErrors+1), typ)
		}
	})

	t.Run("code exam at ten fails", func(t *testing.T) {
		assert.False(t, TypeCodeRoute.Rule().Passed(10, 0))
	})

	t.Run("unknown type grades as practical driving", func(t *testing.T) {
		assert.Equal(t, TypeConduitePratique.Rule(), Type("PARKING").Rule())
		assert.False(t, Type("PARKING").IsValid())
	})
}

func TestExamMachine(t *testing.T) {
	m := Machine()

	t.Run("lifecycle", func(t *testing.T) {
		e := &Exam{Status: StatusProgramme}
		next, err := Next(e, EventStart)
		require.NoError(t, err)
		e.Status = next

		_, err = Next(e, EventFinish)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeGuardNotSatisfied))

		score, passed := 16.0, true
		e.Score, e.Passed = &score, &passed
		next, err = Next(e, EventFinish)
		require.NoError(t, err)
		e.Status = next
		assert.Equal(t, StatusTermine, e.Status)

		_, err = Next(e, EventValidate)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeGuardNotSatisfied))
		assert.False(t, e.CanBeValidated())

		e.ReportRef = "PV-1"
		assert.True(t, e.CanBeValidated())
		next, err = Next(e, EventValidate)
		require.NoError(t, err)
		assert.Equal(t, StatusValide, next)
	})

	t.Run("exits only before the result", func(t *testing.T) {
		for _, from := range []Status{StatusProgramme, StatusEnCours} {
			for _, ev := range []Event{EventReject, EventCancel} {
				_, ok := m.Target(from, ev)
				assert.True(t, ok, "%s %s", from, ev)
			}
		}
		_, err := Next(&Exam{Status: StatusTermine}, EventCancel)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	t.Run("terminal states", func(t *testing.T) {
		for _, st := range AllStatuses {
			want := st == StatusValide || st == StatusRejete || st == StatusAnnule
			assert.Equal(t, want, m.IsTerminal(st), st)
		}
	})

	t.Run("restarting is an invalid transition", func(t *testing.T) {
		_, err := Next(&Exam{Status: StatusEnCours}, EventStart)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func TestFailedExamScenario(t *testing.T) {
	testutil.Given(t, "a highway exam in progress", func(t *testing.T) {
		e := &Exam{Type: TypeConduiteAutoroute, Status: StatusEnCours}

		testutil.When(t, "the candidate scores 15 with three errors", func(t *testing.T) {
			score := 15.0
			passed := e.Type.Rule().Passed(score, 3)
			e.Score, e.Passed = &score, &passed

			testutil.Then(t, "the exam still finishes but is not passed", func(t *testing.T) {
				next, err := Next(e, EventFinish)
				require.NoError(t, err)
				assert.Equal(t, StatusTermine, next)
				assert.False(t, e.HasPassed())
			})
		})
	})
}

func TestListFilter(t *testing.T) {
	candidate := id.NewCandidateID()
	e := &Exam{CandidateID: candidate, SchoolID: id.NewSchoolID(), Status: StatusEnCours}

	assert.True(t, ListFilter{}.Matches(e))
	assert.True(t, ListFilter{CandidateID: candidate, Statuses: []Status{StatusProgramme, StatusEnCours}}.Matches(e))
	assert.False(t, ListFilter{Statuses: []Status{StatusTermine}}.Matches(e))
	assert.False(t, ListFilter{SchoolID: id.NewSchoolID()}.Matches(e))
}

func TestRequests(t *testing.T) {
	t.Run("type defaults to practical driving", func(t *testing.T) {
		req := &ReceiveDossierRequest{CandidateID: id.NewCandidateID()}
		req.Normalize()
		require.NoError(t, req.Validate())
		assert.Equal(t, TypeConduitePratique, req.Type)
	})

	t.Run("unknown type", func(t *testing.T) {
		req := &ReceiveDossierRequest{CandidateID: id.NewCandidateID(), Type: "parking"}
		req.Normalize()
		assert.True(t, dErrors.HasCode(req.Validate(), dErrors.CodeValidation))
	})

	t.Run("negative results", func(t *testing.T) {
		assert.Error(t, (&FinishRequest{Score: -1}).Validate())
		assert.Error(t, (&FinishRequest{Errors: -1}).Validate())
		assert.NoError(t, (&FinishRequest{Score: 0}).Validate())
		assert.True(t, dErrors.HasCode((&FinishRequest{Score: math.NaN()}).Validate(), dErrors.CodeValidation))
	})

	t.Run("clone is deep", func(t *testing.T) {
		score := 12.0
		e := &Exam{Score: &score}
		cp := e.Clone()
		*cp.Score = 18
		assert.Equal(t, 12.0, *e.Score)
	})
}
