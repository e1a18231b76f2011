package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "dgtt/pkg/domain-errors"
)

func TestTransitionTable(t *testing.T) {
	m := Machine()

	t.Run("happy path is linear", func(t *testing.T) {
		now := time.Now()
		s := &School{Status: StatusEnAttente}
		steps := []struct {
			ev    Event
			to    Status
			setup func()
		}{
			{EventValidatePayment, StatusPaiementValide, func() { s.PaymentReference = "R1"; s.PaidAt = &now }},
			{EventScheduleInspection, StatusInspectionEnCours, func() { s.Inspector = Inspector{LastName: "Ndong"} }},
			{EventValidateInspection, StatusInspectionValidee, func() { s.InspectionReport = "conforme" }},
			{EventGrantProvisional, StatusAutorisationProvisoire, func() { s.AuthorizationCode = "AUTH1" }},
			{EventConfirmAuthorization, StatusAutorisationValide, func() {}},
		}
		for _, step := range steps {
			step.setup()
			next, err := Next(s, step.ev)
			require.NoError(t, err, step.ev)
			assert.Equal(t, step.to, next)
			s.Status = next
		}
	})

	t.Run("every state can be reached from EN_ATTENTE", func(t *testing.T) {
		for _, st := range AllStatuses {
			assert.True(t, m.Reachable(StatusEnAttente, st), st)
		}
	})

	t.Run("only rejected and closed are terminal", func(t *testing.T) {
		for _, st := range AllStatuses {
			want := st == StatusRejete || st == StatusFerme
			assert.Equal(t, want, m.IsTerminal(st), st)
		}
	})

	t.Run("no edge is a self loop", func(t *testing.T) {
		for _, e := range m.Edges() {
			assert.NotEqual(t, e.From, e.To, e.Event)
		}
	})
}

func TestGuardsAndInvalidEdges(t *testing.T) {
	t.Run("inspection requires recorded payment", func(t *testing.T) {
		_, err := Next(&School{Status: StatusPaiementValide}, EventScheduleInspection)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeGuardNotSatisfied))
	})

	t.Run("re-validating payment is an invalid transition", func(t *testing.T) {
		_, err := Next(&School{Status: StatusPaiementValide}, EventValidatePayment)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	t.Run("renewal only from authorization states", func(t *testing.T) {
		_, err := Next(&School{Status: StatusInspectionValidee}, EventStartRenewal)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))

		next, err := Next(&School{Status: StatusAutorisationValide}, EventStartRenewal)
		require.NoError(t, err)
		assert.Equal(t, StatusRenouvellementEnCours, next)
	})

	t.Run("closed school cannot be suspended", func(t *testing.T) {
		_, err := Next(&School{Status: StatusFerme}, EventSuspend)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func TestCanEnrollCandidates(t *testing.T) {
	for _, st := range AllStatuses {
		want := st == StatusAutorisationProvisoire || st == StatusAutorisationValide
		assert.Equal(t, want, st.CanEnrollCandidates(), st)
	}
}

func TestIsAuthorizationValid(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Second), now.Add(time.Second)

	assert.False(t, (&School{AuthorizationCode: "AUTH1", AuthorizationExpiresAt: &past}).IsAuthorizationValid(now))
	assert.True(t, (&School{AuthorizationCode: "AUTH1", AuthorizationExpiresAt: &future}).IsAuthorizationValid(now))
	assert.False(t, (&School{AuthorizationExpiresAt: &future}).IsAuthorizationValid(now))
	assert.False(t, (&School{AuthorizationCode: "AUTH1"}).IsAuthorizationValid(now))
}

func TestListFilter(t *testing.T) {
	s := &School{Name: "Auto-École du Littoral", City: "Libreville", Province: "Estuaire", Status: StatusEnAttente}

	assert.True(t, ListFilter{}.Matches(s))
	assert.True(t, ListFilter{Name: "littoral", City: "LIBREVILLE"}.Matches(s))
	assert.False(t, ListFilter{Province: "Ogooué-Maritime"}.Matches(s))
	assert.False(t, ListFilter{Status: StatusFerme}.Matches(s))
}
