package models

import (
	"dgtt/pkg/statemachine"
)

// Event drives a school transition.
type Event string

const (
	EventValidatePayment      Event = "VALIDER_PAIEMENT"
	EventScheduleInspection   Event = "PROGRAMMER_INSPECTION"
	EventValidateInspection   Event = "VALIDER_INSPECTION"
	EventGrantProvisional     Event = "ACCORDER_AUTORISATION_PROVISOIRE"
	EventConfirmAuthorization Event = "CONFIRMER_AUTORISATION"
	EventStartRenewal         Event = "DEMARRER_RENOUVELLEMENT"
	EventCompleteRenewal      Event = "TERMINER_RENOUVELLEMENT"
	EventReject               Event = "REJETER"
	EventSuspend              Event = "SUSPENDRE"
	EventClose                Event = "FERMER"
)

var nonTerminal = []Status{
	StatusEnAttente,
	StatusPaiementValide,
	StatusInspectionEnCours,
	StatusInspectionValidee,
	StatusAutorisationProvisoire,
	StatusAutorisationValide,
	StatusRenouvellementEnCours,
	StatusSuspendu,
}

var machine = buildMachine()

func buildMachine() *statemachine.Machine[Status, Event, *School] {
	b := statemachine.NewBuilder[Status, Event, *School]("auto-ecole", AllStatuses...).
		Allow(StatusEnAttente, EventValidatePayment, StatusPaiementValide).
		AllowIf(StatusPaiementValide, EventScheduleInspection, StatusInspectionEnCours,
			"payment recorded", (*School).HasPaid).
		AllowIf(StatusInspectionEnCours, EventValidateInspection, StatusInspectionValidee,
			"inspector assigned", func(s *School) bool { return !s.Inspector.IsZero() }).
		AllowIf(StatusInspectionValidee, EventGrantProvisional, StatusAutorisationProvisoire,
			"inspection report", func(s *School) bool { return s.InspectionReport != "" }).
		AllowIf(StatusAutorisationProvisoire, EventConfirmAuthorization, StatusAutorisationValide,
			"authorization code", func(s *School) bool { return s.AuthorizationCode != "" }).
		AllowFromEach([]Status{StatusAutorisationProvisoire, StatusAutorisationValide},
			EventStartRenewal, StatusRenouvellementEnCours).
		Allow(StatusRenouvellementEnCours, EventCompleteRenewal, StatusAutorisationValide)

	for _, from := range nonTerminal {
		b.Allow(from, EventReject, StatusRejete)
		b.Allow(from, EventClose, StatusFerme)
		if from != StatusSuspendu {
			b.Allow(from, EventSuspend, StatusSuspendu)
		}
	}
	return b.Build()
}

// Machine exposes the school transition table.
func Machine() *statemachine.Machine[Status, Event, *School] { return machine }

// Next resolves the state s moves to under ev without mutating s.
func Next(s *School, ev Event) (Status, error) {
	return machine.Attempt(s, s.Status, ev)
}
