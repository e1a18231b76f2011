package models

import (
	"dgtt/pkg/statemachine"
)

// Event drives a candidate transition.
type Event string

const (
	EventRequestPayment      Event = "DEMANDER_PAIEMENT"
	EventConfirmPayment      Event = "CONFIRMER_PAIEMENT"
	EventStartTraining       Event = "DEMARRER_FORMATION"
	EventStartEvaluation     Event = "DEMARRER_EVALUATION"
	EventCompleteEvaluations Event = "TERMINER_EVALUATIONS"
	EventValidateDossier     Event = "VALIDER_DOSSIER"
	EventScheduleExam        Event = "PROGRAMMER_EXAMEN"
	EventStartExam           Event = "DEMARRER_EXAMEN"
	EventPassExam            Event = "REUSSIR_EXAMEN"
	EventGeneratePermit      Event = "GENERER_PERMIS"
	EventDeliverPermit       Event = "DELIVRER_PERMIS"
	EventReject              Event = "REJETER"
	EventSuspend             Event = "SUSPENDRE"
)

var machine = buildMachine()

func buildMachine() *statemachine.Machine[Status, Event, *Candidate] {
	b := statemachine.NewBuilder[Status, Event, *Candidate]("candidat", AllStatuses...).
		Allow(StatusEnrole, EventRequestPayment, StatusPaiementEnAttente).
		AllowIf(StatusPaiementEnAttente, EventConfirmPayment, StatusPreEnrole,
			"payment recorded", (*Candidate).HasPaid).
		Allow(StatusPreEnrole, EventStartTraining, StatusEnFormation).
		Allow(StatusEnFormation, EventStartEvaluation, StatusEvaluationEnCours).
		AllowIf(StatusEvaluationEnCours, EventCompleteEvaluations, StatusEvaluationComplete,
			"evaluations complete", (*Candidate).EvaluationsComplete).
		AllowIf(StatusEvaluationComplete, EventValidateDossier, StatusDossierValide,
			"payment and documents on file", (*Candidate).IsDossierComplete).
		AllowIf(StatusDossierValide, EventScheduleExam, StatusExamenProgramme,
			"candidate can sit the exam", (*Candidate).CanSitExam).
		Allow(StatusExamenProgramme, EventStartExam, StatusExamenEnCours).
		AllowFromEach([]Status{StatusExamenProgramme, StatusExamenEnCours}, EventPassExam, StatusExamenReussi).
		Allow(StatusExamenReussi, EventGeneratePermit, StatusPermisGenere).
		Allow(StatusPermisGenere, EventDeliverPermit, StatusPermisDelivre)

	for _, from := range AllStatuses {
		if from == StatusPermisDelivre || from == StatusRejete {
			continue
		}
		b.Allow(from, EventReject, StatusRejete)
		if from != StatusSuspendu {
			b.Allow(from, EventSuspend, StatusSuspendu)
		}
	}
	return b.Build()
}

// Machine exposes the candidate transition table.
func Machine() *statemachine.Machine[Status, Event, *Candidate] { return machine }

// Next resolves the state c moves to under ev without mutating c.
func Next(c *Candidate, ev Event) (Status, error) {
	return machine.Attempt(c, c.Status, ev)
}

// EventTo finds the event whose edge leads from one state to target.
func EventTo(from, target Status) (Event, bool) {
	for _, ev := range machine.Events(from) {
		if to, ok := machine.Target(from, ev); ok && to == target {
			return ev, true
		}
	}
	return "", false
}
