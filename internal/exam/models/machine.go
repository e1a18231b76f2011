package models

import (
	"dgtt/pkg/statemachine"
)

// Event drives an exam transition.
type Event string

const (
	EventStart    Event = "DEMARRER"
	EventFinish   Event = "TERMINER"
	EventValidate Event = "VALIDER"
	EventReject   Event = "REJETER"
	EventCancel   Event = "ANNULER"
)

var machine = statemachine.NewBuilder[Status, Event, *Exam]("examen", AllStatuses...).
	Allow(StatusProgramme, EventStart, StatusEnCours).
	AllowIf(StatusEnCours, EventFinish, StatusTermine,
		"score recorded", func(e *Exam) bool { return e.Score != nil && e.Passed != nil }).
	AllowIf(StatusTermine, EventValidate, StatusValide,
		"score, outcome and report recorded", (*Exam).IsComplete).
	AllowFromEach([]Status{StatusProgramme, StatusEnCours}, EventReject, StatusRejete).
	AllowFromEach([]Status{StatusProgramme, StatusEnCours}, EventCancel, StatusAnnule).
	Build()

// Machine exposes the exam transition table.
func Machine() *statemachine.Machine[Status, Event, *Exam] { return machine }

// Next resolves the state e moves to under ev without mutating e.
func Next(e *Exam, ev Event) (Status, error) {
	return machine.Attempt(e, e.Status, ev)
}
