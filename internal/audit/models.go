package audit

import (
	"encoding/json"
	"slices"
	"time"
)

// Action is the closed taxonomy of audited operations.
type Action string

const (
	ActionCreation                  Action = "CREATION"
	ActionLecture                   Action = "LECTURE"
	ActionModification              Action = "MODIFICATION"
	ActionSuppression               Action = "SUPPRESSION"
	ActionConnexion                 Action = "CONNEXION"
	ActionDeconnexion               Action = "DECONNEXION"
	ActionTentativeConnexion        Action = "TENTATIVE_CONNEXION"
	ActionChangementMotDePasse      Action = "CHANGEMENT_MOT_DE_PASSE"
	ActionUploadFichier             Action = "UPLOAD_FICHIER"
	ActionDownloadFichier           Action = "DOWNLOAD_FICHIER"
	ActionGenerationDocument        Action = "GENERATION_DOCUMENT"
	ActionEnvoiEmail                Action = "ENVOI_EMAIL"
	ActionEnvoiSMS                  Action = "ENVOI_SMS"
	ActionPaiement                  Action = "PAIEMENT"
	ActionValidation                Action = "VALIDATION"
	ActionRejet                     Action = "REJET"
	ActionApprobation               Action = "APPROBATION"
	ActionInspection                Action = "INSPECTION"
	ActionEvaluation                Action = "EVALUATION"
	ActionExamen                    Action = "EXAMEN"
	ActionGenerationQRCode          Action = "GENERATION_QR_CODE"
	ActionSignatureNumerique        Action = "SIGNATURE_NUMERIQUE"
	ActionExportDonnees             Action = "EXPORT_DONNEES"
	ActionImportDonnees             Action = "IMPORT_DONNEES"
	ActionModificationDonneesSens   Action = "MODIFICATION_DONNEES_SENSIBLES"
	ActionAccesDonneesSensibles     Action = "ACCES_DONNEES_SENSIBLES"
	ActionTentativeAccesNonAutorise Action = "TENTATIVE_ACCES_NON_AUTORISE"
	ActionErreurSysteme             Action = "ERREUR_SYSTEME"
	ActionMaintenance               Action = "MAINTENANCE"

	// Exam pipeline
	ActionProgrammationExamen    Action = "PROGRAMMATION_EXAMEN"
	ActionDebutExamen            Action = "DEBUT_EXAMEN"
	ActionFinExamen              Action = "FIN_EXAMEN"
	ActionValidationExamen       Action = "VALIDATION_EXAMEN"
	ActionGenerationProcesVerbal Action = "GENERATION_PROCES_VERBAL"
	ActionEnvoiSTIAS             Action = "ENVOI_STIAS"
	ActionNotification           Action = "NOTIFICATION"
)

// Level is the security classification of an entry.
type Level string

const (
	LevelInfo       Level = "INFO"
	LevelConformite Level = "CONFORMITE"
	LevelWarning    Level = "WARNING"
	LevelSecurite   Level = "SECURITE"
	LevelAlerte     Level = "ALERTE"
	LevelCritique   Level = "CRITIQUE"
)

var levelRank = map[Level]int{
	LevelInfo:       1,
	LevelConformite: 1,
	LevelWarning:    2,
	LevelSecurite:   3,
	LevelAlerte:     4,
	LevelCritique:   5,
}

// Rank orders levels for minimum-level filters. Unknown levels rank 0.
func (l Level) Rank() int {
	return levelRank[l]
}

// AtLeast reports whether l is as severe as min.
func (l Level) AtLeast(min Level) bool {
	return l.Rank() >= min.Rank()
}

func (l Level) IsValid() bool {
	_, ok := levelRank[l]
	return ok
}

// LevelsAtLeast lists every level ranked at or above min, used by SQL filters.
func LevelsAtLeast(min Level) []Level {
	var out []Level
	for _, l := range []Level{LevelInfo, LevelConformite, LevelWarning, LevelSecurite, LevelAlerte, LevelCritique} {
		if l.AtLeast(min) {
			out = append(out, l)
		}
	}
	return out
}

// DefaultAlertLevel is the threshold used by the needs-alert query when the
// caller does not pass one.
const DefaultAlertLevel = LevelAlerte

var (
	criticalActions = []Action{
		ActionSuppression,
		ActionModificationDonneesSens,
		ActionTentativeAccesNonAutorise,
		ActionChangementMotDePasse,
	}
	sensitiveActions = []Action{
		ActionModificationDonneesSens,
		ActionAccesDonneesSensibles,
	}
	modifyingActions = []Action{
		ActionModification,
		ActionModificationDonneesSens,
		ActionChangementMotDePasse,
		ActionValidation,
		ActionRejet,
		ActionApprobation,
		ActionValidationExamen,
		ActionSignatureNumerique,
	}
)

// LevelFor derives the security level of an action. It is total: actions
// outside the taxonomy are INFO.
func LevelFor(a Action) Level {
	switch {
	case slices.Contains(criticalActions, a):
		return LevelCritique
	case slices.Contains(sensitiveActions, a):
		return LevelSecurite
	case slices.Contains(modifyingActions, a):
		return LevelWarning
	default:
		return LevelInfo
	}
}

// EntityType names the audited entity kind.
type EntityType string

const (
	EntitySchool    EntityType = "AUTO_ECOLE"
	EntityCandidate EntityType = "CANDIDAT"
	EntityExam      EntityType = "EXAMEN"
)

// Entry is an immutable audit record.
type Entry struct {
	ID         string          `json:"id"`
	Action     Action          `json:"action"`
	Level      Level           `json:"level"`
	EntityType EntityType      `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	ActorID    string          `json:"actor_id"`
	ActorRole  string          `json:"actor_role,omitempty"`
	Message    string          `json:"message"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
	ClientIP   string          `json:"client_ip,omitempty"`
	UserAgent  string          `json:"user_agent,omitempty"`
	RequestID  string          `json:"request_id,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NeedsAlert reports whether the entry should page an operator.
func (e Entry) NeedsAlert() bool {
	return e.Level.AtLeast(DefaultAlertLevel)
}

// Filter narrows queries. Zero fields match everything.
type Filter struct {
	EntityType EntityType
	EntityID   string
	ActorID    string
	Action     Action
	MinLevel   Level
	From       time.Time // inclusive
	To         time.Time // exclusive
	Limit      int
}

// Matches applies the filter to a single entry.
func (f Filter) Matches(e Entry) bool {
	if f.EntityType != "" && e.EntityType != f.EntityType {
		return false
	}
	if f.EntityID != "" && e.EntityID != f.EntityID {
		return false
	}
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.MinLevel != "" && !e.Level.AtLeast(f.MinLevel) {
		return false
	}
	if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.CreatedAt.Before(f.To) {
		return false
	}
	return true
}

// GroupBy selects the dimension of a grouped count.
type GroupBy string

const (
	GroupByAction GroupBy = "action"
	GroupByActor  GroupBy = "actor"
	GroupByLevel  GroupBy = "level"
	GroupByEntity GroupBy = "entity"
)

func (g GroupBy) IsValid() bool {
	switch g {
	case GroupByAction, GroupByActor, GroupByLevel, GroupByEntity:
		return true
	}
	return false
}

// Key returns the grouping key of e under g.
func (g GroupBy) Key(e Entry) string {
	switch g {
	case GroupByAction:
		return string(e.Action)
	case GroupByActor:
		return e.ActorID
	case GroupByLevel:
		return string(e.Level)
	case GroupByEntity:
		return string(e.EntityType)
	}
	return ""
}

// Count is one row of a grouped count, ordered by descending Total.
type Count struct {
	Key   string `json:"key"`
	Total int64  `json:"total"`
}
