package workflow

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the scenario client these steps use.
type TestContext interface {
	SetRole(role string)
	Role() string
	MustSucceed(ctx context.Context, method, path, body string) error
	Field(path string) (string, error)
	Remember(name, value string)
}

// RegisterSteps registers the setup steps that walk entities to a given
// point of the workflow.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	s := &workflowSteps{tc: tc}

	ctx.Step(`^an authorized driving school "([^"]*)"$`, s.authorizedSchool)
	ctx.Step(`^a candidate in category "([^"]*)" with a validated dossier$`, s.validatedCandidate)
	ctx.Step(`^the exam office has programmed a "([^"]*)" exam for that candidate$`, s.programmedExam)
}

type workflowSteps struct {
	tc TestContext
}

type call struct {
	path string
	body string
}

// as runs calls under role, then restores the scenario's role.
func (s *workflowSteps) as(ctx context.Context, role string, calls ...call) error {
	prev := s.tc.Role()
	s.tc.SetRole(role)
	defer s.tc.SetRole(prev)
	for _, c := range calls {
		if err := s.tc.MustSucceed(ctx, http.MethodPost, c.path, c.body); err != nil {
			return err
		}
	}
	return nil
}

func (s *workflowSteps) rememberID(name string) error {
	v, err := s.tc.Field("id")
	if err != nil {
		return err
	}
	s.tc.Remember(name, v)
	return nil
}

func (s *workflowSteps) authorizedSchool(ctx context.Context, name string) error {
	body := fmt.Sprintf(`{"name":%q,"owner_name":"Rakoto Jean","city":"Antananarivo","province":"Analamanga","categories":"B"}`, name)
	if err := s.as(ctx, "SAF", call{"/auto-ecoles", body}); err != nil {
		return err
	}
	if err := s.rememberID("school_id"); err != nil {
		return err
	}
	return s.as(ctx, "SAF",
		call{"/auto-ecoles/{school_id}/paiement", `{"reference":"MVOLA-E2E-SCHOOL"}`},
		call{"/auto-ecoles/{school_id}/inspection", `{"inspector_last_name":"Randria","inspector_first_name":"Paul"}`},
		call{"/auto-ecoles/{school_id}/inspection/validation", `{"report":"Locaux et véhicules conformes"}`},
		call{"/auto-ecoles/{school_id}/autorisation-provisoire", ""},
	)
}

func (s *workflowSteps) validatedCandidate(ctx context.Context, category string) error {
	body := fmt.Sprintf(`{"school_id":"{school_id}","last_name":"Rabe","first_name":"Hery","birth_date":"2001-04-12","phone":"+261340000000","category":%q}`, category)
	if err := s.as(ctx, "SAF", call{"/candidats", body}); err != nil {
		return err
	}
	if err := s.rememberID("candidate_id"); err != nil {
		return err
	}

	calls := []call{
		{"/candidats/{candidate_id}/paiement/demande", ""},
		{"/candidats/{candidate_id}/paiement", `{"reference":"MVOLA-E2E-CANDIDATE"}`},
	}
	for _, kind := range []string{"PHOTO_IDENTITE", "PIECE_IDENTITE", "CERTIFICAT_MEDICAL", "ATTESTATION_RESIDENCE"} {
		calls = append(calls, call{"/candidats/{candidate_id}/documents",
			fmt.Sprintf(`{"kind":%q,"url":"s3://dossiers/e2e/%s.pdf"}`, kind, kind)})
	}
	calls = append(calls, call{"/candidats/{candidate_id}/formation", ""})
	for _, typ := range []string{"CODE_ROUTE", "CRENEAU", "CONDUITE_VILLE"} {
		calls = append(calls, call{"/candidats/{candidate_id}/evaluations",
			fmt.Sprintf(`{"type":%q,"pass_number":1,"score":16,"errors":1,"evaluator":"Moniteur E2E"}`, typ)})
	}
	calls = append(calls,
		call{"/candidats/{candidate_id}/evaluations/fin", ""},
		call{"/candidats/{candidate_id}/validation", ""},
	)
	return s.as(ctx, "SEV", calls...)
}

func (s *workflowSteps) programmedExam(ctx context.Context, examType string) error {
	at := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	body := fmt.Sprintf(`{"candidate_id":"{candidate_id}","type":%q,"scheduled_at":%q,"place":"Centre d'examen Alarobia","examiner":{"last_name":"Rasoa","first_name":"Lala"}}`, examType, at)
	if err := s.as(ctx, "SEV", call{"/examens", body}); err != nil {
		return err
	}
	return s.rememberID("exam_id")
}
