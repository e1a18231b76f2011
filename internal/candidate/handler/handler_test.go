package handler

import (
	"bytes"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dgtt/internal/audit"
	auditstore "dgtt/internal/audit/store/memory"
	"dgtt/internal/candidate/models"
	"dgtt/internal/candidate/service"
	"dgtt/internal/candidate/store"
	"dgtt/internal/gateway/payment"
	"dgtt/internal/platform/config"
	schoolmodels "dgtt/internal/school/models"
	schoolservice "dgtt/internal/school/service"
	schoolstore "dgtt/internal/school/store"
	"dgtt/pkg/requestcontext"
	"dgtt/pkg/testutil"
)

type fixture struct {
	router http.Handler
	school *schoolmodels.School
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	cfg := config.Default().Payment
	cfg.Timeout = time.Second
	payments := payment.NewSimulated(cfg)
	recorder := audit.NewService(auditstore.NewInMemoryStore())

	schools := schoolservice.New(schoolstore.NewInMemory(), recorder, payments, schoolservice.WithLogger(logger))
	ctx := testutil.AgentContext("agent-saf", requestcontext.RoleSAF, time.Now())
	school, err := schools.Create(ctx, &schoolmodels.CreateSchoolRequest{
		Name: "Auto-école Nzeng-Ayong", OwnerName: "Mintsa", City: "Libreville", Province: "Estuaire",
	})
	require.NoError(t, err)
	_, err = schools.ValidatePayment(ctx, school.ID, "PAY-1")
	require.NoError(t, err)
	_, err = schools.ScheduleInspection(ctx, school.ID, schoolmodels.Inspector{LastName: "Ella"})
	require.NoError(t, err)
	_, err = schools.ValidateInspection(ctx, school.ID, "conforme")
	require.NoError(t, err)
	school, err = schools.GrantProvisionalAuthorization(ctx, school.ID)
	require.NoError(t, err)

	candidates := service.New(store.NewInMemory(), recorder, payments, schools, service.WithLogger(logger))
	r := chi.NewRouter()
	New(candidates, logger).Register(r)
	return fixture{router: r, school: school}
}

func (f fixture) post(t *testing.T, path string, body any, role requestcontext.Role) (*models.Candidate, int, string) {
	t.Helper()
	req := testutil.WithActor(testutil.NewJSONRequest(t, http.MethodPost, path, body), "agent-"+string(role), role)
	rr := testutil.DoRequest(f.router, req)
	if rr.Code >= 300 {
		return nil, rr.Code, rr.Body.String()
	}
	return testutil.UnmarshalResponse[models.Candidate](t, rr), rr.Code, rr.Body.String()
}

func (f fixture) enroll(t *testing.T) *models.Candidate {
	t.Helper()
	c, code, body := f.post(t, "/candidats", map[string]string{
		"school_id":  f.school.ID.String(),
		"last_name":  "Nguema",
		"first_name": "Joël",
		"birth_date": "2005-01-30",
		"phone":      "+241 66 12 34 56",
		"category":   "B",
	}, requestcontext.RoleSAF)
	require.Equal(t, http.StatusCreated, code, body)
	return c
}

func TestDossierOverHTTP(t *testing.T) {
	f := newFixture(t)
	c := f.enroll(t)
	assert.Equal(t, models.StatusEnrole, c.Status)
	base := "/candidats/" + c.ID.String()

	steps := []struct {
		path string
		body any
		want models.Status
	}{
		{base + "/paiement/demande", nil, models.StatusPaiementEnAttente},
		{base + "/paiement", map[string]string{"reference": "REF-9"}, models.StatusPreEnrole},
		{base + "/formation", nil, models.StatusEnFormation},
		{base + "/evaluations", map[string]any{"type": "CODE_ROUTE", "pass_number": 1, "score": 17, "errors": 1}, models.StatusEvaluationEnCours},
		{base + "/evaluations", map[string]any{"type": "CRENEAU", "pass_number": 1, "score": 15, "errors": 2}, models.StatusEvaluationEnCours},
		{base + "/evaluations", map[string]any{"type": "CONDUITE_VILLE", "pass_number": 1, "score": 14, "errors": 3}, models.StatusEvaluationEnCours},
		{base + "/evaluations/fin", nil, models.StatusEvaluationComplete},
	}
	for _, step := range steps {
		got, code, body := f.post(t, step.path, step.body, requestcontext.RoleSEV)
		require.Equal(t, http.StatusOK, code, body)
		assert.Equal(t, step.want, got.Status, step.path)
	}

	t.Run("dossier needs every document", func(t *testing.T) {
		_, code, _ := f.post(t, base+"/validation", nil, requestcontext.RoleSEV)
		assert.Equal(t, http.StatusPreconditionFailed, code)
	})

	for _, kind := range models.RequiredDocuments {
		_, code, body := f.post(t, base+"/documents", map[string]string{"kind": string(kind), "url": "https://files.dgtt.ga/" + string(kind)}, requestcontext.RoleSAF)
		require.Equal(t, http.StatusOK, code, body)
	}
	got, code, body := f.post(t, base+"/validation", nil, requestcontext.RoleSEV)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, models.StatusDossierValide, got.Status)
}

func TestCandidateRoutes(t *testing.T) {
	f := newFixture(t)
	c := f.enroll(t)
	base := "/candidats/" + c.ID.String()

	t.Run("permit delivery is reserved to STIAS", func(t *testing.T) {
		_, code, _ := f.post(t, base+"/permis/remise", nil, requestcontext.RoleSEV)
		assert.Equal(t, http.StatusForbidden, code)

		_, code, _ = f.post(t, base+"/permis/remise", nil, requestcontext.RoleSTIAS)
		assert.Equal(t, http.StatusConflict, code)
	})

	t.Run("invalid category is a validation error", func(t *testing.T) {
		req := testutil.WithActor(testutil.NewJSONRequest(t, http.MethodPost, "/candidats", map[string]string{
			"school_id": f.school.ID.String(), "last_name": "A", "first_name": "B",
			"birth_date": "2001-02-03", "phone": "1", "category": "H",
		}), "agent-saf", requestcontext.RoleSAF)
		rr := testutil.DoRequest(f.router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
	})

	t.Run("unknown document kind is a validation error", func(t *testing.T) {
		_, code, _ := f.post(t, base+"/documents", map[string]string{"kind": "PASSEPORT", "url": "https://x"}, requestcontext.RoleSAF)
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("lookup by license and listing by school", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.WithActor(
			testutil.NewJSONRequest(t, http.MethodGet, "/candidats/permis/"+c.LicenseNumber, nil), "agent-dgtt", requestcontext.RoleDGTT))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, c.ID, testutil.UnmarshalResponse[models.Candidate](t, rr).ID)

		rr = testutil.DoRequest(f.router, testutil.WithActor(
			testutil.NewJSONRequest(t, http.MethodGet, "/candidats?school_id="+f.school.ID.String(), nil), "agent-dgtt", requestcontext.RoleDGTT))
		require.Equal(t, http.StatusOK, rr.Code)
		list := testutil.UnmarshalResponse[map[string]any](t, rr)
		assert.EqualValues(t, 1, (*list)["total"])
	})

	t.Run("malformed ids", func(t *testing.T) {
		rr := testutil.DoRequest(f.router, testutil.WithActor(
			testutil.NewJSONRequest(t, http.MethodGet, "/candidats/not-a-uuid", nil), "agent-dgtt", requestcontext.RoleDGTT))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")

		rr = testutil.DoRequest(f.router, testutil.WithActor(
			testutil.NewJSONRequest(t, http.MethodGet, "/candidats?school_id=x", nil), "agent-dgtt", requestcontext.RoleDGTT))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})

	t.Run("rejection needs a reason", func(t *testing.T) {
		_, code, _ := f.post(t, base+"/rejet", map[string]string{"reason": " "}, requestcontext.RoleSAF)
		assert.Equal(t, http.StatusBadRequest, code)

		got, code, body := f.post(t, base+"/rejet", map[string]string{"reason": "dossier incomplet"}, requestcontext.RoleSAF)
		require.Equal(t, http.StatusOK, code, body)
		assert.Equal(t, models.StatusRejete, got.Status)
	})
}
