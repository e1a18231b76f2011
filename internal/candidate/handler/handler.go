package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"dgtt/internal/candidate/models"
	id "dgtt/pkg/domain"
	dErrors "dgtt/pkg/domain-errors"
	"dgtt/pkg/platform/httputil"
	"dgtt/pkg/platform/middleware/auth"
	"dgtt/pkg/requestcontext"
)

// Service is the enrollment pipeline as seen by HTTP.
type Service interface {
	Enroll(ctx context.Context, req *models.EnrollRequest) (*models.Candidate, error)
	RequestPayment(ctx context.Context, candidateID id.CandidateID) (*models.Candidate, error)
	ConfirmPayment(ctx context.Context, candidateID id.CandidateID, reference string) (*models.Candidate, error)
	AttachDocument(ctx context.Context, candidateID id.CandidateID, req *models.AttachDocumentRequest) (*models.Candidate, error)
	StartTraining(ctx context.Context, candidateID id.CandidateID) (*models.Candidate, error)
	RecordEvaluation(ctx context.Context, candidateID id.CandidateID, req *models.RecordEvaluationRequest) (*models.Candidate, error)
	CompleteEvaluations(ctx context.Context, candidateID id.CandidateID) (*models.Candidate, error)
	ValidateDossier(ctx context.Context, candidateID id.CandidateID) (*models.Candidate, error)
	DeliverPermit(ctx context.Context, candidateID id.CandidateID) (*models.Candidate, error)
	Reject(ctx context.Context, candidateID id.CandidateID, reason string) (*models.Candidate, error)
	Suspend(ctx context.Context, candidateID id.CandidateID, reason string) (*models.Candidate, error)
	Get(ctx context.Context, candidateID id.CandidateID) (*models.Candidate, error)
	GetByLicenseNumber(ctx context.Context, number string) (*models.Candidate, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Candidate, error)
}

// Handler serves /candidats.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the candidate routes. Dossier steps belong to SAF and SEV,
// permit delivery to STIAS; DGTT may do both.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	dossier := router.With(auth.RequireRole(requestcontext.RoleSAF, requestcontext.RoleSEV, requestcontext.RoleDGTT))
	permit := router.With(auth.RequireRole(requestcontext.RoleSTIAS, requestcontext.RoleDGTT))

	router.Get("/", h.handleList)
	router.Get("/permis/{number}", h.handleGetByLicense)
	router.Get("/{id}", h.handleGet)

	dossier.Post("/", h.handleEnroll)
	dossier.Post("/{id}/paiement/demande", h.simple(h.service.RequestPayment))
	dossier.Post("/{id}/paiement", h.handleConfirmPayment)
	dossier.Post("/{id}/documents", h.handleAttachDocument)
	dossier.Post("/{id}/formation", h.simple(h.service.StartTraining))
	dossier.Post("/{id}/evaluations", h.handleRecordEvaluation)
	dossier.Post("/{id}/evaluations/fin", h.simple(h.service.CompleteEvaluations))
	dossier.Post("/{id}/validation", h.simple(h.service.ValidateDossier))
	dossier.Post("/{id}/rejet", h.withReason(h.service.Reject))
	dossier.Post("/{id}/suspension", h.withReason(h.service.Suspend))
	permit.Post("/{id}/permis/remise", h.simple(h.service.DeliverPermit))

	r.Mount("/candidats", router)
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.EnrollRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	c, err := h.service.Enroll(ctx, req)
	if err != nil {
		h.fail(ctx, w, "enroll candidate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, c)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ListFilter{
		Status:   models.Status(q.Get("status")),
		Category: q.Get("category"),
	}
	if raw := q.Get("school_id"); raw != "" {
		schoolID, err := id.ParseSchoolID(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid school id"))
			return
		}
		filter.SchoolID = schoolID
	}
	candidates, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(r.Context(), w, "list candidates", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"candidats": candidates, "total": len(candidates)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	candidateID, ok := h.candidateID(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), candidateID)
	if err != nil {
		h.fail(r.Context(), w, "get candidate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleGetByLicense(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetByLicenseNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.fail(r.Context(), w, "get candidate by license", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	candidateID, ok := h.candidateID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.ConfirmPaymentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	c, err := h.service.ConfirmPayment(ctx, candidateID, req.Reference)
	if err != nil {
		h.fail(ctx, w, "confirm payment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleAttachDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	candidateID, ok := h.candidateID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.AttachDocumentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	c, err := h.service.AttachDocument(ctx, candidateID, req)
	if err != nil {
		h.fail(ctx, w, "attach document", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) handleRecordEvaluation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	candidateID, ok := h.candidateID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.RecordEvaluationRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	c, err := h.service.RecordEvaluation(ctx, candidateID, req)
	if err != nil {
		h.fail(ctx, w, "record evaluation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) simple(op func(context.Context, id.CandidateID) (*models.Candidate, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		candidateID, ok := h.candidateID(w, r)
		if !ok {
			return
		}
		c, err := op(r.Context(), candidateID)
		if err != nil {
			h.fail(r.Context(), w, "candidate transition", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, c)
	}
}

func (h *Handler) withReason(op func(context.Context, id.CandidateID, string) (*models.Candidate, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		candidateID, ok := h.candidateID(w, r)
		if !ok {
			return
		}
		req, ok := httputil.DecodeAndPrepare[models.ReasonRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return
		}
		c, err := op(ctx, candidateID, req.Reason)
		if err != nil {
			h.fail(ctx, w, "candidate transition", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, c)
	}
}

func (h *Handler) candidateID(w http.ResponseWriter, r *http.Request) (id.CandidateID, bool) {
	candidateID, err := id.ParseCandidateID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid candidate id"))
		return id.CandidateID{}, false
	}
	return candidateID, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, op+" failed",
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteError(w, err)
}
