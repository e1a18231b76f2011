package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	candidatemodels "dgtt/internal/candidate/models"
	"dgtt/internal/exam/models"
	id "dgtt/pkg/domain"
	dErrors "dgtt/pkg/domain-errors"
	"dgtt/pkg/platform/httputil"
	"dgtt/pkg/platform/middleware/auth"
	liststr "dgtt/pkg/platform/strings"
	"dgtt/pkg/requestcontext"
)

// Service is the exam pipeline as seen by HTTP.
type Service interface {
	ReceiveValidatedDossier(ctx context.Context, req *models.ReceiveDossierRequest) (*models.Exam, error)
	Schedule(ctx context.Context, examID id.ExamID, req *models.ScheduleRequest) (*models.Exam, error)
	Start(ctx context.Context, examID id.ExamID) (*models.Exam, error)
	Finish(ctx context.Context, examID id.ExamID, req *models.FinishRequest) (*models.Exam, error)
	Validate(ctx context.Context, examID id.ExamID) (*models.Exam, error)
	Cancel(ctx context.Context, examID id.ExamID, reason string) (*models.Exam, error)
	Reject(ctx context.Context, examID id.ExamID, reason string) (*models.Exam, error)
	Reconcile(ctx context.Context, examID id.ExamID) (*candidatemodels.Candidate, error)
	Get(ctx context.Context, examID id.ExamID) (*models.Exam, error)
	GetByNumber(ctx context.Context, number string) (*models.Exam, error)
	ListByCandidate(ctx context.Context, candidateID id.CandidateID) ([]*models.Exam, error)
	ListBySchool(ctx context.Context, schoolID id.SchoolID) ([]*models.Exam, error)
	ListByStatus(ctx context.Context, statuses ...models.Status) ([]*models.Exam, error)
}

// Handler serves /examens.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the exam routes. Every write belongs to the evaluation
// office; DGTT may act on its behalf.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	office := router.With(auth.RequireRole(requestcontext.RoleSEV, requestcontext.RoleDGTT))

	router.Get("/", h.handleList)
	router.Get("/numero/{number}", h.handleGetByNumber)
	router.Get("/{id}", h.handleGet)

	office.Post("/", h.handleReceive)
	office.Post("/{id}/planification", h.handleSchedule)
	office.Post("/{id}/debut", h.simple(h.service.Start))
	office.Post("/{id}/fin", h.handleFinish)
	office.Post("/{id}/validation", h.simple(h.service.Validate))
	office.Post("/{id}/annulation", h.withReason(h.service.Cancel))
	office.Post("/{id}/rejet", h.withReason(h.service.Reject))
	office.Post("/{id}/reconciliation", h.handleReconcile)

	r.Mount("/examens", router)
}

func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.ReceiveDossierRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	e, err := h.service.ReceiveValidatedDossier(ctx, req)
	if err != nil {
		h.fail(ctx, w, "receive validated dossier", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, e)
}

// handleList filters by candidate_id, then school_id, then a comma separated
// status list.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var (
		exams []*models.Exam
		err   error
	)
	switch {
	case q.Get("candidate_id") != "":
		candidateID, perr := id.ParseCandidateID(q.Get("candidate_id"))
		if perr != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid candidate id"))
			return
		}
		exams, err = h.service.ListByCandidate(ctx, candidateID)
	case q.Get("school_id") != "":
		schoolID, perr := id.ParseSchoolID(q.Get("school_id"))
		if perr != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid school id"))
			return
		}
		exams, err = h.service.ListBySchool(ctx, schoolID)
	default:
		var statuses []models.Status
		for _, code := range liststr.SplitCodes(q.Get("status")) {
			statuses = append(statuses, models.Status(code))
		}
		exams, err = h.service.ListByStatus(ctx, statuses...)
	}
	if err != nil {
		h.fail(ctx, w, "list exams", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"examens": exams, "total": len(exams)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	examID, ok := h.examID(w, r)
	if !ok {
		return
	}
	e, err := h.service.Get(r.Context(), examID)
	if err != nil {
		h.fail(r.Context(), w, "get exam", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) handleGetByNumber(w http.ResponseWriter, r *http.Request) {
	e, err := h.service.GetByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.fail(r.Context(), w, "get exam by number", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) handleSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	examID, ok := h.examID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.ScheduleRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	e, err := h.service.Schedule(ctx, examID, req)
	if err != nil {
		h.fail(ctx, w, "schedule exam", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

func (h *Handler) handleFinish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	examID, ok := h.examID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.FinishRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	e, err := h.service.Finish(ctx, examID, req)
	if err != nil {
		h.fail(ctx, w, "finish exam", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, e)
}

// handleReconcile answers with the candidate, not the exam.
func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	examID, ok := h.examID(w, r)
	if !ok {
		return
	}
	c, err := h.service.Reconcile(r.Context(), examID)
	if err != nil {
		h.fail(r.Context(), w, "reconcile exam", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) simple(op func(context.Context, id.ExamID) (*models.Exam, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		examID, ok := h.examID(w, r)
		if !ok {
			return
		}
		e, err := op(r.Context(), examID)
		if err != nil {
			h.fail(r.Context(), w, "exam transition", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, e)
	}
}

func (h *Handler) withReason(op func(context.Context, id.ExamID, string) (*models.Exam, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		examID, ok := h.examID(w, r)
		if !ok {
			return
		}
		req, ok := httputil.DecodeAndPrepare[models.ReasonRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return
		}
		e, err := op(ctx, examID, req.Reason)
		if err != nil {
			h.fail(ctx, w, "exam transition", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, e)
	}
}

func (h *Handler) examID(w http.ResponseWriter, r *http.Request) (id.ExamID, bool) {
	examID, err := id.ParseExamID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid exam id"))
		return id.ExamID{}, false
	}
	return examID, true
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
