package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	candidatemodels "dgtt/internal/candidate/models"
	"dgtt/internal/school/models"
	id "dgtt/pkg/domain"
	dErrors "dgtt/pkg/domain-errors"
	"dgtt/pkg/platform/httputil"
	"dgtt/pkg/platform/middleware/auth"
	"dgtt/pkg/requestcontext"
)

// Service is the accreditation pipeline as seen by HTTP.
type Service interface {
	Create(ctx context.Context, req *models.CreateSchoolRequest) (*models.School, error)
	ValidatePayment(ctx context.Context, schoolID id.SchoolID, reference string) (*models.School, error)
	ScheduleInspection(ctx context.Context, schoolID id.SchoolID, inspector models.Inspector) (*models.School, error)
	ValidateInspection(ctx context.Context, schoolID id.SchoolID, report string) (*models.School, error)
	GrantProvisionalAuthorization(ctx context.Context, schoolID id.SchoolID) (*models.School, error)
	ConfirmAuthorization(ctx context.Context, schoolID id.SchoolID) (*models.School, error)
	StartRenewal(ctx context.Context, schoolID id.SchoolID) (*models.School, error)
	CompleteRenewal(ctx context.Context, schoolID id.SchoolID) (*models.School, error)
	Reject(ctx context.Context, schoolID id.SchoolID, reason string) (*models.School, error)
	Suspend(ctx context.Context, schoolID id.SchoolID, reason string) (*models.School, error)
	Close(ctx context.Context, schoolID id.SchoolID, reason string) (*models.School, error)
	Update(ctx context.Context, schoolID id.SchoolID, req *models.UpdateSchoolRequest) (*models.School, error)
	Get(ctx context.Context, schoolID id.SchoolID) (*models.School, error)
	GetByRequestNumber(ctx context.Context, number string) (*models.School, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.School, error)
	ListCandidates(ctx context.Context, schoolID id.SchoolID) ([]*candidatemodels.Candidate, error)
	Statistics(ctx context.Context) (*models.Statistics, error)
	PaymentLink(ctx context.Context, schoolID id.SchoolID) (string, error)
}

// Handler serves /auto-ecoles.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the school routes. Reads are open to every authenticated
// agent; writes are reserved to SAF and DGTT.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	write := router.With(auth.RequireRole(requestcontext.RoleSAF, requestcontext.RoleDGTT))

	router.Get("/", h.handleList)
	router.Get("/statistiques", h.handleStatistics)
	router.Get("/numero/{number}", h.handleGetByNumber)
	router.Get("/{id}", h.handleGet)
	router.Get("/{id}/candidats", h.handleListCandidates)
	router.Get("/{id}/lien-paiement", h.handlePaymentLink)

	write.Post("/", h.handleCreate)
	write.Patch("/{id}", h.handleUpdate)
	write.Post("/{id}/paiement", h.handleValidatePayment)
	write.Post("/{id}/inspection", h.handleScheduleInspection)
	write.Post("/{id}/inspection/validation", h.handleValidateInspection)
	write.Post("/{id}/autorisation-provisoire", h.simple(h.service.GrantProvisionalAuthorization))
	write.Post("/{id}/autorisation/confirmation", h.simple(h.service.ConfirmAuthorization))
	write.Post("/{id}/renouvellement", h.simple(h.service.StartRenewal))
	write.Post("/{id}/renouvellement/fin", h.simple(h.service.CompleteRenewal))
	write.Post("/{id}/rejet", h.withReason(h.service.Reject))
	write.Post("/{id}/suspension", h.withReason(h.service.Suspend))
	write.Post("/{id}/fermeture", h.withReason(h.service.Close))

	r.Mount("/auto-ecoles", router)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[models.CreateSchoolRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	school, err := h.service.Create(ctx, req)
	if err != nil {
		h.fail(ctx, w, "create school", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, school)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	schools, err := h.service.List(r.Context(), models.ListFilter{
		Status:   models.Status(q.Get("status")),
		City:     q.Get("city"),
		Province: q.Get("province"),
		Name:     q.Get("name"),
	})
	if err != nil {
		h.fail(r.Context(), w, "list schools", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"auto_ecoles": schools, "total": len(schools)})
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context())
	if err != nil {
		h.fail(r.Context(), w, "school statistics", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := h.schoolID(w, r)
	if !ok {
		return
	}
	school, err := h.service.Get(r.Context(), schoolID)
	if err != nil {
		h.fail(r.Context(), w, "get school", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, school)
}

func (h *Handler) handleGetByNumber(w http.ResponseWriter, r *http.Request) {
	school, err := h.service.GetByRequestNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		h.fail(r.Context(), w, "get school by number", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, school)
}

func (h *Handler) handleListCandidates(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := h.schoolID(w, r)
	if !ok {
		return
	}
	candidates, err := h.service.ListCandidates(r.Context(), schoolID)
	if err != nil {
		h.fail(r.Context(), w, "list school candidates", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"candidats": candidates, "total": len(candidates)})
}

func (h *Handler) handlePaymentLink(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := h.schoolID(w, r)
	if !ok {
		return
	}
	link, err := h.service.PaymentLink(r.Context(), schoolID)
	if err != nil {
		h.fail(r.Context(), w, "payment link", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"payment_link": link})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	schoolID, ok := h.schoolID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateSchoolRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	school, err := h.service.Update(ctx, schoolID, req)
	if err != nil {
		h.fail(ctx, w, "update school", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, school)
}

func (h *Handler) handleValidatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	schoolID, ok := h.schoolID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.ValidatePaymentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	school, err := h.service.ValidatePayment(ctx, schoolID, req.Reference)
	if err != nil {
		h.fail(ctx, w, "validate payment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, school)
}

func (h *Handler) handleScheduleInspection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	schoolID, ok := h.schoolID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.ScheduleInspectionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	school, err := h.service.ScheduleInspection(ctx, schoolID, models.Inspector{
		LastName:  req.InspectorLastName,
		FirstName: req.InspectorFirstName,
	})
	if err != nil {
		h.fail(ctx, w, "schedule inspection", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, school)
}

func (h *Handler) handleValidateInspection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	schoolID, ok := h.schoolID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.ValidateInspectionRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	school, err := h.service.ValidateInspection(ctx, schoolID, req.Report)
	if err != nil {
		h.fail(ctx, w, "validate inspection", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, school)
}

func (h *Handler) simple(op func(context.Context, id.SchoolID) (*models.School, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		schoolID, ok := h.schoolID(w, r)
		if !ok {
			return
		}
		school, err := op(r.Context(), schoolID)
		if err != nil {
			h.fail(r.Context(), w, "school transition", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, school)
	}
}

func (h *Handler) withReason(op func(context.Context, id.SchoolID, string) (*models.School, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		schoolID, ok := h.schoolID(w, r)
		if !ok {
			return
		}
		req, ok := httputil.DecodeAndPrepare[models.ReasonRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
		if !ok {
			return
		}
		school, err := op(ctx, schoolID, req.Reason)
		if err != nil {
			h.fail(ctx, w, "school transition", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, school)
	}
}

func (h *Handler) schoolID(w http.ResponseWriter, r *http.Request) (id.SchoolID, bool) {
	schoolID, err := id.ParseSchoolID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid school id"))
		return id.SchoolID{}, false
	}
	return schoolID, true
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, op+" failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	} else {
		h.logger.WarnContext(ctx, op+" rejected",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}
