// Package handler exposes the audit trail to compliance officers.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"dgtt/internal/audit"
	dErrors "dgtt/pkg/domain-errors"
	"dgtt/pkg/platform/httputil"
	"dgtt/pkg/platform/middleware/auth"
	"dgtt/pkg/requestcontext"
)

type Service interface {
	Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error)
	History(ctx context.Context, entityType audit.EntityType, entityID string) ([]audit.Entry, error)
	Counts(ctx context.Context, groupBy audit.GroupBy, filter audit.Filter) ([]audit.Count, error)
	NeedsAlert(ctx context.Context, minLevel audit.Level, window time.Duration) ([]audit.Entry, error)
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// Handler serves /audit.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the audit routes. Reads are open to DGTT and ADMIN, purge
// to ADMIN only.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(auth.RequireRole(requestcontext.RoleDGTT, requestcontext.RoleAdmin))

	router.Get("/", h.handleQuery)
	router.Get("/statistiques", h.handleCounts)
	router.Get("/alertes", h.handleAlerts)
	router.Get("/{entityType}/{entityID}", h.handleHistory)
	router.With(auth.RequireRole(requestcontext.RoleAdmin)).Post("/purge", h.handlePurge)

	r.Mount("/audit", router)
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.service.Query(r.Context(), filter)
	if err != nil {
		h.fail(r.Context(), w, "query audit", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries, "total": len(entries)})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	entityType := audit.EntityType(strings.ToUpper(chi.URLParam(r, "entityType")))
	entries, err := h.service.History(r.Context(), entityType, chi.URLParam(r, "entityID"))
	if err != nil {
		h.fail(r.Context(), w, "audit history", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries, "total": len(entries)})
}

func (h *Handler) handleCounts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	groupBy := audit.GroupBy(r.URL.Query().Get("group_by"))
	if groupBy == "" {
		groupBy = audit.GroupByAction
	}
	counts, err := h.service.Counts(r.Context(), groupBy, filter)
	if err != nil {
		h.fail(r.Context(), w, "count audit", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"group_by": groupBy, "counts": counts})
}

func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	window := 24 * time.Hour
	if raw := q.Get("window"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid window"))
			return
		}
		window = d
	}
	entries, err := h.service.NeedsAlert(r.Context(), audit.Level(strings.ToUpper(q.Get("level"))), window)
	if err != nil {
		h.fail(r.Context(), w, "audit alerts", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": entries, "total": len(entries)})
}

type purgeRequest struct {
	OlderThan string `json:"older_than"`

	age time.Duration
}

func (p *purgeRequest) Validate() error {
	d, err := time.ParseDuration(strings.TrimSpace(p.OlderThan))
	if err != nil || d <= 0 {
		return dErrors.New(dErrors.CodeValidation, "older_than must be a positive duration")
	}
	p.age = d
	return nil
}

func (h *Handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[purgeRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	cutoff := requestcontext.Now(ctx).Add(-req.age)
	removed, err := h.service.Purge(ctx, cutoff)
	if err != nil {
		h.fail(ctx, w, "purge audit", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"cutoff": cutoff, "removed": removed})
}

func parseFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	filter := audit.Filter{
		EntityType: audit.EntityType(strings.ToUpper(q.Get("entity_type"))),
		EntityID:   q.Get("entity_id"),
		ActorID:    q.Get("actor_id"),
		Action:     audit.Action(strings.ToUpper(q.Get("action"))),
		MinLevel:   audit.Level(strings.ToUpper(q.Get("min_level"))),
	}
	for key, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		raw := q.Get(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filter{}, dErrors.Newf(dErrors.CodeBadRequest, "invalid %s timestamp", key)
		}
		*dst = t
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return audit.Filter{}, dErrors.New(dErrors.CodeBadRequest, "invalid limit")
		}
		filter.Limit = n
	}
	return filter, nil
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
