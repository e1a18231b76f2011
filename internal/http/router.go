// Package httpapi assembles the public router: shared middleware, probes,
// metrics and the per-module handlers.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"dgtt/internal/platform/metrics"
	"dgtt/internal/platform/middleware"
	"dgtt/pkg/platform/httputil"
	"dgtt/pkg/platform/middleware/admin"
	"dgtt/pkg/platform/middleware/auth"
	"dgtt/pkg/platform/middleware/metadata"
	"dgtt/pkg/platform/middleware/ratelimit"
	"dgtt/pkg/platform/middleware/request"
	"dgtt/pkg/platform/middleware/requesttime"
)

// Registrar mounts a module's routes.
type Registrar interface {
	Register(r chi.Router)
}

// Check probes one dependency.
type Check func(ctx context.Context) error

// Options carries everything the router needs. Nil Metrics and Limiter
// disable the matching middleware.
type Options struct {
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Limiter   *ratelimit.Limiter
	Validator auth.TokenValidator
	OpsToken  string
	Checks    map[string]Check
	Handlers  []Registrar
}

const readyTimeout = 2 * time.Second

// NewRouter wires probes, metrics and the authenticated API.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(opts.Logger))
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(opts.Logger))
	r.Use(middleware.LatencyMiddleware(opts.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(ops chi.Router) {
		ops.Use(admin.RequireOpsToken(opts.OpsToken, opts.Logger))
		ops.Get("/readyz", readiness(opts.Checks))
		ops.Handle("/metrics", metrics.Handler())
	})

	r.Group(func(api chi.Router) {
		if opts.Limiter != nil {
			api.Use(opts.Limiter.Middleware)
		}
		api.Use(request.ContentTypeJSON)
		api.Use(auth.RequireAuth(opts.Validator, opts.Logger))
		for _, h := range opts.Handlers {
			h.Register(api)
		}
	})
	return r
}

// readiness runs every check concurrently and reports each outcome.
func readiness(checks map[string]Check) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		var (
			mu      sync.Mutex
			results = make(map[string]string, len(names))
			healthy = true
		)
		var g errgroup.Group
		for _, name := range names {
			check := checks[name]
			g.Go(func() error {
				status := "ok"
				if err := check(ctx); err != nil {
					status = err.Error()
				}
				mu.Lock()
				defer mu.Unlock()
				results[name] = status
				if status != "ok" {
					healthy = false
				}
				return nil
			})
		}
		_ = g.Wait()

		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, code, map[string]any{"ready": healthy, "checks": results})
	}
}
