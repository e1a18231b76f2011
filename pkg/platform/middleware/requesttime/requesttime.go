// Package requesttime pins a single "now" per request so every timestamp and
// audit entry written while serving it agrees.
package requesttime

import (
	"net/http"
	"time"

	"dgtt/pkg/requestcontext"
)

// Middleware stores the arrival time in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
