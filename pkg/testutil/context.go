package testutil

import (
	"context"
	"net/http"
	"time"

	"dgtt/pkg/requestcontext"
)

// WithActor attaches an authenticated principal, as the auth middleware would.
func WithActor(req *http.Request, actorID string, role requestcontext.Role) *http.Request {
	ctx := requestcontext.WithActor(req.Context(), requestcontext.Principal{ID: actorID, Role: role})
	return req.WithContext(ctx)
}

// AgentContext returns a context carrying an actor, a request ID and a fixed
// request time, for service tests that bypass HTTP.
func AgentContext(actorID string, role requestcontext.Role, now time.Time) context.Context {
	ctx := requestcontext.WithActor(context.Background(), requestcontext.Principal{ID: actorID, Role: role})
	ctx = requestcontext.WithRequestID(ctx, "test-"+actorID)
	return requestcontext.WithTime(ctx, now)
}
