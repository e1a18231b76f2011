package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dgtt/pkg/requestcontext"
)

func TestAllowHonoursBurstPerKey(t *testing.T) {
	at := time.Unix(1700000000, 0)
	l := New(1, 2, WithClock(func() time.Time { return at }))

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))

	at = at.Add(time.Second)
	assert.True(t, l.Allow("a"))
}

func TestSweepDropsIdleBuckets(t *testing.T) {
	at := time.Unix(1700000000, 0)
	l := New(1, 1, WithTTL(time.Minute), WithClock(func() time.Time { return at }))
	l.Allow("a")
	at = at.Add(30 * time.Second)
	l.Allow("b")
	at = at.Add(45 * time.Second)

	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 0, l.Sweep())
}

func TestMiddlewareReturns429(t *testing.T) {
	l := New(0.001, 1)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	call := func() int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(requestcontext.WithClientMetadata(req.Context(), "10.0.0.1", ""))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusOK, call())
	assert.Equal(t, http.StatusTooManyRequests, call())
}
