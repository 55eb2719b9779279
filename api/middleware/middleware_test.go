package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/mediconnect-backend/pkg/enums"
)

func TestActorMiddlewareInjectsIdentity(t *testing.T) {
	var gotID string
	var gotRole enums.ActorRole
	handler := Actor(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = ActorIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
	req.Header.Set(ActorIDHeader, "pharm-7")
	req.Header.Set(ActorRoleHeader, "ADMIN")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "pharm-7", gotID)
	assert.Equal(t, enums.ActorRoleAdmin, gotRole)
}

func TestActorMiddlewareRejectsUnknownRole(t *testing.T) {
	called := false
	handler := Actor(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/requests", nil)
	req.Header.Set(ActorIDHeader, "x")
	req.Header.Set(ActorRoleHeader, "courier")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireActorAndRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	chain := RequireActor(nil)(RequireRole(nil, enums.ActorRoleAdmin)(ok))

	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/medications", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/medications", nil)
	req = req.WithContext(WithActor(req.Context(), "p-1", enums.ActorRolePatient))
	rec = httptest.NewRecorder()
	chain.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/medications", nil)
	req = req.WithContext(WithActor(req.Context(), "a-1", enums.ActorRoleAdmin))
	rec = httptest.NewRecorder()
	chain.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type fakeRateStore struct {
	counts map[string]int64
}

func (f *fakeRateStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func TestRateLimitBlocksPerActor(t *testing.T) {
	store := &fakeRateStore{counts: map[string]int64{}}
	handler := RateLimit(NewRateLimitPolicy("writes", time.Minute, 2), store, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
	)

	send := func(actor string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/requests", nil)
		req = req.WithContext(WithActor(req.Context(), actor, enums.ActorRolePatient))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("p-1"))
	assert.Equal(t, http.StatusOK, send("p-1"))
	assert.Equal(t, http.StatusTooManyRequests, send("p-1"))
	assert.Equal(t, http.StatusOK, send("p-2"))
}

func TestRateLimitDisabledWithoutStore(t *testing.T) {
	base := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	wrapped := RateLimit(NewRateLimitPolicy("writes", time.Minute, 1), nil, nil)(base)
	require.NotNil(t, wrapped)

	rec := httptest.NewRecorder()
	for i := 0; i < 3; i++ {
		wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	}
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDKeepsSafeUpstreamID(t *testing.T) {
	var seen string
	handler := RequestID(nil)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set(requestIDHeader, "lb-7f3a.42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "lb-7f3a.42", seen)
	assert.Equal(t, "lb-7f3a.42", rec.Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set(requestIDHeader, "bad id\nwith newline")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.NotEqual(t, "bad id\nwith newline", seen)
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(requestIDHeader))
}

func TestRecovererWritesInternalError(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("ledger exploded")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/requests", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestRecovererRepanicsOnAbort(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
