package app_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockroom/stockroom/internal/app"
	"github.com/stockroom/stockroom/internal/shared"
	_ "github.com/stockroom/stockroom/internal/testing/guard"
)

func identityChain(t *testing.T, next http.Handler) http.Handler {
	t.Helper()
	stack := app.MiddlewareStack(app.MiddlewareConfig{Logger: slog.Default(), Config: &app.Config{}})
	h := next
	for i := len(stack) - 1; i >= 0; i-- {
		h = stack[i](h)
	}
	return h
}

func TestIdentityMiddlewareParsesHeaders(t *testing.T) {
	var gotRole shared.Role
	var gotActor string
	h := identityChain(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRole = shared.RoleFromContext(r.Context())
		gotActor = shared.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(app.RoleHeader, "manager")
	req.Header.Set(app.ActorHeader, "alice")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, shared.RoleManager, gotRole)
	require.Equal(t, "alice", gotActor)
}

func TestIdentityMiddlewareDefaultsToWarehouse(t *testing.T) {
	var gotRole shared.Role
	h := identityChain(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRole = shared.RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, shared.RoleWarehouse, gotRole, "missing role header falls back to the least privileged role")
}

func TestIdentityMiddlewareRejectsUnknownRole(t *testing.T) {
	h := identityChain(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for an unknown role")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(app.RoleHeader, "superadmin")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusForbidden, rr.Code)
}
