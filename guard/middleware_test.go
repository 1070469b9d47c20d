package guard

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler(t *testing.T, s SessionState) http.Handler {
	t.Helper()
	table, err := route.NewTable(append(route.TimesheetRoutes(),
		route.Route{Path: "/projects/{id:[0-9]+}", Name: "project", View: "Project", Requires: route.Requires(route.RequireAuth)},
	)...)
	require.NoError(t, err)

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m, ok := RouteFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(m.Route.View + ":" + m.Params["id"]))
	})
	return Middleware(newGuard(t, s), table)(final)
}

func TestMiddlewareRedirectsWithFound(t *testing.T) {
	h := newHandler(t, &fakeSession{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/reports?month=3", nil))

	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
}

func TestMiddlewareAllowsAndInjectsRoute(t *testing.T) {
	h := newHandler(t, withRole(sessionguard.RoleEmployee))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/projects/42", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Project:42", rr.Body.String())
}

func TestMiddlewareRoleRedirect(t *testing.T) {
	h := newHandler(t, withRole(sessionguard.RoleEmployee))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/email-settings", nil))

	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))
}

func TestMiddlewarePassesUnknownPaths(t *testing.T) {
	s := &fakeSession{}
	h := newHandler(t, s)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Zero(t, s.freshCalls)
}
