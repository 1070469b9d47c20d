package guard

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/jwt"
	"github.com/MrEthical07/sessionguard/route"
	"github.com/MrEthical07/sessionguard/tokenstore"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	token      bool
	identity   *sessionguard.Identity
	freshCalls int
	allowed    int
	redirected int
}

func (f *fakeSession) EnsureFresh(context.Context) { f.freshCalls++ }
func (f *fakeSession) State() sessionguard.AuthState {
	st := sessionguard.AuthState{Authenticated: f.token}
	if f.identity != nil {
		st.Identity = *f.identity
		st.HasIdentity = true
	}
	return st
}
func (f *fakeSession) RecordNavigation(allowed bool) {
	if allowed {
		f.allowed++
	} else {
		f.redirected++
	}
}

func withRole(role sessionguard.Role) *fakeSession {
	return &fakeSession{token: true, identity: &sessionguard.Identity{ID: 1, Username: "u", Role: role}}
}

func mustRoute(t *testing.T, table *route.Table, name string) route.Route {
	t.Helper()
	r, ok := table.ByName(name)
	require.True(t, ok, name)
	return r
}

func newGuard(t *testing.T, s SessionState, configure ...func(*sessionguard.GuardConfig)) *Guard {
	t.Helper()
	cfg := sessionguard.DefaultConfig().Guard
	for _, fn := range configure {
		fn(&cfg)
	}
	logger, _ := logtest.NewNullLogger()
	g, err := New(s, cfg, logger)
	require.NoError(t, err)
	return g
}

func TestCheckTimesheetScenarios(t *testing.T) {
	table, err := route.TimesheetTable()
	require.NoError(t, err)

	cases := []struct {
		name     string
		session  *fakeSession
		route    string
		outcome  Outcome
		location string
		reason   Reason
	}{
		{"reports without token", &fakeSession{}, route.NameReports, Redirect, "/login", ReasonUnauthenticated},
		{"logs as employee", withRole(sessionguard.RoleEmployee), route.NameLogs, Redirect, "/", ReasonNotAdmin},
		{"logs as admin", withRole(sessionguard.RoleAdmin), route.NameLogs, Allow, "", ReasonNone},
		{"email settings as team leader", withRole(sessionguard.RoleTeamLeader), route.NameEmailSettings, Redirect, "/", ReasonNotAdmin},
		{"team timesheets as team leader", withRole(sessionguard.RoleTeamLeader), route.NameTeamTimesheets, Allow, "", ReasonNone},
		{"team timesheets as admin", withRole(sessionguard.RoleAdmin), route.NameTeamTimesheets, Redirect, "/", ReasonNotTeamLeader},
		{"dashboard with token", withRole(sessionguard.RoleEmployee), route.NameDashboard, Allow, "", ReasonNone},
		{"logs without token prefers login", &fakeSession{}, route.NameLogs, Redirect, "/login", ReasonUnauthenticated},
		{"log work is public", &fakeSession{}, route.NameLogWork, Allow, "", ReasonNone},
		{"login is public", &fakeSession{}, route.NameLogin, Allow, "", ReasonNone},
		{"unknown role", withRole("auditor"), route.NameLogs, Redirect, "/", ReasonNotAdmin},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := newGuard(t, tc.session)
			d := g.Check(context.Background(), mustRoute(t, table, tc.route))

			assert.Equal(t, tc.outcome, d.Outcome)
			assert.Equal(t, tc.location, d.Location)
			assert.Equal(t, tc.reason, d.Reason)
			assert.Equal(t, 1, tc.session.freshCalls)
			if d.Allowed() {
				assert.Equal(t, 1, tc.session.allowed)
			} else {
				assert.Equal(t, 1, tc.session.redirected)
			}
		})
	}
}

func TestCheckMissingIdentity(t *testing.T) {
	target := route.Route{Path: "/logs", Name: "logs", View: "Logs", Requires: route.Requires(route.RequireAuth, route.RequireAdmin)}
	tokenOnly := &fakeSession{token: true}

	d := newGuard(t, tokenOnly).Check(context.Background(), target)
	assert.Equal(t, Redirect, d.Outcome)
	assert.Equal(t, "/", d.Location)
	assert.Equal(t, ReasonNotAdmin, d.Reason)

	d = newGuard(t, tokenOnly, func(c *sessionguard.GuardConfig) {
		c.MissingIdentityRedirect = sessionguard.MissingIdentityLogin
	}).Check(context.Background(), target)
	assert.Equal(t, "/login", d.Location)
	assert.Equal(t, ReasonNotAdmin, d.Reason)
}

func TestCheckRoleWithoutAuthRequirement(t *testing.T) {
	target := route.Route{Path: "/lead", Name: "lead", View: "Lead", Requires: route.Requires(route.RequireTeamLeader)}

	d := newGuard(t, &fakeSession{}).Check(context.Background(), target)
	assert.Equal(t, "/", d.Location)
	assert.Equal(t, ReasonNotTeamLeader, d.Reason)
}

func TestCheckLogsRedirects(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	g, err := New(&fakeSession{}, sessionguard.DefaultConfig().Guard, logger)
	require.NoError(t, err)

	ctx := sessionguard.WithCorrelationID(context.Background(), "nav-1")
	g.Check(ctx, route.Route{Path: "/reports", Name: "reports", View: "Reports", Requires: route.Requires(route.RequireAuth)})

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "reports", entry.Data["route"])
	assert.Equal(t, ReasonUnauthenticated, entry.Data["reason"])
	assert.Equal(t, "nav-1", entry.Data["correlation_id"])
}

func TestNewValidation(t *testing.T) {
	cfg := sessionguard.DefaultConfig().Guard

	_, err := New(nil, cfg, nil)
	assert.Error(t, err)

	bad := cfg
	bad.LoginPath = "login"
	_, err = New(&fakeSession{}, bad, nil)
	assert.Error(t, err)

	bad = cfg
	bad.MissingIdentityRedirect = "elsewhere"
	_, err = New(&fakeSession{}, bad, nil)
	assert.Error(t, err)

	blank := cfg
	blank.MissingIdentityRedirect = ""
	g, err := New(&fakeSession{}, blank, nil)
	require.NoError(t, err)
	assert.Equal(t, sessionguard.MissingIdentityHome, g.cfg.MissingIdentityRedirect)
}

func issue(t *testing.T, id int64, sub, role string) string {
	t.Helper()
	m, err := jwt.NewManager(jwt.Config{SigningMethod: jwt.MethodHS256, Secret: []byte("guard-test-secret-guard-test-32b"), TTL: time.Hour})
	require.NoError(t, err)
	token, err := m.Issue(id, sub, role)
	require.NoError(t, err)
	return token
}

func TestCheckWithSession(t *testing.T) {
	table, err := route.TimesheetTable()
	require.NoError(t, err)

	ctx := context.Background()
	store := tokenstore.NewMemory()
	require.NoError(t, store.Save(ctx, issue(t, 2, "tina", "team_leader")))

	logger, _ := logtest.NewNullLogger()
	s, err := sessionguard.New().WithTokenStore(store).WithLogger(logger).Build()
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Hydrate(ctx))

	g, err := New(s, s.Config().Guard, logger)
	require.NoError(t, err)

	assert.True(t, g.Check(ctx, mustRoute(t, table, route.NameTeamTimesheets)).Allowed())
	assert.Equal(t, "/", g.Check(ctx, mustRoute(t, table, route.NameLogs)).Location)

	s.Logout(ctx)
	assert.Equal(t, "/login", g.Check(ctx, mustRoute(t, table, route.NameReports)).Location)

	snap := s.MetricsSnapshot()
	assert.Equal(t, uint64(1), snap.Counters[sessionguard.MetricNavigationAllowed])
	assert.Equal(t, uint64(2), snap.Counters[sessionguard.MetricNavigationRedirected])
}
