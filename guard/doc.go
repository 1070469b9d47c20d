// Package guard decides, before every view transition, whether navigation to
// a route proceeds or is redirected.
//
// Requirements are checked in a fixed order (auth, admin, team leader) and
// the first unmet one determines the redirect. A missing identity during a
// role check counts as the role not being held. The guard only reads the
// session; the one side effect it triggers is the session's own lazy decode.
//
// Middleware adapts a Guard to net/http for hosts that render views on the
// server.
package guard
