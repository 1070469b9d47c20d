package guard

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/route"
	"github.com/sirupsen/logrus"
)

// SessionState is the read side of a session. *sessionguard.Session
// implements it.
type SessionState interface {
	EnsureFresh(ctx context.Context)
	State() sessionguard.AuthState
}

// navigationRecorder is implemented by sessions that count decisions.
type navigationRecorder interface {
	RecordNavigation(allowed bool)
}

type Outcome uint8

const (
	Allow Outcome = iota
	Redirect
)

func (o Outcome) String() string {
	if o == Redirect {
		return "redirect"
	}
	return "allow"
}

// Reason names the requirement that caused a redirect.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonNotAdmin        Reason = "not_admin"
	ReasonNotTeamLeader   Reason = "not_team_leader"
)

// Decision is the result of a navigation check. Location is set only for
// redirects.
type Decision struct {
	Outcome  Outcome
	Location string
	Reason   Reason
}

func (d Decision) Allowed() bool {
	return d.Outcome == Allow
}

type Guard struct {
	session SessionState
	cfg     sessionguard.GuardConfig
	logger  logrus.FieldLogger
}

// New returns a Guard over session. Redirect targets come from cfg; a nil
// logger selects the logrus standard logger.
func New(session SessionState, cfg sessionguard.GuardConfig, logger logrus.FieldLogger) (*Guard, error) {
	if session == nil {
		return nil, errors.New("guard: session is nil")
	}
	if !strings.HasPrefix(cfg.LoginPath, "/") || !strings.HasPrefix(cfg.HomePath, "/") {
		return nil, errors.New("guard: login and home paths must start with /")
	}
	switch cfg.MissingIdentityRedirect {
	case "":
		cfg.MissingIdentityRedirect = sessionguard.MissingIdentityHome
	case sessionguard.MissingIdentityHome, sessionguard.MissingIdentityLogin:
	default:
		return nil, errors.New("guard: unknown missing identity redirect " + cfg.MissingIdentityRedirect)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Guard{session: session, cfg: cfg, logger: logger}, nil
}

// Check runs the navigation rules for target. It never fails: unauthorized
// navigation is a redirect decision.
func (g *Guard) Check(ctx context.Context, target route.Route) Decision {
	g.session.EnsureFresh(ctx)

	d := g.evaluate(target)

	if rec, ok := g.session.(navigationRecorder); ok {
		rec.RecordNavigation(d.Allowed())
	}

	if !d.Allowed() {
		log := g.logger.WithFields(logrus.Fields{
			"route":    target.Name,
			"reason":   d.Reason,
			"location": d.Location,
		})
		if id, ok := sessionguard.CorrelationIDFromContext(ctx); ok {
			log = log.WithField("correlation_id", id)
		}
		log.Debug("navigation redirected")
	}

	return d
}

func (g *Guard) evaluate(target route.Route) Decision {
	decision := Decision{Outcome: Allow}
	state := g.session.State()
	identity, hasIdentity := state.Identity, state.HasIdentity

	target.Requires.Each(func(req route.Requirement) bool {
		switch req {
		case route.RequireAuth:
			if !state.Authenticated {
				decision = g.redirect(g.cfg.LoginPath, ReasonUnauthenticated)
			}
		case route.RequireAdmin:
			if !hasIdentity {
				decision = g.missingIdentity(ReasonNotAdmin)
			} else if identity.Role != sessionguard.RoleAdmin {
				decision = g.redirect(g.cfg.HomePath, ReasonNotAdmin)
			}
		case route.RequireTeamLeader:
			if !hasIdentity {
				decision = g.missingIdentity(ReasonNotTeamLeader)
			} else if identity.Role != sessionguard.RoleTeamLeader {
				decision = g.redirect(g.cfg.HomePath, ReasonNotTeamLeader)
			}
		}
		return decision.Allowed()
	})

	return decision
}

func (g *Guard) missingIdentity(reason Reason) Decision {
	if g.cfg.MissingIdentityRedirect == sessionguard.MissingIdentityLogin {
		return g.redirect(g.cfg.LoginPath, reason)
	}
	return g.redirect(g.cfg.HomePath, reason)
}

func (g *Guard) redirect(location string, reason Reason) Decision {
	return Decision{Outcome: Redirect, Location: location, Reason: reason}
}
