package sessionguard

import (
	"time"

	"github.com/MrEthical07/sessionguard/jwt"
)

// Role is the role claim of a token.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleTeamLeader Role = "team_leader"
	RoleEmployee   Role = "employee"
)

// Identity is the user a token was issued to. Sessions hand out copies; the
// only way to obtain one is to decode a token.
type Identity struct {
	ID       int64
	Username string
	Role     Role
	// ExpiresAt is zero when the token carries no exp claim.
	ExpiresAt time.Time
}

// Expired reports whether the token behind the identity has passed its exp.
func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

func identityFromClaims(c *jwt.Claims) Identity {
	id := Identity{
		Username: c.Subject,
		Role:     Role(c.Role),
	}
	if c.UserID != nil {
		id.ID = *c.UserID
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
	}
	return id
}
