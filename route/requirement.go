package route

import "strings"

// Requirement is a single access condition a route can carry.
type Requirement uint8

const (
	// RequireAuth means a token must be held.
	RequireAuth Requirement = iota
	// RequireAdmin means the decoded identity must have the admin role.
	RequireAdmin
	// RequireTeamLeader means the decoded identity must have the team_leader role.
	RequireTeamLeader

	requirementCount
)

// Order lists every requirement in the order a guard evaluates them.
var Order = [...]Requirement{RequireAuth, RequireAdmin, RequireTeamLeader}

func (r Requirement) String() string {
	switch r {
	case RequireAuth:
		return "auth"
	case RequireAdmin:
		return "admin"
	case RequireTeamLeader:
		return "team_leader"
	default:
		return "unknown"
	}
}

// Valid reports whether r is a known requirement.
func (r Requirement) Valid() bool {
	return r < requirementCount
}

// Requirements is a bit set of Requirement values.
type Requirements uint8

const knownMask = Requirements(1<<requirementCount - 1)

// Requires builds a set from the given requirements. Unknown values are kept so
// that table construction can reject them.
func Requires(reqs ...Requirement) Requirements {
	var set Requirements
	for _, r := range reqs {
		set = set.With(r)
	}
	return set
}

// Has reports whether r is in the set.
func (s Requirements) Has(r Requirement) bool {
	if r >= 8 {
		return false
	}
	return s&(1<<r) != 0
}

// With returns a copy of s that includes r.
func (s Requirements) With(r Requirement) Requirements {
	if r >= 8 {
		return s
	}
	return s | (1 << r)
}

// Without returns a copy of s with r cleared.
func (s Requirements) Without(r Requirement) Requirements {
	if r >= 8 {
		return s
	}
	return s &^ (1 << r)
}

// Empty reports whether no requirement is set.
func (s Requirements) Empty() bool {
	return s == 0
}

// Unknown returns the bits that do not map to a known Requirement.
func (s Requirements) Unknown() Requirements {
	return s &^ knownMask
}

// Each calls fn for every requirement in s, in guard evaluation order, and
// stops as soon as fn returns false.
func (s Requirements) Each(fn func(Requirement) bool) {
	for _, r := range Order {
		if s.Has(r) && !fn(r) {
			return
		}
	}
}

func (s Requirements) String() string {
	if s.Empty() {
		return "none"
	}
	names := make([]string, 0, len(Order))
	s.Each(func(r Requirement) bool {
		names = append(names, r.String())
		return true
	})
	if s.Unknown() != 0 {
		names = append(names, "unknown")
	}
	return strings.Join(names, "+")
}
