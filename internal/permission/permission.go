// Package permission decides whether an actor may run a module.
//
// The Gate is pure: it performs no I/O and holds only immutable state, so a
// single value is shared by every in-flight dispatch.
package permission

import "strings"

// Messages shown to denied actors.
const (
	AdminOnly  = "⚠️ Only administrators can use this command!"
	OwnerOnly  = "⚠️ Only bot owners can use this command!"
	MissingAll = "⚠️ You do not have the required roles to use this command!"
	MissingAny = "⚠️ You do not have any of the required roles to use this command!"
	NotForYou  = "⚠️ This interaction is not for you!"
)

// Reason classifies a denial.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonAdmin
	ReasonOwner
	ReasonRolesAll
	ReasonRolesAny
)

// RoleMode selects how a role set is matched.
type RoleMode int

const (
	// All requires every listed role.
	All RoleMode = iota
	// Any requires at least one listed role.
	Any
)

func (m RoleMode) String() string {
	if m == Any {
		return "any"
	}
	return "all"
}

// Roles is a required-roles policy.
type Roles struct {
	Mode RoleMode
	IDs  []string
}

// Policy is the authorization part of a module.
type Policy struct {
	RequireAdmin bool
	RequireOwner bool
	// Roles is nil when no role requirement applies.
	Roles *Roles
}

// Actor carries the claims of the invoking user.
type Actor struct {
	ID      string
	IsAdmin bool
	Roles   []string
}

// Decision is the result of Authorize.
type Decision struct {
	Allowed bool
	Reason  Reason
	Message string
}

// OwnerSet is the configured set of privileged bot owners.
type OwnerSet map[string]struct{}

// NewOwnerSet builds an OwnerSet, ignoring blank ids.
func NewOwnerSet(ids ...string) OwnerSet {
	set := make(OwnerSet, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

// Contains reports whether id is an owner.
func (s OwnerSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the owner ids in no particular order.
func (s OwnerSet) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	return ids
}

// Gate evaluates policies against actors.
type Gate struct {
	owners OwnerSet
}

// NewGate returns a Gate using owners for owner-only checks.
func NewGate(owners OwnerSet) Gate {
	return Gate{owners: owners}
}

// Authorize checks p against a. Checks run admin, owner, roles; the first
// failure decides.
func (g Gate) Authorize(p Policy, a Actor) Decision {
	if p.RequireAdmin && !a.IsAdmin {
		return deny(ReasonAdmin, AdminOnly)
	}
	if p.RequireOwner && !g.owners.Contains(a.ID) {
		return deny(ReasonOwner, OwnerOnly)
	}
	if p.Roles != nil {
		held := make(map[string]struct{}, len(a.Roles))
		for _, r := range a.Roles {
			held[r] = struct{}{}
		}
		switch p.Roles.Mode {
		case Any:
			if !holdsAny(held, p.Roles.IDs) {
				return deny(ReasonRolesAny, MissingAny)
			}
		default:
			if !holdsAll(held, p.Roles.IDs) {
				return deny(ReasonRolesAll, MissingAll)
			}
		}
	}
	return Decision{Allowed: true}
}

func deny(r Reason, msg string) Decision {
	return Decision{Reason: r, Message: msg}
}

func holdsAll(held map[string]struct{}, want []string) bool {
	for _, id := range want {
		if _, ok := held[id]; !ok {
			return false
		}
	}
	return true
}

func holdsAny(held map[string]struct{}, want []string) bool {
	for _, id := range want {
		if _, ok := held[id]; ok {
			return true
		}
	}
	return false
}
