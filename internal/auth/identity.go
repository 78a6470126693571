package auth

import "sort"

// Identity is the verified result of token validation.
//
// Identities are created per request from a validated token and discarded
// when the request completes; they are never persisted. An Identity with an
// empty Subject is invalid and is never returned by the Validator.
type Identity struct {
	// Subject is the stable unique identifier of the user. For Azure AD
	// tokens this is the oid claim, falling back to sub.
	Subject string

	// Email is optional (preferred_username or email claim).
	Email string

	// Name is the optional display name.
	Name string

	// Groups lists the group ids embedded in the token claims. May be
	// empty when the identity provider omits group claims.
	Groups []string
}

// PrincipalSet is the authorization context of a request: the set of
// principal ids the request is allowed to act as.
//
// Two states that must never be conflated are kept distinct here: an
// authenticated identity with zero group memberships still carries its
// subject id, while an unauthenticated caller carries the explicit
// no-access marker constructed by NoAccess.
type PrincipalSet struct {
	ids      []string
	noAccess bool
}

// NoAccess returns the explicit "no principals" marker. The secure filter
// built from it matches nothing.
func NoAccess() PrincipalSet {
	return PrincipalSet{noAccess: true}
}

// NewPrincipalSet builds a set from raw principal ids, collapsing duplicates
// and dropping empty strings. An input with no usable ids yields the
// no-access marker: absence of principals is never treated as absence of
// restriction.
func NewPrincipalSet(ids ...string) PrincipalSet {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return NoAccess()
	}
	sort.Strings(out)
	return PrincipalSet{ids: out}
}

// Resolve derives the principal set for a verified identity:
// {Subject} ∪ Groups. Pure, total over any valid Identity.
func Resolve(id *Identity) PrincipalSet {
	if id == nil || id.Subject == "" {
		return NoAccess()
	}
	return NewPrincipalSet(append([]string{id.Subject}, id.Groups...)...)
}

// IsNoAccess reports whether this is the explicit no-access marker.
func (p PrincipalSet) IsNoAccess() bool {
	return p.noAccess || len(p.ids) == 0
}

// IDs returns a copy of the principal ids. Empty for the no-access marker.
func (p PrincipalSet) IDs() []string {
	out := make([]string, len(p.ids))
	copy(out, p.ids)
	return out
}

// Contains reports whether the set includes the given principal id.
func (p PrincipalSet) Contains(id string) bool {
	for _, v := range p.ids {
		if v == id {
			return true
		}
	}
	return false
}

// Len returns the number of principals in the set.
func (p PrincipalSet) Len() int {
	return len(p.ids)
}
