package search

import (
	"fmt"
	"strings"

	"github.com/boovboyz/azurerag/internal/auth"
)

// fieldAllowedPrincipals is the filterable tag field on stored units.
const fieldAllowedPrincipals = "allowed_principals"

// alwaysFalse is the OData predicate matching no documents.
const alwaysFalse = "1 eq 0"

// Filter is the secure retrieval predicate for a principal set: a unit is
// visible iff its allowed principals intersect the requester's principals.
// The zero value is not meaningful; construct with BuildFilter.
type Filter struct {
	noAccess   bool
	principals []string
}

// BuildFilter constructs the predicate for a principal set. The no-access
// marker, and any degenerate empty set, yields the always-false predicate:
// absence of principals is never treated as absence of restriction.
func BuildFilter(ps auth.PrincipalSet) Filter {
	if ps.IsNoAccess() || ps.Len() == 0 {
		return Filter{noAccess: true}
	}
	return Filter{principals: ps.IDs()}
}

// MatchesNothing reports whether this is the always-false predicate.
func (f Filter) MatchesNothing() bool {
	return f.noAccess || len(f.principals) == 0
}

// Matches evaluates the predicate structurally against a unit's allowed
// principals. Used by stores that filter in-process.
func (f Filter) Matches(allowedPrincipals []string) bool {
	if f.MatchesNothing() {
		return false
	}
	for _, allowed := range allowedPrincipals {
		for _, p := range f.principals {
			if allowed == p {
				return true
			}
		}
	}
	return false
}

// OData translates the predicate into an Azure AI Search filter expression:
//
//	allowed_principals/any(g: search.in(g, 'id1,id2', ','))
//
// Principal ids are never concatenated unescaped: single quotes are doubled
// per OData string-literal rules, and the search.in delimiter falls back
// from ',' to '|' when an id contains a comma. An id containing both
// delimiters cannot be represented safely and is rejected.
func (f Filter) OData() (string, error) {
	if f.MatchesNothing() {
		return alwaysFalse, nil
	}

	delim := ","
	for _, p := range f.principals {
		if strings.Contains(p, ",") {
			delim = "|"
			break
		}
	}
	for _, p := range f.principals {
		if strings.Contains(p, delim) {
			return "", fmt.Errorf("principal id %q contains both candidate delimiters", p)
		}
	}

	joined := strings.ReplaceAll(strings.Join(f.principals, delim), "'", "''")
	return fmt.Sprintf("%s/any(g: search.in(g, '%s', '%s'))",
		fieldAllowedPrincipals, joined, delim), nil
}
