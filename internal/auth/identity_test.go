package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_ContainsSubjectAndEveryGroup(t *testing.T) {
	id := &Identity{
		Subject: "u1",
		Groups:  []string{"g1", "g2"},
	}

	ps := Resolve(id)

	assert.False(t, ps.IsNoAccess())
	assert.Equal(t, 3, ps.Len())
	assert.True(t, ps.Contains("u1"))
	assert.True(t, ps.Contains("g1"))
	assert.True(t, ps.Contains("g2"))
	assert.ElementsMatch(t, []string{"u1", "g1", "g2"}, ps.IDs())
}

func TestResolve_CollapsesDuplicates(t *testing.T) {
	id := &Identity{
		Subject: "u1",
		Groups:  []string{"g1", "g1", "u1"},
	}

	ps := Resolve(id)

	assert.Equal(t, 2, ps.Len())
	assert.ElementsMatch(t, []string{"u1", "g1"}, ps.IDs())
}

func TestResolve_ZeroGroupsDegradesToSubjectOnly(t *testing.T) {
	ps := Resolve(&Identity{Subject: "u1"})

	assert.False(t, ps.IsNoAccess())
	assert.Equal(t, []string{"u1"}, ps.IDs())
}

func TestResolve_NilOrInvalidIdentityIsNoAccess(t *testing.T) {
	assert.True(t, Resolve(nil).IsNoAccess())
	assert.True(t, Resolve(&Identity{}).IsNoAccess())
}

func TestNoAccess_DistinctFromAuthenticatedWithZeroGroups(t *testing.T) {
	anonymous := NoAccess()
	zeroGroups := Resolve(&Identity{Subject: "u1"})

	assert.True(t, anonymous.IsNoAccess())
	assert.Empty(t, anonymous.IDs())
	assert.False(t, zeroGroups.IsNoAccess())
	assert.NotEmpty(t, zeroGroups.IDs())
}

func TestNewPrincipalSet_EmptyInputIsNoAccess(t *testing.T) {
	assert.True(t, NewPrincipalSet().IsNoAccess())
	assert.True(t, NewPrincipalSet("", "").IsNoAccess())
}

func TestPrincipalSet_IDsReturnsCopy(t *testing.T) {
	ps := NewPrincipalSet("a", "b")
	ids := ps.IDs()
	ids[0] = "mutated"

	assert.True(t, ps.Contains("a"))
	assert.False(t, ps.Contains("mutated"))
}
