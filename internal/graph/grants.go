package graph

import "encoding/json"

// Grant is a normalized sharing grant from the source repository. It is a
// sealed union of the three known grant shapes plus a catch-all for
// anything the sharing API returns that we do not recognize. Use the
// exhaustive switch in PrincipalIDs rather than probing attributes.
type Grant interface {
	doNotImplement(Grant)
}

// IdentityGrant names a single granted identity, user or group
// (grantedToV2 on the wire).
type IdentityGrant struct {
	PrincipalID string
}

func (IdentityGrant) doNotImplement(Grant) {}

// LegacyGrant is the deprecated single-grantee shape that older items still
// carry (grantedTo on the wire). It only ever names a user.
type LegacyGrant struct {
	UserID string
}

func (LegacyGrant) doNotImplement(Grant) {}

// LinkGrant is a sharing link granted to several named recipients
// (grantedToIdentitiesV2 on the wire).
type LinkGrant struct {
	PrincipalIDs []string
}

func (LinkGrant) doNotImplement(Grant) {}

// UnrecognizedGrant is any record whose shape we cannot classify. It
// contributes no principals and never aborts normalization.
type UnrecognizedGrant struct{}

func (UnrecognizedGrant) doNotImplement(Grant) {}

// wire shapes for the Graph permissions response.

type wireIdentity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type wireIdentitySet struct {
	User      *wireIdentity `json:"user"`
	Group     *wireIdentity `json:"group"`
	SiteUser  *wireIdentity `json:"siteUser"`
	SiteGroup *wireIdentity `json:"siteGroup"`
}

type wirePermission struct {
	ID                    string            `json:"id"`
	GrantedToV2           *wireIdentitySet  `json:"grantedToV2"`
	GrantedTo             *wireIdentitySet  `json:"grantedTo"`
	GrantedToIdentitiesV2 []wireIdentitySet `json:"grantedToIdentitiesV2"`
}

type wirePermissionList struct {
	Value []json.RawMessage `json:"value"`
}

// principalID picks the granted principal out of an identity set. Site
// identities carry SharePoint-local ids usable as principals the same way
// directory ids are.
func (s *wireIdentitySet) principalID() string {
	for _, id := range []*wireIdentity{s.User, s.Group, s.SiteUser, s.SiteGroup} {
		if id != nil && id.ID != "" {
			return id.ID
		}
	}
	return ""
}

// classifyGrant maps one raw permission record onto the Grant union.
func classifyGrant(raw []byte) Grant {
	var p wirePermission
	if err := json.Unmarshal(raw, &p); err != nil {
		return UnrecognizedGrant{}
	}

	switch {
	case p.GrantedToV2 != nil:
		if id := p.GrantedToV2.principalID(); id != "" {
			return IdentityGrant{PrincipalID: id}
		}
		return UnrecognizedGrant{}
	case p.GrantedTo != nil:
		if p.GrantedTo.User != nil && p.GrantedTo.User.ID != "" {
			return LegacyGrant{UserID: p.GrantedTo.User.ID}
		}
		return UnrecognizedGrant{}
	case len(p.GrantedToIdentitiesV2) > 0:
		var ids []string
		for i := range p.GrantedToIdentitiesV2 {
			if id := p.GrantedToIdentitiesV2[i].principalID(); id != "" {
				ids = append(ids, id)
			}
		}
		return LinkGrant{PrincipalIDs: ids}
	default:
		return UnrecognizedGrant{}
	}
}

// PrincipalIDs flattens grant records into a deduplicated set of principal
// ids. Unrecognized grants contribute nothing. No ordering guarantee.
func PrincipalIDs(grants []Grant) []string {
	seen := make(map[string]struct{})
	var out []string

	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	for _, g := range grants {
		switch grant := g.(type) {
		case IdentityGrant:
			add(grant.PrincipalID)
		case LegacyGrant:
			add(grant.UserID)
		case LinkGrant:
			for _, id := range grant.PrincipalIDs {
				add(id)
			}
		case UnrecognizedGrant:
			// skipped, never fatal
		}
	}

	return out
}
