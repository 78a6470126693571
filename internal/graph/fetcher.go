package graph

import (
	"context"
	"log"
)

// PermissionLister is the part of Client the fetcher depends on.
type PermissionLister interface {
	ListPermissions(ctx context.Context, itemID string) ([]Grant, error)
}

// PermissionFetcher resolves a document's sharing grants into the flat set
// of principal ids stamped onto its chunks at ingestion time.
type PermissionFetcher struct {
	perms PermissionLister
}

// NewPermissionFetcher wraps a permission lister with fail-closed semantics.
func NewPermissionFetcher(perms PermissionLister) *PermissionFetcher {
	return &PermissionFetcher{perms: perms}
}

// Fetch returns the deduplicated principal ids granted access to itemID.
//
// Fail-closed: when the sharing-API call fails (including timeout), the
// result is the empty set, never "unrestricted". The document stays
// retrievable by nobody until the next successful ingestion run resolves
// its permissions. The failure is logged and absorbed here; it never
// propagates.
func (f *PermissionFetcher) Fetch(ctx context.Context, itemID string) []string {
	grants, err := f.perms.ListPermissions(ctx, itemID)
	if err != nil {
		log.Printf("WARNING: permission fetch failed for item %s, granting no access: %v", itemID, err)
		return []string{}
	}
	return PrincipalIDs(grants)
}
