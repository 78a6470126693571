package search

import "context"

// Unit is a stored, independently retrievable fragment of a document.
//
// Units are immutable after creation. Re-ingesting a document replaces its
// units wholesale; permission tags are never merged, so a revoked principal
// disappears from future queries.
type Unit struct {
	ID         string
	Text       string
	DocumentID string
	Source     string

	// AllowedPrincipals is the document-level permission set propagated
	// uniformly to every chunk. Legitimately empty when nobody is
	// currently granted access (e.g. after a failed permission fetch).
	AllowedPrincipals []string

	Vector []float32
}

// Store is the vector index boundary. The allowed-principals field is
// declared filterable by every implementation, since the secure filter is
// evaluated by the store at query time.
type Store interface {
	// EnsureIndex creates the index/collection if it does not exist.
	// dims is the embedding dimensionality.
	EnsureIndex(ctx context.Context, dims int) error

	// ReplaceDocument atomically supersedes all previously stored units
	// of documentID with the given batch.
	ReplaceDocument(ctx context.Context, documentID string, units []Unit) error

	// Search returns the top-k nearest units to vector. A nil filter
	// means the security layer is bypassed entirely; a non-nil filter is
	// evaluated against each unit's allowed principals.
	Search(ctx context.Context, vector []float32, k int, filter *Filter) ([]Unit, error)

	// Reset drops the index and all stored units.
	Reset(ctx context.Context) error
}
