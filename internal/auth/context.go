package auth

import "context"

type identityContextKey struct{}

// SetIdentity stores the verified identity on the request context.
func SetIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext returns the verified identity stored on the request
// context, if any.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*Identity)
	return id, ok && id != nil
}

// PrincipalsFromContext resolves the principal set for the request: the
// resolved set of the verified identity, or the explicit no-access marker
// when the request carries no identity.
func PrincipalsFromContext(ctx context.Context) PrincipalSet {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return NoAccess()
	}
	return Resolve(id)
}
