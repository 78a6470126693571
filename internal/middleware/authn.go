package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/boovboyz/azurerag/internal/auth"
)

// TokenValidator is the part of auth.Validator the middleware depends on.
type TokenValidator interface {
	Validate(ctx context.Context, rawToken string) (*auth.Identity, error)
}

// RequireAuth mandates a valid bearer credential. A missing credential is
// rejected with a WWW-Authenticate challenge; an invalid one is rejected as
// unauthorized. Neither case is ever downgraded to "unauthenticated but
// allowed through".
func RequireAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				challenge(w, "Authentication required")
				return
			}

			id, err := validator.Validate(r.Context(), token)
			if err != nil {
				log.Printf("rejected token for %s %s: %v", r.Method, r.URL.Path, err)
				challenge(w, rejectionDetail(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.SetIdentity(r.Context(), id)))
		})
	}
}

// AllowAnonymous validates a bearer credential when one is supplied but lets
// credential-less requests through without an identity; downstream handlers
// see the explicit no-access principal marker for those. An invalid
// credential is still rejected as unauthorized, never treated as anonymous.
func AllowAnonymous(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := validator.Validate(r.Context(), token)
			if err != nil {
				log.Printf("rejected token for %s %s: %v", r.Method, r.URL.Path, err)
				challenge(w, rejectionDetail(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.SetIdentity(r.Context(), id)))
		})
	}
}

// bearerToken extracts the credential from the Authorization header.
// The scheme name is matched case-insensitively per RFC 9110. Returns ""
// when no bearer credential is supplied, a distinct case from a
// credential that fails validation.
func bearerToken(r *http.Request) string {
	scheme, credential, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(credential)
}

// challenge writes a 401 with the bearer challenge header.
func challenge(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

// rejectionDetail maps validation failures onto client-visible detail
// strings without leaking parser internals.
func rejectionDetail(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "Token has expired"
	case errors.Is(err, auth.ErrBadAudience):
		return "Invalid token audience"
	case errors.Is(err, auth.ErrBadIssuer):
		return "Invalid token issuer"
	case errors.Is(err, auth.ErrMissingSubject):
		return "Token missing user identifier"
	default:
		return "Invalid token"
	}
}
