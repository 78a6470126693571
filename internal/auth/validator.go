package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"github.com/boovboyz/azurerag/internal/config"
)

// Rejection taxonomy for token validation. Every rejection surfaces to the
// caller as unauthorized; none of these is transient, so none is retried.
var (
	ErrTokenExpired   = errors.New("token has expired")
	ErrBadAudience    = errors.New("invalid token audience")
	ErrBadIssuer      = errors.New("invalid token issuer")
	ErrMalformedToken = errors.New("invalid token")
	ErrMissingSubject = errors.New("token missing user identifier")
)

// Validator verifies bearer credentials against the identity provider's
// published signing keys and the configured issuer and audience.
//
// The Validator owns its signing-key cache; nothing else in the process
// fetches or memoizes JWKS state. Safe for concurrent use.
type Validator struct {
	cfg  config.AuthConfig
	keys *keySet
}

// ValidatorOption customises Validator construction.
type ValidatorOption func(*validatorOptions)

type validatorOptions struct {
	httpClient *http.Client
}

// WithHTTPClient overrides the HTTP client used for JWKS discovery.
func WithHTTPClient(client *http.Client) ValidatorOption {
	return func(o *validatorOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// NewValidator constructs a Validator for the configured issuer, audience,
// and JWKS endpoint.
func NewValidator(cfg config.AuthConfig, opts ...ValidatorOption) (*Validator, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("auth issuer is required")
	}
	if cfg.Audience == "" {
		return nil, errors.New("auth audience is required")
	}

	var o validatorOptions
	for _, opt := range opts {
		opt(&o)
	}

	keys, err := newKeySet(cfg.JWKSURL, o.httpClient)
	if err != nil {
		return nil, err
	}

	return &Validator{cfg: cfg, keys: keys}, nil
}

// Validate verifies signature, expiration, issuer, and audience of a raw
// bearer credential and extracts the identity carried in its claims.
//
// The returned Identity always has a non-empty Subject: a token whose
// claims check out but carry no usable subject identifier is rejected
// with ErrMissingSubject.
func (v *Validator) Validate(ctx context.Context, rawToken string) (*Identity, error) {
	if rawToken == "" {
		return nil, fmt.Errorf("%w: empty credential", ErrMalformedToken)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithAudience(v.cfg.Audience),
		jwt.WithExpirationRequired(),
	)

	claims := jwt.MapClaims{}
	if _, err := parser.ParseWithClaims(rawToken, claims, v.keys.keyfunc(ctx)); err != nil {
		return nil, classifyParseError(err)
	}

	// Azure AD access tokens identify the user by oid; sub is the
	// pairwise fallback.
	subject := ExtractClaimString(claims, "oid")
	if subject == "" {
		subject = ExtractClaimString(claims, "sub")
	}
	if subject == "" {
		return nil, ErrMissingSubject
	}

	groups, err := ExtractGroups(claims, v.cfg.GroupsClaimField, v.cfg.GroupsClaimPath)
	if err != nil {
		return nil, fmt.Errorf("%w: groups claim: %v", ErrMalformedToken, err)
	}

	email := ExtractClaimString(claims, "preferred_username")
	if email == "" {
		email = ExtractClaimString(claims, "email")
	}

	return &Identity{
		Subject: subject,
		Email:   email,
		Name:    ExtractClaimString(claims, "name"),
		Groups:  groups,
	}, nil
}

// classifyParseError maps jwt parser failures onto the rejection taxonomy.
// Distinct reasons stay distinct; anything unrecognized is a malformed or
// badly signed token.
func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return fmt.Errorf("%w: %v", ErrBadAudience, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return fmt.Errorf("%w: %v", ErrBadIssuer, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}
