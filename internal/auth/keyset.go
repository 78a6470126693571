package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
	lru "github.com/hashicorp/golang-lru/v2"
)

const keyCacheSize = 64

// keySet is an explicitly owned, lifetime-scoped cache of the issuer's
// signing keys, refreshed from the JWKS discovery endpoint on key-id miss.
//
// Reads are cache hits in the common case. A miss triggers at most one
// refresh in flight per missing key id; concurrent validations wait for
// that refresh and then race harmlessly to the same cached value.
type keySet struct {
	jwksURL    string
	httpClient *http.Client

	keys *lru.Cache[string, interface{}]

	mu       sync.Mutex
	inflight map[string]*refresh
}

type refresh struct {
	done chan struct{}
	err  error
}

func newKeySet(jwksURL string, httpClient *http.Client) (*keySet, error) {
	if jwksURL == "" {
		return nil, errors.New("jwks url is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	cache, err := lru.New[string, interface{}](keyCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create key cache: %w", err)
	}
	return &keySet{
		jwksURL:    jwksURL,
		httpClient: httpClient,
		keys:       cache,
		inflight:   make(map[string]*refresh),
	}, nil
}

// keyfunc adapts the cache to the jwt parser, binding the request context
// so an in-flight JWKS fetch is abandoned when the caller disconnects.
func (s *keySet) keyfunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token missing kid header")
		}
		return s.key(ctx, kid)
	}
}

// key returns the public key for kid, refreshing the JWKS document on miss.
func (s *keySet) key(ctx context.Context, kid string) (interface{}, error) {
	if k, ok := s.keys.Get(kid); ok {
		return k, nil
	}

	s.mu.Lock()
	call, found := s.inflight[kid]
	if !found {
		call = &refresh{done: make(chan struct{})}
		s.inflight[kid] = call
	}
	s.mu.Unlock()

	if found {
		select {
		case <-call.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	} else {
		call.err = s.fetch(ctx)
		s.mu.Lock()
		delete(s.inflight, kid)
		s.mu.Unlock()
		close(call.done)
	}

	if k, ok := s.keys.Get(kid); ok {
		return k, nil
	}
	if call.err != nil {
		return nil, fmt.Errorf("refresh signing keys: %w", call.err)
	}
	return nil, fmt.Errorf("signing key %q not found in jwks", kid)
}

// fetch downloads and parses the JWKS document, caching every signing key.
func (s *keySet) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("build jwks request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch jwks: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read jwks response: %w", err)
	}

	var set jose.JSONWebKeySet
	if err := json.Unmarshal(body, &set); err != nil {
		return fmt.Errorf("parse jwks document: %w", err)
	}

	for _, k := range set.Keys {
		if k.KeyID == "" || !k.Valid() {
			continue
		}
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		s.keys.Add(k.KeyID, k.Key)
	}

	return nil
}
