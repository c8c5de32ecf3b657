package keys

import (
	"context"
	"crypto"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// maxJWKSResponseSize caps a JWKS response body at 1 MB.
const maxJWKSResponseSize = 1 << 20

// Resolver maps token key ids to public keys. It is populated from a remote
// JWKS source via Refresh and/or by direct insertion (the fallback key
// store, tests, operational tooling).
//
// Concurrent readers share an immutable snapshot; Refresh and PutKey build
// a new map and swap it atomically, so a reader never observes a partially
// populated key set.
type Resolver struct {
	jwksURI string
	client  *http.Client

	mu       sync.Mutex                 // serializes writers
	inserted map[string]crypto.PublicKey // PutKey entries, kept across refreshes

	snapshot atomic.Pointer[map[string]crypto.PublicKey]
}

// NewResolver creates a Resolver backed by the given JWKS URI. The URI may
// be empty for a resolver populated only by direct insertion. A nil client
// falls back to http.DefaultClient; callers normally pass a client with a
// bounded timeout.
func NewResolver(jwksURI string, client *http.Client) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	r := &Resolver{
		jwksURI: jwksURI,
		client:  client,
	}
	empty := map[string]crypto.PublicKey{}
	r.snapshot.Store(&empty)
	return r
}

// JWKSURI returns the JWKS source URI, or "" for insertion-only resolvers.
func (r *Resolver) JWKSURI() string {
	return r.jwksURI
}

// Refresh fetches the JWKS document and atomically replaces the key
// snapshot. Keys inserted via PutKey are carried over so a refresh never
// drops operator-seeded keys.
func (r *Resolver) Refresh(ctx context.Context) error {
	if r.jwksURI == "" {
		return fmt.Errorf("resolver has no JWKS URI configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.jwksURI, nil)
	if err != nil {
		return fmt.Errorf("creating JWKS request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching JWKS from %s: %w", r.jwksURI, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint %s returned status %d", r.jwksURI, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSResponseSize))
	if err != nil {
		return fmt.Errorf("reading JWKS response: %w", err)
	}

	fetched, err := ParseJWKS(body)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]crypto.PublicKey, len(fetched)+len(r.inserted))
	for kid, key := range fetched {
		next[kid] = key
	}
	for kid, key := range r.inserted {
		next[kid] = key
	}
	r.snapshot.Store(&next)

	log.Debug().Str("jwks_uri", r.jwksURI).Int("keys", len(next)).Msg("refreshed signing key set")
	return nil
}

// PutKey adds a key to the resolver under the given key id, replacing any
// existing key with that id. Safe for concurrent use.
func (r *Resolver) PutKey(kid string, key crypto.PublicKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inserted == nil {
		r.inserted = make(map[string]crypto.PublicKey)
	}
	r.inserted[kid] = key

	current := *r.snapshot.Load()
	next := make(map[string]crypto.PublicKey, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[kid] = key
	r.snapshot.Store(&next)
}

// ResolveKey returns the public key for the given key id. The second return
// is false when the id is unknown; callers treat that as a verification
// failure, never a crash.
func (r *Resolver) ResolveKey(kid string) (crypto.PublicKey, bool) {
	key, ok := (*r.snapshot.Load())[kid]
	return key, ok
}

// Keys returns the current key ids, for display tooling.
func (r *Resolver) Keys() []string {
	current := *r.snapshot.Load()
	kids := make([]string, 0, len(current))
	for kid := range current {
		kids = append(kids, kid)
	}
	return kids
}

// Keyfunc adapts the resolver to the golang-jwt key lookup contract: the
// token's kid header selects the verification key.
func (r *Resolver) Keyfunc(token *jwt.Token) (any, error) {
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("token does not contain a key id")
	}
	key, ok := r.ResolveKey(kid)
	if !ok {
		return nil, fmt.Errorf("unknown signing key id %q", kid)
	}
	return key, nil
}
