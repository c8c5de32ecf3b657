package discovery

import (
	"context"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog/log"
)

// requestTimeout bounds the single discovery call performed at startup or
// during a key-set refresh.
const requestTimeout = 10 * time.Second

// ResolveJWKSURI resolves the JWKS endpoint for the given issuer.
//
// A non-empty override wins without a network call. Otherwise the issuer's
// well-known openid-configuration document is fetched once; on any failure
// (network error, non-2xx, malformed body, missing jwks_uri) the hardcoded
// fallback URI is returned. Discovery never fails: a broken discovery
// endpoint must not prevent the validator from starting, only potentially
// degrade which keys it trusts.
func ResolveJWKSURI(ctx context.Context, client *http.Client, issuer, override, fallback string) string {
	if override != "" {
		return override
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	if client != nil {
		ctx = oidc.ClientContext(ctx, client)
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		log.Error().Err(err).Str("issuer", issuer).Msg("unable to retrieve openid configuration from issuer")
		return fallback
	}

	var claims struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := provider.Claims(&claims); err != nil || claims.JWKSURI == "" {
		log.Error().Err(err).Str("issuer", issuer).Msg("openid configuration does not contain a jwks_uri")
		return fallback
	}

	return claims.JWKSURI
}
