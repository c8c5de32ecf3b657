package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ctyano/athenz-auth-core/internal/config"
	"github.com/ctyano/athenz-auth-core/internal/keys"
)

// allowedSigningMethods restricts verification to asymmetric algorithms.
// Accepting HMAC here would let a token signed with the public key bytes as
// an HMAC secret pass verification.
var allowedSigningMethods = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}

// Claims is the verified subset of an attestation token used by the
// confirmation pipeline. It exists only transiently during validation.
type Claims struct {
	Issuer   string
	Audience string
	Subject  string
	IssuedAt *time.Time
	Expiry   *time.Time
	KeyID    string
}

// Validator verifies an attestation token's signature and identity claims.
//
// Signature verification tries the primary key set (issuer JWKS) first and
// retries once against the fallback key set (the organization-wide key
// store). This allows a transition period where tokens may be signed
// against either trust source without a synchronized cutover.
type Validator struct {
	issuer   string
	audience string
	primary  *keys.Resolver
	fallback *keys.Resolver

	// bootTimeOffset is read on every call to support live reconfiguration.
	bootTimeOffset *config.DynamicLong

	leeway time.Duration
	now    func() time.Time
}

func NewValidator(issuer, audience string, primary, fallback *keys.Resolver, bootTimeOffset *config.DynamicLong, leeway time.Duration) *Validator {
	if leeway <= 0 {
		leeway = 60 * time.Second
	}
	return &Validator{
		issuer:         issuer,
		audience:       audience,
		primary:        primary,
		fallback:       fallback,
		bootTimeOffset: bootTimeOffset,
		leeway:         leeway,
		now:            time.Now,
	}
}

// Verify runs the claim checks in order, short-circuiting on the first
// failure: signature (primary then fallback), issuer, audience, freshness,
// subject presence. The returned error message layers the specific
// sub-cause so operators can tell key-trust misconfiguration from a forged
// token.
func (v *Validator) Verify(raw string) (*Claims, error) {
	parsed, err := v.parseAndVerify(raw, v.primary)
	if err != nil {
		primaryErr := err
		parsed, err = v.parseAndVerify(raw, v.fallback)
		if err != nil {
			return nil, fmt.Errorf("Unable to parse and validate token with JWKS: %v; Unable to parse and validate token with Key Store: %v", primaryErr, err)
		}
	}

	claims := parsed

	if claims.Issuer != v.issuer {
		return nil, fmt.Errorf("token issuer is not Jenkins: %s", claims.Issuer)
	}

	if claims.Audience != v.audience {
		return nil, fmt.Errorf("token audience is not ZTS Server audience: %s", claims.Audience)
	}

	// the job must have started within the configured boot time offset;
	// a missing issued-at is treated identically to a stale one
	offset := time.Duration(v.bootTimeOffset.Get()) * time.Second
	if claims.IssuedAt == nil || claims.IssuedAt.Before(v.now().Add(-offset)) {
		return nil, fmt.Errorf("job start time is not recent enough, issued at: %s", formatIssuedAt(claims.IssuedAt))
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("token does not contain required subject claim")
	}

	return claims, nil
}

// parseAndVerify checks the token signature against one key set and
// extracts the claims needed by Verify. Claim content checks are left to
// the caller so each failure keeps its distinct message.
func (v *Validator) parseAndVerify(raw string, resolver *keys.Resolver) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods(allowedSigningMethods),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	)

	var mapClaims jwt.MapClaims = map[string]any{}
	parsed, err := parser.ParseWithClaims(raw, &mapClaims, resolver.Keyfunc)
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	claims.KeyID, _ = parsed.Header["kid"].(string)
	claims.Issuer, _ = mapClaims["iss"].(string)
	claims.Subject, _ = mapClaims["sub"].(string)
	claims.Audience = audienceClaim(mapClaims)

	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		t := iat.Time
		claims.IssuedAt = &t
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		claims.Expiry = &t
	}

	return claims, nil
}

// audienceClaim extracts the audience as a single string. A token carrying
// multiple audiences does not match the single configured audience and is
// reported verbatim in the mismatch message.
func audienceClaim(mc jwt.MapClaims) string {
	switch aud := mc["aud"].(type) {
	case string:
		return aud
	case []any:
		if len(aud) == 1 {
			if s, ok := aud[0].(string); ok {
				return s
			}
		}
		return fmt.Sprint(aud)
	default:
		return ""
	}
}

func formatIssuedAt(t *time.Time) string {
	if t == nil {
		return "<none>"
	}
	return t.UTC().Format(time.RFC3339)
}
