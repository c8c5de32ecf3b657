package token

import (
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ctyano/athenz-auth-core/internal/config"
	"github.com/ctyano/athenz-auth-core/internal/keys"
)

const (
	testIssuer   = "https://jenkins.athenz.svc.cluster.local/oidc"
	testAudience = "athenz.io"
)

type tokenClaims struct {
	issuer   string
	audience any
	subject  string
	issuedAt *time.Time
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, tc tokenClaims) string {
	t.Helper()

	claims := jwt.MapClaims{}
	if tc.issuer != "" {
		claims["iss"] = tc.issuer
	}
	if tc.audience != nil {
		claims["aud"] = tc.audience
	}
	if tc.subject != "" {
		claims["sub"] = tc.subject
	}
	if tc.issuedAt != nil {
		claims["iat"] = tc.issuedAt.Unix()
		exp := tc.issuedAt.Add(time.Hour)
		claims["exp"] = exp.Unix()
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid

	signed, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func newTestValidator(t *testing.T, primaryKey, fallbackKey *rsa.PrivateKey, now time.Time) *Validator {
	t.Helper()

	primary := keys.NewResolver("", nil)
	if primaryKey != nil {
		primary.PutKey("primary-kid", &primaryKey.PublicKey)
	}

	fallback := keys.NewResolver("", nil)
	if fallbackKey != nil {
		fallback.PutKey("fallback-kid", &fallbackKey.PublicKey)
	}

	v := NewValidator(testIssuer, testAudience, primary, fallback, config.NewDynamicLong(300), 60*time.Second)
	v.now = func() time.Time { return now }
	return v
}

func TestVerifyValidToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	iat := now.Add(-time.Minute)

	v := newTestValidator(t, key, nil, now)
	raw := signToken(t, key, "primary-kid", tokenClaims{
		issuer:   testIssuer,
		audience: testAudience,
		subject:  "sports:job:api-build",
		issuedAt: &iat,
	})

	claims, err := v.Verify(raw)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if claims.Subject != "sports:job:api-build" {
		t.Errorf("Verify() subject = %q", claims.Subject)
	}
	if claims.KeyID != "primary-kid" {
		t.Errorf("Verify() key id = %q", claims.KeyID)
	}
}

func TestVerifyFallbackKeyStore(t *testing.T) {
	primaryKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	fallbackKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	iat := now.Add(-time.Minute)

	v := newTestValidator(t, primaryKey, fallbackKey, now)

	// token signed with a key only known to the fallback key store
	raw := signToken(t, fallbackKey, "fallback-kid", tokenClaims{
		issuer:   testIssuer,
		audience: testAudience,
		subject:  "sports:job:api-build",
		issuedAt: &iat,
	})

	if _, err := v.Verify(raw); err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
}

func TestVerifyBothSourcesFail(t *testing.T) {
	signingKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	trustedKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	iat := now.Add(-time.Minute)

	// neither source trusts the signing key
	v := newTestValidator(t, trustedKey, trustedKey, now)
	raw := signToken(t, signingKey, "unknown-kid", tokenClaims{
		issuer:   testIssuer,
		audience: testAudience,
		subject:  "sports:job:api-build",
		issuedAt: &iat,
	})

	_, err = v.Verify(raw)
	if err == nil {
		t.Fatal("Verify() expected error")
	}
	msg := err.Error()
	if !strings.HasPrefix(msg, "Unable to parse and validate token with JWKS: ") {
		t.Errorf("Verify() error = %q, want JWKS failure first", msg)
	}
	if !strings.Contains(msg, "; Unable to parse and validate token with Key Store: ") {
		t.Errorf("Verify() error = %q, want key store failure appended", msg)
	}
}

func TestVerifyClaimChecks(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	fresh := now.Add(-time.Minute)
	stale := now.Add(-10 * time.Minute) // boot time offset is 300s

	tests := []struct {
		name    string
		claims  tokenClaims
		wantErr string
	}{
		{
			name: "wrong issuer",
			claims: tokenClaims{
				issuer:   "https://evil.example.com",
				audience: testAudience,
				subject:  "sports:job:api-build",
				issuedAt: &fresh,
			},
			wantErr: "token issuer is not Jenkins: https://evil.example.com",
		},
		{
			name: "wrong audience",
			claims: tokenClaims{
				issuer:   testIssuer,
				audience: "other.io",
				subject:  "sports:job:api-build",
				issuedAt: &fresh,
			},
			wantErr: "token audience is not ZTS Server audience: other.io",
		},
		{
			name: "multiple audiences do not match",
			claims: tokenClaims{
				issuer:   testIssuer,
				audience: []string{testAudience, "other.io"},
				subject:  "sports:job:api-build",
				issuedAt: &fresh,
			},
			wantErr: "token audience is not ZTS Server audience: ",
		},
		{
			name: "stale issued-at",
			claims: tokenClaims{
				issuer:   testIssuer,
				audience: testAudience,
				subject:  "sports:job:api-build",
				issuedAt: &stale,
			},
			wantErr: "job start time is not recent enough",
		},
		{
			name: "missing issued-at",
			claims: tokenClaims{
				issuer:   testIssuer,
				audience: testAudience,
				subject:  "sports:job:api-build",
			},
			wantErr: "job start time is not recent enough, issued at: <none>",
		},
		{
			name: "missing subject",
			claims: tokenClaims{
				issuer:   testIssuer,
				audience: testAudience,
				issuedAt: &fresh,
			},
			wantErr: "token does not contain required subject claim",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestValidator(t, key, nil, now)
			raw := signToken(t, key, "primary-kid", tt.claims)

			_, err := v.Verify(raw)
			if err == nil {
				t.Fatalf("Verify() expected error %q", tt.wantErr)
			}
			if !strings.HasPrefix(err.Error(), tt.wantErr) {
				t.Errorf("Verify() error = %q, want prefix %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestVerifyBootTimeOffsetReload(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	iat := now.Add(-10 * time.Minute)

	offset := config.NewDynamicLong(300)
	primary := keys.NewResolver("", nil)
	primary.PutKey("primary-kid", &key.PublicKey)
	fallback := keys.NewResolver("", nil)

	v := NewValidator(testIssuer, testAudience, primary, fallback, offset, 60*time.Second)
	v.now = func() time.Time { return now }

	raw := signToken(t, key, "primary-kid", tokenClaims{
		issuer:   testIssuer,
		audience: testAudience,
		subject:  "sports:job:api-build",
		issuedAt: &iat,
	})

	if _, err := v.Verify(raw); err == nil {
		t.Fatal("Verify() expected stale token rejection with 300s offset")
	}

	// widening the offset at runtime must take effect without a rebuild
	offset.Set(3600)
	if _, err := v.Verify(raw); err != nil {
		t.Fatalf("Verify() error after widening offset: %v", err)
	}
}
