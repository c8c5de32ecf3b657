package jenkins

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"

	"github.com/ctyano/athenz-auth-core/internal/config"
	"github.com/ctyano/athenz-auth-core/internal/core"
)

func providerConfig(name string, block map[string]any) config.ProviderConfig {
	return config.ProviderConfig{
		Name:   name,
		Type:   Scheme,
		Config: block,
	}
}

const (
	testIssuer   = "https://jenkins.athenz.svc.cluster.local/oidc"
	testAudience = "athenz.io"
	testSubject  = "https://jenkins.athenz.io/job/sports/job/api"
)

type allowAll struct{}

func (allowAll) Access(context.Context, string, string, core.Principal) (bool, error) {
	return true, nil
}

type denyAll struct{}

func (denyAll) Access(context.Context, string, string, core.Principal) (bool, error) {
	return false, nil
}

// newTestProvider spins up a JWKS endpoint for the given key and builds a
// provider trusting it.
func newTestProvider(t *testing.T, key *rsa.PrivateKey, authorizer core.Authorizer) *Provider {
	t.Helper()

	jwks := map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "jenkins-key",
			"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(srv.Close)

	p, err := New(context.Background(), "jenkins", Config{
		Issuer:   testIssuer,
		Audience: testAudience,
		JWKSURI:  srv.URL,
	}, srv.Client())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if authorizer != nil {
		p.SetAuthorizer(authorizer)
	}
	return p
}

func signTestToken(t *testing.T, key *rsa.PrivateKey, mutate func(jwt.MapClaims)) string {
	t.Helper()

	now := time.Now()
	claims := jwt.MapClaims{
		"iss": testIssuer,
		"aud": testAudience,
		"sub": testSubject,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	if mutate != nil {
		mutate(claims)
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = "jenkins-key"

	signed, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func validConfirmation(token string) *core.InstanceConfirmation {
	return &core.InstanceConfirmation{
		Provider:        "jenkins",
		Domain:          "sports",
		Service:         "api",
		AttestationData: token,
		Attributes: map[string]string{
			core.AttrInstanceID: "id-001",
			core.AttrSanDNS:     "api.sports.jenkins.athenz.io,id-001.instanceid.athenz.jenkins.athenz.io",
			core.AttrSanURI:     "spiffe://sports/sa/api,athenz://instanceid/jenkins/id-001",
		},
	}
}

func TestConfirmInstance(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	p := newTestProvider(t, key, allowAll{})
	token := signTestToken(t, key, nil)

	result, err := p.ConfirmInstance(context.Background(), validConfirmation(token))
	if err != nil {
		t.Fatalf("ConfirmInstance() error: %v", err)
	}

	want := map[string]string{
		core.AttrCertRefresh:    "false",
		core.AttrCertUsage:      "client",
		core.AttrCertExpiryTime: "360",
	}
	if diff := cmp.Diff(want, result.Attributes); diff != "" {
		t.Errorf("ConfirmInstance() attributes mismatch (-want +got):\n%s", diff)
	}
}

func TestConfirmInstanceRejections(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}

	validToken := signTestToken(t, key, nil)

	tests := []struct {
		name       string
		authorizer core.Authorizer
		mutate     func(*core.InstanceConfirmation)
		wantErr    string
	}{
		{
			name:    "no authorizer wired",
			mutate:  func(c *core.InstanceConfirmation) {},
			wantErr: "Authorizer not available",
		},
		{
			name:       "sanIP present",
			authorizer: allowAll{},
			mutate: func(c *core.InstanceConfirmation) {
				c.Attributes[core.AttrSanIP] = "10.0.0.1"
			},
			wantErr: "Request must not have any sanIP addresses",
		},
		{
			name:       "hostname present",
			authorizer: allowAll{},
			mutate: func(c *core.InstanceConfirmation) {
				c.Attributes[core.AttrHostname] = "host1.athenz.cloud"
			},
			wantErr: "Request must not have any sanDNS values",
		},
		{
			name:       "unsupported sanURI",
			authorizer: allowAll{},
			mutate: func(c *core.InstanceConfirmation) {
				c.Attributes[core.AttrSanURI] = "https://athenz.io"
			},
			wantErr: "Unable to validate certificate request sanURI values",
		},
		{
			name:       "missing token",
			authorizer: allowAll{},
			mutate: func(c *core.InstanceConfirmation) {
				c.AttestationData = ""
			},
			wantErr: "Jenkins ID Token must be provided",
		},
		{
			name:       "token signed by untrusted key",
			authorizer: allowAll{},
			mutate: func(c *core.InstanceConfirmation) {
				c.AttestationData = signTestToken(t, otherKey, nil)
			},
			wantErr: "Unable to validate Certificate Request with the provided ID Token: Unable to parse and validate token with JWKS: ",
		},
		{
			name:       "authorization denied",
			authorizer: denyAll{},
			mutate:     func(c *core.InstanceConfirmation) {},
			wantErr:    "Unable to validate Certificate Request with the provided ID Token: authorization check failed for action: jenkins.job resource: sports:" + testSubject,
		},
		{
			name:       "bad sanDNS entry",
			authorizer: allowAll{},
			mutate: func(c *core.InstanceConfirmation) {
				c.Attributes[core.AttrSanDNS] = "api.sports.wrong.suffix.io"
			},
			wantErr: "Unable to validate certificate request sanDNS entries",
		},
		{
			name:       "sanDNS instance id mismatch",
			authorizer: allowAll{},
			mutate: func(c *core.InstanceConfirmation) {
				c.Attributes[core.AttrSanDNS] = "id-999.instanceid.athenz.jenkins.athenz.io"
			},
			wantErr: "Unable to validate certificate request sanDNS entries",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, key, tt.authorizer)
			confirmation := validConfirmation(validToken)
			tt.mutate(confirmation)

			_, err := p.ConfirmInstance(context.Background(), confirmation)
			if err == nil {
				t.Fatalf("ConfirmInstance() expected error %q", tt.wantErr)
			}
			if !strings.HasPrefix(err.Error(), tt.wantErr) {
				t.Errorf("ConfirmInstance() error = %q, want prefix %q", err.Error(), tt.wantErr)
			}
			if !core.IsForbidden(err) {
				t.Errorf("ConfirmInstance() error is not forbidden")
			}
		})
	}
}

func TestConfirmInstanceTokenClaimRejections(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		mutate  func(jwt.MapClaims)
		wantErr string
	}{
		{
			name: "wrong issuer",
			mutate: func(c jwt.MapClaims) {
				c["iss"] = "https://evil.example.com"
			},
			wantErr: "Unable to validate Certificate Request with the provided ID Token: token issuer is not Jenkins: https://evil.example.com",
		},
		{
			name: "wrong audience",
			mutate: func(c jwt.MapClaims) {
				c["aud"] = "other.io"
			},
			wantErr: "Unable to validate Certificate Request with the provided ID Token: token audience is not ZTS Server audience: other.io",
		},
		{
			name: "stale job start",
			mutate: func(c jwt.MapClaims) {
				c["iat"] = time.Now().Add(-time.Hour).Unix()
			},
			wantErr: "Unable to validate Certificate Request with the provided ID Token: job start time is not recent enough",
		},
		{
			name: "missing subject",
			mutate: func(c jwt.MapClaims) {
				delete(c, "sub")
			},
			wantErr: "Unable to validate Certificate Request with the provided ID Token: token does not contain required subject claim",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, key, allowAll{})
			token := signTestToken(t, key, tt.mutate)

			_, err := p.ConfirmInstance(context.Background(), validConfirmation(token))
			if err == nil {
				t.Fatalf("ConfirmInstance() expected error %q", tt.wantErr)
			}
			if !strings.HasPrefix(err.Error(), tt.wantErr) {
				t.Errorf("ConfirmInstance() error = %q, want prefix %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestRefreshInstanceAlwaysRejects(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	p := newTestProvider(t, key, allowAll{})
	token := signTestToken(t, key, nil)

	_, err = p.RefreshInstance(context.Background(), validConfirmation(token))
	if err == nil {
		t.Fatal("RefreshInstance() expected error")
	}
	if err.Error() != "Jenkins X.509 certificates cannot be refreshed" {
		t.Errorf("RefreshInstance() error = %q", err.Error())
	}
	if !core.IsForbidden(err) {
		t.Errorf("RefreshInstance() error is not forbidden")
	}
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()

	if cfg.Issuer != DefaultIssuer {
		t.Errorf("Issuer = %q", cfg.Issuer)
	}
	if cfg.Audience != "athenz.io" {
		t.Errorf("Audience = %q", cfg.Audience)
	}
	if len(cfg.DNSSuffixes) != 1 || cfg.DNSSuffixes[0] != "jenkins.athenz.io" {
		t.Errorf("DNSSuffixes = %v", cfg.DNSSuffixes)
	}
	if cfg.BootTimeOffsetSeconds != 300 {
		t.Errorf("BootTimeOffsetSeconds = %d", cfg.BootTimeOffsetSeconds)
	}
	if cfg.CertExpiryMinutes != 360 {
		t.Errorf("CertExpiryMinutes = %d", cfg.CertExpiryMinutes)
	}
	if cfg.ClockSkewSeconds != 60 {
		t.Errorf("ClockSkewSeconds = %d", cfg.ClockSkewSeconds)
	}
}

func TestNewFromConfigDecodesBlock(t *testing.T) {
	jwks := map[string]any{"keys": []map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	defer srv.Close()

	prov, err := NewFromConfig(context.Background(), providerConfig("ci-jenkins", map[string]any{
		"issuer":                   "https://ci.example.com/oidc",
		"audience":                 "example.io",
		"jwks_uri":                 srv.URL,
		"dns_suffixes":             []string{"ci.example.io"},
		"boot_time_offset_seconds": 600,
		"refresh_interval":         "5m",
	}))
	if err != nil {
		t.Fatalf("NewFromConfig() error: %v", err)
	}

	p, ok := prov.(*Provider)
	if !ok {
		t.Fatalf("NewFromConfig() returned %T", prov)
	}
	if p.Name() != "ci-jenkins" {
		t.Errorf("Name() = %q", p.Name())
	}
	if p.RefreshInterval() != 5*time.Minute {
		t.Errorf("RefreshInterval() = %v", p.RefreshInterval())
	}
	if p.BootTimeOffset().Get() != 600 {
		t.Errorf("BootTimeOffset() = %d", p.BootTimeOffset().Get())
	}
}
