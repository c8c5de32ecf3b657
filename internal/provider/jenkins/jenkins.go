package jenkins

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"

	"github.com/ctyano/athenz-auth-core/internal/authz"
	"github.com/ctyano/athenz-auth-core/internal/config"
	"github.com/ctyano/athenz-auth-core/internal/core"
	"github.com/ctyano/athenz-auth-core/internal/discovery"
	"github.com/ctyano/athenz-auth-core/internal/keys"
	"github.com/ctyano/athenz-auth-core/internal/policy"
	"github.com/ctyano/athenz-auth-core/internal/token"
)

// Scheme is the provider type identifier (as used in config).
const Scheme = "jenkins"

// Defaults matching the in-cluster Jenkins deployment.
const (
	DefaultIssuer  = "https://jenkins.athenz.svc.cluster.local/oidc"
	DefaultJWKSURI = "https://jenkins.athenz.svc.cluster.local/oidc/jwks"

	defaultAudience          = "athenz.io"
	defaultDNSSuffix         = "jenkins.athenz.io"
	defaultBootTimeOffsetSec = 300
	defaultCertExpiryMinutes = 360
	defaultClockSkewSec      = 60
)

// Config is the jenkins provider configuration block.
type Config struct {
	// Issuer is the expected token issuer. Compared with exact string
	// equality, no normalization.
	Issuer string `mapstructure:"issuer"`

	// Audience is the expected token audience.
	Audience string `mapstructure:"audience"`

	// JWKSURI overrides issuer discovery when set.
	JWKSURI string `mapstructure:"jwks_uri"`

	// DNSSuffixes a requested sanDNS hostname may fall under.
	DNSSuffixes []string `mapstructure:"dns_suffixes"`

	// BootTimeOffsetSeconds is the maximum allowed token age. Reloadable
	// at runtime; re-read on every validation call.
	BootTimeOffsetSeconds int64 `mapstructure:"boot_time_offset_seconds"`

	// CertExpiryMinutes is the max expiry for issued certificates.
	CertExpiryMinutes int64 `mapstructure:"cert_expiry_minutes"`

	// ClockSkewSeconds allowed when verifying token signatures and expiry.
	ClockSkewSeconds int `mapstructure:"clock_skew_seconds"`

	// RefreshInterval between periodic JWKS refreshes. Zero disables the
	// periodic task (the startup fetch still runs).
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`

	// KeyStore seeds the fallback key set (the organization-wide key
	// store) tried when JWKS verification fails.
	KeyStore KeyStoreConfig `mapstructure:"key_store"`
}

// KeyStoreConfig populates the fallback key source.
type KeyStoreConfig struct {
	// JWKSFile is a local JWKS document to load at startup.
	JWKSFile string `mapstructure:"jwks_file"`

	// JWKSURI is an optional remote source for the fallback set.
	JWKSURI string `mapstructure:"jwks_uri"`

	// Keys are inline PEM public keys indexed by key id.
	Keys []StaticKey `mapstructure:"keys"`
}

type StaticKey struct {
	KeyID string `mapstructure:"key_id"`
	PEM   string `mapstructure:"pem"`
}

func (c *Config) applyDefaults() {
	if c.Issuer == "" {
		c.Issuer = DefaultIssuer
	}
	if c.Audience == "" {
		c.Audience = defaultAudience
	}
	if len(c.DNSSuffixes) == 0 {
		c.DNSSuffixes = []string{defaultDNSSuffix}
	}
	if c.BootTimeOffsetSeconds <= 0 {
		c.BootTimeOffsetSeconds = defaultBootTimeOffsetSec
	}
	if c.CertExpiryMinutes <= 0 {
		c.CertExpiryMinutes = defaultCertExpiryMinutes
	}
	if c.ClockSkewSeconds <= 0 {
		c.ClockSkewSeconds = defaultClockSkewSec
	}
}

// Provider validates Jenkins CI job identities and approves short-lived,
// client-only, non-renewable X.509 certificates for them.
type Provider struct {
	name string
	cfg  Config

	bootTimeOffset *config.DynamicLong
	primary        *keys.Resolver
	fallback       *keys.Resolver
	validator      *token.Validator

	mu         sync.RWMutex
	authorizer core.Authorizer
}

var _ core.Provider = (*Provider)(nil)

// NewFromConfig is the registry factory for the jenkins scheme.
func NewFromConfig(ctx context.Context, cfg config.ProviderConfig) (core.Provider, error) {
	var conf Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:   nil,
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &conf,
	})
	if err != nil {
		return nil, fmt.Errorf("creating decoder for jenkins provider '%s': %w", cfg.Name, err)
	}
	if err := decoder.Decode(cfg.Config); err != nil {
		return nil, fmt.Errorf("decoding config for jenkins provider '%s': %w", cfg.Name, err)
	}
	return New(ctx, cfg.Name, conf, nil)
}

// New builds the provider: resolves the JWKS endpoint (discovery with
// static override and hardcoded fallback), seeds both key sources, and
// wires the claims validator. A nil client gets a bounded-timeout default.
func New(ctx context.Context, name string, cfg Config, client *http.Client) (*Provider, error) {
	cfg.applyDefaults()

	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	jwksURI := discovery.ResolveJWKSURI(ctx, client, cfg.Issuer, cfg.JWKSURI, DefaultJWKSURI)

	primary := keys.NewResolver(jwksURI, client)
	if err := primary.Refresh(ctx); err != nil {
		// tolerated: keys may become available on a later refresh
		log.Warn().Err(err).Str("provider", name).Msg("initial JWKS fetch failed")
	}

	fallback := keys.NewResolver(cfg.KeyStore.JWKSURI, client)
	if err := seedKeyStore(ctx, fallback, cfg.KeyStore); err != nil {
		return nil, fmt.Errorf("seeding fallback key store: %w", err)
	}

	bootTimeOffset := config.NewDynamicLong(cfg.BootTimeOffsetSeconds)
	validator := token.NewValidator(cfg.Issuer, cfg.Audience, primary, fallback, bootTimeOffset,
		time.Duration(cfg.ClockSkewSeconds)*time.Second)

	return &Provider{
		name:           name,
		cfg:            cfg,
		bootTimeOffset: bootTimeOffset,
		primary:        primary,
		fallback:       fallback,
		validator:      validator,
	}, nil
}

func seedKeyStore(ctx context.Context, resolver *keys.Resolver, cfg KeyStoreConfig) error {
	if cfg.JWKSFile != "" {
		data, err := os.ReadFile(cfg.JWKSFile)
		if err != nil {
			return fmt.Errorf("reading key store file: %w", err)
		}
		parsed, err := keys.ParseJWKS(data)
		if err != nil {
			return err
		}
		for kid, key := range parsed {
			resolver.PutKey(kid, key)
		}
	}
	for _, sk := range cfg.Keys {
		key, err := keys.ParsePublicKeyPEM([]byte(sk.PEM))
		if err != nil {
			return fmt.Errorf("parsing key %q: %w", sk.KeyID, err)
		}
		resolver.PutKey(sk.KeyID, key)
	}
	if cfg.JWKSURI != "" {
		if err := resolver.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("initial key store JWKS fetch failed")
		}
	}
	return nil
}

func (p *Provider) Name() string {
	return p.name
}

// SetAuthorizer wires the policy collaborator. Until it is called every
// confirmation is rejected.
func (p *Provider) SetAuthorizer(authorizer core.Authorizer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authorizer = authorizer
}

func (p *Provider) getAuthorizer() core.Authorizer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.authorizer
}

// PrimaryResolver exposes the issuer JWKS key set for refresh tasks and
// operational tooling.
func (p *Provider) PrimaryResolver() *keys.Resolver {
	return p.primary
}

// FallbackResolver exposes the key store key set.
func (p *Provider) FallbackResolver() *keys.Resolver {
	return p.fallback
}

// RefreshInterval returns the configured periodic JWKS refresh interval.
func (p *Provider) RefreshInterval() time.Duration {
	return p.cfg.RefreshInterval
}

// BootTimeOffset exposes the live-reloadable offset holder.
func (p *Provider) BootTimeOffset() *config.DynamicLong {
	return p.bootTimeOffset
}

// Validator exposes the claims validator for offline inspection tooling.
func (p *Provider) Validator() *token.Validator {
	return p.validator
}

func forbidden(message string) error {
	log.Error().Msg(message)
	return core.Forbidden(message)
}

// ConfirmInstance runs the full validation pipeline: authorizer presence,
// SAN pre-conditions, sanURI policy, token presence, claims verification,
// authorization, sanDNS policy. The first failing stage rejects the
// request; approval sets exactly the certificate attributes this workload
// class is allowed.
func (p *Provider) ConfirmInstance(ctx context.Context, confirmation *core.InstanceConfirmation) (*core.InstanceConfirmation, error) {
	// before running any checks make sure we have a valid authorizer
	authorizer := p.getAuthorizer()
	if authorizer == nil {
		return nil, forbidden("Authorizer not available")
	}

	// our request must not have any sanIPs or hostnames
	if err := policy.CheckPreConditions(confirmation); err != nil {
		log.Error().Msg(err.Error())
		return nil, err
	}

	// validate san URI
	if !policy.ValidateSanURI(confirmation.Attribute(core.AttrSanURI)) {
		return nil, forbidden("Unable to validate certificate request sanURI values")
	}

	// we need to validate the token which is our attestation data for the
	// service requesting a certificate
	if confirmation.AttestationData == "" {
		return nil, forbidden("Jenkins ID Token must be provided")
	}

	claims, err := p.validator.Verify(confirmation.AttestationData)
	if err != nil {
		return nil, forbidden("Unable to validate Certificate Request with the provided ID Token: " + err.Error())
	}

	gate := authz.NewGate(authorizer)
	if err := gate.Authorize(ctx, confirmation.Domain, confirmation.Service, claims.Subject); err != nil {
		return nil, forbidden("Unable to validate Certificate Request with the provided ID Token: " + err.Error())
	}

	// validate the certificate san DNS names
	if _, ok := policy.ValidateCertRequestSanDNSNames(confirmation, p.cfg.DNSSuffixes); !ok {
		return nil, forbidden("Unable to validate certificate request sanDNS entries")
	}

	// certificates for this workload class cannot be refreshed and can
	// only be used by clients, not servers
	confirmation.Attributes = map[string]string{
		core.AttrCertRefresh:    "false",
		core.AttrCertUsage:      core.CertUsageClient,
		core.AttrCertExpiryTime: strconv.FormatInt(p.cfg.CertExpiryMinutes, 10),
	}
	return confirmation, nil
}

// RefreshInstance always rejects: every certificate requires a fresh token
// validation.
func (p *Provider) RefreshInstance(_ context.Context, _ *core.InstanceConfirmation) (*core.InstanceConfirmation, error) {
	return nil, forbidden("Jenkins X.509 certificates cannot be refreshed")
}
