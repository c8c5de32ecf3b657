package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ctyano/athenz-auth-core/internal/authz"
	"github.com/ctyano/athenz-auth-core/internal/cliconfig"
	"github.com/ctyano/athenz-auth-core/internal/config"
	"github.com/ctyano/athenz-auth-core/internal/core"
	"github.com/ctyano/athenz-auth-core/internal/provider"
	"github.com/ctyano/athenz-auth-core/pkg/client"
)

type Factory struct {
	// RemoteAddr is the address of the attestation server to connect to.
	RemoteAddr string

	// Command-specific flags
	ConfigPath string // contains the server configuration => providers, authorizer and rules
}

func NewFactory() *Factory {
	return &Factory{}
}

// GetClient returns an authenticated HTTP client for remote operations.
func (f *Factory) GetClient() (*client.Client, error) {
	server := f.RemoteAddr // prio 1: command-line flag
	if server == "" {
		server = viper.GetString(ServerAddrKey) // prio 2: config/env
	}
	if server == "" {
		return nil, fmt.Errorf("server address not configured (use --server or set AUTHCORE_ADDR)")
	}

	var token string
	if cfg, err := cliconfig.Load(); err == nil {
		if cred, err := cfg.GetCredential(server); err == nil { // token prio 1: saved credential
			token = cred.Token
		}
	}

	if envToken := os.Getenv("AUTHCORE_TOKEN"); envToken != "" { // token prio 2: env var
		token = envToken
	}

	return client.New(server, client.WithAuthToken(token)), nil
}

func (f *Factory) LoadConfig() (*config.Config, error) {
	if f.ConfigPath == "" {
		return nil, fmt.Errorf("config file not specified (use --config)")
	}
	return config.Load(f.ConfigPath)
}

// GetLocalProviders builds the configured providers with their authorizer
// attached, for offline operations that do not need a running server.
func (f *Factory) GetLocalProviders(ctx context.Context) (map[string]core.Provider, error) {
	cfg, err := f.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	providers, err := provider.BuildRegistry(ctx, cfg.Providers)
	if err != nil {
		return nil, fmt.Errorf("building provider registry: %w", err)
	}

	ruleManager := authz.NewManager(cfg.Rules)
	authorizer, err := authz.Build(cfg.Authorizer, ruleManager)
	if err != nil {
		return nil, fmt.Errorf("building authorizer: %w", err)
	}
	for _, p := range providers {
		p.SetAuthorizer(authorizer)
	}

	return providers, nil
}

func (f *Factory) bindConfigFlag(flags *pflag.FlagSet) {
	flags.StringVarP(&f.ConfigPath, "config", "f", "", "The server config file to use")
}
