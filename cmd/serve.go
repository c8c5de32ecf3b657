package cmd

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ctyano/athenz-auth-core/internal/api"
	"github.com/ctyano/athenz-auth-core/internal/audit"
	"github.com/ctyano/athenz-auth-core/internal/authz"
	"github.com/ctyano/athenz-auth-core/internal/config"
	"github.com/ctyano/athenz-auth-core/internal/core"
	"github.com/ctyano/athenz-auth-core/internal/keys"
	"github.com/ctyano/athenz-auth-core/internal/logging"
	"github.com/ctyano/athenz-auth-core/internal/provider"
	"github.com/ctyano/athenz-auth-core/internal/source"
	"github.com/ctyano/athenz-auth-core/internal/tasks"
)

// keyRefresher is implemented by providers that hold a refreshable JWKS
// key set.
type keyRefresher interface {
	PrimaryResolver() *keys.Resolver
	RefreshInterval() time.Duration
}

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the instance attestation server",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		cfg, err := f.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cfg.Server.Addr != "" && !cmd.Flags().Changed("addr") {
			addr = cfg.Server.Addr
		}

		log.Info().Msgf("Initializing providers (%v available)...", provider.Schemes())
		providers, err := provider.BuildRegistry(cmd.Context(), cfg.Providers)
		if err != nil {
			return fmt.Errorf("building provider registry: %w", err)
		}

		log.Info().Msg("Initializing authorizer...")
		ruleManager := authz.NewManager(cfg.Rules)
		authorizer, err := authz.Build(cfg.Authorizer, ruleManager)
		if err != nil {
			return fmt.Errorf("building authorizer: %w", err)
		}
		for name, p := range providers {
			p.SetAuthorizer(authorizer)
			log.Debug().Msgf("attached authorizer to provider %q", name)
		}

		auditor, err := audit.Build(cfg.Audit)
		if err != nil {
			return fmt.Errorf("building auditor: %w", err)
		}
		defer func() {
			if err := auditor.Close(); err != nil {
				log.Error().Err(err).Msg("closing auditor")
			}
		}()

		taskManager := tasks.NewManager()
		registerKeyRefreshTasks(taskManager, providers)
		registerConfigReloadTask(taskManager, f.ConfigPath, providers, ruleManager)
		if err := registerPolicySyncTask(taskManager, cfg, ruleManager); err != nil {
			return err
		}

		signingKey, err := adminSigningKey(cfg)
		if err != nil {
			return err
		}

		srv := api.NewServer(taskManager, providers, auditor)

		server := &http.Server{
			Addr:    addr,
			Handler: srv.Routes(signingKey),
		}

		go func() {
			log.Info().Msgf("Starting server on %s...", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Server crashed")
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Info().Msg("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}

		log.Info().Msg("Server exited")
		return nil
	},
}

// registerKeyRefreshTasks schedules a periodic JWKS refresh for every
// provider that resolves keys from a remote endpoint.
func registerKeyRefreshTasks(manager *tasks.Manager, providers map[string]core.Provider) {
	for name, p := range providers {
		refresher, ok := p.(keyRefresher)
		if !ok || refresher.RefreshInterval() <= 0 {
			continue
		}

		resolver := refresher.PrimaryResolver()
		manager.Register(name+"-jwks-refresh", refresher.RefreshInterval(),
			func(ctx context.Context, logger logging.InternalLogger) error {
				if err := resolver.Refresh(ctx); err != nil {
					return err
				}
				logger.Info("Refreshed signing keys, %d known key ids", len(resolver.Keys()))
				return nil
			})
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "address to listen on")
	f.bindConfigFlag(serveCmd.Flags())
}

// offsetReloader is implemented by providers whose token freshness window
// can be changed at runtime.
type offsetReloader interface {
	BootTimeOffset() *config.DynamicLong
}

// registerConfigReloadTask registers an on-demand task that re-reads the
// config file and applies the reloadable parts: the authorization rule set
// and each provider's boot time offset. Structural settings (providers,
// listen address) still require a restart.
func registerConfigReloadTask(manager *tasks.Manager, path string, providers map[string]core.Provider, ruleManager *authz.Manager) {
	manager.Register("config-reload", 0, func(ctx context.Context, logger logging.InternalLogger) error {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}

		ruleManager.Update(cfg.Rules)
		logger.Info("Applied %d authorization rules", len(cfg.Rules))

		for _, pc := range cfg.Providers {
			p, ok := providers[pc.Name]
			if !ok {
				continue
			}
			reloader, ok := p.(offsetReloader)
			if !ok {
				continue
			}
			if v, ok := lookupInt64(pc.Config, "boot_time_offset_seconds"); ok && v > 0 {
				reloader.BootTimeOffset().Set(v)
				logger.Info("Provider %q boot time offset is now %ds", pc.Name, v)
			}
		}
		return nil
	})
}

// lookupInt64 reads a numeric value from a decoded YAML map, which may
// carry it as any integer or float type.
func lookupInt64(m map[string]any, key string) (int64, bool) {
	switch v := m[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case uint64:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

func registerPolicySyncTask(manager *tasks.Manager, cfg *config.Config, ruleManager *authz.Manager) error {
	if cfg.PolicySource == nil || cfg.PolicySource.GitHub == nil {
		return nil
	}

	fetcher, err := source.NewGitHubFetcher(*cfg.PolicySource.GitHub)
	if err != nil {
		return fmt.Errorf("building policy source: %w", err)
	}

	interval := cfg.PolicySource.Sync.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	manager.Register("policy-sync", interval, func(ctx context.Context, logger logging.InternalLogger) error {
		rules, err := fetcher.Fetch(ctx, logger)
		if err != nil {
			return err
		}
		ruleManager.Update(rules)
		logger.Info("Applied %d authorization rules", len(rules))
		return nil
	})
	return nil
}

func adminSigningKey(cfg *config.Config) ([]byte, error) {
	if cfg.Server.AdminSigningKey != "" {
		return []byte(cfg.Server.AdminSigningKey), nil
	}
	// without a configured key, admin endpoints are only reachable with
	// tokens signed by this random, process-local key
	log.Warn().Msg("no admin signing key configured, generating an ephemeral one")
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating signing key: %w", err)
	}
	return key, nil
}
