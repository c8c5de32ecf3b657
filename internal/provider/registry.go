package provider

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ctyano/athenz-auth-core/internal/config"
	"github.com/ctyano/athenz-auth-core/internal/core"
)

// Factory builds a provider instance from its configuration block.
type Factory func(ctx context.Context, cfg config.ProviderConfig) (core.Provider, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register associates a provider scheme (the config "type" field) with its
// factory. The host owns this registry; providers only implement the
// capability.
func Register(scheme string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[scheme] = factory
}

// Schemes returns the registered provider schemes, sorted.
func Schemes() []string {
	mu.RLock()
	defer mu.RUnlock()
	schemes := make([]string, 0, len(factories))
	for s := range factories {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// BuildRegistry instantiates every configured provider through its
// registered factory.
func BuildRegistry(ctx context.Context, cfgs []config.ProviderConfig) (map[string]core.Provider, error) {
	mu.RLock()
	defer mu.RUnlock()

	registry := make(map[string]core.Provider)
	for _, cfg := range cfgs {
		factory, ok := factories[cfg.Type]
		if !ok {
			return nil, fmt.Errorf("unknown provider type %q for provider %q", cfg.Type, cfg.Name)
		}
		prov, err := factory(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("building %s provider %q: %w", cfg.Type, cfg.Name, err)
		}
		registry[cfg.Name] = prov
	}
	return registry, nil
}
