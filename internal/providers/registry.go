package providers

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Factory creates a source from configuration.
type Factory func(ctx context.Context, cfg Config) (SecretSource, error)

// Registry maps provider types to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a registry with the built-in sources.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
	}

	r.RegisterFactory(TypeSecretsManager, func(ctx context.Context, cfg Config) (SecretSource, error) {
		return NewAWSSecretsManagerSource(ctx, cfg)
	})
	r.RegisterFactory(TypeSSM, func(ctx context.Context, cfg Config) (SecretSource, error) {
		return NewAWSSSMSource(ctx, cfg)
	})
	r.RegisterFactory(TypeGCPSecretManager, func(ctx context.Context, cfg Config) (SecretSource, error) {
		return NewGCPSecretManagerSource(ctx, cfg)
	})
	r.RegisterFactory(TypeVault, func(ctx context.Context, cfg Config) (SecretSource, error) {
		return NewVaultSource(cfg)
	})

	return r
}

// RegisterFactory registers a factory for a provider type, replacing any existing one.
func (r *Registry) RegisterFactory(providerType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[providerType] = factory
}

// Create builds the source for providerType.
func (r *Registry) Create(ctx context.Context, providerType string, cfg Config) (SecretSource, error) {
	r.mu.RLock()
	factory, exists := r.factories[providerType]
	r.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("unknown provider type: %s", providerType)
	}
	return factory(ctx, cfg)
}

// SupportedTypes returns the registered provider types, sorted.
func (r *Registry) SupportedTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for providerType := range r.factories {
		types = append(types, providerType)
	}
	sort.Strings(types)
	return types
}

// IsSupported checks if a provider type is supported
func (r *Registry) IsSupported(providerType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[providerType]
	return exists
}
