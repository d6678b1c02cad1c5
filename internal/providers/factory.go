// Package providers provides the adapter factory and the provider registry.
package providers

import (
	"fmt"
	"sort"
	"time"

	"github.com/harbz07/mindbridge-router/config"
	"github.com/harbz07/mindbridge-router/internal/core"
	"github.com/harbz07/mindbridge-router/internal/llmclient"
)

// Options carries cross-cutting dependencies handed to every adapter.
type Options struct {
	// Hooks receives per-upstream-request observations. Optional.
	Hooks llmclient.Hooks
	// UpstreamTimeout bounds every upstream call.
	UpstreamTimeout time.Duration
}

// Builder creates a provider adapter from configuration.
type Builder func(cfg config.ProviderConfig, opts Options) (core.Provider, error)

// builders holds all registered adapter builders, keyed by adapter type.
// Populated by init() functions in the adapter packages, so the set of
// provider types is closed at build time.
var builders = make(map[string]Builder)

// Register makes an adapter type available to the factory. It should be
// called from init() in the adapter's package.
func Register(providerType string, builder Builder) {
	builders[providerType] = builder
}

// Create instantiates an adapter based on configuration.
func Create(cfg config.ProviderConfig, opts Options) (core.Provider, error) {
	builder, ok := builders[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
	return builder(cfg, opts)
}

// ListRegistered returns all registered adapter types, sorted.
func ListRegistered() []string {
	types := make([]string, 0, len(builders))
	for t := range builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
