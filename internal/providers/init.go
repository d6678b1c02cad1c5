package providers

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/harbz07/mindbridge-router/config"
	"github.com/harbz07/mindbridge-router/internal/cache"
	"github.com/harbz07/mindbridge-router/internal/core"
)

var errNoProviders = fmt.Errorf("no providers configured: set at least one provider credential")

func errDuplicateTag(tag string) error {
	return fmt.Errorf("duplicate provider tag: %s", tag)
}

// Init builds the full provider infrastructure from configuration: the
// model-list cache backend, one adapter per configured provider, and the
// immutable registry. The caller must Close() the registry on shutdown.
func Init(cfg *config.Config, opts Options) (*Registry, error) {
	modelCache, err := initCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model cache: %w", err)
	}

	adapters, err := buildAdapters(cfg, opts)
	if err != nil {
		if modelCache != nil {
			modelCache.Close()
		}
		return nil, err
	}

	registry, err := NewRegistry(adapters, modelCache, cfg.Cache.TTL)
	if err != nil {
		if modelCache != nil {
			modelCache.Close()
		}
		return nil, err
	}
	return registry, nil
}

// buildAdapters creates every configured adapter in deterministic (sorted
// by tag) order. A provider whose builder fails aborts startup: a silently
// missing adapter would change which models the gateway claims to serve.
func buildAdapters(cfg *config.Config, opts Options) ([]core.Provider, error) {
	if opts.UpstreamTimeout <= 0 {
		opts.UpstreamTimeout = cfg.Server.UpstreamTimeout
	}

	sorted := make([]config.ProviderConfig, len(cfg.Providers))
	copy(sorted, cfg.Providers)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Tag < sorted[j].Tag })

	adapters := make([]core.Provider, 0, len(sorted))
	for _, pCfg := range sorted {
		adapter, err := Create(pCfg, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize provider '%s': %w", pCfg.Tag, err)
		}
		adapters = append(adapters, adapter)
		slog.Info("provider initialized", "tag", pCfg.Tag, "type", pCfg.Type)
	}
	return adapters, nil
}

// initCache creates the model-list cache backend selected by configuration.
func initCache(cfg *config.Config) (cache.Cache, error) {
	switch cfg.Cache.Type {
	case "redis":
		return cache.NewRedisCache(cache.RedisConfig{
			URL: cfg.Cache.Redis.URL,
			Key: cfg.Cache.Redis.Key,
			TTL: cfg.Cache.TTL,
		})
	case "none":
		return nil, nil
	default: // "local" or unset
		slog.Info("using local model cache", "path", cfg.Cache.Path)
		return cache.NewLocalCache(cfg.Cache.Path), nil
	}
}
