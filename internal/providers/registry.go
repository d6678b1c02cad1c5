package providers

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/harbz07/mindbridge-router/internal/cache"
	"github.com/harbz07/mindbridge-router/internal/core"
)

// Registry maps provider tags to adapters. It is built once at startup and
// never mutated afterwards, so concurrent reads need no locking.
type Registry struct {
	adapters map[string]core.Provider
	tags     []string // sorted

	// modelCache holds the last model enumeration; maxAge bounds how long
	// it is served before upstreams are asked again.
	modelCache cache.Cache
	maxAge     time.Duration
}

// NewRegistry builds a registry from the given adapters. Tags must be
// unique; at least one adapter is required. modelCache may be nil to
// disable model-list caching.
func NewRegistry(adapters []core.Provider, modelCache cache.Cache, maxAge time.Duration) (*Registry, error) {
	if len(adapters) == 0 {
		return nil, errNoProviders
	}

	byTag := make(map[string]core.Provider, len(adapters))
	tags := make([]string, 0, len(adapters))
	for _, a := range adapters {
		if _, dup := byTag[a.Tag()]; dup {
			return nil, errDuplicateTag(a.Tag())
		}
		byTag[a.Tag()] = a
		tags = append(tags, a.Tag())
	}
	sort.Strings(tags)

	return &Registry{
		adapters:   byTag,
		tags:       tags,
		modelCache: modelCache,
		maxAge:     maxAge,
	}, nil
}

// Resolve returns the adapter registered under the given tag. The match is
// exact and case-sensitive.
func (r *Registry) Resolve(tag string) (core.Provider, error) {
	if adapter, ok := r.adapters[tag]; ok {
		return adapter, nil
	}
	return nil, core.NewUnknownProviderError(tag, r.tags)
}

// Tags returns the sorted list of registered provider tags.
func (r *Registry) Tags() []string {
	tags := make([]string, len(r.tags))
	copy(tags, r.tags)
	return tags
}

// Descriptors returns the immutable descriptors of all adapters, sorted by tag.
func (r *Registry) Descriptors() []core.Descriptor {
	descriptors := make([]core.Descriptor, 0, len(r.tags))
	for _, tag := range r.tags {
		descriptors = append(descriptors, r.adapters[tag].Descriptor())
	}
	return descriptors
}

// ListModels enumerates the models of every registered adapter in the
// external identifier form ("mindbridge:tag/name"). A fresh cached
// enumeration is served when available; otherwise each adapter is asked,
// falling back to its static catalog when the upstream fetch fails, so the
// listing always covers exactly the set of registered adapters.
func (r *Registry) ListModels(ctx context.Context) *core.ModelsResponse {
	if cached := r.loadCached(ctx); cached != nil {
		return &core.ModelsResponse{Object: "list", Data: cached}
	}

	models := r.enumerate(ctx)
	r.storeCached(ctx, models)
	return &core.ModelsResponse{Object: "list", Data: models}
}

// ModelsByProvider returns each registered tag's exposed model names
// (unprefixed), for the debug /providers listing.
func (r *Registry) ModelsByProvider(ctx context.Context) map[string][]string {
	out := make(map[string][]string, len(r.tags))
	for _, tag := range r.tags {
		adapter := r.adapters[tag]
		models, err := adapter.Models(ctx)
		if err != nil {
			slog.Warn("falling back to static model catalog", "provider", tag, "error", err)
			out[tag] = append([]string(nil), adapter.Descriptor().Catalog...)
			continue
		}
		names := make([]string, 0, len(models))
		for _, m := range models {
			names = append(names, m.ID)
		}
		out[tag] = names
	}
	return out
}

// enumerate asks every adapter for its models and rewrites them into the
// external identifier form.
func (r *Registry) enumerate(ctx context.Context) []core.Model {
	now := time.Now().Unix()
	var models []core.Model

	for _, tag := range r.tags {
		adapter := r.adapters[tag]
		upstream, err := adapter.Models(ctx)
		if err != nil {
			slog.Warn("falling back to static model catalog", "provider", tag, "error", err)
			upstream = catalogModels(adapter.Descriptor())
		}

		for _, m := range upstream {
			created := m.Created
			if created == 0 {
				created = now
			}
			models = append(models, core.Model{
				ID:      core.ExternalModelID(tag, m.ID),
				Object:  "model",
				OwnedBy: tag,
				Created: created,
			})
		}
	}
	return models
}

// catalogModels converts a descriptor's static catalog into model entries.
func catalogModels(d core.Descriptor) []core.Model {
	now := time.Now().Unix()
	models := make([]core.Model, 0, len(d.Catalog))
	for _, id := range d.Catalog {
		models = append(models, core.Model{
			ID:      id,
			Object:  "model",
			OwnedBy: d.Tag,
			Created: now,
		})
	}
	return models
}

// loadCached returns the cached enumeration if it is fresh and covers
// exactly the registered tag set; otherwise nil, forcing a re-enumeration.
func (r *Registry) loadCached(ctx context.Context) []core.Model {
	if r.modelCache == nil {
		return nil
	}

	list, err := r.modelCache.Load(ctx)
	if err != nil {
		slog.Warn("failed to load model cache", "error", err)
		return nil
	}
	if list == nil || time.Since(list.UpdatedAt) > r.maxAge {
		return nil
	}

	seen := make(map[string]bool, len(r.tags))
	models := make([]core.Model, 0, len(list.Models))
	for _, m := range list.Models {
		id, err := core.ParseModelID(m.ID)
		if err != nil {
			return nil
		}
		if _, ok := r.adapters[id.Provider]; !ok {
			// Stale entry from a provider that is no longer configured.
			return nil
		}
		seen[id.Provider] = true
		models = append(models, m)
	}
	if len(seen) != len(r.tags) {
		return nil
	}
	return models
}

func (r *Registry) storeCached(ctx context.Context, models []core.Model) {
	if r.modelCache == nil {
		return
	}
	err := r.modelCache.Store(ctx, &cache.ModelList{
		UpdatedAt: time.Now().UTC(),
		Models:    models,
	})
	if err != nil {
		slog.Warn("failed to store model cache", "error", err)
	}
}

// Close releases the model cache backend.
func (r *Registry) Close() error {
	if r.modelCache != nil {
		return r.modelCache.Close()
	}
	return nil
}
