// Package cache provides pluggable storage for the enumerated model list,
// so /v1/models does not hit every upstream on every call. Request and
// response payloads are never cached.
package cache

import (
	"context"
	"time"

	"github.com/harbz07/mindbridge-router/internal/core"
)

// ModelList is the cached model enumeration.
type ModelList struct {
	UpdatedAt time.Time    `json:"updated_at"`
	Models    []core.Model `json:"models"`
}

// Cache stores and retrieves the model list. Implementations must be safe
// for concurrent use.
type Cache interface {
	// Load returns the cached list, or (nil, nil) when nothing is cached.
	Load(ctx context.Context) (*ModelList, error)

	// Store replaces the cached list.
	Store(ctx context.Context, list *ModelList) error

	// Close releases backend resources.
	Close() error
}
