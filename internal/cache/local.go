package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LocalCache persists the model list to a JSON file. Writes are atomic
// (temp file + rename) so a crashed process never leaves a torn file.
type LocalCache struct {
	path string
}

// NewLocalCache creates a file-backed cache at the given path.
func NewLocalCache(path string) *LocalCache {
	return &LocalCache{path: path}
}

// Load reads the cached model list. A missing file is not an error.
func (c *LocalCache) Load(_ context.Context) (*ModelList, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	var list ModelList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse cache file: %w", err)
	}
	return &list, nil
}

// Store writes the model list atomically.
func (c *LocalCache) Store(_ context.Context, list *ModelList) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}
	return nil
}

// Close is a no-op for the file backend.
func (c *LocalCache) Close() error {
	return nil
}
