// Package config provides configuration loading for the gateway.
//
// Configuration comes from the environment (optionally seeded from a .env
// file) plus an optional YAML providers file for custom adapters. The
// result is an immutable Config constructed once at startup and passed by
// reference into the registry; nothing reads ambient state afterwards.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied when the environment does not override them.
const (
	DefaultPort              = "8080"
	DefaultBodySizeLimit     = int64(10 * 1024 * 1024)
	DefaultUpstreamTimeout   = 600 * time.Second
	DefaultStreamIdleTimeout = 60 * time.Second
	DefaultModelCacheTTL     = 5 * time.Minute
)

// Config holds the full application configuration.
type Config struct {
	Server    ServerConfig
	Providers []ProviderConfig
	Cache     CacheConfig
	Metrics   MetricsConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string
	// APIKey is the single gateway secret callers must present as a
	// bearer token on the completion and model-listing endpoints.
	APIKey string
	// CORSOrigins is the allow-list applied to every response.
	CORSOrigins   []string
	BodySizeLimit int64
	// UpstreamTimeout bounds every upstream provider call.
	UpstreamTimeout time.Duration
	// StreamIdleTimeout bounds the silence between streamed upstream
	// chunks before the gateway terminates the stream with an error event.
	StreamIdleTimeout time.Duration
	// Dev enables the human-readable console log handler.
	Dev bool
}

// ProviderConfig describes one adapter to register.
type ProviderConfig struct {
	Tag     string `yaml:"tag"`
	Type    string `yaml:"type"`
	APIKey  string `yaml:"-"`
	BaseURL string `yaml:"base_url"`
	// APIKeyEnv names the environment variable holding the credential,
	// used by YAML-declared providers so keys never live in the file.
	APIKeyEnv string `yaml:"api_key_env"`
}

// CacheConfig selects the model-list cache backend.
type CacheConfig struct {
	// Type is "local" (file, default) or "redis".
	Type string
	// Path is the local cache file location.
	Path  string
	TTL   time.Duration
	Redis RedisConfig
}

// RedisConfig holds redis cache settings.
type RedisConfig struct {
	URL string
	Key string
}

// MetricsConfig controls the prometheus endpoint.
type MetricsConfig struct {
	Enabled  bool
	Endpoint string
}

// providersFile is the YAML shape of an optional providers file.
type providersFile struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// Load reads configuration from .env (if present) and the environment,
// then merges providers from MINDBRIDGE_PROVIDERS_FILE if set.
func Load() (*Config, error) {
	// Best-effort; absence of a .env file is the normal production case.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:              envOr("PORT", DefaultPort),
			APIKey:            os.Getenv("MINDBRIDGE_API_KEY"),
			CORSOrigins:       splitList(envOr("CORS_ORIGINS", "*")),
			BodySizeLimit:     envInt64("MINDBRIDGE_BODY_LIMIT", DefaultBodySizeLimit),
			UpstreamTimeout:   envDuration("MINDBRIDGE_UPSTREAM_TIMEOUT", DefaultUpstreamTimeout),
			StreamIdleTimeout: envDuration("MINDBRIDGE_STREAM_IDLE_TIMEOUT", DefaultStreamIdleTimeout),
			Dev:               os.Getenv("MINDBRIDGE_ENV") == "dev",
		},
		Cache: CacheConfig{
			Type: envOr("MINDBRIDGE_CACHE", "local"),
			Path: envOr("MINDBRIDGE_CACHE_FILE", ".cache/models.json"),
			TTL:  envDuration("MINDBRIDGE_MODEL_CACHE_TTL", DefaultModelCacheTTL),
			Redis: RedisConfig{
				URL: os.Getenv("REDIS_URL"),
				Key: envOr("MINDBRIDGE_CACHE_KEY", "mindbridge:models"),
			},
		},
		Metrics: MetricsConfig{
			Enabled:  envBool("MINDBRIDGE_METRICS", false),
			Endpoint: envOr("MINDBRIDGE_METRICS_ENDPOINT", "/metrics"),
		},
	}

	cfg.Providers = envProviders()

	if file := os.Getenv("MINDBRIDGE_PROVIDERS_FILE"); file != "" {
		extra, err := loadProvidersFile(file)
		if err != nil {
			return nil, err
		}
		cfg.Providers = mergeProviders(cfg.Providers, extra)
	}

	return cfg, nil
}

// envProviders builds the built-in providers from their conventional
// credential variables. A provider with no credential is simply absent.
func envProviders() []ProviderConfig {
	var providers []ProviderConfig
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		providers = append(providers, ProviderConfig{
			Tag:     "openai",
			Type:    "openai",
			APIKey:  key,
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
		})
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		providers = append(providers, ProviderConfig{
			Tag:     "anthropic",
			Type:    "anthropic",
			APIKey:  key,
			BaseURL: os.Getenv("ANTHROPIC_BASE_URL"),
		})
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		providers = append(providers, ProviderConfig{
			Tag:     "google",
			Type:    "google",
			APIKey:  key,
			BaseURL: os.Getenv("GOOGLE_BASE_URL"),
		})
	}
	return providers
}

// loadProvidersFile reads a YAML providers file and resolves each entry's
// credential from the environment variable it names.
func loadProvidersFile(path string) ([]ProviderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read providers file: %w", err)
	}

	var file providersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse providers file: %w", err)
	}

	for i := range file.Providers {
		p := &file.Providers[i]
		if p.Tag == "" {
			return nil, fmt.Errorf("providers file entry %d: tag is required", i)
		}
		if p.Type == "" {
			p.Type = p.Tag
		}
		if p.APIKeyEnv != "" {
			p.APIKey = os.Getenv(p.APIKeyEnv)
		}
		if p.APIKey == "" {
			return nil, fmt.Errorf("provider '%s': no credential (set %s)", p.Tag, p.APIKeyEnv)
		}
	}
	return file.Providers, nil
}

// mergeProviders overlays file-declared providers on the env-declared set.
// A file entry with an existing tag replaces the env entry.
func mergeProviders(base, overlay []ProviderConfig) []ProviderConfig {
	merged := make([]ProviderConfig, 0, len(base)+len(overlay))
	replaced := make(map[string]bool, len(overlay))
	for _, p := range overlay {
		replaced[p.Tag] = true
	}
	for _, p := range base {
		if !replaced[p.Tag] {
			merged = append(merged, p)
		}
	}
	return append(merged, overlay...)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// envDuration accepts plain integers (seconds) or Go duration strings.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	return def
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
