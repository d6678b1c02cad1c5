// Package main is the entry point for the MindBridge router.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/harbz07/mindbridge-router/config"
	"github.com/harbz07/mindbridge-router/internal/llmclient"
	"github.com/harbz07/mindbridge-router/internal/observability"
	"github.com/harbz07/mindbridge-router/internal/providers"
	"github.com/harbz07/mindbridge-router/internal/server"
	"github.com/harbz07/mindbridge-router/internal/version"

	// Adapter packages register themselves with the factory via init().
	_ "github.com/harbz07/mindbridge-router/internal/providers/anthropic"
	_ "github.com/harbz07/mindbridge-router/internal/providers/google"
	_ "github.com/harbz07/mindbridge-router/internal/providers/openai"
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version information")
	flag.Parse()

	if *versionFlag {
		fmt.Println("mindbridge-router " + version.Version)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	slog.Info("starting mindbridge-router",
		"version", version.Version,
		"provider_types", providers.ListRegistered(),
	)

	if len(cfg.Providers) == 0 {
		slog.Error("at least one provider must be configured")
		os.Exit(1)
	}

	var hooks llmclient.Hooks
	if cfg.Metrics.Enabled {
		hooks = observability.NewPrometheusHooks()
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	}

	registry, err := providers.Init(cfg, providers.Options{
		Hooks:           hooks,
		UpstreamTimeout: cfg.Server.UpstreamTimeout,
	})
	if err != nil {
		slog.Error("failed to initialize providers", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = registry.Close() //nolint:errcheck
	}()

	slog.Info("providers registered", "tags", registry.Tags())

	if cfg.Server.APIKey == "" {
		slog.Warn("MINDBRIDGE_API_KEY not set, requests are unauthenticated")
	} else {
		slog.Info("authentication enabled")
	}

	srv := server.New(registry, cfg, logger)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	slog.Info("listening", "address", addr)

	if err := srv.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
		} else {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}
}

// newLogger builds the process logger: colorized console output in dev,
// JSON everywhere else.
func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.Server.Dev {
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
