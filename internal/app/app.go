// Package app provides the top-level application lifecycle of the
// marketplace daemon. It wires together the state backend, caches, blob
// storage, event sinks and the API server, and starts the goroutines the
// selected operating mode needs.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/nftmart/internal/config"
)

// Operating modes.
const (
	ModeServe   = "serve"
	ModeArchive = "archive"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the goroutines of mode and blocks until
// the context is cancelled or the mode finishes. An empty mode means serve.
func (a *App) Run(ctx context.Context, mode string) error {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = ModeServe
	}
	if mode != ModeServe && mode != ModeArchive {
		return fmt.Errorf("app: unsupported mode %q", mode)
	}

	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", mode),
		slog.String("backend", a.cfg.Backend.Kind),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch mode {
	case ModeArchive:
		return a.ArchiveMode(ctx, deps)
	default:
		return a.ServeMode(ctx, deps)
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
