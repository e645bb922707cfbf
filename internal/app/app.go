// Package app provides the top-level lifecycle of the pricer. It wires the
// adapters the configured mode needs, starts the mode's goroutines and runs
// one pricing pass over the configured input.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alanyoungcy/bookpricer/internal/config"
	"github.com/alanyoungcy/bookpricer/internal/domain"
)

// IO carries the process streams. Reports go to Stdout; diagnostics go to
// Stderr unless the configuration redirects them.
type IO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	io      IO
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, streams IO, logger *slog.Logger) *App {
	if streams.Stdin == nil {
		streams.Stdin = os.Stdin
	}
	if streams.Stdout == nil {
		streams.Stdout = os.Stdout
	}
	if streams.Stderr == nil {
		streams.Stderr = os.Stderr
	}
	return &App{
		cfg:    cfg,
		io:     streams,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires the dependencies, selects the operating mode and blocks until the
// run over the configured input is complete or ctx is cancelled. Cleanup
// happens in Close.
func (a *App) Run(ctx context.Context) (domain.Run, error) {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("instrument", a.cfg.Pricer.Instrument),
		slog.Int64("target_size", a.cfg.Pricer.TargetSize),
		slog.String("input", a.cfg.Pricer.Input),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return domain.Run{}, fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	diag, closeDiag, err := openDiagnostics(a.cfg.Pricer.Diagnostics, a.io.Stderr)
	if err != nil {
		return domain.Run{}, fmt.Errorf("app: %w", err)
	}
	a.closers = append(a.closers, closeDiag)

	switch strings.ToLower(a.cfg.Mode) {
	case "stream":
		return a.StreamMode(ctx, deps, diag)
	case "publish", "full":
		return a.ServeMode(ctx, deps, diag)
	default:
		return domain.Run{}, fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
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

// openDiagnostics resolves the diagnostics setting to a writer.
func openDiagnostics(target string, stderr io.Writer) (io.Writer, func(), error) {
	switch target {
	case "", "stderr":
		return stderr, func() {}, nil
	case "discard":
		return io.Discard, func() {}, nil
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open diagnostics %s: %w", target, err)
	}
	return f, func() { _ = f.Close() }, nil
}
