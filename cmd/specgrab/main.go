package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/use-agent/specgrab/api"
	"github.com/use-agent/specgrab/api/handler"
	"github.com/use-agent/specgrab/browser"
	"github.com/use-agent/specgrab/cache"
	"github.com/use-agent/specgrab/config"
	"github.com/use-agent/specgrab/diagnostics"
	"github.com/use-agent/specgrab/dom"
	"github.com/use-agent/specgrab/engine"
	"github.com/use-agent/specgrab/extractor"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("specgrab starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"fetchMode", cfg.Extraction.FetchMode,
		"urlTemplate", cfg.Extraction.URLTemplate,
	)

	// ── 3. Build the extraction pipeline ────────────────────────────
	x, err := newExtractor(cfg)
	if err != nil {
		slog.Error("failed to initialise extractor", "error", err)
		os.Exit(1)
	}

	// ── 4. Setup router ─────────────────────────────────────────────
	deps := handler.ExtractDeps{
		Extractor: x,
		Gate:      handler.NewGate(),
		Cache:     cache.New(cfg.Cache.MaxEntries),
		FetchMode: cfg.Extraction.FetchMode,
		Webhook:   cfg.Webhook,
	}
	router := api.NewRouter(cfg, deps, time.Now())

	// ── 5. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 6. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// An in-flight extraction may still be settling; give it the
	// navigation timeout plus a margin.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Extraction.NavigationTimeout+10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}
	slog.Info("specgrab stopped")
}

// newExtractor wires the launcher for the configured fetch mode, the
// diagnostics store and the default selectors.
func newExtractor(cfg *config.Config) (*extractor.Extractor, error) {
	launcher, err := newLauncher(cfg)
	if err != nil {
		return nil, err
	}

	var store diagnostics.Store
	if cfg.Extraction.DiagnosticsDir != "" {
		store = diagnostics.DirStore{Dir: cfg.Extraction.DiagnosticsDir}
	}

	x := extractor.New(launcher, store, extractor.DefaultSelectors(), extractor.Options{
		URLTemplate:       cfg.Extraction.URLTemplate,
		NavigationTimeout: cfg.Extraction.NavigationTimeout,
		KeySelector:       cfg.Extraction.KeySelector,
		DisclosureSettle:  cfg.Extraction.DisclosureSettle,
		ImageSettle:       cfg.Extraction.ImageSettle,
	})
	if _, err := x.TargetURL("sample"); err != nil {
		return nil, fmt.Errorf("SPECGRAB_URL_TEMPLATE: %w", err)
	}
	return x, nil
}

func newLauncher(cfg *config.Config) (dom.Launcher, error) {
	switch cfg.Extraction.FetchMode {
	case "browser", "":
		return browser.NewLauncher(cfg.Browser), nil
	case "static":
		return engine.NewStaticLauncher(engine.NewHTTPEngine(cfg.Browser.UserAgent, cfg.Browser.AcceptLanguage)), nil
	default:
		return nil, fmt.Errorf("unknown fetch mode %q (want browser or static)", cfg.Extraction.FetchMode)
	}
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(h))
}
