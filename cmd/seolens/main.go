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

	"github.com/seolens/seolens/api"
	"github.com/seolens/seolens/audit"
	"github.com/seolens/seolens/checks"
	"github.com/seolens/seolens/config"
	"github.com/seolens/seolens/fetch"
	"github.com/seolens/seolens/pagespeed"
	"github.com/seolens/seolens/serp"
	"github.com/seolens/seolens/store"
)

func main() {
	cfg := config.Load()
	initLogger(cfg.Log)

	if err := run(cfg); err != nil {
		slog.Error("seolens exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("seolens starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"browser", cfg.Browser.Enabled,
		"workers", cfg.Audit.Workers,
	)

	// ── 1. Fetch client (raw HTTP + probes) ─────────────────────────
	client := fetch.NewClient(cfg.Fetch)

	// ── 2. Render browser (optional) ────────────────────────────────
	var br *fetch.Browser
	if cfg.Browser.Enabled {
		b, err := fetch.NewBrowser(cfg.Browser)
		if err != nil {
			// Rendered checks degrade to info results without a browser;
			// the audits themselves keep working.
			slog.Warn("browser launch failed; continuing without rendering", "error", err)
		} else {
			br = b
			defer br.Close()
		}
	}

	// ── 3. Check catalogue and audit engine ─────────────────────────
	links := checks.NewLinkProber(client, cfg.Audit.LinkProbeLimit, cfg.Audit.LinkProbeRPS)
	defer links.Stop()

	deps := checks.Deps{
		Thresholds: cfg.Thresholds,
		Probe:      client,
		Links:      links,
		PageSpeed:  pagespeed.NewClient(cfg.Capabilities.PageSpeedAPIKey, cfg.Capabilities.PageSpeedURL, nil),
		SERP:       serp.NewClient(cfg.Capabilities.SerpAPIKey, cfg.Capabilities.SerpURL, nil),
	}

	reg, err := audit.NewRegistry(checks.Catalog(deps))
	if err != nil {
		return fmt.Errorf("build check registry: %w", err)
	}
	rec, err := audit.NewRecommender()
	if err != nil {
		return fmt.Errorf("load recommendation rules: %w", err)
	}

	var renderer audit.Renderer
	if br != nil {
		renderer = br
	}
	auditor := audit.NewAuditor(reg, rec, client, renderer, cfg.Audit)

	// ── 4. Report store ─────────────────────────────────────────────
	st := store.New(cfg.Store)
	defer st.Stop()

	// ── 5. HTTP server ──────────────────────────────────────────────
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(auditor, st, br, cfg, time.Now()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	// ── 6. Wait for shutdown ────────────────────────────────────────
	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	// Give in-flight audits 10 seconds to finish.
	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(drainCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// Browser, link prober, and store shut down via the defers above.
	slog.Info("seolens stopped")
	return nil
}

// initLogger installs the process-wide slog handler. Level names follow
// slog's own parser ("debug", "info", "warn", "error"); anything
// unparseable falls back to info.
func initLogger(cfg config.LogConfig) {
	level := slog.LevelInfo
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			level = slog.LevelInfo
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
