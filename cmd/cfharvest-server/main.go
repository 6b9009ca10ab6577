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

	"github.com/use-agent/cfharvest/api"
	"github.com/use-agent/cfharvest/cache"
	"github.com/use-agent/cfharvest/config"
	"github.com/use-agent/cfharvest/harvest"
	"github.com/use-agent/cfharvest/probe"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	slog.SetDefault(cfg.Log.NewLogger(os.Stdout))
	slog.Info("cfharvest-server starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"extractMode", cfg.Extractor.Mode,
		"maxSessions", cfg.Browser.MaxSessions,
	)
	if cfg.Auth.Enabled && len(cfg.Auth.APIKeys) == 0 {
		slog.Warn("auth enabled but CFHARVEST_API_KEYS is empty; API is open")
	}

	// ── 3. Launch browser ───────────────────────────────────────────
	hv, err := harvest.NewHarvester(cfg.Browser, cfg.Extractor)
	if err != nil {
		slog.Error("failed to launch browser", "error", err)
		os.Exit(1)
	}
	defer hv.Close()

	// ── 4. Probe & cache ────────────────────────────────────────────
	pr := probe.New(cfg.Probe.Timeout)
	cc := cache.New(cfg.Cache.MaxEntries)
	defer cc.Stop()

	// ── 5. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(hv, pr, cfg, cc, time.Now())

	// ── 6. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// An extraction dwells up to 30s; give it time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("cfharvest-server stopped")
}
