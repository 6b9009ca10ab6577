// Command cfharvest opens one URL in a headless browser and writes the
// Turnstile widget parameters and vendor cookies it finds to a JSON file.
//
//	cfharvest <url>
//
// Everything else is configured through CFHARVEST_* environment variables.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/cfharvest/config"
	"github.com/use-agent/cfharvest/harvest"
	"github.com/use-agent/cfharvest/models"
	"github.com/use-agent/cfharvest/webhook"
)

const banner = `cfharvest: Turnstile parameter harvester
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "usage: cfharvest <url>")
		return 1
	}

	// ── 1. Configuration & logging ──────────────────────────────────
	cfg := config.Load()
	slog.SetDefault(cfg.Log.NewLogger(stderr))

	req := &models.ExtractRequest{URL: args[0]}
	if err := req.Validate(); err != nil {
		fmt.Fprintf(stderr, "cfharvest: %v\n", err)
		return 1
	}

	fmt.Fprint(stdout, banner)
	fmt.Fprintf(stdout, "target: %s (mode %s)\n", req.URL, cfg.Extractor.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── 2. Launch browser ───────────────────────────────────────────
	hv, err := harvest.NewHarvester(cfg.Browser, cfg.Extractor)
	if err != nil {
		slog.Error("failed to launch browser", "error", err)
		return 1
	}
	defer hv.Close()

	// ── 3. Extract ──────────────────────────────────────────────────
	report, err := hv.Extract(ctx, req)
	if err != nil {
		slog.Error("extraction failed", "url", req.URL, "error", err)
		notify(cfg.Webhook, webhook.NewEvent(webhook.EventExtractionFailed, req.URL, errorDetail(err)))
		return 1
	}

	// ── 4. Persist ──────────────────────────────────────────────────
	path := cfg.Extractor.OutputPath
	if err := harvest.WriteResult(path, report.Result); err != nil {
		slog.Error("failed to write result", "path", path, "error", err)
		return 1
	}

	printSummary(stdout, report)
	notify(cfg.Webhook, webhook.NewEvent(webhook.EventExtractionCompleted, req.URL, report.Result))

	fmt.Fprintf(stdout, "all extracted → %s\n", path)
	return 0
}

func printSummary(w io.Writer, report *harvest.Report) {
	r := report.Result
	source := report.SitekeySource
	if source == "" {
		source = "none"
	}
	fmt.Fprintf(w, "sitekey:     %s (via %s)\n", orDash(r.Sitekey), source)
	fmt.Fprintf(w, "cData:       %s\n", orDash(r.CData))
	fmt.Fprintf(w, "action:      %s\n", orDash(r.Action))
	fmt.Fprintf(w, "chlPageData: %s\n", orDash(r.ChlPageData))
	fmt.Fprintf(w, "cookies:     %d\n", len(r.Cookies))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func errorDetail(err error) *models.ErrorDetail {
	if ee, ok := err.(*models.ExtractError); ok {
		return ee.ToDetail()
	}
	return &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()}
}

// notify delivers ev when a webhook is configured. Failures are logged only.
func notify(cfg config.WebhookConfig, ev *webhook.Event) {
	if cfg.URL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := webhook.Deliver(ctx, cfg.URL, cfg.Secret, ev); err != nil {
		slog.Warn("webhook delivery failed", "url", cfg.URL, "error", err)
	}
}
