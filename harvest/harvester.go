package harvest

import (
	"log/slog"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/use-agent/cfharvest/config"
	"github.com/use-agent/cfharvest/models"
)

// Harvester owns the Chromium process and hands out one incognito session
// per extraction. It is safe for concurrent use.
type Harvester struct {
	browser      *rod.Browser
	browserCfg   config.BrowserConfig
	extractorCfg config.ExtractorConfig
	slots        chan struct{}
	active       atomic.Int32
}

// NewHarvester launches a headless browser with the stealth launch flags.
func NewHarvester(browserCfg config.BrowserConfig, extractorCfg config.ExtractorConfig) (*Harvester, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.Proxy != "" {
		l = l.Proxy(browserCfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewExtractError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	slog.Debug("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewExtractError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	maxSessions := browserCfg.MaxSessions
	if maxSessions < 1 {
		maxSessions = 1
	}

	return &Harvester{
		browser:      browser,
		browserCfg:   browserCfg,
		extractorCfg: extractorCfg,
		slots:        make(chan struct{}, maxSessions),
	}, nil
}

// Stats returns a snapshot of session utilisation.
func (h *Harvester) Stats() models.SessionStats {
	return models.SessionStats{
		MaxSessions:    cap(h.slots),
		ActiveSessions: int(h.active.Load()),
	}
}

// Close kills the browser process. Sessions still open are torn down with it.
func (h *Harvester) Close() {
	slog.Debug("harvester shutting down: closing browser")
	if err := h.browser.Close(); err != nil {
		slog.Warn("closing browser failed", "error", err)
	}
}
