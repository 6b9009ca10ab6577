package harvest

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/cfharvest/models"
)

// session is one incognito browser context with a single page. It belongs
// to exactly one extraction and is closed when that extraction returns.
type session struct {
	context *rod.Browser
	page    *rod.Page
}

// openSession creates an isolated context and page, fixes the viewport and
// installs the stealth script. Everything here happens before navigation.
func (h *Harvester) openSession() (*session, error) {
	incognito, err := h.browser.Incognito()
	if err != nil {
		return nil, models.NewExtractError(
			models.ErrCodeBrowserCrash,
			"failed to create browser context",
			err,
		)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		return nil, models.NewExtractError(
			models.ErrCodeBrowserCrash,
			"failed to open page",
			err,
		)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             h.browserCfg.ViewportWidth,
		Height:            h.browserCfg.ViewportHeight,
		DeviceScaleFactor: 1,
		Mobile:            false,
	}); err != nil {
		slog.Warn("setting viewport failed, proceeding with default", "error", err)
	}

	if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
	}

	return &session{context: incognito, page: page}, nil
}

// close disposes the page and its browser context. Errors are logged only.
func (s *session) close() {
	if err := s.page.Close(); err != nil {
		slog.Debug("closing page failed", "error", err)
	}
	if err := s.context.Close(); err != nil {
		slog.Debug("disposing browser context failed", "error", err)
	}
}

// categorizeError wraps raw errors into typed ExtractErrors so callers can
// map them to exit codes or HTTP statuses.
func categorizeError(err error, msg string) *models.ExtractError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewExtractError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewExtractError(models.ErrCodeTimeout, "extraction canceled", err)
	default:
		return models.NewExtractError(models.ErrCodeNavigation, msg, err)
	}
}
