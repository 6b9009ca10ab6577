package harvest

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/cfharvest/config"
	"github.com/use-agent/cfharvest/models"
	"github.com/use-agent/cfharvest/sitekey"
)

// Report is an ExtractionResult plus run diagnostics that are not part of
// the output file.
type Report struct {
	Result        *models.ExtractionResult
	SitekeySource string
	HookFired     bool
	Mode          string

	Navigation time.Duration
	Dwell      time.Duration
	Total      time.Duration
}

// Extract runs one extraction against req.URL.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Acquire session slot  – bounds concurrent browser contexts
//  2. Open session          – incognito context, viewport, stealth (before navigation!)
//  3. Response sniffer      – thorough mode only, registered before navigation
//  4. Render hook           – init script, must run before the page's own scripts
//  5. Navigate              – DOMContentLoaded only, bounded by NavigationTimeout
//  6. Dwell                 – let the widget initialise
//  7. Read blackboard       – what the render hook captured
//  8. Introspect            – thorough mode, only if the hook fired
//  9. Site-key chain        – hook → introspection → network → data-sitekey → source
//  10. Cookies              – vendor cookies from the browsing context
//
// Navigation failure is the only fatal step after the session is open; a
// missing or reshaped widget just leaves fields empty.
func (h *Harvester) Extract(ctx context.Context, req *models.ExtractRequest) (*Report, error) {
	start := time.Now()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	mode := h.extractorCfg.Mode
	if req.Mode != "" {
		mode = config.NormalizeMode(req.Mode)
	}
	dwell := h.extractorCfg.DwellFor(mode)
	if req.DwellSeconds > 0 {
		dwell = time.Duration(req.DwellSeconds) * time.Second
	}
	thorough := mode == config.ModeThorough

	// ── 1. Acquire session slot ───────────────────────────────────────
	select {
	case h.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, models.NewExtractError(models.ErrCodeBusy, "no browser session available", ctx.Err())
	}
	h.active.Add(1)
	defer func() {
		h.active.Add(-1)
		<-h.slots
	}()

	// ── 2. Open session ───────────────────────────────────────────────
	sess, err := h.openSession()
	if err != nil {
		return nil, err
	}
	defer sess.close()
	page := sess.page

	// ── 3. Response sniffer ───────────────────────────────────────────
	var sn sniffer
	if thorough {
		listenCtx, stopListening := context.WithCancel(ctx)
		defer stopListening()
		wait := page.Context(listenCtx).EachEvent(func(e *proto.NetworkResponseReceived) {
			if e.Response != nil {
				sn.observe(e.Response.URL)
			}
		})
		go wait()
	}

	// ── 4. Render hook ────────────────────────────────────────────────
	if _, err := page.EvalOnNewDocument(renderHookJS); err != nil {
		return nil, models.NewExtractError(
			models.ErrCodeBrowserCrash,
			"failed to install render hook",
			err,
		)
	}

	// ── 5. Navigate ───────────────────────────────────────────────────
	navStart := time.Now()
	if err := h.navigate(ctx, page, req.URL); err != nil {
		return nil, err
	}
	navigation := time.Since(navStart)
	slog.Info("page loaded", "url", req.URL, "mode", mode, "dwell", dwell, "navigation", navigation.Round(time.Millisecond))

	// ── 6. Dwell ──────────────────────────────────────────────────────
	dwellStart := time.Now()
	if err := sleepCtx(ctx, dwell); err != nil {
		return nil, categorizeError(err, "extraction canceled during dwell")
	}
	dwelled := time.Since(dwellStart)

	p := page.Context(ctx)
	result := models.NewExtractionResult(req.URL)

	// ── 7. Read blackboard ────────────────────────────────────────────
	captured := readCapture(p)
	fillEmpty(result, captured.widgetParams)
	if captured.Fired {
		slog.Info("render hook fired", "has_sitekey", captured.Sitekey != "")
	}

	sources := []sitekeySource{constSource(models.SourceRenderHook, captured.Sitekey)}

	if thorough {
		// ── 8. Introspect ─────────────────────────────────────────────
		var intro introspection
		if captured.Fired {
			intro = readIntrospection(p)
			fillEmpty(result, intro.widgetParams)
		}

		// ── 9. Site-key chain (lazy past this point) ──────────────────
		sources = append(sources,
			constSource(models.SourceIntrospection, intro.sitekey()),
			sitekeySource{name: models.SourceNetwork, lookup: sn.found},
			sitekeySource{name: models.SourceDataAttribute, lookup: func() string { return dataAttributeSitekey(p) }},
			sitekeySource{name: models.SourcePageSource, lookup: func() string { return pageSourceSitekey(p) }},
		)
	}
	var source string
	result.Sitekey, source = resolveSitekey(sources)

	// ── 10. Cookies ───────────────────────────────────────────────────
	cookies, err := sess.context.GetCookies()
	if err != nil {
		slog.Warn("reading cookies failed", "error", err)
	}
	result.Cookies = filterCookies(cookies, h.extractorCfg.CookieMarkers)

	return &Report{
		Result:        result,
		SitekeySource: source,
		HookFired:     captured.Fired,
		Mode:          mode,
		Navigation:    navigation,
		Dwell:         dwelled,
		Total:         time.Since(start),
	}, nil
}

// navigate loads url and waits for DOMContentLoaded, nothing more. The
// lifecycle waiter is registered before Navigate so the event can't be missed.
func (h *Harvester) navigate(ctx context.Context, page *rod.Page, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, h.extractorCfg.NavigationTimeout)
	defer cancel()

	p := page.Context(navCtx)
	waitDOM := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)

	if err := p.Navigate(url); err != nil {
		return categorizeError(err, "navigation to target URL failed")
	}
	waitDOM()

	if err := navCtx.Err(); err != nil {
		return categorizeError(err, "navigation did not reach DOMContentLoaded in time")
	}
	return nil
}

func readCapture(p *rod.Page) hookCapture {
	res, err := p.Eval(readCapturedJS)
	if err != nil {
		slog.Debug("reading render hook capture failed", "error", err)
		return hookCapture{}
	}
	return hookCaptureFromJSON(res.Value)
}

func readIntrospection(p *rod.Page) introspection {
	res, err := p.Eval(introspectJS)
	if err != nil {
		slog.Debug("widget introspection failed", "error", err)
		return introspection{}
	}
	return introspectionFromJSON(res.Value)
}

// dataAttributeSitekey returns the first well-formed data-sitekey value.
// Malformed values (e.g. reCAPTCHA keys) are skipped.
func dataAttributeSitekey(p *rod.Page) string {
	els, err := p.Elements("[data-sitekey]")
	if err != nil {
		return ""
	}
	values := make([]string, 0, len(els))
	for _, el := range els {
		if v, err := el.Attribute("data-sitekey"); err == nil && v != nil {
			values = append(values, *v)
		}
	}
	return sitekey.FirstValid(values)
}

func pageSourceSitekey(p *rod.Page) string {
	src, err := p.HTML()
	if err != nil {
		slog.Debug("reading page source failed", "error", err)
		return ""
	}
	return sitekey.FromSource(src)
}

// sleepCtx waits for d unless ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
