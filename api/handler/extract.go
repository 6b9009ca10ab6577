package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/cfharvest/cache"
	"github.com/use-agent/cfharvest/config"
	"github.com/use-agent/cfharvest/harvest"
	"github.com/use-agent/cfharvest/models"
	"github.com/use-agent/cfharvest/webhook"
)

// Extractor runs one browser extraction. *harvest.Harvester satisfies it.
type Extractor interface {
	Extract(ctx context.Context, req *models.ExtractRequest) (*harvest.Report, error)
}

// Extract returns a handler for POST /api/v1/extract.
//
// Flow:
//  1. Parse & validate ExtractRequest.
//  2. Cache lookup when max_age > 0.
//  3. Extractor.Extract → Report.
//  4. Assemble response with timing, store in cache.
//  5. Fire the webhook, if requested.
func Extract(ex Extractor, cc *cache.Cache, extractorCfg config.ExtractorConfig, webhookSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.ExtractRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ExtractResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		mode := extractorCfg.Mode
		if req.Mode != "" {
			mode = config.NormalizeMode(req.Mode)
		}
		req.Mode = mode
		dwell := extractorCfg.DwellFor(mode)
		if req.DwellSeconds > 0 {
			dwell = time.Duration(req.DwellSeconds) * time.Second
		}

		// ── 2. Cache lookup ─────────────────────────────────────────
		cacheKey := cache.Key(req.URL, mode, dwell)
		if cc != nil && req.MaxAge > 0 {
			if cached, hit := cc.Get(cacheKey, req.MaxAge); hit {
				cached.CacheStatus = "hit"
				cached.Timing = models.TimingInfo{
					TotalMs: time.Since(totalStart).Milliseconds(),
				}
				c.JSON(http.StatusOK, cached)
				return
			}
		}

		// ── 3. Extract ──────────────────────────────────────────────
		report, err := ex.Extract(c.Request.Context(), &req)
		if err != nil {
			if req.WebhookURL != "" {
				webhook.DeliverAsync(req.WebhookURL, webhookSecret,
					webhook.NewEvent(webhook.EventExtractionFailed, req.URL, asExtractError(err).ToDetail()))
			}
			respondError(c, err, models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
			})
			return
		}

		// ── 4. Assemble response ────────────────────────────────────
		resp := &models.ExtractResponse{
			Success:       true,
			Result:        report.Result,
			SitekeySource: report.SitekeySource,
			HookFired:     report.HookFired,
			Mode:          report.Mode,
			Timing: models.TimingInfo{
				TotalMs:      time.Since(totalStart).Milliseconds(),
				NavigationMs: report.Navigation.Milliseconds(),
				DwellMs:      report.Dwell.Milliseconds(),
			},
		}

		if cc != nil && req.MaxAge > 0 {
			cc.Set(cacheKey, resp)
			resp.CacheStatus = "miss"
		}

		// ── 5. Webhook ──────────────────────────────────────────────
		if req.WebhookURL != "" {
			webhook.DeliverAsync(req.WebhookURL, webhookSecret,
				webhook.NewEvent(webhook.EventExtractionCompleted, req.URL, report.Result))
		}

		c.JSON(http.StatusOK, resp)
	}
}

// asExtractError returns err as an *ExtractError, wrapping unknown errors
// as INTERNAL_ERROR.
func asExtractError(err error) *models.ExtractError {
	var ee *models.ExtractError
	if errors.As(err, &ee) {
		return ee
	}
	return models.NewExtractError(models.ErrCodeInternal, err.Error(), err)
}

// respondError maps an ExtractError to the correct HTTP status code and
// writes a structured JSON error response.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	ee := asExtractError(err)
	c.JSON(mapErrorToStatus(ee), models.ExtractResponse{
		Success: false,
		Error:   ee.ToDetail(),
		Timing:  timing,
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ExtractError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeProbe:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeBusy:
		return http.StatusServiceUnavailable // 503
	default:
		return http.StatusInternalServerError // 500
	}
}
