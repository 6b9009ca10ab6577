package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/cfharvest/models"
)

// Prober fetches a page without a browser. *probe.Prober satisfies it.
type Prober interface {
	Probe(ctx context.Context, url string) (*models.ProbeResult, error)
}

// Probe returns a handler for POST /api/v1/probe.
func Probe(pr Prober) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req models.ProbeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ProbeResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		result, err := pr.Probe(c.Request.Context(), req.URL)
		timing := models.TimingInfo{TotalMs: time.Since(start).Milliseconds()}
		if err != nil {
			ee := asExtractError(err)
			c.JSON(mapErrorToStatus(ee), models.ProbeResponse{
				Success: false,
				Error:   ee.ToDetail(),
				Timing:  timing,
			})
			return
		}

		c.JSON(http.StatusOK, models.ProbeResponse{
			Success: true,
			Result:  result,
			Timing:  timing,
		})
	}
}
