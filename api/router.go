package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/cfharvest/api/handler"
	"github.com/use-agent/cfharvest/api/middleware"
	"github.com/use-agent/cfharvest/cache"
	"github.com/use-agent/cfharvest/config"
)

// Harvester is what the router needs from the browser side.
type Harvester interface {
	handler.Extractor
	handler.StatsSource
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health stays outside auth so monitoring probes always work.
func NewRouter(hv Harvester, pr handler.Prober, cfg *config.Config, cc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(hv, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/extract", handler.Extract(hv, cc, cfg.Extractor, cfg.Webhook.Secret))
	protected.POST("/probe", handler.Probe(pr))

	return r
}
