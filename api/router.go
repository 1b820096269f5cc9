// Package api wires the audit engine, report store, and presenters into
// the HTTP surface: a JSON API under /api/v1 plus a small HTML front
// door for interactive audits.
package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seolens/seolens/api/handler"
	"github.com/seolens/seolens/api/middleware"
	"github.com/seolens/seolens/config"
	"github.com/seolens/seolens/store"
)

// NewRouter assembles the Gin engine: recovery and request logging
// globally, then API-key auth and rate limiting on everything under
// /api/v1 except health, which stays open for monitoring probes. The
// HTML pages skip the rate limiter but run the same audits, so they
// still sit behind the engine's own concurrency bounds.
func NewRouter(run handler.Runner, st *store.Store, br handler.BrowserStatser, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery(), gin.Logger())

	// HTML front door.
	r.GET("/", handler.Index())
	r.POST("/audit", handler.AuditForm(run, st))

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(br, st, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/audit", handler.PostAudit(run, st, cfg.Webhook))
	protected.GET("/reports", handler.ListReports(st))
	protected.GET("/reports/:id", handler.GetReport(st))
	protected.POST("/audit/batch", handler.PostBatch(run, st, br, cfg.Webhook))
	protected.GET("/batch/:id", handler.GetBatch())

	return r
}
