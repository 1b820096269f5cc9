package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/seolens/seolens/models"
	"github.com/seolens/seolens/store"
)

const version = "0.1.0"

// BrowserStatser reports render-browser pool state. *fetch.Browser
// implements it, including as a nil pointer when rendering is disabled.
type BrowserStatser interface {
	Stats() models.BrowserStats
}

// Health returns the handler for GET /api/v1/health.
//
// Reports tab-pool utilisation and degrades status when > 80% of the
// render tabs are busy.
func Health(br BrowserStatser, st *store.Store, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		var stats models.BrowserStats
		if br != nil {
			stats = br.Stats()
		}

		status := "healthy"
		if stats.Running && stats.MaxPages > 0 &&
			stats.ActivePages > int(float64(stats.MaxPages)*0.8) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:        status,
			Uptime:        time.Since(startTime).Round(time.Second).String(),
			BrowserStats:  stats,
			StoredReports: st.Len(),
			Version:       version,
		})
	}
}
