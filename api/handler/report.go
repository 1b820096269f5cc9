package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seolens/seolens/models"
	"github.com/seolens/seolens/report"
	"github.com/seolens/seolens/store"
)

// listLimit caps GET /api/v1/reports responses.
const listLimit = 50

// GetReport returns the handler for GET /api/v1/reports/:id. The
// format query selects the presenter: json (default), html, or csv.
func GetReport(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		rep, ok := st.Get(id)
		if !ok {
			respondDetail(c, http.StatusNotFound, models.ErrCodeReportNotFound,
				"report not found: "+id)
			return
		}

		switch format := c.DefaultQuery("format", "json"); format {
		case "json":
			c.JSON(http.StatusOK, models.AuditResponse{Success: true, Report: rep})
		case "html":
			c.Header("Content-Type", "text/html; charset=utf-8")
			c.Status(http.StatusOK)
			if err := report.RenderHTML(c.Writer, rep); err != nil {
				slog.Error("report html render failed", "report_id", id, "error", err)
			}
		case "csv":
			c.Header("Content-Type", "text/csv; charset=utf-8")
			c.Header("Content-Disposition", `attachment; filename="`+id+`.csv"`)
			c.Status(http.StatusOK)
			if err := report.WriteCSV(c.Writer, rep); err != nil {
				slog.Error("report csv render failed", "report_id", id, "error", err)
			}
		default:
			respondDetail(c, http.StatusBadRequest, models.ErrCodeInvalidInput,
				"unknown format: "+format+" (expected json, html, or csv)")
		}
	}
}

// ListReports returns the handler for GET /api/v1/reports: compact
// summaries of recently stored reports, newest first.
func ListReports(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		summaries := st.Recent(listLimit)
		c.JSON(http.StatusOK, gin.H{
			"count":   len(summaries),
			"reports": summaries,
		})
	}
}
