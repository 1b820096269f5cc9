package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/seolens/seolens/models"
	"github.com/seolens/seolens/report"
	"github.com/seolens/seolens/store"
)

// Index returns the handler for GET /: the audit submission form.
func Index() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.Status(http.StatusOK)
		if err := report.RenderIndex(c.Writer); err != nil {
			slog.Error("index render failed", "error", err)
		}
	}
}

// AuditForm returns the handler for POST /audit: a form submission that
// runs the audit synchronously and responds with the rendered HTML
// report.
func AuditForm(run Runner, st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := models.AuditRequest{
			URL:      c.PostForm("url"),
			Keywords: splitKeywords(c.PostForm("keywords")),
		}
		for _, cat := range c.PostFormArray("categories") {
			req.Categories = append(req.Categories, models.Category(cat))
		}
		req.Defaults()
		if err := req.Validate(); err != nil {
			c.String(http.StatusBadRequest, "invalid request: %s", detailFor(err).Message)
			return
		}

		rep, err := run.Run(c.Request.Context(), &req)
		if err != nil {
			detail := detailFor(err)
			c.String(statusForCode(detail.Code), "audit failed: %s", detail.Message)
			return
		}
		st.Put(rep, requestKey(&req))

		c.Header("Content-Type", "text/html; charset=utf-8")
		c.Status(http.StatusOK)
		if err := report.RenderHTML(c.Writer, rep); err != nil {
			slog.Error("report html render failed", "report_id", rep.ID, "error", err)
		}
	}
}

// splitKeywords parses the form's comma-separated keyword field.
func splitKeywords(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if kw := strings.TrimSpace(part); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
