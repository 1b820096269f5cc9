package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/seolens/seolens/audit"
	"github.com/seolens/seolens/config"
	"github.com/seolens/seolens/fetch"
	"github.com/seolens/seolens/models"
	"github.com/seolens/seolens/store"
	"github.com/seolens/seolens/webhook"
)

// Runner runs one audit to completion. *audit.Auditor implements it;
// tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, req *models.AuditRequest) (*models.AuditReport, error)
}

// PostAudit returns the handler for POST /api/v1/audit. Audits run
// synchronously by default; a webhook_url switches the request to async
// mode (202 + report ID now, signed webhook delivery when done).
func PostAudit(run Runner, st *store.Store, wh config.WebhookConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AuditRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondDetail(c, http.StatusBadRequest, models.ErrCodeInvalidInput,
				"invalid request body: "+err.Error())
			return
		}
		req.Defaults()
		if err := req.Validate(); err != nil {
			respondError(c, err)
			return
		}

		key := requestKey(&req)

		if req.WebhookURL != "" {
			reportID := audit.NewReportID()
			go runDetached(run, st, wh, reportID, key, &req)
			c.JSON(http.StatusAccepted, models.AsyncAuditResponse{
				ReportID: reportID,
				Status:   "processing",
			})
			return
		}

		if req.UseCache {
			if cached, ok := st.Lookup(key); ok {
				hit := *cached
				hit.CacheStatus = "hit"
				c.JSON(http.StatusOK, models.AuditResponse{Success: true, Report: &hit})
				return
			}
		}

		rep, err := run.Run(c.Request.Context(), &req)
		if err != nil {
			respondError(c, err)
			return
		}
		if req.UseCache {
			rep.CacheStatus = "miss"
		}
		st.Put(rep, key)

		c.JSON(http.StatusOK, models.AuditResponse{Success: true, Report: rep})
	}
}

// runDetached executes an async audit and delivers the outcome to the
// request's webhook. The audit bounds its own running time via the
// request timeout, so a background context is safe here.
func runDetached(run Runner, st *store.Store, wh config.WebhookConfig, reportID, key string, req *models.AuditRequest) {
	rep, err := run.Run(context.Background(), req)
	if err != nil {
		webhook.DeliverAsync(req.WebhookURL, wh.Secret, webhook.ReportFailed(reportID, detailFor(err)))
		return
	}

	// The caller already holds this ID from the 202 response.
	rep.ID = reportID
	st.Put(rep, key)
	webhook.DeliverAsync(req.WebhookURL, wh.Secret, webhook.ReportCompleted(rep))
}

// requestKey computes the store dedup key for a validated request. The
// same normalization the audit itself applies keeps cache hits aligned
// with what actually gets fetched.
func requestKey(req *models.AuditRequest) string {
	normalized, err := fetch.NormalizeURL(req.URL)
	if err != nil {
		normalized = req.URL
	}
	return store.Key(normalized, req.Categories, req.Keywords)
}

// detailFor extracts the API-facing detail from any audit error.
func detailFor(err error) *models.ErrorDetail {
	var ae *models.AuditError
	if errors.As(err, &ae) {
		return ae.ToDetail()
	}
	return &models.ErrorDetail{Code: models.ErrCodeInternal, Message: "internal server error"}
}

// respondError writes the failure envelope, mapping the error code onto
// an HTTP status.
func respondError(c *gin.Context, err error) {
	detail := detailFor(err)
	c.JSON(statusForCode(detail.Code), models.AuditResponse{Success: false, Error: detail})
}

// respondDetail writes a failure envelope with an explicit status.
func respondDetail(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.AuditResponse{
		Success: false,
		Error:   &models.ErrorDetail{Code: code, Message: message},
	})
}

// statusForCode maps audit error codes onto HTTP statuses: client
// faults to 4xx, unreachable targets to 502, everything else to 500.
func statusForCode(code string) int {
	switch code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case models.ErrCodeReportNotFound:
		return http.StatusNotFound
	case models.ErrCodeFetchFailed, models.ErrCodeDNSFailure,
		models.ErrCodeTLSFailure, models.ErrCodeFetchTimeout:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
