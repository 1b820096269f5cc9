package models

import (
	"fmt"
	"net/url"
	"strings"
)

// AuditRequest is the payload for POST /api/v1/audit.
// It is immutable once the audit starts running.
type AuditRequest struct {
	// URL is the target page to audit. Required.
	URL string `json:"url" binding:"required"`

	// Categories selects which check categories run.
	// Empty means all six categories.
	Categories []Category `json:"categories,omitempty"`

	// Keywords are optional target keywords checked by the content and
	// advanced categories. Max: 10.
	Keywords []string `json:"keywords,omitempty"`

	// Timeout is the maximum duration in seconds for the entire audit
	// (fetch + render + all checks). Default: 60. Max: 180.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=180"`

	// UseCache serves a recent identical audit from the report store
	// instead of re-fetching. Default: false.
	UseCache bool `json:"use_cache,omitempty"`

	// WebhookURL switches the audit to async mode: the API responds
	// immediately with a report ID and delivers the finished report to
	// this URL.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// Defaults applies default values to unset fields.
func (r *AuditRequest) Defaults() {
	if len(r.Categories) == 0 {
		r.Categories = Categories()
	}
	if r.Timeout == 0 {
		r.Timeout = 60
	}
}

// Validate checks the request beyond what gin binding covers.
func (r *AuditRequest) Validate() error {
	raw := strings.TrimSpace(r.URL)
	if raw == "" {
		return NewAuditError(ErrCodeInvalidInput, "url is required", nil)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return NewAuditError(ErrCodeInvalidInput, fmt.Sprintf("invalid url: %s", r.URL), err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return NewAuditError(ErrCodeInvalidInput, fmt.Sprintf("unsupported scheme: %s", u.Scheme), nil)
	}
	seen := make(map[Category]struct{}, len(r.Categories))
	for _, c := range r.Categories {
		if !ValidCategory(c) {
			return NewAuditError(ErrCodeInvalidInput, fmt.Sprintf("unknown category: %s", c), nil)
		}
		if _, dup := seen[c]; dup {
			return NewAuditError(ErrCodeInvalidInput, fmt.Sprintf("duplicate category: %s", c), nil)
		}
		seen[c] = struct{}{}
	}
	if len(r.Keywords) > 10 {
		return NewAuditError(ErrCodeInvalidInput, "at most 10 keywords", nil)
	}
	return nil
}

// Enabled reports whether the given category is enabled by this request.
func (r *AuditRequest) Enabled(c Category) bool {
	for _, ec := range r.Categories {
		if ec == c {
			return true
		}
	}
	return false
}
