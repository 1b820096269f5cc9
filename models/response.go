package models

import "time"

// AuditResponse is the envelope for POST /api/v1/audit in sync mode.
type AuditResponse struct {
	// Success indicates whether the audit completed.
	Success bool `json:"success"`

	// Report is the full audit report. Present only on success.
	Report *AuditReport `json:"report,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// AsyncAuditResponse is the immediate response for async (webhook) audits.
type AsyncAuditResponse struct {
	ReportID string `json:"report_id"`
	Status   string `json:"status"` // always "processing"
}

// ReportSummary is the compact listing entry for GET /api/v1/reports.
type ReportSummary struct {
	ID           string    `json:"report_id"`
	URL          string    `json:"url"`
	GeneratedAt  time.Time `json:"generated_at"`
	OverallScore int       `json:"overall_score"`
	Errors       int       `json:"errors"`
	Warnings     int       `json:"warnings"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status        string       `json:"status"` // "healthy" or "degraded"
	Uptime        string       `json:"uptime"`
	BrowserStats  BrowserStats `json:"browser_stats"`
	StoredReports int          `json:"stored_reports"`
	Version       string       `json:"version"`
}

// BrowserStats reports the state of the shared render browser and its
// page pool.
type BrowserStats struct {
	Running     bool `json:"running"`
	MaxPages    int  `json:"max_pages"`
	ActivePages int  `json:"active_pages"`
	BrowserPID  int  `json:"browser_pid,omitempty"`
}
