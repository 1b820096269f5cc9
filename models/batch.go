package models

// BatchRequest is the payload for POST /api/v1/audit/batch.
// Each URL is audited independently; a batch is not a crawl.
type BatchRequest struct {
	// URLs is the list of target pages to audit. Required.
	URLs []string `json:"urls" binding:"required,min=1,max=25"`

	// Options contains shared audit options applied to all URLs.
	Options BatchOptions `json:"options"`

	// WebhookURL, when set, receives a signed event after the batch
	// finishes.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// BatchOptions are the shared audit settings applied to every URL in a batch.
type BatchOptions struct {
	Categories []Category `json:"categories,omitempty"`
	Keywords   []string   `json:"keywords,omitempty"`
	Timeout    int        `json:"timeout,omitempty" binding:"omitempty,min=1,max=180"`
}

// BatchItem is the per-URL outcome inside a batch job.
type BatchItem struct {
	URL      string       `json:"url"`
	ReportID string       `json:"report_id,omitempty"`
	Score    int          `json:"overall_score,omitempty"`
	Error    *ErrorDetail `json:"error,omitempty"`
}

// BatchResponse is the immediate response for POST /api/v1/audit/batch.
type BatchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// BatchStatusResponse is the response for GET /api/v1/batch/:id.
type BatchStatusResponse struct {
	ID        string       `json:"id"`
	Status    string       `json:"status"`
	Completed int          `json:"completed"`
	Total     int          `json:"total"`
	Results   []*BatchItem `json:"results,omitempty"`
}

// BatchJob tracks an in-progress batch audit.
type BatchJob struct {
	ID        string
	Status    string // "processing", "completed", "failed", "partial"
	Total     int
	Completed int
	Results   []*BatchItem
	CreatedAt int64 // unix timestamp
}
