package models

import "time"

// Category groups related checks. The six categories are fixed; a request
// may enable any subset.
type Category string

const (
	CategoryTechnical      Category = "technical"
	CategoryContent        Category = "content"
	CategoryStructuredData Category = "structured_data"
	CategoryLinks          Category = "links"
	CategoryUX             Category = "ux"
	CategoryAdvanced       Category = "advanced"
)

// Categories returns all categories in canonical report order.
func Categories() []Category {
	return []Category{
		CategoryTechnical,
		CategoryContent,
		CategoryStructuredData,
		CategoryLinks,
		CategoryUX,
		CategoryAdvanced,
	}
}

// ValidCategory reports whether c is one of the six known categories.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryTechnical, CategoryContent, CategoryStructuredData,
		CategoryLinks, CategoryUX, CategoryAdvanced:
		return true
	}
	return false
}

// Status encodes the severity of a single check result.
type Status string

const (
	StatusGood    Status = "good"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
	StatusInfo    Status = "info"
)

// Priority is the remediation tier derived from a result status.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// CheckResult is the outcome of one check. Every enabled check produces
// exactly one CheckResult per audit, whatever happens during execution.
type CheckResult struct {
	Category Category       `json:"category"`
	Name     string         `json:"name"`
	Status   Status         `json:"status"`
	Message  string         `json:"message"`
	Value    map[string]any `json:"value,omitempty"`
	Elapsed  int64          `json:"elapsed_ms"`
}

// CategoryScore is the aggregated score for one category.
// Evaluated is false when the category had no scoring-eligible results
// (everything info, or no checks ran); the score is then reported as 100
// but must not be read as a perfect pass.
type CategoryScore struct {
	Category  Category `json:"category"`
	Score     int      `json:"score"`
	Good      int      `json:"good"`
	Warnings  int      `json:"warnings"`
	Errors    int      `json:"errors"`
	Info      int      `json:"info"`
	Evaluated bool     `json:"evaluated"`
}

// Summary holds the flat result counts across all enabled categories.
// Passed+Warnings+Errors+Info always equals TotalChecks.
type Summary struct {
	TotalChecks int `json:"total_checks"`
	Passed      int `json:"passed"`
	Warnings    int `json:"warnings"`
	Errors      int `json:"errors"`
	Info        int `json:"info"`
}

// Recommendation is one prioritized remediation item derived from a
// non-passing check result.
type Recommendation struct {
	Priority Priority `json:"priority"`
	Category Category `json:"category"`
	Check    string   `json:"check"`
	Message  string   `json:"message"`
	Steps    []string `json:"steps"`
}

// PageSummary carries page-level metadata surfaced alongside the scores.
type PageSummary struct {
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	WordCount     int    `json:"word_count"`
	ContentDigest string `json:"content_digest,omitempty"`
	StatusCode    int    `json:"status_code"`
	FetchMs       int64  `json:"fetch_ms"`
	RenderMs      int64  `json:"render_ms,omitempty"`
	Rendered      bool   `json:"rendered"`
	RenderError   string `json:"render_error,omitempty"`
}

// AuditReport is the complete, immutable audit output: the single contract
// handed to presenters (JSON/CSV/HTML) and to the report store.
type AuditReport struct {
	ID              string                     `json:"report_id"`
	URL             string                     `json:"url"`
	GeneratedAt     time.Time                  `json:"generated_at"`
	OverallScore    int                        `json:"overall_score"`
	Summary         Summary                    `json:"summary"`
	Scores          map[Category]CategoryScore `json:"scores"`
	Results         map[Category][]CheckResult `json:"results"`
	Recommendations []Recommendation           `json:"recommendations"`
	Page            PageSummary                `json:"page"`
	CacheStatus     string                     `json:"cache_status,omitempty"`
}

// EnabledResults returns the report's results flattened in canonical
// category order, preserving per-category declaration order.
func (r *AuditReport) EnabledResults() []CheckResult {
	var out []CheckResult
	for _, cat := range Categories() {
		out = append(out, r.Results[cat]...)
	}
	return out
}
