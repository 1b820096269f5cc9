package audit

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/seolens/seolens/models"
)

// randomID generates a short random hex string for report IDs.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// NewReportID returns a fresh collision-resistant report identifier.
func NewReportID() string {
	return "rpt-" + randomID()
}

// assembleReport freezes the audit outcome into the report value handed to
// presenters and the store. Nothing mutates a report after this point.
func assembleReport(
	url string,
	results map[models.Category][]models.CheckResult,
	scores map[models.Category]models.CategoryScore,
	overall int,
	recs []models.Recommendation,
	page models.PageSummary,
) *models.AuditReport {
	return &models.AuditReport{
		ID:              NewReportID(),
		URL:             url,
		GeneratedAt:     time.Now().UTC(),
		OverallScore:    overall,
		Summary:         summarize(results),
		Scores:          scores,
		Results:         results,
		Recommendations: recs,
		Page:            page,
	}
}
