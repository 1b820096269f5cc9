package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seolens/seolens/models"
)

func textFixture() *models.AuditReport {
	return &models.AuditReport{
		ID:           "rpt-render01",
		URL:          "https://acme.test/pricing",
		GeneratedAt:  time.Date(2025, 4, 2, 11, 0, 0, 0, time.UTC),
		OverallScore: 74,
		Summary:      models.Summary{TotalChecks: 3, Passed: 1, Warnings: 1, Errors: 1},
		Scores: map[models.Category]models.CategoryScore{
			models.CategoryTechnical: {
				Category: models.CategoryTechnical, Score: 74,
				Good: 1, Warnings: 1, Errors: 1, Evaluated: true,
			},
			models.CategoryLinks: {
				Category: models.CategoryLinks, Score: 100, Info: 1,
			},
		},
		Results: map[models.Category][]models.CheckResult{
			models.CategoryTechnical: {
				{Category: models.CategoryTechnical, Name: "https_usage", Status: models.StatusGood, Message: "Page is served over HTTPS"},
				{Category: models.CategoryTechnical, Name: "title_tag", Status: models.StatusWarning, Message: "Title is 18 characters, below the 30 character minimum"},
				{Category: models.CategoryTechnical, Name: "canonical_tag", Status: models.StatusError, Message: "No canonical tag found"},
			},
		},
		Recommendations: []models.Recommendation{
			{
				Priority: models.PriorityHigh,
				Category: models.CategoryTechnical,
				Check:    "canonical_tag",
				Message:  "No canonical tag found",
				Steps:    []string{"Add a self-referencing canonical link to the head"},
			},
		},
		Page: models.PageSummary{Title: "Pricing", StatusCode: 200, FetchMs: 120},
	}
}

func TestRenderTextIncludesScoresAndChecks(t *testing.T) {
	var buf bytes.Buffer
	renderText(&buf, textFixture())
	out := buf.String()

	assert.Contains(t, out, "https://acme.test/pricing")
	assert.Contains(t, out, "rpt-render01")
	assert.Contains(t, out, "74/100")
	assert.Contains(t, out, "Technical SEO")
	assert.Contains(t, out, "canonical_tag")
	assert.Contains(t, out, "No canonical tag found")
	assert.Contains(t, out, "Add a self-referencing canonical link to the head")
}

func TestRenderTextMarksUnevaluatedCategories(t *testing.T) {
	var buf bytes.Buffer
	renderText(&buf, textFixture())

	assert.Contains(t, buf.String(), "n/a")
}

func TestRenderTextCapsRecommendations(t *testing.T) {
	rep := textFixture()
	for i := 0; i < 8; i++ {
		rep.Recommendations = append(rep.Recommendations, models.Recommendation{
			Priority: models.PriorityLow,
			Category: models.CategoryTechnical,
			Check:    "filler_check",
			Message:  "filler",
		})
	}

	var buf bytes.Buffer
	renderText(&buf, rep)

	assert.NotContains(t, buf.String(), "6. ")
	assert.Contains(t, buf.String(), "5. ")
}

func TestWriteJSONRoundtrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, textFixture()))

	var decoded models.AuditReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "rpt-render01", decoded.ID)
	assert.Equal(t, 74, decoded.OverallScore)
}
