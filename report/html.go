package report

import (
	"embed"
	"html/template"
	"io"

	"github.com/seolens/seolens/models"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var pages = template.Must(template.New("").Funcs(template.FuncMap{
	"statusClass":   statusClass,
	"statusLabel":   statusLabel,
	"scoreClass":    scoreClass,
	"categoryTitle": CategoryTitle,
}).ParseFS(templateFS, "templates/*.tmpl"))

// reportView wraps an AuditReport with the per-category data laid out
// in canonical order, which the template cannot derive from the maps.
type reportView struct {
	*models.AuditReport
	Categories []categoryView
}

type categoryView struct {
	Title   string
	Score   models.CategoryScore
	Results []models.CheckResult
}

// RenderHTML writes the report as a standalone HTML page.
func RenderHTML(w io.Writer, r *models.AuditReport) error {
	view := reportView{AuditReport: r}
	for _, cat := range models.Categories() {
		results, ok := r.Results[cat]
		if !ok {
			continue
		}
		view.Categories = append(view.Categories, categoryView{
			Title:   CategoryTitle(cat),
			Score:   r.Scores[cat],
			Results: results,
		})
	}
	return pages.ExecuteTemplate(w, "report.html.tmpl", view)
}

// RenderIndex writes the audit submission form page.
func RenderIndex(w io.Writer) error {
	return pages.ExecuteTemplate(w, "index.html.tmpl", struct {
		Categories []models.Category
	}{Categories: models.Categories()})
}

// CategoryTitle returns the human-readable name for a category.
func CategoryTitle(c models.Category) string {
	switch c {
	case models.CategoryTechnical:
		return "Technical SEO"
	case models.CategoryContent:
		return "Content"
	case models.CategoryStructuredData:
		return "Structured Data"
	case models.CategoryLinks:
		return "Links"
	case models.CategoryUX:
		return "User Experience"
	case models.CategoryAdvanced:
		return "Advanced"
	}
	return string(c)
}

func statusClass(s models.Status) string {
	switch s {
	case models.StatusGood:
		return "good"
	case models.StatusWarning:
		return "warn"
	case models.StatusError:
		return "fail"
	}
	return "info"
}

func statusLabel(s models.Status) string {
	switch s {
	case models.StatusGood:
		return "PASS"
	case models.StatusWarning:
		return "WARN"
	case models.StatusError:
		return "FAIL"
	}
	return "INFO"
}

func scoreClass(score int) string {
	switch {
	case score >= 80:
		return "good"
	case score >= 60:
		return "warn"
	default:
		return "fail"
	}
}
