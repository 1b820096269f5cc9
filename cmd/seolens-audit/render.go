package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/seolens/seolens/models"
	"github.com/seolens/seolens/report"
)

const maxRecommendations = 5

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	goodStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	scoreStyles = map[string]lipgloss.Style{
		"good": goodStyle.Bold(true),
		"warn": warnStyle.Bold(true),
		"fail": errorStyle.Bold(true),
	}
)

// renderText prints the lipgloss-styled terminal report: score banner,
// category table, per-check lines, and the top recommendations.
func renderText(w io.Writer, rep *models.AuditReport) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  "+titleStyle.Render("Seolens audit")+"  "+rep.URL)
	meta := fmt.Sprintf("%s · %s · fetched in %dms", rep.ID,
		rep.GeneratedAt.Format("2006-01-02 15:04 UTC"), rep.Page.FetchMs)
	if rep.Page.Rendered {
		meta += fmt.Sprintf(" · rendered in %dms", rep.Page.RenderMs)
	} else if rep.Page.RenderError != "" {
		meta += " · " + rep.Page.RenderError
	}
	fmt.Fprintln(w, "  "+dimStyle.Render(meta))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  Overall %s  %s\n\n",
		scoreStyle(rep.OverallScore).Render(fmt.Sprintf("%d/100", rep.OverallScore)),
		dimStyle.Render(fmt.Sprintf("%d checks: %d passed, %d warnings, %d errors, %d info",
			rep.Summary.TotalChecks, rep.Summary.Passed, rep.Summary.Warnings,
			rep.Summary.Errors, rep.Summary.Info)))

	// Category table. Styled cells are padded before styling so ANSI
	// escape codes do not throw off the column widths.
	fmt.Fprintln(w, "  "+dimStyle.Render(fmt.Sprintf("%-18s %6s %6s %6s %6s %6s",
		"Category", "Score", "Pass", "Warn", "Fail", "Info")))
	for _, cat := range models.Categories() {
		score, ok := rep.Scores[cat]
		if !ok {
			continue
		}
		scoreCell := fmt.Sprintf("%6s", "n/a")
		if score.Evaluated {
			scoreCell = scoreStyle(score.Score).Render(fmt.Sprintf("%6d", score.Score))
		}
		fmt.Fprintf(w, "  %-18s %s %6d %6d %6d %6d\n",
			report.CategoryTitle(cat), scoreCell,
			score.Good, score.Warnings, score.Errors, score.Info)
	}
	fmt.Fprintln(w)

	// Per-check detail.
	for _, cat := range models.Categories() {
		results, ok := rep.Results[cat]
		if !ok {
			continue
		}
		fmt.Fprintln(w, "  "+titleStyle.Render(report.CategoryTitle(cat)))
		for _, r := range results {
			fmt.Fprintf(w, "    %s %-26s %s\n",
				statusGlyph(r.Status), r.Name, r.Message)
		}
		fmt.Fprintln(w)
	}

	if len(rep.Recommendations) > 0 {
		fmt.Fprintln(w, "  "+titleStyle.Render("Top recommendations"))
		recs := rep.Recommendations
		if len(recs) > maxRecommendations {
			recs = recs[:maxRecommendations]
		}
		for i, rec := range recs {
			fmt.Fprintf(w, "  %d. %s %s: %s\n",
				i+1, priorityBadge(rec.Priority), rec.Check, rec.Message)
			for _, step := range rec.Steps {
				fmt.Fprintln(w, "     "+dimStyle.Render("→ "+step))
			}
		}
		fmt.Fprintln(w)
	}
}

func scoreStyle(score int) lipgloss.Style {
	switch {
	case score >= 80:
		return scoreStyles["good"]
	case score >= 60:
		return scoreStyles["warn"]
	default:
		return scoreStyles["fail"]
	}
}

func statusGlyph(s models.Status) string {
	switch s {
	case models.StatusGood:
		return goodStyle.Render("✓")
	case models.StatusWarning:
		return warnStyle.Render("!")
	case models.StatusError:
		return errorStyle.Render("✗")
	}
	return infoStyle.Render("·")
}

func priorityBadge(p models.Priority) string {
	switch p {
	case models.PriorityHigh:
		return errorStyle.Render("[high]")
	case models.PriorityMedium:
		return warnStyle.Render("[medium]")
	}
	return dimStyle.Render("[low]")
}

// writeJSON emits the raw report for piping into other tools.
func writeJSON(w io.Writer, rep *models.AuditReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
