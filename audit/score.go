package audit

import (
	"math"

	"github.com/seolens/seolens/models"
)

// scoreCategory aggregates one category's results into a score.
//
// Good counts full, warnings half, errors zero:
//
//	score = round(100 * (good + 0.5*warnings) / (good + warnings + errors))
//
// Info results are excluded from both numerator and denominator — a
// skipped check must not drag a category down. A category where nothing
// was eligible scores 100 with Evaluated=false so presenters can label it
// "not evaluated" rather than "perfect".
func scoreCategory(cat models.Category, results []models.CheckResult) models.CategoryScore {
	cs := models.CategoryScore{Category: cat, Score: 100}

	for _, r := range results {
		switch r.Status {
		case models.StatusGood:
			cs.Good++
		case models.StatusWarning:
			cs.Warnings++
		case models.StatusError:
			cs.Errors++
		default:
			cs.Info++
		}
	}

	eligible := cs.Good + cs.Warnings + cs.Errors
	if eligible == 0 {
		return cs
	}

	cs.Evaluated = true
	cs.Score = int(math.Round(100 * (float64(cs.Good) + 0.5*float64(cs.Warnings)) / float64(eligible)))
	return cs
}

// scoreAll computes every enabled category's score plus the overall score
// (the rounded mean over enabled categories, clamped to [0,100]).
// Unevaluated categories still participate in the mean at their reported
// 100, keeping the overall score stable when a category is all-info.
func scoreAll(results map[models.Category][]models.CheckResult, enabled []models.Category) (map[models.Category]models.CategoryScore, int) {
	want := make(map[models.Category]struct{}, len(enabled))
	for _, c := range enabled {
		want[c] = struct{}{}
	}

	scores := make(map[models.Category]models.CategoryScore, len(enabled))
	sum := 0
	n := 0
	for _, cat := range models.Categories() {
		if _, ok := want[cat]; !ok {
			continue
		}
		cs := scoreCategory(cat, results[cat])
		scores[cat] = cs
		sum += cs.Score
		n++
	}

	overall := 100
	if n > 0 {
		overall = int(math.Round(float64(sum) / float64(n)))
	}
	if overall < 0 {
		overall = 0
	} else if overall > 100 {
		overall = 100
	}
	return scores, overall
}

// summarize flattens result counts across categories.
func summarize(results map[models.Category][]models.CheckResult) models.Summary {
	var s models.Summary
	for _, rs := range results {
		for _, r := range rs {
			s.TotalChecks++
			switch r.Status {
			case models.StatusGood:
				s.Passed++
			case models.StatusWarning:
				s.Warnings++
			case models.StatusError:
				s.Errors++
			default:
				s.Info++
			}
		}
	}
	return s
}
