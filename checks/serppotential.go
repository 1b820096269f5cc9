package checks

import (
	"context"
	"math"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/seolens/seolens/audit"
	"github.com/seolens/seolens/config"
	"github.com/seolens/seolens/htmldoc"
	"github.com/seolens/seolens/models"
)

// serpBenchmarks are typical values for a first-page result. Dimensions
// at 120% or more count as strengths, at 80% or less as weaknesses.
var serpBenchmarks = []struct {
	name      string
	benchmark float64
}{
	{"content_volume", 1000},
	{"content_structure", 8},
	{"visual_elements", 5},
	{"content_formatting", 3},
	{"internal_linking", 15},
	{"structured_data", 2},
}

// checkSERPPotential scores how well the page is positioned to rank,
// blending technical, content, semantic, and UX dimensions into a
// single 0-100 estimate.
func checkSERPPotential(th config.Thresholds) audit.CheckFunc {
	return func(_ context.Context, in *audit.Input) *models.CheckResult {
		technical := serpTechnicalScore(in, th)
		content := serpContentScore(in)
		semantic := serpSemanticScore(in)
		ux := serpUXScore(in)

		score := int(math.Round(technical*0.25 + content*0.35 + semantic*0.25 + ux*0.15))

		var tier string
		switch {
		case score >= 80:
			tier = "Excellent"
		case score >= 60:
			tier = "Good"
		case score >= 40:
			tier = "Moderate"
		default:
			tier = "Poor"
		}

		strengths, weaknesses := serpDifferential(in)

		var r *models.CheckResult
		switch tier {
		case "Excellent", "Good":
			r = good("SERP potential %d/100 (%s)", score, tier)
		case "Moderate":
			r = warn("SERP potential %d/100 (%s)", score, tier)
		default:
			r = fail("SERP potential %d/100 (%s)", score, tier)
		}
		r.Value = map[string]any{
			"score": score,
			"tier":  tier,
			"dimensions": map[string]int{
				"technical": int(math.Round(technical)),
				"content":   int(math.Round(content)),
				"semantic":  int(math.Round(semantic)),
				"ux":        int(math.Round(ux)),
			},
			"strengths":  strengths,
			"weaknesses": weaknesses,
		}
		return r
	}
}

func serpTechnicalScore(in *audit.Input, th config.Thresholds) float64 {
	var score float64
	if in.URL.Scheme == "https" {
		score += 10
	}
	if in.Doc.Meta["viewport"] != "" {
		score += 10
	}
	switch size := len(in.Doc.HTML); {
	case size < 100_000:
		score += 15
	case size < 200_000:
		score += 10
	default:
		score += 5
	}
	if len(in.Doc.JSONLD) > 0 {
		score += 15
	}
	if in.Doc.Canonical != "" {
		score += 10
	}
	if in.Doc.HeadingCount(1) == 1 {
		score += 10
	}
	if len(in.URL.String()) <= th.URLMaxLength {
		score += 10
	}
	return math.Min(score*1.25, 100)
}

func serpContentScore(in *audit.Input) float64 {
	var score float64

	words := in.Doc.WordCount()
	switch {
	case words > 1500:
		score += 25
	case words > 1000:
		score += 20
	case words > 750:
		score += 15
	case words > 500:
		score += 10
	case words > 300:
		score += 5
	}

	if len(in.Keywords) == 0 {
		score += 10
	} else {
		lower := strings.ToLower(in.Doc.Text)
		var kwPoints float64
		for _, kw := range in.Keywords {
			occurrences := strings.Count(lower, strings.ToLower(kw))
			density := htmldoc.Density(occurrences, words)
			if density >= 0.5 && density <= 2.5 {
				kwPoints += 5
			}
		}
		score += math.Min(kwPoints, 20)
	}

	switch n := len(in.Doc.Headings); {
	case n >= 3:
		score += 15
	case n >= 1:
		score += 10
	}

	switch n := len(in.Doc.Images); {
	case n >= 3:
		score += 15
	case n >= 1:
		score += 10
	}

	if in.Doc.Query.Find("video").Length() > 0 || hasVideoEmbed(in.Doc.Query) {
		score += 15
	}

	return math.Min(score, 100)
}

func serpSemanticScore(in *audit.Input) float64 {
	var score float64
	q := in.Doc.Query

	switch n := len(declaredEntities(in.Doc)); {
	case n >= 2:
		score += 25
	case n == 1:
		score += 15
	}

	switch n := headingBodyOverlap(in.Doc); {
	case n >= 5:
		score += 25
	case n >= 3:
		score += 15
	case n >= 1:
		score += 5
	}

	for _, h := range in.Doc.Headings {
		if strings.HasSuffix(strings.TrimSpace(h.Text), "?") {
			score += 15
			break
		}
	}

	if q.Find("ul, ol").Length() > 0 {
		score += 15
	}
	if q.Find("table").Length() > 0 {
		score += 10
	}

	return math.Min(score*1.1, 100)
}

// headingBodyOverlap counts distinct substantial words that appear both
// in headings and in paragraph text, a rough topical-coherence signal.
func headingBodyOverlap(doc *htmldoc.Doc) int {
	var headingText strings.Builder
	for _, h := range doc.Headings {
		headingText.WriteString(h.Text)
		headingText.WriteByte(' ')
	}

	inHeadings := make(map[string]struct{})
	for _, w := range htmldoc.Words(headingText.String()) {
		if len(w) > 3 {
			inHeadings[w] = struct{}{}
		}
	}
	if len(inHeadings) == 0 {
		return 0
	}

	paraText := doc.Query.Find("p").Text()
	common := make(map[string]struct{})
	for _, w := range htmldoc.Words(paraText) {
		if _, ok := inHeadings[w]; ok {
			common[w] = struct{}{}
		}
	}
	return len(common)
}

func serpUXScore(in *audit.Input) float64 {
	var score float64
	q := in.Doc.Query

	if in.Doc.Meta["viewport"] != "" {
		score += 20
	}
	if q.Find("nav, [role='navigation']").Length() > 0 {
		score += 15
	}

	breadcrumbs := q.Find("[class*='breadcrumb'], [id*='breadcrumb'], [aria-label='breadcrumb']").Length() > 0
	if !breadcrumbs {
		for _, t := range schemaTypes(in.Doc.JSONLD) {
			if t == "BreadcrumbList" {
				breadcrumbs = true
				break
			}
		}
	}
	if breadcrumbs {
		score += 10
	}

	if smallFontCount(in.Doc) == 0 {
		score += 15
	}
	if q.Find("form, button, input[type='submit'], [class*='btn'], [class*='button']").Length() > 0 {
		score += 15
	}
	if q.Find("footer").Length() > 0 {
		score += 10
	}
	if serpContactSignal(in.Doc) {
		score += 15
	}

	return math.Min(score, 100)
}

// serpContactSignal looks for contact affordances. Raw anchors are
// scanned because mailto: and tel: never reach the link extraction.
func serpContactSignal(doc *htmldoc.Doc) bool {
	found := false
	doc.Query.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		h := strings.ToLower(href)
		if strings.HasPrefix(h, "mailto:") || strings.HasPrefix(h, "tel:") || strings.Contains(h, "contact") {
			found = true
			return false
		}
		return true
	})
	if found {
		return true
	}
	return strings.Contains(strings.ToLower(doc.Text), "contact")
}

// serpDifferential compares the page against typical first-page values
// and buckets each dimension as a strength or weakness.
func serpDifferential(in *audit.Input) (strengths, weaknesses []string) {
	values := map[string]float64{
		"content_volume":     float64(in.Doc.WordCount()),
		"content_structure":  float64(len(in.Doc.Headings)),
		"visual_elements":    float64(len(in.Doc.Images)),
		"content_formatting": float64(in.Doc.Query.Find("ul, ol").Length()),
		"internal_linking":   float64(len(in.Doc.Links.Internal)),
		"structured_data":    float64(len(in.Doc.JSONLD)),
	}

	for _, b := range serpBenchmarks {
		ratio := values[b.name] / b.benchmark
		switch {
		case ratio >= 1.2:
			strengths = append(strengths, b.name)
		case ratio <= 0.8:
			weaknesses = append(weaknesses, b.name)
		}
	}
	return strengths, weaknesses
}
