package checks

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/seolens/seolens/audit"
	"github.com/seolens/seolens/config"
	"github.com/seolens/seolens/htmldoc"
	"github.com/seolens/seolens/models"
)

func contentChecks(deps Deps) []audit.Descriptor {
	cat := models.CategoryContent
	th := deps.Thresholds
	return []audit.Descriptor{
		{Name: "title_tag", Category: cat, Needs: audit.ArtifactDoc, Run: checkTitleTag(th)},
		{Name: "meta_description", Category: cat, Needs: audit.ArtifactDoc, Run: checkMetaDescription(th)},
		{Name: "heading_structure", Category: cat, Needs: audit.ArtifactDoc, Run: checkHeadingStructure},
		{Name: "content_length", Category: cat, Needs: audit.ArtifactDoc, Run: checkContentLength(th)},
		{Name: "keyword_usage", Category: cat, Needs: audit.ArtifactDoc, Run: checkKeywordUsage},
		{Name: "content_quality", Category: cat, Needs: audit.ArtifactDoc, Run: checkContentQuality},
		{Name: "image_alt_text", Category: cat, Needs: audit.ArtifactDoc, Run: checkImageAltText},
		{Name: "outbound_links", Category: cat, Needs: audit.ArtifactDoc, Run: checkOutboundLinks},
	}
}

func checkTitleTag(th config.Thresholds) audit.CheckFunc {
	return func(_ context.Context, in *audit.Input) *models.CheckResult {
		title := in.Doc.Title
		if title == "" {
			return fail("Missing title tag")
		}

		n := utf8.RuneCountInString(title)
		var r *models.CheckResult
		switch {
		case n < th.TitleMin:
			r = warn("Title too short (%d characters, aim for %d-%d)", n, th.TitleMin, th.TitleMax)
		case n > th.TitleMax:
			r = warn("Title too long (%d characters, aim for %d-%d)", n, th.TitleMin, th.TitleMax)
		default:
			r = good("Title length is optimal (%d characters)", n)
		}

		if kw, found := keywordIn(title, in.Keywords); len(in.Keywords) > 0 {
			if found {
				r.Message += fmt.Sprintf("; mentions %q", kw)
			} else if r.Status == models.StatusGood {
				r = warn("Title length is optimal (%d characters) but mentions no target keyword", n)
			}
		}

		r.Value = map[string]any{"title": title, "length": n}
		return r
	}
}

func checkMetaDescription(th config.Thresholds) audit.CheckFunc {
	return func(_ context.Context, in *audit.Input) *models.CheckResult {
		desc := strings.TrimSpace(in.Doc.MetaContent("description"))
		if desc == "" {
			return fail("Missing meta description")
		}

		n := utf8.RuneCountInString(desc)
		var r *models.CheckResult
		switch {
		case n < th.MetaDescMin:
			r = warn("Meta description too short (%d characters, aim for %d-%d)", n, th.MetaDescMin, th.MetaDescMax)
		case n > th.MetaDescMax:
			r = warn("Meta description too long (%d characters, aim for %d-%d)", n, th.MetaDescMin, th.MetaDescMax)
		default:
			r = good("Meta description length is optimal (%d characters)", n)
		}

		if kw, found := keywordIn(desc, in.Keywords); len(in.Keywords) > 0 {
			if found {
				r.Message += fmt.Sprintf("; mentions %q", kw)
			} else if r.Status == models.StatusGood {
				r = warn("Meta description length is optimal (%d characters) but mentions no target keyword", n)
			}
		}

		r.Value = map[string]any{"description": truncate(desc, 200), "length": n}
		return r
	}
}

func checkHeadingStructure(_ context.Context, in *audit.Input) *models.CheckResult {
	h1s := in.Doc.HeadingTexts(1)
	if len(h1s) == 0 {
		return fail("No H1 heading found")
	}

	var issues []string
	if len(h1s) > 1 {
		issues = append(issues, fmt.Sprintf("%d H1 headings (use exactly one)", len(h1s)))
	}

	prev := 0
	skipNoted := false
	for _, h := range in.Doc.Headings {
		if prev > 0 && h.Level > prev+1 && !skipNoted {
			issues = append(issues, fmt.Sprintf("heading levels skip from H%d to H%d", prev, h.Level))
			skipNoted = true
		}
		prev = h.Level
	}

	if in.Doc.WordCount() > 300 && in.Doc.HeadingCount(2) == 0 {
		issues = append(issues, "no H2 headings to structure the content")
	}

	if len(in.Keywords) > 0 {
		if _, found := keywordIn(h1s[0], in.Keywords); !found {
			issues = append(issues, "H1 mentions no target keyword")
		}
	}

	r := issueResult(issues, "Heading structure looks good (%s)", plural(len(in.Doc.Headings), "heading"))
	if r.Value == nil {
		r.Value = map[string]any{}
	}
	r.Value["h1"] = h1s[0]
	r.Value["headings"] = len(in.Doc.Headings)
	return r
}

func checkContentLength(th config.Thresholds) audit.CheckFunc {
	return func(_ context.Context, in *audit.Input) *models.CheckResult {
		main := htmldoc.ExtractMain(in.Doc.HTML, in.URL.String())
		words := len(htmldoc.Words(main.Text))

		var r *models.CheckResult
		switch {
		case words >= 2*th.MinContentWords:
			r = good("Substantial content: %d words", words)
		case words >= th.MinContentWords:
			r = good("Adequate content length: %d words", words)
		default:
			r = warn("Thin content: %d words (aim for at least %d)", words, th.MinContentWords)
		}
		r.Value = map[string]any{
			"main_words":     words,
			"page_words":     in.Doc.WordCount(),
			"main_extracted": main.Extracted,
		}
		return r
	}
}

func checkKeywordUsage(_ context.Context, in *audit.Input) *models.CheckResult {
	words := in.Doc.Words
	if len(words) == 0 {
		return warn("No text content to analyze")
	}

	top := htmldoc.TopKeywords(words, 5)
	densities := make(map[string]any, len(top))
	var stuffed []string
	for _, kc := range top {
		d := htmldoc.Density(kc.Count, len(words))
		densities[kc.Word] = d
		if d > 5 {
			stuffed = append(stuffed, fmt.Sprintf("%s (%.1f%%)", kc.Word, d))
		}
	}

	lowerText := strings.ToLower(in.Doc.Text)
	var found, missing []string
	for _, kw := range in.Keywords {
		if strings.Contains(lowerText, strings.ToLower(kw)) {
			found = append(found, kw)
		} else {
			missing = append(missing, kw)
		}
	}

	var r *models.CheckResult
	switch {
	case len(stuffed) > 0:
		r = warn("Possible keyword stuffing: %s", strings.Join(stuffed, ", "))
	case len(missing) > 0:
		r = warn("Target keywords not found in content: %s", strings.Join(missing, ", "))
	case len(in.Keywords) > 0:
		r = good("All %s appear in the content", plural(len(in.Keywords), "target keyword"))
	default:
		r = good("Keyword usage looks natural")
	}
	r.Value = map[string]any{
		"top_keywords": densities,
		"found":        found,
		"missing":      missing,
	}
	return r
}

func checkContentQuality(_ context.Context, in *audit.Input) *models.CheckResult {
	stats := htmldoc.Readability(in.Doc.Text, in.Doc.Words)

	var issues []string
	if stats.SentenceCount < 5 {
		issues = append(issues, fmt.Sprintf("only %s of content", plural(stats.SentenceCount, "sentence")))
	}
	if stats.AvgSentenceLength > 25 {
		issues = append(issues, fmt.Sprintf("long sentences (average %.0f words)", stats.AvgSentenceLength))
	}
	if stats.SentenceCount >= 5 && stats.FleschScore < 60 {
		issues = append(issues, fmt.Sprintf("hard to read (Flesch score %.0f)", stats.FleschScore))
	}

	r := issueResult(issues, "Content reads well (Flesch %.0f, average sentence %.0f words)",
		stats.FleschScore, stats.AvgSentenceLength)
	if r.Value == nil {
		r.Value = map[string]any{}
	}
	r.Value["sentences"] = stats.SentenceCount
	r.Value["avg_sentence_words"] = stats.AvgSentenceLength
	r.Value["flesch"] = stats.FleschScore
	return r
}

func checkImageAltText(_ context.Context, in *audit.Input) *models.CheckResult {
	imgs := in.Doc.Images
	if len(imgs) == 0 {
		return info("No images on the page")
	}

	withAlt := 0
	var missing []string
	for _, img := range imgs {
		if img.Alt != "" {
			withAlt++
		} else if len(missing) < 5 {
			missing = append(missing, img.Filename())
		}
	}

	coverage := pct(withAlt, len(imgs))
	var r *models.CheckResult
	switch {
	case coverage > 90:
		r = good("%d of %d images have alt text", withAlt, len(imgs))
	case coverage >= 70:
		r = warn("%d of %d images have alt text; add the missing ones", withAlt, len(imgs))
	default:
		r = fail("Only %d of %d images have alt text", withAlt, len(imgs))
	}
	r.Value = map[string]any{
		"total":        len(imgs),
		"with_alt":     withAlt,
		"coverage_pct": int(coverage),
		"missing":      missing,
	}
	return r
}

func checkOutboundLinks(_ context.Context, in *audit.Input) *models.CheckResult {
	internal := len(in.Doc.Links.Internal)
	external := len(in.Doc.Links.External)

	var issues []string
	if external == 0 {
		issues = append(issues, "no external links to authoritative sources")
	}
	if internal < 3 {
		issues = append(issues, fmt.Sprintf("only %s", plural(internal, "internal link")))
	}

	r := issueResult(issues, "Healthy link mix: %d internal, %d external", internal, external)
	if r.Value == nil {
		r.Value = map[string]any{}
	}
	r.Value["internal"] = internal
	r.Value["external"] = external
	return r
}

// keywordIn reports whether any target keyword appears in s
// (case-insensitive), returning the first match.
func keywordIn(s string, keywords []string) (string, bool) {
	lower := strings.ToLower(s)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return kw, true
		}
	}
	return "", false
}
