package checks

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/seolens/seolens/audit"
	"github.com/seolens/seolens/htmldoc"
	"github.com/seolens/seolens/models"
)

func linkChecks(deps Deps) []audit.Descriptor {
	cat := models.CategoryLinks
	return []audit.Descriptor{
		{Name: "link_counts", Category: cat, Needs: audit.ArtifactDoc, Run: checkLinkCounts},
		{Name: "internal_links", Category: cat, Needs: audit.ArtifactDoc, Run: checkInternalLinks},
		{Name: "external_links", Category: cat, Needs: audit.ArtifactDoc, Run: checkExternalLinks},
		{Name: "anchor_text", Category: cat, Needs: audit.ArtifactDoc, Run: checkAnchorText},
		{Name: "broken_links", Category: cat, Needs: audit.ArtifactDoc, Run: checkBrokenLinks(deps.Links)},
		{Name: "link_attributes", Category: cat, Needs: audit.ArtifactDoc, Run: checkLinkAttributes},
	}
}

func checkLinkCounts(_ context.Context, in *audit.Input) *models.CheckResult {
	internal := len(in.Doc.Links.Internal)
	external := len(in.Doc.Links.External)
	r := info("%s on the page (%d internal, %d external)",
		plural(internal+external, "unique link"), internal, external)
	r.Value = map[string]any{
		"total":    internal + external,
		"internal": internal,
		"external": external,
	}
	return r
}

func checkInternalLinks(_ context.Context, in *audit.Input) *models.CheckResult {
	links := in.Doc.Links.Internal
	if len(links) == 0 {
		return warn("No internal links found")
	}

	var issues []string
	if len(links) < 3 {
		issues = append(issues, fmt.Sprintf("only %s", plural(len(links), "internal link")))
	}

	// Navigation links legitimately repeat a few times; only heavy
	// repetition is worth flagging.
	repeated := 0
	for _, l := range links {
		if l.Occurrences > 3 {
			repeated++
		}
	}
	if repeated > 0 {
		issues = append(issues, fmt.Sprintf("%s repeated more than 3 times", plural(repeated, "URL")))
	}

	empty := 0
	long := 0
	for _, l := range links {
		if l.Text == "" && !l.HasImage {
			empty++
		}
		if utf8.RuneCountInString(l.Text) > 100 {
			long++
		}
	}
	if empty > 0 {
		issues = append(issues, fmt.Sprintf("%s with empty anchor text", plural(empty, "link")))
	}
	if long > 0 {
		issues = append(issues, fmt.Sprintf("%s with anchors over 100 characters", plural(long, "link")))
	}

	r := issueResult(issues, "%s look healthy", plural(len(links), "internal link"))
	if r.Value == nil {
		r.Value = map[string]any{}
	}
	r.Value["internal"] = len(links)
	return r
}

func checkExternalLinks(_ context.Context, in *audit.Input) *models.CheckResult {
	links := in.Doc.Links.External
	if len(links) == 0 {
		return info("No external links on the page")
	}

	nofollow := 0
	blank := 0
	unprotected := 0
	for _, l := range links {
		if l.Nofollow() {
			nofollow++
		}
		if l.Target == "_blank" {
			blank++
			if !l.HasRel("noopener") && !l.HasRel("noreferrer") {
				unprotected++
			}
		}
	}

	var issues []string
	if blank > 0 && pct(blank-unprotected, blank) < 80 {
		issues = append(issues, fmt.Sprintf("%s open new tabs without rel=noopener", plural(unprotected, "link")))
	}

	okMsg := fmt.Sprintf("%s (%d nofollow)", plural(len(links), "external link"), nofollow)
	if nofollow == 0 && len(links) > 0 {
		okMsg += "; all pass authority"
	}

	r := issueResult(issues, "%s", okMsg)
	if r.Value == nil {
		r.Value = map[string]any{}
	}
	r.Value["external"] = len(links)
	r.Value["nofollow"] = nofollow
	r.Value["target_blank"] = blank
	return r
}

// genericAnchors are anchor texts that tell crawlers nothing about the
// target.
var genericAnchors = map[string]struct{}{
	"click here": {}, "read more": {}, "learn more": {}, "more info": {},
	"details": {}, "link": {}, "here": {},
}

func checkAnchorText(_ context.Context, in *audit.Input) *models.CheckResult {
	links := make([]htmldoc.Link, 0, len(in.Doc.Links.Internal)+len(in.Doc.Links.External))
	links = append(links, in.Doc.Links.Internal...)
	links = append(links, in.Doc.Links.External...)
	if len(links) == 0 {
		return info("No links to evaluate")
	}

	generic := 0
	var genericExamples []string
	empty := 0
	long := 0
	imageNoAlt := 0
	for _, l := range links {
		text := strings.ToLower(strings.TrimSpace(l.Text))
		if _, isGeneric := genericAnchors[text]; isGeneric {
			generic++
			if len(genericExamples) < 3 {
				genericExamples = append(genericExamples, l.Text)
			}
		}
		switch {
		case text == "" && l.HasImage && l.ImageAlt == "":
			imageNoAlt++
		case text == "" && !l.HasImage:
			empty++
		}
		if utf8.RuneCountInString(l.Text) > 60 {
			long++
		}
	}

	var issues []string
	if generic > 0 {
		issues = append(issues, fmt.Sprintf("%s with generic text (%s)",
			plural(generic, "link"), strings.Join(genericExamples, ", ")))
	}
	if empty > 0 {
		issues = append(issues, fmt.Sprintf("%s with empty anchors", plural(empty, "link")))
	}
	if imageNoAlt > 0 {
		issues = append(issues, fmt.Sprintf("%s via images without alt text", plural(imageNoAlt, "link")))
	}
	if long > 0 {
		issues = append(issues, fmt.Sprintf("%s with anchors over 60 characters", plural(long, "link")))
	}

	r := issueResult(issues, "Anchor text is descriptive across %s", plural(len(links), "link"))
	if r.Value == nil {
		r.Value = map[string]any{}
	}
	r.Value["links"] = len(links)
	r.Value["generic"] = generic
	return r
}

func checkBrokenLinks(prober *LinkProber) audit.CheckFunc {
	return func(ctx context.Context, in *audit.Input) *models.CheckResult {
		if prober == nil {
			return info("Link liveness probing is disabled")
		}

		var urls []string
		for _, l := range in.Doc.Links.Internal {
			urls = append(urls, l.Href)
		}
		for _, l := range in.Doc.Links.External {
			urls = append(urls, l.Href)
		}
		if len(urls) == 0 {
			return info("No links to probe")
		}

		statuses := prober.ProbeAll(ctx, urls)
		var dead []map[string]any
		for _, s := range statuses {
			if !s.OK {
				dead = append(dead, map[string]any{"url": s.URL, "status": s.Status})
			}
		}

		if len(dead) == 0 {
			r := good("All %s respond", plural(len(statuses), "sampled link"))
			r.Value = map[string]any{"sampled": len(statuses)}
			return r
		}

		r := warn("%d of %d sampled links appear dead", len(dead), len(statuses))
		r.Value = map[string]any{
			"sampled": len(statuses),
			"dead":    dead,
		}
		return r
	}
}

func checkLinkAttributes(_ context.Context, in *audit.Input) *models.CheckResult {
	var nofollow, sponsored, ugc, withTitle, download int
	count := func(links []htmldoc.Link) {
		for _, l := range links {
			if l.Nofollow() {
				nofollow++
			}
			if l.HasRel("sponsored") {
				sponsored++
			}
			if l.HasRel("ugc") {
				ugc++
			}
			if l.Title != "" {
				withTitle++
			}
			if l.Download {
				download++
			}
		}
	}
	count(in.Doc.Links.Internal)
	count(in.Doc.Links.External)

	r := info("Link attributes: %d nofollow, %d sponsored, %d ugc, %d titled, %d download",
		nofollow, sponsored, ugc, withTitle, download)
	r.Value = map[string]any{
		"nofollow":  nofollow,
		"sponsored": sponsored,
		"ugc":       ugc,
		"titled":    withTitle,
		"download":  download,
	}
	return r
}
