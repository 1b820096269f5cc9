package checks

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	// Decoders for image_dimensions; webp and avif are skipped.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/PuerkitoBio/goquery"

	"github.com/seolens/seolens/audit"
	"github.com/seolens/seolens/htmldoc"
	"github.com/seolens/seolens/models"
)

const (
	// imageSampleSize is how many images the byte-size checks download.
	imageSampleSize = 5
	// imageBodyLimit caps one sampled image download.
	imageBodyLimit = 2 << 20
	// imageHeaderLimit caps downloads made only to decode dimensions.
	imageHeaderLimit = 512 * 1024
)

func uxChecks(deps Deps) []audit.Descriptor {
	cat := models.CategoryUX
	return []audit.Descriptor{
		{Name: "mobile_viewport", Category: cat, Needs: audit.ArtifactDoc, Run: checkMobileViewport},
		{Name: "font_size", Category: cat, Needs: audit.ArtifactDoc, Run: checkFontSize},
		{Name: "tap_targets", Category: cat, Needs: audit.ArtifactDoc, Run: checkTapTargets},
		{Name: "form_usability", Category: cat, Needs: audit.ArtifactDoc, Run: checkFormUsability},
		{Name: "content_readability", Category: cat, Needs: audit.ArtifactDoc, Run: checkContentReadability},
		{Name: "cta_effectiveness", Category: cat, Needs: audit.ArtifactDoc, Run: checkCTAEffectiveness},
		{Name: "navigation_usability", Category: cat, Needs: audit.ArtifactDoc, Run: checkNavigationUsability},
		{Name: "image_optimization", Category: cat, Needs: audit.ArtifactDoc, Run: checkImageOptimization},
		{Name: "responsive_images", Category: cat, Needs: audit.ArtifactDoc, Run: checkResponsiveImages},
		{Name: "image_compression", Category: cat, Needs: audit.ArtifactDoc, Run: checkImageCompression(deps.Probe)},
		{Name: "image_dimensions", Category: cat, Needs: audit.ArtifactDoc, Run: checkImageDimensions(deps.Probe)},
		{Name: "image_filenames", Category: cat, Needs: audit.ArtifactDoc, Run: checkImageFilenames},
		{Name: "video_optimization", Category: cat, Needs: audit.ArtifactDoc, Run: checkVideoOptimization},
	}
}

func checkMobileViewport(_ context.Context, in *audit.Input) *models.CheckResult {
	viewport := strings.ToLower(in.Doc.MetaContent("viewport"))
	if viewport == "" {
		return fail("No viewport meta tag")
	}

	deviceWidth := strings.Contains(viewport, "width=device-width")
	initialScale := strings.Contains(viewport, "initial-scale")

	var r *models.CheckResult
	switch {
	case deviceWidth && initialScale:
		r = good("Viewport configured correctly")
	case deviceWidth:
		r = warn("Viewport lacks initial-scale")
	default:
		r = warn("Viewport does not use width=device-width")
	}
	if strings.Contains(viewport, "user-scalable=no") {
		r = warn("Viewport disables zooming (user-scalable=no)")
	}
	r.Value = map[string]any{"viewport": viewport}
	return r
}

var fontSizeRe = regexp.MustCompile(`(?i)font-size\s*:\s*([0-9.]+)\s*(px|em|rem)`)

func checkFontSize(_ context.Context, in *audit.Input) *models.CheckResult {
	small := smallFontCount(in.Doc)
	if small == 0 {
		return good("Font sizes look reasonable")
	}
	r := warn("%s below the 16px minimum", plural(small, "font-size declaration"))
	r.Value = map[string]any{"small_declarations": small}
	return r
}

// smallFontCount counts declared font sizes under 16px (or their em
// equivalent) in inline styles and style blocks.
func smallFontCount(doc *htmldoc.Doc) int {
	var styles []string
	doc.Query.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		if style, ok := s.Attr("style"); ok {
			styles = append(styles, style)
		}
	})
	styles = append(styles, doc.Query.Find("style").Text())

	small := 0
	for _, style := range styles {
		for _, m := range fontSizeRe.FindAllStringSubmatch(style, -1) {
			size, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			unit := strings.ToLower(m[2])
			if (unit == "px" && size < 16) || ((unit == "em" || unit == "rem") && size < 1) {
				small++
			}
		}
	}
	return small
}

func checkTapTargets(_ context.Context, in *audit.Input) *models.CheckResult {
	tiny := 0
	for _, l := range in.Doc.Links.Internal {
		if tinyAnchor(l) {
			tiny++
		}
	}
	for _, l := range in.Doc.Links.External {
		if tinyAnchor(l) {
			tiny++
		}
	}
	in.Doc.Query.Find("button").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" && utf8.RuneCountInString(text) <= 2 && s.Find("img, svg").Length() == 0 {
			tiny++
		}
	})

	smallImages := 0
	for _, img := range in.Doc.Images {
		if img.Width > 0 && img.Width < 48 && img.Height > 0 && img.Height < 48 {
			smallImages++
		}
	}

	var issues []string
	if tiny > 0 {
		issues = append(issues, fmt.Sprintf("%s with one or two characters of text", plural(tiny, "tap target")))
	}
	if smallImages > 0 {
		issues = append(issues, fmt.Sprintf("%s smaller than 48px", plural(smallImages, "image")))
	}
	return issueResult(issues, "Tap targets look adequately sized")
}

func tinyAnchor(l htmldoc.Link) bool {
	return l.Text != "" && utf8.RuneCountInString(l.Text) <= 2 && !l.HasImage
}

func checkFormUsability(_ context.Context, in *audit.Input) *models.CheckResult {
	q := in.Doc.Query
	forms := q.Find("form").Length()
	if forms == 0 {
		return info("No forms on the page")
	}

	fields := 0
	labeled := 0
	q.Find("form input, form select, form textarea").Each(func(_ int, s *goquery.Selection) {
		typ, _ := s.Attr("type")
		switch strings.ToLower(typ) {
		case "hidden", "submit", "button", "image":
			return
		}
		fields++
		if _, ok := s.Attr("aria-label"); ok {
			labeled++
			return
		}
		if id, ok := s.Attr("id"); ok && id != "" {
			if q.Find("label[for='"+id+"']").Length() > 0 {
				labeled++
				return
			}
		}
		if s.ParentsFiltered("label").Length() > 0 {
			labeled++
		}
	})

	hasSubmit := q.Find("form input[type='submit'], form button").Length() > 0

	var issues []string
	if fields > 0 && pct(labeled, fields) < 80 {
		issues = append(issues, fmt.Sprintf("only %d of %d form fields have labels", labeled, fields))
	}
	if !hasSubmit {
		issues = append(issues, "no submit control found")
	}

	r := issueResult(issues, "%s with labeled fields", plural(forms, "form"))
	if r.Value == nil {
		r.Value = map[string]any{}
	}
	r.Value["forms"] = forms
	r.Value["fields"] = fields
	r.Value["labeled"] = labeled
	return r
}

var fixedWidthRe = regexp.MustCompile(`(?i)width\s*:\s*([0-9]+)px`)

func checkContentReadability(_ context.Context, in *audit.Input) *models.CheckResult {
	q := in.Doc.Query
	paragraphs := q.Find("p")

	var issues []string
	if paragraphs.Length() == 0 && in.Doc.WordCount() > 200 {
		issues = append(issues, "content is not split into paragraph elements")
	}

	long := 0
	paragraphs.Each(func(_ int, s *goquery.Selection) {
		if utf8.RuneCountInString(strings.TrimSpace(s.Text())) > 500 {
			long++
		}
	})
	if total := paragraphs.Length(); total > 0 && long >= 2 && pct(long, total) > 30 {
		issues = append(issues, fmt.Sprintf("%s run past 500 characters", plural(long, "paragraph")))
	}

	wide := 0
	scanWidths := func(style string) {
		for _, m := range fixedWidthRe.FindAllStringSubmatch(style, -1) {
			if w, err := strconv.Atoi(m[1]); err == nil && w > 900 {
				wide++
			}
		}
	}
	q.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		if style, ok := s.Attr("style"); ok {
			scanWidths(style)
		}
	})
	scanWidths(q.Find("style").Text())
	if wide > 0 {
		issues = append(issues, fmt.Sprintf("%s wider than 900px", plural(wide, "fixed-width container")))
	}

	return issueResult(issues, "Content is broken into readable blocks")
}

// ctaPhrases are action verbs that mark a link or button as a call to
// action.
var ctaPhrases = []string{
	"buy", "subscribe", "sign up", "get started", "start free", "contact",
	"download", "try", "order", "book", "request a demo", "join",
}

func checkCTAEffectiveness(_ context.Context, in *audit.Input) *models.CheckResult {
	q := in.Doc.Query
	buttons := q.Find("button, input[type='submit'], input[type='button']").Length()
	classed := q.Find("[class*='cta'], a[class*='btn'], a[class*='button']").Length()

	phrased := 0
	links := append(append([]htmldoc.Link{}, in.Doc.Links.Internal...), in.Doc.Links.External...)
	for _, l := range links {
		text := strings.ToLower(l.Text)
		for _, phrase := range ctaPhrases {
			if strings.Contains(text, phrase) {
				phrased++
				break
			}
		}
	}

	total := buttons + classed + phrased
	if total == 0 {
		return warn("No clear call to action found")
	}

	// Above-the-fold proxy: a CTA signal in the first half of the markup.
	lower := strings.ToLower(in.Doc.HTML)
	earliest := -1
	for _, marker := range append([]string{"class=\"cta", "<button"}, ctaPhrases...) {
		if idx := strings.Index(lower, marker); idx >= 0 && (earliest < 0 || idx < earliest) {
			earliest = idx
		}
	}
	early := earliest >= 0 && earliest < len(lower)/2

	var r *models.CheckResult
	if early {
		r = good("%s found, placed early in the page", plural(total, "call-to-action element"))
	} else {
		r = warn("Calls to action exist but none appear early in the page")
	}
	r.Value = map[string]any{
		"buttons": buttons,
		"classed": classed,
		"phrased": phrased,
	}
	return r
}

func checkNavigationUsability(_ context.Context, in *audit.Input) *models.CheckResult {
	q := in.Doc.Query
	hasNav := q.Find("nav, [role='navigation']").Length() > 0
	mobileMenu := q.Find("[class*='hamburger'], [class*='menu-toggle'], [class*='navbar-toggle'], [class*='burger']").Length() > 0

	breadcrumbs := q.Find("[class*='breadcrumb'], [id*='breadcrumb'], [aria-label='breadcrumb']").Length() > 0
	if !breadcrumbs {
		for _, t := range schemaTypes(in.Doc.JSONLD) {
			if t == "BreadcrumbList" {
				breadcrumbs = true
				break
			}
		}
	}

	var issues []string
	if !hasNav {
		issues = append(issues, "no navigation landmark (nav element)")
	}
	if pathDepth(in.URL.Path) >= 2 && !breadcrumbs {
		issues = append(issues, "no breadcrumbs on a nested page")
	}

	r := issueResult(issues, "Navigation landmarks present")
	if r.Value == nil {
		r.Value = map[string]any{}
	}
	r.Value["nav"] = hasNav
	r.Value["mobile_menu"] = mobileMenu
	r.Value["breadcrumbs"] = breadcrumbs
	return r
}

func checkImageOptimization(_ context.Context, in *audit.Input) *models.CheckResult {
	imgs := in.Doc.Images
	if len(imgs) == 0 {
		return info("No images on the page")
	}

	withDims := 0
	lazy := 0
	withSrcset := 0
	for _, img := range imgs {
		if img.Width > 0 && img.Height > 0 {
			withDims++
		}
		if img.LazyLoaded() {
			lazy++
		}
		if img.Srcset != "" {
			withSrcset++
		}
	}

	var issues []string
	if pct(withDims, len(imgs)) < 80 {
		issues = append(issues, fmt.Sprintf("%d%% of images declare width and height", int(pct(withDims, len(imgs)))))
	}
	if len(imgs) >= 3 && pct(lazy, len(imgs)) < 50 {
		issues = append(issues, fmt.Sprintf("%d%% of images lazy-load", int(pct(lazy, len(imgs)))))
	}
	if pct(withSrcset, len(imgs)) < 50 {
		issues = append(issues, fmt.Sprintf("%d%% of images provide srcset", int(pct(withSrcset, len(imgs)))))
	}

	r := issueResult(issues, "Images carry dimensions, lazy loading, and srcset")
	if r.Value == nil {
		r.Value = map[string]any{}
	}
	r.Value["total"] = len(imgs)
	r.Value["with_dimensions"] = withDims
	r.Value["lazy"] = lazy
	r.Value["with_srcset"] = withSrcset
	return r
}

func checkResponsiveImages(_ context.Context, in *audit.Input) *models.CheckResult {
	imgs := in.Doc.Images
	if len(imgs) == 0 {
		return info("No images on the page")
	}

	responsive := 0
	for _, img := range imgs {
		if img.Srcset != "" {
			responsive++
		}
	}
	inPicture := in.Doc.Query.Find("picture source[srcset]").Length()

	coverage := pct(responsive, len(imgs))
	var r *models.CheckResult
	switch {
	case coverage >= 70:
		r = good("%d of %d images are responsive", responsive, len(imgs))
	case inPicture > 0:
		r = good("Responsive sources provided via %s", plural(inPicture, "picture source"))
	default:
		r = warn("Only %d of %d images provide responsive sources", responsive, len(imgs))
	}
	r.Value = map[string]any{
		"total":           len(imgs),
		"with_srcset":     responsive,
		"picture_sources": inPicture,
	}
	return r
}

func checkImageCompression(probe Prober) audit.CheckFunc {
	return func(ctx context.Context, in *audit.Input) *models.CheckResult {
		if probe == nil {
			return info("Secondary probing is disabled")
		}
		imgs := in.Doc.Images
		if len(imgs) == 0 {
			return info("No images to sample")
		}
		if len(imgs) > imageSampleSize {
			imgs = imgs[:imageSampleSize]
		}

		var total int64
		var oversized []string
		measured := 0
		for _, img := range imgs {
			size, ok := imageByteSize(ctx, probe, img.Src)
			if !ok {
				continue
			}
			measured++
			total += size
			if size > 200*1024 {
				oversized = append(oversized, fmt.Sprintf("%s (%d KB)", img.Filename(), size/1024))
			}
		}
		if measured == 0 {
			return info("Could not determine image sizes")
		}

		avgKB := total / int64(measured) / 1024
		var r *models.CheckResult
		switch {
		case avgKB < 50:
			r = good("Images are well compressed (average %d KB)", avgKB)
		case avgKB < 100:
			r = good("Image sizes are reasonable (average %d KB)", avgKB)
		default:
			r = warn("Images are heavy (average %d KB over %s)", avgKB, plural(measured, "sample"))
		}
		r.Value = map[string]any{
			"sampled": measured,
			"avg_kb":  avgKB,
		}
		if len(oversized) > 0 {
			r.Value["oversized"] = oversized
		}
		return r
	}
}

// imageByteSize resolves an image's transfer size, preferring the
// Content-Length of a HEAD response over downloading the bytes.
func imageByteSize(ctx context.Context, probe Prober, src string) (int64, bool) {
	if status, hdr, err := probe.Head(ctx, src); err == nil && status < 400 {
		if cl := hdr.Get("Content-Length"); cl != "" {
			if n, perr := strconv.ParseInt(cl, 10, 64); perr == nil && n > 0 {
				return n, true
			}
		}
	}
	asset, err := probe.GetResource(ctx, src, imageBodyLimit)
	if err != nil || asset.Status >= 400 || len(asset.Body) == 0 {
		return 0, false
	}
	return int64(len(asset.Body)), true
}

func checkImageDimensions(probe Prober) audit.CheckFunc {
	return func(ctx context.Context, in *audit.Input) *models.CheckResult {
		if probe == nil {
			return info("Secondary probing is disabled")
		}

		var candidates []htmldoc.Image
		for _, img := range in.Doc.Images {
			if img.Width > 0 && img.Height > 0 {
				candidates = append(candidates, img)
			}
			if len(candidates) == 3 {
				break
			}
		}
		if len(candidates) == 0 {
			return info("No images declare dimensions to compare")
		}

		measured := 0
		var oversized []string
		for _, img := range candidates {
			asset, err := probe.GetResource(ctx, img.Src, imageHeaderLimit)
			if err != nil || asset.Status >= 400 {
				continue
			}
			cfg, _, derr := image.DecodeConfig(bytes.NewReader(asset.Body))
			if derr != nil {
				continue
			}
			measured++
			if cfg.Width > 2*img.Width || cfg.Height > 2*img.Height {
				oversized = append(oversized, fmt.Sprintf("%s is %dx%d but displayed at %dx%d",
					img.Filename(), cfg.Width, cfg.Height, img.Width, img.Height))
			}
		}
		if measured == 0 {
			return info("Could not decode sampled images")
		}

		if len(oversized) == 0 {
			return good("Sampled images match their declared dimensions")
		}
		r := warn("%s much larger than their display size", plural(len(oversized), "image"))
		r.Value = map[string]any{"oversized": oversized}
		return r
	}
}

// genericFilenameRe matches camera-roll style names (IMG_1234, dsc0001)
// that say nothing about the image.
var genericFilenameRe = regexp.MustCompile(`(?i)^(img|image|dsc|dscn|photo|pic|untitled|screenshot)?[-_]?\d+$`)

func checkImageFilenames(_ context.Context, in *audit.Input) *models.CheckResult {
	imgs := in.Doc.Images
	if len(imgs) == 0 {
		return info("No images on the page")
	}

	descriptive := 0
	var generic []string
	for _, img := range imgs {
		name := img.Filename()
		if dot := strings.LastIndex(name, "."); dot > 0 {
			name = name[:dot]
		}
		if name == "" || utf8.RuneCountInString(name) < 5 || genericFilenameRe.MatchString(name) {
			if len(generic) < 5 {
				generic = append(generic, img.Filename())
			}
			continue
		}
		descriptive++
	}

	var r *models.CheckResult
	if pct(descriptive, len(imgs)) >= 70 {
		r = good("%d of %d image filenames are descriptive", descriptive, len(imgs))
	} else {
		r = warn("%d of %d image filenames are descriptive", descriptive, len(imgs))
		r.Value = map[string]any{"generic": generic}
	}
	return r
}

// videoEmbedHosts marks iframes that are video players.
var videoEmbedHosts = []string{"youtube.com", "youtube-nocookie.com", "vimeo.com", "wistia", "dailymotion.com"}

func checkVideoOptimization(_ context.Context, in *audit.Input) *models.CheckResult {
	q := in.Doc.Query
	videos := q.Find("video")
	nVideos := videos.Length()

	var embeds []*goquery.Selection
	q.Find("iframe[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		lower := strings.ToLower(src)
		for _, host := range videoEmbedHosts {
			if strings.Contains(lower, host) {
				embeds = append(embeds, s)
				return
			}
		}
	})
	nEmbeds := len(embeds)

	if nVideos+nEmbeds == 0 {
		return info("No video content on the page")
	}

	var points, max float64
	components := map[string]int{}
	if nVideos > 0 {
		preload, poster, controls, captions := 0, 0, 0, 0
		videos.Each(func(_ int, s *goquery.Selection) {
			if p, _ := s.Attr("preload"); p == "none" || p == "metadata" {
				preload++
			}
			if _, ok := s.Attr("poster"); ok {
				poster++
			}
			if _, ok := s.Attr("controls"); ok {
				controls++
			}
			if s.Find("track").Length() > 0 {
				captions++
			}
		})
		nv := float64(nVideos)
		points += 20*float64(preload)/nv + 20*float64(poster)/nv + 10*float64(controls)/nv + 30*float64(captions)/nv
		max += 80
		components["preload"] = preload
		components["poster"] = poster
		components["controls"] = controls
		components["captions"] = captions
	}
	if nEmbeds > 0 {
		lazy := 0
		for _, s := range embeds {
			if l, _ := s.Attr("loading"); l == "lazy" {
				lazy++
			}
		}
		points += 20 * float64(lazy) / float64(nEmbeds)
		max += 20
		components["lazy_embeds"] = lazy
	}

	score := int(math.Round(100 * points / max))
	var r *models.CheckResult
	switch {
	case score >= 70:
		r = good("Video optimization score %d/100 across %s", score, plural(nVideos+nEmbeds, "video"))
	case score >= 40:
		r = warn("Video optimization score %d/100 across %s", score, plural(nVideos+nEmbeds, "video"))
	case nVideos == 0:
		// Embeds expose only lazy loading as a lever; do not hard-fail
		// a page for an eager iframe.
		r = warn("Video embeds are not lazy-loaded")
	default:
		r = fail("Video optimization score %d/100 across %s", score, plural(nVideos+nEmbeds, "video"))
	}
	r.Value = map[string]any{
		"score":      score,
		"videos":     nVideos,
		"embeds":     nEmbeds,
		"components": components,
	}
	return r
}
