package checks

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/seolens/seolens/audit"
	"github.com/seolens/seolens/htmldoc"
	"github.com/seolens/seolens/models"
	"github.com/seolens/seolens/serp"
	"github.com/seolens/seolens/simhash"
)

func advancedChecks(deps Deps) []audit.Descriptor {
	cat := models.CategoryAdvanced
	return []audit.Descriptor{
		{Name: "javascript_frameworks", Category: cat, Needs: audit.ArtifactDoc, Run: checkJavaScriptFrameworks},
		{Name: "rendered_content_parity", Category: cat, Needs: audit.ArtifactRendered, Run: checkRenderedContentParity},
		{Name: "console_errors", Category: cat, Needs: audit.ArtifactRendered, Run: checkConsoleErrors},
		{Name: "serp_features", Category: cat, Needs: audit.ArtifactDoc, Run: checkSERPFeatures},
		{Name: "serp_presence", Category: cat, Needs: audit.ArtifactDoc, Run: checkSERPPresence(deps.SERP)},
		{Name: "semantic_analysis", Category: cat, Needs: audit.ArtifactDoc, Run: checkSemanticAnalysis},
		{Name: "content_freshness", Category: cat, Needs: audit.ArtifactDoc, Run: checkContentFreshness},
		{Name: "entity_recognition", Category: cat, Needs: audit.ArtifactDoc, Run: checkEntityRecognition},
		{Name: "internationalization", Category: cat, Needs: audit.ArtifactDoc, Run: checkInternationalization},
		{Name: "page_segmentation", Category: cat, Needs: audit.ArtifactDoc, Run: checkPageSegmentation},
		{Name: "serp_potential", Category: cat, Needs: audit.ArtifactDoc, Run: checkSERPPotential(deps.Thresholds)},
	}
}

// frameworkSignatures map markup fingerprints to framework names. The
// shell flag marks frameworks that commonly ship empty client-rendered
// shells.
var frameworkSignatures = []struct {
	name  string
	shell bool
	re    *regexp.Regexp
}{
	{"Next.js", true, regexp.MustCompile(`__NEXT_DATA__|/_next/`)},
	{"Nuxt", true, regexp.MustCompile(`__NUXT__|nuxt-link`)},
	{"Gatsby", false, regexp.MustCompile(`___gatsby`)},
	{"React", true, regexp.MustCompile(`react(\.production|\.development)?(\.min)?\.js|react-dom|data-reactroot`)},
	{"Angular", true, regexp.MustCompile(`angular(\.min)?\.js|ng-app|ng-controller|ng-version`)},
	{"Vue", true, regexp.MustCompile(`vue(\.runtime)?(\.global)?(\.min)?\.js|data-v-app|__vue`)},
	{"jQuery", false, regexp.MustCompile(`jquery[-.0-9]*(\.min)?\.js`)},
}

func checkJavaScriptFrameworks(_ context.Context, in *audit.Input) *models.CheckResult {
	var detected []string
	shellRisk := false
	for _, sig := range frameworkSignatures {
		if sig.re.MatchString(in.Doc.HTML) {
			detected = append(detected, sig.name)
			if sig.shell {
				shellRisk = true
			}
		}
	}

	if len(detected) == 0 {
		return info("No JavaScript framework detected")
	}

	names := strings.Join(detected, ", ")
	var r *models.CheckResult
	if shellRisk && in.Doc.WordCount() < 50 {
		r = warn("%s detected but the raw HTML is nearly empty; ensure server-side rendering", names)
	} else {
		r = good("%s detected; content is present without JavaScript", names)
	}
	r.Value = map[string]any{"frameworks": detected}
	return r
}

// structureParityThreshold is the Hamming distance above which the raw
// and rendered markup are considered structurally different even when
// the text content survives.
const structureParityThreshold = 12

func checkRenderedContentParity(_ context.Context, in *audit.Input) *models.CheckResult {
	if in.Doc == nil {
		return info("Raw HTML was not parseable; nothing to compare")
	}

	rawWords := in.Doc.WordCount()
	renderedWords := in.Rendered.WordCount()

	r := compareParity(in.Doc.Text, in.Rendered.Text, rawWords, renderedWords)

	structDist := simhash.Distance(
		simhash.StructureFingerprint(in.Doc.HTML),
		simhash.StructureFingerprint(in.Rendered.HTML),
	)
	if r.Status == models.StatusGood && structDist > structureParityThreshold {
		r = good("Text content matches the raw HTML, though JavaScript restructures the markup (structure distance %d)", structDist)
	}

	r.Value = map[string]any{
		"raw_words":          rawWords,
		"rendered_words":     renderedWords,
		"structure_distance": structDist,
	}
	return r
}

func compareParity(rawText, renderedText string, rawWords, renderedWords int) *models.CheckResult {
	if rawWords < 50 && renderedWords >= 200 {
		return warn("Content requires JavaScript: raw HTML has %d words, rendered page has %d", rawWords, renderedWords)
	}

	a := simhash.Fingerprint(rawText)
	b := simhash.Fingerprint(renderedText)
	dist := simhash.Distance(a, b)
	if simhash.Similar(a, b, 8) {
		return good("Rendered content matches the raw HTML (fingerprint distance %d)", dist)
	}
	return warn("Rendered text diverges from the raw HTML (fingerprint distance %d); key content may require JavaScript", dist)
}

func checkConsoleErrors(_ context.Context, in *audit.Input) *models.CheckResult {
	if in.Snapshot == nil {
		return info("No render telemetry available")
	}

	errs := in.Snapshot.ConsoleErrors
	failed := in.Snapshot.FailedRequests
	if len(errs) == 0 && len(failed) == 0 {
		return good("No console errors or failed requests during render")
	}

	r := warn("%s and %s during render",
		plural(len(errs), "console error"), plural(len(failed), "failed request"))
	r.Value = map[string]any{
		"console_errors":  firstN(errs, 5),
		"failed_requests": firstN(failed, 5),
	}
	return r
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

var stepHeadingRe = regexp.MustCompile(`(?i)^(step\b|how to\b)`)

func checkSERPFeatures(_ context.Context, in *audit.Input) *models.CheckResult {
	q := in.Doc.Query

	var signals []string
	if q.Find("ul, ol").Length() > 0 {
		signals = append(signals, "list content")
	}
	if q.Find("table").Length() > 0 {
		signals = append(signals, "tabular data")
	}

	steps := 0
	questions := 0
	for _, h := range in.Doc.Headings {
		if stepHeadingRe.MatchString(h.Text) {
			steps++
		}
		if strings.HasSuffix(strings.TrimSpace(h.Text), "?") {
			questions++
		}
	}
	if steps > 0 {
		signals = append(signals, "step-by-step structure")
	}

	faq := questions >= 2
	for _, t := range schemaTypes(in.Doc.JSONLD) {
		if t == "FAQPage" {
			faq = true
			break
		}
	}
	if faq {
		signals = append(signals, "FAQ content")
	}

	if q.Find("video").Length() > 0 || hasVideoEmbed(q) {
		signals = append(signals, "video content")
	}

	if len(signals) == 0 {
		return info("No SERP feature signals on the page")
	}
	r := good("SERP feature readiness: %s", strings.Join(signals, ", "))
	r.Value = map[string]any{"signals": signals}
	return r
}

func hasVideoEmbed(q *goquery.Document) bool {
	found := false
	q.Find("iframe[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		lower := strings.ToLower(src)
		for _, host := range videoEmbedHosts {
			if strings.Contains(lower, host) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

func checkSERPPresence(analyzer SERPAnalyzer) audit.CheckFunc {
	return func(ctx context.Context, in *audit.Input) *models.CheckResult {
		if analyzer == nil || !analyzer.Configured() {
			return info("SERP analysis not configured; set SEOLENS_SERP_API_KEY to enable")
		}
		if len(in.Keywords) == 0 {
			return info("No target keywords supplied for SERP analysis")
		}

		query := in.Keywords[0]
		analysis, err := analyzer.Features(ctx, query)
		if err != nil {
			return info("SERP data unavailable: %s", capabilityErrText(err))
		}

		f := analysis.Features
		present := presentFeatures(f)
		summary := "none"
		if len(present) > 0 {
			summary = strings.Join(present, ", ")
		}

		var opportunities []string
		for _, op := range analysis.Opportunities {
			opportunities = append(opportunities, op.Recommendation)
		}

		r := info("SERP features for %q: %s", query, summary)
		r.Value = map[string]any{
			"query":         query,
			"features":      present,
			"opportunities": opportunities,
		}
		return r
	}
}

func presentFeatures(f serp.Features) []string {
	var out []string
	for _, fc := range []struct {
		name string
		on   bool
	}{
		{"featured snippet", f.FeaturedSnippet},
		{"knowledge graph", f.KnowledgeGraph},
		{"local pack", f.LocalPack},
		{"top stories", f.TopStories},
		{"images", f.Images},
		{"videos", f.Videos},
		{"shopping", f.Shopping},
		{"FAQ", f.FAQ},
	} {
		if fc.on {
			out = append(out, fc.name)
		}
	}
	return out
}

func checkSemanticAnalysis(_ context.Context, in *audit.Input) *models.CheckResult {
	top := htmldoc.TopKeywords(in.Doc.Words, 5)
	if len(top) == 0 {
		return info("No text content to analyze")
	}

	var headingText strings.Builder
	for _, h := range in.Doc.Headings {
		if h.Level <= 3 {
			headingText.WriteString(strings.ToLower(h.Text))
			headingText.WriteByte(' ')
		}
	}
	headings := headingText.String()

	var covered, missing []string
	for _, kc := range top {
		if strings.Contains(headings, kc.Word) {
			covered = append(covered, kc.Word)
		} else {
			missing = append(missing, kc.Word)
		}
	}

	var r *models.CheckResult
	if pct(len(covered), len(top)) >= 60 {
		r = good("Headings cover the page's dominant terms (%d of %d)", len(covered), len(top))
	} else {
		r = warn("Headings cover only %d of %d dominant terms", len(covered), len(top))
	}
	r.Value = map[string]any{"covered": covered, "missing": missing}
	return r
}

var updateNoticeRe = regexp.MustCompile(`(?i)\b(last updated|updated on|published on|reviewed on)\b`)

// freshnessMetaKeys are checked in order for a parseable document date.
var freshnessMetaKeys = []string{
	"article:modified_time", "article:published_time",
	"last-modified", "date", "dcterms.modified", "revised",
}

func checkContentFreshness(_ context.Context, in *audit.Input) *models.CheckResult {
	now := time.Now()

	for _, key := range freshnessMetaKeys {
		v := in.Doc.Meta[key]
		if v == "" {
			continue
		}
		stamp, ok := parseDateMeta(v)
		if !ok {
			continue
		}
		age := now.Sub(stamp)
		r := good("Content dated %s (%s ago)", stamp.Format("2006-01-02"), humanAge(age))
		if age > 365*24*time.Hour {
			r = warn("Content is over a year old (dated %s)", stamp.Format("2006-01-02"))
		}
		r.Value = map[string]any{"source": key, "date": stamp.Format("2006-01-02")}
		return r
	}

	if updateNoticeRe.MatchString(in.Doc.Text) {
		return good("Freshness signals present (update notice in the text)")
	}

	year := strconv.Itoa(now.Year())
	if strings.Contains(in.Doc.Text, year) {
		return good("Freshness signals present (mentions %s)", year)
	}
	prev := strconv.Itoa(now.Year() - 1)
	if strings.Contains(in.Doc.Text, prev) {
		return warn("Only last year (%s) is mentioned; refresh the content", prev)
	}

	return warn("No freshness signals found")
}

func parseDateMeta(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	if len(v) >= 10 {
		if t, err := time.Parse("2006-01-02", v[:10]); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func humanAge(d time.Duration) string {
	days := int(d.Hours() / 24)
	switch {
	case days < 1:
		return "less than a day"
	case days < 60:
		return plural(days, "day")
	default:
		return plural(days/30, "month")
	}
}

// entityTypes are the schema.org types treated as named entities.
var entityTypes = []string{"Person", "Organization", "LocalBusiness", "Product", "Event", "Place"}

// declaredEntities lists the entity types a page declares, in a fixed
// order, across JSON-LD, microdata, and RDFa markup.
func declaredEntities(doc *htmldoc.Doc) []string {
	found := make(map[string]struct{})
	mark := func(t string) {
		for _, et := range entityTypes {
			if strings.EqualFold(t, et) {
				found[et] = struct{}{}
			}
		}
	}

	for _, t := range schemaTypes(doc.JSONLD) {
		mark(t)
	}

	// Microdata itemtype carries a full schema.org URL; RDFa typeof is a
	// bare type name.
	doc.Query.Find("[itemtype]").Each(func(_ int, s *goquery.Selection) {
		v, _ := s.Attr("itemtype")
		if i := strings.LastIndex(v, "/"); i >= 0 {
			v = v[i+1:]
		}
		mark(strings.TrimSpace(v))
	})
	doc.Query.Find("[typeof]").Each(func(_ int, s *goquery.Selection) {
		v, _ := s.Attr("typeof")
		for _, t := range strings.Fields(v) {
			mark(t)
		}
	})

	var out []string
	for _, et := range entityTypes {
		if _, ok := found[et]; ok {
			out = append(out, et)
		}
	}
	return out
}

func checkEntityRecognition(_ context.Context, in *audit.Input) *models.CheckResult {
	entities := declaredEntities(in.Doc)
	if len(entities) == 0 {
		return info("No named entities declared in structured data")
	}
	r := good("Entities declared: %s", strings.Join(entities, ", "))
	r.Value = map[string]any{"entities": entities}
	return r
}

func checkInternationalization(_ context.Context, in *audit.Input) *models.CheckResult {
	lang := in.Doc.Lang
	hreflang := in.Doc.Hreflang

	var issues []string
	if lang == "" {
		issues = append(issues, "html lang attribute missing")
	}

	if len(hreflang) > 0 {
		hasDefault := false
		langListed := lang == ""
		base := strings.ToLower(strings.SplitN(lang, "-", 2)[0])
		for _, hl := range hreflang {
			l := strings.ToLower(hl.Lang)
			if l == "x-default" {
				hasDefault = true
			}
			if base != "" && strings.HasPrefix(l, base) {
				langListed = true
			}
		}
		if !hasDefault {
			issues = append(issues, "hreflang set lacks x-default")
		}
		if !langListed {
			issues = append(issues, fmt.Sprintf("html lang %q is not among the hreflang alternates", lang))
		}
	}

	var okMsg string
	if len(hreflang) > 0 {
		okMsg = fmt.Sprintf("Language declared (%s) with %s", lang, plural(len(hreflang), "hreflang alternate"))
	} else {
		okMsg = fmt.Sprintf("Language declared (%s); single-language page", lang)
	}

	r := issueResult(issues, "%s", okMsg)
	if r.Value == nil {
		r.Value = map[string]any{}
	}
	r.Value["lang"] = lang
	r.Value["alternates"] = len(hreflang)
	if cl := in.Doc.Meta["content-language"]; cl != "" {
		r.Value["content_language"] = cl
	}
	return r
}

var (
	selMain     = cascadia.MustCompile("main, article, [role='main']")
	selLandmark = cascadia.MustCompile("header, footer, nav, aside, section, article, main")
)

func checkPageSegmentation(_ context.Context, in *audit.Input) *models.CheckResult {
	root := in.Doc.Node()
	if root == nil {
		return info("Document tree unavailable")
	}
	total := in.Doc.WordCount()
	if total == 0 {
		return info("No text content to segment")
	}

	mainNode := selMain.MatchFirst(root)
	landmarks := len(selLandmark.MatchAll(root))

	if mainNode == nil {
		return warn("No main or article landmark found")
	}

	mainWords := len(htmldoc.Words(nodeText(mainNode)))
	ratio := pct(mainWords, total)

	var issues []string
	if ratio < 50 {
		issues = append(issues, fmt.Sprintf("the main landmark holds only %d%% of the text", int(ratio)))
	}
	if landmarks < 3 {
		issues = append(issues, fmt.Sprintf("only %s", plural(landmarks, "semantic landmark")))
	}

	r := issueResult(issues, "Clear page segmentation (%s, %d%% of text in the main landmark)",
		plural(landmarks, "semantic landmark"), int(ratio))
	if r.Value == nil {
		r.Value = map[string]any{}
	}
	r.Value["landmarks"] = landmarks
	r.Value["main_ratio_pct"] = int(ratio)
	return r
}

// nodeText collects the text content of a node subtree, skipping script
// and style blocks.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode {
			switch node.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteByte(' ')
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
