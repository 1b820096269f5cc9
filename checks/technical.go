package checks

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/seolens/seolens/audit"
	"github.com/seolens/seolens/config"
	"github.com/seolens/seolens/fetch"
	"github.com/seolens/seolens/htmldoc"
	"github.com/seolens/seolens/models"
	"github.com/seolens/seolens/pagespeed"
)

const (
	// robotsBodyLimit caps the robots.txt download.
	robotsBodyLimit = 512 * 1024
	// sitemapBodyLimit caps the sitemap download; only the prologue is
	// inspected.
	sitemapBodyLimit = 1024 * 1024
	// assetBodyLimit caps sampled CSS/JS downloads.
	assetBodyLimit = 256 * 1024
	// assetSampleSize is how many same-site assets a check samples.
	assetSampleSize = 5
)

func technicalChecks(deps Deps) []audit.Descriptor {
	cat := models.CategoryTechnical
	return []audit.Descriptor{
		{Name: "status_code", Category: cat, Needs: audit.ArtifactPage, Run: checkStatusCode},
		{Name: "ssl_certificate", Category: cat, Needs: audit.ArtifactPage, Run: checkSSLCertificate},
		{Name: "robots_txt", Category: cat, Needs: audit.ArtifactPage, Run: checkRobotsTxt(deps.Probe)},
		{Name: "sitemap", Category: cat, Needs: audit.ArtifactPage, Run: checkSitemap(deps.Probe)},
		{Name: "canonical_tag", Category: cat, Needs: audit.ArtifactDoc, Run: checkCanonicalTag},
		{Name: "meta_robots", Category: cat, Needs: audit.ArtifactDoc, Run: checkMetaRobots},
		{Name: "url_structure", Category: cat, Needs: audit.ArtifactPage, Run: checkURLStructure(deps.Thresholds)},
		{Name: "http_headers", Category: cat, Needs: audit.ArtifactPage, Run: checkHTTPHeaders},
		{Name: "security_headers", Category: cat, Needs: audit.ArtifactPage, Run: checkSecurityHeaders},
		{Name: "cache_headers", Category: cat, Needs: audit.ArtifactPage, Run: checkCacheHeaders},
		{Name: "resource_compression", Category: cat, Needs: audit.ArtifactDoc, Run: checkResourceCompression(deps.Probe)},
		{Name: "browser_caching", Category: cat, Needs: audit.ArtifactDoc, Run: checkBrowserCaching(deps.Probe)},
		{Name: "minified_resources", Category: cat, Needs: audit.ArtifactDoc, Run: checkMinifiedResources(deps.Probe)},
		{Name: "lazy_loading", Category: cat, Needs: audit.ArtifactDoc, Run: checkLazyLoading},
		{Name: "mobile_friendliness", Category: cat, Needs: audit.ArtifactDoc, Run: checkMobileFriendliness},
		{Name: "page_speed", Category: cat, Needs: audit.ArtifactPage, Run: checkPageSpeed(deps.PageSpeed, deps.Thresholds)},
	}
}

func checkStatusCode(_ context.Context, in *audit.Input) *models.CheckResult {
	code := in.Page.StatusCode
	var r *models.CheckResult
	switch {
	case code >= 200 && code < 300:
		r = good("Status code: %d", code)
	case code >= 300 && code < 400:
		r = warn("Status code: %d (direct requests are redirected)", code)
	default:
		r = fail("Status code: %d", code)
	}
	r.Value = map[string]any{"status_code": code}
	return r
}

func checkSSLCertificate(ctx context.Context, in *audit.Input) *models.CheckResult {
	if in.URL.Scheme != "https" {
		return fail("Page is not served over HTTPS")
	}

	host := in.URL.Hostname()
	port := in.URL.Port()
	if port == "" {
		port = "443"
	}

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: 10 * time.Second},
		Config:    &tls.Config{ServerName: host},
	}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return warn("Could not verify the TLS certificate: %v", err)
	}
	defer conn.Close()

	state := conn.(*tls.Conn).ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return warn("Server presented no TLS certificate")
	}

	leaf := state.PeerCertificates[0]
	days := int(time.Until(leaf.NotAfter).Hours() / 24)

	var r *models.CheckResult
	switch {
	case days < 0:
		r = fail("TLS certificate expired %s ago", plural(-days, "day"))
	case days <= 14:
		r = warn("TLS certificate expires in %s", plural(days, "day"))
	default:
		r = good("TLS certificate valid for another %s", plural(days, "day"))
	}
	r.Value = map[string]any{
		"issuer":    leaf.Issuer.CommonName,
		"not_after": leaf.NotAfter.UTC().Format(time.RFC3339),
		"days_left": days,
	}
	return r
}

func checkRobotsTxt(probe Prober) audit.CheckFunc {
	return func(ctx context.Context, in *audit.Input) *models.CheckResult {
		if probe == nil {
			return info("Secondary probing is disabled")
		}
		robotsURL := fetch.BaseURL(in.URL) + "/robots.txt"

		status, body, err := probe.GetBody(ctx, robotsURL, robotsBodyLimit)
		if err != nil {
			return warn("Could not fetch robots.txt: %v", err)
		}
		if status == http.StatusNotFound {
			return warn("No robots.txt found")
		}
		if status != http.StatusOK {
			return warn("robots.txt returned status %d", status)
		}

		data, err := robotstxt.FromStatusAndBytes(status, body)
		if err != nil {
			return warn("robots.txt could not be parsed: %v", err)
		}

		path := in.URL.RequestURI()
		r := good("robots.txt found and this page is crawlable")
		if !data.TestAgent(path, "*") {
			r = fail("robots.txt disallows this page for all user agents")
		}
		r.Value = map[string]any{
			"url":      robotsURL,
			"sitemaps": data.Sitemaps,
		}
		return r
	}
}

func checkSitemap(probe Prober) audit.CheckFunc {
	return func(ctx context.Context, in *audit.Input) *models.CheckResult {
		if probe == nil {
			return info("Secondary probing is disabled")
		}
		base := fetch.BaseURL(in.URL)

		smURL := base + "/sitemap.xml"
		sm, err := probe.GetResource(ctx, smURL, sitemapBodyLimit)
		if err == nil && sm.Status == http.StatusOK && looksLikeSitemap(sm.Body, sm.Header.Get("Content-Type")) {
			r := good("Sitemap found at /sitemap.xml")
			r.Value = map[string]any{"url": smURL}
			return r
		}

		// Fall back to Sitemap: directives in robots.txt.
		status, body, err := probe.GetBody(ctx, base+"/robots.txt", robotsBodyLimit)
		if err == nil && status == http.StatusOK {
			if data, perr := robotstxt.FromBytes(body); perr == nil && len(data.Sitemaps) > 0 {
				first := data.Sitemaps[0]
				if st, perr := probe.Probe(ctx, first); perr == nil && st == http.StatusOK {
					r := good("Sitemap found via robots.txt: %s", first)
					r.Value = map[string]any{"url": first, "declared": len(data.Sitemaps)}
					return r
				}
				return warn("robots.txt references a sitemap at %s but it is unreachable", first)
			}
		}

		return warn("No sitemap.xml found")
	}
}

// looksLikeSitemap accepts an XML content type or an XML prologue in the
// body.
func looksLikeSitemap(body []byte, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "xml") {
		return true
	}
	head := bytes.TrimSpace(body)
	if len(head) > 256 {
		head = head[:256]
	}
	for _, marker := range [][]byte{[]byte("<?xml"), []byte("<urlset"), []byte("<sitemapindex")} {
		if bytes.Contains(head, marker) {
			return true
		}
	}
	return false
}

func checkCanonicalTag(_ context.Context, in *audit.Input) *models.CheckResult {
	canonical := in.Doc.Canonical
	if canonical == "" {
		return warn("No canonical URL specified")
	}

	var r *models.CheckResult
	if canonicalMatches(canonical, in.URL) {
		r = good("Canonical tag is self-referential")
	} else {
		r = warn("Canonical points to a different URL: %s", canonical)
	}
	r.Value = map[string]any{"canonical": canonical}
	return r
}

// canonicalMatches compares a canonical href to the page URL, ignoring
// scheme case, default ports, trailing slashes, and fragments.
func canonicalMatches(canonical string, pageURL *url.URL) bool {
	cu, err := url.Parse(canonical)
	if err != nil {
		return false
	}
	norm := func(u *url.URL) string {
		host := strings.ToLower(u.Hostname())
		path := strings.TrimSuffix(u.EscapedPath(), "/")
		s := strings.ToLower(u.Scheme) + "://" + host + path
		if u.RawQuery != "" {
			s += "?" + u.RawQuery
		}
		return s
	}
	return norm(cu) == norm(pageURL)
}

func checkMetaRobots(_ context.Context, in *audit.Input) *models.CheckResult {
	content := strings.ToLower(strings.TrimSpace(in.Doc.MetaContent("robots")))
	if content == "" {
		return good("No meta robots restrictions (page defaults to index, follow)")
	}

	var blocked []string
	if strings.Contains(content, "noindex") {
		blocked = append(blocked, "noindex")
	}
	if strings.Contains(content, "nofollow") {
		blocked = append(blocked, "nofollow")
	}

	var r *models.CheckResult
	if len(blocked) > 0 {
		r = warn("Meta robots restricts crawling: %s", strings.Join(blocked, ", "))
	} else {
		r = good("Meta robots: %s", content)
	}
	r.Value = map[string]any{"content": content}
	return r
}

func checkURLStructure(th config.Thresholds) audit.CheckFunc {
	return func(_ context.Context, in *audit.Input) *models.CheckResult {
		full := in.URL.String()
		path := in.URL.Path

		var issues []string
		if len(full) > th.URLMaxLength {
			issues = append(issues, fmt.Sprintf("URL is %d characters long (over %d)", len(full), th.URLMaxLength))
		}
		if path != strings.ToLower(path) {
			issues = append(issues, "path contains uppercase letters")
		}
		if strings.Contains(path, "_") {
			issues = append(issues, "path contains underscores")
		}
		if depth := pathDepth(path); depth > 4 {
			issues = append(issues, fmt.Sprintf("path nests %d levels deep", depth))
		}
		if n := len(in.URL.Query()); n > 2 {
			issues = append(issues, fmt.Sprintf("%d query parameters", n))
		}

		r := issueResult(issues, "URL structure looks clean")
		if r.Value == nil {
			r.Value = map[string]any{}
		}
		r.Value["length"] = len(full)
		return r
	}
}

func pathDepth(path string) int {
	depth := 0
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			depth++
		}
	}
	return depth
}

func checkHTTPHeaders(_ context.Context, in *audit.Input) *models.CheckResult {
	if xr := strings.ToLower(in.Page.Header("X-Robots-Tag")); strings.Contains(xr, "noindex") {
		r := fail("X-Robots-Tag header blocks indexing: %s", xr)
		r.Value = map[string]any{"x_robots_tag": xr}
		return r
	}

	var issues []string
	ct := in.Page.Header("Content-Type")
	switch {
	case ct == "":
		issues = append(issues, "no Content-Type header")
	case !strings.Contains(strings.ToLower(ct), "charset"):
		issues = append(issues, "Content-Type does not declare a charset")
	}
	if in.Page.Header("Cache-Control") == "" {
		issues = append(issues, "no Cache-Control header")
	}

	return issueResult(issues, "Response headers look fine")
}

// securityHeaders are checked for presence; coverage below 60% is flagged.
var securityHeaders = []string{
	"Strict-Transport-Security",
	"Content-Security-Policy",
	"X-Content-Type-Options",
	"X-Frame-Options",
}

func checkSecurityHeaders(_ context.Context, in *audit.Input) *models.CheckResult {
	var present, missing []string
	for _, h := range securityHeaders {
		if in.Page.Header(h) != "" {
			present = append(present, h)
		} else {
			missing = append(missing, h)
		}
	}

	var r *models.CheckResult
	if pct(len(present), len(securityHeaders)) >= 60 {
		r = good("Security headers present (%d of %d)", len(present), len(securityHeaders))
	} else {
		r = warn("Missing security headers: %s", strings.Join(missing, ", "))
	}
	r.Value = map[string]any{"present": present, "missing": missing}
	return r
}

var cacheHeaders = []string{"Cache-Control", "Expires", "ETag", "Last-Modified"}

func checkCacheHeaders(_ context.Context, in *audit.Input) *models.CheckResult {
	var present, missing []string
	for _, h := range cacheHeaders {
		if in.Page.Header(h) != "" {
			present = append(present, h)
		} else {
			missing = append(missing, h)
		}
	}

	var r *models.CheckResult
	if pct(len(present), len(cacheHeaders)) >= 50 {
		r = good("Caching headers configured (%s)", strings.Join(present, ", "))
	} else {
		r = warn("Missing caching headers: %s", strings.Join(missing, ", "))
	}
	r.Value = map[string]any{"present": present, "missing": missing}
	return r
}

func checkResourceCompression(probe Prober) audit.CheckFunc {
	return func(ctx context.Context, in *audit.Input) *models.CheckResult {
		pageEnc := in.Page.ContentEncoding
		if pageEnc == "" {
			if len(in.Page.Body) <= 10*1024 {
				return info("Page served uncompressed but is only %d KB", len(in.Page.Body)/1024)
			}
			return warn("Text compression is not enabled on the page")
		}

		if probe == nil {
			return good("Compression enabled (%s)", pageEnc)
		}

		assets := sampleSameSite(in.URL, 3, in.Doc.Stylesheets, in.Doc.Scripts)
		var uncompressed []string
		checked := 0
		for _, u := range assets {
			asset, err := probe.GetResource(ctx, u, assetBodyLimit)
			if err != nil || asset.Status >= 400 {
				continue
			}
			checked++
			if asset.ContentEncoding == "" {
				uncompressed = append(uncompressed, u)
			}
		}

		var r *models.CheckResult
		switch {
		case checked == 0:
			r = good("Compression enabled (%s)", pageEnc)
		case len(uncompressed) == 0:
			r = good("Compression enabled (%s) on the page and %d sampled assets", pageEnc, checked)
		default:
			r = warn("Page is compressed but %d of %d sampled assets are not", len(uncompressed), checked)
			r.Value = map[string]any{"uncompressed": uncompressed}
		}
		if r.Value == nil {
			r.Value = map[string]any{}
		}
		r.Value["encoding"] = pageEnc
		return r
	}
}

func checkBrowserCaching(probe Prober) audit.CheckFunc {
	return func(ctx context.Context, in *audit.Input) *models.CheckResult {
		if probe == nil {
			return info("Secondary probing is disabled")
		}

		var imageURLs []string
		for _, img := range in.Doc.Images {
			imageURLs = append(imageURLs, img.Src)
		}
		assets := sampleSameSite(in.URL, assetSampleSize, in.Doc.Stylesheets, in.Doc.Scripts, imageURLs)
		if len(assets) == 0 {
			return info("No same-site static assets to sample")
		}

		var total int64
		sampled := 0
		for _, u := range assets {
			status, hdr, err := probe.Head(ctx, u)
			if err != nil || status >= 400 {
				continue
			}
			sampled++
			total += cacheLifetime(hdr)
		}
		if sampled == 0 {
			return info("Could not sample static assets for cache headers")
		}

		avg := time.Duration(total/int64(sampled)) * time.Second
		var r *models.CheckResult
		switch {
		case avg >= 30*24*time.Hour:
			r = good("Browser caching well configured (average lifetime %s)", humanDuration(avg))
		case avg >= 7*24*time.Hour:
			r = good("Browser caching configured (average lifetime %s)", humanDuration(avg))
		case avg > 0:
			r = warn("Static assets use short cache lifetimes (average %s)", humanDuration(avg))
		default:
			r = warn("Static assets are served without cache lifetimes")
		}
		r.Value = map[string]any{
			"sampled":     sampled,
			"avg_seconds": int64(avg / time.Second),
		}
		return r
	}
}

// cacheLifetime extracts the effective freshness lifetime in seconds from
// Cache-Control max-age/s-maxage, falling back to the Expires header.
func cacheLifetime(hdr http.Header) int64 {
	cc := hdr.Get("Cache-Control")
	for _, directive := range strings.Split(cc, ",") {
		directive = strings.TrimSpace(strings.ToLower(directive))
		for _, prefix := range []string{"s-maxage=", "max-age="} {
			if strings.HasPrefix(directive, prefix) {
				if n, err := strconv.ParseInt(directive[len(prefix):], 10, 64); err == nil && n > 0 {
					return n
				}
			}
		}
	}
	if exp := hdr.Get("Expires"); exp != "" {
		if t, err := http.ParseTime(exp); err == nil {
			if d := time.Until(t); d > 0 {
				return int64(d / time.Second)
			}
		}
	}
	return 0
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= 24*time.Hour:
		return plural(int(d/(24*time.Hour)), "day")
	case d >= time.Hour:
		return plural(int(d/time.Hour), "hour")
	case d >= time.Minute:
		return plural(int(d/time.Minute), "minute")
	default:
		return plural(int(d/time.Second), "second")
	}
}

func checkMinifiedResources(probe Prober) audit.CheckFunc {
	return func(ctx context.Context, in *audit.Input) *models.CheckResult {
		if probe == nil {
			return info("Secondary probing is disabled")
		}

		assets := sampleSameSite(in.URL, assetSampleSize, in.Doc.Stylesheets, in.Doc.Scripts)
		if len(assets) == 0 {
			return info("No same-site CSS or JS to sample")
		}

		minified := 0
		var unminified []string
		for _, u := range assets {
			if strings.Contains(u, ".min.") {
				minified++
				continue
			}
			asset, err := probe.GetResource(ctx, u, assetBodyLimit)
			if err != nil || asset.Status >= 400 {
				continue
			}
			if isMinified(asset.Body) {
				minified++
			} else {
				unminified = append(unminified, u)
			}
		}

		checked := minified + len(unminified)
		if checked == 0 {
			return info("Could not sample CSS or JS assets")
		}

		var r *models.CheckResult
		if pct(minified, checked) >= 70 {
			r = good("%d of %d sampled assets are minified", minified, checked)
		} else {
			r = warn("Unminified assets detected (%d of %d sampled)", len(unminified), checked)
			r.Value = map[string]any{"unminified": unminified}
		}
		return r
	}
}

// isMinified treats low newline density as the minification signal: under
// 5 newlines total, or very long average lines.
func isMinified(body []byte) bool {
	if len(body) == 0 {
		return true
	}
	newlines := bytes.Count(body, []byte("\n"))
	if newlines < 5 {
		return true
	}
	return len(body)/(newlines+1) > 200
}

// lazyLibraries are script path fragments of common lazy-loading libraries.
var lazyLibraries = []string{"lazysizes", "lozad", "lazyload"}

func checkLazyLoading(_ context.Context, in *audit.Input) *models.CheckResult {
	imgs := in.Doc.Images
	if len(imgs) == 0 {
		return info("No images on the page")
	}
	if len(imgs) < 3 {
		return good("Only %s; lazy loading matters little", plural(len(imgs), "image"))
	}

	lazy := 0
	for _, img := range imgs {
		if img.LazyLoaded() {
			lazy++
		}
	}
	if lazy > 0 {
		r := good("Lazy loading on %d of %d images", lazy, len(imgs))
		r.Value = map[string]any{"lazy": lazy, "total": len(imgs)}
		return r
	}

	for _, script := range in.Doc.Scripts {
		lower := strings.ToLower(script)
		for _, lib := range lazyLibraries {
			if strings.Contains(lower, lib) {
				return good("Lazy loading library detected (%s)", lib)
			}
		}
	}

	return warn("No lazy loading on %d images", len(imgs))
}

func checkMobileFriendliness(_ context.Context, in *audit.Input) *models.CheckResult {
	score := 0
	components := map[string]int{}

	viewport := strings.ToLower(in.Doc.MetaContent("viewport"))
	if strings.Contains(viewport, "width=device-width") {
		score += 40
		components["viewport"] = 40
	}

	styleText := in.Doc.Query.Find("style").Text()
	if strings.Contains(styleText, "@media") {
		score += 30
		components["media_queries"] = 30
	}

	for _, img := range in.Doc.Images {
		if img.Srcset != "" {
			score += 20
			components["responsive_images"] = 20
			break
		}
	}

	if !strings.Contains(viewport, "user-scalable=no") {
		score += 10
		components["scalable"] = 10
	}

	var r *models.CheckResult
	switch {
	case score >= 70:
		r = good("Mobile friendliness score %d/100", score)
	case score >= 40:
		r = warn("Mobile friendliness score %d/100", score)
	default:
		r = fail("Mobile friendliness score %d/100", score)
	}
	r.Value = map[string]any{"score": score, "components": components}
	return r
}

func checkPageSpeed(ps PageSpeedAnalyzer, th config.Thresholds) audit.CheckFunc {
	return func(ctx context.Context, in *audit.Input) *models.CheckResult {
		if ps == nil || !ps.Configured() {
			return info("PageSpeed not configured; set SEOLENS_PAGESPEED_API_KEY to enable")
		}

		result, err := ps.Analyze(ctx, in.Page.FinalURL, pagespeed.StrategyMobile)
		if err != nil {
			return info("PageSpeed unavailable: %s", capabilityErrText(err))
		}

		perf := int(math.Round(result.PerformanceScore()))
		var cwv []string
		if result.LCPSeconds > th.LCPSeconds {
			cwv = append(cwv, fmt.Sprintf("LCP %.1fs (target %.1fs)", result.LCPSeconds, th.LCPSeconds))
		}
		if result.FIDMillis > th.FIDMillis {
			cwv = append(cwv, fmt.Sprintf("FID %.0fms (target %.0fms)", result.FIDMillis, th.FIDMillis))
		}
		if result.CLS > th.CLSScore {
			cwv = append(cwv, fmt.Sprintf("CLS %.2f (target %.2f)", result.CLS, th.CLSScore))
		}

		var r *models.CheckResult
		switch {
		case perf >= 90:
			r = good("PageSpeed performance %d/100", perf)
		case perf >= 50:
			r = warn("PageSpeed performance %d/100", perf)
		default:
			r = fail("PageSpeed performance %d/100", perf)
		}
		if len(cwv) > 0 {
			r.Message += "; " + strings.Join(cwv, ", ")
		}

		var opportunities []string
		for i, op := range result.Opportunities {
			if i == 3 {
				break
			}
			opportunities = append(opportunities, op.Title)
		}
		r.Value = map[string]any{
			"performance":   perf,
			"scores":        result.Scores,
			"lcp_s":         result.LCPSeconds,
			"fid_ms":        result.FIDMillis,
			"cls":           result.CLS,
			"opportunities": opportunities,
		}
		return r
	}
}

// sampleSameSite picks up to n URLs from the given lists (in order) whose
// host shares the page's registrable domain.
func sampleSameSite(base *url.URL, n int, lists ...[]string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, raw := range list {
			if len(out) >= n {
				return out
			}
			u, err := url.Parse(raw)
			if err != nil {
				continue
			}
			if !htmldoc.SameSite(u.Hostname(), base.Hostname()) {
				continue
			}
			if _, dup := seen[raw]; dup {
				continue
			}
			seen[raw] = struct{}{}
			out = append(out, raw)
		}
	}
	return out
}
