package htmldoc

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"
)

// Link is a hyperlink with the attributes the link checks inspect.
type Link struct {
	Href     string `json:"href"`
	Text     string `json:"text"`
	Rel      string `json:"rel,omitempty"`
	Target   string `json:"target,omitempty"`
	Title    string `json:"title,omitempty"`
	Download bool   `json:"download,omitempty"`

	// HasImage is true when the anchor wraps an img element; ImageAlt
	// holds that image's alt text.
	HasImage bool   `json:"has_image,omitempty"`
	ImageAlt string `json:"image_alt,omitempty"`

	// Occurrences counts how many anchors on the page resolve to this
	// URL; duplicates are collapsed into one Link.
	Occurrences int `json:"occurrences"`
}

// Nofollow reports whether the link carries a nofollow rel token.
func (l Link) Nofollow() bool {
	return l.HasRel("nofollow")
}

// HasRel reports whether the link's rel attribute contains the given token.
func (l Link) HasRel(token string) bool {
	for _, tok := range strings.Fields(strings.ToLower(l.Rel)) {
		if tok == token {
			return true
		}
	}
	return false
}

// LinksResult separates page links by whether their host matches the page's.
type LinksResult struct {
	Internal []Link `json:"internal"`
	External []Link `json:"external"`
}

// Image is an image element with the attributes the multimedia checks inspect.
type Image struct {
	Src     string `json:"src"`
	Alt     string `json:"alt"`
	Loading string `json:"loading,omitempty"`
	DataSrc string `json:"data_src,omitempty"`
	Srcset  string `json:"srcset,omitempty"`
	Sizes   string `json:"sizes,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
}

// LazyLoaded reports whether the image opts into deferred loading.
func (i Image) LazyLoaded() bool {
	return i.Loading == "lazy" || i.DataSrc != ""
}

// Filename returns the last path segment of the image URL, without query.
func (i Image) Filename() string {
	u, err := url.Parse(i.Src)
	if err != nil {
		return ""
	}
	path := u.Path
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		path = path[idx+1:]
	}
	return path
}

// Format returns the lowercased extension of the image filename, or "".
func (i Image) Format() string {
	name := i.Filename()
	if idx := strings.LastIndex(name, "."); idx >= 0 && idx < len(name)-1 {
		return strings.ToLower(name[idx+1:])
	}
	return ""
}

// Heading is a single h1–h6 element in document order.
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// OGMetadata holds the Open Graph properties the social checks care about.
type OGMetadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	Type        string `json:"type,omitempty"`
	URL         string `json:"url,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
}

// HreflangLink is one link[rel=alternate][hreflang] entry.
type HreflangLink struct {
	Lang string `json:"lang"`
	Href string `json:"href"`
}

// SameSite reports whether two hostnames belong to the same registrable
// domain, so subdomain links (blog.example.com seen from example.com) count
// as internal. Hosts without a public suffix (IPs, localhost) fall back to
// exact comparison.
func SameSite(host, baseHost string) bool {
	h := strings.ToLower(host)
	b := strings.ToLower(baseHost)
	if h == b {
		return true
	}
	hd, err := publicsuffix.EffectiveTLDPlusOne(h)
	if err != nil {
		return false
	}
	bd, err := publicsuffix.EffectiveTLDPlusOne(b)
	if err != nil {
		return false
	}
	return hd == bd
}

// extractLinks separates anchors into internal and external based on whether
// their host shares the base URL's registrable domain. Relative hrefs are
// resolved, non-HTTP schemes dropped, and duplicates collapsed.
func extractLinks(doc *goquery.Document, base *url.URL) LinksResult {
	result := LinksResult{
		Internal: []Link{},
		External: []Link{},
	}

	// seen maps an absolute URL to the slice (+index) holding its Link, so
	// repeats bump Occurrences instead of appending.
	type slot struct {
		list *[]Link
		idx  int
	}
	seen := make(map[string]slot)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists || href == "" {
			return
		}

		resolved, err := base.Parse(href)
		if err != nil {
			return
		}

		// Skip fragments, javascript:, mailto:, tel: etc.
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}

		absURL := resolved.String()
		if sl, ok := seen[absURL]; ok {
			(*sl.list)[sl.idx].Occurrences++
			return
		}

		rel, _ := s.Attr("rel")
		target, _ := s.Attr("target")
		title, _ := s.Attr("title")
		_, download := s.Attr("download")
		link := Link{
			Href:        absURL,
			Text:        strings.TrimSpace(s.Text()),
			Rel:         rel,
			Target:      target,
			Title:       strings.TrimSpace(title),
			Download:    download,
			Occurrences: 1,
		}
		if img := s.Find("img").First(); img.Length() > 0 {
			link.HasImage = true
			alt, _ := img.Attr("alt")
			link.ImageAlt = strings.TrimSpace(alt)
		}

		if SameSite(resolved.Hostname(), base.Hostname()) {
			result.Internal = append(result.Internal, link)
			seen[absURL] = slot{list: &result.Internal, idx: len(result.Internal) - 1}
		} else {
			result.External = append(result.External, link)
			seen[absURL] = slot{list: &result.External, idx: len(result.External) - 1}
		}
	})

	return result
}

// extractImages returns image elements with absolute URLs, skipping data
// URIs and duplicates. Lazy images that carry only data-src (no src) are
// still collected, keyed by their deferred URL.
func extractImages(doc *goquery.Document, base *url.URL) []Image {
	images := []Image{}

	seen := make(map[string]struct{})
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		dataSrc, _ := s.Attr("data-src")
		if src == "" {
			src = dataSrc
		}
		if src == "" {
			return
		}

		resolved, err := base.Parse(src)
		if err != nil {
			return
		}
		if resolved.Scheme == "data" {
			return
		}

		absURL := resolved.String()
		if _, ok := seen[absURL]; ok {
			return
		}
		seen[absURL] = struct{}{}

		alt, _ := s.Attr("alt")
		loading, _ := s.Attr("loading")
		srcset, _ := s.Attr("srcset")
		sizes, _ := s.Attr("sizes")
		images = append(images, Image{
			Src:     absURL,
			Alt:     strings.TrimSpace(alt),
			Loading: strings.ToLower(loading),
			DataSrc: dataSrc,
			Srcset:  srcset,
			Sizes:   sizes,
			Width:   intAttr(s, "width"),
			Height:  intAttr(s, "height"),
		})
	})

	return images
}

func intAttr(s *goquery.Selection, name string) int {
	v, ok := s.Attr(name)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// extractHeadings collects h1–h6 elements in document order.
func extractHeadings(doc *goquery.Document) []Heading {
	headings := []Heading{}
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		tag := goquery.NodeName(s)
		if len(tag) != 2 || tag[0] != 'h' {
			return
		}
		level := int(tag[1] - '0')
		if level < 1 || level > 6 {
			return
		}
		headings = append(headings, Heading{
			Level: level,
			Text:  strings.TrimSpace(s.Text()),
		})
	})
	return headings
}

// extractMeta collects meta[name] contents, Open Graph properties, and
// Twitter card names in a single pass over the meta tags. article:* and
// http-equiv entries land in the name map under their lowercased key so
// the freshness and language checks can look them up uniformly.
func extractMeta(doc *goquery.Document) (map[string]string, OGMetadata, map[string]string) {
	meta := make(map[string]string)
	twitter := make(map[string]string)
	og := OGMetadata{}

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content, _ := s.Attr("content")
		if content == "" {
			return
		}

		if name, ok := s.Attr("name"); ok && name != "" {
			key := strings.ToLower(name)
			if after, found := strings.CutPrefix(key, "twitter:"); found {
				if _, dup := twitter[after]; !dup {
					twitter[after] = content
				}
				return
			}
			if _, dup := meta[key]; !dup {
				meta[key] = content
			}
			return
		}

		if equiv, ok := s.Attr("http-equiv"); ok && equiv != "" {
			key := strings.ToLower(equiv)
			if _, dup := meta[key]; !dup {
				meta[key] = content
			}
			return
		}

		prop, _ := s.Attr("property")
		switch key := strings.ToLower(prop); key {
		case "og:title":
			og.Title = content
		case "og:description":
			og.Description = content
		case "og:image":
			og.Image = content
		case "og:type":
			og.Type = content
		case "og:url":
			og.URL = content
		case "og:site_name":
			og.SiteName = content
		default:
			if strings.HasPrefix(key, "article:") {
				if _, dup := meta[key]; !dup {
					meta[key] = content
				}
			}
		}
	})

	return meta, og, twitter
}

// extractCanonical returns the resolved href of the first
// link[rel=canonical], or "".
func extractCanonical(doc *goquery.Document, base *url.URL) string {
	href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href")
	if !ok || href == "" {
		return ""
	}
	resolved, err := base.Parse(href)
	if err != nil {
		return ""
	}
	return resolved.String()
}

// extractHreflang collects link[rel=alternate][hreflang] entries in
// document order.
func extractHreflang(doc *goquery.Document, base *url.URL) []HreflangLink {
	var out []HreflangLink
	doc.Find(`link[rel="alternate"][hreflang]`).Each(func(_ int, s *goquery.Selection) {
		lang, _ := s.Attr("hreflang")
		href, _ := s.Attr("href")
		if lang == "" || href == "" {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		out = append(out, HreflangLink{Lang: lang, Href: resolved.String()})
	})
	return out
}

// extractResources collects stylesheet hrefs and external script srcs as
// absolute URLs, deduplicated in document order. The performance checks
// sample from these lists.
func extractResources(doc *goquery.Document, base *url.URL) (stylesheets, scripts []string) {
	stylesheets = []string{}
	scripts = []string{}

	seen := make(map[string]struct{})
	collect := func(raw string, dst *[]string) {
		if raw == "" {
			return
		}
		resolved, err := base.Parse(raw)
		if err != nil || (resolved.Scheme != "http" && resolved.Scheme != "https") {
			return
		}
		abs := resolved.String()
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		*dst = append(*dst, abs)
	}

	doc.Find(`link[rel="stylesheet"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		collect(href, &stylesheets)
	})
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		collect(src, &scripts)
	})

	return stylesheets, scripts
}

// extractJSONLD parses every application/ld+json script block. Blocks that
// fail to parse are skipped; a top-level array contributes each of its
// object elements.
func extractJSONLD(doc *goquery.Document) []map[string]any {
	var blocks []map[string]any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}

		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err == nil {
			blocks = append(blocks, obj)
			return
		}

		var arr []map[string]any
		if err := json.Unmarshal([]byte(raw), &arr); err == nil {
			blocks = append(blocks, arr...)
		}
	})
	return blocks
}
