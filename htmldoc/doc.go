// Package htmldoc parses fetched HTML once and exposes the derived
// artifacts — links, images, headings, metadata, visible text — that the
// audit checks share. A Doc is built once per fetched page and treated as
// read-only by every consumer.
package htmldoc

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Doc is a parsed HTML document plus the extractions the checks need.
// All fields are populated by Parse and must not be mutated afterwards.
type Doc struct {
	// URL is the page URL the document was fetched from, used as the base
	// for resolving relative references.
	URL *url.URL

	// HTML is the raw markup the document was parsed from.
	HTML string

	// Query is the parsed DOM for ad-hoc selector queries.
	Query *goquery.Document

	Title       string
	Lang        string // html element lang attribute
	Text        string // visible body text, whitespace-normalized
	Words       []string
	Links       LinksResult
	Images      []Image
	Headings    []Heading
	Meta        map[string]string // meta[name] → content, names lowercased
	OG          OGMetadata
	Twitter     map[string]string // twitter:* meta names without the prefix
	Canonical   string
	Hreflang    []HreflangLink
	JSONLD      []map[string]any
	Stylesheets []string // absolute stylesheet URLs in document order
	Scripts     []string // absolute external script URLs in document order
}

// Parse builds a Doc from raw HTML. sourceURL must be absolute; relative
// hrefs and srcs in the document are resolved against it.
func Parse(rawHTML string, sourceURL string) (*Doc, error) {
	base, err := url.Parse(sourceURL)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: parse source url: %w", err)
	}

	query, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("htmldoc: parse html: %w", err)
	}

	d := &Doc{
		URL:   base,
		HTML:  rawHTML,
		Query: query,
	}

	raw := []byte(rawHTML)
	d.Title = ExtractTitle(raw)
	d.Lang = strings.TrimSpace(query.Find("html").AttrOr("lang", ""))
	d.Text = ExtractVisibleText(raw)
	d.Words = Words(d.Text)
	d.Links = extractLinks(query, base)
	d.Images = extractImages(query, base)
	d.Headings = extractHeadings(query)
	d.Meta, d.OG, d.Twitter = extractMeta(query)
	d.Canonical = extractCanonical(query, base)
	d.Hreflang = extractHreflang(query, base)
	d.JSONLD = extractJSONLD(query)
	d.Stylesheets, d.Scripts = extractResources(query, base)

	return d, nil
}

// Node returns the document root for direct x/net/html traversal, or nil
// if the parse produced no nodes.
func (d *Doc) Node() *html.Node {
	if d.Query == nil || len(d.Query.Nodes) == 0 {
		return nil
	}
	return d.Query.Nodes[0]
}

// WordCount reports the number of visible-text word tokens.
func (d *Doc) WordCount() int {
	return len(d.Words)
}

// MetaContent returns the content of a meta[name] tag, or "" if absent.
// Lookup is case-insensitive.
func (d *Doc) MetaContent(name string) string {
	return d.Meta[strings.ToLower(name)]
}

// HeadingTexts returns the texts of all headings at the given level (1–6)
// in document order.
func (d *Doc) HeadingTexts(level int) []string {
	var texts []string
	for _, h := range d.Headings {
		if h.Level == level {
			texts = append(texts, h.Text)
		}
	}
	return texts
}

// HeadingCount reports how many headings exist at the given level.
func (d *Doc) HeadingCount(level int) int {
	n := 0
	for _, h := range d.Headings {
		if h.Level == level {
			n++
		}
	}
	return n
}
