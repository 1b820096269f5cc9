package checks

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seolens/seolens/htmldoc"
	"github.com/seolens/seolens/models"
	"github.com/seolens/seolens/serp"
)

func TestCheckJavaScriptFrameworks(t *testing.T) {
	t.Run("none detected", func(t *testing.T) {
		in := docInput(t, `<html><body><p>Server-rendered page.</p></body></html>`)
		r := checkJavaScriptFrameworks(context.Background(), in)
		assert.Equal(t, models.StatusInfo, r.Status)
		assert.Equal(t, "No JavaScript framework detected", r.Message)
	})

	t.Run("client-rendered shell", func(t *testing.T) {
		in := docInput(t, `<html><body>
			<div id="root"></div>
			<script src="/static/js/react.production.min.js"></script>
		</body></html>`)
		r := checkJavaScriptFrameworks(context.Background(), in)
		assert.Equal(t, models.StatusWarning, r.Status)
		assert.Equal(t, "React detected but the raw HTML is nearly empty; ensure server-side rendering", r.Message)
		assert.Equal(t, []string{"React"}, r.Value["frameworks"])
	})

	t.Run("enhancement library", func(t *testing.T) {
		in := docInput(t, `<html><body>
			<p>Widgets ship with full documentation.</p>
			<script src="/js/jquery-3.6.0.min.js"></script>
		</body></html>`)
		r := checkJavaScriptFrameworks(context.Background(), in)
		assert.Equal(t, models.StatusGood, r.Status)
		assert.Equal(t, "jQuery detected; content is present without JavaScript", r.Message)
	})

	t.Run("framework with rendered content", func(t *testing.T) {
		filler := strings.Repeat("industrial widget assembly guidance text ", 20)
		in := docInput(t, fmt.Sprintf(`<html><body>
			<div data-reactroot><p>%s</p></div>
		</body></html>`, filler))
		r := checkJavaScriptFrameworks(context.Background(), in)
		assert.Equal(t, models.StatusGood, r.Status)
		assert.Contains(t, r.Message, "React detected")
	})
}

func TestCompareParity(t *testing.T) {
	t.Run("content requires javascript", func(t *testing.T) {
		r := compareParity("", "", 10, 250)
		assert.Equal(t, models.StatusWarning, r.Status)
		assert.Equal(t, "Content requires JavaScript: raw HTML has 10 words, rendered page has 250", r.Message)
	})

	t.Run("matching fingerprints", func(t *testing.T) {
		text := strings.Repeat("widgets are assembled from milled parts and tested before shipping ", 30)
		r := compareParity(text, text, 300, 300)
		assert.Equal(t, models.StatusGood, r.Status)
		assert.Contains(t, r.Message, "matches the raw HTML")
	})

	t.Run("divergent fingerprints", func(t *testing.T) {
		var raw, rendered strings.Builder
		for i := 0; i < 120; i++ {
			fmt.Fprintf(&raw, "widget%d ", i)
			fmt.Fprintf(&rendered, "gadget%d ", i)
		}
		r := compareParity(raw.String(), rendered.String(), 120, 120)
		assert.Equal(t, models.StatusWarning, r.Status)
		assert.Contains(t, r.Message, "Rendered text diverges")
	})
}

func TestCheckRenderedContentParity(t *testing.T) {
	raw := `<html><body><article><p>` +
		strings.Repeat("widgets are assembled from milled parts and tested before shipping ", 10) +
		`</p></article></body></html>`

	in := docInput(t, raw)
	rendered, err := htmldoc.Parse(raw, testPageURL)
	require.NoError(t, err)
	in.Rendered = rendered

	r := checkRenderedContentParity(context.Background(), in)
	assert.Equal(t, models.StatusGood, r.Status)
	assert.Contains(t, r.Message, "fingerprint distance")
	assert.Equal(t, in.Doc.WordCount(), r.Value["raw_words"])
	assert.Equal(t, 0, r.Value["structure_distance"])
}

func TestCheckRenderedContentParityRestructuredMarkup(t *testing.T) {
	copyText := strings.Repeat("widgets are assembled from milled parts and tested before shipping ", 10)
	raw := `<html><body><article><p>` + copyText + `</p></article></body></html>`
	// Same copy, completely rebuilt markup: only the structure fingerprint
	// should move.
	rebuilt := `<html><body><div><div><nav><ul><li></li><li></li><li></li></ul></nav>` +
		`<section><header><h1></h1></header><span>` + copyText + `</span>` +
		`<footer><small></small></footer></section></div></div></body></html>`

	in := docInput(t, raw)
	rendered, err := htmldoc.Parse(rebuilt, testPageURL)
	require.NoError(t, err)
	in.Rendered = rendered

	r := checkRenderedContentParity(context.Background(), in)
	assert.Equal(t, models.StatusGood, r.Status, "matching text keeps the check green")
	assert.Contains(t, r.Message, "restructures the markup")
	assert.Greater(t, r.Value["structure_distance"], structureParityThreshold)
}

func TestCheckConsoleErrors(t *testing.T) {
	t.Run("no telemetry", func(t *testing.T) {
		r := checkConsoleErrors(context.Background(), docInput(t, `<html><body></body></html>`))
		assert.Equal(t, models.StatusInfo, r.Status)
		assert.Equal(t, "No render telemetry available", r.Message)
	})

	t.Run("clean render", func(t *testing.T) {
		in := docInput(t, `<html><body></body></html>`)
		in.Snapshot = &models.RenderedSnapshot{}
		r := checkConsoleErrors(context.Background(), in)
		assert.Equal(t, models.StatusGood, r.Status)
		assert.Equal(t, "No console errors or failed requests during render", r.Message)
	})

	t.Run("errors reported", func(t *testing.T) {
		in := docInput(t, `<html><body></body></html>`)
		in.Snapshot = &models.RenderedSnapshot{
			ConsoleErrors:  []string{"TypeError: undefined", "ReferenceError: x"},
			FailedRequests: []string{"https://acme.test/missing.js"},
		}
		r := checkConsoleErrors(context.Background(), in)
		assert.Equal(t, models.StatusWarning, r.Status)
		assert.Equal(t, "2 console errors and 1 failed request during render", r.Message)
		assert.Len(t, r.Value["console_errors"], 2)
	})
}

func TestCheckSERPFeatures(t *testing.T) {
	t.Run("no signals", func(t *testing.T) {
		in := docInput(t, `<html><body><p>Plain prose about widgets.</p></body></html>`)
		r := checkSERPFeatures(context.Background(), in)
		assert.Equal(t, models.StatusInfo, r.Status)
		assert.Equal(t, "No SERP feature signals on the page", r.Message)
	})

	t.Run("rich page", func(t *testing.T) {
		in := docInput(t, `<html><body>
			<h2>How to assemble a widget</h2>
			<ul><li>Step one</li><li>Step two</li></ul>
			<table><tr><td>Model</td><td>Weight</td></tr></table>
			<h3>What is a widget?</h3><p>A machined part.</p>
			<h3>Where are widgets made?</h3><p>In our plant.</p>
			<iframe src="https://www.youtube.com/embed/abc123"></iframe>
		</body></html>`)
		r := checkSERPFeatures(context.Background(), in)
		assert.Equal(t, models.StatusGood, r.Status)
		assert.Equal(t, "SERP feature readiness: list content, tabular data, step-by-step structure, FAQ content, video content", r.Message)
	})

	t.Run("faq schema", func(t *testing.T) {
		in := docInput(t, `<html><head>
			<script type="application/ld+json">{"@context":"https://schema.org","@type":"FAQPage"}</script>
		</head><body><p>Support answers.</p></body></html>`)
		r := checkSERPFeatures(context.Background(), in)
		assert.Equal(t, models.StatusGood, r.Status)
		assert.Contains(t, r.Message, "FAQ content")
	})
}

func TestCheckSERPPresence(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		r := checkSERPPresence(&fakeSERP{configured: false})(context.Background(), docInput(t, `<html><body></body></html>`))
		assert.Equal(t, models.StatusInfo, r.Status)
		assert.Contains(t, r.Message, "SEOLENS_SERP_API_KEY")
	})

	t.Run("no keywords", func(t *testing.T) {
		in := docInput(t, `<html><body></body></html>`)
		r := checkSERPPresence(&fakeSERP{configured: true})(context.Background(), in)
		assert.Equal(t, models.StatusInfo, r.Status)
		assert.Equal(t, "No target keywords supplied for SERP analysis", r.Message)
	})

	t.Run("lookup failure", func(t *testing.T) {
		in := docInput(t, `<html><body></body></html>`)
		in.Keywords = []string{"widget"}
		analyzer := &fakeSERP{configured: true, err: errors.New("quota exceeded")}
		r := checkSERPPresence(analyzer)(context.Background(), in)
		assert.Equal(t, models.StatusInfo, r.Status)
		assert.Equal(t, "SERP data unavailable: quota exceeded", r.Message)
	})

	t.Run("features reported", func(t *testing.T) {
		in := docInput(t, `<html><body></body></html>`)
		in.Keywords = []string{"widget"}
		analyzer := &fakeSERP{configured: true, analysis: &serp.Analysis{
			Query:    "widget",
			Features: serp.Features{FeaturedSnippet: true, FAQ: true},
			Opportunities: []serp.Opportunity{
				{Feature: "featured_snippet", Recommendation: "Answer the query in the opening paragraph"},
			},
		}}
		r := checkSERPPresence(analyzer)(context.Background(), in)
		assert.Equal(t, models.StatusInfo, r.Status)
		assert.Equal(t, `SERP features for "widget": featured snippet, FAQ`, r.Message)
		assert.Equal(t, []string{"featured snippet", "FAQ"}, r.Value["features"])
	})
}

func TestCheckSemanticAnalysis(t *testing.T) {
	t.Run("empty page", func(t *testing.T) {
		r := checkSemanticAnalysis(context.Background(), docInput(t, `<html><body></body></html>`))
		assert.Equal(t, models.StatusInfo, r.Status)
	})

	t.Run("headings cover dominant terms", func(t *testing.T) {
		in := docInput(t, `<html><body>
			<h1>Widget assembly machine quality parts</h1>
			<p>widget assembly machine quality parts</p>
			<p>widget assembly machine quality parts</p>
			<p>widget assembly machine quality parts</p>
		</body></html>`)
		r := checkSemanticAnalysis(context.Background(), in)
		assert.Equal(t, models.StatusGood, r.Status)
		assert.Equal(t, "Headings cover the page's dominant terms (5 of 5)", r.Message)
	})

	t.Run("headings miss dominant terms", func(t *testing.T) {
		in := docInput(t, `<html><body>
			<h1>About our company</h1>
			<p>widget assembly machine quality parts</p>
			<p>widget assembly machine quality parts</p>
			<p>widget assembly machine quality parts</p>
			<p>widget assembly machine quality parts</p>
		</body></html>`)
		r := checkSemanticAnalysis(context.Background(), in)
		assert.Equal(t, models.StatusWarning, r.Status)
		assert.Equal(t, "Headings cover only 0 of 5 dominant terms", r.Message)
	})
}

func TestCheckContentFreshness(t *testing.T) {
	t.Run("recent meta date", func(t *testing.T) {
		stamp := time.Now().AddDate(0, 0, -10).Format("2006-01-02")
		in := docInput(t, fmt.Sprintf(`<html><head>
			<meta property="article:modified_time" content="%s">
		</head><body><p>Guide body.</p></body></html>`, stamp))
		r := checkContentFreshness(context.Background(), in)
		assert.Equal(t, models.StatusGood, r.Status)
		assert.Contains(t, r.Message, "Content dated "+stamp)
		assert.Contains(t, r.Message, "10 days ago")
	})

	t.Run("stale meta date", func(t *testing.T) {
		in := docInput(t, `<html><head>
			<meta property="article:modified_time" content="2020-01-15T09:00:00Z">
		</head><body><p>Guide body.</p></body></html>`)
		r := checkContentFreshness(context.Background(), in)
		assert.Equal(t, models.StatusWarning, r.Status)
		assert.Equal(t, "Content is over a year old (dated 2020-01-15)", r.Message)
	})

	t.Run("update notice in text", func(t *testing.T) {
		in := docInput(t, `<html><body><p>Last updated whenever the catalog changes.</p></body></html>`)
		r := checkContentFreshness(context.Background(), in)
		assert.Equal(t, models.StatusGood, r.Status)
		assert.Equal(t, "Freshness signals present (update notice in the text)", r.Message)
	})

	t.Run("mentions current year", func(t *testing.T) {
		year := strconv.Itoa(time.Now().Year())
		in := docInput(t, fmt.Sprintf(`<html><body><p>Widget pricing for %s.</p></body></html>`, year))
		r := checkContentFreshness(context.Background(), in)
		assert.Equal(t, models.StatusGood, r.Status)
		assert.Equal(t, "Freshness signals present (mentions "+year+")", r.Message)
	})

	t.Run("mentions only last year", func(t *testing.T) {
		prev := strconv.Itoa(time.Now().Year() - 1)
		in := docInput(t, fmt.Sprintf(`<html><body><p>Widget pricing for %s.</p></body></html>`, prev))
		r := checkContentFreshness(context.Background(), in)
		assert.Equal(t, models.StatusWarning, r.Status)
		assert.Equal(t, "Only last year ("+prev+") is mentioned; refresh the content", r.Message)
	})

	t.Run("no signals", func(t *testing.T) {
		in := docInput(t, `<html><body><p>Widgets are machined to order.</p></body></html>`)
		r := checkContentFreshness(context.Background(), in)
		assert.Equal(t, models.StatusWarning, r.Status)
		assert.Equal(t, "No freshness signals found", r.Message)
	})
}

func TestParseDateMeta(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2026-03-01", "2026-03-01", true},
		{"2026-03-01T10:30:00Z", "2026-03-01", true},
		{"2026-03-01T10:30:00", "2026-03-01", true},
		{"2026-03-01 10:30 CET", "2026-03-01", true},
		{"yesterday", "", false},
	}
	for _, tc := range cases {
		stamp, ok := parseDateMeta(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		if tc.ok {
			assert.Equal(t, tc.want, stamp.Format("2006-01-02"), tc.in)
		}
	}
}

func TestCheckEntityRecognition(t *testing.T) {
	t.Run("none declared", func(t *testing.T) {
		r := checkEntityRecognition(context.Background(), docInput(t, `<html><body><p>Anonymous page.</p></body></html>`))
		assert.Equal(t, models.StatusInfo, r.Status)
		assert.Equal(t, "No named entities declared in structured data", r.Message)
	})

	t.Run("mixed markup", func(t *testing.T) {
		in := docInput(t, `<html><head>
			<script type="application/ld+json">{"@context":"https://schema.org","@type":"Organization","name":"Acme"}</script>
			<script type="application/ld+json">{"@context":"https://schema.org","@type":"Person","name":"Jo Smith"}</script>
		</head><body>
			<div itemscope itemtype="https://schema.org/Product"><span itemprop="name">Widget</span></div>
			<div typeof="Event">Open day</div>
		</body></html>`)
		r := checkEntityRecognition(context.Background(), in)
		assert.Equal(t, models.StatusGood, r.Status)
		assert.Equal(t, "Entities declared: Person, Organization, Product, Event", r.Message)
	})
}

func TestCheckInternationalization(t *testing.T) {
	t.Run("missing lang", func(t *testing.T) {
		r := checkInternationalization(context.Background(), docInput(t, `<html><body></body></html>`))
		assert.Equal(t, models.StatusWarning, r.Status)
		assert.Contains(t, r.Message, "html lang attribute missing")
	})

	t.Run("single language", func(t *testing.T) {
		in := docInput(t, `<html lang="en"><body></body></html>`)
		r := checkInternationalization(context.Background(), in)
		assert.Equal(t, models.StatusGood, r.Status)
		assert.Equal(t, "Language declared (en); single-language page", r.Message)
	})

	t.Run("hreflang set with default", func(t *testing.T) {
		in := docInput(t, `<html lang="en"><head>
			<link rel="alternate" hreflang="en" href="https://acme.test/en/">
			<link rel="alternate" hreflang="x-default" href="https://acme.test/">
		</head><body></body></html>`)
		r := checkInternationalization(context.Background(), in)
		assert.Equal(t, models.StatusGood, r.Status)
		assert.Equal(t, "Language declared (en) with 2 hreflang alternates", r.Message)
	})

	t.Run("missing x-default", func(t *testing.T) {
		in := docInput(t, `<html lang="en"><head>
			<link rel="alternate" hreflang="en" href="https://acme.test/en/">
			<link rel="alternate" hreflang="fr" href="https://acme.test/fr/">
		</head><body></body></html>`)
		r := checkInternationalization(context.Background(), in)
		assert.Equal(t, models.StatusWarning, r.Status)
		assert.Contains(t, r.Message, "hreflang set lacks x-default")
	})

	t.Run("lang not in alternates", func(t *testing.T) {
		in := docInput(t, `<html lang="de"><head>
			<link rel="alternate" hreflang="en" href="https://acme.test/en/">
			<link rel="alternate" hreflang="x-default" href="https://acme.test/">
		</head><body></body></html>`)
		r := checkInternationalization(context.Background(), in)
		assert.Equal(t, models.StatusWarning, r.Status)
		assert.Contains(t, r.Message, `html lang "de" is not among the hreflang alternates`)
	})
}

func TestCheckPageSegmentation(t *testing.T) {
	t.Run("no text", func(t *testing.T) {
		r := checkPageSegmentation(context.Background(), docInput(t, `<html><body></body></html>`))
		assert.Equal(t, models.StatusInfo, r.Status)
		assert.Equal(t, "No text content to segment", r.Message)
	})

	t.Run("no main landmark", func(t *testing.T) {
		in := docInput(t, `<html><body><div>Loose content without landmarks.</div></body></html>`)
		r := checkPageSegmentation(context.Background(), in)
		assert.Equal(t, models.StatusWarning, r.Status)
		assert.Equal(t, "No main or article landmark found", r.Message)
	})

	t.Run("clear segmentation", func(t *testing.T) {
		body := strings.Repeat("widget assembly guidance with milled parts and tolerances ", 10)
		in := docInput(t, fmt.Sprintf(`<html><body>
			<header>Acme</header>
			<nav>Home Products</nav>
			<main><p>%s</p></main>
			<footer>Contact</footer>
		</body></html>`, body))
		r := checkPageSegmentation(context.Background(), in)
		assert.Equal(t, models.StatusGood, r.Status)
		assert.Contains(t, r.Message, "Clear page segmentation")
		assert.Equal(t, 4, r.Value["landmarks"])
	})

	t.Run("thin main landmark", func(t *testing.T) {
		filler := strings.Repeat("sidebar promotional text repeated many times over ", 12)
		in := docInput(t, fmt.Sprintf(`<html><body>
			<header>Acme</header>
			<nav>Home</nav>
			<main><p>Short summary.</p></main>
			<aside>%s</aside>
			<footer>Contact</footer>
		</body></html>`, filler))
		r := checkPageSegmentation(context.Background(), in)
		assert.Equal(t, models.StatusWarning, r.Status)
		assert.Contains(t, r.Message, "the main landmark holds only")
	})
}
