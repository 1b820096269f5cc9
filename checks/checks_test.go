package checks

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seolens/seolens/audit"
	"github.com/seolens/seolens/config"
	"github.com/seolens/seolens/fetch"
	"github.com/seolens/seolens/htmldoc"
	"github.com/seolens/seolens/models"
	"github.com/seolens/seolens/pagespeed"
	"github.com/seolens/seolens/serp"
)

// --- shared test fixtures ---

const testPageURL = "https://acme.test/guides/widgets"

// docInput parses rawHTML the way the engine would and wraps it in a
// check input with a plain 200 page.
func docInput(t *testing.T, rawHTML string) *audit.Input {
	t.Helper()
	return docInputAt(t, rawHTML, testPageURL)
}

func docInputAt(t *testing.T, rawHTML, pageURL string) *audit.Input {
	t.Helper()
	doc, err := htmldoc.Parse(rawHTML, pageURL)
	require.NoError(t, err)

	u, err := url.Parse(pageURL)
	require.NoError(t, err)

	return &audit.Input{
		URL: u,
		Page: &models.FetchedPage{
			RequestedURL: pageURL,
			FinalURL:     pageURL,
			StatusCode:   http.StatusOK,
			Headers:      http.Header{},
			Body:         []byte(rawHTML),
		},
		Doc: doc,
	}
}

// pageInput builds an input with only the HTTP layer populated, for
// checks that never look at the DOM.
func pageInput(t *testing.T, status int, headers http.Header) *audit.Input {
	t.Helper()
	u, err := url.Parse(testPageURL)
	require.NoError(t, err)
	if headers == nil {
		headers = http.Header{}
	}
	return &audit.Input{
		URL: u,
		Page: &models.FetchedPage{
			RequestedURL: testPageURL,
			FinalURL:     testPageURL,
			StatusCode:   status,
			Headers:      headers,
		},
	}
}

// --- probe fake ---

type probeResponse struct {
	status int
	header http.Header
	body   []byte
	enc    string
	err    error
}

// fakeProber serves canned responses by URL. Unknown URLs come back 404.
type fakeProber struct {
	mu        sync.Mutex
	calls     int
	responses map[string]probeResponse
}

func newFakeProber() *fakeProber {
	return &fakeProber{responses: make(map[string]probeResponse)}
}

func (f *fakeProber) respond(url string, r probeResponse) {
	f.responses[url] = r
}

func (f *fakeProber) lookup(url string) probeResponse {
	f.mu.Lock()
	f.calls++
	r, ok := f.responses[url]
	f.mu.Unlock()
	if !ok {
		return probeResponse{status: http.StatusNotFound, header: http.Header{}}
	}
	if r.header == nil {
		r.header = http.Header{}
	}
	return r
}

func (f *fakeProber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeProber) Probe(_ context.Context, url string) (int, error) {
	r := f.lookup(url)
	return r.status, r.err
}

func (f *fakeProber) GetBody(_ context.Context, url string, _ int64) (int, []byte, error) {
	r := f.lookup(url)
	return r.status, r.body, r.err
}

func (f *fakeProber) Head(_ context.Context, url string) (int, http.Header, error) {
	r := f.lookup(url)
	return r.status, r.header, r.err
}

func (f *fakeProber) GetResource(_ context.Context, url string, _ int64) (*fetch.Resource, error) {
	r := f.lookup(url)
	if r.err != nil {
		return nil, r.err
	}
	return &fetch.Resource{
		Status:          r.status,
		Header:          r.header,
		Body:            r.body,
		ContentEncoding: r.enc,
	}, nil
}

// --- capability fakes ---

type fakePageSpeed struct {
	configured bool
	result     *pagespeed.Result
	err        error
}

func (f *fakePageSpeed) Configured() bool { return f.configured }

func (f *fakePageSpeed) Analyze(context.Context, string, pagespeed.Strategy) (*pagespeed.Result, error) {
	return f.result, f.err
}

type fakeSERP struct {
	configured bool
	analysis   *serp.Analysis
	err        error
}

func (f *fakeSERP) Configured() bool { return f.configured }

func (f *fakeSERP) Features(context.Context, string) (*serp.Analysis, error) {
	return f.analysis, f.err
}

// testThresholds mirrors the configuration defaults.
func testThresholds() config.Thresholds {
	return config.Thresholds{
		TitleMin:        30,
		TitleMax:        60,
		MetaDescMin:     70,
		MetaDescMax:     155,
		MinContentWords: 300,
		URLMaxLength:    75,
		LCPSeconds:      2.5,
		FIDMillis:       100,
		CLSScore:        0.1,
	}
}

// --- catalogue wiring ---

func TestCatalogRegisters(t *testing.T) {
	catalog := Catalog(Deps{Thresholds: testThresholds()})

	reg, err := audit.NewRegistry(catalog)
	require.NoError(t, err)

	want := map[models.Category]int{
		models.CategoryTechnical:      16,
		models.CategoryContent:        8,
		models.CategoryStructuredData: 5,
		models.CategoryLinks:          6,
		models.CategoryUX:             13,
		models.CategoryAdvanced:       11,
	}
	total := 0
	for cat, n := range want {
		assert.Len(t, reg.Checks(cat), n, "category %s", cat)
		total += n
	}
	assert.Equal(t, total, reg.Total())
	assert.True(t, reg.NeedsRender(models.Categories()))
	assert.False(t, reg.NeedsRender([]models.Category{models.CategoryContent}))
}

func TestCatalogNamesUnique(t *testing.T) {
	seen := make(map[string]models.Category)
	for cat, descs := range Catalog(Deps{}) {
		for _, d := range descs {
			prev, dup := seen[d.Name]
			require.False(t, dup, "check %q appears in both %s and %s", d.Name, prev, cat)
			seen[d.Name] = cat
			require.Equal(t, cat, d.Category, "check %q", d.Name)
			require.NotNil(t, d.Run, "check %q", d.Name)
		}
	}
}

// Checks that depend on optional capabilities must degrade to an info
// result when those capabilities are absent, never to a failure.
func TestCatalogDegradesWithoutDeps(t *testing.T) {
	in := docInput(t, `<html><head><title>t</title></head><body><p>hello world</p></body></html>`)

	for _, name := range []string{"robots_txt", "sitemap", "browser_caching", "minified_resources", "page_speed", "broken_links", "serp_presence", "image_compression", "image_dimensions"} {
		d, ok := findCheck(t, name)
		require.True(t, ok, "check %q not in catalogue", name)
		r := d.Run(context.Background(), in)
		require.NotNil(t, r, "check %q", name)
		assert.Equal(t, models.StatusInfo, r.Status, "check %q: %s", name, r.Message)
	}
}

func findCheck(t *testing.T, name string) (audit.Descriptor, bool) {
	t.Helper()
	for _, descs := range Catalog(Deps{}) {
		for _, d := range descs {
			if d.Name == name {
				return d, true
			}
		}
	}
	return audit.Descriptor{}, false
}

// --- helper unit tests ---

func TestPlural(t *testing.T) {
	assert.Equal(t, "1 link", plural(1, "link"))
	assert.Equal(t, "0 links", plural(0, "link"))
	assert.Equal(t, "4 images", plural(4, "image"))
}

func TestPct(t *testing.T) {
	assert.Equal(t, 0.0, pct(3, 0))
	assert.Equal(t, 50.0, pct(1, 2))
	assert.Equal(t, 100.0, pct(7, 7))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdefgh", 3))
	assert.Equal(t, "héll...", truncate("héllo wörld", 4))
}

func TestIssueResult(t *testing.T) {
	r := issueResult(nil, "all fine: %d", 3)
	assert.Equal(t, models.StatusGood, r.Status)
	assert.Equal(t, "all fine: 3", r.Message)

	r = issueResult([]string{"a", "b"}, "ignored")
	assert.Equal(t, models.StatusWarning, r.Status)
	assert.Equal(t, "a; b", r.Message)
	assert.Equal(t, []string{"a", "b"}, r.Value["issues"])
}

func TestCapabilityErrText(t *testing.T) {
	ae := models.NewAuditError(models.ErrCodeCapabilityFailure, "quota exhausted", nil)
	assert.Equal(t, "quota exhausted", capabilityErrText(ae))
	assert.Equal(t, "plain", capabilityErrText(assertError("plain")))
}

type assertError string

func (e assertError) Error() string { return string(e) }
