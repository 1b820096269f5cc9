package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seolens/seolens/config"
	"github.com/seolens/seolens/models"
)

func testReport(id string, score int) *models.AuditReport {
	return &models.AuditReport{
		ID:           id,
		URL:          "https://acme.test/",
		GeneratedAt:  time.Now().UTC(),
		OverallScore: score,
		Summary:      models.Summary{TotalChecks: 10, Passed: 7, Warnings: 2, Errors: 1},
	}
}

func TestKeyIsOrderInsensitive(t *testing.T) {
	a := Key("https://acme.test/",
		[]models.Category{models.CategoryTechnical, models.CategoryContent},
		[]string{"widgets", "gadgets"})
	b := Key("https://acme.test/",
		[]models.Category{models.CategoryContent, models.CategoryTechnical},
		[]string{"Gadgets", "widgets"})

	assert.Equal(t, a, b, "category and keyword order must not change the key")
	assert.Len(t, a, 64)
}

func TestKeyDistinguishesRequests(t *testing.T) {
	base := Key("https://acme.test/", []models.Category{models.CategoryTechnical}, nil)

	otherURL := Key("https://acme.test/pricing", []models.Category{models.CategoryTechnical}, nil)
	otherCats := Key("https://acme.test/", []models.Category{models.CategoryContent}, nil)
	otherKws := Key("https://acme.test/", []models.Category{models.CategoryTechnical}, []string{"widgets"})

	assert.NotEqual(t, base, otherURL)
	assert.NotEqual(t, base, otherCats)
	assert.NotEqual(t, base, otherKws)
}

func TestPutGetRoundtrip(t *testing.T) {
	s := New(config.StoreConfig{MaxEntries: 10, ReportTTL: time.Hour, CacheTTL: time.Minute})
	defer s.Stop()

	r := testReport("rpt-0a1b2c3d", 85)
	s.Put(r, "")

	got, ok := s.Get(r.ID)
	require.True(t, ok)
	assert.Same(t, r, got)

	_, ok = s.Get("rpt-missing")
	assert.False(t, ok)
}

func TestGetHonorsReportTTL(t *testing.T) {
	s := New(config.StoreConfig{MaxEntries: 10, ReportTTL: 20 * time.Millisecond, CacheTTL: time.Minute})
	defer s.Stop()

	s.Put(testReport("rpt-old", 60), "")
	time.Sleep(50 * time.Millisecond)

	_, ok := s.Get("rpt-old")
	assert.False(t, ok, "report past its TTL must not be served")
}

func TestLookupHonorsCacheTTL(t *testing.T) {
	s := New(config.StoreConfig{MaxEntries: 10, ReportTTL: time.Hour, CacheTTL: 20 * time.Millisecond})
	defer s.Stop()

	key := Key("https://acme.test/", nil, nil)
	r := testReport("rpt-cached", 90)
	s.Put(r, key)

	got, ok := s.Lookup(key)
	require.True(t, ok)
	assert.Same(t, r, got)

	time.Sleep(50 * time.Millisecond)

	_, ok = s.Lookup(key)
	assert.False(t, ok, "cache lookups stop after CacheTTL")

	_, ok = s.Get(r.ID)
	assert.True(t, ok, "report itself stays retrievable by ID")
}

func TestLookupUnknownKey(t *testing.T) {
	s := New(config.StoreConfig{MaxEntries: 10, ReportTTL: time.Hour, CacheTTL: time.Minute})
	defer s.Stop()

	_, ok := s.Lookup("no-such-key")
	assert.False(t, ok)
}

func TestEvictsOldestAtCapacity(t *testing.T) {
	s := New(config.StoreConfig{MaxEntries: 2, ReportTTL: time.Hour, CacheTTL: time.Minute})
	defer s.Stop()

	s.Put(testReport("rpt-1", 50), "key-1")
	time.Sleep(2 * time.Millisecond)
	s.Put(testReport("rpt-2", 60), "")
	time.Sleep(2 * time.Millisecond)
	s.Put(testReport("rpt-3", 70), "")

	_, ok := s.Get("rpt-1")
	assert.False(t, ok, "oldest report is evicted first")

	_, ok = s.Get("rpt-2")
	assert.True(t, ok)
	_, ok = s.Get("rpt-3")
	assert.True(t, ok)

	_, ok = s.Lookup("key-1")
	assert.False(t, ok, "request keys pointing at evicted reports are dropped")
}

func TestPutSameIDDoesNotEvict(t *testing.T) {
	s := New(config.StoreConfig{MaxEntries: 2, ReportTTL: time.Hour, CacheTTL: time.Minute})
	defer s.Stop()

	s.Put(testReport("rpt-1", 50), "")
	s.Put(testReport("rpt-2", 60), "")
	s.Put(testReport("rpt-2", 65), "")

	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("rpt-1")
	assert.True(t, ok, "overwriting an existing ID must not evict others")

	got, ok := s.Get("rpt-2")
	require.True(t, ok)
	assert.Equal(t, 65, got.OverallScore)
}

func TestRecentOrdersNewestFirst(t *testing.T) {
	s := New(config.StoreConfig{MaxEntries: 10, ReportTTL: time.Hour, CacheTTL: time.Minute})
	defer s.Stop()

	for i := 1; i <= 3; i++ {
		s.Put(testReport(fmt.Sprintf("rpt-%d", i), 50+i), "")
		time.Sleep(2 * time.Millisecond)
	}

	recent := s.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "rpt-3", recent[0].ID)
	assert.Equal(t, "rpt-2", recent[1].ID)

	assert.Equal(t, "https://acme.test/", recent[0].URL)
	assert.Equal(t, 53, recent[0].OverallScore)
	assert.Equal(t, 1, recent[0].Errors)
	assert.Equal(t, 2, recent[0].Warnings)
}

func TestRecentSkipsExpired(t *testing.T) {
	s := New(config.StoreConfig{MaxEntries: 10, ReportTTL: 20 * time.Millisecond, CacheTTL: time.Minute})
	defer s.Stop()

	s.Put(testReport("rpt-old", 40), "")
	time.Sleep(50 * time.Millisecond)

	assert.Empty(t, s.Recent(10))
}

func TestDefaultsApplied(t *testing.T) {
	s := New(config.StoreConfig{})
	defer s.Stop()

	assert.Equal(t, 500, s.cfg.MaxEntries)
	assert.Equal(t, 24*time.Hour, s.cfg.ReportTTL)
	assert.Equal(t, 10*time.Minute, s.cfg.CacheTTL)
}

func TestStopIsIdempotent(t *testing.T) {
	s := New(config.StoreConfig{MaxEntries: 10, ReportTTL: time.Hour, CacheTTL: time.Minute})
	s.Stop()
	s.Stop()
}
