package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seolens/seolens/config"
	"github.com/seolens/seolens/models"
	"github.com/seolens/seolens/store"
)

type stubRunner struct{}

func (stubRunner) Run(ctx context.Context, req *models.AuditRequest) (*models.AuditReport, error) {
	return &models.AuditReport{
		ID:           "rpt-stub0001",
		URL:          req.URL,
		GeneratedAt:  time.Now().UTC(),
		OverallScore: 75,
		Summary:      models.Summary{TotalChecks: 1, Passed: 1},
	}, nil
}

func testConfig(authEnabled bool) *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Mode: "test"},
		Auth:      config.AuthConfig{Enabled: authEnabled, APIKeys: []string{"sk-test"}},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
	}
}

func newTestRouter(t *testing.T, authEnabled bool) http.Handler {
	t.Helper()
	st := store.New(config.StoreConfig{MaxEntries: 10, ReportTTL: time.Hour, CacheTTL: time.Minute})
	t.Cleanup(st.Stop)
	return NewRouter(stubRunner{}, st, nil, testConfig(authEnabled), time.Now())
}

func TestHealthIsOpen(t *testing.T) {
	r := newTestRouter(t, true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, "health must not require an API key")
}

func TestProtectedRoutesRequireKey(t *testing.T) {
	r := newTestRouter(t, true)

	body := bytes.NewReader([]byte(`{"url":"https://acme.test/"}`))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/audit", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProtectedRoutesAcceptKey(t *testing.T) {
	r := newTestRouter(t, true)

	body := bytes.NewReader([]byte(`{"url":"https://acme.test/"}`))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/audit", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", "sk-test")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rpt-stub0001")
}

func TestAuthDisabledLeavesAPIOpen(t *testing.T) {
	r := newTestRouter(t, false)

	body := bytes.NewReader([]byte(`{"url":"https://acme.test/"}`))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/audit", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIndexPageServed(t *testing.T) {
	r := newTestRouter(t, true)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Run audit")
}
