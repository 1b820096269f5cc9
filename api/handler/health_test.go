package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seolens/seolens/models"
)

type fakeStatser struct {
	stats models.BrowserStats
}

func (f *fakeStatser) Stats() models.BrowserStats { return f.stats }

func TestHealthHealthy(t *testing.T) {
	st := newTestStore(t)
	st.Put(sampleReport("rpt-1", "https://acme.test/"), "")

	r := gin.New()
	br := &fakeStatser{stats: models.BrowserStats{Running: true, MaxPages: 5, ActivePages: 2, BrowserPID: 4242}}
	r.GET("/api/v1/health", Health(br, st, time.Now().Add(-90*time.Second)))

	w := get(t, r, "/api/v1/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 1, resp.StoredReports)
	assert.Equal(t, 5, resp.BrowserStats.MaxPages)
	assert.True(t, resp.BrowserStats.Running)
	assert.NotEmpty(t, resp.Uptime)
	assert.Equal(t, version, resp.Version)
}

func TestHealthDegradedWhenPoolBusy(t *testing.T) {
	r := gin.New()
	br := &fakeStatser{stats: models.BrowserStats{Running: true, MaxPages: 5, ActivePages: 5}}
	r.GET("/api/v1/health", Health(br, newTestStore(t), time.Now()))

	w := get(t, r, "/api/v1/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
}

func TestHealthWithoutBrowser(t *testing.T) {
	r := gin.New()
	r.GET("/api/v1/health", Health(nil, newTestStore(t), time.Now()))

	w := get(t, r, "/api/v1/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status, "no browser is a configuration, not a fault")
	assert.False(t, resp.BrowserStats.Running)
}
