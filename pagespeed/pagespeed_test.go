package pagespeed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seolens/seolens/models"
)

const sampleResponse = `{
	"lighthouseResult": {
		"categories": {
			"performance": {"score": 0.92},
			"seo": {"score": 0.85}
		},
		"audits": {
			"largest-contentful-paint": {"title": "LCP", "score": 0.9, "numericValue": 2100},
			"max-potential-fid": {"title": "FID", "score": 1, "numericValue": 80},
			"cumulative-layout-shift": {"title": "CLS", "score": 1, "numericValue": 0.05},
			"render-blocking-resources": {"title": "Eliminate render-blocking resources", "score": 0.4, "numericValue": 600}
		}
	}
}`

func TestAnalyze_ParsesLighthouseResult(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, srv.Client())
	res, err := c.Analyze(context.Background(), "https://example.com", StrategyMobile)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com", gotQuery["url"][0])
	assert.Equal(t, "mobile", gotQuery["strategy"][0])
	assert.Len(t, gotQuery["category"], 4)

	assert.InDelta(t, 92.0, res.PerformanceScore(), 0.001)
	assert.InDelta(t, 85.0, res.Scores["seo"], 0.001)
	assert.InDelta(t, 2.1, res.LCPSeconds, 0.001)
	assert.InDelta(t, 80.0, res.FIDMillis, 0.001)
	assert.InDelta(t, 0.05, res.CLS, 0.001)

	require.Len(t, res.Opportunities, 2)
	byID := map[string]Opportunity{}
	for _, o := range res.Opportunities {
		byID[o.ID] = o
	}
	assert.Equal(t, "high", byID["render-blocking-resources"].Impact)
	assert.Equal(t, "medium", byID["largest-contentful-paint"].Impact)
}

func TestAnalyze_Unconfigured(t *testing.T) {
	c := NewClient("", "", nil)
	assert.False(t, c.Configured())

	_, err := c.Analyze(context.Background(), "https://example.com", StrategyMobile)
	var auditErr *models.AuditError
	require.True(t, errors.As(err, &auditErr))
	assert.Equal(t, models.ErrCodeCapabilityFailure, auditErr.Code)

	var nilClient *Client
	assert.False(t, nilClient.Configured())
}

func TestAnalyze_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
	}{
		{"auth failure", http.StatusForbidden, `{"error":{"message":"API key not valid"}}`, models.ErrCodeCapabilityAuthFailure},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"Quota exceeded"}}`, models.ErrCodeCapabilityRateLimited},
		{"server error", http.StatusInternalServerError, `broken`, models.ErrCodeCapabilityFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient("test-key", srv.URL, srv.Client())
			_, err := c.Analyze(context.Background(), "https://example.com", StrategyDesktop)

			var auditErr *models.AuditError
			require.True(t, errors.As(err, &auditErr))
			assert.Equal(t, tt.wantCode, auditErr.Code)
		})
	}
}
