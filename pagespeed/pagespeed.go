// Package pagespeed is a thin client for the Google PageSpeed Insights
// API (Lighthouse + Core Web Vitals). It uses net/http directly — no
// third-party SDK needed.
package pagespeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/seolens/seolens/models"
)

const defaultBaseURL = "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"

// Lighthouse runs take a while even on small pages.
const defaultTimeout = 60 * time.Second

// Strategy selects the emulated device for the Lighthouse run.
type Strategy string

const (
	StrategyMobile  Strategy = "mobile"
	StrategyDesktop Strategy = "desktop"
)

// Client calls the PageSpeed Insights API. A client with an empty key is
// valid but unconfigured; Analyze then fails fast with a capability error
// so dependent checks can degrade to info.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a PageSpeed client. Pass an empty baseURL to use the
// public Google endpoint, and nil httpClient for a default with a
// Lighthouse-sized timeout.
func NewClient(apiKey, baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{apiKey: apiKey, baseURL: baseURL, httpClient: httpClient}
}

// Configured reports whether an API key is present. Nil receivers count
// as unconfigured so callers can hold an optional client without guards.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// Result is the simplified view of one Lighthouse run.
type Result struct {
	// Scores maps Lighthouse category (performance, accessibility,
	// best-practices, seo) to its 0-100 score.
	Scores map[string]float64 `json:"scores"`

	// LCPSeconds is largest-contentful-paint in seconds.
	LCPSeconds float64 `json:"lcp_seconds"`
	// FIDMillis is max-potential-fid in milliseconds.
	FIDMillis float64 `json:"fid_millis"`
	// CLS is the cumulative-layout-shift score.
	CLS float64 `json:"cls"`

	// Opportunities are failed or partial audits worth acting on.
	Opportunities []Opportunity `json:"opportunities,omitempty"`
}

// Opportunity is one Lighthouse audit that scored below perfect.
type Opportunity struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Score  float64 `json:"score"`
	Impact string  `json:"impact"`
}

// PerformanceScore returns the Lighthouse performance score, or 0 when
// the category was absent from the response.
func (r *Result) PerformanceScore() float64 {
	return r.Scores["performance"]
}

// psiResponse is the slice of the PageSpeed response we care about.
type psiResponse struct {
	LighthouseResult struct {
		Categories map[string]struct {
			Score float64 `json:"score"`
		} `json:"categories"`
		Audits map[string]struct {
			Title        string   `json:"title"`
			Score        *float64 `json:"score"`
			NumericValue float64  `json:"numericValue"`
		} `json:"audits"`
	} `json:"lighthouseResult"`
}

// psiErrorResponse captures an API error envelope.
type psiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Analyze runs a Lighthouse analysis for the given URL.
func (c *Client) Analyze(ctx context.Context, pageURL string, strategy Strategy) (*Result, error) {
	if !c.Configured() {
		return nil, models.NewAuditError(models.ErrCodeCapabilityFailure, "PageSpeed API key is not configured", nil)
	}
	if strategy == "" {
		strategy = StrategyMobile
	}

	q := url.Values{}
	q.Set("url", pageURL)
	q.Set("strategy", string(strategy))
	q.Set("key", c.apiKey)
	for _, cat := range []string{"performance", "accessibility", "best-practices", "seo"} {
		q.Add("category", cat)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, models.NewAuditError(models.ErrCodeCapabilityFailure, "PageSpeed request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewAuditError(models.ErrCodeCapabilityFailure, "failed to read PageSpeed response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyAPIError("PageSpeed", resp.StatusCode, respBody)
	}

	var psi psiResponse
	if err := json.Unmarshal(respBody, &psi); err != nil {
		return nil, models.NewAuditError(models.ErrCodeCapabilityFailure, "failed to parse PageSpeed response", err)
	}

	return parseResult(&psi), nil
}

func parseResult(psi *psiResponse) *Result {
	out := &Result{Scores: make(map[string]float64, len(psi.LighthouseResult.Categories))}

	for name, cat := range psi.LighthouseResult.Categories {
		out.Scores[name] = cat.Score * 100
	}

	audits := psi.LighthouseResult.Audits
	if a, ok := audits["largest-contentful-paint"]; ok {
		out.LCPSeconds = a.NumericValue / 1000
	}
	if a, ok := audits["max-potential-fid"]; ok {
		out.FIDMillis = a.NumericValue
	}
	if a, ok := audits["cumulative-layout-shift"]; ok {
		out.CLS = a.NumericValue
	}

	for id, a := range audits {
		if a.Score == nil || *a.Score >= 1 {
			continue
		}
		impact := "medium"
		if *a.Score < 0.5 {
			impact = "high"
		}
		out.Opportunities = append(out.Opportunities, Opportunity{
			ID:     id,
			Title:  a.Title,
			Score:  *a.Score * 100,
			Impact: impact,
		})
	}

	return out
}

// classifyAPIError maps non-200 statuses from a capability API to typed
// audit errors. Shared with the serp package via the same shape.
func classifyAPIError(api string, statusCode int, body []byte) *models.AuditError {
	var errResp psiErrorResponse
	msg := api + " API error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return models.NewAuditError(models.ErrCodeCapabilityAuthFailure, msg, nil)
	case statusCode == http.StatusTooManyRequests:
		return models.NewAuditError(models.ErrCodeCapabilityRateLimited, msg, nil)
	default:
		return models.NewAuditError(models.ErrCodeCapabilityFailure, fmt.Sprintf("%s API returned %d: %s", api, statusCode, msg), nil)
	}
}
