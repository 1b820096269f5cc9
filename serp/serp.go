// Package serp queries a SerpAPI-compatible endpoint to discover which
// search result features already appear for a query, so the audit can
// point at the ones worth targeting.
package serp

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

const defaultBaseURL = "https://serpapi.com/search"

const defaultTimeout = 30 * time.Second

// Client calls the SERP API. A keyless client is valid but unconfigured.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a SERP client. Empty baseURL uses the public SerpAPI
// endpoint; nil httpClient gets a default with a sane timeout.
func NewClient(apiKey, baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{apiKey: apiKey, baseURL: baseURL, httpClient: httpClient}
}

// Configured reports whether an API key is present. Safe on nil receivers.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// Features records which result features showed up for a query.
type Features struct {
	FeaturedSnippet bool `json:"featured_snippet"`
	KnowledgeGraph  bool `json:"knowledge_graph"`
	LocalPack       bool `json:"local_pack"`
	TopStories      bool `json:"top_stories"`
	Images          bool `json:"images"`
	Videos          bool `json:"videos"`
	Shopping        bool `json:"shopping"`
	FAQ             bool `json:"faq"`
}

// Opportunity suggests how to target one absent feature.
type Opportunity struct {
	Feature        string `json:"feature"`
	Recommendation string `json:"recommendation"`
}

// Analysis is the feature scan result for one query.
type Analysis struct {
	Query         string        `json:"query"`
	Features      Features      `json:"features"`
	Opportunities []Opportunity `json:"opportunities,omitempty"`
}

// serpResponse is the slice of a SerpAPI search response we inspect.
// Presence of a block matters more than its contents.
type serpResponse struct {
	AnswerBox       json.RawMessage `json:"answer_box"`
	KnowledgeGraph  json.RawMessage `json:"knowledge_graph"`
	LocalResults    json.RawMessage `json:"local_results"`
	TopStories      json.RawMessage `json:"top_stories"`
	ImagesResults   json.RawMessage `json:"images_results"`
	VideosResults   json.RawMessage `json:"videos_results"`
	ShoppingResults json.RawMessage `json:"shopping_results"`
	OrganicResults  []struct {
		Sitelinks struct {
			Expanded json.RawMessage `json:"expanded"`
		} `json:"sitelinks"`
	} `json:"organic_results"`
	Error string `json:"error"`
}

// Features fetches the first results page for query and reports which
// SERP features are present, plus opportunities for the absent ones.
func (c *Client) Features(ctx context.Context, query string) (*Analysis, error) {
	if !c.Configured() {
		return nil, models.NewAuditError(models.ErrCodeCapabilityFailure, "SERP API key is not configured", nil)
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("location", "United States")
	q.Set("device", "desktop")
	q.Set("num", "10")
	q.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, models.NewAuditError(models.ErrCodeCapabilityFailure, "SERP request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewAuditError(models.ErrCodeCapabilityFailure, "failed to read SERP response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyAPIError(resp.StatusCode, respBody)
	}

	var sr serpResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return nil, models.NewAuditError(models.ErrCodeCapabilityFailure, "failed to parse SERP response", err)
	}
	if sr.Error != "" {
		return nil, models.NewAuditError(models.ErrCodeCapabilityFailure, sr.Error, nil)
	}

	feats := Features{
		FeaturedSnippet: len(sr.AnswerBox) > 0,
		KnowledgeGraph:  len(sr.KnowledgeGraph) > 0,
		LocalPack:       len(sr.LocalResults) > 0,
		TopStories:      len(sr.TopStories) > 0,
		Images:          len(sr.ImagesResults) > 0,
		Videos:          len(sr.VideosResults) > 0,
		Shopping:        len(sr.ShoppingResults) > 0,
	}
	for _, org := range sr.OrganicResults {
		if len(org.Sitelinks.Expanded) > 0 {
			feats.FAQ = true
			break
		}
	}

	return &Analysis{
		Query:         query,
		Features:      feats,
		Opportunities: opportunitiesFor(feats),
	}, nil
}

// opportunitiesFor lists the absent features worth optimizing for.
func opportunitiesFor(f Features) []Opportunity {
	var out []Opportunity
	if !f.FeaturedSnippet {
		out = append(out, Opportunity{
			Feature:        "Featured Snippet",
			Recommendation: "Structure content to answer questions directly. Use clear headings, lists, and tables.",
		})
	}
	if !f.KnowledgeGraph {
		out = append(out, Opportunity{
			Feature:        "Knowledge Graph",
			Recommendation: "Implement schema.org markup for your organization, person, or product.",
		})
	}
	if !f.FAQ {
		out = append(out, Opportunity{
			Feature:        "FAQ Results",
			Recommendation: "Add FAQ schema markup to your page with relevant questions and answers.",
		})
	}
	if !f.Images {
		out = append(out, Opportunity{
			Feature:        "Image Results",
			Recommendation: "Add high-quality, relevant images with proper alt text and file names.",
		})
	}
	if !f.Videos {
		out = append(out, Opportunity{
			Feature:        "Video Results",
			Recommendation: "Consider adding video content and implementing video schema markup.",
		})
	}
	return out
}

type serpErrorResponse struct {
	Error string `json:"error"`
}

func classifyAPIError(statusCode int, body []byte) *models.AuditError {
	var errResp serpErrorResponse
	msg := "SERP API error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		msg = errResp.Error
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return models.NewAuditError(models.ErrCodeCapabilityAuthFailure, msg, nil)
	case statusCode == http.StatusTooManyRequests:
		return models.NewAuditError(models.ErrCodeCapabilityRateLimited, msg, nil)
	default:
		return models.NewAuditError(models.ErrCodeCapabilityFailure, fmt.Sprintf("SERP API returned %d: %s", statusCode, msg), nil)
	}
}
