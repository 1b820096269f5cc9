package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// auditRequest mirrors the Seolens API request model.
type auditRequest struct {
	URL        string   `json:"url"`
	Categories []string `json:"categories,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
}

// checkResult mirrors one check outcome in the Seolens API report.
type checkResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// categoryScore mirrors the per-category score in the Seolens API report.
type categoryScore struct {
	Score     int  `json:"score"`
	Good      int  `json:"good"`
	Warnings  int  `json:"warnings"`
	Errors    int  `json:"errors"`
	Info      int  `json:"info"`
	Evaluated bool `json:"evaluated"`
}

// auditReport mirrors the Seolens API report model.
type auditReport struct {
	ID           string `json:"report_id"`
	URL          string `json:"url"`
	OverallScore int    `json:"overall_score"`
	Summary      struct {
		TotalChecks int `json:"total_checks"`
		Passed      int `json:"passed"`
		Warnings    int `json:"warnings"`
		Errors      int `json:"errors"`
		Info        int `json:"info"`
	} `json:"summary"`
	Scores          map[string]categoryScore `json:"scores"`
	Results         map[string][]checkResult `json:"results"`
	Recommendations []struct {
		Priority string   `json:"priority"`
		Check    string   `json:"check"`
		Message  string   `json:"message"`
		Steps    []string `json:"steps"`
	} `json:"recommendations"`
}

// auditResponse mirrors the Seolens API response envelope.
type auditResponse struct {
	Success bool         `json:"success"`
	Report  *auditReport `json:"report"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// batchResponse mirrors the Seolens batch API response.
type batchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// batchStatusResponse mirrors the Seolens batch status API response.
type batchStatusResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Results   []struct {
		URL      string `json:"url"`
		ReportID string `json:"report_id"`
		Score    int    `json:"overall_score"`
		Error    *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	} `json:"results"`
}

// reportCategories is the canonical category order used when formatting.
var reportCategories = []string{"technical", "content", "structured_data", "links", "ux", "advanced"}

var categoryTitles = map[string]string{
	"technical":       "Technical SEO",
	"content":         "Content",
	"structured_data": "Structured Data",
	"links":           "Links",
	"ux":              "User Experience",
	"advanced":        "Advanced",
}

func main() {
	apiURL := os.Getenv("SEOLENS_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("SEOLENS_API_KEY")

	s := server.NewMCPServer(
		"seolens",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	auditPageTool := mcp.NewTool("audit_page",
		mcp.WithDescription("Run a full SEO audit on a single web page. Returns the overall score, per-category scores, failing checks, and prioritized recommendations."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the web page to audit"),
		),
		mcp.WithArray("categories",
			mcp.Description("Check categories to run (default: all): 'technical', 'content', 'structured_data', 'links', 'ux', 'advanced'"),
		),
		mcp.WithArray("keywords",
			mcp.Description("Target keywords to evaluate the page content against"),
		),
	)
	s.AddTool(auditPageTool, handleAuditPage(apiURL, apiKey))

	getReportTool := mcp.NewTool("get_report",
		mcp.WithDescription("Retrieve a previously generated SEO audit report by its report ID."),
		mcp.WithString("report_id",
			mcp.Required(),
			mcp.Description("The report ID returned by a previous audit"),
		),
	)
	s.AddTool(getReportTool, handleGetReport(apiURL, apiKey))

	batchAuditTool := mcp.NewTool("batch_audit",
		mcp.WithDescription("Audit multiple URLs in parallel and return a score summary for each. Each URL is audited independently; this is not a crawl."),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description("List of URLs to audit (at most 25)"),
		),
		mcp.WithArray("categories",
			mcp.Description("Check categories to run for every URL (default: all)"),
		),
		mcp.WithArray("keywords",
			mcp.Description("Target keywords applied to every URL"),
		),
	)
	s.AddTool(batchAuditTool, handleBatchAudit(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the Seolens API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// apiGet sends a GET request to the Seolens API and returns the response body.
func apiGet(ctx context.Context, client *http.Client, apiURL, apiKey, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// pollJobCompletion re-reads a job endpoint every two seconds until the
// job leaves "processing" or the context ends.
func pollJobCompletion(ctx context.Context, client *http.Client, apiURL, apiKey, endpoint string) ([]byte, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			body, err := apiGet(ctx, client, apiURL, apiKey, endpoint)
			if err != nil {
				return nil, fmt.Errorf("poll request failed: %w", err)
			}

			// Peek at the status field only; callers decode the rest.
			var status struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(body, &status); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}

			if status.Status != "processing" {
				return body, nil
			}
		}
	}
}

// formatReport renders an audit report as readable text for the model.
func formatReport(rep *auditReport) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("SEO audit of %s (report %s)\n", rep.URL, rep.ID))
	sb.WriteString(fmt.Sprintf("Overall score: %d/100 (%d checks: %d passed, %d warnings, %d errors)\n\n",
		rep.OverallScore, rep.Summary.TotalChecks, rep.Summary.Passed, rep.Summary.Warnings, rep.Summary.Errors))

	sb.WriteString("Category scores:\n")
	for _, cat := range reportCategories {
		score, ok := rep.Scores[cat]
		if !ok {
			continue
		}
		if score.Evaluated {
			sb.WriteString(fmt.Sprintf("- %s: %d/100\n", categoryTitles[cat], score.Score))
		} else {
			sb.WriteString(fmt.Sprintf("- %s: not scored (informational only)\n", categoryTitles[cat]))
		}
	}

	var issues []string
	for _, cat := range reportCategories {
		for _, r := range rep.Results[cat] {
			if r.Status != "warning" && r.Status != "error" {
				continue
			}
			issues = append(issues, fmt.Sprintf("- [%s] %s: %s", r.Status, r.Name, r.Message))
		}
	}
	if len(issues) > 0 {
		sb.WriteString("\nIssues found:\n")
		sb.WriteString(strings.Join(issues, "\n"))
		sb.WriteString("\n")
	}

	if len(rep.Recommendations) > 0 {
		sb.WriteString("\nRecommendations:\n")
		for i, rec := range rep.Recommendations {
			sb.WriteString(fmt.Sprintf("%d. (%s) %s: %s\n", i+1, rec.Priority, rec.Check, rec.Message))
			for _, step := range rec.Steps {
				sb.WriteString("   - " + step + "\n")
			}
		}
	}

	return sb.String()
}

func handleAuditPage(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 180 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		reqBody := auditRequest{
			URL:        url,
			Categories: optionalStringSlice(request, "categories"),
			Keywords:   optionalStringSlice(request, "keywords"),
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/audit", reqBody)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("audit request failed: %v", err)), nil
		}

		var auditResp auditResponse
		if err := json.Unmarshal(respBody, &auditResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !auditResp.Success || auditResp.Report == nil {
			errMsg := "audit failed"
			if auditResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", auditResp.Error.Code, auditResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		return mcp.NewToolResultText(formatReport(auditResp.Report)), nil
	}
}

func handleGetReport(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reportID, err := request.RequireString("report_id")
		if err != nil {
			return mcp.NewToolResultError("report_id is required"), nil
		}

		respBody, err := apiGet(ctx, client, apiURL, apiKey, "/api/v1/reports/"+reportID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("report request failed: %v", err)), nil
		}

		var auditResp auditResponse
		if err := json.Unmarshal(respBody, &auditResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !auditResp.Success || auditResp.Report == nil {
			errMsg := "report not found"
			if auditResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", auditResp.Error.Code, auditResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		return mcp.NewToolResultText(formatReport(auditResp.Report)), nil
	}
}

func handleBatchAudit(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 600 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		urls, err := request.RequireStringSlice("urls")
		if err != nil {
			return mcp.NewToolResultError("urls must be a non-empty array of strings"), nil
		}

		payload := map[string]interface{}{
			"urls": urls,
		}
		options := map[string]interface{}{}
		if cats := optionalStringSlice(request, "categories"); len(cats) > 0 {
			options["categories"] = cats
		}
		if kws := optionalStringSlice(request, "keywords"); len(kws) > 0 {
			options["keywords"] = kws
		}
		if len(options) > 0 {
			payload["options"] = options
		}

		// Create the job, then wait for it.
		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/audit/batch", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("batch request failed: %v", err)), nil
		}

		var batchResp batchResponse
		if err := json.Unmarshal(respBody, &batchResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse batch response: %v", err)), nil
		}

		if batchResp.ID == "" {
			return mcp.NewToolResultError("batch job was not created"), nil
		}

		resultBody, err := pollJobCompletion(ctx, client, apiURL, apiKey, "/api/v1/batch/"+batchResp.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling batch job failed: %v", err)), nil
		}

		var statusResp batchStatusResponse
		if err := json.Unmarshal(resultBody, &statusResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse batch status: %v", err)), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Batch %s: %s (%d/%d completed)\n\n", statusResp.ID, statusResp.Status, statusResp.Completed, statusResp.Total))

		for _, item := range statusResp.Results {
			if item.Error != nil {
				sb.WriteString(fmt.Sprintf("- %s: FAILED [%s] %s\n", item.URL, item.Error.Code, item.Error.Message))
				continue
			}
			sb.WriteString(fmt.Sprintf("- %s: %d/100 (report %s)\n", item.URL, item.Score, item.ReportID))
		}
		sb.WriteString("\nUse get_report with a report ID for full check results.")

		return mcp.NewToolResultText(sb.String()), nil
	}
}

// optionalStringSlice reads an optional array argument, tolerating absence.
func optionalStringSlice(request mcp.CallToolRequest, key string) []string {
	args := request.GetArguments()
	raw, ok := args[key]
	if !ok {
		return nil
	}
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
