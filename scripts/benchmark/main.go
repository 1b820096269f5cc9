// Command benchmark drives a running Seolens server with repeated audits
// against a fixed set of pages and reports latency and score stability
// per page. Results are printed as a table and written to a JSON file.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

var (
	apiURL  = flag.String("api-url", "http://localhost:8080", "Seolens API base URL")
	apiKey  = flag.String("api-key", "", "API key for authenticated requests")
	runs    = flag.Int("runs", 3, "audits per URL")
	timeout = flag.Int("timeout", 60, "per-audit timeout in seconds")
	urlList = flag.String("urls", "", "comma-separated URLs to audit instead of the built-in set")
	output  = flag.String("output", "benchmark-results.json", "JSON results file")
)

type target struct {
	Label string
	URL   string
}

// defaultTargets covers the page shapes that stress different parts of the
// pipeline: static HTML, text-heavy articles, and script-heavy apps.
var defaultTargets = []target{
	{"Static", "https://example.com"},
	{"Blog", "https://go.dev/blog/go1.21"},
	{"Docs", "https://go.dev/doc/effective_go"},
	{"News", "https://www.bbc.com/news"},
	{"Complex", "https://github.com/go-rod/rod"},
}

// Wire types mirror the models package so the script stays standalone.

type auditRequest struct {
	URL      string `json:"url"`
	Timeout  int    `json:"timeout"`
	UseCache bool   `json:"use_cache"`
}

type auditResponse struct {
	Success bool         `json:"success"`
	Report  *auditReport `json:"report"`
	Error   *errorDetail `json:"error,omitempty"`
}

type auditReport struct {
	OverallScore int         `json:"overall_score"`
	Summary      summary     `json:"summary"`
	Page         pageSummary `json:"page"`
}

type summary struct {
	TotalChecks int `json:"total_checks"`
	Passed      int `json:"passed"`
	Warnings    int `json:"warnings"`
	Errors      int `json:"errors"`
}

type pageSummary struct {
	WordCount  int   `json:"word_count"`
	StatusCode int   `json:"status_code"`
	FetchMs    int64 `json:"fetch_ms"`
	RenderMs   int64 `json:"render_ms"`
	Rendered   bool  `json:"rendered"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type runResult struct {
	Run        int    `json:"run"`
	TotalMs    int64  `json:"total_ms"`
	FetchMs    int64  `json:"fetch_ms"`
	RenderMs   int64  `json:"render_ms"`
	Score      int    `json:"score"`
	Checks     int    `json:"checks"`
	Warnings   int    `json:"warnings"`
	Errors     int    `json:"errors"`
	WordCount  int    `json:"word_count"`
	StatusCode int    `json:"status_code"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

type urlAverages struct {
	TotalMs  float64 `json:"total_ms"`
	FetchMs  float64 `json:"fetch_ms"`
	RenderMs float64 `json:"render_ms"`
	Score    float64 `json:"score"`
}

type urlResult struct {
	URL      string       `json:"url"`
	Label    string       `json:"label"`
	Runs     []runResult  `json:"runs"`
	Averages *urlAverages `json:"averages,omitempty"`
}

type benchmarkReport struct {
	Timestamp  string      `json:"timestamp"`
	APIURL     string      `json:"api_url"`
	RunsPerURL int         `json:"runs_per_url"`
	Results    []urlResult `json:"results"`
}

// bench holds the shared HTTP client and connection details for one
// benchmark session.
type bench struct {
	client  *http.Client
	baseURL string
	key     string
	timeout int
}

func main() {
	flag.Parse()

	targets := defaultTargets
	if *urlList != "" {
		targets = targets[:0]
		for _, u := range strings.Split(*urlList, ",") {
			if u = strings.TrimSpace(u); u != "" {
				targets = append(targets, target{Label: "Custom", URL: u})
			}
		}
	}

	fmt.Printf("Seolens benchmark: %d URLs x %d runs against %s\n\n", len(targets), *runs, *apiURL)

	b := &bench{
		// The audit itself is capped server-side; leave headroom for
		// queueing and response transfer.
		client:  &http.Client{Timeout: time.Duration(*timeout+30) * time.Second},
		baseURL: *apiURL,
		key:     *apiKey,
		timeout: *timeout,
	}

	if err := b.waitForServer(3); err != nil {
		fmt.Fprintf(os.Stderr, "cannot reach %s: %v\n", *apiURL, err)
		fmt.Fprintln(os.Stderr, "start the server first: go run ./cmd/seolens")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		APIURL:     *apiURL,
		RunsPerURL: *runs,
	}

	for _, t := range targets {
		fmt.Printf("[%s] %s\n", t.Label, t.URL)
		ur := urlResult{URL: t.URL, Label: t.Label}

		for i := 1; i <= *runs; i++ {
			rr := b.auditOnce(t.URL, i)
			ur.Runs = append(ur.Runs, rr)
			if rr.Success {
				fmt.Printf("  run %d/%d: %dms  score %d  (fetch %dms, render %dms, %d errors, %d warnings)\n",
					i, *runs, rr.TotalMs, rr.Score, rr.FetchMs, rr.RenderMs, rr.Errors, rr.Warnings)
			} else {
				fmt.Printf("  run %d/%d: FAILED: %s\n", i, *runs, rr.Error)
			}
		}

		ur.Averages = averages(ur.Runs)
		report.Results = append(report.Results, ur)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeResults(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "writing %s: %v\n", *output, err)
		os.Exit(1)
	}
	fmt.Printf("\nfull results written to %s\n", *output)
}

// waitForServer polls the health endpoint, retrying so the benchmark can
// be started right after the server.
func (b *bench) waitForServer(attempts int) error {
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(time.Second)
		}
		var resp *http.Response
		resp, err = b.client.Get(b.baseURL + "/api/v1/health")
		if err == nil {
			resp.Body.Close()
			return nil
		}
	}
	return err
}

// auditOnce submits one audit and flattens the response into a runResult.
// Latency is measured client-side and includes queueing on the server.
func (b *bench) auditOnce(url string, run int) runResult {
	rr := runResult{Run: run}

	// Cache is bypassed so every run measures a fresh audit.
	payload, err := json.Marshal(auditRequest{URL: url, Timeout: b.timeout, UseCache: false})
	if err != nil {
		rr.Error = fmt.Sprintf("marshal: %v", err)
		return rr
	}

	req, err := http.NewRequest(http.MethodPost, b.baseURL+"/api/v1/audit", bytes.NewReader(payload))
	if err != nil {
		rr.Error = fmt.Sprintf("build request: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if b.key != "" {
		req.Header.Set("Authorization", "Bearer "+b.key)
	}

	start := time.Now()
	resp, err := b.client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request: %v", err)
		return rr
	}
	defer resp.Body.Close()
	rr.TotalMs = time.Since(start).Milliseconds()

	var ar auditResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		rr.Error = fmt.Sprintf("decode: %v", err)
		return rr
	}

	if ar.Error != nil {
		rr.Error = ar.Error.Message
	}
	if !ar.Success || ar.Report == nil {
		if rr.Error == "" {
			rr.Error = fmt.Sprintf("audit failed with HTTP %d", resp.StatusCode)
		}
		return rr
	}

	rr.Success = true
	rr.FetchMs = ar.Report.Page.FetchMs
	rr.RenderMs = ar.Report.Page.RenderMs
	rr.Score = ar.Report.OverallScore
	rr.Checks = ar.Report.Summary.TotalChecks
	rr.Warnings = ar.Report.Summary.Warnings
	rr.Errors = ar.Report.Summary.Errors
	rr.WordCount = ar.Report.Page.WordCount
	rr.StatusCode = ar.Report.Page.StatusCode
	return rr
}

// averages reports per-URL means over successful runs, nil if none
// succeeded.
func averages(results []runResult) *urlAverages {
	var ok []runResult
	for _, r := range results {
		if r.Success {
			ok = append(ok, r)
		}
	}
	if len(ok) == 0 {
		return nil
	}

	var avg urlAverages
	for _, r := range ok {
		avg.TotalMs += float64(r.TotalMs)
		avg.FetchMs += float64(r.FetchMs)
		avg.RenderMs += float64(r.RenderMs)
		avg.Score += float64(r.Score)
	}
	n := float64(len(ok))
	avg.TotalMs /= n
	avg.FetchMs /= n
	avg.RenderMs /= n
	avg.Score /= n
	return &avg
}

func printTable(results []urlResult) {
	rule := strings.Repeat("─", 90)
	fmt.Println(rule)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "URL\tTotal\tFetch\tRender\tScore\tHTTP")

	for _, r := range results {
		if r.Averages == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t-\t-\n", shorten(r.URL, 42))
			continue
		}
		fmt.Fprintf(w, "%s\t%dms\t%dms\t%dms\t%.0f/100\t%d\n",
			shorten(r.URL, 42),
			int64(r.Averages.TotalMs),
			int64(r.Averages.FetchMs),
			int64(r.Averages.RenderMs),
			r.Averages.Score,
			modalStatus(r.Runs),
		)
	}

	w.Flush()
	fmt.Println(rule)
}

// modalStatus picks the most frequent HTTP status across successful runs.
func modalStatus(results []runResult) int {
	counts := make(map[int]int)
	mode := 0
	for _, r := range results {
		if !r.Success {
			continue
		}
		counts[r.StatusCode]++
		if counts[r.StatusCode] > counts[mode] {
			mode = r.StatusCode
		}
	}
	return mode
}

func shorten(u string, max int) string {
	if len(u) <= max {
		return u
	}
	return u[:max-3] + "..."
}

func writeResults(path string, report benchmarkReport) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
