package audit

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/seolens/seolens/config"
	"github.com/seolens/seolens/fetch"
	"github.com/seolens/seolens/htmldoc"
	"github.com/seolens/seolens/models"
)

// digestRunes caps the Markdown content digest in the page summary.
const digestRunes = 600

// PageFetcher retrieves the raw page.
type PageFetcher interface {
	Fetch(ctx context.Context, targetURL string) (*models.FetchedPage, error)
}

// Renderer produces the JavaScript-rendered DOM. Implementations may be
// nil-checked away entirely when browser rendering is disabled.
type Renderer interface {
	Render(ctx context.Context, targetURL string) (*models.RenderedSnapshot, error)
}

// Auditor runs complete audits. It is safe for concurrent use; all
// per-audit state lives on the stack of Run.
type Auditor struct {
	registry    *Registry
	executor    *Executor
	recommender *Recommender
	fetcher     PageFetcher
	renderer    Renderer // nil when rendering is disabled
	cfg         config.AuditConfig
}

// NewAuditor wires the audit pipeline. renderer may be nil.
func NewAuditor(reg *Registry, rec *Recommender, fetcher PageFetcher, renderer Renderer, cfg config.AuditConfig) *Auditor {
	return &Auditor{
		registry:    reg,
		executor:    NewExecutor(cfg.Workers, cfg.CheckTimeout),
		recommender: rec,
		fetcher:     fetcher,
		renderer:    renderer,
		cfg:         cfg,
	}
}

// Registry exposes the check registry, e.g. for listing endpoints.
func (a *Auditor) Registry() *Registry {
	return a.registry
}

// Run performs one complete audit. The only hard failure is the initial
// fetch: everything after it degrades into result rows. The request must
// already be validated and defaulted.
func (a *Auditor) Run(ctx context.Context, req *models.AuditRequest) (*models.AuditReport, error) {
	started := time.Now()

	normalized, err := fetch.NormalizeURL(req.URL)
	if err != nil {
		return nil, models.NewAuditError(models.ErrCodeInvalidInput, "invalid url", err)
	}

	timeout := time.Duration(req.Timeout) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	enabled := req.Categories
	log := slog.With("url", normalized)
	log.Info("audit started", "categories", enabled, "keywords", len(req.Keywords))

	// ── Fetch: the only step that can abort the audit ────────────────
	page, err := a.fetcher.Fetch(ctx, normalized)
	if err != nil {
		log.Warn("audit fetch failed", "error", err)
		return nil, err
	}

	finalURL, err := url.Parse(page.FinalURL)
	if err != nil {
		// Fall back to the normalized request URL; resp.Request.URL
		// should always reparse, but a report beats an abort.
		finalURL, _ = url.Parse(normalized)
	}

	// ── Parse the static DOM ─────────────────────────────────────────
	doc, parseErr := htmldoc.Parse(string(page.Body), page.FinalURL)
	if parseErr != nil {
		log.Warn("static DOM parse failed; DOM checks will be skipped", "error", parseErr)
		doc = nil
	}

	// ── Render lazily: only when an enabled check needs it ───────────
	var (
		rendered *htmldoc.Doc
		snapshot *models.RenderedSnapshot
	)
	if a.registry.NeedsRender(enabled) {
		snapshot, rendered = a.render(ctx, page, log)
	}

	in := &Input{
		URL:      finalURL,
		Page:     page,
		Doc:      doc,
		Rendered: rendered,
		Snapshot: snapshot,
		Keywords: req.Keywords,
	}

	// ── Execute, score, recommend, assemble ──────────────────────────
	results := a.executor.Run(ctx, a.registry, enabled, in)
	scores, overall := scoreAll(results, enabled)
	recs := a.recommender.Build(results)

	report := assembleReport(normalized, results, scores, overall, recs, a.pageSummary(page, doc))

	log.Info("audit finished",
		"report_id", report.ID,
		"overall", overall,
		"checks", report.Summary.TotalChecks,
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
	return report, nil
}

// render runs the browser render and parses its DOM, folding every
// failure into the page's render-unavailable marker.
func (a *Auditor) render(ctx context.Context, page *models.FetchedPage, log *slog.Logger) (*models.RenderedSnapshot, *htmldoc.Doc) {
	if a.renderer == nil {
		page.RenderErr = "browser rendering disabled"
		return nil, nil
	}

	snapshot, err := a.renderer.Render(ctx, page.FinalURL)
	if err != nil {
		log.Warn("render failed; rendered checks will be skipped", "error", err)
		page.RenderErr = renderErrMessage(err)
		return nil, nil
	}
	page.Rendered = snapshot

	rendered, parseErr := htmldoc.Parse(snapshot.HTML, page.FinalURL)
	if parseErr != nil {
		log.Warn("rendered DOM parse failed", "error", parseErr)
		page.RenderErr = "rendered DOM could not be parsed"
		return snapshot, nil
	}
	return snapshot, rendered
}

func renderErrMessage(err error) string {
	var auditErr *models.AuditError
	if errors.As(err, &auditErr) {
		return auditErr.Message
	}
	return "render failed"
}

// pageSummary collects the page-level metadata surfaced in the report.
func (a *Auditor) pageSummary(page *models.FetchedPage, doc *htmldoc.Doc) models.PageSummary {
	ps := models.PageSummary{
		StatusCode:  page.StatusCode,
		FetchMs:     page.Elapsed.Milliseconds(),
		RenderError: page.RenderErr,
	}
	if page.Rendered != nil {
		ps.Rendered = true
		ps.RenderMs = page.Rendered.Elapsed.Milliseconds()
	}
	if doc == nil {
		return ps
	}

	ps.Title = doc.Title
	ps.Description = doc.MetaContent("description")
	ps.WordCount = doc.WordCount()

	main := htmldoc.ExtractMain(doc.HTML, page.FinalURL)
	ps.ContentDigest = htmldoc.ContentDigest(main, doc.URL.Host, digestRunes)
	return ps
}
