package fetch

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/seolens/seolens/models"
)

// Render loads targetURL in a pooled browser tab and captures the
// JavaScript-rendered DOM plus console errors and failed resource loads.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Timeout guard    – hard deadline on the entire render
//  2. Acquire tab      – borrow from the pool (or create one)
//  3. DEFER: cleanup   – about:blank + return to pool (leak prevention)
//  4. Stealth + headers – mask automation before navigation
//  5. Hijack mount     – block fonts/media/ads (before navigation!)
//  6. Event listeners  – console + network log capture (before navigation!)
//  7. Navigate + wait  – DOM stable
//  8. Scroll           – trigger lazy-loaded content
//  9. Extract          – page.HTML()
//
// Steps 4–6 MUST happen before step 7: stealth JS, resource blocking, and
// CDP listeners only take effect for navigations after they are installed.
// Step 3's about:blank uses the ORIGINAL page reference (without request
// context), so cleanup succeeds even if the request context has expired.
func (b *Browser) Render(ctx context.Context, targetURL string) (*models.RenderedSnapshot, error) {
	if b == nil {
		return nil, models.NewAuditError(models.ErrCodeRenderFailed, "browser rendering is disabled", nil)
	}

	start := time.Now()

	// ── 1. Timeout guard ─────────────────────────────────────────────
	ctx, cancel := context.WithTimeout(ctx, b.cfg.RenderTimeout)
	defer cancel()

	// ── 2. Acquire tab from pool ─────────────────────────────────────
	b.activeTabs.Add(1)
	defer b.activeTabs.Add(-1)

	handle, err := b.pool.get(ctx)
	if err != nil {
		return nil, models.NewAuditError(
			models.ErrCodeRenderFailed,
			"failed to acquire browser tab",
			err,
		)
	}
	page := handle.page

	// ── 3. CRITICAL DEFER: prevent DOM memory leak + guarantee pool return
	renderOK := false
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("render cleanup: failed to navigate to about:blank", "error", navErr)
		}
		b.pool.put(handle, renderOK)
	}()

	// ── 4. Stealth injection + Google referer ────────────────────────
	if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
	}
	if u, parseErr := url.Parse(targetURL); parseErr == nil {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: proto.NetworkHeaders{
				"Referer": gson.New("https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())),
			},
		}.Call(page)
	}

	// ── 5. Mount hijack router (blocks configured types + ads) ───────
	router := setupHijack(page, b.cfg.BlockedResourceTypes, b.cfg.BlockAds)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	// ── 6. Console + network log capture ─────────────────────────────
	// Runtime and Log domain events do not conflict with the hijack's
	// Fetch domain, unlike Network domain listeners.
	var (
		capMu          sync.Mutex
		consoleErrors  []string
		failedRequests []string
	)
	p := page.Context(ctx)
	waitEvents := p.EachEvent(
		func(e *proto.RuntimeConsoleAPICalled) {
			if e.Type != proto.RuntimeConsoleAPICalledTypeError {
				return
			}
			capMu.Lock()
			defer capMu.Unlock()
			if len(consoleErrors) < 50 {
				consoleErrors = append(consoleErrors, consoleArgsText(e.Args))
			}
		},
		func(e *proto.LogEntryAdded) {
			if e.Entry.Level != proto.LogLogEntryLevelError {
				return
			}
			capMu.Lock()
			defer capMu.Unlock()
			if e.Entry.Source == proto.LogLogEntrySourceNetwork {
				if len(failedRequests) < 50 {
					failedRequests = append(failedRequests, e.Entry.URL)
				}
			} else if len(consoleErrors) < 50 {
				consoleErrors = append(consoleErrors, e.Entry.Text)
			}
		},
	)
	go waitEvents()

	// ── 7. Navigate + wait for DOM to settle ─────────────────────────
	if navErr := p.Navigate(targetURL); navErr != nil {
		return nil, classifyRenderError(navErr, "navigation failed")
	}
	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"error", stableErr)
	}

	// ── 8. Scroll to the bottom to trigger lazy-loaded content ───────
	scrollPage(p)

	// ── 9. Extract rendered HTML ─────────────────────────────────────
	rawHTML, htmlErr := p.HTML()
	if htmlErr != nil {
		return nil, classifyRenderError(htmlErr, "failed to extract rendered HTML")
	}

	renderOK = true
	capMu.Lock()
	snapshot := &models.RenderedSnapshot{
		HTML:           rawHTML,
		ConsoleErrors:  append([]string(nil), consoleErrors...),
		FailedRequests: append([]string(nil), failedRequests...),
		Elapsed:        time.Since(start),
	}
	capMu.Unlock()
	return snapshot, nil
}

// scrollPage scrolls down a few viewports with brief pauses so lazy-loaded
// images and infinite-scroll sections materialize. Best effort.
func scrollPage(p *rod.Page) {
	res, err := p.Eval(`() => window.innerHeight`)
	if err != nil {
		return
	}
	viewportHeight := res.Value.Int()

	for i := 0; i < 3; i++ {
		if err := p.Mouse.Scroll(0, float64(viewportHeight), 0); err != nil {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	// Back to the top so layout-dependent checks see the initial viewport.
	_, _ = p.Eval(`() => window.scrollTo(0, 0)`)
}

// consoleArgsText joins the remote objects of a console call into one line.
func consoleArgsText(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == nil {
			continue
		}
		if s := arg.Value.Str(); s != "" {
			parts = append(parts, s)
			continue
		}
		if arg.Description != "" {
			parts = append(parts, arg.Description)
		}
	}
	return strings.Join(parts, " ")
}

// classifyRenderError wraps raw rod errors into typed AuditErrors.
func classifyRenderError(err error, msg string) *models.AuditError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewAuditError(models.ErrCodeRenderFailed, msg+": render timed out", err)
	case errors.Is(err, context.Canceled):
		return models.NewAuditError(models.ErrCodeRenderFailed, msg+": render canceled", err)
	default:
		return models.NewAuditError(models.ErrCodeRenderFailed, msg, err)
	}
}
