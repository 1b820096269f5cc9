package audit

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/seolens/seolens/models"
)

// Executor fans enabled checks out over a bounded worker pool. Every
// enabled check produces exactly one result: faults, timeouts, and
// missing artifacts all degrade into result rows instead of failing the
// audit.
type Executor struct {
	workers      int
	checkTimeout time.Duration
}

// NewExecutor builds an executor. workers caps concurrent checks;
// checkTimeout is the hard per-check deadline.
func NewExecutor(workers int, checkTimeout time.Duration) *Executor {
	if workers < 1 {
		workers = 1
	}
	return &Executor{workers: workers, checkTimeout: checkTimeout}
}

// Run executes every check of the enabled categories against in and
// returns results grouped by category, each category's results in
// registry declaration order regardless of completion order.
func (e *Executor) Run(ctx context.Context, reg *Registry, categories []models.Category, in *Input) map[models.Category][]models.CheckResult {
	descs := reg.Enabled(categories)
	results := make([]*models.CheckResult, len(descs))

	sem := make(chan struct{}, e.workers)
	var wg sync.WaitGroup
	for i, d := range descs {
		wg.Add(1)
		sem <- struct{}{}
		go func(slot int, desc Descriptor) {
			defer wg.Done()
			defer func() { <-sem }()
			results[slot] = e.runOne(ctx, desc, in)
		}(i, d)
	}
	wg.Wait()

	grouped := make(map[models.Category][]models.CheckResult, len(categories))
	for i, d := range descs {
		r := results[i]
		if r == nil {
			r = &models.CheckResult{
				Status:  models.StatusError,
				Message: "Check produced no result",
			}
		}
		r.Category = d.Category
		r.Name = d.Name
		grouped[d.Category] = append(grouped[d.Category], *r)
	}
	return grouped
}

// runOne runs a single check with panic recovery and a hard timeout. A
// check that ignores its context cannot stall the audit: the inner
// goroutine is abandoned and an error result returned in its place.
func (e *Executor) runOne(ctx context.Context, d Descriptor, in *Input) *models.CheckResult {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return timedOut(d, start, ctx)
	}

	if !in.Has(d.Needs) {
		return skipped(d, in, start)
	}

	cctx, cancel := context.WithTimeout(ctx, e.checkTimeout)
	defer cancel()

	done := make(chan *models.CheckResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("check panicked",
					"check", d.Name,
					"category", d.Category,
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				done <- &models.CheckResult{
					Status:  models.StatusError,
					Message: fmt.Sprintf("Check failed unexpectedly: %v", rec),
				}
			}
		}()
		done <- d.Run(cctx, in)
	}()

	select {
	case r := <-done:
		if r == nil {
			r = &models.CheckResult{
				Status:  models.StatusError,
				Message: "Check produced no result",
			}
		}
		r.Elapsed = time.Since(start).Milliseconds()
		return r
	case <-cctx.Done():
		return timedOut(d, start, ctx)
	}
}

// timedOut distinguishes a single slow check from the audit deadline
// sweeping everything up.
func timedOut(d Descriptor, start time.Time, auditCtx context.Context) *models.CheckResult {
	msg := fmt.Sprintf("Check did not finish within %s", formatCheckTimeout(time.Since(start)))
	if auditCtx.Err() != nil {
		msg = "Audit deadline reached before check finished"
	}
	slog.Warn("check timed out", "check", d.Name, "category", d.Category)
	return &models.CheckResult{
		Status:  models.StatusError,
		Message: msg,
		Elapsed: time.Since(start).Milliseconds(),
	}
}

func formatCheckTimeout(elapsed time.Duration) string {
	return elapsed.Round(100 * time.Millisecond).String()
}

// skipped produces the info result for a check whose artifact never
// materialized, carrying the render failure reason when there is one.
func skipped(d Descriptor, in *Input, start time.Time) *models.CheckResult {
	r := &models.CheckResult{
		Status:  models.StatusInfo,
		Message: fmt.Sprintf("Skipped: %s unavailable", d.Needs),
		Elapsed: time.Since(start).Milliseconds(),
	}
	if d.Needs == ArtifactRendered && in.Page != nil && in.Page.RenderErr != "" {
		r.Value = map[string]any{"reason": in.Page.RenderErr}
	}
	return r
}
