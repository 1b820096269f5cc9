// Package checks implements the audit check catalogue: the fifty-nine
// checks behind the six report categories, declared as audit.Descriptors
// so the engine can schedule them without knowing what any individual
// check does.
//
// Checks are pure functions of their input wherever possible. The ones
// that reach outside the fetched page — secondary HTTP probes, link
// liveness, the PageSpeed and SERP capabilities — take their dependencies
// through Deps at construction time so tests can substitute fakes. A
// missing or unconfigured capability never fails a check; the dependent
// checks degrade to an informational result instead.
package checks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/seolens/seolens/audit"
	"github.com/seolens/seolens/config"
	"github.com/seolens/seolens/fetch"
	"github.com/seolens/seolens/models"
	"github.com/seolens/seolens/pagespeed"
	"github.com/seolens/seolens/serp"
)

// Prober issues the secondary HTTP requests some checks need: robots.txt,
// sitemaps, sampled assets, link liveness. *fetch.Client satisfies it.
type Prober interface {
	Probe(ctx context.Context, targetURL string) (int, error)
	GetBody(ctx context.Context, targetURL string, maxBytes int64) (int, []byte, error)
	Head(ctx context.Context, targetURL string) (int, http.Header, error)
	GetResource(ctx context.Context, targetURL string, maxBytes int64) (*fetch.Resource, error)
}

// PageSpeedAnalyzer is the PageSpeed capability as the page_speed check
// consumes it. *pagespeed.Client satisfies it.
type PageSpeedAnalyzer interface {
	Configured() bool
	Analyze(ctx context.Context, pageURL string, strategy pagespeed.Strategy) (*pagespeed.Result, error)
}

// SERPAnalyzer is the SERP capability as the serp_presence check consumes
// it. *serp.Client satisfies it.
type SERPAnalyzer interface {
	Configured() bool
	Features(ctx context.Context, query string) (*serp.Analysis, error)
}

// Deps carries everything the catalogue needs beyond the fetched page.
// Zero-value fields are legal: checks depending on a nil field degrade to
// an informational result.
type Deps struct {
	Thresholds config.Thresholds
	Probe      Prober
	Links      *LinkProber
	PageSpeed  PageSpeedAnalyzer
	SERP       SERPAnalyzer
}

// Catalog builds the full check catalogue, keyed by category. The result
// feeds audit.NewRegistry once at startup; order within each slice is the
// report order.
func Catalog(deps Deps) map[models.Category][]audit.Descriptor {
	return map[models.Category][]audit.Descriptor{
		models.CategoryTechnical:      technicalChecks(deps),
		models.CategoryContent:        contentChecks(deps),
		models.CategoryStructuredData: structuredDataChecks(),
		models.CategoryLinks:          linkChecks(deps),
		models.CategoryUX:             uxChecks(deps),
		models.CategoryAdvanced:       advancedChecks(deps),
	}
}

// --- result constructors ---
//
// Checks fill only Status, Message, and Value; the executor stamps
// Category, Name, and Elapsed.

func res(status models.Status, format string, args ...any) *models.CheckResult {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &models.CheckResult{Status: status, Message: msg}
}

func good(format string, args ...any) *models.CheckResult {
	return res(models.StatusGood, format, args...)
}

func warn(format string, args ...any) *models.CheckResult {
	return res(models.StatusWarning, format, args...)
}

func fail(format string, args ...any) *models.CheckResult {
	return res(models.StatusError, format, args...)
}

func info(format string, args ...any) *models.CheckResult {
	return res(models.StatusInfo, format, args...)
}

// --- small shared helpers ---

// pct returns part/total as a percentage, 0 when total is 0.
func pct(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// plural appends "s" to a unit word when n != 1.
func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// capabilityErrText unwraps an AuditError's human message, falling back
// to the plain error string.
func capabilityErrText(err error) string {
	var ae *models.AuditError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}

// issueResult collapses a collected issue list into one result: no issues
// is good, anything else a warning listing them.
func issueResult(issues []string, okFormat string, okArgs ...any) *models.CheckResult {
	if len(issues) == 0 {
		return good(okFormat, okArgs...)
	}
	r := warn("%s", strings.Join(issues, "; "))
	r.Value = map[string]any{"issues": issues}
	return r
}

// truncate shortens a string for inclusion in result values.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
