// Package audit wires the whole pipeline together: it fetches a page,
// runs every enabled check through a bounded worker pool, scores the
// results, derives recommendations, and assembles the final report.
package audit

import (
	"context"
	"fmt"
	"net/url"

	"github.com/seolens/seolens/htmldoc"
	"github.com/seolens/seolens/models"
)

// Artifact describes which fetched representation a check needs. The
// executor skips checks whose artifact is unavailable instead of failing
// the audit.
type Artifact int

const (
	// ArtifactPage: the raw HTTP response (headers, status, body bytes).
	ArtifactPage Artifact = iota
	// ArtifactDoc: the parsed static DOM.
	ArtifactDoc
	// ArtifactRendered: the JavaScript-rendered DOM.
	ArtifactRendered
)

func (a Artifact) String() string {
	switch a {
	case ArtifactPage:
		return "page"
	case ArtifactDoc:
		return "document"
	case ArtifactRendered:
		return "rendered document"
	default:
		return "unknown"
	}
}

// Input carries the fetched artifacts into a check. Checks treat every
// field as read-only; all mutation happens before the executor fans out.
type Input struct {
	// URL is the parsed final URL of the page.
	URL *url.URL
	// Page is the raw HTTP fetch result. Always present.
	Page *models.FetchedPage
	// Doc is the parsed static DOM. Nil when the body was not parseable.
	Doc *htmldoc.Doc
	// Rendered is the parsed JavaScript-rendered DOM. Nil when rendering
	// was skipped or failed.
	Rendered *htmldoc.Doc
	// Snapshot holds render side-channels (console errors, failed
	// requests). Nil whenever Rendered is nil.
	Snapshot *models.RenderedSnapshot
	// Keywords are the caller-supplied target keywords, may be empty.
	Keywords []string
}

// Has reports whether the artifact a check declared is available.
func (in *Input) Has(a Artifact) bool {
	switch a {
	case ArtifactPage:
		return in.Page != nil
	case ArtifactDoc:
		return in.Doc != nil
	case ArtifactRendered:
		return in.Rendered != nil
	default:
		return false
	}
}

// CheckFunc is a single check. It must be a pure function of its input:
// no shared mutable state, no side effects beyond its own result. The
// executor stamps Category, Name, and Elapsed afterwards, so checks only
// fill Status, Message, and Value.
type CheckFunc func(ctx context.Context, in *Input) *models.CheckResult

// Descriptor declares one check: its identity, the artifact it needs, and
// the function that runs it.
type Descriptor struct {
	Name     string
	Category models.Category
	Needs    Artifact
	Run      CheckFunc
}

// Registry is the immutable set of known checks, grouped by category and
// ordered within each category by declaration order. Built once at
// startup; concurrent audits share it without locking.
type Registry struct {
	byCategory map[models.Category][]Descriptor
	total      int
}

// NewRegistry validates and freezes a catalog of descriptors. It rejects
// unknown categories, missing fields, and duplicate names within a
// category so wiring mistakes surface at startup, not mid-audit.
func NewRegistry(catalog map[models.Category][]Descriptor) (*Registry, error) {
	byCategory := make(map[models.Category][]Descriptor, len(catalog))
	total := 0

	for cat, descs := range catalog {
		if !models.ValidCategory(cat) {
			return nil, fmt.Errorf("audit: unknown category %q", cat)
		}
		seen := make(map[string]struct{}, len(descs))
		frozen := make([]Descriptor, len(descs))
		for i, d := range descs {
			if d.Name == "" {
				return nil, fmt.Errorf("audit: unnamed check in category %q", cat)
			}
			if d.Run == nil {
				return nil, fmt.Errorf("audit: check %q has no run function", d.Name)
			}
			if d.Category != cat {
				return nil, fmt.Errorf("audit: check %q declares category %q but is listed under %q", d.Name, d.Category, cat)
			}
			if _, dup := seen[d.Name]; dup {
				return nil, fmt.Errorf("audit: duplicate check %q in category %q", d.Name, cat)
			}
			seen[d.Name] = struct{}{}
			frozen[i] = d
		}
		byCategory[cat] = frozen
		total += len(frozen)
	}

	return &Registry{byCategory: byCategory, total: total}, nil
}

// Checks returns the descriptors for a category in declaration order.
// Callers must not mutate the returned slice.
func (r *Registry) Checks(cat models.Category) []Descriptor {
	return r.byCategory[cat]
}

// Enabled returns the descriptors of the given categories, categories in
// canonical order, checks within each in declaration order.
func (r *Registry) Enabled(categories []models.Category) []Descriptor {
	want := make(map[models.Category]struct{}, len(categories))
	for _, c := range categories {
		want[c] = struct{}{}
	}

	var out []Descriptor
	for _, cat := range models.Categories() {
		if _, ok := want[cat]; !ok {
			continue
		}
		out = append(out, r.byCategory[cat]...)
	}
	return out
}

// NeedsRender reports whether any enabled check needs the rendered DOM.
// The audit uses this to decide whether to pay for a browser render.
func (r *Registry) NeedsRender(categories []models.Category) bool {
	for _, d := range r.Enabled(categories) {
		if d.Needs == ArtifactRendered {
			return true
		}
	}
	return false
}

// Total reports the number of registered checks across all categories.
func (r *Registry) Total() int {
	return r.total
}
