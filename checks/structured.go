package checks

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/seolens/seolens/audit"
	"github.com/seolens/seolens/models"
)

func structuredDataChecks() []audit.Descriptor {
	cat := models.CategoryStructuredData
	return []audit.Descriptor{
		{Name: "structured_data_present", Category: cat, Needs: audit.ArtifactDoc, Run: checkStructuredDataPresent},
		{Name: "schema_types", Category: cat, Needs: audit.ArtifactDoc, Run: checkSchemaTypes},
		{Name: "schema_completeness", Category: cat, Needs: audit.ArtifactDoc, Run: checkSchemaCompleteness},
		{Name: "open_graph", Category: cat, Needs: audit.ArtifactDoc, Run: checkOpenGraph},
		{Name: "twitter_cards", Category: cat, Needs: audit.ArtifactDoc, Run: checkTwitterCards},
	}
}

func checkStructuredDataPresent(_ context.Context, in *audit.Input) *models.CheckResult {
	n := len(in.Doc.JSONLD)
	if n > 0 {
		r := good("JSON-LD structured data found (%s)", plural(n, "block"))
		r.Value = map[string]any{"blocks": n}
		return r
	}

	if in.Doc.Query.Find("[itemscope]").Length() > 0 {
		return warn("Only microdata markup found; prefer JSON-LD")
	}
	return warn("No structured data found")
}

func checkSchemaTypes(_ context.Context, in *audit.Input) *models.CheckResult {
	if len(in.Doc.JSONLD) == 0 {
		return info("No structured data to inspect")
	}

	types := schemaTypes(in.Doc.JSONLD)
	if len(types) == 0 {
		return warn("JSON-LD present but no @type declared")
	}

	r := good("Schema types: %s", strings.Join(types, ", "))
	r.Value = map[string]any{"types": types}
	return r
}

// requiredSchemaProps lists the properties a type needs before rich
// results are plausible.
var requiredSchemaProps = map[string][]string{
	"Article":       {"headline", "author", "datePublished", "image"},
	"BlogPosting":   {"headline", "author", "datePublished", "image"},
	"NewsArticle":   {"headline", "author", "datePublished", "image"},
	"Product":       {"name", "image", "description", "offers"},
	"LocalBusiness": {"name", "address", "telephone"},
}

func checkSchemaCompleteness(_ context.Context, in *audit.Input) *models.CheckResult {
	if len(in.Doc.JSONLD) == 0 {
		return info("No structured data to inspect")
	}

	var checked []string
	var issues []string
	for _, block := range flattenSchemaBlocks(in.Doc.JSONLD) {
		for _, t := range blockTypes(block) {
			required, known := requiredSchemaProps[t]
			if !known {
				continue
			}
			checked = append(checked, t)
			var missing []string
			for _, prop := range required {
				if _, ok := block[prop]; !ok {
					missing = append(missing, prop)
				}
			}
			if len(missing) > 0 {
				issues = append(issues, fmt.Sprintf("%s missing %s", t, strings.Join(missing, ", ")))
			}
		}
	}

	if len(checked) == 0 {
		return info("No schema types with completeness rules on this page")
	}

	r := issueResult(issues, "Required properties present for %s", strings.Join(checked, ", "))
	if r.Value == nil {
		r.Value = map[string]any{}
	}
	r.Value["checked"] = checked
	return r
}

func checkOpenGraph(_ context.Context, in *audit.Input) *models.CheckResult {
	og := in.Doc.OG
	required := map[string]string{
		"og:title": og.Title,
		"og:type":  og.Type,
		"og:image": og.Image,
		"og:url":   og.URL,
	}

	var missing []string
	for tag, val := range required {
		if val == "" {
			missing = append(missing, tag)
		}
	}
	sort.Strings(missing)

	switch {
	case len(missing) == 0:
		return good("Open Graph tags complete")
	case len(missing) == len(required):
		return warn("No Open Graph tags found")
	default:
		r := warn("Missing Open Graph tags: %s", strings.Join(missing, ", "))
		r.Value = map[string]any{"missing": missing}
		return r
	}
}

func checkTwitterCards(_ context.Context, in *audit.Input) *models.CheckResult {
	tw := in.Doc.Twitter
	if len(tw) == 0 {
		return info("No Twitter Card tags found")
	}

	card := tw["card"]
	if card == "" {
		return warn("Twitter tags present but twitter:card type is missing")
	}

	required := []string{"title", "description"}
	if card == "summary_large_image" {
		required = append(required, "image")
	}

	var missing []string
	for _, name := range required {
		if tw[name] == "" {
			missing = append(missing, "twitter:"+name)
		}
	}

	if len(missing) > 0 {
		r := warn("Twitter Card %q missing %s", card, strings.Join(missing, ", "))
		r.Value = map[string]any{"card": card, "missing": missing}
		return r
	}
	r := good("Twitter Card configured (%s)", card)
	r.Value = map[string]any{"card": card}
	return r
}

// flattenSchemaBlocks expands @graph containers so nested entities are
// inspected like top-level ones.
func flattenSchemaBlocks(blocks []map[string]any) []map[string]any {
	var out []map[string]any
	for _, block := range blocks {
		out = append(out, block)
		if graph, ok := block["@graph"].([]any); ok {
			for _, item := range graph {
				if m, ok := item.(map[string]any); ok {
					out = append(out, m)
				}
			}
		}
	}
	return out
}

// blockTypes extracts the @type value(s) of one JSON-LD block.
func blockTypes(block map[string]any) []string {
	switch t := block["@type"].(type) {
	case string:
		return []string{t}
	case []any:
		var out []string
		for _, v := range t {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// schemaTypes walks all blocks (including @graph members) and returns the
// distinct @type values in first-seen order.
func schemaTypes(blocks []map[string]any) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, block := range flattenSchemaBlocks(blocks) {
		for _, t := range blockTypes(block) {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}
