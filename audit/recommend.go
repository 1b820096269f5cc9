package audit

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seolens/seolens/models"
)

//go:embed rules.yaml
var rulesYAML []byte

// remediationRule maps failing checks to fix steps. Category empty means
// any category; Check is an exact name or a prefix ending in '*'. Rules
// are evaluated in file order and the first match wins.
type remediationRule struct {
	Category models.Category `yaml:"category,omitempty"`
	Check    string          `yaml:"check"`
	Steps    []string        `yaml:"steps"`
}

type ruleFile struct {
	Rules    []remediationRule `yaml:"rules"`
	Fallback []string          `yaml:"fallback"`
}

// Recommender turns non-passing check results into prioritized
// remediation items using a static, ordered rule table.
type Recommender struct {
	rules    []remediationRule
	fallback []string
}

// NewRecommender parses the embedded rule table. Rule mistakes are
// configuration bugs, so they fail construction rather than being
// silently skipped at audit time.
func NewRecommender() (*Recommender, error) {
	var rf ruleFile
	if err := yaml.Unmarshal(rulesYAML, &rf); err != nil {
		return nil, fmt.Errorf("audit: parse remediation rules: %w", err)
	}
	if len(rf.Fallback) == 0 {
		return nil, fmt.Errorf("audit: remediation rules missing fallback steps")
	}
	for i, r := range rf.Rules {
		if r.Check == "" {
			return nil, fmt.Errorf("audit: remediation rule %d has no check pattern", i)
		}
		if len(r.Steps) == 0 {
			return nil, fmt.Errorf("audit: remediation rule %d (%s) has no steps", i, r.Check)
		}
		if r.Category != "" && !models.ValidCategory(r.Category) {
			return nil, fmt.Errorf("audit: remediation rule %d has unknown category %q", i, r.Category)
		}
	}
	return &Recommender{rules: rf.Rules, fallback: rf.Fallback}, nil
}

// priorityFor maps result severity to a remediation tier. Good results
// yield no recommendation.
func priorityFor(s models.Status) (models.Priority, bool) {
	switch s {
	case models.StatusError:
		return models.PriorityHigh, true
	case models.StatusWarning:
		return models.PriorityMedium, true
	case models.StatusInfo:
		return models.PriorityLow, true
	default:
		return "", false
	}
}

// Build derives recommendations from results. Ordering is fully
// deterministic: high before medium before low; within a tier, canonical
// category order; within a category, the checks' registry order. Empty
// tiers simply contribute nothing.
func (rec *Recommender) Build(results map[models.Category][]models.CheckResult) []models.Recommendation {
	out := []models.Recommendation{}

	for _, tier := range []models.Priority{models.PriorityHigh, models.PriorityMedium, models.PriorityLow} {
		for _, cat := range models.Categories() {
			for _, r := range results[cat] {
				p, ok := priorityFor(r.Status)
				if !ok || p != tier {
					continue
				}
				out = append(out, models.Recommendation{
					Priority: p,
					Category: r.Category,
					Check:    r.Name,
					Message:  r.Message,
					Steps:    rec.stepsFor(r.Category, r.Name),
				})
			}
		}
	}
	return out
}

// stepsFor finds the first rule matching the check, falling back to the
// generic steps when nothing matches.
func (rec *Recommender) stepsFor(cat models.Category, check string) []string {
	for _, rule := range rec.rules {
		if rule.Category != "" && rule.Category != cat {
			continue
		}
		if matchCheck(rule.Check, check) {
			return rule.Steps
		}
	}
	return rec.fallback
}

func matchCheck(pattern, name string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(name, prefix)
	}
	return pattern == name
}
