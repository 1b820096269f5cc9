package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seolens/seolens/models"
)

func okCheck(ctx context.Context, in *Input) *models.CheckResult {
	return &models.CheckResult{Status: models.StatusGood, Message: "ok"}
}

func desc(cat models.Category, name string, needs Artifact) Descriptor {
	return Descriptor{Name: name, Category: cat, Needs: needs, Run: okCheck}
}

func TestNewRegistry_Valid(t *testing.T) {
	reg, err := NewRegistry(map[models.Category][]Descriptor{
		models.CategoryTechnical: {
			desc(models.CategoryTechnical, "status_code", ArtifactPage),
			desc(models.CategoryTechnical, "canonical_tag", ArtifactDoc),
		},
		models.CategoryContent: {
			desc(models.CategoryContent, "title_tag", ArtifactDoc),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, reg.Total())
	assert.Len(t, reg.Checks(models.CategoryTechnical), 2)
}

func TestNewRegistry_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		catalog map[models.Category][]Descriptor
	}{
		{
			"unknown category",
			map[models.Category][]Descriptor{
				models.Category("bogus"): {desc("bogus", "x", ArtifactPage)},
			},
		},
		{
			"duplicate name",
			map[models.Category][]Descriptor{
				models.CategoryLinks: {
					desc(models.CategoryLinks, "broken_links", ArtifactDoc),
					desc(models.CategoryLinks, "broken_links", ArtifactDoc),
				},
			},
		},
		{
			"empty name",
			map[models.Category][]Descriptor{
				models.CategoryUX: {desc(models.CategoryUX, "", ArtifactDoc)},
			},
		},
		{
			"nil run func",
			map[models.Category][]Descriptor{
				models.CategoryUX: {{Name: "x", Category: models.CategoryUX}},
			},
		},
		{
			"category mismatch",
			map[models.Category][]Descriptor{
				models.CategoryUX: {desc(models.CategoryContent, "x", ArtifactDoc)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.catalog)
			assert.Error(t, err)
		})
	}
}

func TestRegistry_EnabledOrdering(t *testing.T) {
	reg, err := NewRegistry(map[models.Category][]Descriptor{
		models.CategoryAdvanced: {
			desc(models.CategoryAdvanced, "a1", ArtifactDoc),
		},
		models.CategoryTechnical: {
			desc(models.CategoryTechnical, "t1", ArtifactPage),
			desc(models.CategoryTechnical, "t2", ArtifactPage),
		},
		models.CategoryContent: {
			desc(models.CategoryContent, "c1", ArtifactDoc),
		},
	})
	require.NoError(t, err)

	// Request order must not matter: categories come back in canonical
	// order, checks in declaration order.
	got := reg.Enabled([]models.Category{models.CategoryAdvanced, models.CategoryTechnical, models.CategoryContent})
	names := make([]string, len(got))
	for i, d := range got {
		names[i] = d.Name
	}
	assert.Equal(t, []string{"t1", "t2", "c1", "a1"}, names)
}

func TestRegistry_EnabledSubset(t *testing.T) {
	reg, err := NewRegistry(map[models.Category][]Descriptor{
		models.CategoryTechnical: {desc(models.CategoryTechnical, "t1", ArtifactPage)},
		models.CategoryContent:   {desc(models.CategoryContent, "c1", ArtifactDoc)},
	})
	require.NoError(t, err)

	got := reg.Enabled([]models.Category{models.CategoryContent})
	require.Len(t, got, 1)
	assert.Equal(t, "c1", got[0].Name)
}

func TestRegistry_NeedsRender(t *testing.T) {
	reg, err := NewRegistry(map[models.Category][]Descriptor{
		models.CategoryTechnical: {desc(models.CategoryTechnical, "t1", ArtifactPage)},
		models.CategoryAdvanced:  {desc(models.CategoryAdvanced, "parity", ArtifactRendered)},
	})
	require.NoError(t, err)

	assert.False(t, reg.NeedsRender([]models.Category{models.CategoryTechnical}))
	assert.True(t, reg.NeedsRender([]models.Category{models.CategoryTechnical, models.CategoryAdvanced}))
}

func TestInput_Has(t *testing.T) {
	in := &Input{Page: &models.FetchedPage{}}
	assert.True(t, in.Has(ArtifactPage))
	assert.False(t, in.Has(ArtifactDoc))
	assert.False(t, in.Has(ArtifactRendered))
}
