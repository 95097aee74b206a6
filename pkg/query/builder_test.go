package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/logo-scraper/pkg/models"
)

func TestBuild_NoVariantsYieldsExactlyOneQuery(t *testing.T) {
	b := NewBuilder(4, "logo", "")
	queries := b.Build(models.BrandRecord{Slug: "acme", DisplayName: "Acme Casino"})

	require.Len(t, queries, 1)
	assert.Equal(t, "Acme Casino logo", queries[0].Text)
	assert.Equal(t, "Acme Casino", queries[0].Term)
	assert.Empty(t, queries[0].BackendHint)
}

func TestBuild_VariantsInOrderSkippingDisplayName(t *testing.T) {
	b := NewBuilder(4, "logo", "")
	queries := b.Build(models.BrandRecord{
		Slug:         "acme",
		DisplayName:  "Acme Casino",
		NameVariants: []string{"ACME CASINO", "Acme", "acme", "Acme Online"},
		Website:      "https://acme.example",
	})

	texts := make([]string, 0, len(queries))
	for _, q := range queries {
		texts = append(texts, q.Text)
		assert.Equal(t, "https://acme.example", q.Website)
	}
	assert.Equal(t, []string{"Acme Casino logo", "Acme logo", "Acme Online logo"}, texts)
}

func TestBuild_CapsQueryCount(t *testing.T) {
	b := NewBuilder(2, "logo", "")
	queries := b.Build(models.BrandRecord{
		Slug:         "acme",
		DisplayName:  "Acme",
		NameVariants: []string{"A1", "A2", "A3"},
	})
	assert.Len(t, queries, 2)

	one := NewBuilder(0, "logo", "")
	assert.Len(t, one.Build(models.BrandRecord{Slug: "acme", DisplayName: "Acme", NameVariants: []string{"A1"}}), 1)
}

func TestBuild_VariantHintAndQualifier(t *testing.T) {
	b := NewBuilder(3, "", models.BackendWebSearch)
	queries := b.Build(models.BrandRecord{Slug: "acme", DisplayName: "Acme", NameVariants: []string{"Acme Corp"}})

	require.Len(t, queries, 2)
	assert.Equal(t, "Acme", queries[0].Text, "no qualifier appended")
	assert.Empty(t, queries[0].BackendHint, "display-name query goes to every backend")
	assert.Equal(t, models.BackendWebSearch, queries[1].BackendHint)
}

func TestBuild_FallsBackToSlug(t *testing.T) {
	b := NewBuilder(3, "logo", "")
	queries := b.Build(models.BrandRecord{Slug: "acme"})
	require.Len(t, queries, 1)
	assert.Equal(t, "acme logo", queries[0].Text)
}
