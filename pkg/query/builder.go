// Package query turns brand records into ordered search queries.
package query

import (
	"strings"

	"github.com/Sriram-PR/logo-scraper/pkg/models"
)

// Builder produces the query list for a brand. It is stateless and safe for concurrent use.
type Builder struct {
	maxQueries  int
	qualifier   string
	variantHint models.BackendKind
}

// NewBuilder creates a Builder. maxQueries < 1 is treated as 1.
func NewBuilder(maxQueries int, qualifier string, variantHint models.BackendKind) *Builder {
	if maxQueries < 1 {
		maxQueries = 1
	}
	return &Builder{
		maxQueries:  maxQueries,
		qualifier:   strings.TrimSpace(qualifier),
		variantHint: variantHint,
	}
}

// Build returns at least one query: the display name with the qualifier.
// Name variants follow in declared order, skipping any equal (case-insensitive)
// to the display name or to an earlier variant. The list is capped at maxQueries.
func (b *Builder) Build(brand models.BrandRecord) []models.SearchQuery {
	name := strings.TrimSpace(brand.DisplayName)
	if name == "" {
		name = brand.Slug
	}

	queries := make([]models.SearchQuery, 0, b.maxQueries)
	queries = append(queries, b.query(name, brand.Website, ""))

	seen := map[string]bool{strings.ToLower(name): true}
	for _, variant := range brand.NameVariants {
		if len(queries) >= b.maxQueries {
			break
		}
		variant = strings.TrimSpace(variant)
		key := strings.ToLower(variant)
		if variant == "" || seen[key] {
			continue
		}
		seen[key] = true
		queries = append(queries, b.query(variant, brand.Website, b.variantHint))
	}
	return queries
}

func (b *Builder) query(term, website string, hint models.BackendKind) models.SearchQuery {
	text := term
	if b.qualifier != "" {
		text = term + " " + b.qualifier
	}
	return models.SearchQuery{
		Text:        text,
		Term:        term,
		Website:     website,
		BackendHint: hint,
	}
}
