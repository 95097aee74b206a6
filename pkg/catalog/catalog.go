// Package catalog loads the brand catalog consumed by the pipeline.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/logo-scraper/pkg/models"
	"github.com/Sriram-PR/logo-scraper/pkg/utils"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// document is the wrapped catalog form: {"brands": [...]}
type document struct {
	Brands []models.BrandRecord `json:"brands" yaml:"brands"`
}

// newValidator registers the slug tag used on models.BrandRecord
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("slugchars", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	return v
}

// Load reads a catalog file. YAML is used for .yaml/.yml, JSON otherwise.
// Both a bare list of brands and a {"brands": [...]} document are accepted.
func Load(path string) ([]models.BrandRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", utils.ErrCatalog, path, err)
	}

	var brands []models.BrandRecord
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		brands, err = decodeYAML(data)
	default:
		brands, err = decodeJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", utils.ErrCatalog, path, err)
	}

	return Normalize(brands)
}

func decodeJSON(data []byte) ([]models.BrandRecord, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var brands []models.BrandRecord
		err := json.Unmarshal(data, &brands)
		return brands, err
	}
	var doc document
	err := json.Unmarshal(data, &doc)
	return doc.Brands, err
}

func decodeYAML(data []byte) ([]models.BrandRecord, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
		var brands []models.BrandRecord
		err := node.Decode(&brands)
		return brands, err
	}
	var doc document
	err := node.Decode(&doc)
	return doc.Brands, err
}

// Normalize trims whitespace, validates every record and enforces slug uniqueness.
// Catalog order is preserved.
func Normalize(brands []models.BrandRecord) ([]models.BrandRecord, error) {
	if len(brands) == 0 {
		return nil, fmt.Errorf("%w: catalog contains no brands", utils.ErrCatalog)
	}

	v := newValidator()
	seen := make(map[string]int, len(brands))
	out := make([]models.BrandRecord, 0, len(brands))

	for i, b := range brands {
		b.Slug = strings.TrimSpace(b.Slug)
		b.DisplayName = strings.TrimSpace(b.DisplayName)
		b.Website = strings.TrimSpace(b.Website)
		variants := make([]string, 0, len(b.NameVariants))
		for _, nv := range b.NameVariants {
			if nv = strings.TrimSpace(nv); nv != "" {
				variants = append(variants, nv)
			}
		}
		b.NameVariants = variants

		if err := v.Struct(b); err != nil {
			return nil, fmt.Errorf("%w: brand #%d (%q): %w", utils.ErrCatalog, i+1, b.Slug, err)
		}
		if prev, dup := seen[b.Slug]; dup {
			return nil, fmt.Errorf("%w: duplicate slug %q at #%d and #%d", utils.ErrCatalog, b.Slug, prev+1, i+1)
		}
		seen[b.Slug] = i
		out = append(out, b)
	}
	return out, nil
}

// Filter keeps only brands whose slug is listed, in catalog order.
// Unknown slugs are reported as an error.
func Filter(brands []models.BrandRecord, slugs []string) ([]models.BrandRecord, error) {
	if len(slugs) == 0 {
		return brands, nil
	}
	want := make(map[string]bool, len(slugs))
	for _, s := range slugs {
		want[s] = true
	}
	out := make([]models.BrandRecord, 0, len(slugs))
	for _, b := range brands {
		if want[b.Slug] {
			out = append(out, b)
			delete(want, b.Slug)
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for s := range want {
			missing = append(missing, s)
		}
		return nil, fmt.Errorf("%w: unknown brand slugs %v", utils.ErrCatalog, missing)
	}
	return out, nil
}

// Find returns the brand with the given slug
func Find(brands []models.BrandRecord, slug string) (models.BrandRecord, bool) {
	for _, b := range brands {
		if b.Slug == slug {
			return b, true
		}
	}
	return models.BrandRecord{}, false
}
