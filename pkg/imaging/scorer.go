package imaging

import (
	"strings"

	"github.com/Sriram-PR/logo-scraper/pkg/models"
	"github.com/Sriram-PR/logo-scraper/pkg/utils"
)

// Score weights. Relative order matters more than absolute values.
const (
	bandComfortScore = 25 // both sides within [100, 600]
	bandAcceptScore  = 15 // both sides within [50, 800]
	bandOtherScore   = 5

	aspectModerateScore = 20 // long/short <= 2.5
	aspectWideScore     = 8  // long/short <= 5

	keywordLogoScore  = 25
	keywordBrandScore = 12
	keywordIconScore  = 10
	brandTermScore    = 20

	sizeSweetScore = 10 // 5KB - 500KB
	sizeOkScore    = 4  // 2KB - 2MB

	minBrandTermLen = 3
)

var formatScores = map[models.ImageFormat]float64{
	models.FormatPNG:   15,
	models.FormatWEBP:  10,
	models.FormatJPEG:  5,
	models.FormatOther: 2,
}

// ScoreInput is everything the scorer looks at
type ScoreInput struct {
	Width      int
	Height     int
	Format     models.ImageFormat
	SizeBytes  int64
	SourceURL  string
	BrandTerms []string // Lowercased slug and name forms, see BrandTerms
}

// Score is a pure additive quality score >= 0
func Score(in ScoreInput) float64 {
	var score float64

	score += dimensionScore(in.Width, in.Height)
	score += aspectScore(in.Width, in.Height)

	if s, ok := formatScores[in.Format]; ok {
		score += s
	} else {
		score += formatScores[models.FormatOther]
	}

	score += keywordScore(in.SourceURL, in.BrandTerms)
	score += sizeScore(in.SizeBytes)

	return score
}

func within(v, lo, hi int) bool { return v >= lo && v <= hi }

func dimensionScore(w, h int) float64 {
	switch {
	case within(w, 100, 600) && within(h, 100, 600):
		return bandComfortScore
	case within(w, 50, 800) && within(h, 50, 800):
		return bandAcceptScore
	default:
		return bandOtherScore
	}
}

func aspectScore(w, h int) float64 {
	if w <= 0 || h <= 0 {
		return 0
	}
	long, short := float64(w), float64(h)
	if short > long {
		long, short = short, long
	}
	ratio := long / short
	switch {
	case ratio <= 2.5:
		return aspectModerateScore
	case ratio <= 5:
		return aspectWideScore
	default:
		return 0
	}
}

func keywordScore(sourceURL string, terms []string) float64 {
	lower := strings.ToLower(sourceURL)
	var score float64
	if strings.Contains(lower, "logo") {
		score += keywordLogoScore
	}
	if strings.Contains(lower, "brand") {
		score += keywordBrandScore
	}
	if strings.Contains(lower, "icon") {
		score += keywordIconScore
	}

	compactURL := utils.CompactName(lower)
	for _, term := range terms {
		if len(term) < minBrandTermLen {
			continue
		}
		if strings.Contains(lower, term) || strings.Contains(compactURL, utils.CompactName(term)) {
			score += brandTermScore
			break
		}
	}
	return score
}

func sizeScore(n int64) float64 {
	switch {
	case n >= 5_000 && n <= 500_000:
		return sizeSweetScore
	case n >= 2_000 && n <= 2_000_000:
		return sizeOkScore
	default:
		return 0
	}
}

// BrandTerms returns the lowercased name forms that identify a brand in a URL
func BrandTerms(brand models.BrandRecord) []string {
	seen := make(map[string]bool)
	var terms []string
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if len(s) < minBrandTermLen || seen[s] {
			return
		}
		seen[s] = true
		terms = append(terms, s)
	}

	add(brand.Slug)
	for _, name := range append([]string{brand.DisplayName}, brand.NameVariants...) {
		add(utils.CompactName(name))
		add(utils.HyphenatedName(name))
	}
	return terms
}
