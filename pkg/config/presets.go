package config

import (
	"sort"
	"time"
)

// DefaultPreset is used when the config names none
const DefaultPreset = "default"

// presets are the named pipeline variants. A preset only fills fields the YAML left unset.
var presets = map[string]PipelineConfig{
	"default": {
		MaxQueriesPerBrand:     3,
		MaxURLsPerQuery:        10,
		AcceptScoreFloor:       30,
		ConfidenceScoreCeiling: 80,
		MinImageBytes:          2000,
		MaxImageBytes:          10_000_000,
		MinDimension:           50,
		MaxDimension:           2000,
		FetchTimeout:           10 * time.Second,
		ConcurrentWorkers:      4,
		OutputMaxDimension:     800,
		LogoStrictness:         StrictnessLogo,
		MinAspectRatio:         0.5,
		MaxAspectRatio:         5.0,
		RetainedCandidates:     3,
		QueryQualifier:         "logo",
	},
	// strict trades coverage for fewer false positives
	"strict": {
		MaxQueriesPerBrand:     4,
		MaxURLsPerQuery:        15,
		AcceptScoreFloor:       45,
		ConfidenceScoreCeiling: 95,
		MinImageBytes:          2000,
		MaxImageBytes:          5_000_000,
		MinDimension:           64,
		MaxDimension:           2000,
		FetchTimeout:           15 * time.Second,
		ConcurrentWorkers:      4,
		OutputMaxDimension:     800,
		LogoStrictness:         StrictnessLogo,
		MinAspectRatio:         0.5,
		MaxAspectRatio:         5.0,
		RetainedCandidates:     5,
		PerceptualDistance:     6,
		QueryQualifier:         "official logo",
	},
	"lenient": {
		MaxQueriesPerBrand:     4,
		MaxURLsPerQuery:        15,
		AcceptScoreFloor:       20,
		ConfidenceScoreCeiling: 70,
		MinImageBytes:          1000,
		MaxImageBytes:          10_000_000,
		MinDimension:           32,
		MaxDimension:           3000,
		FetchTimeout:           15 * time.Second,
		ConcurrentWorkers:      4,
		OutputMaxDimension:     800,
		LogoStrictness:         StrictnessStandard,
		MinAspectRatio:         0.5,
		MaxAspectRatio:         5.0,
		RetainedCandidates:     3,
		QueryQualifier:         "logo",
	},
	"quick": {
		MaxQueriesPerBrand:     1,
		MaxURLsPerQuery:        8,
		AcceptScoreFloor:       30,
		ConfidenceScoreCeiling: 70,
		MinImageBytes:          2000,
		MaxImageBytes:          10_000_000,
		MinDimension:           50,
		MaxDimension:           2000,
		FetchTimeout:           8 * time.Second,
		ConcurrentWorkers:      8,
		OutputMaxDimension:     800,
		LogoStrictness:         StrictnessLogo,
		MinAspectRatio:         0.5,
		MaxAspectRatio:         5.0,
		RetainedCandidates:     2,
		QueryQualifier:         "logo",
	},
}

// PresetNames returns the known preset names, sorted
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupPreset returns a copy of the named preset
func LookupPreset(name string) (PipelineConfig, bool) {
	p, ok := presets[name]
	return p, ok
}

// applyPreset copies preset values into every zero-valued field of p
func (p *PipelineConfig) applyPreset(preset PipelineConfig) {
	if p.MaxQueriesPerBrand == 0 {
		p.MaxQueriesPerBrand = preset.MaxQueriesPerBrand
	}
	if p.MaxURLsPerQuery == 0 {
		p.MaxURLsPerQuery = preset.MaxURLsPerQuery
	}
	if p.AcceptScoreFloor == 0 {
		p.AcceptScoreFloor = preset.AcceptScoreFloor
	}
	if p.ConfidenceScoreCeiling == 0 {
		p.ConfidenceScoreCeiling = preset.ConfidenceScoreCeiling
	}
	if p.MinImageBytes == 0 {
		p.MinImageBytes = preset.MinImageBytes
	}
	if p.MaxImageBytes == 0 {
		p.MaxImageBytes = preset.MaxImageBytes
	}
	if p.MinDimension == 0 {
		p.MinDimension = preset.MinDimension
	}
	if p.MaxDimension == 0 {
		p.MaxDimension = preset.MaxDimension
	}
	if p.FetchTimeout == 0 {
		p.FetchTimeout = preset.FetchTimeout
	}
	if p.ConcurrentWorkers == 0 {
		p.ConcurrentWorkers = preset.ConcurrentWorkers
	}
	if p.OutputMaxDimension == 0 {
		p.OutputMaxDimension = preset.OutputMaxDimension
	}
	if p.LogoStrictness == "" {
		p.LogoStrictness = preset.LogoStrictness
	}
	if p.MinAspectRatio == 0 {
		p.MinAspectRatio = preset.MinAspectRatio
	}
	if p.MaxAspectRatio == 0 {
		p.MaxAspectRatio = preset.MaxAspectRatio
	}
	if p.RetainedCandidates == 0 {
		p.RetainedCandidates = preset.RetainedCandidates
	}
	if p.PerceptualDistance == 0 {
		p.PerceptualDistance = preset.PerceptualDistance
	}
	if p.QueryQualifier == "" {
		p.QueryQualifier = preset.QueryQualifier
	}
}
