package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestCandidateImage_Summary(t *testing.T) {
	c := &CandidateImage{
		SourceURL:   "https://acme.com/logo.png",
		Backend:     "direct",
		Query:       "Acme logo",
		RawBytes:    make([]byte, 4096),
		Width:       300,
		Height:      150,
		Format:      FormatPNG,
		ContentHash: "0011223344556677",
		Score:       95,
	}

	s := c.Summary()
	require.NotNil(t, s)
	assert.Equal(t, 4096, s.SizeBytes)
	assert.Equal(t, "https://acme.com/logo.png", s.SourceURL)
	assert.Equal(t, FormatPNG, s.Format)

	var nilCandidate *CandidateImage
	assert.Nil(t, nilCandidate.Summary())
}

func TestRunResult_JSONOmitsRawBytes(t *testing.T) {
	c := &CandidateImage{SourceURL: "https://acme.com/logo.png", RawBytes: []byte("secret-bytes")}
	res := RunResult{
		Slug:             "acme",
		Status:           RunStatusSuccess,
		Chosen:           c.Summary(),
		AttemptedQueries: []SearchQuery{{Text: "Acme Casino logo", Term: "Acme Casino"}},
	}

	data, err := json.Marshal(res)
	require.NoError(t, err)
	raw := string(data)
	assert.NotContains(t, raw, "secret-bytes")
	assert.Contains(t, raw, `"status":"SUCCESS"`)
	assert.Contains(t, raw, `"attempted_queries"`)
	assert.NotContains(t, raw, "backend_hint")
}

func TestRunReport_Tally(t *testing.T) {
	report := RunReport{
		Results: map[string]RunResult{
			"acme":    {Slug: "acme", Status: RunStatusSuccess},
			"globex":  {Slug: "globex", Status: RunStatusFailed},
			"initech": {Slug: "initech", Status: RunStatusFailed},
		},
	}
	report.Tally()
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
}

func TestRunReport_YAMLRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second).UTC()
	report := RunReport{
		RunID:     "run-1",
		Preset:    "default",
		StartedAt: now,
		Results: map[string]RunResult{
			"acme": {Slug: "acme", Status: RunStatusSuccess, StartedAt: now, FinishedAt: now},
		},
		Skipped: []string{"globex"},
	}

	data, err := yaml.Marshal(report)
	require.NoError(t, err)

	var got RunReport
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, RunStatusSuccess, got.Results["acme"].Status)
	assert.Equal(t, []string{"globex"}, got.Skipped)
}

func TestBrandDBEntry_OmitEmpty(t *testing.T) {
	entry := BrandDBEntry{
		Status:      BrandStatusPending,
		LastAttempt: time.Now().UTC(),
	}

	data, err := json.Marshal(entry)
	require.NoError(t, err)

	raw := string(data)
	assert.NotContains(t, raw, "error_type")
	assert.NotContains(t, raw, "content_hash")
	assert.Contains(t, raw, `"status":"pending"`)
}
