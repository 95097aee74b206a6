package models

import "time"

// BrandRecord is one catalog entry. Read-only to the pipeline.
type BrandRecord struct {
	Slug         string   `json:"slug" yaml:"slug" validate:"required,max=100,slugchars"`
	DisplayName  string   `json:"display_name" yaml:"display_name" validate:"required"`
	NameVariants []string `json:"name_variants,omitempty" yaml:"name_variants,omitempty" validate:"dive,required"`
	Website      string   `json:"website,omitempty" yaml:"website,omitempty" validate:"omitempty,http_url"`
}

// SearchQuery is produced by the query builder and consumed once by each backend
type SearchQuery struct {
	Text        string      `json:"text" yaml:"text"`
	Term        string      `json:"term" yaml:"term"`                                     // Bare brand name the text was built from
	Website     string      `json:"website,omitempty" yaml:"website,omitempty"`           // Known brand homepage, if any
	BackendHint BackendKind `json:"backend_hint,omitempty" yaml:"backend_hint,omitempty"` // Restrict to one backend kind when set
}

// CandidateImage is a fetched, decoded and scored image for one brand.
// Only the winner's normalized derivative is ever written to disk.
type CandidateImage struct {
	SourceURL   string
	Backend     string
	Query       string
	RawBytes    []byte
	Width       int
	Height      int
	Format      ImageFormat
	ContentHash string
	Score       float64
	VisionBonus float64
	Order       int // Discovery order within the brand run, used as tiebreak
}

// Summary returns the serializable view of the candidate
func (c *CandidateImage) Summary() *CandidateSummary {
	if c == nil {
		return nil
	}
	return &CandidateSummary{
		SourceURL:   c.SourceURL,
		Backend:     c.Backend,
		Query:       c.Query,
		Width:       c.Width,
		Height:      c.Height,
		Format:      c.Format,
		ContentHash: c.ContentHash,
		Score:       c.Score,
		VisionBonus: c.VisionBonus,
		SizeBytes:   len(c.RawBytes),
	}
}

// CandidateSummary describes the chosen candidate in the run report
type CandidateSummary struct {
	SourceURL   string      `json:"source_url" yaml:"source_url"`
	Backend     string      `json:"backend" yaml:"backend"`
	Query       string      `json:"query" yaml:"query"`
	Width       int         `json:"width" yaml:"width"`
	Height      int         `json:"height" yaml:"height"`
	Format      ImageFormat `json:"format" yaml:"format"`
	ContentHash string      `json:"content_hash" yaml:"content_hash"`
	Score       float64     `json:"score" yaml:"score"`
	VisionBonus float64     `json:"vision_bonus,omitempty" yaml:"vision_bonus,omitempty"`
	SizeBytes   int         `json:"size_bytes" yaml:"size_bytes"`
}

// RunResult is created once per brand at the end of its pipeline run
type RunResult struct {
	Slug             string            `json:"slug" yaml:"slug"`
	DisplayName      string            `json:"display_name" yaml:"display_name"`
	Status           RunStatus         `json:"status" yaml:"status"`
	Chosen           *CandidateSummary `json:"chosen_candidate,omitempty" yaml:"chosen_candidate,omitempty"`
	OutputPath       string            `json:"output_path,omitempty" yaml:"output_path,omitempty"`
	AttemptedQueries []SearchQuery     `json:"attempted_queries" yaml:"attempted_queries"`
	CandidatesSeen   int               `json:"candidates_seen" yaml:"candidates_seen"`
	Rejections       map[string]int    `json:"rejections,omitempty" yaml:"rejections,omitempty"` // Error category -> count
	FailureReason    string            `json:"failure_reason,omitempty" yaml:"failure_reason,omitempty"`
	Interrupted      bool              `json:"interrupted,omitempty" yaml:"interrupted,omitempty"`
	StartedAt        time.Time         `json:"started_at" yaml:"started_at"`
	FinishedAt       time.Time         `json:"finished_at" yaml:"finished_at"`
}

// RunReport maps every attempted brand to its RunResult
type RunReport struct {
	RunID        string               `json:"run_id" yaml:"run_id"`
	Preset       string               `json:"preset" yaml:"preset"`
	StartedAt    time.Time            `json:"started_at" yaml:"started_at"`
	FinishedAt   time.Time            `json:"finished_at" yaml:"finished_at"`
	Cancelled    bool                 `json:"cancelled" yaml:"cancelled"`
	FatalError   string               `json:"fatal_error,omitempty" yaml:"fatal_error,omitempty"`
	Succeeded    int                  `json:"succeeded" yaml:"succeeded"`
	Failed       int                  `json:"failed" yaml:"failed"`
	Skipped      []string             `json:"skipped,omitempty" yaml:"skipped,omitempty"`             // Already done on resume
	NotAttempted []string             `json:"not_attempted,omitempty" yaml:"not_attempted,omitempty"` // Never started before cancellation
	Results      map[string]RunResult `json:"results" yaml:"results"`
}

// Tally recomputes the success/failure counters from Results
func (r *RunReport) Tally() {
	r.Succeeded, r.Failed = 0, 0
	for _, res := range r.Results {
		if res.Status == RunStatusSuccess {
			r.Succeeded++
		} else {
			r.Failed++
		}
	}
}

// BrandDBEntry stores the last outcome for a brand in the state database
type BrandDBEntry struct {
	Status      BrandStatus `json:"status"`
	OutputPath  string      `json:"output_path,omitempty"`
	SourceURL   string      `json:"source_url,omitempty"`
	ContentHash string      `json:"content_hash,omitempty"` // Raw candidate hash
	FileHash    string      `json:"file_hash,omitempty"`    // Hash of the persisted PNG
	Score       float64     `json:"score,omitempty"`
	ErrorType   string      `json:"error_type,omitempty"`
	ProcessedAt time.Time   `json:"processed_at,omitempty"`
	LastAttempt time.Time   `json:"last_attempt"`
}
