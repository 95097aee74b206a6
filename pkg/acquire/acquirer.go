// Package acquire runs the per-brand search state machine: queries, backends,
// candidate evaluation, early exit and fallback selection.
package acquire

import (
	"context"
	"errors"
	"image"
	"iter"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/logo-scraper/pkg/config"
	"github.com/Sriram-PR/logo-scraper/pkg/dedup"
	"github.com/Sriram-PR/logo-scraper/pkg/imaging"
	"github.com/Sriram-PR/logo-scraper/pkg/models"
	"github.com/Sriram-PR/logo-scraper/pkg/parse"
	"github.com/Sriram-PR/logo-scraper/pkg/persist"
	"github.com/Sriram-PR/logo-scraper/pkg/query"
	"github.com/Sriram-PR/logo-scraper/pkg/source"
	"github.com/Sriram-PR/logo-scraper/pkg/utils"
	"github.com/Sriram-PR/logo-scraper/pkg/verify"
)

// Failure reasons recorded on FAILED results
const (
	ReasonNoCandidates = "no_candidates"    // Backends discovered nothing
	ReasonAllRejected  = "all_rejected"     // Every candidate failed fetch or validation
	ReasonBelowFloor   = "below_floor"      // Valid candidates, none reached the accept floor
	ReasonDuplicate    = "duplicate"        // Eligible candidates all belong to other brands
	ReasonInterrupted  = "interrupted"      // Cancelled before any eligible candidate
	ReasonPersistError = "persist_error"    // Writing the winner failed
	rejectBelowFloor   = "Score_BelowFloor" // Rejection counter for sub-floor candidates
)

// ImageSource downloads candidate bytes; *fetch.ImageFetcher satisfies it
type ImageSource interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// Saver writes the winner; *persist.Persister satisfies it
type Saver interface {
	Persist(slug string, img image.Image) (persist.Result, error)
}

// Deps are the collaborators shared by every brand in a run
type Deps struct {
	Backends []source.Backend // Priority order
	Images   ImageSource
	Index    *dedup.Index
	Saver    Saver
	Verifier *verify.Verifier // Optional
}

// Acquirer is safe for concurrent use by several workers; per-brand state lives in Acquire.
type Acquirer struct {
	cfg       config.PipelineConfig
	queries   *query.Builder
	validator *imaging.Validator
	deps      Deps
	log       *logrus.Entry
}

// New creates an Acquirer from validated pipeline settings
func New(cfg config.PipelineConfig, deps Deps, log *logrus.Entry) *Acquirer {
	return &Acquirer{
		cfg:       cfg,
		queries:   query.NewBuilder(cfg.MaxQueriesPerBrand, cfg.QueryQualifier, models.BackendKind(cfg.VariantBackendHint)),
		validator: imaging.NewValidator(imaging.BoundsFromConfig(cfg)),
		deps:      deps,
		log:       log,
	}
}

// brandRun is the mutable state of one Acquire call
type brandRun struct {
	brand    models.BrandRecord
	terms    []string
	state    models.SearchState
	pool     *candidatePool
	seenURLs map[string]bool
	order    int
	result   models.RunResult
	log      *logrus.Entry
}

func (r *brandRun) transition(to models.SearchState) {
	r.log.Debugf("State %s -> %s", r.state, to)
	r.state = to
}

func (r *brandRun) reject(category string) {
	r.result.Rejections[category]++
}

// Acquire runs the brand through Pending -> Searching -> Found|Exhausted.
// Candidate, backend and query failures are absorbed into the result. The returned
// error is non-nil only when persisting the winner failed.
func (a *Acquirer) Acquire(ctx context.Context, brand models.BrandRecord) (models.RunResult, error) {
	run := &brandRun{
		brand:    brand,
		terms:    imaging.BrandTerms(brand),
		state:    models.SearchStatePending,
		pool:     newCandidatePool(a.cfg.RetainedCandidates),
		seenURLs: make(map[string]bool),
		log:      a.log.WithField("brand", brand.Slug),
		result: models.RunResult{
			Slug:             brand.Slug,
			DisplayName:      brand.DisplayName,
			Status:           models.RunStatusFailed,
			AttemptedQueries: []models.SearchQuery{},
			Rejections:       make(map[string]int),
			StartedAt:        time.Now().UTC(),
		},
	}
	defer func() {
		run.result.FinishedAt = time.Now().UTC()
		if len(run.result.Rejections) == 0 {
			run.result.Rejections = nil
		}
	}()

	run.transition(models.SearchStateSearching)

	found, err := a.search(ctx, run)
	if err != nil {
		return a.finishPersistError(run, err)
	}
	if found {
		return run.result, nil
	}

	if ctx.Err() != nil {
		run.result.Interrupted = true
	}

	found, err = a.fallback(run)
	if err != nil {
		return a.finishPersistError(run, err)
	}
	if found {
		return run.result, nil
	}

	run.transition(models.SearchStateExhausted)
	run.result.FailureReason = a.failureReason(run)
	run.log.WithFields(logrus.Fields{
		"reason":     run.result.FailureReason,
		"candidates": run.result.CandidatesSeen,
		"queries":    len(run.result.AttemptedQueries),
	}).Warn("No logo accepted")
	return run.result, nil
}

// search walks queries x backends x URLs until a candidate clears the ceiling
func (a *Acquirer) search(ctx context.Context, run *brandRun) (bool, error) {
	for _, q := range a.queries.Build(run.brand) {
		if ctx.Err() != nil {
			return false, nil
		}
		run.result.AttemptedQueries = append(run.result.AttemptedQueries, q)

		for _, backend := range a.deps.Backends {
			if ctx.Err() != nil {
				return false, nil
			}
			if q.BackendHint != "" && backend.Kind() != q.BackendHint {
				continue
			}
			found, err := a.searchBackend(ctx, run, q, backend)
			if found || err != nil {
				return found, err
			}
		}
	}
	return false, nil
}

func (a *Acquirer) searchBackend(ctx context.Context, run *brandRun, q models.SearchQuery, backend source.Backend) (bool, error) {
	bLog := run.log.WithFields(logrus.Fields{"backend": backend.Name(), "query": q.Text})
	for rawURL := range limit(backend.Discover(ctx, q), a.cfg.MaxURLsPerQuery) {
		if ctx.Err() != nil {
			return false, nil
		}

		key, _, err := parse.ParseAndNormalize(rawURL)
		if err != nil {
			run.reject("Parsing_URL")
			continue
		}
		if run.seenURLs[key] {
			continue
		}
		run.seenURLs[key] = true
		run.result.CandidatesSeen++

		cand, img, err := a.evaluate(ctx, run, q, backend.Name(), rawURL)
		if err != nil {
			if ctx.Err() != nil {
				return false, nil
			}
			run.reject(utils.CategorizeError(err))
			bLog.WithFields(logrus.Fields{"url": rawURL, "error_type": utils.CategorizeError(err)}).Debugf("Candidate rejected: %v", err)
			continue
		}

		cLog := bLog.WithFields(logrus.Fields{"url": rawURL, "score": cand.Score})
		switch {
		case cand.Score >= a.cfg.ConfidenceScoreCeiling:
			cLog.Debug("Candidate cleared the confidence ceiling")
			ok, err := a.accept(run, cand, img)
			if ok || err != nil {
				return ok, err
			}
		case cand.Score >= a.cfg.AcceptScoreFloor:
			run.pool.offer(cand, img)
			cLog.Debug("Candidate retained")
		default:
			run.reject(rejectBelowFloor)
			cLog.Debug("Candidate below accept floor")
		}
	}
	return false, nil
}

// limit stops seq after n values without asking it for the next one, so lazy
// backends do no work past the cap. n <= 0 means no limit.
func limit(seq iter.Seq[string], n int) iter.Seq[string] {
	if n <= 0 {
		return seq
	}
	return func(yield func(string) bool) {
		taken := 0
		for v := range seq {
			if !yield(v) {
				return
			}
			if taken++; taken >= n {
				return
			}
		}
	}
}

// evaluate fetches, hashes, validates and scores one URL
func (a *Acquirer) evaluate(ctx context.Context, run *brandRun, q models.SearchQuery, backendName, rawURL string) (*models.CandidateImage, image.Image, error) {
	data, err := a.deps.Images.Fetch(ctx, rawURL)
	if err != nil {
		return nil, nil, err
	}

	hash := utils.ContentHash(data)
	if owner, ok := a.deps.Index.Owner(hash); ok && owner != run.brand.Slug {
		return nil, nil, &dedup.DuplicateError{Hash: hash, Owner: owner}
	}

	decoded, err := a.validator.Validate(data)
	if err != nil {
		return nil, nil, err
	}

	cand := &models.CandidateImage{
		SourceURL:   rawURL,
		Backend:     backendName,
		Query:       q.Text,
		RawBytes:    data,
		Width:       decoded.Width,
		Height:      decoded.Height,
		Format:      decoded.Format,
		ContentHash: hash,
		Order:       run.order,
	}
	run.order++

	cand.Score = imaging.Score(imaging.ScoreInput{
		Width:      decoded.Width,
		Height:     decoded.Height,
		Format:     decoded.Format,
		SizeBytes:  int64(len(data)),
		SourceURL:  rawURL,
		BrandTerms: run.terms,
	})
	if a.deps.Verifier != nil && cand.Score >= a.cfg.AcceptScoreFloor {
		cand.VisionBonus = a.deps.Verifier.Bonus(ctx, data, run.terms)
		cand.Score += cand.VisionBonus
	}
	return cand, decoded.Image, nil
}

// fallback tries retained candidates best first
func (a *Acquirer) fallback(run *brandRun) (bool, error) {
	for _, pc := range run.pool.ranked() {
		ok, err := a.accept(run, pc.cand, pc.img)
		if ok || err != nil {
			return ok, err
		}
	}
	return false, nil
}

// accept claims the candidate's raw and output hashes and persists it. A lost claim
// returns (false, nil) so the caller moves on; a failed write releases the claim and
// returns the error.
func (a *Acquirer) accept(run *brandRun, cand *models.CandidateImage, img image.Image) (bool, error) {
	claim := dedup.Claim{Hash: cand.ContentHash, Slug: run.brand.Slug, Image: img}
	if encoded, _, err := imaging.EncodePNG(img, a.cfg.OutputMaxDimension); err == nil {
		claim.FileHash = utils.ContentHash(encoded)
	}
	err := a.deps.Index.Claim(claim)
	if err != nil {
		run.reject(utils.CategorizeError(err))
		run.log.WithField("url", cand.SourceURL).Debugf("Claim lost: %v", err)
		return false, nil
	}

	res, err := a.deps.Saver.Persist(run.brand.Slug, img)
	if err != nil {
		a.deps.Index.Release(claim)
		return false, err
	}

	run.transition(models.SearchStateFound)
	run.result.Status = models.RunStatusSuccess
	run.result.Chosen = cand.Summary()
	run.result.OutputPath = res.Path
	run.log.WithFields(logrus.Fields{
		"url":     cand.SourceURL,
		"backend": cand.Backend,
		"score":   cand.Score,
		"path":    res.Path,
	}).Info("Logo acquired")
	return true, nil
}

func (a *Acquirer) finishPersistError(run *brandRun, err error) (models.RunResult, error) {
	run.transition(models.SearchStateExhausted)
	run.result.Status = models.RunStatusFailed
	run.result.FailureReason = ReasonPersistError
	run.log.WithField("error_type", utils.CategorizeError(err)).Errorf("Persisting logo failed: %v", err)
	return run.result, err
}

func (a *Acquirer) failureReason(run *brandRun) string {
	if run.result.Interrupted && run.pool.len() == 0 {
		return ReasonInterrupted
	}
	if run.pool.len() > 0 {
		return ReasonDuplicate
	}
	if run.result.CandidatesSeen == 0 {
		return ReasonNoCandidates
	}
	if run.result.Rejections[rejectBelowFloor] > 0 {
		return ReasonBelowFloor
	}
	onlyDuplicates := len(run.result.Rejections) > 0
	for category := range run.result.Rejections {
		if !strings.HasPrefix(category, "Duplicate") {
			onlyDuplicates = false
		}
	}
	if onlyDuplicates {
		return ReasonDuplicate
	}
	return ReasonAllRejected
}

// IsFatal reports whether err from Acquire must stop the run
func IsFatal(err error) bool {
	return errors.Is(err, utils.ErrPersist)
}
