package orchestrate

import (
	"context"
	"errors"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/logo-scraper/pkg/acquire"
	"github.com/Sriram-PR/logo-scraper/pkg/models"
	"github.com/Sriram-PR/logo-scraper/pkg/storage"
	"github.com/Sriram-PR/logo-scraper/pkg/utils"
)

// ErrNoBrands is returned when the catalog selection is empty
var ErrNoBrands = errors.New("no brands selected")

// BrandRunner acquires one brand; *acquire.Acquirer satisfies it
type BrandRunner interface {
	Acquire(ctx context.Context, brand models.BrandRecord) (models.RunResult, error)
}

// Store is the part of the state database the orchestrator uses
type Store interface {
	storage.BrandStore
	storage.HashStore
}

// Options control one run
type Options struct {
	Workers int
	Force   bool   // Ignore stored state and re-acquire every brand
	Preset  string // Recorded in the report
}

// Orchestrator runs brands through a bounded worker pool and assembles the run report
type Orchestrator struct {
	runner BrandRunner
	store  Store // May be nil
	opts   Options
	log    *logrus.Entry

	mu           sync.Mutex
	report       *models.RunReport
	notAttempted map[string]int // slug -> catalog position
	done         atomic.Int64
}

// NewOrchestrator creates an orchestrator. store may be nil, which disables resume.
func NewOrchestrator(runner BrandRunner, store Store, opts Options, log *logrus.Entry) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Orchestrator{
		runner: runner,
		store:  store,
		opts:   opts,
		log:    log,
	}
}

// Run processes brands in catalog order with at most Options.Workers in flight.
// Cancelling ctx stops dispatch; brands already started finish their fallback and
// persist. The report is always returned. The error is non-nil only for a fatal
// persist failure, which also stops dispatch.
func (o *Orchestrator) Run(ctx context.Context, brands []models.BrandRecord) (*models.RunReport, error) {
	startTime := time.Now()
	o.report = &models.RunReport{
		RunID:     uuid.NewString(),
		Preset:    o.opts.Preset,
		StartedAt: startTime.UTC(),
		Results:   make(map[string]models.RunResult, len(brands)),
	}
	o.notAttempted = make(map[string]int)
	o.done.Store(0)

	pending := o.filterResumable(brands)
	o.log.Infof("Starting run %s: %d brands (%d skipped), %d workers",
		o.report.RunID, len(pending), len(o.report.Skipped), o.opts.Workers)

	var fatalErr error
	var fatalOnce sync.Once
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)

	for i, brand := range pending {
		if gctx.Err() != nil {
			for j := i; j < len(pending); j++ {
				o.markNotAttempted(pending[j].Slug, j)
			}
			break
		}
		g.Go(func() error {
			// The limit may have held this brand back past cancellation
			if gctx.Err() != nil {
				o.markNotAttempted(brand.Slug, i)
				return nil
			}
			err := o.runBrand(gctx, brand, len(pending))
			if err != nil && acquire.IsFatal(err) {
				fatalOnce.Do(func() { fatalErr = err })
				return err
			}
			return nil
		})
	}
	_ = g.Wait()

	o.mu.Lock()
	defer o.mu.Unlock()

	o.report.NotAttempted = sortedByPosition(o.notAttempted)
	o.report.Cancelled = ctx.Err() != nil || fatalErr != nil
	if fatalErr != nil {
		o.report.FatalError = fatalErr.Error()
	}
	o.report.FinishedAt = time.Now().UTC()
	o.report.Tally()
	o.logSummary(time.Since(startTime))

	return o.report, fatalErr
}

// filterResumable drops brands whose stored outcome is success with the file still present
func (o *Orchestrator) filterResumable(brands []models.BrandRecord) []models.BrandRecord {
	if o.store == nil || o.opts.Force {
		return brands
	}
	pending := make([]models.BrandRecord, 0, len(brands))
	for _, brand := range brands {
		status, entry, err := o.store.CheckBrandStatus(brand.Slug)
		if err != nil {
			o.log.WithField("brand", brand.Slug).Warnf("Cannot read stored state, re-acquiring: %v", err)
			pending = append(pending, brand)
			continue
		}
		if status == models.BrandStatusSuccess && entry != nil && entry.OutputPath != "" {
			if _, statErr := os.Stat(entry.OutputPath); statErr == nil {
				o.report.Skipped = append(o.report.Skipped, brand.Slug)
				continue
			}
			o.log.WithField("brand", brand.Slug).Info("Stored logo missing on disk, re-acquiring")
		}
		pending = append(pending, brand)
	}
	return pending
}

// runBrand acquires one brand and records the outcome in the report and store
func (o *Orchestrator) runBrand(ctx context.Context, brand models.BrandRecord, total int) error {
	brandLog := o.log.WithField("brand", brand.Slug)
	o.updateStore(brand.Slug, &models.BrandDBEntry{
		Status:      models.BrandStatusPending,
		LastAttempt: time.Now().UTC(),
	})

	res, err := o.runner.Acquire(ctx, brand)

	entry := &models.BrandDBEntry{LastAttempt: time.Now().UTC()}
	if res.Status == models.RunStatusSuccess {
		entry.Status = models.BrandStatusSuccess
		entry.OutputPath = res.OutputPath
		entry.ProcessedAt = entry.LastAttempt
		if res.Chosen != nil {
			entry.SourceURL = res.Chosen.SourceURL
			entry.ContentHash = res.Chosen.ContentHash
			entry.Score = res.Chosen.Score
		}
		if fileHash, hashErr := utils.FileContentHash(res.OutputPath); hashErr == nil {
			entry.FileHash = fileHash
		} else {
			brandLog.Debugf("Cannot hash persisted logo: %v", hashErr)
		}
		o.recordHash(entry.ContentHash, brand.Slug)
		o.recordHash(entry.FileHash, brand.Slug)
	} else {
		entry.Status = models.BrandStatusFailure
		entry.ErrorType = res.FailureReason
		if err != nil {
			entry.ErrorType = utils.CategorizeError(err)
		}
	}
	o.updateStore(brand.Slug, entry)

	o.mu.Lock()
	o.report.Results[brand.Slug] = res
	o.mu.Unlock()

	n := o.done.Add(1)
	brandLog.WithFields(logrus.Fields{
		"status":   res.Status,
		"progress": n,
		"total":    total,
	}).Info("Brand finished")
	return err
}

func (o *Orchestrator) markNotAttempted(slug string, position int) {
	o.mu.Lock()
	o.notAttempted[slug] = position
	o.mu.Unlock()
}

func (o *Orchestrator) updateStore(slug string, entry *models.BrandDBEntry) {
	if o.store == nil {
		return
	}
	if err := o.store.UpdateBrandStatus(slug, entry); err != nil {
		o.log.WithFields(logrus.Fields{"brand": slug, "error_type": utils.CategorizeError(err)}).Warnf("Failed to store brand state: %v", err)
	}
}

func (o *Orchestrator) recordHash(hash, slug string) {
	if o.store == nil || hash == "" {
		return
	}
	if err := o.store.RecordHash(hash, slug); err != nil {
		o.log.WithField("brand", slug).Warnf("Failed to record hash ownership: %v", err)
	}
}

func sortedByPosition(positions map[string]int) []string {
	if len(positions) == 0 {
		return nil
	}
	slugs := make([]string, 0, len(positions))
	for slug := range positions {
		slugs = append(slugs, slug)
	}
	sort.Slice(slugs, func(i, j int) bool { return positions[slugs[i]] < positions[slugs[j]] })
	return slugs
}

// logSummary logs a summary of the run. Caller holds o.mu.
func (o *Orchestrator) logSummary(totalDuration time.Duration) {
	r := o.report
	o.log.Info("============================================")
	o.log.Infof("Run %s completed in %v", r.RunID, totalDuration.Round(time.Millisecond))

	slugs := make([]string, 0, len(r.Results))
	for slug := range r.Results {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	for _, slug := range slugs {
		res := r.Results[slug]
		if res.Status == models.RunStatusSuccess {
			var score float64
			if res.Chosen != nil {
				score = res.Chosen.Score
			}
			o.log.Infof("  %s: SUCCESS - %s (score %.1f)", slug, res.OutputPath, score)
			continue
		}
		o.log.Infof("  %s: FAILED - %s after %d queries", slug, res.FailureReason, len(res.AttemptedQueries))
	}

	o.log.Info("--------------------------------------------")
	o.log.Infof("Total: %d attempted (%d success, %d failed), %d skipped, %d not attempted",
		len(r.Results), r.Succeeded, r.Failed, len(r.Skipped), len(r.NotAttempted))
	if r.Cancelled {
		o.log.Warn("Run was cancelled before completion")
	}
	o.log.Info("============================================")
}
