package source

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Sriram-PR/logo-scraper/pkg/fetch"
	"github.com/Sriram-PR/logo-scraper/pkg/models"
)

// Custom Search returns at most 10 results per call
const maxImageAPIResults = 10

// ImageAPI queries the Google Custom Search JSON API in image mode.
// Auth and quota failures disable it for the rest of the run.
type ImageAPI struct {
	base
	svc      *customsearch.Service
	cx       string
	timeout  time.Duration
	disabled atomic.Bool
}

// ImageAPIOptions configures an ImageAPI backend
type ImageAPIOptions struct {
	Name           string
	SearchEngineID string
	Timeout        time.Duration
	MaxResults     int
}

// NewImageAPI creates the backend. clientOpts carry the API key (option.WithAPIKey)
// and, in tests, an endpoint override.
func NewImageAPI(ctx context.Context, opts ImageAPIOptions, gate *fetch.Gate, log *logrus.Entry, clientOpts ...option.ClientOption) (*ImageAPI, error) {
	if opts.SearchEngineID == "" {
		return nil, errors.New("image search API needs a search engine ID")
	}
	svc, err := customsearch.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}

	maxResults := opts.MaxResults
	if maxResults <= 0 || maxResults > maxImageAPIResults {
		maxResults = maxImageAPIResults
	}

	return &ImageAPI{
		base: base{
			name:       opts.Name,
			kind:       models.BackendImageAPI,
			gate:       gate,
			maxResults: maxResults,
			log:        log,
		},
		svc:     svc,
		cx:      opts.SearchEngineID,
		timeout: opts.Timeout,
	}, nil
}

// Disabled reports whether an auth or quota error switched the backend off
func (a *ImageAPI) Disabled() bool { return a.disabled.Load() }

// Discover implements Backend
func (a *ImageAPI) Discover(ctx context.Context, q models.SearchQuery) iter.Seq[string] {
	return singleUse(func(yield func(string) bool) {
		yieldAll(a.search(ctx, q), a.maxResults, yield)
	})
}

func (a *ImageAPI) search(ctx context.Context, q models.SearchQuery) []string {
	if a.disabled.Load() {
		return nil
	}
	if err := a.gate.Wait(ctx); err != nil {
		return nil
	}

	callCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	res, err := a.svc.Cse.List().
		Cx(a.cx).
		Q(q.Text).
		SearchType("image").
		Num(int64(a.maxResults)).
		Safe("active").
		Context(callCtx).
		Do()
	if err != nil {
		a.handleError(ctx, q, err)
		return nil
	}

	set := newCandidateSet()
	for _, item := range res.Items {
		if item == nil {
			continue
		}
		set.add(item.Link)
	}
	a.log.WithFields(logrus.Fields{"query": q.Text, "found": len(set.urls)}).Debug("Image search API returned")
	return set.urls
}

func (a *ImageAPI) handleError(ctx context.Context, q models.SearchQuery, err error) {
	if ctx.Err() != nil {
		return
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
			if !a.disabled.Swap(true) {
				a.log.WithField("status", gerr.Code).Warnf("Image search API rejected the request, disabling backend for this run: %s", gerr.Message)
			}
			return
		}
	}
	a.log.WithField("query", q.Text).Warnf("Image search API call failed: %v", err)
}
