package source

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/logo-scraper/pkg/fetch"
	"github.com/Sriram-PR/logo-scraper/pkg/models"
	"github.com/Sriram-PR/logo-scraper/pkg/parse"
	"github.com/Sriram-PR/logo-scraper/pkg/utils"
)

const maxResultsPageBytes = 8 << 20

// engine is a built-in results page layout
type engine struct {
	searchURL string
	patterns  []string
}

var engines = map[string]engine{
	"bing": {
		searchURL: "https://www.bing.com/images/search?q=%s&form=HDRSC2&first=1",
		patterns: []string{
			`murl&quot;:&quot;(.*?)&quot;`,
			`"murl":"([^"]+)"`,
			`(?i)mediaurl=(https?%3a[^&"]+)`,
		},
	},
	"duckduckgo": {
		searchURL: "https://duckduckgo.com/?q=%s&iax=images&ia=images",
		patterns:  []string{`"image":"([^"]+)"`},
	},
	"google": {
		searchURL: "https://www.google.com/search?q=%s&tbm=isch",
		patterns:  []string{`\["(https?://[^"]+?\.(?:png|jpe?g|webp|svg)[^"]*)",\d+,\d+\]`},
	},
}

// EngineNames lists the built-in search engines
func EngineNames() []string {
	return []string{"bing", "duckduckgo", "google"}
}

// WebSearch scrapes an image search results page for embedded image URLs
type WebSearch struct {
	base
	fetcher   *fetch.Fetcher
	searchURL string // %s receives the escaped query
	patterns  []*regexp.Regexp
	userAgent string
	timeout   time.Duration
}

// WebSearchOptions configures a WebSearch backend
type WebSearchOptions struct {
	Name       string
	Engine     string
	SearchURL  string
	Patterns   []string
	UserAgent  string
	Timeout    time.Duration
	MaxResults int
}

// NewWebSearch creates a scraping backend. SearchURL and Patterns override the engine preset.
func NewWebSearch(opts WebSearchOptions, fetcher *fetch.Fetcher, gate *fetch.Gate, log *logrus.Entry) (*WebSearch, error) {
	searchURL, patterns := opts.SearchURL, opts.Patterns
	if preset, ok := engines[strings.ToLower(opts.Engine)]; ok {
		if searchURL == "" {
			searchURL = preset.searchURL
		}
		if len(patterns) == 0 {
			patterns = preset.patterns
		}
	} else if opts.Engine != "" && (searchURL == "" || len(patterns) == 0) {
		return nil, fmt.Errorf("%w: unknown search engine '%s' (known: %v)", utils.ErrConfigValidation, opts.Engine, EngineNames())
	}
	if !strings.Contains(searchURL, "%s") {
		return nil, fmt.Errorf("%w: search_url '%s' has no %%s placeholder", utils.ErrConfigValidation, searchURL)
	}

	compiled, err := utils.CompileRegexPatterns(patterns)
	if err != nil {
		return nil, err
	}

	return &WebSearch{
		base: base{
			name:       opts.Name,
			kind:       models.BackendWebSearch,
			gate:       gate,
			maxResults: opts.MaxResults,
			log:        log,
		},
		fetcher:   fetcher,
		searchURL: searchURL,
		patterns:  compiled,
		userAgent: opts.UserAgent,
		timeout:   opts.Timeout,
	}, nil
}

// Discover implements Backend
func (w *WebSearch) Discover(ctx context.Context, q models.SearchQuery) iter.Seq[string] {
	return singleUse(func(yield func(string) bool) {
		yieldAll(w.search(ctx, q), w.maxResults, yield)
	})
}

func (w *WebSearch) search(ctx context.Context, q models.SearchQuery) []string {
	qLog := w.log.WithField("query", q.Text)

	if err := w.gate.Wait(ctx); err != nil {
		return nil
	}

	searchCtx := ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	pageURL := fmt.Sprintf(w.searchURL, url.QueryEscape(q.Text))
	req, err := http.NewRequestWithContext(searchCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		qLog.Warnf("Cannot build search request: %v", err)
		return nil
	}
	if w.userAgent != "" {
		req.Header.Set("User-Agent", w.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := w.fetcher.FetchWithRetry(searchCtx, req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		if ctx.Err() == nil {
			qLog.WithField("error_type", utils.CategorizeError(err)).Warnf("Search page failed: %v", err)
		}
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		qLog.Warnf("Search page returned status %d", resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResultsPageBytes))
	if err != nil {
		qLog.Warnf("Reading search page failed: %v", err)
		return nil
	}

	urls := w.extract(body)
	qLog.WithField("found", len(urls)).Debug("Search page parsed")
	return urls
}

// extract applies every pattern in order and returns unique candidate URLs
func (w *WebSearch) extract(body []byte) []string {
	set := newCandidateSet()
	for _, re := range w.patterns {
		for _, m := range re.FindAllSubmatch(body, -1) {
			set.add(decodeEmbeddedURL(string(m[1])))
		}
	}
	return set.urls
}

func decodeEmbeddedURL(raw string) string {
	s := parse.UnescapeEmbedded(raw)
	if strings.HasPrefix(strings.ToLower(s), "http%3a") || strings.HasPrefix(strings.ToLower(s), "https%3a") {
		if unescaped, err := url.QueryUnescape(s); err == nil {
			s = unescaped
		}
	}
	return s
}
