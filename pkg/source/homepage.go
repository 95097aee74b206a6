package source

import (
	"bytes"
	"context"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/logo-scraper/pkg/fetch"
	"github.com/Sriram-PR/logo-scraper/pkg/models"
	"github.com/Sriram-PR/logo-scraper/pkg/parse"
	"github.com/Sriram-PR/logo-scraper/pkg/utils"
)

const (
	maxHomepageBytes  = 4 << 20
	maxCachedHomepage = 64
)

// Selectors tried after brand-specific images, in priority order
var headerLogoSelectors = []string{
	"header img",
	".header img",
	".navbar-brand img",
	".logo img",
	".site-logo img",
	".main-logo img",
	".brand-logo img",
}

// Homepage fetches the brand's own site and pulls logo-looking images out of the static HTML
type Homepage struct {
	base
	fetcher   *fetch.Fetcher
	robots    *fetch.RobotsChecker
	scheme    string
	domains   []string
	userAgent string
	timeout   time.Duration
	maxPages  int
	pages     *pageCache
}

// HomepageOptions configures a Homepage backend
type HomepageOptions struct {
	Name            string
	Scheme          string
	DomainTemplates []string
	UserAgent       string
	Timeout         time.Duration
	MaxResults      int
}

// NewHomepage creates the backend. robots may be nil.
func NewHomepage(opts HomepageOptions, fetcher *fetch.Fetcher, robots *fetch.RobotsChecker, gate *fetch.Gate, log *logrus.Entry) *Homepage {
	scheme := opts.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return &Homepage{
		base: base{
			name:       opts.Name,
			kind:       models.BackendHomepage,
			gate:       gate,
			maxResults: opts.MaxResults,
			log:        log,
		},
		fetcher:   fetcher,
		robots:    robots,
		scheme:    scheme,
		domains:   opts.DomainTemplates,
		userAgent: opts.UserAgent,
		timeout:   opts.Timeout,
		maxPages:  2,
		pages:     newPageCache(maxCachedHomepage),
	}
}

// Discover implements Backend
func (h *Homepage) Discover(ctx context.Context, q models.SearchQuery) iter.Seq[string] {
	return singleUse(func(yield func(string) bool) {
		pages := h.pageURLs(q)
		for _, page := range pages {
			if ctx.Err() != nil {
				return
			}
			doc, finalURL, ok := h.cachedLoad(ctx, page)
			if !ok {
				continue
			}
			yieldAll(extractLogoURLs(doc, finalURL, q.Term), h.maxResults, yield)
			return
		}
	})
}

func (h *Homepage) pageURLs(q models.SearchQuery) []string {
	var pages []string
	if q.Website != "" {
		pages = append(pages, q.Website)
	}
	for _, host := range hostCandidates(q, h.domains) {
		if len(pages) >= h.maxPages {
			break
		}
		page := (&url.URL{Scheme: h.scheme, Host: host, Path: "/"}).String()
		if len(pages) > 0 && pages[0] == page {
			continue
		}
		pages = append(pages, page)
	}
	if len(pages) > h.maxPages {
		pages = pages[:h.maxPages]
	}
	return pages
}

// cachedLoad serves every query of a brand from one page load. Failed loads are
// remembered too, unless the failure came from ctx.
func (h *Homepage) cachedLoad(ctx context.Context, page string) (*goquery.Document, *url.URL, bool) {
	if p, hit := h.pages.get(page); hit {
		return p.doc, p.finalURL, p.ok
	}
	doc, finalURL, ok := h.load(ctx, page)
	if ok || ctx.Err() == nil {
		h.pages.put(page, loadedPage{doc: doc, finalURL: finalURL, ok: ok})
	}
	return doc, finalURL, ok
}

func (h *Homepage) load(ctx context.Context, page string) (*goquery.Document, *url.URL, bool) {
	pageLog := h.log.WithField("page", page)
	target, err := url.Parse(page)
	if err != nil {
		return nil, nil, false
	}
	if h.robots != nil && !h.robots.Allowed(ctx, target) {
		pageLog.Debug("Homepage disallowed by robots.txt")
		return nil, nil, false
	}
	if err := h.gate.Wait(ctx); err != nil {
		return nil, nil, false
	}

	loadCtx := ctx
	if h.timeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(loadCtx, http.MethodGet, page, nil)
	if err != nil {
		return nil, nil, false
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := h.fetcher.FetchWithRetry(loadCtx, req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		if ctx.Err() == nil {
			pageLog.WithField("error_type", utils.CategorizeError(err)).Debugf("Homepage fetch failed: %v", err)
		}
		return nil, nil, false
	}
	defer resp.Body.Close()

	if ct := strings.ToLower(resp.Header.Get("Content-Type")); ct != "" && !strings.Contains(ct, "html") {
		pageLog.Debugf("Homepage is not HTML (%s)", ct)
		return nil, nil, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHomepageBytes))
	if err != nil {
		return nil, nil, false
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		pageLog.Debugf("Homepage HTML parse failed: %v", err)
		return nil, nil, false
	}
	return doc, resp.Request.URL, true
}

type loadedPage struct {
	doc      *goquery.Document
	finalURL *url.URL
	ok       bool
}

// pageCache holds parsed homepages; the oldest entry is dropped past max
type pageCache struct {
	mu      sync.Mutex
	entries map[string]loadedPage
	order   []string
	max     int
}

func newPageCache(size int) *pageCache {
	return &pageCache{entries: make(map[string]loadedPage), max: size}
}

func (c *pageCache) get(page string) (loadedPage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[page]
	return p, ok
}

func (c *pageCache) put(page string, p loadedPage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[page]; !ok {
		c.order = append(c.order, page)
	}
	c.entries[page] = p
	for len(c.order) > c.max {
		delete(c.entries, c.order[0])
		c.order = c.order[1:]
	}
}

// extractLogoURLs ranks image references on a page: brand-named images,
// header logos, anything mentioning "logo", touch icons, then og:image.
func extractLogoURLs(doc *goquery.Document, pageURL *url.URL, term string) []string {
	set := newCandidateSet()
	compact := utils.CompactName(term)
	lowerTerm := strings.ToLower(strings.TrimSpace(term))

	addRef := func(ref string) {
		ref = strings.TrimSpace(ref)
		if ref == "" || strings.HasPrefix(ref, "data:") {
			return
		}
		resolved, err := parse.ResolveReference(pageURL, ref)
		if err != nil {
			return
		}
		s := resolved.String()
		if strings.Contains(strings.ToLower(s), "payment") {
			return
		}
		set.add(s)
	}
	imgSrc := func(s *goquery.Selection) string {
		for _, attr := range []string{"src", "data-src", "data-lazy-src"} {
			if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
				return v
			}
		}
		return ""
	}
	attrs := func(s *goquery.Selection) string {
		alt, _ := s.Attr("alt")
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		return strings.ToLower(alt + " " + class + " " + id + " " + imgSrc(s))
	}

	images := doc.Find("img")

	// Brand-named images
	if len(compact) >= 3 {
		images.Each(func(_ int, s *goquery.Selection) {
			a := attrs(s)
			if strings.Contains(a, lowerTerm) || strings.Contains(utils.CompactName(a), compact) {
				addRef(imgSrc(s))
			}
		})
	}

	for _, sel := range headerLogoSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			addRef(imgSrc(s))
		})
	}

	images.Each(func(_ int, s *goquery.Selection) {
		if strings.Contains(attrs(s), "logo") {
			addRef(imgSrc(s))
		}
	})

	doc.Find("link[rel]").Each(func(_ int, s *goquery.Selection) {
		rel, _ := s.Attr("rel")
		rel = strings.ToLower(rel)
		if strings.Contains(rel, "apple-touch-icon") || strings.Contains(rel, "icon") {
			href, _ := s.Attr("href")
			addRef(href)
		}
	})

	doc.Find(`meta[property="og:image"], meta[name="og:image"]`).Each(func(_ int, s *goquery.Selection) {
		content, _ := s.Attr("content")
		addRef(content)
	})

	return set.urls
}
