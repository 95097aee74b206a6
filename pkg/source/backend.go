package source

import (
	"context"
	"iter"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/logo-scraper/pkg/fetch"
	"github.com/Sriram-PR/logo-scraper/pkg/models"
	"github.com/Sriram-PR/logo-scraper/pkg/parse"
	"github.com/Sriram-PR/logo-scraper/pkg/utils"
)

// Backend is a pluggable source of candidate image URLs.
// Discover never fails upward: problems are logged and end the sequence early.
// The returned sequence is finite and single-use.
type Backend interface {
	Name() string
	Kind() models.BackendKind
	Discover(ctx context.Context, q models.SearchQuery) iter.Seq[string]
}

// base holds what every backend shares
type base struct {
	name       string
	kind       models.BackendKind
	gate       *fetch.Gate // Shared by all workers calling this backend
	maxResults int
	log        *logrus.Entry
}

func (b *base) Name() string             { return b.name }
func (b *base) Kind() models.BackendKind { return b.kind }

// singleUse makes seq yield only on its first iteration
func singleUse(seq iter.Seq[string]) iter.Seq[string] {
	var used atomic.Bool
	return func(yield func(string) bool) {
		if used.Swap(true) {
			return
		}
		seq(yield)
	}
}

// yieldAll yields up to max URLs (max <= 0 means all)
func yieldAll(urls []string, max int, yield func(string) bool) {
	for i, u := range urls {
		if max > 0 && i >= max {
			return
		}
		if !yield(u) {
			return
		}
	}
}

// candidateSet collects unique candidate URLs in discovery order
type candidateSet struct {
	seen map[string]bool
	urls []string
}

func newCandidateSet() *candidateSet {
	return &candidateSet{seen: make(map[string]bool)}
}

// add keeps raw only if it is a usable, unseen candidate
func (c *candidateSet) add(raw string) bool {
	raw = strings.TrimSpace(raw)
	if !parse.IsCandidateURL(raw) {
		return false
	}
	norm, _, err := parse.ParseAndNormalize(raw)
	if err != nil || c.seen[norm] {
		return false
	}
	c.seen[norm] = true
	c.urls = append(c.urls, raw)
	return true
}

// hostCandidates expands domain templates for the query's brand name.
// The known website host, when present, comes first.
func hostCandidates(q models.SearchQuery, templates []string) []string {
	var hosts []string
	seen := make(map[string]bool)
	add := func(h string) {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" || seen[h] {
			return
		}
		seen[h] = true
		hosts = append(hosts, h)
	}

	if q.Website != "" {
		if u, err := url.Parse(q.Website); err == nil && u.Host != "" {
			add(u.Host)
		}
	}

	names := []string{utils.CompactName(q.Term)}
	if h := utils.HyphenatedName(q.Term); h != names[0] {
		names = append(names, h)
	}
	for _, tmpl := range templates {
		for _, name := range names {
			if name == "" {
				continue
			}
			add(strings.ReplaceAll(tmpl, "{name}", name))
		}
	}
	return hosts
}
