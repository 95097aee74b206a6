package source

import (
	"context"
	"iter"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/logo-scraper/pkg/fetch"
	"github.com/Sriram-PR/logo-scraper/pkg/models"
)

// Prober is the existence check used by DirectGuess
type Prober interface {
	Probe(ctx context.Context, rawURL string) fetch.ProbeResult
}

// DirectGuess synthesizes logo URLs from brand-derived domains and common
// logo paths, yielding only those a HEAD probe confirms. Probing happens as the
// consumer pulls, so stopping iteration stops probing.
type DirectGuess struct {
	base
	prober  Prober
	robots  *fetch.RobotsChecker // nil unless respect_robots
	scheme  string
	domains []string
	paths   []string
}

// DirectGuessOptions configures a DirectGuess backend
type DirectGuessOptions struct {
	Name            string
	Scheme          string
	DomainTemplates []string
	Paths           []string
	MaxResults      int
}

// NewDirectGuess creates the backend. robots may be nil.
func NewDirectGuess(opts DirectGuessOptions, prober Prober, robots *fetch.RobotsChecker, gate *fetch.Gate, log *logrus.Entry) *DirectGuess {
	scheme := opts.Scheme
	if scheme == "" {
		scheme = "https"
	}
	return &DirectGuess{
		base: base{
			name:       opts.Name,
			kind:       models.BackendDirectGuess,
			gate:       gate,
			maxResults: opts.MaxResults,
			log:        log,
		},
		prober:  prober,
		robots:  robots,
		scheme:  scheme,
		domains: opts.DomainTemplates,
		paths:   opts.Paths,
	}
}

// Discover implements Backend
func (d *DirectGuess) Discover(ctx context.Context, q models.SearchQuery) iter.Seq[string] {
	return singleUse(func(yield func(string) bool) {
		found := 0
		for _, host := range hostCandidates(q, d.domains) {
			for _, p := range d.paths {
				if ctx.Err() != nil {
					return
				}
				u := &url.URL{Scheme: d.scheme, Host: host, Path: p}
				if d.robots != nil && !d.robots.Allowed(ctx, u) {
					continue
				}
				if err := d.gate.Wait(ctx); err != nil {
					return
				}

				result := d.prober.Probe(ctx, u.String())
				if result == fetch.ProbeUnreachable {
					d.log.WithField("host", host).Debug("Guessed host unreachable, skipping its remaining paths")
					break
				}
				if result != fetch.ProbeFound {
					continue
				}

				found++
				if !yield(u.String()) {
					return
				}
				if d.maxResults > 0 && found >= d.maxResults {
					return
				}
			}
		}
	})
}
