package source

import (
	"context"
	"iter"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/logo-scraper/pkg/models"
)

// LogoService expands logo-service URL templates for the brand's likely domains.
// Discovery does no I/O; the fetcher decides whether the service has the logo.
type LogoService struct {
	base
	templates []string
	domains   []string
}

// LogoServiceOptions configures a LogoService backend
type LogoServiceOptions struct {
	Name            string
	URLTemplates    []string // "{domain}" is replaced by each candidate host
	DomainTemplates []string
	MaxResults      int
}

// NewLogoService creates the backend
func NewLogoService(opts LogoServiceOptions, log *logrus.Entry) *LogoService {
	return &LogoService{
		base: base{
			name:       opts.Name,
			kind:       models.BackendLogoService,
			maxResults: opts.MaxResults,
			log:        log,
		},
		templates: opts.URLTemplates,
		domains:   opts.DomainTemplates,
	}
}

// Discover implements Backend
func (l *LogoService) Discover(ctx context.Context, q models.SearchQuery) iter.Seq[string] {
	return singleUse(func(yield func(string) bool) {
		set := newCandidateSet()
		for _, host := range hostCandidates(q, l.domains) {
			domain := strings.TrimPrefix(host, "www.")
			for _, tmpl := range l.templates {
				set.add(strings.ReplaceAll(tmpl, "{domain}", domain))
			}
		}
		for i, u := range set.urls {
			if ctx.Err() != nil || (l.maxResults > 0 && i >= l.maxResults) {
				return
			}
			if !yield(u) {
				return
			}
		}
	})
}
