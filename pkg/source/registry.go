package source

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/Sriram-PR/logo-scraper/pkg/config"
	"github.com/Sriram-PR/logo-scraper/pkg/fetch"
	"github.com/Sriram-PR/logo-scraper/pkg/models"
)

// Deps are the shared collaborators backends are built from
type Deps struct {
	Fetcher       *fetch.Fetcher
	Prober        Prober
	Robots        *fetch.RobotsChecker
	Clock         fetch.Clock
	Getenv        func(string) string   // Defaults to os.Getenv
	ClientOptions []option.ClientOption // Extra options for API clients
}

// Build creates the enabled backends in configured priority order.
// Each backend gets its own Gate. A backend that cannot be built is skipped with a warning.
func Build(ctx context.Context, cfg *config.AppConfig, deps Deps, log *logrus.Entry) []Backend {
	getenv := deps.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	clock := deps.Clock
	if clock == nil {
		clock = fetch.RealClock()
	}

	var backends []Backend
	for _, b := range cfg.EnabledBackends() {
		bLog := log.WithFields(logrus.Fields{"backend": b.Name, "kind": b.Kind})
		gate := fetch.NewGate(config.GetEffectiveBackendDelay(b, *cfg), clock)
		maxResults := config.GetEffectiveMaxResults(b, *cfg)
		timeout := config.GetEffectiveBackendTimeout(b, *cfg)

		var robots *fetch.RobotsChecker
		if b.RespectRobots {
			robots = deps.Robots
		}

		switch b.BackendKind() {
		case models.BackendWebSearch:
			ws, err := NewWebSearch(WebSearchOptions{
				Name:       b.Name,
				Engine:     b.Engine,
				SearchURL:  b.SearchURL,
				Patterns:   b.URLPatterns,
				UserAgent:  cfg.DefaultUserAgent,
				Timeout:    timeout,
				MaxResults: maxResults,
			}, deps.Fetcher, gate, bLog)
			if err != nil {
				bLog.Warnf("Skipping backend: %v", err)
				continue
			}
			backends = append(backends, ws)

		case models.BackendImageAPI:
			key := getenv(b.APIKeyEnv)
			cx := b.SearchEngineID
			if cx == "" {
				cx = getenv(b.SearchIDEnv)
			}
			if key == "" || cx == "" {
				bLog.Warnf("Skipping image search API: set %s and a search engine ID", b.APIKeyEnv)
				continue
			}
			opts := []option.ClientOption{option.WithAPIKey(key)}
			if b.Endpoint != "" {
				opts = append(opts, option.WithEndpoint(b.Endpoint))
			}
			opts = append(opts, deps.ClientOptions...)
			api, err := NewImageAPI(ctx, ImageAPIOptions{
				Name:           b.Name,
				SearchEngineID: cx,
				Timeout:        timeout,
				MaxResults:     maxResults,
			}, gate, bLog, opts...)
			if err != nil {
				bLog.Warnf("Skipping backend: %v", err)
				continue
			}
			backends = append(backends, api)

		case models.BackendDirectGuess:
			backends = append(backends, NewDirectGuess(DirectGuessOptions{
				Name:            b.Name,
				Scheme:          b.Scheme,
				DomainTemplates: b.DomainTemplates,
				Paths:           b.Paths,
				MaxResults:      maxResults,
			}, deps.Prober, robots, gate, bLog))

		case models.BackendHomepage:
			backends = append(backends, NewHomepage(HomepageOptions{
				Name:            b.Name,
				Scheme:          b.Scheme,
				DomainTemplates: b.DomainTemplates,
				UserAgent:       cfg.DefaultUserAgent,
				Timeout:         timeout,
				MaxResults:      maxResults,
			}, deps.Fetcher, robots, gate, bLog))

		case models.BackendLogoService:
			backends = append(backends, NewLogoService(LogoServiceOptions{
				Name:            b.Name,
				URLTemplates:    b.URLTemplates,
				DomainTemplates: b.DomainTemplates,
				MaxResults:      maxResults,
			}, bLog))

		default:
			bLog.Warn("Skipping backend of unknown kind")
		}
	}
	return backends
}

// Names lists backend names in order, for logging
func Names(backends []Backend) []string {
	names := make([]string, len(backends))
	for i, b := range backends {
		names[i] = b.Name()
	}
	return names
}
