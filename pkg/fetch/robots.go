package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// RobotsChecker fetches and caches robots.txt per host for the homepage backend
type RobotsChecker struct {
	fetcher   *Fetcher
	userAgent string
	cache     map[string]*robotstxt.RobotsData // host -> parsed data, nil when unavailable
	cacheMu   sync.Mutex
	log       *logrus.Entry
}

// NewRobotsChecker creates a RobotsChecker
func NewRobotsChecker(fetcher *Fetcher, userAgent string, log *logrus.Entry) *RobotsChecker {
	return &RobotsChecker{
		fetcher:   fetcher,
		userAgent: userAgent,
		cache:     make(map[string]*robotstxt.RobotsData),
		log:       log,
	}
}

// Allowed reports whether the user agent may fetch target.
// Missing or unreadable robots.txt allows everything.
func (rc *RobotsChecker) Allowed(ctx context.Context, target *url.URL) bool {
	data := rc.robotsData(ctx, target)
	if data == nil {
		return true
	}
	return data.TestAgent(target.RequestURI(), rc.userAgent)
}

func (rc *RobotsChecker) robotsData(ctx context.Context, target *url.URL) *robotstxt.RobotsData {
	host := target.Host

	rc.cacheMu.Lock()
	data, found := rc.cache[host]
	rc.cacheMu.Unlock()
	if found {
		return data
	}

	scheme := target.Scheme
	if scheme != "http" && scheme != "https" {
		scheme = "https"
	}
	robotsURL := (&url.URL{Scheme: scheme, Host: host, Path: "/robots.txt"}).String()
	robotsLog := rc.log.WithField("robots_url", robotsURL)

	data = rc.fetch(ctx, robotsURL, robotsLog)

	// Cancelled lookups are not cached so a later run can retry
	if ctx.Err() != nil {
		return data
	}
	rc.cacheMu.Lock()
	rc.cache[host] = data
	rc.cacheMu.Unlock()
	return data
}

func (rc *RobotsChecker) fetch(ctx context.Context, robotsURL string, robotsLog *logrus.Entry) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		robotsLog.Debugf("Error creating request: %v", err)
		return nil
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := rc.fetcher.FetchWithRetry(ctx, req)
	if err != nil {
		if resp != nil {
			drainAndClose(resp)
		}
		robotsLog.Debugf("Fetching robots.txt failed: %v", err)
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		robotsLog.Debugf("Error reading body: %v", err)
		return nil
	}
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		robotsLog.Debugf("Error parsing robots.txt: %v", err)
		return nil
	}
	return data
}
