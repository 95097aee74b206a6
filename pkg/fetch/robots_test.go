package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRobotsChecker_AllowedAndCached(t *testing.T) {
	hits := &atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			hits.Add(1)
			w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rc := NewRobotsChecker(NewFetcher(testClient(), testConfig(0), testLogger()), "logo-scraper-test", testLogger())

	public, _ := url.Parse(srv.URL + "/")
	private, _ := url.Parse(srv.URL + "/private/logo.png")
	assert.True(t, rc.Allowed(context.Background(), public))
	assert.False(t, rc.Allowed(context.Background(), private))
	assert.Equal(t, int32(1), hits.Load(), "robots.txt should be fetched once per host")
}

func TestRobotsChecker_MissingFileAllowsAll(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	rc := NewRobotsChecker(NewFetcher(testClient(), testConfig(0), testLogger()), "logo-scraper-test", testLogger())
	target, _ := url.Parse(srv.URL + "/anything")
	assert.True(t, rc.Allowed(context.Background(), target))
}
