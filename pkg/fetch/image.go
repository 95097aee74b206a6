package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/logo-scraper/pkg/utils"
)

// FetchErrorKind classifies why a candidate download was rejected
type FetchErrorKind int

const (
	FetchUnreachable FetchErrorKind = iota
	FetchWrongContentType
	FetchTooSmall
	FetchTooLarge
	FetchTimeout
)

func (k FetchErrorKind) String() string {
	switch k {
	case FetchUnreachable:
		return "Unreachable"
	case FetchWrongContentType:
		return "WrongContentType"
	case FetchTooSmall:
		return "TooSmall"
	case FetchTooLarge:
		return "TooLarge"
	case FetchTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// FetchError is returned by ImageFetcher.Fetch
type FetchError struct {
	Kind FetchErrorKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == utils.ErrFetch }

// Category is used by utils.CategorizeError
func (e *FetchError) Category() string { return "Fetch_" + e.Kind.String() }

// ProbeResult is the outcome of a HEAD probe
type ProbeResult int

const (
	ProbeMissing     ProbeResult = iota // Host answered, but not with an image
	ProbeFound                          // 200 with an image/* content type
	ProbeUnreachable                    // DNS, connect or TLS failure; the host is not worth probing again
)

// ImageFetcherOptions bounds downloads
type ImageFetcherOptions struct {
	UserAgent string
	MinBytes  int64
	MaxBytes  int64
	Timeout   time.Duration // Per fetch, including retries
	HostDelay time.Duration // Spacing between requests to the same image host; 0 disables
}

// ImageFetcher downloads candidate images under size, type and politeness limits
type ImageFetcher struct {
	fetcher *Fetcher
	hosts   *HostSemaphorePool
	limiter *RateLimiter
	opts    ImageFetcherOptions
	log     *logrus.Entry
}

// NewImageFetcher creates an ImageFetcher. hosts and limiter may be nil.
func NewImageFetcher(fetcher *Fetcher, hosts *HostSemaphorePool, limiter *RateLimiter, opts ImageFetcherOptions, log *logrus.Entry) *ImageFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &ImageFetcher{
		fetcher: fetcher,
		hosts:   hosts,
		limiter: limiter,
		opts:    opts,
		log:     log,
	}
}

// Fetch downloads rawURL and returns its bytes. The response must be 200 with
// an image/* content type and a body within [MinBytes, MaxBytes]; the body is
// never read past MaxBytes+1.
func (f *ImageFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &FetchError{Kind: FetchUnreachable, URL: rawURL, Err: fmt.Errorf("%w: invalid image URL", utils.ErrParsing)}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	release, err := f.enterHost(fetchCtx, u.Host)
	if err != nil {
		return nil, f.classify(ctx, rawURL, err)
	}
	defer release()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: FetchUnreachable, URL: rawURL, Err: fmt.Errorf("%w: %w", utils.ErrRequestCreation, err)}
	}
	f.setHeaders(req)

	resp, err := f.fetcher.FetchWithRetry(fetchCtx, req)
	if err != nil {
		if resp != nil {
			drainAndClose(resp)
		}
		return nil, f.classify(ctx, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Kind: FetchUnreachable, URL: rawURL, Err: fmt.Errorf("%w: status %d", utils.ErrOtherHTTPError, resp.StatusCode)}
	}
	if ct := resp.Header.Get("Content-Type"); !isImageContentType(ct) {
		return nil, &FetchError{Kind: FetchWrongContentType, URL: rawURL, Err: fmt.Errorf("content type %q", ct)}
	}
	if f.opts.MaxBytes > 0 && resp.ContentLength > f.opts.MaxBytes {
		return nil, &FetchError{Kind: FetchTooLarge, URL: rawURL, Err: fmt.Errorf("declared length %d exceeds %d", resp.ContentLength, f.opts.MaxBytes)}
	}

	var body io.Reader = resp.Body
	if f.opts.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, f.opts.MaxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, f.classify(ctx, rawURL, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err))
	}

	size := int64(len(data))
	if f.opts.MaxBytes > 0 && size > f.opts.MaxBytes {
		return nil, &FetchError{Kind: FetchTooLarge, URL: rawURL, Err: fmt.Errorf("body exceeds %d bytes", f.opts.MaxBytes)}
	}
	if size < f.opts.MinBytes {
		return nil, &FetchError{Kind: FetchTooSmall, URL: rawURL, Err: fmt.Errorf("%d bytes, minimum %d", size, f.opts.MinBytes)}
	}

	f.log.WithFields(logrus.Fields{"url": rawURL, "bytes": size}).Debug("Fetched candidate image")
	return data, nil
}

// Probe issues a single HEAD request and reports whether rawURL serves an image.
func (f *ImageFetcher) Probe(ctx context.Context, rawURL string) ProbeResult {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ProbeMissing
	}

	probeCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	release, err := f.enterHost(probeCtx, u.Host)
	if err != nil {
		return ProbeMissing
	}
	defer release()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, rawURL, nil)
	if err != nil {
		return ProbeMissing
	}
	f.setHeaders(req)

	resp, err := f.fetcher.Do(probeCtx, req)
	if err != nil {
		if ctx.Err() == nil && isHostFailure(err) {
			return ProbeUnreachable
		}
		return ProbeMissing
	}
	drainAndClose(resp)

	if resp.StatusCode == http.StatusOK && isImageContentType(resp.Header.Get("Content-Type")) {
		return ProbeFound
	}
	return ProbeMissing
}

// enterHost takes the host permit, then waits for the host's rate-limit slot
func (f *ImageFetcher) enterHost(ctx context.Context, host string) (func(), error) {
	release := func() {}
	if f.hosts != nil {
		r, err := f.hosts.Acquire(ctx, host)
		if err != nil {
			return nil, err
		}
		release = r
	}
	if f.limiter != nil {
		if err := f.limiter.ApplyDelay(ctx, host, f.opts.HostDelay); err != nil {
			release()
			return nil, err
		}
	}
	return release, nil
}

func (f *ImageFetcher) setHeaders(req *http.Request) {
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}
	req.Header.Set("Accept", "image/png,image/webp,image/jpeg,image/*;q=0.8")
}

// classify turns a transport error into a FetchError. Parent cancellation is Unreachable, not Timeout.
func (f *ImageFetcher) classify(parent context.Context, rawURL string, err error) *FetchError {
	if parent.Err() != nil {
		return &FetchError{Kind: FetchUnreachable, URL: rawURL, Err: parent.Err()}
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &FetchError{Kind: FetchTimeout, URL: rawURL, Err: err}
	}
	return &FetchError{Kind: FetchUnreachable, URL: rawURL, Err: err}
}

func isImageContentType(ct string) bool {
	if ct == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	}
	return strings.HasPrefix(mediaType, "image/")
}

func isHostFailure(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "certificate")
}
