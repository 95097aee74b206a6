package acquire

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"iter"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/logo-scraper/pkg/config"
	"github.com/Sriram-PR/logo-scraper/pkg/dedup"
	"github.com/Sriram-PR/logo-scraper/pkg/fetch"
	"github.com/Sriram-PR/logo-scraper/pkg/models"
	"github.com/Sriram-PR/logo-scraper/pkg/persist"
	"github.com/Sriram-PR/logo-scraper/pkg/source"
	"github.com/Sriram-PR/logo-scraper/pkg/utils"
	"github.com/Sriram-PR/logo-scraper/pkg/verify"
)

// --- Fixtures ---

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func noise(w, h int, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	return img
}

func noisePNG(t *testing.T, w, h int, seed int64) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, noise(w, h, seed)))
	return buf.Bytes()
}

func noiseJPEG(t *testing.T, w, h int, seed int64) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, noise(w, h, seed), nil))
	return buf.Bytes()
}

// stubBackend returns the same URLs for every query and records the queries it saw
type stubBackend struct {
	name    string
	kind    models.BackendKind
	urls    []string
	mu      sync.Mutex
	queries []string
}

func (b *stubBackend) Name() string             { return b.name }
func (b *stubBackend) Kind() models.BackendKind { return b.kind }

func (b *stubBackend) Discover(_ context.Context, q models.SearchQuery) iter.Seq[string] {
	b.mu.Lock()
	b.queries = append(b.queries, q.Text)
	b.mu.Unlock()
	return slices.Values(b.urls)
}

func (b *stubBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queries)
}

// stubImages serves bytes from a map; unknown URLs are unreachable
type stubImages map[string][]byte

func (s stubImages) Fetch(_ context.Context, rawURL string) ([]byte, error) {
	if data, ok := s[rawURL]; ok {
		return data, nil
	}
	return nil, &fetch.FetchError{Kind: fetch.FetchUnreachable, URL: rawURL, Err: errors.New("no such fixture")}
}

// countingBackend yields n unreachable URLs and counts how many it produced
type countingBackend struct {
	n        int
	produced int
}

func (b *countingBackend) Name() string             { return "counting" }
func (b *countingBackend) Kind() models.BackendKind { return models.BackendDirectGuess }

func (b *countingBackend) Discover(_ context.Context, _ models.SearchQuery) iter.Seq[string] {
	return func(yield func(string) bool) {
		for i := 0; i < b.n; i++ {
			b.produced++
			if !yield(fmt.Sprintf("https://guess.example.com/logo-%d.png", i)) {
				return
			}
		}
	}
}

type failingSaver struct{}

func (failingSaver) Persist(slug string, _ image.Image) (persist.Result, error) {
	return persist.Result{}, &persist.PersistError{Kind: persist.PersistIOFailure, Path: slug + ".png", Err: errors.New("disk full")}
}

type stubDetector struct{ logos []verify.DetectedLogo }

func (d stubDetector) DetectLogos(context.Context, []byte) ([]verify.DetectedLogo, error) {
	return d.logos, nil
}

func testPipeline() config.PipelineConfig {
	p, ok := config.LookupPreset(config.DefaultPreset)
	if !ok {
		panic("default preset missing")
	}
	return p
}

const (
	highURL = "https://cdn.example.com/acme-logo.png" // PNG + logo + brand term: 115
	midURL  = "https://cdn.example.com/p/a1.jpg"      // JPEG, no keywords: 60
	mid2URL = "https://cdn.example.com/p/a2.jpg"
)

type harness struct {
	dir    string
	index  *dedup.Index
	images stubImages
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{
		dir:   t.TempDir(),
		index: dedup.NewIndex(0, testLogger()),
		images: stubImages{
			highURL: noisePNG(t, 300, 150, 1),
			midURL:  noiseJPEG(t, 300, 150, 2),
			mid2URL: noiseJPEG(t, 300, 150, 3),
		},
	}
}

func (h *harness) acquirer(cfg config.PipelineConfig, backends ...source.Backend) *Acquirer {
	return New(cfg, Deps{
		Backends: backends,
		Images:   h.images,
		Index:    h.index,
		Saver:    persist.NewPersister(h.dir, cfg.OutputMaxDimension, testLogger()),
	}, testLogger())
}

var acme = models.BrandRecord{Slug: "acme", DisplayName: "Acme Casino", NameVariants: []string{"ACME Group"}}

// --- Tests ---

func TestAcquire_EarlyExitSkipsLaterQueriesAndBackends(t *testing.T) {
	h := newHarness(t)
	primary := &stubBackend{name: "primary", kind: models.BackendWebSearch, urls: []string{midURL, highURL}}
	secondary := &stubBackend{name: "secondary", kind: models.BackendDirectGuess, urls: []string{mid2URL}}

	res, err := h.acquirer(testPipeline(), primary, secondary).Acquire(context.Background(), acme)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusSuccess, res.Status)
	require.NotNil(t, res.Chosen)
	assert.Equal(t, highURL, res.Chosen.SourceURL)
	assert.Equal(t, "primary", res.Chosen.Backend)
	assert.Equal(t, 1, primary.calls())
	assert.Equal(t, 0, secondary.calls(), "lower-priority backend must not run after early exit")
	assert.Len(t, res.AttemptedQueries, 1)
	assert.Equal(t, 2, res.CandidatesSeen)
	assert.FileExists(t, filepath.Join(h.dir, "acme.png"))
}

func TestAcquire_FallbackPicksBestRetained(t *testing.T) {
	h := newHarness(t)
	b := &stubBackend{name: "search", kind: models.BackendWebSearch, urls: []string{midURL, mid2URL}}

	res, err := h.acquirer(testPipeline(), b).Acquire(context.Background(), acme)
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusSuccess, res.Status)
	assert.Equal(t, midURL, res.Chosen.SourceURL, "equal scores resolve to the first discovered")
	assert.Len(t, res.AttemptedQueries, 2, "no early exit, so the variant query runs too")
	assert.Equal(t, 2, b.calls())
	assert.Equal(t, 2, res.CandidatesSeen, "repeated URLs are fetched once per brand")
	assert.Less(t, res.Chosen.Score, testPipeline().ConfidenceScoreCeiling)
	assert.GreaterOrEqual(t, res.Chosen.Score, testPipeline().AcceptScoreFloor)
}

func TestAcquire_BelowFloorFails(t *testing.T) {
	h := newHarness(t)
	cfg := testPipeline()
	cfg.AcceptScoreFloor = 70
	cfg.ConfidenceScoreCeiling = 200
	b := &stubBackend{name: "search", kind: models.BackendWebSearch, urls: []string{midURL}}

	res, err := h.acquirer(cfg, b).Acquire(context.Background(), acme)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, res.Status)
	assert.Equal(t, ReasonBelowFloor, res.FailureReason)
	assert.Equal(t, 1, res.Rejections[rejectBelowFloor])
	assert.NoFileExists(t, filepath.Join(h.dir, "acme.png"))
}

func TestAcquire_AllBackendsEmpty(t *testing.T) {
	h := newHarness(t)
	empty := &stubBackend{name: "empty", kind: models.BackendWebSearch}
	brand := models.BrandRecord{Slug: "acme", DisplayName: "Acme Casino"}

	res, err := h.acquirer(testPipeline(), empty).Acquire(context.Background(), brand)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, res.Status)
	assert.Equal(t, ReasonNoCandidates, res.FailureReason)
	assert.Len(t, res.AttemptedQueries, 1)
	assert.Nil(t, res.Chosen)
	assert.Nil(t, res.Rejections)
	assert.NoFileExists(t, filepath.Join(h.dir, "acme.png"))
}

func TestAcquire_RejectionsAreCategorized(t *testing.T) {
	h := newHarness(t)
	h.images["https://cdn.example.com/broken.png"] = bytes.Repeat([]byte{0x42}, 4000)
	b := &stubBackend{name: "search", kind: models.BackendWebSearch, urls: []string{
		"https://cdn.example.com/missing.png",
		"https://cdn.example.com/broken.png",
	}}

	res, err := h.acquirer(testPipeline(), b).Acquire(context.Background(), models.BrandRecord{Slug: "acme", DisplayName: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, ReasonAllRejected, res.FailureReason)
	assert.Equal(t, map[string]int{"Fetch_Unreachable": 1, "Validation_Corrupt": 1}, res.Rejections)
}

func TestAcquire_EndToEndOverHTTP(t *testing.T) {
	logo := noisePNG(t, 300, 150, 7)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/assets/logo.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(logo)
	}))
	defer srv.Close()

	cfg := testPipeline()
	appCfg := &config.AppConfig{DefaultUserAgent: "logo-scraper-test"}
	images := fetch.NewImageFetcher(
		fetch.NewFetcher(&http.Client{Timeout: 5 * time.Second}, appCfg, testLogger()),
		nil, nil,
		fetch.ImageFetcherOptions{MinBytes: cfg.MinImageBytes, MaxBytes: cfg.MaxImageBytes, Timeout: cfg.FetchTimeout},
		testLogger(),
	)
	dir := t.TempDir()
	a := New(cfg, Deps{
		Backends: []source.Backend{&stubBackend{name: "stub", kind: models.BackendWebSearch, urls: []string{srv.URL + "/assets/logo.png"}}},
		Images:   images,
		Index:    dedup.NewIndex(0, testLogger()),
		Saver:    persist.NewPersister(dir, cfg.OutputMaxDimension, testLogger()),
	}, testLogger())

	res, err := a.Acquire(context.Background(), models.BrandRecord{Slug: "acme", DisplayName: "Acme Casino"})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSuccess, res.Status)
	assert.Equal(t, filepath.Join(dir, "acme.png"), res.OutputPath)
	assert.Greater(t, res.Chosen.Score, cfg.AcceptScoreFloor)
	assert.Equal(t, 300, res.Chosen.Width)
	assert.Equal(t, utils.ContentHash(logo), res.Chosen.ContentHash)
	assert.FileExists(t, res.OutputPath)
}

func TestAcquire_SameBytesForTwoBrands(t *testing.T) {
	h := newHarness(t)
	shared := "https://cdn.example.com/shared-logo.png"
	h.images[shared] = noisePNG(t, 200, 200, 11)
	b := &stubBackend{name: "search", kind: models.BackendWebSearch, urls: []string{shared}}
	a := h.acquirer(testPipeline(), b)

	first, err := a.Acquire(context.Background(), models.BrandRecord{Slug: "acme", DisplayName: "Acme"})
	require.NoError(t, err)
	second, err := a.Acquire(context.Background(), models.BrandRecord{Slug: "globex", DisplayName: "Globex"})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusSuccess, first.Status)
	assert.Equal(t, models.RunStatusFailed, second.Status)
	assert.Equal(t, ReasonDuplicate, second.FailureReason)
	assert.Equal(t, 1, second.Rejections["Duplicate"])
	assert.FileExists(t, filepath.Join(h.dir, "acme.png"))
	assert.NoFileExists(t, filepath.Join(h.dir, "globex.png"))

	again, err := a.Acquire(context.Background(), models.BrandRecord{Slug: "acme", DisplayName: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSuccess, again.Status, "a brand may re-acquire its own image")
}

func TestAcquire_SeededOutputDirBlocksReencodedSource(t *testing.T) {
	h := newHarness(t)
	shared := "https://cdn.example.com/shared-logo.jpg"
	h.images[shared] = noiseJPEG(t, 200, 200, 13)
	b := &stubBackend{name: "search", kind: models.BackendWebSearch, urls: []string{shared}}

	first, err := h.acquirer(testPipeline(), b).Acquire(context.Background(), models.BrandRecord{Slug: "acme", DisplayName: "Acme"})
	require.NoError(t, err)
	require.Equal(t, models.RunStatusSuccess, first.Status)

	// Fresh run: only the output directory is known
	h.index = dedup.NewIndex(0, testLogger())
	n, err := dedup.Seed(h.index, h.dir, nil)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	_, rawKnown := h.index.Owner(utils.ContentHash(h.images[shared]))
	require.False(t, rawKnown, "jpeg bytes differ from the persisted png")

	second, err := h.acquirer(testPipeline(), b).Acquire(context.Background(), models.BrandRecord{Slug: "globex", DisplayName: "Globex"})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, second.Status)
	assert.Equal(t, ReasonDuplicate, second.FailureReason)
	assert.NoFileExists(t, filepath.Join(h.dir, "globex.png"))

	again, err := h.acquirer(testPipeline(), b).Acquire(context.Background(), models.BrandRecord{Slug: "acme", DisplayName: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSuccess, again.Status)
}

func TestAcquire_URLCapStopsBackendEarly(t *testing.T) {
	h := newHarness(t)
	cfg := testPipeline()
	cfg.MaxQueriesPerBrand = 1
	cfg.MaxURLsPerQuery = 2
	b := &countingBackend{n: 5}

	res, err := h.acquirer(cfg, b).Acquire(context.Background(), models.BrandRecord{Slug: "acme", DisplayName: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, res.Status)
	assert.Equal(t, 2, res.CandidatesSeen)
	assert.Equal(t, 2, b.produced, "no URL is produced past the cap")
}

func TestAcquire_ConcurrentBrandsNeverShareAnImage(t *testing.T) {
	h := newHarness(t)
	shared := "https://cdn.example.com/shared-logo.png"
	h.images[shared] = noisePNG(t, 200, 200, 12)
	a := h.acquirer(testPipeline(), &stubBackend{name: "search", kind: models.BackendWebSearch, urls: []string{shared}})

	slugs := []string{"a1", "b2", "c3", "d4", "e5", "f6", "g7", "h8"}
	results := make([]models.RunResult, len(slugs))
	var wg sync.WaitGroup
	for i, slug := range slugs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := a.Acquire(context.Background(), models.BrandRecord{Slug: slug, DisplayName: "Brand " + slug})
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	successes := 0
	for _, res := range results {
		if res.Status == models.RunStatusSuccess {
			successes++
		}
	}
	assert.Equal(t, 1, successes)

	entries, err := os.ReadDir(h.dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAcquire_Cancelled(t *testing.T) {
	h := newHarness(t)
	b := &stubBackend{name: "search", kind: models.BackendWebSearch, urls: []string{highURL}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := h.acquirer(testPipeline(), b).Acquire(ctx, acme)
	require.NoError(t, err)
	assert.True(t, res.Interrupted)
	assert.Equal(t, ReasonInterrupted, res.FailureReason)
	assert.Empty(t, res.AttemptedQueries)
	assert.Equal(t, 0, b.calls())
}

func TestAcquire_PersistErrorIsFatalAndReleasesClaim(t *testing.T) {
	h := newHarness(t)
	cfg := testPipeline()
	a := New(cfg, Deps{
		Backends: []source.Backend{&stubBackend{name: "search", kind: models.BackendWebSearch, urls: []string{highURL}}},
		Images:   h.images,
		Index:    h.index,
		Saver:    failingSaver{},
	}, testLogger())

	res, err := a.Acquire(context.Background(), acme)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Equal(t, models.RunStatusFailed, res.Status)
	assert.Equal(t, ReasonPersistError, res.FailureReason)

	_, owned := h.index.Owner(utils.ContentHash(h.images[highURL]))
	assert.False(t, owned)
}

func TestAcquire_VariantBackendHint(t *testing.T) {
	h := newHarness(t)
	cfg := testPipeline()
	cfg.VariantBackendHint = string(models.BackendDirectGuess)
	search := &stubBackend{name: "search", kind: models.BackendWebSearch}
	guess := &stubBackend{name: "guess", kind: models.BackendDirectGuess}

	_, err := h.acquirer(cfg, search, guess).Acquire(context.Background(), acme)
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme Casino logo"}, search.queries)
	assert.Equal(t, []string{"Acme Casino logo", "ACME Group logo"}, guess.queries)
}

func TestAcquire_VisionBonusCanTriggerEarlyExit(t *testing.T) {
	h := newHarness(t)
	cfg := testPipeline()
	vcfg := config.VisionConfig{Enabled: true, MinConfidence: 0.5, Bonus: 25}
	b := &stubBackend{name: "search", kind: models.BackendWebSearch, urls: []string{midURL, mid2URL}}

	a := New(cfg, Deps{
		Backends: []source.Backend{b},
		Images:   h.images,
		Index:    h.index,
		Saver:    persist.NewPersister(h.dir, cfg.OutputMaxDimension, testLogger()),
		Verifier: verify.NewVerifier(stubDetector{logos: []verify.DetectedLogo{{Name: "Acme Casino", Confidence: 0.9}}}, vcfg, nil, testLogger()),
	}, testLogger())

	res, err := a.Acquire(context.Background(), acme)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSuccess, res.Status)
	assert.Equal(t, midURL, res.Chosen.SourceURL)
	assert.Equal(t, 25.0, res.Chosen.VisionBonus)
	assert.Equal(t, 1, res.CandidatesSeen, "bonus pushed the first candidate over the ceiling")
}
