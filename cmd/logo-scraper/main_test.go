package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/logo-scraper/pkg/models"
	"github.com/Sriram-PR/logo-scraper/pkg/report"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const catalogJSON = `{"brands": [
  {"slug": "acme", "display_name": "Acme"},
  {"slug": "globex", "display_name": "Globex", "website": "https://globex.example"}
]}`

func TestLoadConfig_ValidFile(t *testing.T) {
	cfgPath := writeFile(t, t.TempDir(), "config.yaml", `
preset: strict
output_dir: "./out"
pipeline:
  concurrent_workers: 2
`)

	cfg, err := loadConfig(cfgPath)

	require.NoError(t, err)
	assert.Equal(t, "strict", cfg.Preset)
	assert.Equal(t, 2, cfg.Pipeline.ConcurrentWorkers)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := loadConfig("/nonexistent/path/config.yaml")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	cfgPath := writeFile(t, t.TempDir(), "bad.yaml", "{{invalid yaml")

	_, err := loadConfig(cfgPath)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoadEnv(t *testing.T) {
	t.Run("missing file is ignored", func(t *testing.T) {
		assert.NoError(t, loadEnv(filepath.Join(t.TempDir(), ".env")))
		assert.NoError(t, loadEnv(""))
	})

	t.Run("sets unset variables", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), ".env", "LOGO_SCRAPER_TEST_KEY=from-file\n")
		t.Setenv("LOGO_SCRAPER_TEST_KEY", "")
		os.Unsetenv("LOGO_SCRAPER_TEST_KEY")

		require.NoError(t, loadEnv(path))
		assert.Equal(t, "from-file", os.Getenv("LOGO_SCRAPER_TEST_KEY"))
	})

	t.Run("keeps existing variables", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), ".env", "LOGO_SCRAPER_TEST_KEY=from-file\n")
		t.Setenv("LOGO_SCRAPER_TEST_KEY", "from-shell")

		require.NoError(t, loadEnv(path))
		assert.Equal(t, "from-shell", os.Getenv("LOGO_SCRAPER_TEST_KEY"))
	})
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"acme", "globex"}, splitList(" acme, ,globex,"))
}

func TestDoValidate(t *testing.T) {
	t.Run("valid config and catalog", func(t *testing.T) {
		dir := t.TempDir()
		catalogPath := writeFile(t, dir, "brands.json", catalogJSON)
		cfgPath := writeFile(t, dir, "config.yaml", "catalog_path: "+catalogPath+"\n")

		var stdout, stderr bytes.Buffer
		exitCode := doValidate(cfgPath, "", &stdout, &stderr)

		assert.Equal(t, 0, exitCode, stderr.String())
		assert.Contains(t, stdout.String(), "OK: config (preset 'default'")
		assert.Contains(t, stdout.String(), "(2 brands)")
		assert.Contains(t, stdout.String(), "Configuration valid")
	})

	t.Run("floor above ceiling", func(t *testing.T) {
		cfgPath := writeFile(t, t.TempDir(), "config.yaml", `
pipeline:
  accept_score_floor: 90
  confidence_score_ceiling: 50
`)
		var stdout, stderr bytes.Buffer
		exitCode := doValidate(cfgPath, "", &stdout, &stderr)

		assert.Equal(t, 1, exitCode)
		assert.Contains(t, stderr.String(), "ERROR")
	})

	t.Run("duplicate slugs in catalog", func(t *testing.T) {
		dir := t.TempDir()
		cfgPath := writeFile(t, dir, "config.yaml", "output_dir: ./out\n")
		catalogPath := writeFile(t, dir, "brands.yaml", `
- slug: acme
  display_name: Acme
- slug: acme
  display_name: Acme Again
`)
		var stdout, stderr bytes.Buffer
		exitCode := doValidate(cfgPath, catalogPath, &stdout, &stderr)

		assert.Equal(t, 1, exitCode)
		assert.Contains(t, stderr.String(), "duplicate slug")
	})

	t.Run("missing config", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		assert.Equal(t, 1, doValidate("/nonexistent/config.yaml", "", &stdout, &stderr))
		assert.Contains(t, stderr.String(), "read config")
	})
}

func TestDoListBrands(t *testing.T) {
	dir := t.TempDir()
	catalogPath := writeFile(t, dir, "brands.json", catalogJSON)
	cfgPath := writeFile(t, dir, "config.yaml", fmt.Sprintf("catalog_path: %s\nstate_dir: %s\n", catalogPath, filepath.Join(dir, "state")))

	var stdout, stderr bytes.Buffer
	exitCode := doListBrands(cfgPath, "", true, &stdout, &stderr)

	assert.Equal(t, 0, exitCode, stderr.String())
	out := stdout.String()
	assert.Contains(t, out, "acme")
	assert.Contains(t, out, "<https://globex.example>")
	assert.Contains(t, out, "[not_found]")
	assert.Contains(t, out, "2 brands")
}

func TestDoListBrands_NoCatalog(t *testing.T) {
	cfgPath := writeFile(t, t.TempDir(), "config.yaml", "output_dir: ./out\n")

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, doListBrands(cfgPath, "", false, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "no catalog")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name   string
		report models.RunReport
		err    error
		want   int
	}{
		{"all succeeded", models.RunReport{Succeeded: 3}, nil, 0},
		{"some failed", models.RunReport{Succeeded: 2, Failed: 1}, nil, 1},
		{"cancelled gracefully", models.RunReport{Failed: 1, Cancelled: true}, nil, 0},
		{"fatal error", models.RunReport{Cancelled: true}, io.ErrShortWrite, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(&tt.report, tt.err))
		})
	}
}

func TestPrintUsageTo(t *testing.T) {
	var buf bytes.Buffer
	printUsageTo(&buf)
	for _, cmd := range []string{"acquire", "resume", "validate", "list-brands", "mcp-server", "version"} {
		assert.Contains(t, buf.String(), cmd)
	}
}

func TestDoMcpServer_UnknownTransport(t *testing.T) {
	var stderr bytes.Buffer
	assert.Equal(t, 1, doMcpServer("config.yaml", "", "", "carrier-pigeon", 0, "info", &stderr))
	assert.Contains(t, stderr.String(), "Unknown transport")
}

// noisePNG encodes a random image, which compresses poorly and hashes uniquely per seed
func noisePNG(t *testing.T, w, h int, seed int64) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// newSearchServer serves a results page embedding one logo URL per known brand
func newSearchServer(t *testing.T, logos map[string][]byte) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search" {
			q := strings.ToLower(r.URL.Query().Get("q"))
			for slug := range logos {
				if strings.Contains(q, slug) {
					fmt.Fprintf(w, `<html><script>{"img":"%s/%s-logo.png"}</script></html>`, srv.URL, slug)
					return
				}
			}
			fmt.Fprint(w, "<html>no results</html>")
			return
		}
		slug := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), "-logo.png")
		data, ok := logos[slug]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeRunConfig(t *testing.T, dir, searchURL string) string {
	t.Helper()
	return writeFile(t, dir, "config.yaml", fmt.Sprintf(`
catalog_path: %[1]s/brands.json
output_dir: %[1]s/logos
state_dir: %[1]s/state
report_path: %[1]s/report.json
summary_path: %[1]s/summary.md
default_backend_delay: 1ms
pipeline:
  concurrent_workers: 2
backends:
  - name: test-search
    kind: web_search
    search_url: "%[2]s/search?q=%%s"
    url_patterns: ['"img":"([^"]+)"']
`, dir, searchURL))
}

func TestDoAcquire_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "brands.json", catalogJSON)
	srv := newSearchServer(t, map[string][]byte{
		"acme":   noisePNG(t, 300, 150, 1),
		"globex": noisePNG(t, 300, 150, 2),
	})
	cfgPath := writeRunConfig(t, dir, srv.URL)

	opts := acquireOptions{configPath: cfgPath, logLevel: "error"}
	require.Equal(t, 0, doAcquire(opts, io.Discard))

	assert.FileExists(t, filepath.Join(dir, "logos", "acme.png"))
	assert.FileExists(t, filepath.Join(dir, "logos", "globex.png"))
	assert.FileExists(t, filepath.Join(dir, "summary.md"))

	rep, err := report.Read(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Succeeded)
	assert.Equal(t, 0, rep.Failed)
	assert.Equal(t, models.RunStatusSuccess, rep.Results["acme"].Status)
	assert.Contains(t, rep.Results["globex"].Chosen.SourceURL, "globex-logo.png")

	// resume skips both stored successes
	opts.resume = true
	require.Equal(t, 0, doAcquire(opts, io.Discard))
	rep, err = report.Read(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"acme", "globex"}, rep.Skipped)
	assert.Empty(t, rep.Results)
}

func TestDoAcquire_FailedBrandExitsNonZero(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "brands.json", catalogJSON)
	srv := newSearchServer(t, map[string][]byte{"acme": noisePNG(t, 300, 150, 3)})
	cfgPath := writeRunConfig(t, dir, srv.URL)

	exit := doAcquire(acquireOptions{configPath: cfgPath, logLevel: "error"}, io.Discard)
	assert.Equal(t, 1, exit)

	rep, err := report.Read(filepath.Join(dir, "report.json"))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, models.RunStatusFailed, rep.Results["globex"].Status)
	assert.NotEmpty(t, rep.Results["globex"].AttemptedQueries)
}

func TestDoAcquire_BrandFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "brands.json", catalogJSON)
	srv := newSearchServer(t, map[string][]byte{"acme": noisePNG(t, 300, 150, 4)})
	cfgPath := writeRunConfig(t, dir, srv.URL)

	require.Equal(t, 0, doAcquire(acquireOptions{configPath: cfgPath, brands: "acme", logLevel: "error"}, io.Discard))
	assert.NoFileExists(t, filepath.Join(dir, "logos", "globex.png"))

	assert.Equal(t, 1, doAcquire(acquireOptions{configPath: cfgPath, brands: "umbrella", logLevel: "error"}, io.Discard))
}
