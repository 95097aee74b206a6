package config

import (
	"fmt"
	"time"

	"github.com/Sriram-PR/logo-scraper/pkg/models"
	"github.com/Sriram-PR/logo-scraper/pkg/utils"
)

// MaxQueriesCap is the hard upper bound on queries per brand
const MaxQueriesCap = 4

const defaultUserAgent = "logo-scraper/1.0 (+https://github.com/Sriram-PR/logo-scraper)"

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	if c.DefaultUserAgent == "" {
		c.DefaultUserAgent = defaultUserAgent
	}

	// Preset + pipeline knobs
	if c.Preset == "" {
		c.Preset = DefaultPreset
	}
	preset, ok := LookupPreset(c.Preset)
	if !ok {
		return warnings, fmt.Errorf("%w: unknown preset '%s' (known: %v)", utils.ErrConfigValidation, c.Preset, PresetNames())
	}
	c.Pipeline.applyPreset(preset)

	pipelineWarnings, err := c.Pipeline.Validate()
	warnings = append(warnings, pipelineWarnings...)
	if err != nil {
		return warnings, err
	}

	// OutputDir
	if c.OutputDir == "" {
		warnings = append(warnings, "output_dir is empty, defaulting to './logos'")
		c.OutputDir = "./logos"
	}

	// StateDir
	if c.StateDir == "" {
		warnings = append(warnings, "state_dir is empty, defaulting to './logo_state'")
		c.StateDir = "./logo_state"
	}

	if c.ReportPath == "" {
		c.ReportPath = "./run_report.json"
	}

	// Backend delay
	if c.DefaultBackendDelay < 0 {
		warnings = append(warnings, "default_backend_delay cannot be negative, setting to 0")
		c.DefaultBackendDelay = 0
	}
	if c.DefaultBackendDelay == 0 {
		c.DefaultBackendDelay = 1 * time.Second
	}

	if c.DefaultDelayPerHost < 0 {
		warnings = append(warnings, "default_delay_per_host cannot be negative, setting to 0")
		c.DefaultDelayPerHost = 0
	}

	// MaxRequestsPerHost
	if c.MaxRequestsPerHost <= 0 {
		warnings = append(warnings, "max_requests_per_host should be > 0, defaulting to 2")
		c.MaxRequestsPerHost = 2
	}

	// MaxRetries
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}
	if c.MaxRetries == 0 && c.InitialRetryDelay == 0 {
		c.MaxRetries = 2
	}

	// Retry delays (only if retries enabled)
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 500 * time.Millisecond
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 5 * time.Second
		}
	}

	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	if c.SemaphoreAcquireTimeout <= 0 {
		c.SemaphoreAcquireTimeout = 30 * time.Second
	}

	if c.GlobalRunTimeout < 0 {
		warnings = append(warnings, "global_run_timeout cannot be negative, disabling timeout")
		c.GlobalRunTimeout = 0
	}

	c.validateHTTPClientSettings()
	c.validateVision()

	backendWarnings, err := c.validateBackends()
	warnings = append(warnings, backendWarnings...)
	if err != nil {
		return warnings, err
	}

	return warnings, nil
}

// Validate checks the pipeline knobs after preset application.
// Inconsistent thresholds or bounds are fatal; out-of-range counts are clamped with a warning.
func (p *PipelineConfig) Validate() (warnings []string, err error) {
	if p.MaxQueriesPerBrand < 1 {
		warnings = append(warnings, "max_queries_per_brand should be >= 1, setting to 1")
		p.MaxQueriesPerBrand = 1
	}
	if p.MaxQueriesPerBrand > MaxQueriesCap {
		warnings = append(warnings, fmt.Sprintf("max_queries_per_brand (%d) exceeds cap, clamping to %d",
			p.MaxQueriesPerBrand, MaxQueriesCap))
		p.MaxQueriesPerBrand = MaxQueriesCap
	}
	if p.MaxURLsPerQuery < 1 {
		warnings = append(warnings, "max_urls_per_query should be >= 1, setting to 1")
		p.MaxURLsPerQuery = 1
	}
	if p.ConcurrentWorkers < 1 {
		warnings = append(warnings, "concurrent_workers should be >= 1, setting to 1")
		p.ConcurrentWorkers = 1
	}
	if p.RetainedCandidates < 1 {
		p.RetainedCandidates = 1
	}
	if p.PerceptualDistance < 0 {
		warnings = append(warnings, "perceptual_distance cannot be negative, disabling perceptual dedup")
		p.PerceptualDistance = 0
	}

	if p.AcceptScoreFloor < 0 {
		return warnings, fmt.Errorf("%w: accept_score_floor cannot be negative", utils.ErrConfigValidation)
	}
	if p.AcceptScoreFloor > p.ConfidenceScoreCeiling {
		return warnings, fmt.Errorf("%w: accept_score_floor (%.1f) must not exceed confidence_score_ceiling (%.1f)",
			utils.ErrConfigValidation, p.AcceptScoreFloor, p.ConfidenceScoreCeiling)
	}
	if p.MinImageBytes < 0 || p.MinImageBytes > p.MaxImageBytes {
		return warnings, fmt.Errorf("%w: image byte bounds [%d, %d] are invalid",
			utils.ErrConfigValidation, p.MinImageBytes, p.MaxImageBytes)
	}
	if p.MinDimension < 1 || p.MinDimension > p.MaxDimension {
		return warnings, fmt.Errorf("%w: dimension bounds [%d, %d] are invalid",
			utils.ErrConfigValidation, p.MinDimension, p.MaxDimension)
	}
	if p.MinAspectRatio <= 0 || p.MinAspectRatio > p.MaxAspectRatio {
		return warnings, fmt.Errorf("%w: aspect ratio bounds [%.2f, %.2f] are invalid",
			utils.ErrConfigValidation, p.MinAspectRatio, p.MaxAspectRatio)
	}
	if p.OutputMaxDimension < 1 {
		warnings = append(warnings, "output_max_dimension should be >= 1, defaulting to 800")
		p.OutputMaxDimension = 800
	}
	if p.FetchTimeout <= 0 {
		warnings = append(warnings, "fetch_timeout should be > 0, defaulting to 10s")
		p.FetchTimeout = 10 * time.Second
	}

	switch p.LogoStrictness {
	case StrictnessLogo, StrictnessStandard:
	default:
		warnings = append(warnings, fmt.Sprintf("unknown logo_strictness '%s', using '%s'", p.LogoStrictness, StrictnessLogo))
		p.LogoStrictness = StrictnessLogo
	}

	if p.VariantBackendHint != "" && !models.BackendKind(p.VariantBackendHint).IsValid() {
		return warnings, fmt.Errorf("%w: variant_backend_hint '%s' is not a backend kind",
			utils.ErrConfigValidation, p.VariantBackendHint)
	}

	return warnings, nil
}

// validateBackends applies per-kind defaults and rejects unknown kinds or duplicate names.
func (c *AppConfig) validateBackends() (warnings []string, err error) {
	if len(c.Backends) == 0 {
		warnings = append(warnings, "no backends configured, using the built-in backend list")
		c.Backends = DefaultBackends()
	}

	seen := make(map[string]bool, len(c.Backends))
	for i := range c.Backends {
		b := &c.Backends[i]
		kind := b.BackendKind()
		if !kind.IsValid() {
			return warnings, fmt.Errorf("%w: backend #%d has unknown kind '%s'", utils.ErrConfigValidation, i+1, b.Kind)
		}
		if b.Name == "" {
			b.Name = fmt.Sprintf("%s-%d", b.Kind, i+1)
		}
		if seen[b.Name] {
			return warnings, fmt.Errorf("%w: duplicate backend name '%s'", utils.ErrConfigValidation, b.Name)
		}
		seen[b.Name] = true

		if b.Delay < 0 {
			warnings = append(warnings, fmt.Sprintf("backend '%s': delay cannot be negative, using default", b.Name))
			b.Delay = 0
		}
		if b.Scheme == "" {
			b.Scheme = "https"
		}

		switch kind {
		case models.BackendWebSearch:
			if b.Engine == "" && b.SearchURL == "" {
				b.Engine = "bing"
			}
			if b.SearchURL != "" && len(b.URLPatterns) == 0 && b.Engine == "" {
				return warnings, fmt.Errorf("%w: backend '%s': search_url needs url_patterns or an engine", utils.ErrConfigValidation, b.Name)
			}
			if _, err := utils.CompileRegexPatterns(b.URLPatterns); err != nil {
				return warnings, fmt.Errorf("backend '%s': %w", b.Name, err)
			}
		case models.BackendImageAPI:
			if b.APIKeyEnv == "" {
				b.APIKeyEnv = "GOOGLE_CSE_API_KEY"
			}
			if b.SearchEngineID == "" && b.SearchIDEnv == "" {
				b.SearchIDEnv = "GOOGLE_CSE_ID"
			}
		case models.BackendDirectGuess:
			if len(b.DomainTemplates) == 0 {
				b.DomainTemplates = []string{
					"{name}.com", "www.{name}.com",
					"{name}.net", "www.{name}.net",
					"{name}.io", "www.{name}.io",
				}
			}
			if len(b.Paths) == 0 {
				b.Paths = []string{"/logo.png", "/assets/images/logo.png", "/images/logo.png", "/favicon.ico"}
			}
		case models.BackendHomepage:
			if len(b.DomainTemplates) == 0 {
				b.DomainTemplates = []string{"www.{name}.com", "{name}.com"}
			}
		case models.BackendLogoService:
			if len(b.URLTemplates) == 0 {
				b.URLTemplates = []string{
					"https://logo.clearbit.com/{domain}",
					"https://www.google.com/s2/favicons?domain={domain}&sz=256",
				}
			}
			if len(b.DomainTemplates) == 0 {
				b.DomainTemplates = []string{"{name}.com"}
			}
		}
	}

	if len(c.EnabledBackends()) == 0 {
		return warnings, fmt.Errorf("%w: every backend is disabled", utils.ErrConfigValidation)
	}
	return warnings, nil
}

// validateVision applies defaults to the optional verification stage.
func (c *AppConfig) validateVision() {
	v := &c.Vision
	if v.MinConfidence <= 0 || v.MinConfidence > 1 {
		v.MinConfidence = 0.5
	}
	if v.Bonus <= 0 {
		v.Bonus = 15
	}
	if v.Delay < 0 {
		v.Delay = 0
	}
	if v.Timeout <= 0 {
		v.Timeout = 15 * time.Second
	}
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 30 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}
