package config

import (
	"time"

	"github.com/Sriram-PR/logo-scraper/pkg/models"
)

// Strictness modes for the image validator
const (
	StrictnessStandard = "standard" // Dimension and byte bounds only
	StrictnessLogo     = "logo"     // Also rejects aspect ratios outside [min_aspect_ratio, max_aspect_ratio]
)

// PipelineConfig holds the numeric knobs of the acquisition pipeline
type PipelineConfig struct {
	MaxQueriesPerBrand     int           `yaml:"max_queries_per_brand,omitempty"`
	MaxURLsPerQuery        int           `yaml:"max_urls_per_query,omitempty"`
	AcceptScoreFloor       float64       `yaml:"accept_score_floor,omitempty"`
	ConfidenceScoreCeiling float64       `yaml:"confidence_score_ceiling,omitempty"`
	MinImageBytes          int64         `yaml:"min_image_bytes,omitempty"`
	MaxImageBytes          int64         `yaml:"max_image_bytes,omitempty"`
	MinDimension           int           `yaml:"min_dimension,omitempty"`
	MaxDimension           int           `yaml:"max_dimension,omitempty"`
	FetchTimeout           time.Duration `yaml:"fetch_timeout,omitempty"`
	ConcurrentWorkers      int           `yaml:"concurrent_workers,omitempty"`
	OutputMaxDimension     int           `yaml:"output_max_dimension,omitempty"`
	LogoStrictness         string        `yaml:"logo_strictness,omitempty"`
	MinAspectRatio         float64       `yaml:"min_aspect_ratio,omitempty"`
	MaxAspectRatio         float64       `yaml:"max_aspect_ratio,omitempty"`
	RetainedCandidates     int           `yaml:"retained_candidates,omitempty"`  // Fallback pool size per brand
	PerceptualDistance     int           `yaml:"perceptual_distance,omitempty"`  // dHash distance for near-duplicates; 0 disables
	QueryQualifier         string        `yaml:"query_qualifier,omitempty"`      // Appended to names, e.g. "logo"
	VariantBackendHint     string        `yaml:"variant_backend_hint,omitempty"` // Restrict variant queries to one backend kind
}

// BackendConfig configures one candidate-URL source. Order in AppConfig.Backends is priority order.
type BackendConfig struct {
	Name          string        `yaml:"name"`
	Kind          string        `yaml:"kind"`
	Enabled       *bool         `yaml:"enabled,omitempty"`
	Delay         time.Duration `yaml:"delay,omitempty"`   // Minimum spacing between calls to this backend
	Timeout       time.Duration `yaml:"timeout,omitempty"` // Per-call timeout for discovery requests
	MaxResults    int           `yaml:"max_results,omitempty"`
	RespectRobots bool          `yaml:"respect_robots,omitempty"`

	// web_search
	Engine      string   `yaml:"engine,omitempty"`       // bing, duckduckgo, google
	SearchURL   string   `yaml:"search_url,omitempty"`   // Overrides the engine URL; %s receives the escaped query
	URLPatterns []string `yaml:"url_patterns,omitempty"` // Overrides the engine extraction patterns

	// image_api
	APIKeyEnv      string `yaml:"api_key_env,omitempty"`
	SearchEngineID string `yaml:"search_engine_id,omitempty"`
	SearchIDEnv    string `yaml:"search_engine_id_env,omitempty"`
	Endpoint       string `yaml:"endpoint,omitempty"`

	// direct_guess, homepage, logo_service
	Scheme          string   `yaml:"scheme,omitempty"`
	DomainTemplates []string `yaml:"domain_templates,omitempty"` // "{name}.com", "www.{name}.com"
	Paths           []string `yaml:"paths,omitempty"`
	URLTemplates    []string `yaml:"url_templates,omitempty"` // "https://logo.clearbit.com/{domain}"
}

// IsEnabled returns the effective enabled flag (default true)
func (b BackendConfig) IsEnabled() bool {
	return b.Enabled == nil || *b.Enabled
}

// BackendKind returns the typed kind
func (b BackendConfig) BackendKind() models.BackendKind {
	return models.BackendKind(b.Kind)
}

// VisionConfig controls the optional Cloud Vision logo verification stage
type VisionConfig struct {
	Enabled       bool          `yaml:"enabled,omitempty"`
	MinConfidence float32       `yaml:"min_confidence,omitempty"`
	Bonus         float64       `yaml:"bonus,omitempty"`
	Delay         time.Duration `yaml:"delay,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"` // Per detection call
}

// AppConfig holds the global application configuration
type AppConfig struct {
	DefaultUserAgent        string           `yaml:"default_user_agent"`
	Preset                  string           `yaml:"preset,omitempty"`
	CatalogPath             string           `yaml:"catalog_path,omitempty"`
	OutputDir               string           `yaml:"output_dir"`
	StateDir                string           `yaml:"state_dir"`
	ReportPath              string           `yaml:"report_path,omitempty"`
	SummaryPath             string           `yaml:"summary_path,omitempty"`
	DefaultBackendDelay     time.Duration    `yaml:"default_backend_delay,omitempty"`
	DefaultDelayPerHost     time.Duration    `yaml:"default_delay_per_host,omitempty"`
	MaxRequestsPerHost      int              `yaml:"max_requests_per_host,omitempty"`
	MaxRetries              int              `yaml:"max_retries,omitempty"`
	InitialRetryDelay       time.Duration    `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay           time.Duration    `yaml:"max_retry_delay,omitempty"`
	SemaphoreAcquireTimeout time.Duration    `yaml:"semaphore_acquire_timeout,omitempty"`
	GlobalRunTimeout        time.Duration    `yaml:"global_run_timeout,omitempty"`
	DBGCInterval            time.Duration    `yaml:"db_gc_interval,omitempty"`
	HTTPClientSettings      HTTPClientConfig `yaml:"http_client_settings,omitempty"`
	Pipeline                PipelineConfig   `yaml:"pipeline"`
	Backends                []BackendConfig  `yaml:"backends"`
	Vision                  VisionConfig     `yaml:"vision,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// EnabledBackends returns backends with enabled != false, in priority order
func (c *AppConfig) EnabledBackends() []BackendConfig {
	out := make([]BackendConfig, 0, len(c.Backends))
	for _, b := range c.Backends {
		if b.IsEnabled() {
			out = append(out, b)
		}
	}
	return out
}

// GetEffectiveBackendDelay determines the delay for one backend
// Backend delay (if positive) overrides the global default
func GetEffectiveBackendDelay(b BackendConfig, appCfg AppConfig) time.Duration {
	if b.Delay > 0 {
		return b.Delay
	}
	return appCfg.DefaultBackendDelay
}

// GetEffectiveBackendTimeout bounds a single discovery call
func GetEffectiveBackendTimeout(b BackendConfig, appCfg AppConfig) time.Duration {
	if b.Timeout > 0 {
		return b.Timeout
	}
	if appCfg.Pipeline.FetchTimeout > 0 {
		return appCfg.Pipeline.FetchTimeout
	}
	return 10 * time.Second
}

// GetEffectiveMaxResults caps how many URLs a backend yields per query
func GetEffectiveMaxResults(b BackendConfig, appCfg AppConfig) int {
	if b.MaxResults > 0 {
		return b.MaxResults
	}
	return appCfg.Pipeline.MaxURLsPerQuery
}

// DefaultBackends is used when the config lists none
func DefaultBackends() []BackendConfig {
	return []BackendConfig{
		{Name: "direct", Kind: string(models.BackendDirectGuess), Delay: 250 * time.Millisecond},
		{Name: "homepage", Kind: string(models.BackendHomepage), Delay: 500 * time.Millisecond},
		{Name: "bing", Kind: string(models.BackendWebSearch), Engine: "bing"},
		{Name: "duckduckgo", Kind: string(models.BackendWebSearch), Engine: "duckduckgo"},
		{Name: "google-cse", Kind: string(models.BackendImageAPI)},
		{Name: "logo-services", Kind: string(models.BackendLogoService)},
	}
}
