package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/logo-scraper/pkg/acquire"
	"github.com/Sriram-PR/logo-scraper/pkg/catalog"
	"github.com/Sriram-PR/logo-scraper/pkg/config"
	"github.com/Sriram-PR/logo-scraper/pkg/dedup"
	"github.com/Sriram-PR/logo-scraper/pkg/fetch"
	"github.com/Sriram-PR/logo-scraper/pkg/models"
	"github.com/Sriram-PR/logo-scraper/pkg/orchestrate"
	"github.com/Sriram-PR/logo-scraper/pkg/persist"
	"github.com/Sriram-PR/logo-scraper/pkg/report"
	"github.com/Sriram-PR/logo-scraper/pkg/source"
	"github.com/Sriram-PR/logo-scraper/pkg/storage"
	"github.com/Sriram-PR/logo-scraper/pkg/verify"
)

const version = "0.4.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "acquire":
		runAcquire(os.Args[2:], false)
	case "resume":
		runAcquire(os.Args[2:], true)
	case "validate":
		runValidate(os.Args[2:])
	case "list-brands":
		runListBrands(os.Args[2:])
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "version":
		fmt.Printf("logo-scraper %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `logo-scraper - Brand logo acquisition pipeline

Usage:
  logo-scraper <command> [options]

Commands:
  acquire      Acquire logos for every selected brand
  resume       Continue a previous run, skipping brands already acquired
  validate     Validate configuration and catalog files
  list-brands  List catalog brands with their stored status
  mcp-server   Start MCP server for AI tool integration
  version      Show version info

Run 'logo-scraper <command> -h' for command-specific help.`)
}

// loadEnv reads KEY=value pairs from path into the process environment.
// A missing file is not an error; variables already set are kept.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// loadConfig loads and parses the config file
func loadConfig(path string) (*config.AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg config.AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// loadValidConfig loads the config and applies defaults, logging warnings
func loadValidConfig(path string, log *logrus.Logger) (*config.AppConfig, error) {
	appCfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, err
	}
	return appCfg, nil
}

// loadBrands reads the catalog (flag overrides config) and keeps only the requested slugs
func loadBrands(appCfg *config.AppConfig, catalogFlag, slugsFlag string) ([]models.BrandRecord, error) {
	path := catalogFlag
	if path == "" {
		path = appCfg.CatalogPath
	}
	if path == "" {
		return nil, errors.New("no catalog: set catalog_path in config or pass -catalog")
	}
	brands, err := catalog.Load(path)
	if err != nil {
		return nil, err
	}
	return catalog.Filter(brands, splitList(slugsFlag))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// newLogger builds the process logger; an invalid level falls back to info
func newLogger(levelStr string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", levelStr, err)
	} else {
		log.SetLevel(level)
	}
	return log
}

// pipeline holds the long-lived components shared by every brand
type pipeline struct {
	store    *storage.BadgerStore
	acquirer *acquire.Acquirer
	backends []source.Backend
	closers  []func() error
}

func (p *pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		_ = p.closers[i]()
	}
}

// buildPipeline wires state, fetching, discovery, dedup, verification and persistence
func buildPipeline(ctx context.Context, appCfg *config.AppConfig, resetState bool, log *logrus.Logger) (*pipeline, error) {
	entry := log.WithField("component", "pipeline")
	p := &pipeline{}

	store, err := storage.NewBadgerStore(appCfg.StateDir, resetState, log.WithField("component", "storage"))
	if err != nil {
		return nil, err
	}
	p.store = store
	p.closers = append(p.closers, store.Close)
	go store.RunGC(ctx, appCfg.DBGCInterval)

	fetchLog := log.WithField("component", "fetch")
	httpClient := fetch.NewClient(appCfg.HTTPClientSettings, fetchLog)
	fetcher := fetch.NewFetcher(httpClient, appCfg, fetchLog)
	hosts := fetch.NewHostSemaphorePool(appCfg.MaxRequestsPerHost, appCfg.SemaphoreAcquireTimeout, fetchLog)
	go hosts.RunEviction(ctx, 5*time.Minute)
	limiter := fetch.NewRateLimiter(appCfg.DefaultDelayPerHost, fetch.RealClock())
	images := fetch.NewImageFetcher(fetcher, hosts, limiter, fetch.ImageFetcherOptions{
		UserAgent: appCfg.DefaultUserAgent,
		MinBytes:  appCfg.Pipeline.MinImageBytes,
		MaxBytes:  appCfg.Pipeline.MaxImageBytes,
		Timeout:   appCfg.Pipeline.FetchTimeout,
		HostDelay: appCfg.DefaultDelayPerHost,
	}, fetchLog)
	robots := fetch.NewRobotsChecker(fetcher, appCfg.DefaultUserAgent, fetchLog)

	p.backends = source.Build(ctx, appCfg, source.Deps{
		Fetcher: fetcher,
		Prober:  images,
		Robots:  robots,
		Clock:   fetch.RealClock(),
		Getenv:  os.Getenv,
	}, log.WithField("component", "source"))
	if len(p.backends) == 0 {
		p.Close()
		return nil, errors.New("no usable source backends (check enabled backends and API credentials)")
	}
	entry.Infof("Source backends in priority order: %v", source.Names(p.backends))

	index := dedup.NewIndex(appCfg.Pipeline.PerceptualDistance, log.WithField("component", "dedup"))
	seeded, err := dedup.Seed(index, appCfg.OutputDir, store)
	if err != nil {
		p.Close()
		return nil, err
	}
	entry.Infof("Dedup index seeded with %d hashes", seeded)

	var verifier *verify.Verifier
	if appCfg.Vision.Enabled {
		detector, err := verify.NewVisionDetector(ctx)
		if err != nil {
			entry.Warnf("Vision verification disabled: %v", err)
		} else {
			p.closers = append(p.closers, detector.Close)
			verifier = verify.NewVerifier(detector, appCfg.Vision, fetch.RealClock(), log.WithField("component", "verify"))
		}
	}

	p.acquirer = acquire.New(appCfg.Pipeline, acquire.Deps{
		Backends: p.backends,
		Images:   images,
		Index:    index,
		Saver:    persist.NewPersister(appCfg.OutputDir, appCfg.Pipeline.OutputMaxDimension, log.WithField("component", "persist")),
		Verifier: verifier,
	}, log.WithField("component", "acquire"))

	return p, nil
}

// acquireOptions are the parsed flags of acquire and resume
type acquireOptions struct {
	configPath  string
	catalogPath string
	brands      string
	envFile     string
	logLevel    string
	workers     int
	force       bool
	resetState  bool
	resume      bool
}

// runAcquire handles both acquire and resume subcommands
func runAcquire(args []string, isResume bool) {
	cmdName := "acquire"
	if isResume {
		cmdName = "resume"
	}

	fs := flag.NewFlagSet(cmdName, flag.ExitOnError)
	opts := acquireOptions{resume: isResume}
	fs.StringVar(&opts.configPath, "config", "config.yaml", "Path to config file")
	fs.StringVar(&opts.catalogPath, "catalog", "", "Brand catalog file, JSON or YAML (overrides catalog_path)")
	fs.StringVar(&opts.brands, "brands", "", "Comma-separated slugs to process (default: whole catalog)")
	fs.StringVar(&opts.envFile, "env", ".env", "Env file with API credentials")
	fs.StringVar(&opts.logLevel, "loglevel", "info", "Log level (debug, info, warn, error, fatal)")
	fs.IntVar(&opts.workers, "workers", 0, "Concurrent brands (overrides concurrent_workers)")
	fs.BoolVar(&opts.force, "force", false, "Re-acquire brands that already have a stored logo")
	fs.BoolVar(&opts.resetState, "reset-state", false, "Wipe the state database before starting")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: logo-scraper %s [options]\n\nOptions:\n", cmdName)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  logo-scraper %s -catalog brands.json\n", cmdName)
		fmt.Fprintf(os.Stderr, "  logo-scraper %s -brands acme,globex -loglevel debug\n", cmdName)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doAcquire(opts, os.Stderr))
}

// doAcquire runs the pipeline and writes the report. Returns the exit code.
func doAcquire(opts acquireOptions, logOut io.Writer) int {
	log := newLogger(opts.logLevel, logOut)

	if err := loadEnv(opts.envFile); err != nil {
		log.Warn(err)
	}

	log.Infof("Loading configuration from %s", opts.configPath)
	appCfg, err := loadValidConfig(opts.configPath, log)
	if err != nil {
		log.Errorf("Config error: %v", err)
		return 1
	}
	if opts.workers > 0 {
		appCfg.Pipeline.ConcurrentWorkers = opts.workers
	}
	logAppConfig(appCfg, log)

	brands, err := loadBrands(appCfg, opts.catalogPath, opts.brands)
	if err != nil {
		log.Errorf("Catalog error: %v", err)
		return 1
	}
	if len(brands) == 0 {
		log.Error(orchestrate.ErrNoBrands)
		return 1
	}

	// ===========================================================
	// == Setup Global Context & Signal Handling ==
	// ===========================================================
	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	stopWatching := watchSignals(sigChan, cancelRun, shutdownGrace, os.Exit, log)
	defer stopWatching()
	if appCfg.GlobalRunTimeout > 0 {
		log.Infof("Setting global run timeout: %v", appCfg.GlobalRunTimeout)
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, appCfg.GlobalRunTimeout)
		defer cancel()
	}

	// Background loops outlive the run context so in-flight brands can finish persisting
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	p, err := buildPipeline(bgCtx, appCfg, opts.resetState, log)
	if err != nil {
		log.Errorf("Failed to initialize pipeline: %v", err)
		return 1
	}
	defer p.Close()

	// A fresh acquire ignores stored successes; resume skips them unless forced
	force := opts.force || !opts.resume
	orch := orchestrate.NewOrchestrator(p.acquirer, p.store, orchestrate.Options{
		Workers: appCfg.Pipeline.ConcurrentWorkers,
		Force:   force,
		Preset:  appCfg.Preset,
	}, log.WithField("component", "orchestrate"))

	rep, runErr := orch.Run(runCtx, brands)
	if runErr != nil {
		log.Errorf("Run stopped by fatal error: %v", runErr)
	}
	if rep.Cancelled && runErr == nil {
		log.Warnf("Run cancelled: %v", context.Cause(runCtx))
	}

	if err := report.Write(appCfg.ReportPath, rep); err != nil {
		log.Errorf("Failed to write run report: %v", err)
		return 1
	}
	log.Infof("Run report written to %s", appCfg.ReportPath)

	if appCfg.SummaryPath != "" {
		if err := report.WriteSummary(appCfg.SummaryPath, rep); err != nil {
			log.Errorf("Failed to write summary: %v", err)
		} else {
			log.Infof("Summary written to %s", appCfg.SummaryPath)
		}
	}

	return exitCode(rep, runErr)
}

// exitCode is 0 when every attempted brand succeeded or the run was cancelled
// gracefully, 1 on any brand failure or fatal error
func exitCode(rep *models.RunReport, runErr error) int {
	switch {
	case runErr != nil:
		return 1
	case rep.Cancelled:
		return 0
	case rep.Failed > 0:
		return 1
	default:
		return 0
	}
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	catalogFile := fs.String("catalog", "", "Brand catalog to validate (defaults to catalog_path)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: logo-scraper validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doValidate(*configFile, *catalogFile, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath, catalogPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "OK: config (preset '%s', %d enabled backends)\n", appCfg.Preset, len(appCfg.EnabledBackends()))

	if catalogPath == "" {
		catalogPath = appCfg.CatalogPath
	}
	if catalogPath != "" {
		brands, err := catalog.Load(catalogPath)
		if err != nil {
			fmt.Fprintf(stderr, "ERROR: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "OK: catalog '%s' (%d brands)\n", catalogPath, len(brands))
	}

	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

// runListBrands handles the list-brands subcommand
func runListBrands(args []string) {
	fs := flag.NewFlagSet("list-brands", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	catalogFile := fs.String("catalog", "", "Brand catalog file (defaults to catalog_path)")
	withStatus := fs.Bool("status", false, "Include the stored status from the state database")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: logo-scraper list-brands [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doListBrands(*configFile, *catalogFile, *withStatus, os.Stdout, os.Stderr))
}

// doListBrands prints one line per catalog brand in catalog order
func doListBrands(configPath, catalogPath string, withStatus bool, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if _, err := appCfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	brands, err := loadBrands(appCfg, catalogPath, "")
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	var entries map[string]models.BrandDBEntry
	if withStatus {
		store, err := storage.NewBadgerStore(appCfg.StateDir, false, newLogger("error", stderr).WithField("component", "storage"))
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		entries, err = store.ListBrandEntries()
		store.Close()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	fmt.Fprintln(stdout, "Catalog brands:")
	for _, b := range brands {
		line := fmt.Sprintf("  %-24s %s", b.Slug, b.DisplayName)
		if b.Website != "" {
			line += " <" + b.Website + ">"
		}
		if withStatus {
			status := models.BrandStatusNotFound
			if e, ok := entries[b.Slug]; ok {
				status = e.Status
			}
			line += fmt.Sprintf(" [%s]", status)
		}
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintf(stdout, "\n%d brands\n", len(brands))
	return 0
}

// logAppConfig logs the effective global configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Logger) {
	p := appCfg.Pipeline
	log.Infof("Pipeline: Preset:%s, Workers:%d, MaxQueries:%d, MaxURLsPerQuery:%d, Floor:%.0f, Ceiling:%.0f",
		appCfg.Preset, p.ConcurrentWorkers, p.MaxQueriesPerBrand, p.MaxURLsPerQuery, p.AcceptScoreFloor, p.ConfidenceScoreCeiling)
	log.Infof("Pipeline Bounds: Bytes:[%d, %d], Dimension:[%d, %d], Strictness:%s, OutputMax:%d",
		p.MinImageBytes, p.MaxImageBytes, p.MinDimension, p.MaxDimension, p.LogoStrictness, p.OutputMaxDimension)
	log.Infof("Global Config: OutputDir:%s, StateDir:%s, Report:%s, BackendDelay:%v, HostDelay:%v, MaxReqPerHost:%d",
		appCfg.OutputDir, appCfg.StateDir, appCfg.ReportPath, appCfg.DefaultBackendDelay, appCfg.DefaultDelayPerHost, appCfg.MaxRequestsPerHost)
	log.Infof("Global Config Retries: Max:%d, InitialDelay:%v, MaxDelay:%v, RunTimeout:%v",
		appCfg.MaxRetries, appCfg.InitialRetryDelay, appCfg.MaxRetryDelay, appCfg.GlobalRunTimeout)
	log.Infof("Vision verification: Enabled:%t, MinConfidence:%.2f, Bonus:%.0f",
		appCfg.Vision.Enabled, appCfg.Vision.MinConfidence, appCfg.Vision.Bonus)
}
