package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sriram-PR/logo-scraper/pkg/mcp"
)

// runMcpServer handles the mcp-server subcommand
func runMcpServer(args []string) {
	fs := flag.NewFlagSet("mcp-server", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")
	catalogFile := fs.String("catalog", "", "Brand catalog file (defaults to catalog_path)")
	envFile := fs.String("env", ".env", "Env file with API credentials")
	transport := fs.String("transport", "stdio", "Transport type (stdio, sse)")
	port := fs.Int("port", 8080, "HTTP port (for sse transport)")
	logLevel := fs.String("loglevel", "info", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: logo-scraper mcp-server [options]

Start an MCP (Model Context Protocol) server for AI tool integration.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Start with stdio transport
  logo-scraper mcp-server -config config.yaml

  # Start with SSE transport on port 8080
  logo-scraper mcp-server -config config.yaml -transport sse -port 8080

Available MCP Tools:
  list_brands     List catalog brands with stored status
  acquire_logo    Start a background acquisition for one brand
  get_job_status  Check an acquisition job
  cancel_job      Cancel an acquisition job
  get_run_report  Read the last run report
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	os.Exit(doMcpServer(*configFile, *catalogFile, *envFile, *transport, *port, *logLevel, os.Stderr))
}

// doMcpServer is the testable implementation of the MCP server
func doMcpServer(configPath, catalogPath, envFile, transport string, port int, logLevel string, stderr io.Writer) int {
	if transport != "stdio" && transport != "sse" {
		fmt.Fprintf(stderr, "Unknown transport: %s (supported: stdio, sse)\n", transport)
		return 1
	}

	// MCP protocol uses stdout, logs go to stderr
	log := newLogger(logLevel, stderr)

	if err := loadEnv(envFile); err != nil {
		log.Warn(err)
	}

	appCfg, err := loadValidConfig(configPath, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}

	// A server without a catalog still serves ad hoc brands
	brands, err := loadBrands(appCfg, catalogPath, "")
	if err != nil {
		log.Warnf("No catalog loaded: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, appCfg, false, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error initializing pipeline: %v\n", err)
		return 1
	}
	defer p.Close()

	server, err := mcp.NewServer(&mcp.ServerConfig{
		AppConfig:  appCfg,
		ConfigPath: configPath,
		Transport:  transport,
		Port:       port,
		Logger:     log,
		Brands:     brands,
		Runner:     p.acquirer,
		Store:      p.store,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Error creating MCP server: %v\n", err)
		return 1
	}
	defer server.Shutdown(context.Background())

	log.Infof("Starting MCP server (transport: %s, %d brands)", transport, len(brands))

	if err := server.Run(); err != nil {
		fmt.Fprintf(stderr, "MCP server error: %v\n", err)
		return 1
	}

	return 0
}
