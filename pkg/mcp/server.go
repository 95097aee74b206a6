package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/logo-scraper/pkg/config"
	"github.com/Sriram-PR/logo-scraper/pkg/models"
	"github.com/Sriram-PR/logo-scraper/pkg/orchestrate"
)

const (
	serverName    = "logo-scraper"
	serverVersion = "0.4.0"
)

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	AppConfig  *config.AppConfig
	ConfigPath string
	Transport  string // "stdio" or "sse"
	Port       int
	Logger     *logrus.Logger

	Brands []models.BrandRecord    // Loaded catalog, may be empty
	Runner orchestrate.BrandRunner // Acquires one brand
	Store  orchestrate.Store       // May be nil, which disables stored status and resume
}

// Server exposes the acquisition pipeline as MCP tools
type Server struct {
	mcpServer  *server.MCPServer
	cfg        *ServerConfig
	log        *logrus.Entry
	jobManager *JobManager
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.AppConfig == nil {
		return nil, fmt.Errorf("AppConfig is required")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("Runner is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer:  mcpServer,
		cfg:        cfg,
		log:        cfg.Logger.WithField("component", "mcp"),
		jobManager: NewJobManager(),
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	listBrandsTool := mcp.NewTool("list_brands",
		mcp.WithDescription("List catalog brands with their last stored acquisition status"),
	)
	s.mcpServer.AddTool(listBrandsTool, s.handleListBrands)

	acquireTool := mcp.NewTool("acquire_logo",
		mcp.WithDescription("Start a background logo acquisition for one brand. Returns immediately with a job ID."),
		mcp.WithString("slug",
			mcp.Description("Catalog slug, or the file name stem for an ad hoc brand"),
		),
		mcp.WithString("display_name",
			mcp.Description("Brand name for a brand not in the catalog"),
		),
		mcp.WithString("website",
			mcp.Description("Brand homepage for an ad hoc brand (optional)"),
		),
		mcp.WithString("name_variants",
			mcp.Description("Comma-separated alternate names for an ad hoc brand (optional)"),
		),
		mcp.WithBoolean("force",
			mcp.Description("Re-acquire even if a logo was already stored"),
		),
	)
	s.mcpServer.AddTool(acquireTool, s.handleAcquireLogo)

	getJobStatusTool := mcp.NewTool("get_job_status",
		mcp.WithDescription("Get the status of an acquisition job, including its result once finished"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by acquire_logo"),
		),
	)
	s.mcpServer.AddTool(getJobStatusTool, s.handleGetJobStatus)

	cancelJobTool := mcp.NewTool("cancel_job",
		mcp.WithDescription("Cancel a pending or running acquisition job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by acquire_logo"),
		),
	)
	s.mcpServer.AddTool(cancelJobTool, s.handleCancelJob)

	reportTool := mcp.NewTool("get_run_report",
		mcp.WithDescription("Read a run report written by the acquire command"),
		mcp.WithString("report_path",
			mcp.Description("Report file (defaults to report_path from config)"),
		),
		mcp.WithString("slug",
			mcp.Description("Return only this brand's result (optional)"),
		),
	)
	s.mcpServer.AddTool(reportTool, s.handleGetRunReport)

	s.log.Infof("Registered %d MCP tools", 5)
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown cancels running jobs
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()
	return nil
}
