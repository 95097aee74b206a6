package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Sriram-PR/logo-scraper/pkg/catalog"
	"github.com/Sriram-PR/logo-scraper/pkg/models"
	"github.com/Sriram-PR/logo-scraper/pkg/orchestrate"
	"github.com/Sriram-PR/logo-scraper/pkg/report"
	"github.com/Sriram-PR/logo-scraper/pkg/utils"
)

// handleListBrands handles the list_brands tool
func (s *Server) handleListBrands(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var entries map[string]models.BrandDBEntry
	if s.cfg.Store != nil {
		var err error
		if entries, err = s.cfg.Store.ListBrandEntries(); err != nil {
			s.log.Warnf("Failed to list stored brand entries: %v", err)
		}
	}

	brands := make([]map[string]interface{}, 0, len(s.cfg.Brands))
	for _, b := range s.cfg.Brands {
		info := map[string]interface{}{
			"slug":         b.Slug,
			"display_name": b.DisplayName,
		}
		if b.Website != "" {
			info["website"] = b.Website
		}
		if len(b.NameVariants) > 0 {
			info["name_variants"] = b.NameVariants
		}

		status := models.BrandStatusNotFound
		if entry, ok := entries[b.Slug]; ok {
			status = entry.Status
			if entry.OutputPath != "" {
				info["output_path"] = entry.OutputPath
			}
			if entry.ErrorType != "" {
				info["failure_reason"] = entry.ErrorType
			}
			if !entry.LastAttempt.IsZero() {
				info["last_attempt"] = entry.LastAttempt.Format(time.RFC3339)
			}
		}
		info["status"] = status
		if s.jobManager.IsRunning(b.Slug) {
			info["status"] = "running"
		}
		brands = append(brands, info)
	}

	result := map[string]interface{}{
		"brands": brands,
		"count":  len(brands),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleAcquireLogo handles the acquire_logo tool
func (s *Server) handleAcquireLogo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	brand, err := s.brandFromRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	force := request.GetBool("force", false)

	if existing := s.jobManager.GetJobBySlug(brand.Slug); existing != nil && existing.Status.IsActive() {
		result := map[string]interface{}{
			"status":  "already_running",
			"message": fmt.Sprintf("An acquisition is already running for '%s'", brand.Slug),
			"job_id":  existing.ID,
			"slug":    brand.Slug,
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	job, err := s.jobManager.CreateJob(brand.Slug, force)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create job: %v", err)), nil
	}

	go s.runAcquireJob(job, brand)

	result := map[string]interface{}{
		"status":  "started",
		"message": "Acquisition started",
		"job_id":  job.ID,
		"slug":    brand.Slug,
		"force":   force,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// brandFromRequest resolves a catalog brand by slug, or builds and validates an ad hoc one
func (s *Server) brandFromRequest(request mcp.CallToolRequest) (models.BrandRecord, error) {
	slug := strings.TrimSpace(request.GetString("slug", ""))
	displayName := strings.TrimSpace(request.GetString("display_name", ""))

	if displayName == "" {
		if slug == "" {
			return models.BrandRecord{}, errors.New("slug or display_name parameter is required")
		}
		brand, ok := catalog.Find(s.cfg.Brands, slug)
		if !ok {
			return models.BrandRecord{}, fmt.Errorf("brand '%s' not found in catalog; pass display_name to acquire an ad hoc brand", slug)
		}
		return brand, nil
	}

	if slug == "" {
		slug = utils.HyphenatedName(displayName)
	}
	brand := models.BrandRecord{
		Slug:        slug,
		DisplayName: displayName,
		Website:     request.GetString("website", ""),
	}
	if variants := request.GetString("name_variants", ""); variants != "" {
		brand.NameVariants = strings.Split(variants, ",")
	}

	normalized, err := catalog.Normalize([]models.BrandRecord{brand})
	if err != nil {
		return models.BrandRecord{}, err
	}
	return normalized[0], nil
}

// runAcquireJob runs one brand through the orchestrator so the state database and
// hash ownership are updated exactly as in a batch run
func (s *Server) runAcquireJob(job *Job, brand models.BrandRecord) {
	s.jobManager.UpdateStatus(job.ID, JobStatusRunning, "")
	jobCtx := s.jobManager.GetContext(job.ID)

	orch := orchestrate.NewOrchestrator(s.cfg.Runner, s.cfg.Store, orchestrate.Options{
		Workers: 1,
		Force:   job.Force,
		Preset:  s.cfg.AppConfig.Preset,
	}, s.log.WithField("job_id", job.ID))

	rep, err := orch.Run(jobCtx, []models.BrandRecord{brand})
	if res, ok := rep.Results[brand.Slug]; ok {
		s.jobManager.SetResult(job.ID, res)
	}

	switch {
	case err != nil:
		s.jobManager.UpdateStatus(job.ID, JobStatusFailed, err.Error())
	case rep.Cancelled:
		s.jobManager.UpdateStatus(job.ID, JobStatusCancelled, "")
	case len(rep.Skipped) > 0:
		s.jobManager.UpdateStatus(job.ID, JobStatusCompleted, "")
	default:
		res := rep.Results[brand.Slug]
		if res.Status == models.RunStatusSuccess {
			s.jobManager.UpdateStatus(job.ID, JobStatusCompleted, "")
		} else {
			s.jobManager.UpdateStatus(job.ID, JobStatusFailed, res.FailureReason)
		}
	}
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job := s.jobManager.GetJob(jobID)
	if job == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := map[string]interface{}{
		"job_id":     job.ID,
		"slug":       job.Slug,
		"status":     job.Status,
		"force":      job.Force,
		"started_at": job.StartedAt.Format(time.RFC3339),
	}

	if !job.CompletedAt.IsZero() {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}
	if job.Result != nil {
		result["result"] = job.Result
	} else if job.Status == JobStatusCompleted {
		result["skipped"] = true
	}

	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleCancelJob handles the cancel_job tool
func (s *Server) handleCancelJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}
	if s.jobManager.GetJob(jobID) == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := map[string]interface{}{
		"job_id":    jobID,
		"cancelled": s.jobManager.CancelJob(jobID),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetRunReport handles the get_run_report tool
func (s *Server) handleGetRunReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := request.GetString("report_path", s.cfg.AppConfig.ReportPath)
	if path == "" {
		return mcp.NewToolResultError("report_path parameter is required when no report_path is configured"), nil
	}

	rep, err := report.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return mcp.NewToolResultError(fmt.Sprintf("no run report at %s", path)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to read report: %v", err)), nil
	}

	if slug := request.GetString("slug", ""); slug != "" {
		res, ok := rep.Results[slug]
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("brand '%s' not in report %s", slug, rep.RunID)), nil
		}
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"run_id": rep.RunID,
			"result": res,
		})), nil
	}

	data, err := report.Marshal(rep, report.FormatJSON)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode report: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// formatJSON formats data as an indented JSON string
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
