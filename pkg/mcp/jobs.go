package mcp

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sriram-PR/logo-scraper/pkg/models"
)

// JobStatus represents the current state of an acquisition job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsActive reports whether the job has not reached a terminal status
func (s JobStatus) IsActive() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

// Job represents a background logo acquisition for one brand
type Job struct {
	ID           string            `json:"id"`
	Slug         string            `json:"slug"`
	Status       JobStatus         `json:"status"`
	Force        bool              `json:"force"`
	StartedAt    time.Time         `json:"started_at"`
	CompletedAt  time.Time         `json:"completed_at,omitempty"`
	Result       *models.RunResult `json:"result,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`

	ctx    context.Context
	cancel context.CancelFunc
}

// JobManager tracks background acquisition jobs. At most one active job exists per slug.
type JobManager struct {
	jobs   map[string]*Job
	mu     sync.RWMutex
	bySlug map[string]string // slug -> jobID for active jobs
}

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:   make(map[string]*Job),
		bySlug: make(map[string]string),
	}
}

// CreateJob creates a job for a brand, or returns the active one if the brand is already in flight
func (m *JobManager) CreateJob(slug string, force bool) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingID, exists := m.bySlug[slug]; exists {
		if existing := m.jobs[existingID]; existing != nil && existing.Status.IsActive() {
			return existing, nil
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		ID:        uuid.New().String(),
		Slug:      slug,
		Status:    JobStatusPending,
		Force:     force,
		StartedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}

	m.jobs[job.ID] = job
	m.bySlug[slug] = job.ID

	return job, nil
}

// GetJob returns a snapshot of the job, or nil
func (m *JobManager) GetJob(jobID string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(m.jobs[jobID])
}

// GetJobBySlug returns a snapshot of the active job for a brand, or nil
func (m *JobManager) GetJobBySlug(slug string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if jobID, exists := m.bySlug[slug]; exists {
		return m.snapshot(m.jobs[jobID])
	}
	return nil
}

// IsRunning checks if a job is active for a brand
func (m *JobManager) IsRunning(slug string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if jobID, exists := m.bySlug[slug]; exists {
		job := m.jobs[jobID]
		return job != nil && job.Status.IsActive()
	}
	return false
}

// UpdateStatus moves a job to a new status. Terminal statuses free the slug for new jobs.
// A cancelled job keeps its status.
func (m *JobManager) UpdateStatus(jobID string, status JobStatus, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists || job.Status == JobStatusCancelled {
		return
	}
	job.Status = status
	if !status.IsActive() {
		job.CompletedAt = time.Now()
		m.release(job)
	}
	if errorMsg != "" {
		job.ErrorMessage = errorMsg
	}
}

// SetResult attaches the brand's run result to the job
func (m *JobManager) SetResult(jobID string, result models.RunResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, exists := m.jobs[jobID]; exists {
		job.Result = &result
	}
}

// CancelJob cancels an active job
func (m *JobManager) CancelJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists || !job.Status.IsActive() {
		return false
	}
	job.cancel()
	job.Status = JobStatusCancelled
	job.CompletedAt = time.Now()
	m.release(job)
	return true
}

// CancelAll cancels every active job
func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.jobs {
		if job.Status.IsActive() {
			job.cancel()
			job.Status = JobStatusCancelled
			job.CompletedAt = time.Now()
		}
	}
	m.bySlug = make(map[string]string)
}

// ListJobs returns snapshots of all jobs
func (m *JobManager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, m.snapshot(job))
	}
	return jobs
}

// GetContext returns the context a job runs under
func (m *JobManager) GetContext(jobID string) context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if job, exists := m.jobs[jobID]; exists {
		return job.ctx
	}
	return context.Background()
}

func (m *JobManager) release(job *Job) {
	if m.bySlug[job.Slug] == job.ID {
		delete(m.bySlug, job.Slug)
	}
}

// snapshot copies a job so callers can read it without holding the lock
func (m *JobManager) snapshot(job *Job) *Job {
	if job == nil {
		return nil
	}
	cp := *job
	return &cp
}
