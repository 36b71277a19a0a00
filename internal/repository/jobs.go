package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/downoff/lucius-backend/internal/domain"
)

var (
	ErrNotFound = errors.New("resource not found")
	// ErrUnavailable marks failures of the backing store itself, so callers
	// can answer "service unavailable" instead of "not found".
	ErrUnavailable = errors.New("storage unavailable")
)

// JobsRepository abstracts job persistence. It is the single coordination
// point of the pipeline: every status transition goes through it.
type JobsRepository interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)

	// ClaimNextPending atomically selects the oldest pending job and moves
	// it to processing, setting StartedAt and the claim progress. Returns
	// (nil, nil) when no pending job exists.
	ClaimNextPending(ctx context.Context) (*domain.Job, error)

	// UpdateProgress never lowers recorded progress.
	UpdateProgress(ctx context.Context, jobID string, progress int) error

	MarkCompleted(ctx context.Context, jobID string, analysis domain.AnalysisResult) error
	MarkFailed(ctx context.Context, jobID string, message string) error

	// CompleteIfPending finalizes a job only if it has not been claimed yet.
	// It backs the optimistic upload-time path: success transitions the job,
	// anything else leaves it for the polling worker.
	CompleteIfPending(ctx context.Context, jobID string, analysis domain.AnalysisResult) (bool, error)

	// ReclaimStale re-queues jobs stuck in processing longer than olderThan.
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// claimProgress is reported the moment a worker takes ownership; creation
// seeds a lower value so clients see immediate acceptance.
const claimProgress = 12

// MemoryJobsRepository keeps jobs in memory for local development and tests.
type MemoryJobsRepository struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job
	seq  map[string]int
	next int
}

func NewMemoryJobsRepository() *MemoryJobsRepository {
	return &MemoryJobsRepository{
		jobs: make(map[string]*domain.Job),
		seq:  make(map[string]int),
	}
}

func (r *MemoryJobsRepository) CreateJob(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[job.ID] = cloneJob(job)
	r.seq[job.ID] = r.next
	r.next++
	return nil
}

func (r *MemoryJobsRepository) GetJob(_ context.Context, jobID string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(job), nil
}

func (r *MemoryJobsRepository) ClaimNextPending(_ context.Context) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var oldest *domain.Job
	for _, job := range r.jobs {
		if job.Status != domain.JobStatusPending {
			continue
		}
		if oldest == nil || r.before(job, oldest) {
			oldest = job
		}
	}
	if oldest == nil {
		return nil, nil
	}

	now := time.Now().UTC()
	oldest.Status = domain.JobStatusProcessing
	oldest.StartedAt = &now
	oldest.Progress = maxInt(oldest.Progress, claimProgress)
	oldest.UpdatedAt = now
	return cloneJob(oldest), nil
}

// before orders pending jobs FIFO, falling back to insertion order for
// identical creation times.
func (r *MemoryJobsRepository) before(a, b *domain.Job) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return r.seq[a.ID] < r.seq[b.ID]
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func (r *MemoryJobsRepository) UpdateProgress(_ context.Context, jobID string, progress int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	job.Progress = maxInt(job.Progress, progress)
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryJobsRepository) MarkCompleted(_ context.Context, jobID string, analysis domain.AnalysisResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	job.Status = domain.JobStatusCompleted
	job.Progress = 100
	job.Result = &domain.JobResult{Analysis: &analysis}
	job.CompletedAt = &now
	job.UpdatedAt = now
	return nil
}

func (r *MemoryJobsRepository) MarkFailed(_ context.Context, jobID string, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	job.Status = domain.JobStatusFailed
	job.Result = &domain.JobResult{Error: message}
	job.CompletedAt = &now
	job.UpdatedAt = now
	return nil
}

func (r *MemoryJobsRepository) CompleteIfPending(_ context.Context, jobID string, analysis domain.AnalysisResult) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return false, ErrNotFound
	}
	if job.Status != domain.JobStatusPending {
		return false, nil
	}
	now := time.Now().UTC()
	job.Status = domain.JobStatusCompleted
	job.Progress = 100
	job.Result = &domain.JobResult{Analysis: &analysis}
	job.CompletedAt = &now
	job.UpdatedAt = now
	return true, nil
}

func (r *MemoryJobsRepository) ReclaimStale(_ context.Context, olderThan time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	reclaimed := 0
	for _, job := range r.jobs {
		if job.Status != domain.JobStatusProcessing {
			continue
		}
		if job.StartedAt == nil || job.StartedAt.After(cutoff) {
			continue
		}
		job.Status = domain.JobStatusPending
		job.StartedAt = nil
		job.UpdatedAt = time.Now().UTC()
		reclaimed++
	}
	return reclaimed, nil
}

func cloneJob(job *domain.Job) *domain.Job {
	if job == nil {
		return nil
	}
	clone := *job
	if job.Result != nil {
		result := *job.Result
		if job.Result.Analysis != nil {
			analysis := *job.Result.Analysis
			result.Analysis = &analysis
		}
		clone.Result = &result
	}
	if job.StartedAt != nil {
		startedAt := *job.StartedAt
		clone.StartedAt = &startedAt
	}
	if job.CompletedAt != nil {
		completedAt := *job.CompletedAt
		clone.CompletedAt = &completedAt
	}
	return &clone
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
