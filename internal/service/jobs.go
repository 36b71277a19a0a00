package service

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/downoff/lucius-backend/internal/domain"
	"github.com/downoff/lucius-backend/internal/extract"
	"github.com/downoff/lucius-backend/internal/queue"
	"github.com/downoff/lucius-backend/internal/repository"
)

var (
	ErrInvalidJobID   = errors.New("malformed job identifier")
	ErrInvalidJobType = errors.New("unsupported job type")
)

// creationProgress signals immediate acceptance to clients polling right
// after upload, before any worker has touched the job.
const creationProgress = 5

// Analyzer is the single-shot analysis used by the optimistic upload-time
// path.
type Analyzer interface {
	Analyze(ctx context.Context, text string, companyContext map[string]string) (domain.AnalysisResult, error)
}

type JobsServiceConfig struct {
	Repo     repository.JobsRepository
	Notifier queue.Notifier
	Analyzer Analyzer
	// InlineAnalysis enables the optimistic immediate attempt. It is purely
	// an optimization: the polling worker is the guaranteed path.
	InlineAnalysis bool
	Logger         *zap.Logger
}

type JobsService struct {
	repo     repository.JobsRepository
	notifier queue.Notifier
	analyzer Analyzer
	inline   bool
	logger   *zap.Logger
}

func NewJobsService(cfg JobsServiceConfig) *JobsService {
	if cfg.Notifier == nil {
		cfg.Notifier = queue.NopNotifier{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &JobsService{
		repo:     cfg.Repo,
		notifier: cfg.Notifier,
		analyzer: cfg.Analyzer,
		inline:   cfg.InlineAnalysis,
		logger:   cfg.Logger,
	}
}

type CreateJobInput struct {
	Type           domain.JobType
	FilePath       string
	OriginalName   string
	CompanyContext map[string]string
}

// CreateAnalysisJob persists a pending job and returns immediately. When
// inline analysis is enabled it also fires the optimistic attempt in the
// background.
func (s *JobsService) CreateAnalysisJob(ctx context.Context, input CreateJobInput) (*domain.Job, error) {
	if input.Type == "" {
		input.Type = domain.JobTypePDFAnalysis
	}
	switch input.Type {
	case domain.JobTypePDFAnalysis, domain.JobTypeComplianceCheck:
	default:
		return nil, ErrInvalidJobType
	}

	now := time.Now().UTC()
	job := &domain.Job{
		ID:     uuid.NewString(),
		Type:   input.Type,
		Status: domain.JobStatusPending,
		Payload: domain.JobPayload{
			FilePath:       input.FilePath,
			OriginalName:   input.OriginalName,
			CompanyContext: input.CompanyContext,
		},
		Progress:  creationProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	if err := s.notifier.JobCreated(ctx, job.ID, job.Type); err != nil {
		s.logger.Warn("job created notification failed",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
	}

	if s.inline && s.analyzer != nil && job.Type == domain.JobTypePDFAnalysis {
		go s.AttemptImmediateAnalysis(context.WithoutCancel(ctx), job)
	}

	return job, nil
}

// AttemptImmediateAnalysis runs the optimistic upload-time analysis. It
// transitions the job only through CompleteIfPending, so a success races the
// worker safely and any failure leaves the job pending for guaranteed pickup.
func (s *JobsService) AttemptImmediateAnalysis(ctx context.Context, job *domain.Job) {
	data, err := os.ReadFile(job.Payload.FilePath)
	if err != nil {
		s.logger.Debug("inline analysis skipped, file unreadable",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
		return
	}

	extracted, err := extract.Text(data)
	if err != nil {
		s.logger.Debug("inline analysis skipped, extraction failed",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
		return
	}

	result, err := s.analyzer.Analyze(ctx, extracted.Text, job.Payload.CompanyContext)
	if err != nil {
		s.logger.Debug("inline analysis failed, leaving job for worker",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
		return
	}

	completed, err := s.repo.CompleteIfPending(ctx, job.ID, result)
	if err != nil {
		s.logger.Warn("inline analysis could not persist result",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
		return
	}
	if completed {
		s.logger.Info("job completed via inline analysis", zap.String("job_id", job.ID))
	}
}

// GetJob validates the identifier before touching storage so malformed ids
// are distinguishable from missing jobs.
func (s *JobsService) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, ErrInvalidJobID
	}
	return s.repo.GetJob(ctx, jobID)
}
