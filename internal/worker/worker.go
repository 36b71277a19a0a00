// Package worker drives pending analysis jobs through the staged engine.
// A single polling worker per process claims one job at a time; the
// repository's atomic claim is the only cross-process ownership mechanism.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/downoff/lucius-backend/internal/analysis"
	"github.com/downoff/lucius-backend/internal/domain"
	"github.com/downoff/lucius-backend/internal/extract"
	"github.com/downoff/lucius-backend/internal/repository"
)

// TextExtractor converts uploaded file bytes into plain text.
type TextExtractor interface {
	Text(data []byte) (extract.Result, error)
}

// PDFExtractor adapts the extract package to TextExtractor.
type PDFExtractor struct{}

func (PDFExtractor) Text(data []byte) (extract.Result, error) {
	return extract.Text(data)
}

// Engine is the staged analysis capability consumed by the worker. Each
// stage is independently invocable so progress can be reported between them.
type Engine interface {
	Compliance(ctx context.Context, text string) ([]domain.ComplianceItem, error)
	Risk(ctx context.Context, text string) (analysis.RiskAssessment, error)
	Proposal(ctx context.Context, text string) (string, error)
}

type Config struct {
	Repo       repository.JobsRepository
	Engine     Engine
	Extractor  TextExtractor
	Interval   time.Duration
	StaleAfter time.Duration
	// Wake lets a queue notifier trigger a tick before the next poll.
	Wake   <-chan struct{}
	Logger *zap.Logger
}

type Worker struct {
	repo       repository.JobsRepository
	engine     Engine
	extractor  TextExtractor
	interval   time.Duration
	staleAfter time.Duration
	wake       <-chan struct{}
	logger     *zap.Logger

	// busy prevents overlapping ticks within this process. The DB claim
	// already guards cross-process races; this guards slow-I/O pileups.
	busy atomic.Bool
}

func New(cfg Config) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Extractor == nil {
		cfg.Extractor = PDFExtractor{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Worker{
		repo:       cfg.Repo,
		engine:     cfg.Engine,
		extractor:  cfg.Extractor,
		interval:   cfg.Interval,
		staleAfter: cfg.StaleAfter,
		wake:       cfg.Wake,
		logger:     cfg.Logger,
	}
}

// Start polls until the context is cancelled. A job failure never stops the
// loop; the next tick claims the next pending job.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("queue worker started", zap.Duration("poll_interval", w.interval))

	// Drain anything already pending before the first tick fires.
	w.Tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("queue worker stopped")
			return
		case <-ticker.C:
			w.Tick(ctx)
		case <-w.wake:
			w.Tick(ctx)
		}
	}
}

// Tick claims and fully processes at most one job. It reports whether a job
// was processed so tests can step the worker deterministically.
func (w *Worker) Tick(ctx context.Context) bool {
	if !w.busy.CompareAndSwap(false, true) {
		return false
	}
	defer w.busy.Store(false)

	if w.staleAfter > 0 {
		reclaimed, err := w.repo.ReclaimStale(ctx, w.staleAfter)
		if err != nil {
			w.logger.Warn("stale job reclaim failed", zap.Error(err))
		} else if reclaimed > 0 {
			w.logger.Info("re-queued stale processing jobs", zap.Int("count", reclaimed))
		}
	}

	job, err := w.repo.ClaimNextPending(ctx)
	if err != nil {
		w.logger.Warn("job claim failed", zap.Error(err))
		return false
	}
	if job == nil {
		return false
	}

	w.logger.Info("processing job",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
	)
	w.process(ctx, job)
	return true
}

func (w *Worker) process(ctx context.Context, job *domain.Job) {
	var (
		result domain.AnalysisResult
		err    error
	)

	switch job.Type {
	case domain.JobTypePDFAnalysis:
		result, err = w.runPDFAnalysis(ctx, job)
	case domain.JobTypeComplianceCheck:
		result, err = w.runComplianceCheck(ctx, job)
	default:
		err = fmt.Errorf("unsupported job type: %s", job.Type)
	}

	if err != nil {
		w.fail(ctx, job.ID, err)
		return
	}

	if markErr := w.repo.MarkCompleted(ctx, job.ID, result); markErr != nil {
		w.logger.Error("failed to persist completed job",
			zap.String("job_id", job.ID),
			zap.Error(markErr),
		)
		return
	}
	w.logger.Info("job completed", zap.String("job_id", job.ID))
}

// runPDFAnalysis is the full pipeline: read file, extract text, then the
// three analysis stages with a progress checkpoint after each. Any stage
// error aborts the rest; partial stage output is discarded on failure.
func (w *Worker) runPDFAnalysis(ctx context.Context, job *domain.Job) (domain.AnalysisResult, error) {
	w.progress(ctx, job.ID, 15)

	data, err := os.ReadFile(job.Payload.FilePath)
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("file not found on server: %s", job.Payload.FilePath)
	}
	w.progress(ctx, job.ID, 25)

	extracted, err := w.extractText(data)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	w.progress(ctx, job.ID, 35)

	compliance, err := w.engine.Compliance(ctx, extracted.Text)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	w.progress(ctx, job.ID, 50)

	risk, err := w.engine.Risk(ctx, extracted.Text)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	w.progress(ctx, job.ID, 60)

	proposal, err := w.engine.Proposal(ctx, extracted.Text)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	w.progress(ctx, job.ID, 70)

	w.progress(ctx, job.ID, 85)
	return domain.AnalysisResult{
		ComplianceMatrix: compliance,
		RiskScore:        risk.Score,
		RiskRationale:    risk.Rationale,
		ProposalDraft:    proposal,
	}, nil
}

// runComplianceCheck extracts text and builds the compliance matrix only.
func (w *Worker) runComplianceCheck(ctx context.Context, job *domain.Job) (domain.AnalysisResult, error) {
	w.progress(ctx, job.ID, 15)

	data, err := os.ReadFile(job.Payload.FilePath)
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("file not found on server: %s", job.Payload.FilePath)
	}
	w.progress(ctx, job.ID, 25)

	extracted, err := w.extractText(data)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	w.progress(ctx, job.ID, 50)

	compliance, err := w.engine.Compliance(ctx, extracted.Text)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	w.progress(ctx, job.ID, 85)

	return domain.AnalysisResult{ComplianceMatrix: compliance}, nil
}

func (w *Worker) extractText(data []byte) (extract.Result, error) {
	extracted, err := w.extractor.Text(data)
	if err != nil {
		if errors.Is(err, extract.ErrEmptyDocument) {
			return extract.Result{}, fmt.Errorf("PDF appears empty or unreadable: %w", err)
		}
		return extract.Result{}, err
	}
	return extracted, nil
}

func (w *Worker) fail(ctx context.Context, jobID string, cause error) {
	w.logger.Warn("job failed",
		zap.String("job_id", jobID),
		zap.Error(cause),
	)
	if err := w.repo.MarkFailed(ctx, jobID, cause.Error()); err != nil {
		w.logger.Error("failed to persist failed job",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
	}
}

// progress failures are logged, never fatal: losing one checkpoint must not
// stop job processing.
func (w *Worker) progress(ctx context.Context, jobID string, value int) {
	if err := w.repo.UpdateProgress(ctx, jobID, value); err != nil {
		w.logger.Warn("progress update failed",
			zap.String("job_id", jobID),
			zap.Int("progress", value),
			zap.Error(err),
		)
	}
}
