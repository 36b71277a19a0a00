package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/downoff/lucius-backend/internal/domain"
)

type PostgresJobsRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresJobsRepository(pool *pgxpool.Pool) *PostgresJobsRepository {
	return &PostgresJobsRepository{pool: pool}
}

// NewPostgresPool opens and verifies the shared connection pool.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	return pool, nil
}

func (r *PostgresJobsRepository) CreateJob(ctx context.Context, job *domain.Job) error {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO jobs (id, type, status, payload, progress, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, job.ID, string(job.Type), string(job.Status), payload, job.Progress, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return storageErr("insert job", err)
	}
	return nil
}

func (r *PostgresJobsRepository) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, type, status, payload, progress, result, created_at, updated_at, started_at, completed_at
		FROM jobs
		WHERE id = $1
	`, jobID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storageErr("query job", err)
	}
	return job, nil
}

// ClaimNextPending relies on FOR UPDATE SKIP LOCKED so overlapping claims
// from concurrent processes each take a distinct job or none.
func (r *PostgresJobsRepository) ClaimNextPending(ctx context.Context) (*domain.Job, error) {
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, `
		UPDATE jobs
		SET status = $1,
			started_at = $2,
			progress = GREATEST(progress, $3),
			updated_at = $2
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = $4
			ORDER BY created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, type, status, payload, progress, result, created_at, updated_at, started_at, completed_at
	`, string(domain.JobStatusProcessing), now, claimProgress, string(domain.JobStatusPending))
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("claim job", err)
	}
	return job, nil
}

func (r *PostgresJobsRepository) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	command, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET progress = GREATEST(progress, $2), updated_at = $3
		WHERE id = $1
	`, jobID, progress, time.Now().UTC())
	if err != nil {
		return storageErr("update progress", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresJobsRepository) MarkCompleted(ctx context.Context, jobID string, analysis domain.AnalysisResult) error {
	result, err := json.Marshal(domain.JobResult{Analysis: &analysis})
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return r.finalize(ctx, jobID, domain.JobStatusCompleted, result, 100)
}

func (r *PostgresJobsRepository) MarkFailed(ctx context.Context, jobID string, message string) error {
	result, err := json.Marshal(domain.JobResult{Error: message})
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	command, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET status = $2, result = $3, completed_at = $4, updated_at = $4
		WHERE id = $1
	`, jobID, string(domain.JobStatusFailed), result, time.Now().UTC())
	if err != nil {
		return storageErr("mark failed", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresJobsRepository) finalize(ctx context.Context, jobID string, status domain.JobStatus, result []byte, progress int) error {
	command, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET status = $2, result = $3, progress = $4, completed_at = $5, updated_at = $5
		WHERE id = $1
	`, jobID, string(status), result, progress, time.Now().UTC())
	if err != nil {
		return storageErr("finalize job", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresJobsRepository) CompleteIfPending(ctx context.Context, jobID string, analysis domain.AnalysisResult) (bool, error) {
	result, err := json.Marshal(domain.JobResult{Analysis: &analysis})
	if err != nil {
		return false, fmt.Errorf("encode result: %w", err)
	}
	command, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET status = $2, result = $3, progress = 100, completed_at = $4, updated_at = $4
		WHERE id = $1 AND status = $5
	`, jobID, string(domain.JobStatusCompleted), result, time.Now().UTC(), string(domain.JobStatusPending))
	if err != nil {
		return false, storageErr("complete if pending", err)
	}
	return command.RowsAffected() == 1, nil
}

func (r *PostgresJobsRepository) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	command, err := r.pool.Exec(ctx, `
		UPDATE jobs
		SET status = $1, started_at = NULL, updated_at = $2
		WHERE status = $3 AND started_at < $4
	`, string(domain.JobStatusPending), time.Now().UTC(), string(domain.JobStatusProcessing), time.Now().UTC().Add(-olderThan))
	if err != nil {
		return 0, storageErr("reclaim stale", err)
	}
	return int(command.RowsAffected()), nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job         domain.Job
		jobType     string
		status      string
		payload     []byte
		result      []byte
		startedAt   *time.Time
		completedAt *time.Time
	)
	err := row.Scan(
		&job.ID, &jobType, &status, &payload, &job.Progress, &result,
		&job.CreatedAt, &job.UpdatedAt, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Type = domain.JobType(jobType)
	job.Status = domain.JobStatus(status)
	job.StartedAt = startedAt
	job.CompletedAt = completedAt
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &job.Payload); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
	}
	if len(result) > 0 {
		var decoded domain.JobResult
		if err := json.Unmarshal(result, &decoded); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		job.Result = &decoded
	}
	return &job, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
