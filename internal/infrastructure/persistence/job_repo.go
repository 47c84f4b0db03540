package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ilramdhan/calc-suite/internal/domain/entity"
	"github.com/ilramdhan/calc-suite/internal/domain/repository"
)

const jobColumns = `id, job_type, status, calculator_id, bindings, total_records, processed_records, failed_records, error_message, started_at, finished_at, created_at`

// batchJobRepo implements repository.BatchJobRepository
type batchJobRepo struct {
	pool *pgxpool.Pool
}

// NewBatchJobRepository creates a new batch job repository
func NewBatchJobRepository(pool *pgxpool.Pool) repository.BatchJobRepository {
	return &batchJobRepo{pool: pool}
}

func (r *batchJobRepo) Create(ctx context.Context, job *entity.BatchJob) error {
	query := `
		INSERT INTO batch_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	bindings, err := job.BindingsJSON()
	if err != nil {
		return fmt.Errorf("failed to encode job bindings: %w", err)
	}
	_, err = r.pool.Exec(ctx, query,
		job.ID, job.JobType, job.Status, job.CalculatorID, bindings, job.TotalRecords, job.ProcessedRecords,
		job.FailedRecords, job.ErrorMessage, job.StartedAt, job.FinishedAt, job.CreatedAt)
	return err
}

func (r *batchJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.BatchJob, error) {
	query := `SELECT ` + jobColumns + ` FROM batch_jobs WHERE id = $1`
	job, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return job, err
}

func (r *batchJobRepo) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE batch_jobs SET status = $2, started_at = NOW()
		WHERE id = $1 AND status = $3
	`
	tag, err := r.pool.Exec(ctx, query, id, entity.JobStatusRunning, entity.JobStatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *batchJobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status entity.JobStatus, processed, failed int64) error {
	query := `
		UPDATE batch_jobs SET status = $2, processed_records = $3, failed_records = $4
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, status, processed, failed)
	return err
}

func (r *batchJobRepo) UpdateProgress(ctx context.Context, id uuid.UUID, processed, failed int64) error {
	query := `
		UPDATE batch_jobs SET processed_records = processed_records + $2, failed_records = failed_records + $3
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, processed, failed)
	return err
}

func (r *batchJobRepo) Complete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE batch_jobs SET status = $2, finished_at = $3
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, entity.JobStatusCompleted, time.Now())
	return err
}

func (r *batchJobRepo) Fail(ctx context.Context, id uuid.UUID, errorMsg string) error {
	query := `
		UPDATE batch_jobs SET status = $2, error_message = $3, finished_at = $4
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, entity.JobStatusFailed, errorMsg, time.Now())
	return err
}

func (r *batchJobRepo) ListRecent(ctx context.Context, limit int) ([]*entity.BatchJob, error) {
	query := `SELECT ` + jobColumns + ` FROM batch_jobs ORDER BY created_at DESC LIMIT $1`
	return r.list(ctx, query, limit)
}

func (r *batchJobRepo) ListByStatus(ctx context.Context, status entity.JobStatus, limit int) ([]*entity.BatchJob, error) {
	query := `SELECT ` + jobColumns + ` FROM batch_jobs WHERE status = $1 ORDER BY created_at LIMIT $2`
	return r.list(ctx, query, status, limit)
}

func (r *batchJobRepo) list(ctx context.Context, query string, args ...interface{}) ([]*entity.BatchJob, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []*entity.BatchJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*entity.BatchJob, error) {
	var job entity.BatchJob
	err := row.Scan(&job.ID, &job.JobType, &job.Status, &job.CalculatorID, &job.Bindings, &job.TotalRecords,
		&job.ProcessedRecords, &job.FailedRecords, &job.ErrorMessage, &job.StartedAt, &job.FinishedAt, &job.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &job, nil
}
