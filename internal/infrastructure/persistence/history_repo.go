package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ilramdhan/calc-suite/internal/domain/entity"
	"github.com/ilramdhan/calc-suite/internal/domain/repository"
)

const historyColumns = `id, calculator_id, job_id, bindings, result, error_code, error_message, created_at`

// historyRepo implements repository.HistoryRepository
type historyRepo struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository creates a new calculation history repository
func NewHistoryRepository(pool *pgxpool.Pool) repository.HistoryRepository {
	return &historyRepo{pool: pool}
}

func (r *historyRepo) Create(ctx context.Context, rec *entity.CalculationRecord) error {
	query := `
		INSERT INTO calculation_history (` + historyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	bindings, err := rec.BindingsJSON()
	if err != nil {
		return fmt.Errorf("failed to encode bindings: %w", err)
	}
	_, err = r.pool.Exec(ctx, query,
		rec.ID, rec.CalculatorID, rec.JobID, bindings, rec.Result, rec.ErrorCode, rec.ErrorMessage, rec.CreatedAt)
	return err
}

// CreateBatch uses PostgreSQL COPY protocol. History is append-only, so the
// rows go straight into the table without a staging step.
func (r *historyRepo) CreateBatch(ctx context.Context, recs []*entity.CalculationRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	columns := []string{"id", "calculator_id", "job_id", "bindings", "result", "error_code", "error_message", "created_at"}
	rows := make([][]interface{}, len(recs))
	for i, rec := range recs {
		bindings, err := rec.BindingsJSON()
		if err != nil {
			return 0, fmt.Errorf("failed to encode bindings: %w", err)
		}
		rows[i] = []interface{}{
			rec.ID, rec.CalculatorID, rec.JobID, bindings, rec.Result, rec.ErrorCode, rec.ErrorMessage, rec.CreatedAt,
		}
	}

	copyCount, err := r.pool.CopyFrom(ctx, pgx.Identifier{"calculation_history"}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("failed to copy calculation history: %w", err)
	}
	return copyCount, nil
}

func (r *historyRepo) ListByCalculator(ctx context.Context, calculatorID uuid.UUID, limit, offset int) ([]*entity.CalculationRecord, error) {
	query := `
		SELECT ` + historyColumns + `
		FROM calculation_history WHERE calculator_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, calculatorID, limit, offset)
}

func (r *historyRepo) ListByJob(ctx context.Context, jobID uuid.UUID, limit, offset int) ([]*entity.CalculationRecord, error) {
	query := `
		SELECT ` + historyColumns + `
		FROM calculation_history WHERE job_id = $1
		ORDER BY created_at LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, jobID, limit, offset)
}

func (r *historyRepo) ListRecent(ctx context.Context, limit, offset int) ([]*entity.CalculationRecord, error) {
	query := `
		SELECT ` + historyColumns + `
		FROM calculation_history
		ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`
	return r.list(ctx, query, limit, offset)
}

func (r *historyRepo) CountByCalculator(ctx context.Context, calculatorID uuid.UUID) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM calculation_history WHERE calculator_id = $1", calculatorID).Scan(&count)
	return count, err
}

func (r *historyRepo) list(ctx context.Context, query string, args ...interface{}) ([]*entity.CalculationRecord, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs := []*entity.CalculationRecord{}
	for rows.Next() {
		var rec entity.CalculationRecord
		if err := rows.Scan(&rec.ID, &rec.CalculatorID, &rec.JobID, &rec.Bindings, &rec.Result, &rec.ErrorCode, &rec.ErrorMessage, &rec.CreatedAt); err != nil {
			return nil, err
		}
		recs = append(recs, &rec)
	}
	return recs, rows.Err()
}
