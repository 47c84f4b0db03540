package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ilramdhan/calc-suite/internal/domain/entity"
	"github.com/ilramdhan/calc-suite/internal/domain/repository"
	"github.com/ilramdhan/calc-suite/pkg/formula"
)

const calculatorColumns = `id, name, description, tokens, variables, angle_mode, expression, latex, version_hash, is_active, created_at, updated_at`

// calculatorRepo implements repository.CalculatorRepository
type calculatorRepo struct {
	pool *pgxpool.Pool
}

// NewCalculatorRepository creates a new calculator repository
func NewCalculatorRepository(pool *pgxpool.Pool) repository.CalculatorRepository {
	return &calculatorRepo{pool: pool}
}

func (r *calculatorRepo) Create(ctx context.Context, calc *entity.Calculator) error {
	query := `
		INSERT INTO calculators (` + calculatorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	tokens, err := calc.TokensJSON()
	if err != nil {
		return fmt.Errorf("failed to encode tokens: %w", err)
	}
	_, err = r.pool.Exec(ctx, query,
		calc.ID, calc.Name, calc.Description, tokens, calc.Variables, calc.AngleMode.String(),
		calc.Expression, calc.LaTeX, calc.VersionHash, calc.IsActive, calc.CreatedAt, calc.UpdatedAt)
	return err
}

// CreateBatch uses PostgreSQL COPY protocol for bulk inserts
func (r *calculatorRepo) CreateBatch(ctx context.Context, calcs []*entity.Calculator) (int64, error) {
	columns := []string{"id", "name", "description", "tokens", "variables", "angle_mode", "expression", "latex", "version_hash", "is_active", "created_at", "updated_at"}

	rows := make([][]interface{}, len(calcs))
	for i, calc := range calcs {
		tokens, err := calc.TokensJSON()
		if err != nil {
			return 0, fmt.Errorf("failed to encode tokens of %s: %w", calc.Name, err)
		}
		rows[i] = []interface{}{
			calc.ID, calc.Name, calc.Description, tokens, calc.Variables, calc.AngleMode.String(),
			calc.Expression, calc.LaTeX, calc.VersionHash, calc.IsActive, calc.CreatedAt, calc.UpdatedAt,
		}
	}

	copyCount, err := r.pool.CopyFrom(ctx, pgx.Identifier{"calculators"}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("failed to copy calculators: %w", err)
	}
	return copyCount, nil
}

func (r *calculatorRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Calculator, error) {
	query := `SELECT ` + calculatorColumns + ` FROM calculators WHERE id = $1`
	calc, err := scanCalculator(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return calc, err
}

func (r *calculatorRepo) List(ctx context.Context, limit, offset int) ([]*entity.Calculator, error) {
	query := `
		SELECT ` + calculatorColumns + `
		FROM calculators
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	calcs := []*entity.Calculator{}
	for rows.Next() {
		calc, err := scanCalculator(rows)
		if err != nil {
			return nil, err
		}
		calcs = append(calcs, calc)
	}
	return calcs, rows.Err()
}

func (r *calculatorRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM calculators").Scan(&count)
	return count, err
}

func (r *calculatorRepo) Update(ctx context.Context, calc *entity.Calculator) error {
	query := `
		UPDATE calculators SET name = $2, description = $3, tokens = $4, variables = $5, angle_mode = $6,
			expression = $7, latex = $8, version_hash = $9, is_active = $10, updated_at = $11
		WHERE id = $1
	`
	tokens, err := calc.TokensJSON()
	if err != nil {
		return fmt.Errorf("failed to encode tokens: %w", err)
	}
	tag, err := r.pool.Exec(ctx, query,
		calc.ID, calc.Name, calc.Description, tokens, calc.Variables, calc.AngleMode.String(),
		calc.Expression, calc.LaTeX, calc.VersionHash, calc.IsActive, calc.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *calculatorRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM calculators WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanCalculator(row pgx.Row) (*entity.Calculator, error) {
	var calc entity.Calculator
	var angle string
	err := row.Scan(&calc.ID, &calc.Name, &calc.Description, &calc.Tokens, &calc.Variables, &angle,
		&calc.Expression, &calc.LaTeX, &calc.VersionHash, &calc.IsActive, &calc.CreatedAt, &calc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if calc.AngleMode, err = formula.ParseAngleMode(angle); err != nil {
		return nil, fmt.Errorf("calculator %s: %w", calc.ID, err)
	}
	return &calc, nil
}
