package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ilramdhan/calc-suite/internal/domain/entity"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// CalculatorRepository defines the interface for saved calculator operations
type CalculatorRepository interface {
	// Create creates a new calculator
	Create(ctx context.Context, calc *entity.Calculator) error
	// CreateBatch creates multiple calculators using COPY protocol
	CreateBatch(ctx context.Context, calcs []*entity.Calculator) (int64, error)
	// GetByID retrieves a calculator by ID
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Calculator, error)
	// List retrieves calculators with pagination
	List(ctx context.Context, limit, offset int) ([]*entity.Calculator, error)
	// Count returns the total count of calculators
	Count(ctx context.Context) (int64, error)
	// Update updates a calculator
	Update(ctx context.Context, calc *entity.Calculator) error
	// Delete deletes a calculator
	Delete(ctx context.Context, id uuid.UUID) error
}

// HistoryRepository defines the interface for calculation history
type HistoryRepository interface {
	// Create records one calculation
	Create(ctx context.Context, rec *entity.CalculationRecord) error
	// CreateBatch records multiple calculations using COPY protocol
	CreateBatch(ctx context.Context, recs []*entity.CalculationRecord) (int64, error)
	// ListByCalculator retrieves the history of one calculator, newest first
	ListByCalculator(ctx context.Context, calculatorID uuid.UUID, limit, offset int) ([]*entity.CalculationRecord, error)
	// ListByJob retrieves the records written by a batch job
	ListByJob(ctx context.Context, jobID uuid.UUID, limit, offset int) ([]*entity.CalculationRecord, error)
	// ListRecent retrieves the latest calculations across all calculators
	ListRecent(ctx context.Context, limit, offset int) ([]*entity.CalculationRecord, error)
	// CountByCalculator returns the number of records for a calculator
	CountByCalculator(ctx context.Context, calculatorID uuid.UUID) (int64, error)
}

// BatchJobRepository defines the interface for batch job operations
type BatchJobRepository interface {
	// Create creates a new batch job
	Create(ctx context.Context, job *entity.BatchJob) error
	// GetByID retrieves a job by ID
	GetByID(ctx context.Context, id uuid.UUID) (*entity.BatchJob, error)
	// Claim moves a pending job to running; it reports false if the job was
	// not pending
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	// UpdateStatus updates a job's status and progress
	UpdateStatus(ctx context.Context, id uuid.UUID, status entity.JobStatus, processed, failed int64) error
	// UpdateProgress adds to a job's progress counters
	UpdateProgress(ctx context.Context, id uuid.UUID, processed, failed int64) error
	// Complete marks a job as completed
	Complete(ctx context.Context, id uuid.UUID) error
	// Fail marks a job as failed
	Fail(ctx context.Context, id uuid.UUID, errorMsg string) error
	// ListRecent retrieves recent jobs
	ListRecent(ctx context.Context, limit int) ([]*entity.BatchJob, error)
	// ListByStatus retrieves jobs in a status, oldest first
	ListByStatus(ctx context.Context, status entity.JobStatus, limit int) ([]*entity.BatchJob, error)
}
