package calculator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ilramdhan/calc-suite/internal/domain/entity"
	"github.com/ilramdhan/calc-suite/internal/domain/repository"
	"github.com/ilramdhan/calc-suite/pkg/formula"
)

// ErrInvalidInput is returned for requests that fail checks other than
// formula validation
var ErrInvalidInput = errors.New("invalid input")

// MaxBatchSize bounds the binding sets accepted by one batch job
const MaxBatchSize = 100000

// Input describes a calculator to create or replace
type Input struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Tokens      []formula.Token    `json:"tokens"`
	AngleMode   *formula.AngleMode `json:"angle_mode"`
}

// Service manages saved calculators and their evaluations
type Service struct {
	engine      *formula.Engine
	calcRepo    repository.CalculatorRepository
	historyRepo repository.HistoryRepository
	jobRepo     repository.BatchJobRepository
}

// NewService creates a new calculator service
func NewService(
	engine *formula.Engine,
	calcRepo repository.CalculatorRepository,
	historyRepo repository.HistoryRepository,
	jobRepo repository.BatchJobRepository,
) *Service {
	return &Service{
		engine:      engine,
		calcRepo:    calcRepo,
		historyRepo: historyRepo,
		jobRepo:     jobRepo,
	}
}

// Engine returns the formula engine used by the service
func (s *Service) Engine() *formula.Engine {
	return s.engine
}

// Create validates and saves a new calculator. A formula that does not parse
// is rejected with its *formula.Error.
func (s *Service) Create(ctx context.Context, in Input) (*entity.Calculator, error) {
	calc, err := s.Build(in)
	if err != nil {
		return nil, err
	}
	if err := s.calcRepo.Create(ctx, calc); err != nil {
		return nil, fmt.Errorf("failed to create calculator: %w", err)
	}
	return calc, nil
}

// Build compiles a new calculator without saving it, for bulk loads through
// CalculatorRepository.CreateBatch
func (s *Service) Build(in Input) (*entity.Calculator, error) {
	now := time.Now()
	calc := &entity.Calculator{
		ID:        uuid.New(),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.compile(calc, in); err != nil {
		return nil, err
	}
	return calc, nil
}

// Update replaces the definition of an existing calculator
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*entity.Calculator, error) {
	calc, err := s.calcRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get calculator: %w", err)
	}
	if err := s.compile(calc, in); err != nil {
		return nil, err
	}
	calc.UpdatedAt = time.Now()
	if err := s.calcRepo.Update(ctx, calc); err != nil {
		return nil, fmt.Errorf("failed to update calculator: %w", err)
	}
	return calc, nil
}

// compile parses the input formula and fills the derived calculator fields
func (s *Service) compile(calc *entity.Calculator, in Input) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	tree, err := s.engine.Parse(in.Tokens)
	if err != nil {
		return err
	}
	rendering := formula.RenderTree(tree)

	calc.Name = name
	calc.Description = in.Description
	calc.Tokens = in.Tokens
	calc.Variables = tree.Variables
	calc.Expression = rendering.Expression
	calc.LaTeX = rendering.LaTeX
	calc.VersionHash = formula.Key(in.Tokens)
	calc.AngleMode = s.engine.Config().Angle
	if in.AngleMode != nil {
		calc.AngleMode = *in.AngleMode
	}
	return nil
}

// Get retrieves a calculator
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*entity.Calculator, error) {
	calc, err := s.calcRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get calculator: %w", err)
	}
	return calc, nil
}

// List retrieves calculators with pagination and the total count
func (s *Service) List(ctx context.Context, limit, offset int) ([]*entity.Calculator, int64, error) {
	calcs, err := s.calcRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list calculators: %w", err)
	}
	count, err := s.calcRepo.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count calculators: %w", err)
	}
	return calcs, count, nil
}

// Stats summarises the service state
type Stats struct {
	Calculators    int64 `json:"calculators"`
	CachedFormulas int   `json:"cached_formulas"`
}

// Stats counts the saved calculators and the cached formula trees
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	count, err := s.calcRepo.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count calculators: %w", err)
	}
	return Stats{Calculators: count, CachedFormulas: s.engine.CachedTrees()}, nil
}

// Delete removes a calculator
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.calcRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete calculator: %w", err)
	}
	return nil
}

// Execute evaluates a saved calculator and records the outcome in the
// history. A failed evaluation is recorded too; its *formula.Error is
// returned along with the record.
func (s *Service) Execute(ctx context.Context, id uuid.UUID, vars formula.Bindings) (*entity.CalculationRecord, error) {
	calc, err := s.calcRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get calculator: %w", err)
	}
	if !calc.IsActive {
		return nil, fmt.Errorf("%w: calculator %s is inactive", ErrInvalidInput, calc.ID)
	}

	res, evalErr := s.engine.Execute(calc.Tokens, vars, formula.WithAngleMode(calc.AngleMode))
	rec, err := NewRecord(calc.ID, nil, vars, res.Result, evalErr)
	if err != nil {
		return nil, err
	}
	if err := s.historyRepo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to record calculation: %w", err)
	}
	return rec, evalErr
}

// History retrieves the evaluations of one calculator, newest first
func (s *Service) History(ctx context.Context, id uuid.UUID, limit, offset int) ([]*entity.CalculationRecord, int64, error) {
	if _, err := s.calcRepo.GetByID(ctx, id); err != nil {
		return nil, 0, fmt.Errorf("failed to get calculator: %w", err)
	}
	recs, err := s.historyRepo.ListByCalculator(ctx, id, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list history: %w", err)
	}
	count, err := s.historyRepo.CountByCalculator(ctx, id)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count history: %w", err)
	}
	return recs, count, nil
}

// RecentHistory retrieves the latest evaluations across calculators
func (s *Service) RecentHistory(ctx context.Context, limit, offset int) ([]*entity.CalculationRecord, error) {
	recs, err := s.historyRepo.ListRecent(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return recs, nil
}

// CreateBatch registers a pending job evaluating a calculator over many
// binding sets. The job is run by a WorkerPool.
func (s *Service) CreateBatch(ctx context.Context, id uuid.UUID, bindings []formula.Bindings) (*entity.BatchJob, error) {
	if len(bindings) == 0 {
		return nil, fmt.Errorf("%w: no binding sets", ErrInvalidInput)
	}
	if len(bindings) > MaxBatchSize {
		return nil, fmt.Errorf("%w: %d binding sets exceeds the limit of %d", ErrInvalidInput, len(bindings), MaxBatchSize)
	}
	calc, err := s.calcRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get calculator: %w", err)
	}

	job := &entity.BatchJob{
		ID:           uuid.New(),
		JobType:      entity.JobTypeEvaluateBatch,
		Status:       entity.JobStatusPending,
		CalculatorID: calc.ID,
		Bindings:     bindings,
		TotalRecords: int64(len(bindings)),
		CreatedAt:    time.Now(),
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

// Job retrieves a batch job
func (s *Service) Job(ctx context.Context, id uuid.UUID) (*entity.BatchJob, error) {
	job, err := s.jobRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// RecentJobs retrieves the latest batch jobs
func (s *Service) RecentJobs(ctx context.Context, limit int) ([]*entity.BatchJob, error) {
	jobs, err := s.jobRepo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// JobResults retrieves the records written by a batch job
func (s *Service) JobResults(ctx context.Context, id uuid.UUID, limit, offset int) ([]*entity.CalculationRecord, error) {
	if _, err := s.jobRepo.GetByID(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	recs, err := s.historyRepo.ListByJob(ctx, id, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list job results: %w", err)
	}
	return recs, nil
}

// NewRecord builds the history record of one evaluation. Formula errors
// become part of the record; any other error is returned.
func NewRecord(calcID uuid.UUID, jobID *uuid.UUID, vars formula.Bindings, result float64, evalErr error) (*entity.CalculationRecord, error) {
	rec := &entity.CalculationRecord{
		ID:           uuid.New(),
		CalculatorID: calcID,
		JobID:        jobID,
		Bindings:     vars,
		CreatedAt:    time.Now(),
	}
	if evalErr == nil {
		rec.Result = &result
		return rec, nil
	}
	var fe *formula.Error
	if !errors.As(evalErr, &fe) {
		return nil, fmt.Errorf("failed to evaluate calculator %s: %w", calcID, evalErr)
	}
	rec.ErrorCode = string(fe.Code)
	rec.ErrorMessage = fe.Error()
	return rec, nil
}
