// Package memory implements the repositories in process memory. It backs the
// API when STORAGE=memory and the service and handler tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ilramdhan/calc-suite/internal/domain/entity"
	"github.com/ilramdhan/calc-suite/internal/domain/repository"
)

// calculatorRepo implements repository.CalculatorRepository
type calculatorRepo struct {
	mu    sync.RWMutex
	calcs map[uuid.UUID]*entity.Calculator
}

// NewCalculatorRepository creates an empty in-memory calculator repository
func NewCalculatorRepository() repository.CalculatorRepository {
	return &calculatorRepo{calcs: make(map[uuid.UUID]*entity.Calculator)}
}

func (r *calculatorRepo) Create(_ context.Context, calc *entity.Calculator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *calc
	r.calcs[calc.ID] = &c
	return nil
}

func (r *calculatorRepo) CreateBatch(ctx context.Context, calcs []*entity.Calculator) (int64, error) {
	for _, calc := range calcs {
		if err := r.Create(ctx, calc); err != nil {
			return 0, err
		}
	}
	return int64(len(calcs)), nil
}

func (r *calculatorRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.Calculator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	calc, ok := r.calcs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *calc
	return &c, nil
}

func (r *calculatorRepo) List(_ context.Context, limit, offset int) ([]*entity.Calculator, error) {
	r.mu.RLock()
	all := make([]*entity.Calculator, 0, len(r.calcs))
	for _, calc := range r.calcs {
		c := *calc
		all = append(all, &c)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return newer(all[i].CreatedAt, all[j].CreatedAt, all[i].ID, all[j].ID) })
	return page(all, limit, offset), nil
}

func (r *calculatorRepo) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.calcs)), nil
}

func (r *calculatorRepo) Update(_ context.Context, calc *entity.Calculator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.calcs[calc.ID]; !ok {
		return repository.ErrNotFound
	}
	c := *calc
	r.calcs[calc.ID] = &c
	return nil
}

func (r *calculatorRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.calcs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.calcs, id)
	return nil
}

// historyRepo implements repository.HistoryRepository
type historyRepo struct {
	mu   sync.RWMutex
	recs []*entity.CalculationRecord
}

// NewHistoryRepository creates an empty in-memory history repository
func NewHistoryRepository() repository.HistoryRepository {
	return &historyRepo{}
}

func (r *historyRepo) Create(_ context.Context, rec *entity.CalculationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *rec
	r.recs = append(r.recs, &c)
	return nil
}

func (r *historyRepo) CreateBatch(ctx context.Context, recs []*entity.CalculationRecord) (int64, error) {
	for _, rec := range recs {
		if err := r.Create(ctx, rec); err != nil {
			return 0, err
		}
	}
	return int64(len(recs)), nil
}

func (r *historyRepo) ListByCalculator(_ context.Context, calculatorID uuid.UUID, limit, offset int) ([]*entity.CalculationRecord, error) {
	recs := r.filter(func(rec *entity.CalculationRecord) bool { return rec.CalculatorID == calculatorID })
	sortNewest(recs)
	return page(recs, limit, offset), nil
}

func (r *historyRepo) ListByJob(_ context.Context, jobID uuid.UUID, limit, offset int) ([]*entity.CalculationRecord, error) {
	recs := r.filter(func(rec *entity.CalculationRecord) bool { return rec.JobID != nil && *rec.JobID == jobID })
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].CreatedAt.Before(recs[j].CreatedAt) })
	return page(recs, limit, offset), nil
}

func (r *historyRepo) ListRecent(_ context.Context, limit, offset int) ([]*entity.CalculationRecord, error) {
	recs := r.filter(func(*entity.CalculationRecord) bool { return true })
	sortNewest(recs)
	return page(recs, limit, offset), nil
}

func (r *historyRepo) CountByCalculator(_ context.Context, calculatorID uuid.UUID) (int64, error) {
	return int64(len(r.filter(func(rec *entity.CalculationRecord) bool { return rec.CalculatorID == calculatorID }))), nil
}

func (r *historyRepo) filter(keep func(*entity.CalculationRecord) bool) []*entity.CalculationRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*entity.CalculationRecord{}
	for _, rec := range r.recs {
		if keep(rec) {
			c := *rec
			out = append(out, &c)
		}
	}
	return out
}

func sortNewest(recs []*entity.CalculationRecord) {
	// Stable on insertion order so equal timestamps list the latest write first.
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].CreatedAt.After(recs[j].CreatedAt) })
}

// batchJobRepo implements repository.BatchJobRepository
type batchJobRepo struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*entity.BatchJob
}

// NewBatchJobRepository creates an empty in-memory job repository
func NewBatchJobRepository() repository.BatchJobRepository {
	return &batchJobRepo{jobs: make(map[uuid.UUID]*entity.BatchJob)}
}

func (r *batchJobRepo) Create(_ context.Context, job *entity.BatchJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j := *job
	r.jobs[job.ID] = &j
	return nil
}

func (r *batchJobRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.BatchJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	j := *job
	return &j, nil
}

func (r *batchJobRepo) update(id uuid.UUID, fn func(*entity.BatchJob)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(job)
	return nil
}

func (r *batchJobRepo) Claim(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if job.Status != entity.JobStatusPending {
		return false, nil
	}
	now := time.Now()
	job.Status = entity.JobStatusRunning
	job.StartedAt = &now
	return true, nil
}

func (r *batchJobRepo) UpdateStatus(_ context.Context, id uuid.UUID, status entity.JobStatus, processed, failed int64) error {
	return r.update(id, func(job *entity.BatchJob) {
		job.Status = status
		job.ProcessedRecords = processed
		job.FailedRecords = failed
	})
}

func (r *batchJobRepo) UpdateProgress(_ context.Context, id uuid.UUID, processed, failed int64) error {
	return r.update(id, func(job *entity.BatchJob) {
		job.ProcessedRecords += processed
		job.FailedRecords += failed
	})
}

func (r *batchJobRepo) Complete(_ context.Context, id uuid.UUID) error {
	return r.update(id, func(job *entity.BatchJob) {
		now := time.Now()
		job.Status = entity.JobStatusCompleted
		job.FinishedAt = &now
	})
}

func (r *batchJobRepo) Fail(_ context.Context, id uuid.UUID, errorMsg string) error {
	return r.update(id, func(job *entity.BatchJob) {
		now := time.Now()
		job.Status = entity.JobStatusFailed
		job.ErrorMessage = errorMsg
		job.FinishedAt = &now
	})
}

func (r *batchJobRepo) ListRecent(_ context.Context, limit int) ([]*entity.BatchJob, error) {
	jobs := r.snapshot(func(*entity.BatchJob) bool { return true })
	sort.Slice(jobs, func(i, j int) bool { return newer(jobs[i].CreatedAt, jobs[j].CreatedAt, jobs[i].ID, jobs[j].ID) })
	return page(jobs, limit, 0), nil
}

func (r *batchJobRepo) ListByStatus(_ context.Context, status entity.JobStatus, limit int) ([]*entity.BatchJob, error) {
	jobs := r.snapshot(func(job *entity.BatchJob) bool { return job.Status == status })
	sort.Slice(jobs, func(i, j int) bool { return newer(jobs[j].CreatedAt, jobs[i].CreatedAt, jobs[j].ID, jobs[i].ID) })
	return page(jobs, limit, 0), nil
}

func (r *batchJobRepo) snapshot(keep func(*entity.BatchJob) bool) []*entity.BatchJob {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*entity.BatchJob{}
	for _, job := range r.jobs {
		if keep(job) {
			j := *job
			out = append(out, &j)
		}
	}
	return out
}

// newer orders by time descending, then by ID for a stable order.
func newer(a, b time.Time, ida, idb uuid.UUID) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return ida.String() < idb.String()
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
