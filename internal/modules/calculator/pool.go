package calculator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ilramdhan/calc-suite/internal/domain/entity"
	"github.com/ilramdhan/calc-suite/internal/domain/repository"
	"github.com/ilramdhan/calc-suite/pkg/formula"
)

// WorkerPool runs batch evaluation jobs concurrently
type WorkerPool struct {
	engine      *formula.Engine
	calcRepo    repository.CalculatorRepository
	historyRepo repository.HistoryRepository
	jobRepo     repository.BatchJobRepository
	workerCount int
	batchSize   int
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(
	engine *formula.Engine,
	calcRepo repository.CalculatorRepository,
	historyRepo repository.HistoryRepository,
	jobRepo repository.BatchJobRepository,
	workerCount, batchSize int,
) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if batchSize < 1 {
		batchSize = 1
	}
	return &WorkerPool{
		engine:      engine,
		calcRepo:    calcRepo,
		historyRepo: historyRepo,
		jobRepo:     jobRepo,
		workerCount: workerCount,
		batchSize:   batchSize,
	}
}

// JobStats summarises a finished run
type JobStats struct {
	Processed int64
	Failed    int64
	Elapsed   time.Duration
}

// Run claims a pending job and evaluates its calculator for every binding
// set. The calculator is parsed once and the tree shared by all workers.
// Records are flushed to the history in batches. If the job is not pending
// any more, Run does nothing.
func (wp *WorkerPool) Run(ctx context.Context, job *entity.BatchJob) (JobStats, error) {
	start := time.Now()
	claimed, err := wp.jobRepo.Claim(ctx, job.ID)
	if err != nil {
		return JobStats{}, fmt.Errorf("failed to claim job: %w", err)
	}
	if !claimed {
		log.Printf("Job %s is no longer pending, skipping", job.ID)
		return JobStats{}, nil
	}

	calc, err := wp.calcRepo.GetByID(ctx, job.CalculatorID)
	if err != nil {
		return JobStats{}, wp.fail(job, fmt.Errorf("failed to get calculator: %w", err))
	}
	tree, err := wp.engine.Parse(calc.Tokens)
	if err != nil {
		return JobStats{}, wp.fail(job, fmt.Errorf("failed to parse calculator %s: %w", calc.ID, err))
	}
	cfg := wp.engine.Config(formula.WithAngleMode(calc.AngleMode))

	// Create channels
	idxChan := make(chan int, wp.batchSize*2)
	resultChan := make(chan *entity.CalculationRecord, wp.batchSize*2)

	var processedCount int64
	var failedCount int64

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < wp.workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for idx := range idxChan {
				vars := job.Bindings[idx]
				v, evalErr := formula.Evaluate(tree, vars, cfg)
				rec, err := NewRecord(calc.ID, &job.ID, vars, v, evalErr)
				if err != nil {
					log.Printf("Worker %d: binding set %d of job %s: %v", workerID, idx, job.ID, err)
					atomic.AddInt64(&failedCount, 1)
					continue
				}
				resultChan <- rec
			}
		}(i)
	}

	// Start result collector
	var resultWg sync.WaitGroup
	resultWg.Add(1)
	go func() {
		defer resultWg.Done()
		buffer := make([]*entity.CalculationRecord, 0, wp.batchSize)

		for rec := range resultChan {
			buffer = append(buffer, rec)
			if len(buffer) >= wp.batchSize {
				wp.flush(ctx, job, buffer, &processedCount, &failedCount)
				buffer = buffer[:0]
			}
		}
		if len(buffer) > 0 {
			wp.flush(ctx, job, buffer, &processedCount, &failedCount)
		}
	}()

	// Dispatcher
	go func() {
		defer close(idxChan)
		for i := range job.Bindings {
			select {
			case <-ctx.Done():
				return
			case idxChan <- i:
			}
		}
	}()

	wg.Wait()
	close(resultChan)
	resultWg.Wait()

	stats := JobStats{
		Processed: atomic.LoadInt64(&processedCount),
		Failed:    atomic.LoadInt64(&failedCount),
		Elapsed:   time.Since(start),
	}

	if err := ctx.Err(); err != nil {
		// The caller's context is gone; record the outcome regardless.
		if uerr := wp.jobRepo.UpdateStatus(context.Background(), job.ID, entity.JobStatusCancelled, stats.Processed, stats.Failed); uerr != nil {
			log.Printf("Failed to mark job %s cancelled: %v", job.ID, uerr)
		}
		return stats, fmt.Errorf("job %s cancelled: %w", job.ID, err)
	}

	if err := wp.jobRepo.Complete(ctx, job.ID); err != nil {
		return stats, fmt.Errorf("failed to complete job: %w", err)
	}

	log.Printf("Job %s complete: processed=%d, failed=%d, total=%d, elapsed=%v",
		job.ID, stats.Processed, stats.Failed, len(job.Bindings), stats.Elapsed)
	return stats, nil
}

// flush writes one batch of records and reports progress. Records carrying a
// formula error count as failed; a failed write counts the whole batch as
// failed.
func (wp *WorkerPool) flush(ctx context.Context, job *entity.BatchJob, buffer []*entity.CalculationRecord, processed, failed *int64) {
	var ok, bad int64
	if _, err := wp.historyRepo.CreateBatch(ctx, buffer); err != nil {
		log.Printf("Failed to write %d records of job %s: %v", len(buffer), job.ID, err)
		bad = int64(len(buffer))
	} else {
		for _, rec := range buffer {
			if rec.Succeeded() {
				ok++
			} else {
				bad++
			}
		}
	}
	atomic.AddInt64(processed, ok)
	atomic.AddInt64(failed, bad)

	if err := wp.jobRepo.UpdateProgress(ctx, job.ID, ok, bad); err != nil {
		log.Printf("Failed to update progress of job %s: %v", job.ID, err)
	}
}

func (wp *WorkerPool) fail(job *entity.BatchJob, err error) error {
	if ferr := wp.jobRepo.Fail(context.Background(), job.ID, err.Error()); ferr != nil {
		log.Printf("Failed to mark job %s failed: %v", job.ID, ferr)
	}
	return err
}

// RunPending runs up to limit pending jobs one after another, oldest first.
// It returns the number of jobs run.
func (wp *WorkerPool) RunPending(ctx context.Context, limit int) (int, error) {
	jobs, err := wp.jobRepo.ListByStatus(ctx, entity.JobStatusPending, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending jobs: %w", err)
	}
	ran := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		if _, err := wp.Run(ctx, job); err != nil {
			log.Printf("Job %s failed: %v", job.ID, err)
			continue
		}
		ran++
	}
	return ran, nil
}
