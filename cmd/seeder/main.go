package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"

	"github.com/ilramdhan/calc-suite/config"
	"github.com/ilramdhan/calc-suite/internal/domain/entity"
	"github.com/ilramdhan/calc-suite/internal/domain/repository"
	"github.com/ilramdhan/calc-suite/internal/infrastructure/persistence"
	"github.com/ilramdhan/calc-suite/internal/modules/calculator"
	"github.com/ilramdhan/calc-suite/pkg/database"
	"github.com/ilramdhan/calc-suite/pkg/formula"
)

var (
	calculatorCount = flag.Int("calculators", 1000, "Number of calculators to generate")
	historyCount    = flag.Int("history", 100, "Number of history records per calculator")
	batchSize       = flag.Int("batch", 5000, "Batch size for COPY operations")
	workerCount     = flag.Int("workers", 10, "Number of parallel workers")
	seed            = flag.Int64("seed", time.Now().UnixNano(), "Random seed for generated bindings")
)

func main() {
	flag.Parse()
	godotenv.Load()

	// Print header
	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║              CALC SUITE - DATA SEEDER                         ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Println()

	totalRecords := *calculatorCount * *historyCount
	log.Printf("Configuration:")
	log.Printf("  Calculators:     %d", *calculatorCount)
	log.Printf("  History/Calc:    %d", *historyCount)
	log.Printf("  Total Records:   %d", totalRecords)
	log.Printf("  Batch Size:      %d", *batchSize)
	log.Printf("  Workers:         %d", *workerCount)
	log.Printf("  CPU Cores:       %d", runtime.NumCPU())
	fmt.Println()

	templates, err := loadTemplates()
	if err != nil {
		log.Fatalf("Failed to load templates: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	ctx := context.Background()

	pool, err := database.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	engine := cfg.Formula.Engine()
	calcRepo := persistence.NewCalculatorRepository(pool)
	historyRepo := persistence.NewHistoryRepository(pool)
	svc := calculator.NewService(engine, calcRepo, historyRepo, persistence.NewBatchJobRepository(pool))

	overallStart := time.Now()
	var metrics PerformanceMetrics

	// Phase 1: Calculators
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	phaseStart := time.Now()
	calcs, err := seedCalculators(ctx, svc, calcRepo, templates)
	if err != nil {
		log.Fatalf("Failed to seed calculators: %v", err)
	}
	metrics.CalculatorTime = time.Since(phaseStart)

	// Phase 2: History
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	phaseStart = time.Now()
	written, failed := seedHistory(ctx, engine, historyRepo, calcs, templates)
	metrics.HistoryTime = time.Since(phaseStart)

	metrics.TotalTime = time.Since(overallStart)
	metrics.TotalCalculators = int64(len(calcs))
	metrics.TotalRecords = written
	metrics.FailedRecords = failed

	// Print performance summary
	printPerformanceSummary(metrics)
}

// PerformanceMetrics holds timing and throughput data
type PerformanceMetrics struct {
	TotalCalculators int64
	TotalRecords     int64
	FailedRecords    int64
	CalculatorTime   time.Duration
	HistoryTime      time.Duration
	TotalTime        time.Duration
}

func printPerformanceSummary(m PerformanceMetrics) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                  PERFORMANCE SUMMARY                          ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════════╣")
	fmt.Printf("║  %-20s %38v ║\n", "Total Time:", m.TotalTime.Round(time.Millisecond))
	fmt.Println("╠───────────────────────────────────────────────────────────────╣")
	fmt.Printf("║  %-20s %38v ║\n", "Calculators:", m.CalculatorTime.Round(time.Millisecond))
	fmt.Printf("║  %-20s %38v ║\n", "History:", m.HistoryTime.Round(time.Millisecond))
	fmt.Println("╠───────────────────────────────────────────────────────────────╣")
	fmt.Printf("║  %-20s %38s ║\n", "Total Calculators:", formatNumber(m.TotalCalculators))
	fmt.Printf("║  %-20s %38s ║\n", "Total Records:", formatNumber(m.TotalRecords))
	fmt.Printf("║  %-20s %38s ║\n", "Failed Evaluations:", formatNumber(m.FailedRecords))
	fmt.Println("╠───────────────────────────────────────────────────────────────╣")

	// Throughput
	if m.HistoryTime.Seconds() > 0 {
		recordsPerSec := float64(m.TotalRecords) / m.HistoryTime.Seconds()
		fmt.Printf("║  %-20s %34.0f /s ║\n", "Record Throughput:", recordsPerSec)
	}

	fmt.Println("╠───────────────────────────────────────────────────────────────╣")
	fmt.Printf("║  %-20s %35s MB ║\n", "Memory Allocated:", formatNumber(int64(memStats.Alloc/1024/1024)))
	fmt.Printf("║  %-20s %35s MB ║\n", "Total Allocated:", formatNumber(int64(memStats.TotalAlloc/1024/1024)))
	fmt.Printf("║  %-20s %35s MB ║\n", "Sys Memory:", formatNumber(int64(memStats.Sys/1024/1024)))
	fmt.Printf("║  %-20s %38d ║\n", "GC Cycles:", memStats.NumGC)
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
}

func formatNumber(n int64) string {
	str := fmt.Sprintf("%d", n)
	var result []rune
	for i, r := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, r)
	}
	return string(result)
}

// seedCalculators compiles copies of the templates round-robin and stores
// them with COPY. The i-th calculator comes from templates[i%len(templates)].
func seedCalculators(ctx context.Context, svc *calculator.Service, calcRepo repository.CalculatorRepository, templates []template) ([]*entity.Calculator, error) {
	log.Printf("Seeding %d calculators from %d templates...", *calculatorCount, len(templates))

	calcs, err := buildCalculators(svc, templates, *calculatorCount)
	if err != nil {
		return nil, err
	}
	for start := 0; start < len(calcs); start += *batchSize {
		end := min(start+*batchSize, len(calcs))
		if _, err := calcRepo.CreateBatch(ctx, calcs[start:end]); err != nil {
			return nil, fmt.Errorf("failed to insert calculators: %w", err)
		}
	}

	log.Printf("Created %d calculators", len(calcs))
	return calcs, nil
}

func buildCalculators(svc *calculator.Service, templates []template, count int) ([]*entity.Calculator, error) {
	calcs := make([]*entity.Calculator, 0, count)
	for i := 0; i < count; i++ {
		tpl := templates[i%len(templates)]
		calc, err := svc.Build(tpl.input(i/len(templates) + 1))
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", tpl.Name, err)
		}
		calcs = append(calcs, calc)
	}
	return calcs, nil
}

// seedHistory evaluates every calculator over random bindings in parallel
// and stores the records with COPY. Evaluation failures are stored too.
func seedHistory(ctx context.Context, engine *formula.Engine, historyRepo repository.HistoryRepository, calcs []*entity.Calculator, templates []template) (written, failed int64) {
	log.Println("Seeding calculation history...")

	total := int64(len(calcs) * *historyCount)
	calcChan := make(chan int, *workerCount*2)

	var (
		completed int64
		wg        sync.WaitGroup
	)

	// Progress reporter
	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c := atomic.LoadInt64(&completed)
				log.Printf("Progress: records=%d/%d (%.1f%%)", c, total, float64(c)/float64(total)*100)
			}
		}
	}()

	// Start workers
	for w := 0; w < *workerCount; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			rng := rand.New(rand.NewSource(*seed + int64(workerID)))
			buffer := make([]*entity.CalculationRecord, 0, *batchSize)

			flush := func() {
				if len(buffer) == 0 {
					return
				}
				n, err := historyRepo.CreateBatch(ctx, buffer)
				if err != nil {
					log.Printf("Worker %d: failed to insert history: %v", workerID, err)
				}
				atomic.AddInt64(&completed, n)
				buffer = buffer[:0]
			}

			for idx := range calcChan {
				calc := calcs[idx]
				tpl := templates[idx%len(templates)]
				recs, nFailed, err := evaluate(engine, calc, tpl, *historyCount, rng)
				if err != nil {
					log.Printf("Worker %d: calculator %s: %v", workerID, calc.ID, err)
					continue
				}
				atomic.AddInt64(&failed, nFailed)
				for _, rec := range recs {
					buffer = append(buffer, rec)
					if len(buffer) >= *batchSize {
						flush()
					}
				}
			}
			flush()
		}(w)
	}

	// Send work to workers
	for i := range calcs {
		calcChan <- i
	}
	close(calcChan)

	wg.Wait()
	close(stop)

	written = atomic.LoadInt64(&completed)
	log.Printf("Completed: %d history records created, %d failed evaluations", written, failed)
	return written, failed
}

// evaluate runs one calculator over n random binding sets
func evaluate(engine *formula.Engine, calc *entity.Calculator, tpl template, n int, rng *rand.Rand) ([]*entity.CalculationRecord, int64, error) {
	tree, err := engine.Parse(calc.Tokens)
	if err != nil {
		return nil, 0, err
	}
	cfg := engine.Config(formula.WithAngleMode(calc.AngleMode))

	var failed int64
	recs := make([]*entity.CalculationRecord, 0, n)
	for i := 0; i < n; i++ {
		vars := tpl.bindings(calc.Variables, rng)
		v, evalErr := formula.Evaluate(tree, vars, cfg)
		rec, err := calculator.NewRecord(calc.ID, nil, vars, v, evalErr)
		if err != nil {
			return nil, 0, err
		}
		if !rec.Succeeded() {
			failed++
		}
		recs = append(recs, rec)
	}
	return recs, failed, nil
}
