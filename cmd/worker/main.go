package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ilramdhan/calc-suite/config"
	"github.com/ilramdhan/calc-suite/internal/infrastructure/persistence"
	"github.com/ilramdhan/calc-suite/internal/modules/calculator"
	"github.com/ilramdhan/calc-suite/pkg/database"
)

// pendingPerTick bounds the jobs claimed on one poll
const pendingPerTick = 10

func main() {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Printf("Starting worker service with %d workers and batch size %d",
		cfg.Worker.Count, cfg.Worker.BatchSize)

	// Database connection
	pool, err := database.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Initialize repositories
	calcRepo := persistence.NewCalculatorRepository(pool)
	historyRepo := persistence.NewHistoryRepository(pool)
	jobRepo := persistence.NewBatchJobRepository(pool)

	// Initialize formula engine and worker pool
	engine := cfg.Formula.Engine()
	workerPool := calculator.NewWorkerPool(engine, calcRepo, historyRepo, jobRepo, cfg.Worker.Count, cfg.Worker.BatchSize)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("Shutting down worker service...")
		cancel()
	}()

	log.Printf("Worker service ready. Polling for jobs every %v", cfg.Worker.PollInterval)

	ticker := time.NewTicker(cfg.Worker.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			startTime := time.Now()
			n, err := workerPool.RunPending(ctx, pendingPerTick)
			if err != nil {
				log.Printf("Failed to run pending jobs: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("Ran %d pending job(s) in %v", n, time.Since(startTime))
			}
		}
	}
}
