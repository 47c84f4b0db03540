package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/ilramdhan/calc-suite/config"
	"github.com/ilramdhan/calc-suite/internal/domain/repository"
	"github.com/ilramdhan/calc-suite/internal/handler"
	"github.com/ilramdhan/calc-suite/internal/infrastructure/memory"
	"github.com/ilramdhan/calc-suite/internal/infrastructure/persistence"
	"github.com/ilramdhan/calc-suite/internal/modules/calculator"
	"github.com/ilramdhan/calc-suite/pkg/database"
)

func main() {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	ctx := context.Background()

	// Repositories
	var (
		calcRepo    repository.CalculatorRepository
		historyRepo repository.HistoryRepository
		jobRepo     repository.BatchJobRepository
	)
	switch cfg.App.Storage {
	case "memory":
		log.Println("Using in-memory storage")
		calcRepo = memory.NewCalculatorRepository()
		historyRepo = memory.NewHistoryRepository()
		jobRepo = memory.NewBatchJobRepository()
	case "postgres":
		pool, err := database.NewPool(ctx, &cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer pool.Close()
		calcRepo = persistence.NewCalculatorRepository(pool)
		historyRepo = persistence.NewHistoryRepository(pool)
		jobRepo = persistence.NewBatchJobRepository(pool)
	default:
		log.Fatalf("Unknown STORAGE %q, expected postgres or memory", cfg.App.Storage)
	}

	// Formula engine, service and worker pool
	engine := cfg.Formula.Engine()
	svc := calculator.NewService(engine, calcRepo, historyRepo, jobRepo)
	workerPool := calculator.NewWorkerPool(engine, calcRepo, historyRepo, jobRepo, cfg.Worker.Count, cfg.Worker.BatchSize)

	var opts []handler.Option
	if cfg.Worker.Inline {
		opts = append(opts, handler.WithJobRunner(handler.InlineRunner(workerPool)))
	} else {
		log.Println("Batch jobs are left pending for the worker service")
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Calc Suite API",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    32 * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	handler.New(svc, opts...).Register(app)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		app.Shutdown()
	}()

	// Start server
	log.Printf("Starting API server on :%s (angle mode %s, cache %d)", cfg.App.Port, cfg.Formula.AngleMode, cfg.Formula.CacheSize)
	if err := app.Listen(":" + cfg.App.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
