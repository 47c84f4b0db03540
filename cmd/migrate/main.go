package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/ilramdhan/calc-suite/config"
	"github.com/ilramdhan/calc-suite/pkg/database"
)

func main() {
	godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println("Usage: migrate <command> [-dir migrations]")
		fmt.Println("Commands: up, down [-steps n], status")
		os.Exit(1)
	}

	fs := flag.NewFlagSet(os.Args[1], flag.ExitOnError)
	dir := fs.String("dir", "migrations", "Directory holding the migration files")
	steps := fs.Int("steps", 1, "Number of migrations to roll back (down only)")
	fs.Parse(os.Args[2:])

	migrations, err := loadMigrations(*dir)
	if err != nil {
		log.Fatalf("Failed to load migrations: %v", err)
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

	// Ensure migrations table exists
	if err := ensureMigrationsTable(ctx, pool); err != nil {
		log.Fatalf("Failed to create migrations table: %v", err)
	}
	done, err := appliedVersions(ctx, pool)
	if err != nil {
		log.Fatalf("Failed to read applied migrations: %v", err)
	}

	switch os.Args[1] {
	case "up":
		todo := pendingUp(migrations, done)
		if len(todo) == 0 {
			log.Println("Database is up to date")
		}
		for _, m := range todo {
			log.Printf("Applying %s...", m.Name)
			if err := apply(ctx, pool, m.Up, "INSERT INTO schema_migrations (version) VALUES ($1)", m.Version); err != nil {
				log.Fatalf("Failed to apply %s: %v", m.Name, err)
			}
			log.Printf("Applied %s successfully", m.Version)
		}
	case "down":
		todo := toRollBack(migrations, done, *steps)
		if len(todo) == 0 {
			log.Println("No migrations to rollback")
		}
		for _, m := range todo {
			log.Printf("Rolling back %s...", m.Name)
			if err := apply(ctx, pool, m.Down, "DELETE FROM schema_migrations WHERE version = $1", m.Version); err != nil {
				log.Fatalf("Failed to rollback %s: %v", m.Name, err)
			}
			log.Printf("Rolled back %s successfully", m.Version)
		}
	case "status":
		fmt.Println("Migration Status:")
		fmt.Println("=================")
		for _, m := range migrations {
			status := "PENDING"
			if done[m.Version] {
				status = "APPLIED"
			}
			fmt.Printf("[%s] %s\n", status, m.Name)
		}
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func ensureMigrationsTable(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func appliedVersions(ctx context.Context, pool *pgxpool.Pool) (map[string]bool, error) {
	rows, err := pool.Query(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(versions))
	for _, v := range versions {
		done[v] = true
	}
	return done, nil
}

// apply runs a migration script and its bookkeeping statement in one
// transaction
func apply(ctx context.Context, pool *pgxpool.Pool, script, record, version string) error {
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, script); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, record, version)
		return err
	})
}
