package main

import (
	"context"
	"log"
	"os"
	"time"

	"csvinsight/adapters/sqlstore"
	"csvinsight/internal/config"
	"csvinsight/internal/migration"
)

// Standalone schema migration for deploy pipelines that do not ship the CLI.
func main() {
	if len(os.Args) < 3 {
		log.Fatal("Usage: migrate <postgres|sqlite> <dsn>")
	}

	cfg := config.HistoryConfig{Driver: os.Args[1], DSN: os.Args[2]}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := sqlstore.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	runner := migration.NewRunner(cfg.Driver)
	if err := runner.Run(ctx, db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("History schema at version %s", runner.Version())
}
