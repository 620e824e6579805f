package main

import (
	"context"
	_ "embed"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/platformhq/licensing/internal/config"
	"github.com/platformhq/licensing/internal/logger"
	"github.com/platformhq/licensing/internal/postgres"
)

//go:embed schema.sql
var schema string

func main() {
	dryRun := flag.Bool("dry-run", false, "Print migration SQL without executing it")
	flag.Parse()

	if *dryRun {
		fmt.Print(schema)
		return
	}

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	logger.Infow("Connecting to database", "host", cfg.Postgres.Host)
	db, err := postgres.NewDB(cfg, logger)
	if err != nil {
		logger.Fatalw("Failed to connect to postgres", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Running database migrations...")
	err = db.WithTx(ctx, func(ctx context.Context) error {
		_, execErr := db.GetQuerier(ctx).ExecContext(ctx, schema)
		return execErr
	})
	if err != nil {
		logger.Fatalw("Migration failed", "error", err)
	}
	logger.Info("Migrations completed successfully")
}
