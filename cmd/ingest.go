package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/reelwise/reelwise/internal/app"
	"github.com/reelwise/reelwise/internal/config"
	"github.com/reelwise/reelwise/internal/log"
)

// runIngest indexes a directory of documents into the knowledge base.
func runIngest(logger log.Logger) error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: reelwise ingest <directory>")
	}
	dir := os.Args[2]

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("checking directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	stats, err := a.Ingestor.IngestDir(ctx, dir)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", dir, err)
	}

	fmt.Printf("Ingested %d documents (%d chunks) from %s\n", stats.Documents, stats.Chunks, dir)
	if stats.Failures > 0 {
		fmt.Printf("Skipped %d files, see log for details\n", stats.Failures)
	}
	return nil
}

// runSeed indexes the built-in starter documents.
func runSeed(logger log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	seeded, err := a.Seeder.SeedAll(ctx)
	if err != nil {
		return fmt.Errorf("seeding: %w", err)
	}

	fmt.Printf("Indexed %d built-in documents\n", seeded)
	return nil
}
