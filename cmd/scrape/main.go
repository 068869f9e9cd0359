// Package main runs one ingestion pass from the command line.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Kasperit/Price-Tracker/internal/config"
	"github.com/Kasperit/Price-Tracker/internal/ingest"
	"github.com/Kasperit/Price-Tracker/internal/sources"
	"github.com/Kasperit/Price-Tracker/internal/storage"
	"github.com/Kasperit/Price-Tracker/internal/storage/memory"
	"github.com/Kasperit/Price-Tracker/internal/storage/migrations"
	pgstore "github.com/Kasperit/Price-Tracker/internal/storage/postgres"
)

func main() {
	cfg := config.Load()

	// Parse flags (env vars as defaults)
	store := flag.String("store", "", "Source to ingest (empty = all)")
	limit := flag.Int("limit", cfg.ScrapeLimit, "Per-source cap on discovered URLs (0 = unlimited)")
	dbURL := flag.String("db-url", cfg.DatabaseURL, "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	workers := flag.Int("workers", cfg.ScrapeWorkers, "Extraction worker pool size per source")
	maxRetries := flag.Int("max-retries", cfg.MaxRetries, "Retry attempts after the first failure")
	retryDelay := flag.Duration("retry-delay", cfg.RetryDelay, "Initial backoff delay")
	timeout := flag.Duration("timeout", cfg.HTTPTimeout, "Per-request timeout for source calls")
	verbose := flag.Bool("verbose", cfg.Verbose, "Verbose output")
	asJSON := flag.Bool("json", false, "Print the run summary as JSON")
	flag.Parse()

	logger := log.New(os.Stderr, "[scrape] ", log.LstdFlags)

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling run...\n", sig)
		cancel()
	}()

	repo, cleanup, err := createRepository(ctx, *dbURL, *useMemory)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating repository: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	client := sources.NewClient(sources.WithTimeout(*timeout))
	registry := sources.NewRegistry(client)

	ingestCfg := cfg.IngestConfig()
	ingestCfg.Workers = *workers
	ingestCfg.MaxRetries = *maxRetries
	ingestCfg.RetryDelay = *retryDelay
	orch := ingest.New(ingest.Options{
		Registry:   registry,
		Repository: repo,
		Config:     ingestCfg,
		Logger:     logger,
		Verbose:    *verbose,
	})

	var names []string
	if *store != "" {
		names = []string{*store}
	}
	summary, err := orch.Run(ctx, ingest.RunRequest{Sources: names, Limit: *limit})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Run error: %v\n", err)
		if summary != nil {
			printSummary(summary, *asJSON)
		}
		os.Exit(1)
	}

	// Item-level failures are reported in the summary, not the exit code.
	printSummary(summary, *asJSON)
}

func printSummary(summary *ingest.RunSummary, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding summary: %v\n", err)
		}
		return
	}

	fmt.Printf("Run %s finished in %s\n", summary.RunID,
		summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))
	for _, src := range summary.Sources {
		if src.Err != "" {
			fmt.Printf("  %-20s error: %s\n", src.Store, src.Err)
			continue
		}
		fmt.Printf("  %-20s discovered=%d created=%d updated=%d skipped=%d failed=%d\n",
			src.Store, src.Discovered, src.Created, src.Updated, src.Skipped, src.Failed)
	}
	created, updated, skipped, failed := summary.Totals()
	fmt.Printf("Total: created=%d updated=%d skipped=%d failed=%d\n", created, updated, skipped, failed)
}

// createRepository connects the durable store and applies migrations.
func createRepository(ctx context.Context, dbURL string, useMemory bool) (storage.Repository, func(), error) {
	if useMemory {
		return memory.NewRepository(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}

	repo := pgstore.NewRepository(pool)
	return repo, func() { repo.Close() }, nil
}
