// Package main runs the price tracker daemon: scheduled ingestion and
// cleanup plus the HTTP command surface (trigger, status, health, metrics).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Kasperit/Price-Tracker/internal/api"
	"github.com/Kasperit/Price-Tracker/internal/config"
	"github.com/Kasperit/Price-Tracker/internal/ingest"
	"github.com/Kasperit/Price-Tracker/internal/scheduler"
	"github.com/Kasperit/Price-Tracker/internal/sources"
	"github.com/Kasperit/Price-Tracker/internal/storage"
	"github.com/Kasperit/Price-Tracker/internal/storage/memory"
	"github.com/Kasperit/Price-Tracker/internal/storage/migrations"
	pgstore "github.com/Kasperit/Price-Tracker/internal/storage/postgres"
)

func main() {
	cfg := config.Load()

	// Parse flags (env vars as defaults)
	dbURL := flag.String("db-url", cfg.DatabaseURL, "PostgreSQL connection string")
	listenAddr := flag.String("listen-addr", cfg.ListenAddr, "HTTP listen address")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	scrapeCron := flag.String("scrape-cron", cfg.ScrapeCron, "Ingestion schedule (cron spec)")
	cleanupCron := flag.String("cleanup-cron", cfg.CleanupCron, "Cleanup schedule (cron spec)")
	workers := flag.Int("workers", cfg.ScrapeWorkers, "Extraction worker pool size per source")
	limit := flag.Int("limit", cfg.ScrapeLimit, "Per-source cap on discovered URLs (0 = unlimited)")
	timeout := flag.Duration("timeout", cfg.HTTPTimeout, "Per-request timeout for source calls")
	verbose := flag.Bool("verbose", cfg.Verbose, "Verbose output")
	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	if !*useMemory && *dbURL == "" {
		logger.Fatal("--db-url is required (use --use-memory for in-memory storage)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create repository
	repo, cleanup, err := createRepository(ctx, *dbURL, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create repository: %v", err)
	}
	defer cleanup()

	// Register sources and seed their store rows
	client := sources.NewClient(sources.WithTimeout(*timeout))
	registry := sources.NewRegistry(client)
	for _, ext := range registry.All() {
		def := ext.Source()
		if _, err := repo.EnsureStore(ctx, def.Name, def.BaseURL); err != nil {
			logger.Fatalf("Failed to seed store %s: %v", def.Name, err)
		}
	}
	logger.Printf("Registered sources: %v", registry.Names())

	ingestCfg := cfg.IngestConfig()
	ingestCfg.Workers = *workers
	orch := ingest.New(ingest.Options{
		Registry:   registry,
		Repository: repo,
		Config:     ingestCfg,
		Logger:     logger,
		Verbose:    *verbose,
	})

	sched := scheduler.New(scheduler.Options{
		Runner:      orch,
		IngestSpec:  *scrapeCron,
		CleanupSpec: *cleanupCron,
		Limit:       *limit,
		Logger:      logger,
	})
	if err := sched.Start(ctx); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}

	// HTTP command surface
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	api.New(api.Options{
		Orchestrator: orch,
		Schedule:     sched,
		BaseContext:  ctx,
		Logger:       logger,
	}).Register(router)

	httpServer := &http.Server{Addr: *listenAddr, Handler: router}
	go func() {
		logger.Printf("Starting HTTP server on %s", *listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("HTTP server error: %v", err)
		}
	}()

	// Channel to signal completion
	done := make(chan struct{})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP shutdown error: %v", err)
	}
	sched.Stop()
	close(done)

	logger.Println("Shutdown complete")
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
