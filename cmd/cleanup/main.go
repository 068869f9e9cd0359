// Package main removes products that no longer have any price observations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Kasperit/Price-Tracker/internal/config"
	"github.com/Kasperit/Price-Tracker/internal/storage/migrations"
	pgstore "github.com/Kasperit/Price-Tracker/internal/storage/postgres"
)

func main() {
	cfg := config.Load()

	dbURL := flag.String("db-url", cfg.DatabaseURL, "PostgreSQL connection string")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	pool, err := pgstore.NewPool(ctx, *dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to postgres: %v\n", err)
		os.Exit(1)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		fmt.Fprintf(os.Stderr, "Error applying migrations: %v\n", err)
		os.Exit(1)
	}
	repo := pgstore.NewRepository(pool)
	defer repo.Close()

	deleted, err := repo.PruneOrphans(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error pruning orphans: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Removed %d products without observations\n", deleted)
}
