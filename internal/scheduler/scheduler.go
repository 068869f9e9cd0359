// Package scheduler fires ingestion runs and cleanup passes on a calendar
// cadence.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Kasperit/Price-Tracker/internal/ingest"
)

// Default schedules: ingestion on the 1st and 15th at 03:00, cleanup every
// night at 04:30. Occurrences that fall while the process is down are not
// replayed; the next scheduled run repairs the gap.
const (
	DefaultIngestSpec  = "0 3 1,15 * *"
	DefaultCleanupSpec = "30 4 * * *"
)

// Runner starts ingestion runs and cleanup passes. *ingest.Orchestrator
// implements it.
type Runner interface {
	Run(ctx context.Context, req ingest.RunRequest) (*ingest.RunSummary, error)
	Cleanup(ctx context.Context) (int64, error)
}

// Scheduler owns the process-wide cron timer. Created once at startup,
// stopped once at shutdown.
type Scheduler struct {
	runner      Runner
	ingestSpec  string
	cleanupSpec string
	sourceNames []string
	limit       int
	logger      *log.Logger

	cron         *cron.Cron
	ingestEntry  cron.EntryID
	cleanupEntry cron.EntryID
}

// Options for creating Scheduler.
type Options struct {
	// Required
	Runner Runner

	// Options
	IngestSpec  string   // cron spec for ingestion runs, defaults to DefaultIngestSpec
	CleanupSpec string   // cron spec for cleanup passes, defaults to DefaultCleanupSpec
	Sources     []string // sources each scheduled run covers; empty means all
	Limit       int      // per-source cap passed to scheduled runs; zero means no cap
	Logger      *log.Logger
}

// New creates a new Scheduler. Specs are validated by Start.
func New(opts Options) *Scheduler {
	ingestSpec := opts.IngestSpec
	if ingestSpec == "" {
		ingestSpec = DefaultIngestSpec
	}
	cleanupSpec := opts.CleanupSpec
	if cleanupSpec == "" {
		cleanupSpec = DefaultCleanupSpec
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		runner:      opts.Runner,
		ingestSpec:  ingestSpec,
		cleanupSpec: cleanupSpec,
		sourceNames: opts.Sources,
		limit:       opts.Limit,
		logger:      logger,
		cron:        cron.New(),
	}
}

// Start registers both jobs and begins firing them. Jobs receive ctx, so
// cancelling it aborts a run that is in flight. Call Start at most once.
func (s *Scheduler) Start(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.ingestSpec, func() { s.runIngest(ctx) })
	if err != nil {
		return fmt.Errorf("schedule ingestion %q: %w", s.ingestSpec, err)
	}
	s.ingestEntry = id

	id, err = s.cron.AddFunc(s.cleanupSpec, func() { s.runCleanup(ctx) })
	if err != nil {
		return fmt.Errorf("schedule cleanup %q: %w", s.cleanupSpec, err)
	}
	s.cleanupEntry = id

	s.cron.Start()
	s.logger.Printf("scheduler started: ingest %q, cleanup %q", s.ingestSpec, s.cleanupSpec)
	return nil
}

// Stop stops firing new jobs and waits for a job already running to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Printf("scheduler stopped")
}

// NextIngest returns the next scheduled ingestion time, zero before Start.
func (s *Scheduler) NextIngest() time.Time {
	return s.cron.Entry(s.ingestEntry).Next
}

// NextCleanup returns the next scheduled cleanup time, zero before Start.
func (s *Scheduler) NextCleanup() time.Time {
	return s.cron.Entry(s.cleanupEntry).Next
}

func (s *Scheduler) runIngest(ctx context.Context) {
	_, err := s.runner.Run(ctx, ingest.RunRequest{
		Trigger: ingest.TriggerSchedule,
		Sources: s.sourceNames,
		Limit:   s.limit,
	})
	switch {
	case errors.Is(err, ingest.ErrRunInProgress):
		s.logger.Printf("scheduled ingestion skipped: previous run still in flight")
	case err != nil:
		s.logger.Printf("scheduled ingestion failed: %v", err)
	}
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	if _, err := s.runner.Cleanup(ctx); err != nil {
		s.logger.Printf("scheduled cleanup failed: %v", err)
	}
}
