// Package ingest drives ingestion runs across product sources.
// It coordinates: discovery → extraction → storage upsert
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/Kasperit/Price-Tracker/internal/domain"
	"github.com/Kasperit/Price-Tracker/internal/observability"
	"github.com/Kasperit/Price-Tracker/internal/runid"
	"github.com/Kasperit/Price-Tracker/internal/sources"
	"github.com/Kasperit/Price-Tracker/internal/storage"
)

// Default orchestration settings.
const (
	DefaultWorkers           = 4
	DefaultMaxRetries        = 3
	DefaultRetryDelay        = 1 * time.Second
	DefaultMaxRetryDelay     = 10 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// storeWriteTimeout bounds the repository write for a single snapshot.
const storeWriteTimeout = 10 * time.Second

// Run triggers. The scheduler passes TriggerSchedule, everything else
// counts as manual.
const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
)

// ErrRunInProgress is returned when every requested source already has an
// ingestion run in flight.
var ErrRunInProgress = errors.New("ingestion run already in progress")

// Registry resolves source names to extractors. *sources.Registry
// implements it.
type Registry interface {
	// Get returns the extractor registered under name, case-insensitively.
	Get(name string) (sources.Extractor, bool)

	// Names returns the registered source names in sorted order.
	Names() []string
}

// Config bounds concurrency and retry behavior for a run.
type Config struct {
	Workers           int           // extraction worker pool size per source
	MaxRetries        int           // retry attempts after the first failure
	RetryDelay        time.Duration // initial backoff delay
	MaxRetryDelay     time.Duration // backoff ceiling
	BackoffMultiplier float64       // backoff growth factor
}

// Orchestrator coordinates ingestion runs. Sources are processed one after
// another; products within a source are extracted by a bounded worker pool.
// A source with a run in flight rejects further runs until it finishes.
type Orchestrator struct {
	registry Registry
	repo     storage.Repository
	cfg      Config
	logger   *log.Logger
	verbose  bool

	mu          sync.Mutex
	active      map[string]bool
	lastSummary *RunSummary
}

// Options for creating Orchestrator.
type Options struct {
	// Required
	Registry   Registry
	Repository storage.Repository

	// Options
	Config  Config
	Logger  *log.Logger // defaults to log.Default()
	Verbose bool
}

// New creates a new Orchestrator. Zero-valued Config fields fall back to
// the Default constants.
func New(opts Options) *Orchestrator {
	cfg := opts.Config
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = DefaultMaxRetryDelay
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = DefaultBackoffMultiplier
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		registry: opts.Registry,
		repo:     opts.Repository,
		cfg:      cfg,
		logger:   logger,
		verbose:  opts.Verbose,
		active:   make(map[string]bool),
	}
}

// RunRequest selects what an ingestion run covers.
type RunRequest struct {
	Trigger string   // TriggerManual or TriggerSchedule; empty means manual
	Sources []string // source names; empty means every registered source
	Limit   int      // per-source cap on discovered URLs; zero means no cap
}

// RunSummary aggregates the outcome of one ingestion run.
type RunSummary struct {
	RunID      string           `json:"run_id"`
	Trigger    string           `json:"trigger"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Sources    []*SourceSummary `json:"sources"`
}

// Totals sums the per-source counters.
func (r *RunSummary) Totals() (created, updated, skipped, failed int) {
	for _, src := range r.Sources {
		created += src.Created
		updated += src.Updated
		skipped += src.Skipped
		failed += src.Failed
	}
	return created, updated, skipped, failed
}

// SourceSummary counts per-item outcomes for one source within a run.
// Err is set when the source as a whole could not run, for example when
// its catalog was unreachable.
type SourceSummary struct {
	Store      string `json:"store"`
	Discovered int    `json:"discovered"`
	Created    int    `json:"created"`
	Updated    int    `json:"updated"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	Err        string `json:"error,omitempty"`

	mu sync.Mutex
}

func (s *SourceSummary) addResult(created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if created {
		s.Created++
	} else {
		s.Updated++
	}
}

func (s *SourceSummary) addSkipped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Skipped++
}

func (s *SourceSummary) addFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Failed++
}

// Run executes one ingestion run for the requested sources. Sources that
// already have a run in flight are skipped; ErrRunInProgress is returned
// only when that leaves nothing to do. Item failures never fail the run,
// they are reported through the summary counters.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*RunSummary, error) {
	return o.run(ctx, req, nil)
}

// StartRun begins a run in the background. It blocks only until the
// requested sources are claimed, then returns the new run's id. The outcome
// is published through LastSummary and the logs.
func (o *Orchestrator) StartRun(ctx context.Context, req RunRequest) (string, error) {
	started := make(chan startSignal, 1)
	go func() {
		_, _ = o.run(ctx, req, started)
	}()
	sig := <-started
	return sig.runID, sig.err
}

// startSignal reports the claim outcome of a background run.
type startSignal struct {
	runID string
	err   error
}

func (o *Orchestrator) run(ctx context.Context, req RunRequest, started chan<- startSignal) (*RunSummary, error) {
	names := req.Sources
	if len(names) == 0 {
		names = o.registry.Names()
	}
	trigger := req.Trigger
	if trigger == "" {
		trigger = TriggerManual
	}

	exts := make([]sources.Extractor, 0, len(names))
	for _, name := range names {
		ext, ok := o.registry.Get(name)
		if !ok {
			err := fmt.Errorf("unknown source %q", name)
			if started != nil {
				started <- startSignal{err: err}
			}
			return nil, err
		}
		exts = append(exts, ext)
	}

	claimed, busy := o.claim(exts)
	if len(claimed) == 0 {
		if started != nil {
			started <- startSignal{err: ErrRunInProgress}
		}
		return nil, ErrRunInProgress
	}
	claimedNames := make([]string, 0, len(claimed))
	for _, ext := range claimed {
		claimedNames = append(claimedNames, ext.Source().Name)
	}
	defer o.release(claimedNames)

	startedAt := time.Now()
	summary := &RunSummary{
		RunID:     runid.New(startedAt, claimedNames),
		Trigger:   trigger,
		StartedAt: startedAt,
	}
	if started != nil {
		started <- startSignal{runID: summary.RunID}
	}
	o.logger.Printf("run %s: ingesting %s", summary.RunID, strings.Join(claimedNames, ", "))

	// Sources another run holds are rejected, never run concurrently.
	for _, name := range busy {
		summary.Sources = append(summary.Sources, &SourceSummary{Store: name, Err: "run already in progress"})
	}

	for _, ext := range claimed {
		if ctx.Err() != nil {
			break
		}
		src := o.runSource(ctx, ext, req.Limit)
		if src == nil {
			continue
		}
		summary.Sources = append(summary.Sources, src)
		observability.RecordSourceResult(src.Store, src.Created, src.Updated, src.Skipped, src.Failed)
	}

	summary.FinishedAt = time.Now()
	status := "ok"
	for _, src := range summary.Sources {
		if src.Err != "" {
			status = "partial"
			break
		}
	}
	if ctx.Err() != nil {
		status = "error"
	}
	observability.RecordRun(trigger, status, summary.FinishedAt.Sub(startedAt).Seconds())
	o.setLastSummary(summary)

	elapsed := summary.FinishedAt.Sub(startedAt).Round(time.Millisecond)
	if err := ctx.Err(); err != nil {
		o.logger.Printf("run %s: cancelled after %s", summary.RunID, elapsed)
		return summary, err
	}
	created, updated, skipped, failed := summary.Totals()
	o.logger.Printf("run %s: finished in %s: created=%d updated=%d skipped=%d failed=%d",
		summary.RunID, elapsed, created, updated, skipped, failed)
	return summary, nil
}

// runSource ingests one source end to end. Returns nil when the store is
// disabled, a summary with Err set when the source could not run at all.
func (o *Orchestrator) runSource(ctx context.Context, ext sources.Extractor, limit int) *SourceSummary {
	def := ext.Source()
	src := &SourceSummary{Store: def.Name}

	store, err := o.repo.EnsureStore(ctx, def.Name, def.BaseURL)
	if err != nil {
		src.Err = fmt.Sprintf("ensure store: %v", err)
		o.logger.Printf("source %s: ensure store: %v", def.Name, err)
		return src
	}
	if !store.IsActive {
		o.logger.Printf("source %s: store disabled, skipping", def.Name)
		return nil
	}

	var urls []string
	err = o.retry(ctx, func() error {
		var derr error
		urls, derr = ext.Discover(ctx, limit)
		return derr
	})
	if err != nil {
		// Catalog exhaustion aborts only this source's run.
		if !errors.Is(err, sources.ErrCatalogUnavailable) {
			err = fmt.Errorf("%w: %v", sources.ErrCatalogUnavailable, err)
		}
		src.Err = err.Error()
		observability.RecordCatalogError(def.Name)
		o.logger.Printf("source %s: %v", def.Name, err)
		return src
	}
	src.Discovered = len(urls)
	observability.RecordDiscovery(def.Name, len(urls))
	o.log("source %s: discovered %d product URLs", def.Name, len(urls))
	if len(urls) == 0 {
		return src
	}

	workers := o.cfg.Workers
	if workers > len(urls) {
		workers = len(urls)
	}
	urlCh := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for url := range urlCh {
				o.processItem(ctx, ext, store.ID, src, url)
			}
		}()
	}

feed:
	for _, url := range urls {
		select {
		case <-ctx.Done():
			break feed
		case urlCh <- url:
		}
	}
	close(urlCh)
	wg.Wait()
	return src
}

// processItem extracts one product URL and persists the snapshot.
func (o *Orchestrator) processItem(ctx context.Context, ext sources.Extractor, storeID int64, src *SourceSummary, url string) {
	start := time.Now()
	var snap *domain.Snapshot
	err := o.retry(ctx, func() error {
		var xerr error
		snap, xerr = ext.Extract(ctx, url)
		return xerr
	})
	observability.RecordExtraction(src.Store, time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, sources.ErrNotFound) {
			src.addSkipped()
			o.log("source %s: %s: product gone, skipping", src.Store, url)
			return
		}
		if ctx.Err() != nil {
			return
		}
		src.addFailed()
		o.logger.Printf("source %s: extract %s: %v", src.Store, url, err)
		return
	}

	// Extracted snapshots are stored even when the run is cancelled mid-flight.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
	defer cancel()
	res, err := o.repo.UpsertSnapshot(storeCtx, storeID, snap)
	if err != nil {
		src.addFailed()
		o.logger.Printf("source %s: store %s: %v", src.Store, url, err)
		return
	}
	src.addResult(res.Created)
	o.log("source %s: %s: stored product %d (created=%v)", src.Store, snap.ExternalID, res.ProductID, res.Created)
}

// retry runs op with exponential backoff. ErrNotFound and
// ErrCatalogUnavailable are permanent and returned without retrying.
func (o *Orchestrator) retry(ctx context.Context, op func() error) error {
	delay := o.cfg.RetryDelay
	var lastErr error
	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * o.cfg.BackoffMultiplier)
			if delay > o.cfg.MaxRetryDelay {
				delay = o.cfg.MaxRetryDelay
			}
		}
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, sources.ErrNotFound) || errors.Is(err, sources.ErrCatalogUnavailable) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// Cleanup deletes products that no longer have any price observations.
func (o *Orchestrator) Cleanup(ctx context.Context) (int64, error) {
	deleted, err := o.repo.PruneOrphans(ctx)
	if err != nil {
		return 0, fmt.Errorf("prune orphans: %w", err)
	}
	observability.RecordCleanup(deleted)
	if deleted > 0 {
		o.logger.Printf("cleanup: removed %d products without observations", deleted)
	}
	return deleted, nil
}

// LastSummary returns the most recently completed run, or nil when no run
// has finished since startup.
func (o *Orchestrator) LastSummary() *RunSummary {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastSummary
}

// Running reports whether any source currently has a run in flight.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.active) > 0
}

// claim marks the requested sources as running and returns the ones that
// were free, plus the names of those another run still holds.
func (o *Orchestrator) claim(exts []sources.Extractor) (claimed []sources.Extractor, busy []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, ext := range exts {
		name := ext.Source().Name
		key := strings.ToLower(name)
		if o.active[key] {
			o.logger.Printf("source %s: run already in progress, rejecting", name)
			busy = append(busy, name)
			continue
		}
		o.active[key] = true
		claimed = append(claimed, ext)
	}
	return claimed, busy
}

func (o *Orchestrator) release(names []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, name := range names {
		delete(o.active, strings.ToLower(name))
	}
}

func (o *Orchestrator) setLastSummary(s *RunSummary) {
	o.mu.Lock()
	o.lastSummary = s
	o.mu.Unlock()
}

func (o *Orchestrator) log(format string, args ...interface{}) {
	if o.verbose {
		o.logger.Printf(format, args...)
	}
}
