package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"DATABASE_URL", "LISTEN_ADDR", "SCRAPE_CRON", "CLEANUP_CRON",
		"SCRAPE_WORKERS", "MAX_RETRIES", "RETRY_DELAY", "MAX_RETRY_DELAY",
		"BACKOFF_MULTIPLIER", "HTTP_TIMEOUT", "SCRAPE_LIMIT", "VERBOSE",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.DatabaseURL != DefaultDatabaseURL {
		t.Errorf("unexpected database URL default: %s", cfg.DatabaseURL)
	}
	if cfg.ListenAddr != ":8000" {
		t.Errorf("unexpected listen address default: %s", cfg.ListenAddr)
	}
	if cfg.ScrapeCron != "0 3 1,15 * *" {
		t.Errorf("unexpected scrape cron default: %s", cfg.ScrapeCron)
	}
	if cfg.CleanupCron != "30 4 * * *" {
		t.Errorf("unexpected cleanup cron default: %s", cfg.CleanupCron)
	}
	if cfg.ScrapeWorkers != 4 || cfg.MaxRetries != 3 {
		t.Errorf("unexpected pool defaults: workers=%d retries=%d", cfg.ScrapeWorkers, cfg.MaxRetries)
	}
	if cfg.RetryDelay != time.Second || cfg.MaxRetryDelay != 10*time.Second {
		t.Errorf("unexpected delay defaults: %v / %v", cfg.RetryDelay, cfg.MaxRetryDelay)
	}
	if cfg.BackoffMultiplier != 2.0 {
		t.Errorf("unexpected backoff multiplier default: %v", cfg.BackoffMultiplier)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("unexpected HTTP timeout default: %v", cfg.HTTPTimeout)
	}
	if cfg.ScrapeLimit != 0 || cfg.Verbose {
		t.Errorf("unexpected defaults: limit=%d verbose=%v", cfg.ScrapeLimit, cfg.Verbose)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://app@db:5432/prod")
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("SCRAPE_CRON", "0 6 * * *")
	t.Setenv("CLEANUP_CRON", "0 5 * * 0")
	t.Setenv("SCRAPE_WORKERS", "8")
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("RETRY_DELAY", "250ms")
	t.Setenv("MAX_RETRY_DELAY", "30s")
	t.Setenv("BACKOFF_MULTIPLIER", "1.5")
	t.Setenv("HTTP_TIMEOUT", "1m")
	t.Setenv("SCRAPE_LIMIT", "100")
	t.Setenv("VERBOSE", "yes")

	cfg := Load()
	if cfg.DatabaseURL != "postgres://app@db:5432/prod" {
		t.Errorf("database URL override lost: %s", cfg.DatabaseURL)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("listen address override lost: %s", cfg.ListenAddr)
	}
	if cfg.ScrapeCron != "0 6 * * *" || cfg.CleanupCron != "0 5 * * 0" {
		t.Errorf("cron overrides lost: %s / %s", cfg.ScrapeCron, cfg.CleanupCron)
	}
	if cfg.ScrapeWorkers != 8 || cfg.MaxRetries != 5 || cfg.ScrapeLimit != 100 {
		t.Errorf("int overrides lost: %+v", cfg)
	}
	if cfg.RetryDelay != 250*time.Millisecond || cfg.MaxRetryDelay != 30*time.Second || cfg.HTTPTimeout != time.Minute {
		t.Errorf("duration overrides lost: %+v", cfg)
	}
	if cfg.BackoffMultiplier != 1.5 {
		t.Errorf("float override lost: %v", cfg.BackoffMultiplier)
	}
	if !cfg.Verbose {
		t.Error("verbose override lost")
	}
}

func TestIngestConfig(t *testing.T) {
	cfg := Config{
		ScrapeWorkers:     2,
		MaxRetries:        1,
		RetryDelay:        time.Millisecond,
		MaxRetryDelay:     time.Second,
		BackoffMultiplier: 3.0,
	}
	ic := cfg.IngestConfig()
	if ic.Workers != 2 || ic.MaxRetries != 1 || ic.BackoffMultiplier != 3.0 {
		t.Errorf("unexpected mapping: %+v", ic)
	}
	if ic.RetryDelay != time.Millisecond || ic.MaxRetryDelay != time.Second {
		t.Errorf("unexpected delays: %+v", ic)
	}
}

func TestEnvParsingFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SCRAPE_WORKERS", "plenty")
	t.Setenv("RETRY_DELAY", "soonish")
	t.Setenv("BACKOFF_MULTIPLIER", "aggressive")
	t.Setenv("VERBOSE", "maybe")

	cfg := Load()
	if cfg.ScrapeWorkers != 4 {
		t.Errorf("expected default workers, got %d", cfg.ScrapeWorkers)
	}
	if cfg.RetryDelay != time.Second {
		t.Errorf("expected default retry delay, got %v", cfg.RetryDelay)
	}
	if cfg.BackoffMultiplier != 2.0 {
		t.Errorf("expected default multiplier, got %v", cfg.BackoffMultiplier)
	}
	if cfg.Verbose {
		t.Error("expected default verbose=false")
	}
}

func TestEnvBoolVariants(t *testing.T) {
	for _, v := range []string{"1", "true", "t", "yes", "y", "on", "TRUE", "On"} {
		t.Setenv("VERBOSE", v)
		if !Load().Verbose {
			t.Errorf("expected %q to parse as true", v)
		}
	}
	for _, v := range []string{"0", "false", "f", "no", "n", "off", "FALSE"} {
		t.Setenv("VERBOSE", v)
		if Load().Verbose {
			t.Errorf("expected %q to parse as false", v)
		}
	}
}
