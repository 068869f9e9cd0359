// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	RunsTotal          *prometheus.CounterVec
	RunDuration        prometheus.Histogram
	ProductsCreated    *prometheus.CounterVec
	ProductsUpdated    *prometheus.CounterVec
	ProductsSkipped    *prometheus.CounterVec
	ProductsFailed     *prometheus.CounterVec
	ObservationsStored prometheus.Counter
	CatalogErrors      *prometheus.CounterVec

	// Source metrics
	ExtractionLatency *prometheus.HistogramVec
	URLsDiscovered    *prometheus.CounterVec

	// Cleanup metrics
	OrphansPruned prometheus.Counter

	// Health metrics
	LastSuccessfulRun     prometheus.Gauge
	LastSuccessfulCleanup prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "price_tracker"
	}

	return &Metrics{
		// Ingestion metrics
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Total number of ingestion runs by trigger and status",
		}, []string{"trigger", "status"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "run_duration_seconds",
			Help:      "Ingestion run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}),
		ProductsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "products_created_total",
			Help:      "Total number of products created by store",
		}, []string{"store"}),
		ProductsUpdated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "products_updated_total",
			Help:      "Total number of products updated by store",
		}, []string{"store"}),
		ProductsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "products_skipped_total",
			Help:      "Total number of delisted products skipped by store",
		}, []string{"store"}),
		ProductsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "products_failed_total",
			Help:      "Total number of products failed by store",
		}, []string{"store"}),
		ObservationsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "observations_stored_total",
			Help:      "Total number of price observations written",
		}),
		CatalogErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "catalog_errors_total",
			Help:      "Total number of unavailable catalogs by store",
		}, []string{"store"}),

		// Source metrics
		ExtractionLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sources",
			Name:      "extraction_latency_seconds",
			Help:      "Product extraction latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store"}),
		URLsDiscovered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sources",
			Name:      "urls_discovered_total",
			Help:      "Total number of product URLs discovered by store",
		}, []string{"store"}),

		// Cleanup metrics
		OrphansPruned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cleanup",
			Name:      "orphans_pruned_total",
			Help:      "Total number of orphaned products deleted",
		}),

		// Health metrics
		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful ingestion run",
		}),
		LastSuccessfulCleanup: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cleanup_timestamp",
			Help:      "Unix timestamp of last successful cleanup",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRun records a completed ingestion run.
func RecordRun(trigger, status string, durationSeconds float64) {
	DefaultMetrics.RunsTotal.WithLabelValues(trigger, status).Inc()
	DefaultMetrics.RunDuration.Observe(durationSeconds)
	if status == "ok" {
		DefaultMetrics.LastSuccessfulRun.Set(float64(time.Now().Unix()))
	}
}

// RecordSourceResult records per-store counters for one run.
func RecordSourceResult(store string, created, updated, skipped, failed int) {
	DefaultMetrics.ProductsCreated.WithLabelValues(store).Add(float64(created))
	DefaultMetrics.ProductsUpdated.WithLabelValues(store).Add(float64(updated))
	DefaultMetrics.ProductsSkipped.WithLabelValues(store).Add(float64(skipped))
	DefaultMetrics.ProductsFailed.WithLabelValues(store).Add(float64(failed))
	DefaultMetrics.ObservationsStored.Add(float64(created + updated))
}

// RecordCatalogError counts a store whose catalog could not be fetched.
func RecordCatalogError(store string) {
	DefaultMetrics.CatalogErrors.WithLabelValues(store).Inc()
}

// RecordDiscovery counts the product URLs a store listing produced.
func RecordDiscovery(store string, urls int) {
	DefaultMetrics.URLsDiscovered.WithLabelValues(store).Add(float64(urls))
}

// RecordExtraction records one product extraction latency.
func RecordExtraction(store string, seconds float64) {
	DefaultMetrics.ExtractionLatency.WithLabelValues(store).Observe(seconds)
}

// RecordCleanup records a completed orphan pruning pass.
func RecordCleanup(deleted int64) {
	DefaultMetrics.OrphansPruned.Add(float64(deleted))
	DefaultMetrics.LastSuccessfulCleanup.Set(float64(time.Now().Unix()))
}
