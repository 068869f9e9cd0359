// Package api exposes the daemon's command surface over HTTP: trigger an
// ingestion run or a cleanup pass, inspect status, scrape metrics. Product
// queries are served elsewhere; this surface only commands the pipeline.
package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Kasperit/Price-Tracker/internal/ingest"
	"github.com/Kasperit/Price-Tracker/internal/observability"
)

// Orchestrator is the subset of *ingest.Orchestrator the handlers use.
type Orchestrator interface {
	StartRun(ctx context.Context, req ingest.RunRequest) (string, error)
	Cleanup(ctx context.Context) (int64, error)
	Running() bool
	LastSummary() *ingest.RunSummary
}

// Schedule reports upcoming scheduled work. *scheduler.Scheduler implements
// it.
type Schedule interface {
	NextIngest() time.Time
	NextCleanup() time.Time
}

// Handler serves the command surface.
type Handler struct {
	orch      Orchestrator
	sched     Schedule
	baseCtx   context.Context
	logger    *log.Logger
	startedAt time.Time
}

// Options for creating Handler.
type Options struct {
	// Required
	Orchestrator Orchestrator

	// Options
	Schedule    Schedule        // next-run times for /status, may be nil
	BaseContext context.Context // background runs inherit it, defaults to context.Background()
	Logger      *log.Logger
}

// New creates a new Handler.
func New(opts Options) *Handler {
	baseCtx := opts.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		orch:      opts.Orchestrator,
		sched:     opts.Schedule,
		baseCtx:   baseCtx,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Register mounts all routes on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/status", h.status)
	r.GET("/metrics", gin.WrapH(observability.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/runs", h.triggerRun)
		v1.POST("/cleanup", h.triggerCleanup)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// StatusResponse is the JSON response for /status.
type StatusResponse struct {
	Status      string             `json:"status"`
	Uptime      string             `json:"uptime"`
	StartedAt   time.Time          `json:"started_at"`
	Running     bool               `json:"ingestion_running"`
	NextIngest  *time.Time         `json:"next_ingest,omitempty"`
	NextCleanup *time.Time         `json:"next_cleanup,omitempty"`
	LastRun     *ingest.RunSummary `json:"last_run,omitempty"`
}

func (h *Handler) status(c *gin.Context) {
	resp := StatusResponse{
		Status:    "running",
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		StartedAt: h.startedAt,
		Running:   h.orch.Running(),
		LastRun:   h.orch.LastSummary(),
	}
	if h.sched != nil {
		if next := h.sched.NextIngest(); !next.IsZero() {
			resp.NextIngest = &next
		}
		if next := h.sched.NextCleanup(); !next.IsZero() {
			resp.NextCleanup = &next
		}
	}
	c.JSON(http.StatusOK, resp)
}

type runRequest struct {
	Sources []string `json:"sources"`
	Limit   int      `json:"limit"`
}

// triggerRun starts an ingestion run in the background. An empty body runs
// every source. Responds 202 with the run id once the run is underway.
func (h *Handler) triggerRun(c *gin.Context) {
	var input runRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
			return
		}
	}

	runID, err := h.orch.StartRun(h.baseCtx, ingest.RunRequest{
		Trigger: ingest.TriggerManual,
		Sources: input.Sources,
		Limit:   input.Limit,
	})
	if err != nil {
		if errors.Is(err, ingest.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "a run is already in progress"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_id": runID})
}

// triggerCleanup prunes orphaned products synchronously.
func (h *Handler) triggerCleanup(c *gin.Context) {
	deleted, err := h.orch.Cleanup(c.Request.Context())
	if err != nil {
		h.logger.Printf("cleanup: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cleanup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}
