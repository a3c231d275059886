package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edupage-sync/internal/service"
	appErrors "github.com/noah-isme/edupage-sync/pkg/errors"
	"github.com/noah-isme/edupage-sync/pkg/jobs"
	"github.com/noah-isme/edupage-sync/pkg/response"
)

// SyncJobType identifies sync cycle jobs on the queue.
const SyncJobType = "sync_cycle"

// TriggerManual marks cycles started over HTTP.
const TriggerManual = "manual"

type syncDispatcher interface {
	TryEnqueue(job jobs.Job) error
	Busy() bool
}

type reportSource interface {
	LastReport() (service.CycleReport, bool)
}

type metricsSnapshotter interface {
	Snapshot() service.MetricsSnapshot
}

// SyncHandler triggers and reports sync cycles.
type SyncHandler struct {
	queue   syncDispatcher
	reports reportSource
	metrics metricsSnapshotter
}

// NewSyncHandler constructs the handler.
func NewSyncHandler(queue syncDispatcher, reports reportSource, metrics metricsSnapshotter) *SyncHandler {
	return &SyncHandler{queue: queue, reports: reports, metrics: metrics}
}

type syncStatus struct {
	Busy       bool                     `json:"busy"`
	LastReport *service.CycleReport     `json:"last_report,omitempty"`
	Metrics    *service.MetricsSnapshot `json:"metrics,omitempty"`
}

// Trigger godoc
// @Summary Start a sync cycle now
// @Tags Sync
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /api/v1/sync [post]
func (h *SyncHandler) Trigger(c *gin.Context) {
	job := jobs.NewJob(SyncJobType, TriggerManual)
	if err := h.queue.TryEnqueue(job); err != nil {
		if errors.Is(err, jobs.ErrBusy) {
			response.Error(c, appErrors.ErrSyncBusy)
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "enqueue sync cycle"))
		return
	}
	response.Accepted(c, gin.H{"job_id": job.ID, "trigger": TriggerManual})
}

// Status godoc
// @Summary Last cycle report and sync counters
// @Tags Sync
// @Success 200 {object} response.Envelope
// @Router /api/v1/sync/status [get]
func (h *SyncHandler) Status(c *gin.Context) {
	status := syncStatus{Busy: h.queue.Busy()}
	if h.reports != nil {
		if report, ok := h.reports.LastReport(); ok {
			status.LastReport = &report
		}
	}
	if h.metrics != nil {
		snapshot := h.metrics.Snapshot()
		status.Metrics = &snapshot
	}
	response.JSON(c, http.StatusOK, status)
}
