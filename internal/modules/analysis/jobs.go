package analysis

import (
	"context"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pdplens/pdplens/api"
	"github.com/pdplens/pdplens/internal/middleware"
	"github.com/pdplens/pdplens/internal/pkg/metrics"
	"github.com/pdplens/pdplens/internal/pkg/response"
	"github.com/pdplens/pdplens/internal/pkg/taskqueue"
	"go.uber.org/zap"
)

const taskTypeFullAnalysis = "full_analysis"

// JobsHandler runs full analyses in the background for clients that do not
// want to hold a connection open for several minutes. Jobs are scoped to the
// submitting user and duplicate submissions collapse onto the running job.
type JobsHandler struct {
	svc     *Service
	variant Variant
	tasks   *taskqueue.Service
	logger  *zap.Logger
	metrics *metrics.Manager
}

// JobsOption configures a JobsHandler.
type JobsOption func(*JobsHandler)

// WithJobsLogger sets the logger for the jobs handler.
func WithJobsLogger(l *zap.Logger) JobsOption {
	return func(h *JobsHandler) {
		if l != nil {
			h.logger = l.Named("AnalysisJobs")
		}
	}
}

// WithJobsMetrics sets the metrics manager for the jobs handler.
func WithJobsMetrics(m *metrics.Manager) JobsOption {
	return func(h *JobsHandler) {
		if m != nil {
			h.metrics = m
		}
	}
}

func NewJobsHandler(svc *Service, variant Variant, tasks *taskqueue.Service, opts ...JobsOption) *JobsHandler {
	h := &JobsHandler{
		svc:     svc,
		variant: variant,
		tasks:   tasks,
		logger:  zap.NewNop(),
		metrics: metrics.Default(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *JobsHandler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/analysis/jobs", authMW)
	g.POST("", h.submit)
	g.GET("/:id", h.get)
}

// POST /analysis/jobs
func (h *JobsHandler) submit(c *gin.Context) {
	req, ok := bindRequest(c)
	if !ok {
		return
	}
	if req.SourceURL == "" {
		response.UnprocessableEntity(c, "source_url is required")
		return
	}

	userID := middleware.CurrentUserID(c)
	dedupKey := userID + "|" + normalizeSourceURL(req.SourceURL)

	task, created, err := h.tasks.Enqueue(c.Request.Context(), taskTypeFullAnalysis, req, dedupKey, userID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if !created {
		response.OK(c, task)
		return
	}

	h.metrics.JobStarted()
	go h.run(task.ID, userID, req)
	response.Created(c, task)
}

// GET /analysis/jobs/:id
func (h *JobsHandler) get(c *gin.Context) {
	task, err := h.tasks.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if task == nil || task.Owner != middleware.CurrentUserID(c) {
		response.NotFound(c, "job not found")
		return
	}
	response.OK(c, task)
}

// run executes one job to completion. It deliberately detaches from the
// request context; the job keeps going after the submitter disconnects and
// is bounded by the variant budgets alone.
func (h *JobsHandler) run(taskID, userID string, req api.AnalysisRequest) {
	ctx := context.Background()

	if err := h.tasks.UpdateStatus(ctx, taskID, taskqueue.TaskRunning, nil, ""); err != nil {
		h.logger.Warn("job status update failed", zap.String("task", taskID), zap.Error(err))
	}

	combined := h.svc.Full(ctx, h.variant, userID, req)

	status := taskqueue.TaskCompleted
	outcome := "completed"
	if !combined.Success {
		status = taskqueue.TaskFailed
		outcome = "failed"
	}
	if err := h.tasks.UpdateStatus(ctx, taskID, status, combined, combined.Error); err != nil {
		h.logger.Warn("job result update failed", zap.String("task", taskID), zap.Error(err))
	}
	h.metrics.JobFinished(outcome)
}

// normalizeSourceURL canonicalizes a URL just enough for duplicate detection.
// Unparseable values are used as submitted; submission never fails on shape.
func normalizeSourceURL(raw string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return trimmed
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	return u.String()
}
