package api

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"LoadCast/internal/domain/models"
	"LoadCast/internal/service/metrics"
	xhttp "LoadCast/pkg/http"
	applogger "LoadCast/pkg/logger"
	"LoadCast/pkg/queue"
)

// Enqueuer accepts asynchronous jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error)
	Depth(ctx context.Context) (queue.Stats, error)
}

// JobsHandler queues forecast runs and anomaly scans on the Redis queue.
type JobsHandler struct {
	l     *applogger.Logger
	queue Enqueuer
	now   func() time.Time
}

func NewJobsHandler(l *applogger.Logger, q Enqueuer) *JobsHandler {
	metrics.Register()
	if l == nil {
		l = applogger.Nop()
	}
	return &JobsHandler{l: l, queue: q, now: func() time.Time { return time.Now().UTC() }}
}

func (h *JobsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/jobs")
	g.POST("/forecast", h.Forecast)
	g.POST("/anomalies", h.AnomalyScan)
	g.GET("/stats", h.Stats)
}

func (h *JobsHandler) Forecast(c echo.Context) error {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return invalid(c, "jobs_forecast", verr)
	}
	job := models.ForecastJob{ForecastRequest: *req, RequestID: requestID(c), RequestedAt: h.now()}
	return h.enqueue(c, models.JobTypeForecast, job.RequestID, job)
}

func (h *JobsHandler) AnomalyScan(c echo.Context) error {
	req := &models.AnomalyScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return invalid(c, "jobs_anomalies", verr)
	}
	job := models.AnomalyScanJob{AnomalyScanRequest: *req, RequestID: requestID(c), RequestedAt: h.now()}
	return h.enqueue(c, models.JobTypeAnomalyScan, job.RequestID, job)
}

func (h *JobsHandler) Stats(c echo.Context) error {
	st, err := h.queue.Depth(c.Request().Context())
	if err != nil {
		return failure(c, h.l, "jobs_stats", err)
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *JobsHandler) enqueue(c echo.Context, typ, reqID string, payload interface{}) error {
	id, err := h.queue.Enqueue(c.Request().Context(), typ, payload)
	if err != nil {
		if errors.Is(err, queue.ErrNotRunning) {
			return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("ERR_QUEUE", "job queue is not running"))
		}
		return failure(c, h.l, "jobs_enqueue", err)
	}
	metrics.JobsEnqueued.WithLabelValues(typ).Inc()
	h.l.Info("job queued", applogger.String("type", typ), applogger.String("job_id", id), applogger.String("request_id", reqID))
	return xhttp.AcceptedResponse(c, models.JobAccepted{JobID: id, Type: typ, QueuedAt: h.now(), RequestID: reqID})
}

// requestID reuses the caller's X-Request-ID or mints one.
func requestID(c echo.Context) string {
	if id := c.Request().Header.Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return uuid.NewString()
}
