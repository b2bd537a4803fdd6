package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"LoadCast/internal/domain/models"
	"LoadCast/internal/service/metrics"
	"LoadCast/internal/usecase"
	xhttp "LoadCast/pkg/http"
	applogger "LoadCast/pkg/logger"
)

// AnomalyHandler serves the batch anomaly report and the real-time alert check.
type AnomalyHandler struct {
	l       *applogger.Logger
	scanner *usecase.AnomalyScanner
}

func NewAnomalyHandler(l *applogger.Logger, scanner *usecase.AnomalyScanner) *AnomalyHandler {
	metrics.Register()
	if l == nil {
		l = applogger.Nop()
	}
	return &AnomalyHandler{l: l, scanner: scanner}
}

func (h *AnomalyHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/anomalies", h.Scan)
	g.GET("/anomalies/last", h.Last)
	g.GET("/alerts/realtime", h.RealTime)
}

func (h *AnomalyHandler) Scan(c echo.Context) error {
	const endpoint = "anomalies"
	defer metrics.ObserveSince(endpoint, time.Now())

	req := &models.AnomalyScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return invalid(c, endpoint, verr)
	}
	rep, err := h.scanner.Scan(c.Request().Context(), *req)
	if err != nil {
		return failure(c, h.l, endpoint, err)
	}
	return xhttp.SuccessResponse(c, rep)
}

// Last returns the report of the most recent scan without recomputing it.
func (h *AnomalyHandler) Last(c echo.Context) error {
	rep := h.scanner.Last()
	if rep == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no anomaly scan has run yet"))
	}
	return xhttp.SuccessResponse(c, rep)
}

func (h *AnomalyHandler) RealTime(c echo.Context) error {
	const endpoint = "alerts_realtime"
	defer metrics.ObserveSince(endpoint, time.Now())

	req := &models.RealTimeAlertRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return invalid(c, endpoint, verr)
	}
	res, err := h.scanner.RealTime(c.Request().Context(), *req)
	if err != nil {
		return failure(c, h.l, endpoint, err)
	}
	return xhttp.SuccessResponse(c, res)
}
