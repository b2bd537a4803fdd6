package api

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"LoadCast/internal/domain/errs"
	"LoadCast/internal/domain/models"
	"LoadCast/internal/service/metrics"
	"LoadCast/internal/service/ratelimit"
	"LoadCast/internal/usecase"
	xhttp "LoadCast/pkg/http"
	applogger "LoadCast/pkg/logger"
)

// ForecastHandler serves forecasting, cross-validation and model registry endpoints.
type ForecastHandler struct {
	l        *applogger.Logger
	pipeline *usecase.ForecastPipeline
	rl       *ratelimit.Limiter
}

// NewForecastHandler creates the handler. rl throttles requests that may fit
// models, per client address; nil disables throttling.
func NewForecastHandler(l *applogger.Logger, pipeline *usecase.ForecastPipeline, rl *ratelimit.Limiter) *ForecastHandler {
	metrics.Register()
	if l == nil {
		l = applogger.Nop()
	}
	return &ForecastHandler{l: l, pipeline: pipeline, rl: rl}
}

func (h *ForecastHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/forecast", h.Forecast)
	g.GET("/forecast/cv", h.CrossValidate)
	g.GET("/forecast/quality", h.Quality)
	g.GET("/models", h.Models)
	g.GET("/models/:entity", h.Comparison)
	g.DELETE("/models/:entity", h.Evict)
}

func (h *ForecastHandler) Forecast(c echo.Context) error {
	const endpoint = "forecast"
	defer metrics.ObserveSince(endpoint, time.Now())

	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return invalid(c, endpoint, verr)
	}
	if verr := explicitBools(c, map[string]*bool{"ensemble": &req.Ensemble, "correct": &req.Correct}); verr != nil {
		return invalid(c, endpoint, verr)
	}
	if !h.allow(c) {
		return h.throttled(c, endpoint)
	}
	res, err := h.pipeline.Run(c.Request().Context(), *req)
	if err != nil {
		return failure(c, h.l, endpoint, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastHandler) CrossValidate(c echo.Context) error {
	const endpoint = "cross_validate"
	defer metrics.ObserveSince(endpoint, time.Now())

	req := &models.CrossValidateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return invalid(c, endpoint, verr)
	}
	if !h.allow(c) {
		return h.throttled(c, endpoint)
	}
	rep, err := h.pipeline.CrossValidate(c.Request().Context(), *req)
	if err != nil {
		return failure(c, h.l, endpoint, err)
	}
	return xhttp.SuccessResponse(c, rep)
}

func (h *ForecastHandler) Quality(c echo.Context) error {
	const endpoint = "quality"
	defer metrics.ObserveSince(endpoint, time.Now())

	req := &models.QualityRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return invalid(c, endpoint, verr)
	}
	rep, err := h.pipeline.Quality(c.Request().Context(), *req)
	if err != nil {
		return failure(c, h.l, endpoint, err)
	}
	return xhttp.SuccessResponse(c, rep)
}

type registryMeta struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// Models lists the entities with a fitted pipeline in memory.
func (h *ForecastHandler) Models(c echo.Context) error {
	st := h.pipeline.RegistryStats()
	return xhttp.ListResponse(c, h.pipeline.Trained(), registryMeta{Hits: st.Hits, Misses: st.Misses})
}

// Comparison answers 404 for an entity the registry does not hold.
func (h *ForecastHandler) Comparison(c echo.Context) error {
	entity := c.Param("entity")
	cmp, err := h.pipeline.Comparison(entity)
	if errors.Is(err, errs.ErrModelNotTrained) {
		metrics.ObserveError("comparison", "ERR_NOT_FOUND")
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no fitted models for %s", entity).WithParam("entity", entity))
	}
	if err != nil {
		return failure(c, h.l, "comparison", err)
	}
	return xhttp.SuccessResponse(c, cmp)
}

func (h *ForecastHandler) Evict(c echo.Context) error {
	entity := c.Param("entity")
	held, err := h.pipeline.Evict(entity)
	if err != nil {
		return failure(c, h.l, "evict", err)
	}
	if !held {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no fitted models for %s", entity))
	}
	h.l.Info("models evicted", applogger.String("entity", entity))
	return xhttp.SuccessResponse(c, map[string]string{"evicted": entity})
}

func (h *ForecastHandler) allow(c echo.Context) bool {
	return h.rl == nil || h.rl.Allow(c.RealIP()+":train")
}

func (h *ForecastHandler) throttled(c echo.Context, endpoint string) error {
	metrics.ObserveError(endpoint, "ERR_RATE_LIMITED")
	h.l.Warn(endpoint+" rate limited", applogger.String("remote", c.RealIP()))
	return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many training requests"))
}

// explicitBools re-reads boolean query parameters that were given explicitly.
// Default tags cannot tell an explicit false from an absent value.
func explicitBools(c echo.Context, fields map[string]*bool) []xhttp.ValidationError {
	for name, dst := range fields {
		raw := c.QueryParam(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return []xhttp.ValidationError{{
				Code:    "ERR_BOOLEAN",
				Field:   name,
				Message: name + " must be a boolean",
			}}
		}
		*dst = v
	}
	return nil
}
