package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"LoadCast/internal/domain/errs"
	"LoadCast/internal/service/metrics"
	xhttp "LoadCast/pkg/http"
	applogger "LoadCast/pkg/logger"
)

// toAppError maps pipeline failures onto HTTP error codes. Unknown errors
// become ERR_INTERNAL.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var (
		insufficient *errs.InsufficientDataError
		capability   *errs.CapabilityUnavailableError
	)
	switch {
	case errors.As(err, &insufficient):
		return xhttp.UnprocessableError("ERR_INSUFFICIENT_DATA", err.Error()).
			WithParam("entity", insufficient.EntityID).
			WithParam("have", insufficient.Have).
			WithParam("need", insufficient.Need).
			WithError(err)
	case errors.Is(err, errs.ErrInsufficientData):
		return xhttp.UnprocessableError("ERR_INSUFFICIENT_DATA", err.Error()).WithError(err)
	case errors.Is(err, errs.ErrModelNotTrained):
		return xhttp.ConflictError("ERR_NOT_TRAINED", err.Error()).WithError(err)
	case errors.Is(err, errs.ErrModelLoad):
		return xhttp.NewAppError("ERR_MODEL_LOAD", "", err.Error(), http.StatusInternalServerError).WithError(err)
	case errors.As(err, &capability):
		return xhttp.ServiceUnavailableError("ERR_CAPABILITY", err.Error()).
			WithParam("capability", capability.Capability).
			WithError(err)
	case errors.Is(err, errs.ErrUpstreamFeature):
		return xhttp.FailedDependencyError("ERR_UPSTREAM_FEATURE", err.Error()).WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.ServiceUnavailableError("ERR_TIMEOUT", "request timed out").WithError(err)
	}
	return xhttp.InternalError("Something went wrong").WithError(err)
}

// failure logs err, counts it against endpoint and writes the mapped response.
func failure(c echo.Context, l *applogger.Logger, endpoint string, err error) error {
	appErr := toAppError(err)
	metrics.ObserveError(endpoint, appErr.Code)
	if appErr.Status >= 500 {
		l.Error(endpoint+" failed", applogger.String("code", appErr.Code), applogger.Error(err))
	} else {
		l.Warn(endpoint+" rejected", applogger.String("code", appErr.Code), applogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func invalid(c echo.Context, endpoint string, verr []xhttp.ValidationError) error {
	metrics.ObserveError(endpoint, "ERR_VALIDATION")
	return xhttp.BadRequestResponse(c, verr)
}
