package http

import (
	"errors"
	"net/http"
	"reflect"

	"github.com/labstack/echo/v4"
)

// DataResponse writes the envelope with HTTP 200; statusCode goes in the body.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(http.StatusOK, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

// SuccessResponse writes a 200 envelope.
func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

// ListResponse writes rows with their count. A nil slice is sent as [].
func ListResponse(c echo.Context, rows interface{}, meta interface{}) error {
	total := 0
	if v := reflect.ValueOf(rows); v.Kind() == reflect.Slice {
		total = v.Len()
		if v.IsNil() {
			rows = reflect.MakeSlice(v.Type(), 0, 0).Interface()
		}
	}
	return DataResponse(c, http.StatusOK, &ListData{Rows: rows, Total: total, Meta: meta})
}

// AcceptedResponse acknowledges work handed to the job queue.
func AcceptedResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusAccepted, data)
}

// BadRequestResponse writes request validation failures.
func BadRequestResponse(c echo.Context, verrs []ValidationError) error {
	return DataResponse(c, http.StatusBadRequest, verrs)
}

// UnavailableResponse is the one envelope sent with a non-200 transport
// status, so load balancers probing /health see the failure.
func UnavailableResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusServiceUnavailable, APIResponse{
		Status:  http.StatusServiceUnavailable,
		Message: http.StatusText(http.StatusServiceUnavailable),
		Data:    data,
	})
}

// InternalServerErrorResponse writes internal server error.
func InternalServerErrorResponse(c echo.Context) error {
	return DataResponse(c, http.StatusInternalServerError, []*AppError{InternalError("Something went wrong")})
}

// AppErrorResponse writes application error response.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return DataResponse(c, appErr.Status, []*AppError{appErr})
	}
	return InternalServerErrorResponse(c)
}
