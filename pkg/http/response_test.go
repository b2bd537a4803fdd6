package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scanQuery struct {
	Sensitivity string `query:"sensitivity" default:"medium" validate:"oneof=low medium high"`
	TopN        int    `query:"top" default:"20" validate:"gte=1,lte=500"`
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func serve(t *testing.T, target string, h echo.HandlerFunc) (int, envelope) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), rec)
	require.NoError(t, h(c))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func TestReadAndValidateRequest(t *testing.T) {
	tests := []struct {
		target string
		code   string
		field  string
	}{
		{"/?sensitivity=extreme", "ERR_ONEOF", "sensitivity"},
		{"/?top=-1", "ERR_GTE", "top"},
		{"/?top=501", "ERR_LTE", "top"},
		{"/?top=many", "ERR_BIND", ""},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			var verrs []ValidationError
			serve(t, tt.target, func(c echo.Context) error {
				verrs = ReadAndValidateRequest(c, &scanQuery{})
				return SuccessResponse(c, nil)
			})
			require.Len(t, verrs, 1)
			assert.Equal(t, tt.code, verrs[0].Code)
			assert.Equal(t, tt.field, verrs[0].Field)
		})
	}

	req := &scanQuery{}
	serve(t, "/", func(c echo.Context) error {
		assert.Nil(t, ReadAndValidateRequest(c, req))
		return SuccessResponse(c, nil)
	})
	assert.Equal(t, "medium", req.Sensitivity)
	assert.Equal(t, 20, req.TopN)
}

func TestListResponse(t *testing.T) {
	var none []string
	code, env := serve(t, "/", func(c echo.Context) error {
		return ListResponse(c, none, map[string]int{"hits": 2})
	})
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"rows":[],"total":0,"meta":{"hits":2}}`, string(env.Data))

	_, env = serve(t, "/", func(c echo.Context) error {
		return ListResponse(c, []string{"north", "south"}, nil)
	})
	assert.JSONEq(t, `{"rows":["north","south"],"total":2}`, string(env.Data))
}

func TestErrorResponses(t *testing.T) {
	code, env := serve(t, "/", func(c echo.Context) error {
		return AppErrorResponse(c, NotFoundErrorf("no fitted models for %s", "east"))
	})
	assert.Equal(t, http.StatusOK, code, "the envelope carries the logical status")
	assert.Equal(t, http.StatusNotFound, env.Status)

	_, env = serve(t, "/", func(c echo.Context) error {
		return AppErrorResponse(c, errors.New("disk on fire"))
	})
	assert.Equal(t, http.StatusInternalServerError, env.Status)
	var list []AppError
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "ERR_INTERNAL", list[0].Code)
	assert.NotContains(t, list[0].Message, "disk")

	code, env = serve(t, "/", func(c echo.Context) error {
		return UnavailableResponse(c, map[string]string{"redis": "down"})
	})
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, http.StatusServiceUnavailable, env.Status)
}
