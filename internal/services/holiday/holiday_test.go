package holiday

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LoadCast/internal/domain/errs"
)

func TestStaticCalendar(t *testing.T) {
	c, err := NewStatic([]string{"2024-01-01", "2024-10-01"})
	require.NoError(t, err)
	assert.True(t, c.IsHoliday(time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC)))
	assert.False(t, c.IsHoliday(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)))

	_, err = NewStatic([]string{"2024-13-01"})
	assert.Error(t, err)
}

func TestHTTPProviderAndEnsure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/api/v3/PublicHolidays/2024/CN", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"date":"2024-05-01","localName":"劳动节","name":"Labour Day"}]`))
	}))
	defer srv.Close()

	c, err := NewStatic(nil)
	require.NoError(t, err)
	p := NewHTTPProvider(srv.URL, "CN", time.Second)
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, c.Ensure(context.Background(), p, from, to, nil))
	require.NoError(t, c.Ensure(context.Background(), p, from, to, nil))
	assert.True(t, c.IsHoliday(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "a loaded year is not fetched again")
}

type failingProvider struct{}

func (failingProvider) Holidays(context.Context, int) ([]time.Time, error) {
	return nil, errors.New("unreachable")
}

func TestEnsureFallsBackToStatic(t *testing.T) {
	c, err := NewStatic([]string{"2024-01-01"})
	require.NoError(t, err)
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err = c.Ensure(context.Background(), failingProvider{}, day, day, nil)
	assert.ErrorIs(t, err, errs.ErrUpstreamFeature)
	assert.True(t, c.IsHoliday(day))
}
