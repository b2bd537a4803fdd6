package tbats

import (
	"context"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LoadCast/internal/domain/errs"
	"LoadCast/internal/domain/models"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// weeklySeries returns 100 + 10·sin(2πi/7) + N(0, 5).
func weeklySeries(n int, seed int64) models.TimeSeries {
	rng := rand.New(rand.NewSource(seed))
	s := models.TimeSeries{EntityID: "north"}
	for i := 0; i < n; i++ {
		s.Dates = append(s.Dates, start.AddDate(0, 0, i))
		s.Values = append(s.Values, 100+10*math.Sin(2*math.Pi*float64(i)/7)+rng.NormFloat64()*5)
	}
	return s
}

func assertWellFormed(t *testing.T, series models.TimeSeries, fc models.Forecast, horizon int) {
	t.Helper()
	require.Len(t, fc.Rows, horizon)
	for i, r := range fc.Rows {
		assert.Equal(t, series.End().AddDate(0, 0, i+1), r.Date, "row %d", i)
		assert.LessOrEqual(t, r.Lower, r.Point, "row %d", i)
		assert.LessOrEqual(t, r.Point, r.Upper, "row %d", i)
		assert.False(t, math.IsNaN(r.Point), "row %d", i)
	}
}

func TestFitPredictWeeklyScenario(t *testing.T) {
	series := weeklySeries(100, 1)
	m, err := Fit(series, DefaultConfig())
	require.NoError(t, err)
	assert.False(t, m.Simulated)
	assert.Len(t, m.Fitted(), 100)
	assert.Len(t, m.Residuals(), 100)

	fc, err := m.Predict(30, 0.95)
	require.NoError(t, err)
	assertWellFormed(t, series, fc, 30)
	assert.Equal(t, SourceTag, fc.Source)

	// the weekly cycle carries into the forecast
	assert.InDelta(t, 100, fc.Rows[0].Point, 25)

	sum := m.Summary()
	require.NotNil(t, sum.AIC)
	require.NotNil(t, sum.BIC)
	assert.Greater(t, *sum.BIC, *sum.AIC)
	assert.Equal(t, ModelType, sum.ModelType)
}

func TestPredictIsIdempotent(t *testing.T) {
	m, err := Fit(weeklySeries(120, 2), DefaultConfig())
	require.NoError(t, err)
	a, err := m.Predict(14, 0.9)
	require.NoError(t, err)
	b, err := m.Predict(14, 0.9)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestIntervalWidthUsesNormalQuantile(t *testing.T) {
	m, err := Fit(weeklySeries(90, 3), DefaultConfig())
	require.NoError(t, err)
	fc, err := m.Predict(1, 0.95)
	require.NoError(t, err)
	half := fc.Rows[0].Upper - fc.Rows[0].Point
	assert.InDelta(t, 1.959964*m.sigma, half, 1e-4)
	assert.InDelta(t, 1.959964, zScore(0.95), 1e-5)
}

func TestDampedTrendAndNoARMA(t *testing.T) {
	series := weeklySeries(80, 4)
	for i := range series.Values {
		series.Values[i] += float64(i) * 0.5
	}
	cfg := Config{SeasonalPeriods: []int{7}, UseTrend: true, UseDampedTrend: true}
	m, err := Fit(series, cfg)
	require.NoError(t, err)
	assert.Equal(t, armaNone, m.ARMA.Kind)
	assert.Less(t, m.Smooth.Phi, 1.0)

	fc, err := m.Predict(10, 0.8)
	require.NoError(t, err)
	assertWellFormed(t, series, fc, 10)
}

func TestNonPositiveSeriesKeepsIdentityTransform(t *testing.T) {
	series := weeklySeries(60, 5)
	series.Values[10] = -4
	m, err := Fit(series, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.Lambda)
}

func TestFitRejectsShortSeries(t *testing.T) {
	_, err := Fit(weeklySeries(5, 1), DefaultConfig())
	assert.ErrorIs(t, err, errs.ErrInsufficientData)
}

func TestEvaluate(t *testing.T) {
	m, err := Fit(weeklySeries(100, 6), DefaultConfig())
	require.NoError(t, err)
	ev := m.Evaluate()
	assert.InDelta(t, ev.RMSE*ev.RMSE, ev.MSE, 1e-9)
	assert.LessOrEqual(t, ev.MAE, ev.RMSE)
	assert.Greater(t, ev.MAPE, 0.0)
	assert.Less(t, ev.MAPE, 20.0)
	assert.NotNil(t, ev.AIC)
}

type noCaps struct{}

func (noCaps) Available(string) bool { return false }

func TestSimulatedFallback(t *testing.T) {
	series := weeklySeries(60, 7)
	f := NewForecaster(DefaultConfig(), noCaps{}, nil)
	require.True(t, f.Simulated())

	_, err := f.Predict(5, 0.95)
	require.ErrorIs(t, err, errs.ErrModelNotTrained)

	sum, err := f.Fit(context.Background(), series)
	require.NoError(t, err)
	assert.True(t, sum.Simulated)
	assert.Equal(t, SimulatedModelType, sum.ModelType)
	assert.Nil(t, sum.AIC)

	a, err := f.Predict(21, 0.95)
	require.NoError(t, err)
	assertWellFormed(t, series, a, 21)
	assert.True(t, a.Simulated)
	assert.Equal(t, SimulatedSourceTag, a.Rows[0].Source)

	// a fresh fit with the same seed reproduces the same output
	g := NewForecaster(DefaultConfig(), noCaps{}, nil)
	_, err = g.Fit(context.Background(), series)
	require.NoError(t, err)
	b, err := g.Predict(21, 0.95)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	ra, _ := f.Residuals()
	rb, _ := g.Residuals()
	assert.Equal(t, ra, rb)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	series := weeklySeries(100, 9)
	dir := t.TempDir()
	for _, simulated := range []bool{false, true} {
		cfg := DefaultConfig()
		cfg.Simulated = simulated
		m, err := Fit(series, cfg)
		require.NoError(t, err)

		path := filepath.Join(dir, "north.lcst")
		require.NoError(t, m.Save(path))
		loaded, err := Load(path)
		require.NoError(t, err)

		want, err := m.Predict(14, 0.9)
		require.NoError(t, err)
		got, err := loaded.Predict(14, 0.9)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, m.Summary(), loaded.Summary())
		assert.Equal(t, m.Residuals(), loaded.Residuals())
	}
}

func TestLoadFailureKeepsForecasterState(t *testing.T) {
	dir := t.TempDir()
	f := NewForecaster(DefaultConfig(), nil, nil)

	err := f.Load(filepath.Join(dir, "missing.lcst"))
	assert.ErrorIs(t, err, errs.ErrModelLoad)
	_, err = f.Model()
	assert.ErrorIs(t, err, errs.ErrModelNotTrained)
	assert.ErrorIs(t, f.Save(filepath.Join(dir, "x.lcst")), errs.ErrModelNotTrained)

	series := weeklySeries(60, 4)
	_, err = f.Fit(context.Background(), series)
	require.NoError(t, err)
	before, _ := f.Predict(7, 0.95)

	corrupt := filepath.Join(dir, "corrupt.lcst")
	require.NoError(t, os.WriteFile(corrupt, []byte("LCST\x01not-a-model"), 0o644))
	assert.ErrorIs(t, f.Load(corrupt), errs.ErrModelLoad)
	after, err := f.Predict(7, 0.95)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	saved := filepath.Join(dir, "ok.lcst")
	require.NoError(t, f.Save(saved))
	other := NewForecaster(DefaultConfig(), nil, nil)
	require.NoError(t, other.Load(saved))
	got, err := other.Predict(7, 0.95)
	require.NoError(t, err)
	assert.Equal(t, before, got)
}
