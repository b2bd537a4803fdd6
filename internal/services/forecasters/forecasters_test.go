package forecasters

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LoadCast/internal/domain/errs"
	"LoadCast/internal/domain/models"
	"LoadCast/internal/domain/service"
	"LoadCast/internal/services/capability"
)

var start = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

func seasonalSeries(n int) models.TimeSeries {
	rng := rand.New(rand.NewSource(11))
	s := models.TimeSeries{EntityID: "east"}
	for i := 0; i < n; i++ {
		s.Dates = append(s.Dates, start.AddDate(0, 0, i))
		s.Values = append(s.Values, 200+0.3*float64(i)+15*math.Sin(2*math.Pi*float64(i)/7)+rng.NormFloat64()*3)
	}
	return s
}

func checkForecast(t *testing.T, series models.TimeSeries, fc models.Forecast, horizon int, source string) {
	t.Helper()
	require.Len(t, fc.Rows, horizon)
	for i, r := range fc.Rows {
		assert.Equal(t, series.End().AddDate(0, 0, i+1), r.Date)
		assert.LessOrEqual(t, r.Lower, r.Point)
		assert.LessOrEqual(t, r.Point, r.Upper)
		assert.Equal(t, source, r.Source)
	}
}

func TestEachKindFitsAndPredicts(t *testing.T) {
	series := seasonalSeries(120)
	cases := []service.Forecaster{NewAdditive(nil), NewSARIMA(DefaultSARIMAOrder()), NewSequence(DefaultLookBack)}
	for _, f := range cases {
		t.Run(string(f.Kind()), func(t *testing.T) {
			_, err := f.Predict(3, 0.95)
			require.ErrorIs(t, err, errs.ErrModelNotTrained)

			sum, err := f.Fit(context.Background(), series)
			require.NoError(t, err)
			assert.Equal(t, f.Kind(), sum.Kind)

			fc, err := f.Predict(14, 0.9)
			require.NoError(t, err)
			checkForecast(t, series, fc, 14, string(f.Kind()))
			for _, r := range fc.Rows {
				assert.InDelta(t, 240, r.Point, 100)
			}

			rs, ok := f.(service.ResidualSource)
			require.True(t, ok)
			res, err := rs.Residuals()
			require.NoError(t, err)
			assert.Len(t, res, series.Len())
		})
	}
}

func TestShortSeriesIsInsufficient(t *testing.T) {
	short := seasonalSeries(30)
	_, err := NewSARIMA(DefaultSARIMAOrder()).Fit(context.Background(), short)
	assert.ErrorIs(t, err, errs.ErrInsufficientData)
	assert.Equal(t, "east", errs.EntityOf(err))
}

type failing struct{}

func (failing) Kind() models.ModelKind { return models.KindAdditive }
func (failing) Fit(context.Context, models.TimeSeries) (*models.FitSummary, error) {
	return nil, errors.New("solver diverged")
}
func (failing) Predict(int, float64) (models.Forecast, error) { return models.Forecast{}, nil }

type recorder struct {
	mu    sync.Mutex
	calls map[string]bool
}

func (r *recorder) RecordFit(kind string, _ float64, ok bool) {
	r.mu.Lock()
	r.calls[kind] = ok
	r.mu.Unlock()
}

func TestTrainAllRecordsEveryOutcome(t *testing.T) {
	caps := capability.Static(map[string]bool{capability.ARIMA: false})
	factories := Factories(DefaultOptions(), caps, nil)
	factories[models.KindAdditive] = func() service.Forecaster { return failing{} }
	rec := &recorder{calls: map[string]bool{}}
	suite := NewSuite(factories, caps, WithFitObserver(rec))

	assert.Equal(t, []models.ModelKind{models.KindSeasonalTrend, models.KindAdditive, models.KindSequence}, suite.Available())

	series := seasonalSeries(100)
	results := suite.TrainAll(context.Background(), series)
	require.Len(t, results, 4)

	assert.True(t, results[models.KindSeasonalTrend].Success)
	assert.True(t, results[models.KindSequence].Success)
	assert.False(t, results[models.KindAdditive].Success)
	assert.Contains(t, results[models.KindAdditive].Error, "solver diverged")
	assert.True(t, results[models.KindARIMA].Skipped)
	assert.Contains(t, results[models.KindARIMA].Error, "unavailable")

	assert.Equal(t, map[string]bool{"seasonal-trend": true, "additive-regression": false, "sequence-regressor": true}, rec.calls)

	fc, err := suite.PredictSingle(models.KindSequence, 7, 0.95)
	require.NoError(t, err)
	checkForecast(t, series, fc, 7, string(models.KindSequence))

	_, err = suite.PredictSingle(models.KindARIMA, 7, 0.95)
	assert.ErrorIs(t, err, errs.ErrCapabilityUnavailable)
	_, err = suite.PredictSingle(models.KindAdditive, 7, 0.95)
	assert.ErrorIs(t, err, errs.ErrModelNotTrained)
}

func TestSeasonalTrendFallsBackWhenUnavailable(t *testing.T) {
	caps := capability.Static(map[string]bool{capability.SeasonalTrend: false})
	suite := NewSuite(Factories(DefaultOptions(), caps, nil), caps)
	assert.Contains(t, suite.Available(), models.KindSeasonalTrend)

	results := suite.TrainAll(context.Background(), seasonalSeries(60))
	r := results[models.KindSeasonalTrend]
	require.True(t, r.Success)
	assert.True(t, r.Summary.Simulated)
	assert.True(t, suite.Simulated())

	full := NewSuite(Factories(DefaultOptions(), nil, nil), nil)
	full.TrainAll(context.Background(), seasonalSeries(60))
	assert.False(t, full.Simulated())
}

func TestTrainAllWithDisabledKindsIsRaceFree(t *testing.T) {
	caps := capability.Static(map[string]bool{capability.ARIMA: false, capability.SequenceRegressor: false})
	suite := NewSuite(Factories(DefaultOptions(), caps, nil), caps)
	series := seasonalSeries(60)

	for i := 0; i < 5; i++ {
		results := suite.TrainAll(context.Background(), series)
		require.Len(t, results, 4)
		assert.True(t, results[models.KindARIMA].Skipped)
		assert.True(t, results[models.KindSequence].Skipped)
		assert.True(t, results[models.KindSeasonalTrend].Success)
	}
}
