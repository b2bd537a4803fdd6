package residual

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
	"LoadCast/internal/services/holiday"
)

var (
	start         = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	noHolidays, _ = holiday.NewStatic(nil)
)

func testSeries(n int) models.TimeSeries {
	rng := rand.New(rand.NewSource(3))
	s := models.TimeSeries{EntityID: "west"}
	for i := 0; i < n; i++ {
		s.Dates = append(s.Dates, start.AddDate(0, 0, i))
		s.Values = append(s.Values, 100+10*math.Sin(2*math.Pi*float64(i)/7)+rng.NormFloat64()*5)
	}
	return s
}

// weekendResiduals are large on weekends so the forest has something to learn.
func weekendResiduals(s models.TimeSeries) []float64 {
	out := make([]float64, s.Len())
	for i, d := range s.Dates {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			out[i] = 8
		} else {
			out[i] = -2
		}
	}
	return out
}

func smallForest() Option {
	return WithParams(ForestParams{Trees: 15, MaxDepth: 6, MinSplit: 2, MinLeaf: 1, Seed: 42})
}

func TestPrepareFeaturesColumns(t *testing.T) {
	cal, err := holiday.NewStatic([]string{"2023-01-02"})
	require.NoError(t, err)
	s := testSeries(60)

	table, warnings := PrepareFeatures(s, nil, cal)
	assert.Empty(t, warnings)
	assert.Equal(t, 60, table.Len())
	for _, name := range []string{"day_of_week", "is_holiday", "lag_1", "lag_30", "rolling_mean_30", "rolling_std_3", "trend", "trend_squared"} {
		assert.GreaterOrEqual(t, table.Index(name), 0, name)
	}
	for _, r := range table.Rows {
		for _, v := range r {
			assert.False(t, math.IsNaN(v))
		}
	}
	assert.Equal(t, 1.0, table.Column("is_holiday")[0])
	assert.Equal(t, 0.0, table.Column("lag_7")[0])
	assert.Equal(t, s.Values[0], table.Column("lag_1")[1])
	assert.Equal(t, 59.0*59.0, table.Column("trend_squared")[59])
}

func TestShortSeriesSkipsLongLags(t *testing.T) {
	table, _ := PrepareFeatures(testSeries(10), nil, noHolidays)
	assert.Equal(t, -1, table.Index("lag_14"))
	assert.Equal(t, -1, table.Index("rolling_mean_14"))
	assert.GreaterOrEqual(t, table.Index("rolling_mean_7"), 0)
}

func TestUpstreamGroupsAreOmitted(t *testing.T) {
	s := testSeries(40)
	farAway := []models.WeatherRecord{{Time: start.AddDate(5, 0, 0), Temperature: 20}}

	table, warnings := PrepareFeatures(s, farAway, nil)
	require.Len(t, warnings, 2)
	for _, w := range warnings {
		assert.ErrorIs(t, w, errs.ErrUpstreamFeature)
	}
	assert.Len(t, table.Warnings, 2)
	assert.Equal(t, -1, table.Index("is_holiday"))
	assert.Equal(t, -1, table.Index("weather_temperature"))
	assert.Equal(t, 40, table.Len())
}

func TestWeatherIsResampledDaily(t *testing.T) {
	s := testSeries(35)
	var weather []models.WeatherRecord
	for i := 0; i < 3; i++ {
		d := start.AddDate(0, 0, i)
		weather = append(weather,
			models.WeatherRecord{Time: d.Add(6 * time.Hour), Temperature: 10, Humidity: 50, Pressure: 1000, WindSpeed: 2, Precipitation: 1},
			models.WeatherRecord{Time: d.Add(18 * time.Hour), Temperature: 20, Humidity: 70, Pressure: 1010, WindSpeed: 4, Precipitation: 2},
		)
	}
	table, warnings := PrepareFeatures(s, weather, noHolidays)
	assert.Empty(t, warnings)

	temp := table.Column("weather_temperature")
	rain := table.Column("weather_precipitation")
	require.NotNil(t, temp)
	assert.InDelta(t, 15, temp[0], 1e-9)
	assert.InDelta(t, 3, rain[1], 1e-9)
	// days after the last reading carry the last value forward
	assert.InDelta(t, 15, temp[20], 1e-9)
}

func TestCorrectBeforeTrain(t *testing.T) {
	c := New(WithModelID("residual:west"))
	_, err := c.Correct(models.Forecast{}, models.FeatureTable{})
	assert.ErrorIs(t, err, errs.ErrModelNotTrained)
	assert.Equal(t, "residual:west", errs.EntityOf(err))
	assert.False(t, c.Trained())

	_, err = c.FeatureImportance()
	assert.ErrorIs(t, err, errs.ErrModelNotTrained)
	assert.ErrorIs(t, c.Save(filepath.Join(t.TempDir(), "m.bin")), errs.ErrModelNotTrained)
}

func TestTrainLearnsWeekendEffect(t *testing.T) {
	s := testSeries(200)
	c := New(smallForest())
	table := c.PrepareFeatures(s, nil, noHolidays)

	metrics, err := c.Train(context.Background(), table, weekendResiduals(s), DefaultTestFraction, false)
	require.NoError(t, err)
	assert.Equal(t, 160, metrics.TrainSize)
	assert.Equal(t, 40, metrics.TestSize)
	assert.Less(t, metrics.Test.RMSE, 1.0)
	assert.Greater(t, metrics.Test.R2, 0.9)
	assert.InDelta(t, math.Sqrt(metrics.Test.MSE), metrics.Test.RMSE, 1e-12)

	require.Len(t, metrics.FeatureImportance, len(table.Columns))
	total := 0.0
	for i, fi := range metrics.FeatureImportance {
		total += fi.Importance
		if i > 0 {
			assert.LessOrEqual(t, fi.Importance, metrics.FeatureImportance[i-1].Importance)
		}
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	top := metrics.FeatureImportance[0].Feature
	assert.Contains(t, []string{"day_of_week", "is_weekend", "week_sin", "week_cos"}, top)
}

func TestTrainRejectsBadShapes(t *testing.T) {
	s := testSeries(40)
	c := New(smallForest())
	table := c.PrepareFeatures(s, nil, noHolidays)

	_, err := c.Train(context.Background(), table, make([]float64, 3), DefaultTestFraction, false)
	assert.Error(t, err)

	nan := make([]float64, s.Len())
	for i := range nan {
		nan[i] = math.NaN()
	}
	_, err = c.Train(context.Background(), table, nan, DefaultTestFraction, false)
	assert.ErrorIs(t, err, errs.ErrInsufficientData)
	assert.False(t, c.Trained())
}

func TestCorrectAddsPredictedResidual(t *testing.T) {
	s := testSeries(200)
	c := New(smallForest())
	_, err := c.Train(context.Background(), c.PrepareFeatures(s, nil, noHolidays), weekendResiduals(s), DefaultTestFraction, false)
	require.NoError(t, err)

	fc := models.Forecast{EntityID: "west"}
	for i := 1; i <= 14; i++ {
		d := s.End().AddDate(0, 0, i)
		fc.Rows = append(fc.Rows, models.ForecastRow{Date: d, Point: 100, Lower: 90, Upper: 110})
	}
	future, _ := FutureFeatures(s, fc, nil, noHolidays)
	require.Equal(t, 14, future.Len())

	corrected, err := c.Correct(fc, future)
	require.NoError(t, err)
	require.Len(t, corrected.Rows, 14)
	for _, r := range corrected.Rows {
		assert.Equal(t, 100.0, r.Original)
		assert.InDelta(t, r.Original+r.Correction, r.Corrected, 1e-12)
		if r.Date.Weekday() == time.Saturday || r.Date.Weekday() == time.Sunday {
			assert.Greater(t, r.Correction, 4.0)
		} else {
			assert.Less(t, r.Correction, 2.0)
		}
	}
}

func TestCorrectKeepsRowsWithoutFeatures(t *testing.T) {
	s := testSeries(200)
	c := New(smallForest())
	_, err := c.Train(context.Background(), c.PrepareFeatures(s, nil, noHolidays), weekendResiduals(s), DefaultTestFraction, false)
	require.NoError(t, err)

	fc := models.Forecast{EntityID: "west"}
	for i := 1; i <= 7; i++ {
		fc.Rows = append(fc.Rows, models.ForecastRow{Date: s.End().AddDate(0, 0, i), Point: 100})
	}
	future, _ := FutureFeatures(s, models.Forecast{EntityID: "west", Rows: fc.Rows[:5]}, nil, noHolidays)
	require.Equal(t, 5, future.Len())

	corrected, err := c.Correct(fc, future)
	require.NoError(t, err)
	require.Len(t, corrected.Rows, 7, "no forecast row is dropped")
	for _, r := range corrected.Rows[:5] {
		assert.False(t, r.Uncorrected)
	}
	for _, r := range corrected.Rows[5:] {
		assert.True(t, r.Uncorrected)
		assert.Zero(t, r.Correction)
		assert.Equal(t, 100.0, r.Corrected)
	}
	require.Len(t, corrected.Warnings, 1)
	assert.Contains(t, corrected.Warnings[0], "2 of 7")
	assert.Contains(t, corrected.Warnings[0], s.End().AddDate(0, 0, 7).Format(time.DateOnly))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := testSeries(120)
	c := New(smallForest(), WithModelID("residual:west"))
	table := c.PrepareFeatures(s, nil, noHolidays)
	_, err := c.Train(context.Background(), table, weekendResiduals(s), DefaultTestFraction, false)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "west.lcrf")
	require.NoError(t, c.Save(path))

	fc := models.Forecast{EntityID: "west"}
	for i, d := range table.Dates[100:] {
		fc.Rows = append(fc.Rows, models.ForecastRow{Date: d, Point: float64(i)})
	}
	want, err := c.Correct(fc, table)
	require.NoError(t, err)

	loaded := New(WithModelID("residual:west"))
	require.NoError(t, loaded.Load(path))
	got, err := loaded.Correct(fc, table)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	wantImp, _ := c.FeatureImportance()
	gotImp, err := loaded.FeatureImportance()
	require.NoError(t, err)
	assert.Equal(t, wantImp, gotImp)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestLoadFailureKeepsState(t *testing.T) {
	dir := t.TempDir()
	c := New(WithModelID("residual:west"))

	err := c.Load(filepath.Join(dir, "missing.lcrf"))
	assert.ErrorIs(t, err, errs.ErrModelLoad)
	assert.Equal(t, "residual:west", errs.EntityOf(err))
	assert.False(t, c.Trained())

	corrupt := filepath.Join(dir, "corrupt.lcrf")
	require.NoError(t, os.WriteFile(corrupt, []byte("LCRF\x01garbage-garbage"), 0o644))
	assert.ErrorIs(t, c.Load(corrupt), errs.ErrModelLoad)
	assert.False(t, c.Trained())

	// A trained corrector keeps its model when a later load fails.
	s := testSeries(60)
	trained := New(smallForest())
	_, err = trained.Train(context.Background(), trained.PrepareFeatures(s, nil, noHolidays), weekendResiduals(s), DefaultTestFraction, false)
	require.NoError(t, err)
	require.Error(t, trained.Load(corrupt))
	assert.True(t, trained.Trained())
}

func TestGridSearchPicksFromGrid(t *testing.T) {
	s := testSeries(80)
	c := New(smallForest(), WithGrid(Grid{Trees: []int{5, 10}, MaxDepth: []int{1, 0}, MinSplit: []int{2}, MinLeaf: []int{1}}))
	metrics, err := c.Train(context.Background(), c.PrepareFeatures(s, nil, noHolidays), weekendResiduals(s), DefaultTestFraction, true)
	require.NoError(t, err)
	require.NotNil(t, metrics.BestParams)
	assert.Contains(t, []int{5, 10}, metrics.BestParams["n_estimators"])
	assert.Contains(t, []int{1, 0}, metrics.BestParams["max_depth"])
}

func TestForestIsDeterministic(t *testing.T) {
	x := [][]float64{{0}, {1}, {2}, {3}, {4}, {5}, {6}, {7}}
	y := []float64{0, 0, 0, 0, 10, 10, 10, 10}
	p := ForestParams{Trees: 20, MaxDepth: 3, MinSplit: 2, MinLeaf: 1, Seed: 42}
	a, b := FitForest(x, y, p), FitForest(x, y, p)
	assert.Equal(t, a.PredictAll(x), b.PredictAll(x))
	assert.InDelta(t, 10, a.Predict([]float64{7}), 3)
	assert.InDelta(t, 0, a.Predict([]float64{0}), 3)
}
