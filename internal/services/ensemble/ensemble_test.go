package ensemble

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LoadCast/internal/domain/errs"
	"LoadCast/internal/domain/models"
	"LoadCast/internal/domain/service"
	"LoadCast/internal/services/capability"
	"LoadCast/internal/services/forecasters"
)

var start = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

func series(n int) models.TimeSeries {
	s := models.TimeSeries{EntityID: "north"}
	for i := 0; i < n; i++ {
		s.Dates = append(s.Dates, start.AddDate(0, 0, i))
		s.Values = append(s.Values, 100+10*math.Sin(2*math.Pi*float64(i)/7)+0.2*float64(i))
	}
	return s
}

// flat predicts a constant offset from the training mean.
type flat struct {
	kind    models.ModelKind
	offset  float64
	failFit bool
	failPr  bool
	sim     bool

	fitted bool
	mean   float64
	last   time.Time
	entity string
}

func (f *flat) Kind() models.ModelKind { return f.kind }

func (f *flat) Fit(_ context.Context, s models.TimeSeries) (*models.FitSummary, error) {
	if f.failFit {
		return nil, errors.New("boom")
	}
	sum := 0.0
	for _, v := range s.Values {
		sum += v
	}
	f.mean = sum / float64(s.Len())
	f.last = s.End()
	f.entity = s.EntityID
	f.fitted = true
	return &models.FitSummary{Kind: f.kind, FittedLength: s.Len()}, nil
}

func (f *flat) Predict(h int, conf float64) (models.Forecast, error) {
	if !f.fitted {
		return models.Forecast{}, &errs.ModelNotTrainedError{ModelID: string(f.kind), Op: "predict"}
	}
	if f.failPr {
		return models.Forecast{}, errors.New("predict failed")
	}
	fc := models.Forecast{EntityID: f.entity, Source: string(f.kind), Confidence: conf, Simulated: f.sim}
	for i := 1; i <= h; i++ {
		p := f.mean + f.offset
		fc.Rows = append(fc.Rows, models.ForecastRow{Date: f.last.AddDate(0, 0, i), Point: p, Lower: p - 5, Upper: p + 5, Source: string(f.kind)})
	}
	return fc, nil
}

type fakeModels struct {
	factories map[models.ModelKind]service.ForecasterFactory
	fitted    map[models.ModelKind]service.Forecaster
}

func (m *fakeModels) Available() []models.ModelKind {
	var out []models.ModelKind
	for _, k := range models.AllKinds() {
		if _, ok := m.factories[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

func (m *fakeModels) Fitted() map[models.ModelKind]service.Forecaster { return m.fitted }

func (m *fakeModels) Results() map[models.ModelKind]models.FitResult {
	out := make(map[models.ModelKind]models.FitResult)
	for k := range m.fitted {
		out[k] = models.FitResult{Kind: k, Success: true}
	}
	return out
}

func (m *fakeModels) Factory(k models.ModelKind) (service.ForecasterFactory, bool) {
	f, ok := m.factories[k]
	return f, ok
}

func newFake(t *testing.T, s models.TimeSeries, members ...*flat) *fakeModels {
	t.Helper()
	m := &fakeModels{
		factories: make(map[models.ModelKind]service.ForecasterFactory),
		fitted:    make(map[models.ModelKind]service.Forecaster),
	}
	for _, f := range members {
		proto := *f
		m.factories[f.kind] = func() service.Forecaster { c := proto; return &c }
		if _, err := f.Fit(context.Background(), s); err == nil {
			m.fitted[f.kind] = f
		}
	}
	return m
}

func TestWeightsSumToOneForEverySubset(t *testing.T) {
	c := NewCombiner(&fakeModels{}, WithWeights(map[models.ModelKind]float64{models.KindARIMA: 0.7}))
	all := models.AllKinds()
	for mask := 1; mask < 1<<len(all); mask++ {
		var subset []models.ModelKind
		for i, k := range all {
			if mask&(1<<i) != 0 {
				subset = append(subset, k)
			}
		}
		w := c.Weights(subset)
		sum := 0.0
		for _, v := range w {
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-12, "subset %v", subset)
	}
}

func TestZeroWeightsFallBackToEqual(t *testing.T) {
	c := NewCombiner(&fakeModels{}, WithWeights(map[models.ModelKind]float64{
		models.KindARIMA:    0,
		models.KindSequence: 0,
	}))
	w := c.Weights([]models.ModelKind{models.KindARIMA, models.KindSequence})
	assert.InDelta(t, 0.5, w[models.KindARIMA], 1e-12)
	assert.InDelta(t, 0.5, w[models.KindSequence], 1e-12)
}

func TestEnsembleWithNoModelsIsEmpty(t *testing.T) {
	c := NewCombiner(&fakeModels{})
	fc, failures := c.PredictEnsemble(7, 0.95)
	assert.True(t, fc.Empty())
	assert.Equal(t, models.SourceEnsemble, fc.Source)
	assert.Empty(t, failures)
}

func TestEnsembleAveragesMembers(t *testing.T) {
	s := series(60)
	m := newFake(t, s,
		&flat{kind: models.KindARIMA, offset: 10},
		&flat{kind: models.KindSequence, offset: -10},
		&flat{kind: models.KindAdditive, failPr: true},
	)
	c := NewCombiner(m)
	fc, failures := c.PredictEnsemble(5, 0.95)
	require.Len(t, fc.Rows, 5)
	require.Contains(t, failures, models.KindAdditive)

	mean := m.fitted[models.KindARIMA].(*flat).mean
	for i, r := range fc.Rows {
		assert.Equal(t, s.End().AddDate(0, 0, i+1), r.Date)
		assert.InDelta(t, mean, r.Point, 1e-9)
		assert.InDelta(t, mean-5, r.Lower, 1e-9)
		assert.InDelta(t, mean+5, r.Upper, 1e-9)
		assert.Equal(t, models.SourceEnsemble, r.Source)
	}
}

func TestCrossValidateScoresEveryFold(t *testing.T) {
	s := series(100)
	m := newFake(t, s,
		&flat{kind: models.KindARIMA},
		&flat{kind: models.KindSequence, offset: 3},
	)
	obs := &cvRecorder{}
	c := NewCombiner(m, WithCVObserver(obs))

	report, err := c.CrossValidate(context.Background(), s, 5)
	require.NoError(t, err)
	assert.Equal(t, 20, report.FoldSize)
	assert.Empty(t, report.Errors)
	require.Len(t, report.Models, 2)
	for kind, score := range report.Models {
		require.Len(t, score.Folds, 5, kind)
		for i, f := range score.Folds {
			assert.Equal(t, i, f.Fold)
			assert.Equal(t, 80, f.TrainSize)
			assert.Equal(t, 20, f.TestSize)
			assert.Empty(t, f.Error)
			for _, v := range []float64{f.MAE, f.RMSE, f.MAPE} {
				assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
				assert.GreaterOrEqual(t, v, 0.0)
			}
			assert.GreaterOrEqual(t, f.RMSE, f.MAE)
		}
		assert.Greater(t, score.MeanMAE, 0.0)
	}
	assert.Same(t, report, c.LastCV())
	assert.Equal(t, 6, obs.n)
}

func TestCrossValidateCapturesFailures(t *testing.T) {
	s := series(50)
	m := newFake(t, s,
		&flat{kind: models.KindARIMA},
		&flat{kind: models.KindAdditive, failFit: true},
	)
	c := NewCombiner(m)
	report, err := c.CrossValidate(context.Background(), s, 5)
	require.NoError(t, err)

	require.Contains(t, report.Errors, models.KindAdditive)
	for _, f := range report.Models[models.KindAdditive].Folds {
		assert.Equal(t, "boom", f.Error)
	}
	assert.Empty(t, report.Models[models.KindARIMA].Folds[0].Error)
	assert.NotContains(t, report.Errors, models.KindARIMA)
}

func TestCrossValidateRejectsTooFewPoints(t *testing.T) {
	c := NewCombiner(&fakeModels{})
	_, err := c.CrossValidate(context.Background(), series(3), 5)
	assert.ErrorIs(t, err, errs.ErrInsufficientData)

	_, err = c.CrossValidate(context.Background(), series(30), 1)
	assert.Error(t, err)
}

func TestInverseErrorWeighting(t *testing.T) {
	s := series(100)
	m := newFake(t, s,
		&flat{kind: models.KindARIMA},
		&flat{kind: models.KindSequence, offset: 40},
	)
	c := NewCombiner(m, WithStrategy(StrategyInverseError))

	// Without a CV report the configured weights apply.
	w := c.Weights([]models.ModelKind{models.KindARIMA, models.KindSequence})
	assert.InDelta(t, 0.5, w[models.KindARIMA], 1e-12)

	report, err := c.CrossValidate(context.Background(), s, 4)
	require.NoError(t, err)
	w = c.Weights([]models.ModelKind{models.KindARIMA, models.KindSequence})
	assert.Greater(t, w[models.KindARIMA], w[models.KindSequence])

	a := 1 / report.Models[models.KindARIMA].MeanMAE
	b := 1 / report.Models[models.KindSequence].MeanMAE
	assert.InDelta(t, a/(a+b), w[models.KindARIMA], 1e-9)
}

func TestEnsembleFlagsSimulatedMembers(t *testing.T) {
	s := series(60)
	c := NewCombiner(newFake(t, s,
		&flat{kind: models.KindARIMA},
		&flat{kind: models.KindSequence},
	))
	fc, _ := c.PredictEnsemble(3, 0.95)
	assert.False(t, fc.Simulated)
	assert.Equal(t, []string{"arima", "sequence-regressor"}, fc.Members)

	c = NewCombiner(newFake(t, s,
		&flat{kind: models.KindSeasonalTrend, sim: true},
		&flat{kind: models.KindARIMA},
	))
	fc, _ = c.PredictEnsemble(3, 0.95)
	assert.True(t, fc.Simulated)
	assert.Equal(t, models.SourceEnsemble, fc.Source)
	assert.Equal(t, []string{"seasonal-trend", "arima"}, fc.Members)
}

func TestEnsembleOfSimulatedSeasonalTrendIsFlagged(t *testing.T) {
	caps := capability.Static(map[string]bool{capability.SeasonalTrend: false})
	suite := forecasters.NewSuite(forecasters.Factories(forecasters.DefaultOptions(), caps, nil), caps)
	suite.TrainAll(context.Background(), series(100))

	fc, _ := NewCombiner(suite).PredictEnsemble(5, 0.95)
	require.Len(t, fc.Rows, 5)
	assert.True(t, fc.Simulated)
	assert.Contains(t, fc.Members, "seasonal-trend(simulated)")
}

func TestComparisonWithSuite(t *testing.T) {
	caps := capability.Static(map[string]bool{
		capability.SeasonalTrend:      true,
		capability.AdditiveRegression: true,
		capability.ARIMA:              false,
		capability.SequenceRegressor:  true,
	})
	opts := forecasters.DefaultOptions()
	suite := forecasters.NewSuite(forecasters.Factories(opts, caps, nil), caps)
	suite.TrainAll(context.Background(), series(120))

	c := NewCombiner(suite)
	cmp := c.Comparison()
	assert.NotContains(t, cmp.Available, models.KindARIMA)
	assert.NotContains(t, cmp.Trained, models.KindARIMA)
	assert.Equal(t, "fixed", cmp.Strategy)
	sum := 0.0
	for _, v := range cmp.Weights {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	fc, _ := c.PredictEnsemble(10, 0.95)
	require.Len(t, fc.Rows, 10)
	for _, r := range fc.Rows {
		assert.LessOrEqual(t, r.Lower, r.Point)
		assert.LessOrEqual(t, r.Point, r.Upper)
	}
}

type cvRecorder struct{ n int }

func (r *cvRecorder) RecordCVError(kind, metric string, value float64) { r.n++ }
