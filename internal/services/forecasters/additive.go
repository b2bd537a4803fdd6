// Package forecasters holds the alternative model kinds and the suite that
// trains whichever of them are available.
package forecasters

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"LoadCast/internal/domain/errs"
	"LoadCast/internal/domain/models"
	"LoadCast/internal/domain/service"
	"LoadCast/internal/services/features"
)

const (
	additiveChangepoints = 25
	additiveRange        = 0.8
	additiveRidge        = 0.1
	weeklyOrder          = 3
	yearlyOrder          = 10
	minAdditiveObs       = 21
)

// Additive is a Prophet-style model: piecewise-linear trend, weekly and yearly
// Fourier seasonality and a holiday regressor, solved by ridge least squares.
type Additive struct {
	holidays service.HolidayCalendar

	mu  sync.RWMutex
	fit *additiveState
}

type additiveState struct {
	entityID    string
	start       time.Time
	n           int
	scale       float64
	changes     []float64
	yearly      bool
	beta        []float64
	sigma       float64
	fitted      []float64
	residuals   []float64
	lastDate    time.Time
	withHoliday bool
}

// NewAdditive builds an additive forecaster. holidays may be nil.
func NewAdditive(holidays service.HolidayCalendar) *Additive {
	return &Additive{holidays: holidays}
}

func (a *Additive) Kind() models.ModelKind { return models.KindAdditive }

func (a *Additive) Fit(_ context.Context, series models.TimeSeries) (*models.FitSummary, error) {
	n := series.Len()
	if n < minAdditiveObs {
		return nil, &errs.InsufficientDataError{EntityID: series.EntityID, Have: n, Need: minAdditiveObs}
	}
	st := &additiveState{
		entityID:    series.EntityID,
		start:       series.Start(),
		n:           n,
		yearly:      n >= 2*365,
		lastDate:    series.End(),
		withHoliday: a.holidays != nil,
	}
	for _, v := range series.Values {
		st.scale = math.Max(st.scale, math.Abs(v))
	}
	if st.scale == 0 {
		st.scale = 1
	}
	ncp := additiveChangepoints
	if limit := int(additiveRange*float64(n)) - 1; ncp > limit {
		ncp = limit
	}
	for k := 1; k <= ncp; k++ {
		st.changes = append(st.changes, additiveRange*float64(k)/float64(ncp+1))
	}

	x := mat.NewDense(n, st.width(), nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x.SetRow(i, st.row(i, series.Dates[i], a.holidays))
		y[i] = series.Values[i] / st.scale
	}
	beta, err := features.Ridge(x, y, additiveRidge)
	if err != nil {
		return nil, fmt.Errorf("additive fit %q: %w", series.EntityID, err)
	}
	st.beta = beta

	st.fitted = make([]float64, n)
	st.residuals = make([]float64, n)
	for i := 0; i < n; i++ {
		st.fitted[i] = st.predictAt(i, series.Dates[i], a.holidays)
		st.residuals[i] = series.Values[i] - st.fitted[i]
	}
	st.sigma = stdOf(st.residuals)

	a.mu.Lock()
	a.fit = st
	a.mu.Unlock()

	return &models.FitSummary{
		Kind:            models.KindAdditive,
		ModelType:       "additive-regression",
		ParametersCount: len(beta),
		FittedLength:    n,
		ResidualStd:     st.sigma,
		Params:          map[string]float64{"changepoints": float64(len(st.changes))},
	}, nil
}

func (a *Additive) Predict(horizon int, confidence float64) (models.Forecast, error) {
	a.mu.RLock()
	st := a.fit
	a.mu.RUnlock()
	if st == nil {
		return models.Forecast{}, &errs.ModelNotTrainedError{ModelID: string(models.KindAdditive), Op: "predict"}
	}
	if horizon < 1 {
		return models.Forecast{}, fmt.Errorf("additive predict: horizon must be positive, got %d", horizon)
	}
	half := zScore(confidence) * st.sigma
	out := newForecast(st.entityID, string(models.KindAdditive), confidence, horizon)
	for j := 1; j <= horizon; j++ {
		d := st.lastDate.AddDate(0, 0, j)
		p := st.predictAt(st.n-1+j, d, a.holidays)
		out.Rows[j-1] = row(d, p, half, string(models.KindAdditive))
	}
	return out, nil
}

func (a *Additive) Fitted() ([]float64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.fit == nil {
		return nil, &errs.ModelNotTrainedError{ModelID: string(models.KindAdditive), Op: "fitted"}
	}
	return append([]float64(nil), a.fit.fitted...), nil
}

func (a *Additive) Residuals() ([]float64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.fit == nil {
		return nil, &errs.ModelNotTrainedError{ModelID: string(models.KindAdditive), Op: "residuals"}
	}
	return append([]float64(nil), a.fit.residuals...), nil
}

func (st *additiveState) width() int {
	w := 2 + len(st.changes) + 2*weeklyOrder
	if st.yearly {
		w += 2 * yearlyOrder
	}
	if st.withHoliday {
		w++
	}
	return w
}

// row builds the design row for position i (which may lie past the history).
func (st *additiveState) row(i int, d time.Time, holidays service.HolidayCalendar) []float64 {
	t := float64(i) / float64(st.n-1)
	r := make([]float64, 0, st.width())
	r = append(r, 1, t)
	for _, c := range st.changes {
		r = append(r, math.Max(0, t-c))
	}
	days := d.Sub(st.start).Hours() / 24
	for k := 1; k <= weeklyOrder; k++ {
		w := 2 * math.Pi * float64(k) * days / 7
		r = append(r, math.Sin(w), math.Cos(w))
	}
	if st.yearly {
		for k := 1; k <= yearlyOrder; k++ {
			w := 2 * math.Pi * float64(k) * days / 365.25
			r = append(r, math.Sin(w), math.Cos(w))
		}
	}
	if st.withHoliday {
		h := 0.0
		if holidays.IsHoliday(d) {
			h = 1
		}
		r = append(r, h)
	}
	return r
}

func (st *additiveState) predictAt(i int, d time.Time, holidays service.HolidayCalendar) float64 {
	r := st.row(i, d, holidays)
	v := 0.0
	for k, x := range r {
		v += st.beta[k] * x
	}
	return v * st.scale
}

var (
	_ service.Forecaster     = (*Additive)(nil)
	_ service.ResidualSource = (*Additive)(nil)
)
