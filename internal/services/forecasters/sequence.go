package forecasters

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"LoadCast/internal/domain/errs"
	"LoadCast/internal/domain/models"
	"LoadCast/internal/domain/service"
	"LoadCast/internal/services/features"
)

// DefaultLookBack is the window length of the sequence regressor.
const DefaultLookBack = 7

const sequenceRidge = 1e-3

// Sequence is a lag-window regressor: the next min-max scaled value is a ridge
// regression on the previous LookBack scaled values. Multi-step forecasts feed
// predictions back into the window.
type Sequence struct {
	lookBack int

	mu  sync.RWMutex
	fit *sequenceState
}

type sequenceState struct {
	entityID  string
	min, max  float64
	beta      []float64
	tail      []float64 // last lookBack scaled values
	lastDate  time.Time
	sigma     float64
	fitted    []float64
	residuals []float64
}

func NewSequence(lookBack int) *Sequence {
	if lookBack <= 0 {
		lookBack = DefaultLookBack
	}
	return &Sequence{lookBack: lookBack}
}

func (s *Sequence) Kind() models.ModelKind { return models.KindSequence }

// MinLen is the shortest series the regressor accepts.
func (s *Sequence) MinLen() int { return s.lookBack + 10 }

func (s *Sequence) Fit(_ context.Context, series models.TimeSeries) (*models.FitSummary, error) {
	n := series.Len()
	if n < s.MinLen() {
		return nil, &errs.InsufficientDataError{EntityID: series.EntityID, Have: n, Need: s.MinLen()}
	}
	st := &sequenceState{
		entityID: series.EntityID,
		min:      floats.Min(series.Values),
		max:      floats.Max(series.Values),
		lastDate: series.End(),
	}
	scaled := make([]float64, n)
	for i, v := range series.Values {
		scaled[i] = st.scale(v)
	}

	rows := n - s.lookBack
	x := mat.NewDense(rows, s.lookBack+1, nil)
	y := make([]float64, rows)
	for i := 0; i < rows; i++ {
		x.Set(i, 0, 1)
		for k := 0; k < s.lookBack; k++ {
			x.Set(i, k+1, scaled[i+k])
		}
		y[i] = scaled[i+s.lookBack]
	}
	beta, err := features.Ridge(x, y, sequenceRidge)
	if err != nil {
		return nil, fmt.Errorf("sequence fit %q: %w", series.EntityID, err)
	}
	st.beta = beta
	st.tail = append([]float64(nil), scaled[n-s.lookBack:]...)

	st.fitted = make([]float64, n)
	st.residuals = make([]float64, n)
	for i := 0; i < n; i++ {
		if i < s.lookBack {
			st.fitted[i] = series.Values[i]
			continue
		}
		st.fitted[i] = st.unscale(st.step(scaled[i-s.lookBack : i]))
		st.residuals[i] = series.Values[i] - st.fitted[i]
	}
	st.sigma = stdOf(st.residuals[s.lookBack:])

	s.mu.Lock()
	s.fit = st
	s.mu.Unlock()

	return &models.FitSummary{
		Kind:            models.KindSequence,
		ModelType:       fmt.Sprintf("lag-window ridge (look_back=%d)", s.lookBack),
		ParametersCount: len(beta),
		FittedLength:    n,
		ResidualStd:     st.sigma,
		Params:          map[string]float64{"look_back": float64(s.lookBack)},
	}, nil
}

func (s *Sequence) Predict(horizon int, confidence float64) (models.Forecast, error) {
	s.mu.RLock()
	st := s.fit
	s.mu.RUnlock()
	if st == nil {
		return models.Forecast{}, &errs.ModelNotTrainedError{ModelID: string(models.KindSequence), Op: "predict"}
	}
	if horizon < 1 {
		return models.Forecast{}, fmt.Errorf("sequence predict: horizon must be positive, got %d", horizon)
	}
	half := zScore(confidence) * st.sigma
	window := append([]float64(nil), st.tail...)
	out := newForecast(st.entityID, string(models.KindSequence), confidence, horizon)
	for j := 1; j <= horizon; j++ {
		next := st.step(window)
		window = append(window[1:], next)
		d := st.lastDate.AddDate(0, 0, j)
		out.Rows[j-1] = row(d, st.unscale(next), half, string(models.KindSequence))
	}
	return out, nil
}

func (s *Sequence) Fitted() ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fit == nil {
		return nil, &errs.ModelNotTrainedError{ModelID: string(models.KindSequence), Op: "fitted"}
	}
	return append([]float64(nil), s.fit.fitted...), nil
}

func (s *Sequence) Residuals() ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fit == nil {
		return nil, &errs.ModelNotTrainedError{ModelID: string(models.KindSequence), Op: "residuals"}
	}
	return append([]float64(nil), s.fit.residuals...), nil
}

func (st *sequenceState) step(window []float64) float64 {
	v := st.beta[0]
	for k, x := range window {
		v += st.beta[k+1] * x
	}
	return v
}

func (st *sequenceState) scale(v float64) float64 {
	if st.max == st.min {
		return 0
	}
	return (v - st.min) / (st.max - st.min)
}

func (st *sequenceState) unscale(v float64) float64 {
	if st.max == st.min {
		return st.min
	}
	return v*(st.max-st.min) + st.min
}

var (
	_ service.Forecaster     = (*Sequence)(nil)
	_ service.ResidualSource = (*Sequence)(nil)
)
