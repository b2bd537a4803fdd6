package forecasters

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sartorproj/goarima/sarima"
	"github.com/sartorproj/goarima/timeseries"

	"LoadCast/internal/domain/errs"
	"LoadCast/internal/domain/models"
	"LoadCast/internal/domain/service"
)

// SARIMAOrder is the (p,d,q)×(P,D,Q,m) specification.
type SARIMAOrder struct {
	P, D, Q    int
	SP, SD, SQ int
	M          int
}

// DefaultSARIMAOrder is (1,1,1)×(1,1,1,7).
func DefaultSARIMAOrder() SARIMAOrder {
	return SARIMAOrder{P: 1, D: 1, Q: 1, SP: 1, SD: 1, SQ: 1, M: 7}
}

// MinLen mirrors the estimator's own requirement.
func (o SARIMAOrder) MinLen() int {
	return o.P + o.Q + o.D + (o.SP+o.SD+o.SQ)*o.M + 20
}

// SARIMA wraps the goarima seasonal ARIMA estimator.
type SARIMA struct {
	order SARIMAOrder

	mu       sync.RWMutex
	model    *sarima.Model
	entityID string
	lastDate time.Time
	values   []float64
}

func NewSARIMA(order SARIMAOrder) *SARIMA { return &SARIMA{order: order} }

func (s *SARIMA) Kind() models.ModelKind { return models.KindARIMA }

func (s *SARIMA) Fit(_ context.Context, series models.TimeSeries) (sum *models.FitSummary, err error) {
	if need := s.order.MinLen(); series.Len() < need {
		return nil, &errs.InsufficientDataError{EntityID: series.EntityID, Have: series.Len(), Need: need}
	}
	defer func() {
		if rec := recover(); rec != nil {
			sum, err = nil, fmt.Errorf("sarima fit %q panicked: %v", series.EntityID, rec)
		}
	}()
	o := s.order
	m := sarima.New(o.P, o.D, o.Q, o.SP, o.SD, o.SQ, o.M)
	if err := m.Fit(timeseries.New(append([]float64(nil), series.Values...))); err != nil {
		return nil, fmt.Errorf("sarima fit %q: %w", series.EntityID, err)
	}

	s.mu.Lock()
	s.model = m
	s.entityID = series.EntityID
	s.lastDate = series.End()
	s.values = append([]float64(nil), series.Values...)
	s.mu.Unlock()

	aic, bic := m.AIC, m.BIC
	sum = &models.FitSummary{
		Kind:            models.KindARIMA,
		ModelType:       fmt.Sprintf("SARIMA(%d,%d,%d)(%d,%d,%d,%d)", o.P, o.D, o.Q, o.SP, o.SD, o.SQ, o.M),
		ParametersCount: o.P + o.Q + o.SP + o.SQ + 1,
		FittedLength:    len(m.FittedValues()),
		ResidualStd:     math.Sqrt(math.Max(m.Variance, 0)),
		SeasonalPeriods: []int{o.M},
	}
	if !math.IsNaN(aic) && !math.IsInf(aic, 0) {
		sum.AIC = &aic
	}
	if !math.IsNaN(bic) && !math.IsInf(bic, 0) {
		sum.BIC = &bic
	}
	return sum, nil
}

func (s *SARIMA) Predict(horizon int, confidence float64) (models.Forecast, error) {
	s.mu.RLock()
	m, entityID, last := s.model, s.entityID, s.lastDate
	s.mu.RUnlock()
	if m == nil {
		return models.Forecast{}, &errs.ModelNotTrainedError{ModelID: string(models.KindARIMA), Op: "predict"}
	}
	if confidence <= 0 || confidence >= 1 {
		confidence = defaultConfidence
	}
	point, lower, upper, err := m.PredictWithInterval(horizon, confidence)
	if err != nil {
		return models.Forecast{}, fmt.Errorf("sarima predict %q: %w", entityID, err)
	}
	out := newForecast(entityID, string(models.KindARIMA), confidence, horizon)
	for j := 0; j < horizon; j++ {
		if math.IsNaN(point[j]) || math.IsInf(point[j], 0) {
			return models.Forecast{}, fmt.Errorf("sarima predict %q: non-finite forecast at step %d", entityID, j+1)
		}
		lo, hi := math.Min(lower[j], upper[j]), math.Max(lower[j], upper[j])
		out.Rows[j] = models.ForecastRow{
			Date:   last.AddDate(0, 0, j+1),
			Point:  point[j],
			Lower:  math.Min(lo, point[j]),
			Upper:  math.Max(hi, point[j]),
			Source: string(models.KindARIMA),
		}
	}
	return out, nil
}

// Residuals returns residuals aligned to the input series; the points consumed
// by differencing are NaN.
func (s *SARIMA) Residuals() ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.model == nil {
		return nil, &errs.ModelNotTrainedError{ModelID: string(models.KindARIMA), Op: "residuals"}
	}
	return alignTail(s.model.Residuals(), len(s.values)), nil
}

// Fitted returns value - residual on the original scale, aligned as Residuals.
func (s *SARIMA) Fitted() ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.model == nil {
		return nil, &errs.ModelNotTrainedError{ModelID: string(models.KindARIMA), Op: "fitted"}
	}
	out := alignTail(s.model.Residuals(), len(s.values))
	for i, r := range out {
		out[i] = s.values[i] - r
	}
	return out, nil
}

func alignTail(v []float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if len(v) > n {
		v = v[len(v)-n:]
	}
	copy(out[n-len(v):], v)
	return out
}

var (
	_ service.Forecaster     = (*SARIMA)(nil)
	_ service.ResidualSource = (*SARIMA)(nil)
)
