package tbats

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"LoadCast/internal/domain/errs"
	"LoadCast/internal/domain/models"
	"LoadCast/internal/services/features"
)

// MinObservations is the shortest series Fit accepts.
const MinObservations = 14

// FittedModel is the immutable state produced by Fit.
type FittedModel struct {
	EntityID  string
	Config    Config
	Simulated bool

	Lambda   float64
	Smooth   smoothParams
	State    smoothState
	Seasonal []seasonalTerm
	ARMA     armaErrors

	values    []float64
	fitted    []float64
	residuals []float64
	lastDate  time.Time
	lastInnov float64
	lastResid float64
	sigma     float64
	params    int
	aic       *float64
	bic       *float64
}

// Fit estimates the model on a prepared series.
func Fit(series models.TimeSeries, cfg Config) (*FittedModel, error) {
	n := series.Len()
	if n < MinObservations {
		return nil, &errs.InsufficientDataError{EntityID: series.EntityID, Have: n, Need: MinObservations}
	}
	if cfg.Simulated {
		return fitSimulated(series, cfg), nil
	}

	y := series.Values
	lambda := chooseLambda(y)
	z := make([]float64, n)
	for i, v := range y {
		z[i] = boxCox(v, lambda)
	}

	terms, err := fitSeasonal(z, cfg.SeasonalPeriods)
	if err != nil {
		return nil, fmt.Errorf("seasonal terms for %q: %w", series.EntityID, err)
	}
	d := make([]float64, n)
	for t := range z {
		d[t] = z[t] - seasonalAt(terms, float64(t))
	}

	params := searchSmoothing(d, cfg.UseTrend, cfg.UseTrend && cfg.UseDampedTrend)
	levelPred, innov, state, _ := smooth(d, params, initialState(d, cfg.UseTrend))

	arma := armaErrors{Kind: armaNone}
	if cfg.UseARMAErrors {
		arma = fitARMA(innov)
	}
	armaPred, white := arma.filter(innov)

	m := &FittedModel{
		EntityID:  series.EntityID,
		Config:    cfg,
		Lambda:    lambda,
		Smooth:    params,
		State:     state,
		Seasonal:  terms,
		ARMA:      arma,
		values:    append([]float64(nil), y...),
		fitted:    make([]float64, n),
		residuals: make([]float64, n),
		lastDate:  series.End(),
		lastInnov: innov[n-1],
		lastResid: white[n-1],
	}
	for t := range y {
		zhat := levelPred[t] + seasonalAt(terms, float64(t)) + armaPred[t]
		m.fitted[t] = invBoxCox(zhat, lambda)
		m.residuals[t] = y[t] - m.fitted[t]
	}
	m.sigma = residualStd(m.residuals)

	m.params = 1 + arma.params()
	if lambda != 1 {
		m.params++
	}
	if cfg.UseTrend {
		m.params += 2
		if cfg.UseDampedTrend {
			m.params++
		}
	}
	for _, s := range terms {
		m.params += 2 * s.K
	}
	sse := 0.0
	for _, r := range m.residuals {
		sse += r * r
	}
	if sse > 0 {
		nf, k := float64(n), float64(m.params)
		aic := nf*math.Log(sse/nf) + 2*k
		bic := nf*math.Log(sse/nf) + k*math.Log(nf)
		m.aic, m.bic = &aic, &bic
	}
	return m, nil
}

// Predict extends the level, damped trend, seasonal harmonics and error
// process horizon days past the series end. Intervals are point ± z·σ where σ
// is the residual standard error.
func (m *FittedModel) Predict(horizon int, confidence float64) (models.Forecast, error) {
	if m == nil {
		return models.Forecast{}, &errs.ModelNotTrainedError{ModelID: SourceTag, Op: "predict"}
	}
	if horizon < 1 {
		return models.Forecast{}, fmt.Errorf("predict %q: horizon must be positive, got %d", m.EntityID, horizon)
	}
	if confidence <= 0 || confidence >= 1 {
		confidence = DefaultConfidence
	}
	if m.Simulated {
		return m.predictSimulated(horizon, confidence), nil
	}

	zq := zScore(confidence)
	n := len(m.values)
	errPath := m.ARMA.forecast(m.lastInnov, m.lastResid, horizon)
	out := models.Forecast{EntityID: m.EntityID, Source: SourceTag, Confidence: confidence, Rows: make([]models.ForecastRow, horizon)}
	for j := 1; j <= horizon; j++ {
		t := float64(n - 1 + j)
		zhat := m.State.Level + dampedSum(m.Smooth.Phi, j)*m.State.Trend + seasonalAt(m.Seasonal, t) + errPath[j-1]
		point := invBoxCox(zhat, m.Lambda)
		half := zq * m.sigma
		out.Rows[j-1] = models.ForecastRow{
			Date:   m.lastDate.Add(time.Duration(j) * day),
			Point:  point,
			Lower:  point - half,
			Upper:  point + half,
			Source: SourceTag,
		}
	}
	return out, nil
}

// Fitted returns a copy of the in-sample fitted values.
func (m *FittedModel) Fitted() []float64 { return append([]float64(nil), m.fitted...) }

// Residuals returns a copy of value - fitted.
func (m *FittedModel) Residuals() []float64 { return append([]float64(nil), m.residuals...) }

// Summary describes the fit.
func (m *FittedModel) Summary() *models.FitSummary {
	s := &models.FitSummary{
		Kind:            models.KindSeasonalTrend,
		ModelType:       ModelType,
		AIC:             m.aic,
		BIC:             m.bic,
		ParametersCount: m.params,
		FittedLength:    len(m.fitted),
		ResidualStd:     m.sigma,
		Simulated:       m.Simulated,
		SeasonalPeriods: append([]int(nil), m.Config.SeasonalPeriods...),
	}
	if m.Simulated {
		s.ModelType = SimulatedModelType
		return s
	}
	s.Params = map[string]float64{
		"lambda": m.Lambda,
		"alpha":  m.Smooth.Alpha,
		"beta":   m.Smooth.Beta,
		"phi":    m.Smooth.Phi,
		"ar":     m.ARMA.AR,
		"ma":     m.ARMA.MA,
	}
	return s
}

// Evaluate reports in-sample error metrics.
func (m *FittedModel) Evaluate() models.Evaluation {
	mape, _ := features.MAPE(m.values, m.fitted)
	mean, std := stat.MeanStdDev(m.residuals, nil)
	return models.Evaluation{
		RMSE:         features.RMSE(m.values, m.fitted),
		MSE:          features.MSE(m.values, m.fitted),
		MAE:          features.MAE(m.values, m.fitted),
		MAPE:         mape,
		ResidualStd:  std,
		ResidualMean: mean,
		AIC:          m.aic,
		BIC:          m.bic,
	}
}

// zScore returns the two-sided standard-normal quantile for confidence.
func zScore(confidence float64) float64 {
	return distuv.UnitNormal.Quantile((1 + confidence) / 2)
}

func residualStd(r []float64) float64 {
	if len(r) < 2 {
		return 0
	}
	return stat.StdDev(r, nil)
}
