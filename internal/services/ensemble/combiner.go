// Package ensemble blends the fitted forecasters of a suite into one weighted
// forecast and scores them by K-fold cross-validation.
package ensemble

import (
	"fmt"
	"sync"

	"LoadCast/internal/domain/models"
	"LoadCast/internal/domain/service"
	"LoadCast/pkg/logger"
)

// Strategy selects how ensemble weights are derived.
type Strategy string

const (
	StrategyFixed        Strategy = "fixed"
	StrategyInverseError Strategy = "inverse_error"
)

// DefaultWeights gives every kind the same share.
func DefaultWeights() map[models.ModelKind]float64 {
	return map[models.ModelKind]float64{
		models.KindSeasonalTrend: 0.25,
		models.KindAdditive:      0.25,
		models.KindARIMA:         0.25,
		models.KindSequence:      0.25,
	}
}

// Models is the view of a trained suite the combiner needs.
type Models interface {
	Available() []models.ModelKind
	Fitted() map[models.ModelKind]service.Forecaster
	Results() map[models.ModelKind]models.FitResult
	Factory(kind models.ModelKind) (service.ForecasterFactory, bool)
}

// CVObserver receives averaged cross-validation errors.
type CVObserver interface {
	RecordCVError(kind, metric string, value float64)
}

type Combiner struct {
	models   Models
	weights  map[models.ModelKind]float64
	strategy Strategy
	log      *logger.Logger
	observer CVObserver

	mu     sync.RWMutex
	lastCV *models.CVReport
}

// Option configures a Combiner.
type Option func(*Combiner)

// WithWeights overrides the configured weight map. Kinds absent from w keep their default.
func WithWeights(w map[models.ModelKind]float64) Option {
	return func(c *Combiner) {
		for k, v := range w {
			c.weights[k] = v
		}
	}
}

// WithStrategy selects fixed or inverse-error weighting.
func WithStrategy(s Strategy) Option {
	return func(c *Combiner) { c.strategy = s }
}

// WithLogger injects a structured logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Combiner) { c.log = l }
}

// WithCVObserver reports averaged CV errors.
func WithCVObserver(o CVObserver) Option {
	return func(c *Combiner) { c.observer = o }
}

func NewCombiner(m Models, opts ...Option) *Combiner {
	c := &Combiner{
		models:   m,
		weights:  DefaultWeights(),
		strategy: StrategyFixed,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Weights returns the weights of the given kinds renormalised to sum to 1.
// With the inverse-error strategy and a cross-validation report covering every
// kind, weights are proportional to 1/MAE; otherwise the configured map is used.
// A subset whose raw weights sum to zero gets equal weights.
func (c *Combiner) Weights(available []models.ModelKind) map[models.ModelKind]float64 {
	out := make(map[models.ModelKind]float64, len(available))
	if len(available) == 0 {
		return out
	}
	raw := c.inverseErrorWeights(available)
	if raw == nil {
		raw = make(map[models.ModelKind]float64, len(available))
		for _, k := range available {
			raw[k] = c.weights[k]
		}
	}
	sum := 0.0
	for _, k := range available {
		sum += raw[k]
	}
	for _, k := range available {
		if sum > 0 {
			out[k] = raw[k] / sum
		} else {
			out[k] = 1 / float64(len(available))
		}
	}
	return out
}

func (c *Combiner) inverseErrorWeights(available []models.ModelKind) map[models.ModelKind]float64 {
	if c.strategy != StrategyInverseError {
		return nil
	}
	c.mu.RLock()
	cv := c.lastCV
	c.mu.RUnlock()
	if cv == nil {
		return nil
	}
	raw := make(map[models.ModelKind]float64, len(available))
	for _, k := range available {
		score, ok := cv.Models[k]
		if !ok || score.MeanMAE <= 0 || successfulFolds(score) == 0 {
			return nil
		}
		raw[k] = 1 / score.MeanMAE
	}
	return raw
}

// PredictEnsemble averages point, lower and upper per date over every fitted
// model that predicts successfully. No model yields an empty forecast and no
// error; per-model prediction failures are returned in the error map. The
// blend is marked simulated when any member is.
func (c *Combiner) PredictEnsemble(horizon int, confidence float64) (models.Forecast, map[models.ModelKind]error) {
	fitted := c.models.Fitted()
	failures := make(map[models.ModelKind]error)
	forecasts := make(map[models.ModelKind]models.Forecast, len(fitted))
	var present []models.ModelKind
	for _, k := range models.AllKinds() {
		f, ok := fitted[k]
		if !ok {
			continue
		}
		fc, err := f.Predict(horizon, confidence)
		if err != nil {
			failures[k] = err
			continue
		}
		if len(fc.Rows) != horizon {
			failures[k] = fmt.Errorf("model %s returned %d rows, want %d", k, len(fc.Rows), horizon)
			continue
		}
		forecasts[k] = fc
		present = append(present, k)
	}

	out := models.Forecast{Source: models.SourceEnsemble, Confidence: confidence}
	if len(present) == 0 {
		return out, failures
	}
	w := c.Weights(present)
	ref := forecasts[present[0]]
	out.EntityID = ref.EntityID
	for _, k := range present {
		out.Members = append(out.Members, forecasts[k].Source)
		out.Simulated = out.Simulated || forecasts[k].Simulated
	}
	out.Rows = make([]models.ForecastRow, horizon)
	for i := 0; i < horizon; i++ {
		r := models.ForecastRow{Date: ref.Rows[i].Date, Source: models.SourceEnsemble}
		for _, k := range present {
			fr := forecasts[k].Rows[i]
			r.Point += w[k] * fr.Point
			r.Lower += w[k] * fr.Lower
			r.Upper += w[k] * fr.Upper
		}
		out.Rows[i] = r
	}
	for k, err := range failures {
		c.log.Warn("ensemble member failed",
			logger.String("entity", out.EntityID),
			logger.String("model", string(k)),
			logger.Error(err),
		)
	}
	return out, failures
}

// Comparison summarises availability, training outcome, weights and the last CV run.
func (c *Combiner) Comparison() models.ModelComparison {
	fitted := c.models.Fitted()
	var trained []models.ModelKind
	for _, k := range models.AllKinds() {
		if _, ok := fitted[k]; ok {
			trained = append(trained, k)
		}
	}
	c.mu.RLock()
	cv := c.lastCV
	c.mu.RUnlock()
	return models.ModelComparison{
		Available: c.models.Available(),
		Trained:   trained,
		Weights:   c.Weights(trained),
		Strategy:  string(c.strategy),
		Fits:      c.models.Results(),
		CV:        cv,
	}
}

// LastCV returns the most recent cross-validation report, or nil.
func (c *Combiner) LastCV() *models.CVReport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastCV
}

func successfulFolds(s *models.ModelCVScore) int {
	n := 0
	for _, f := range s.Folds {
		if f.Error == "" {
			n++
		}
	}
	return n
}
