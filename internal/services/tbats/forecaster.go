package tbats

import (
	"context"
	"sync"

	"LoadCast/internal/domain/errs"
	"LoadCast/internal/domain/models"
	"LoadCast/internal/domain/service"
	"LoadCast/pkg/logger"
)

// CapabilityName gates the real estimator; without it the simulated fallback is used.
const CapabilityName = "seasonal_trend"

// Forecaster adapts Fit/Predict to the shared forecaster contract and keeps the fitted state.
type Forecaster struct {
	cfg Config
	log *logger.Logger

	mu    sync.RWMutex
	model *FittedModel
}

// NewForecaster builds a seasonal-trend forecaster. When caps reports the
// capability as unavailable the simulated fallback is selected.
func NewForecaster(cfg Config, caps service.CapabilityChecker, log *logger.Logger) *Forecaster {
	if log == nil {
		log = logger.Nop()
	}
	if caps != nil && !caps.Available(CapabilityName) {
		cfg.Simulated = true
	}
	return &Forecaster{cfg: cfg, log: log}
}

func (f *Forecaster) Kind() models.ModelKind { return models.KindSeasonalTrend }

// Simulated reports whether the forecaster runs the fallback.
func (f *Forecaster) Simulated() bool { return f.cfg.Simulated }

func (f *Forecaster) Fit(_ context.Context, series models.TimeSeries) (*models.FitSummary, error) {
	m, err := Fit(series, f.cfg)
	if err != nil {
		return nil, err
	}
	if m.Simulated {
		f.log.Warn("seasonal-trend running simulated fallback",
			logger.String("entity", series.EntityID),
		)
	}
	f.mu.Lock()
	f.model = m
	f.mu.Unlock()
	return m.Summary(), nil
}

func (f *Forecaster) Predict(horizon int, confidence float64) (models.Forecast, error) {
	m, err := f.Model()
	if err != nil {
		return models.Forecast{}, err
	}
	return m.Predict(horizon, confidence)
}

// Model returns the fitted state or ModelNotTrainedError.
func (f *Forecaster) Model() (*FittedModel, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.model == nil {
		return nil, &errs.ModelNotTrainedError{ModelID: string(models.KindSeasonalTrend), Op: "predict"}
	}
	return f.model, nil
}

// Save persists the fitted state.
func (f *Forecaster) Save(path string) error {
	m, err := f.Model()
	if err != nil {
		return err
	}
	return m.Save(path)
}

// Load replaces the fitted state with the model at path. On failure the
// previous state is kept.
func (f *Forecaster) Load(path string) error {
	m, err := Load(path)
	if err != nil {
		f.log.Warn("seasonal-trend model load failed", logger.String("path", path), logger.Error(err))
		return err
	}
	f.mu.Lock()
	f.model = m
	f.mu.Unlock()
	return nil
}

func (f *Forecaster) Fitted() ([]float64, error) {
	m, err := f.Model()
	if err != nil {
		return nil, err
	}
	return m.Fitted(), nil
}

func (f *Forecaster) Residuals() ([]float64, error) {
	m, err := f.Model()
	if err != nil {
		return nil, err
	}
	return m.Residuals(), nil
}

var (
	_ service.Forecaster     = (*Forecaster)(nil)
	_ service.ResidualSource = (*Forecaster)(nil)
)
