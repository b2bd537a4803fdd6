package service

import (
	"context"
	"time"

	"LoadCast/internal/domain/models"
)

// Forecaster is the fit/predict contract shared by every model kind.
// An instance keeps its own fitted state; Predict before a successful Fit
// fails with errs.ModelNotTrainedError.
type Forecaster interface {
	Kind() models.ModelKind
	Fit(ctx context.Context, series models.TimeSeries) (*models.FitSummary, error)
	Predict(horizon int, confidence float64) (models.Forecast, error)
}

// ResidualSource is implemented by forecasters whose in-sample fit is exposed
// for residual correction and evaluation.
type ResidualSource interface {
	Fitted() ([]float64, error)
	Residuals() ([]float64, error)
}

// ForecasterFactory builds a fresh, unfitted forecaster.
type ForecasterFactory func() Forecaster

// CapabilityChecker answers whether an optional backend may be used.
type CapabilityChecker interface {
	Available(name string) bool
}

// HolidayCalendar reports public holidays.
type HolidayCalendar interface {
	IsHoliday(date time.Time) bool
}

// HolidayProvider loads the public holidays of a year.
type HolidayProvider interface {
	Holidays(ctx context.Context, year int) ([]time.Time, error)
}
