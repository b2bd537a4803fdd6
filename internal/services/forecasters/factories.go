package forecasters

import (
	"LoadCast/internal/domain/models"
	"LoadCast/internal/domain/service"
	"LoadCast/internal/services/tbats"
	"LoadCast/pkg/logger"
)

// Options carries the construction parameters of every kind.
type Options struct {
	SeasonalTrend tbats.Config
	SARIMA        SARIMAOrder
	LookBack      int
	Holidays      service.HolidayCalendar
}

// DefaultOptions mirrors the production configuration.
func DefaultOptions() Options {
	return Options{
		SeasonalTrend: tbats.DefaultConfig(),
		SARIMA:        DefaultSARIMAOrder(),
		LookBack:      DefaultLookBack,
	}
}

// Factories returns constructors for all four kinds.
func Factories(opts Options, caps service.CapabilityChecker, log *logger.Logger) map[models.ModelKind]service.ForecasterFactory {
	return map[models.ModelKind]service.ForecasterFactory{
		models.KindSeasonalTrend: func() service.Forecaster { return tbats.NewForecaster(opts.SeasonalTrend, caps, log) },
		models.KindAdditive:      func() service.Forecaster { return NewAdditive(opts.Holidays) },
		models.KindARIMA:         func() service.Forecaster { return NewSARIMA(opts.SARIMA) },
		models.KindSequence:      func() service.Forecaster { return NewSequence(opts.LookBack) },
	}
}
