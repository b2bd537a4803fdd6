// Package tbats fits a multi-seasonal exponential smoothing state-space model:
// Box-Cox transform, trigonometric seasonality, (damped) trend and ARMA errors.
package tbats

import "time"

// Config selects the model structure.
type Config struct {
	SeasonalPeriods []int
	UseTrend        bool
	UseDampedTrend  bool
	UseARMAErrors   bool
	// Simulated routes Fit and Predict to the seeded template fallback.
	Simulated bool
	Seed      int64
}

// DefaultConfig returns weekly and yearly seasonality with an undamped trend and ARMA errors.
func DefaultConfig() Config {
	return Config{
		SeasonalPeriods: []int{7, 365},
		UseTrend:        true,
		UseARMAErrors:   true,
		Seed:            42,
	}
}

const (
	ModelType          = "TBATS"
	SimulatedModelType = "TBATS (Simulated)"
	SourceTag          = "seasonal-trend"
	SimulatedSourceTag = "seasonal-trend(simulated)"

	// DefaultConfidence is used when Predict receives a level outside (0, 1).
	DefaultConfidence = 0.95
)

const day = 24 * time.Hour

// harmonics returns the number of Fourier pairs used for a period.
func harmonics(period int) int {
	k := period / 2
	limit := 3
	if period > 31 {
		limit = 6
	}
	if k > limit {
		k = limit
	}
	return k
}
