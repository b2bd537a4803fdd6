package forecasters

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"LoadCast/internal/domain/models"
)

const defaultConfidence = 0.95

func zScore(confidence float64) float64 {
	if confidence <= 0 || confidence >= 1 {
		confidence = defaultConfidence
	}
	return distuv.UnitNormal.Quantile((1 + confidence) / 2)
}

func newForecast(entityID, source string, confidence float64, horizon int) models.Forecast {
	if confidence <= 0 || confidence >= 1 {
		confidence = defaultConfidence
	}
	return models.Forecast{
		EntityID:   entityID,
		Source:     source,
		Confidence: confidence,
		Rows:       make([]models.ForecastRow, horizon),
	}
}

func row(d time.Time, point, half float64, source string) models.ForecastRow {
	half = math.Abs(half)
	return models.ForecastRow{Date: d, Point: point, Lower: point - half, Upper: point + half, Source: source}
}

// stdOf returns the sample standard deviation of the finite entries.
func stdOf(v []float64) float64 {
	finite := make([]float64, 0, len(v))
	for _, x := range v {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			finite = append(finite, x)
		}
	}
	if len(finite) < 2 {
		return 0
	}
	return stat.StdDev(finite, nil)
}
