package repository

import (
	"context"
	"time"

	"LoadCast/internal/domain/models"
)

// SeriesStore provides read access to the historical inputs of the pipeline.
type SeriesStore interface {
	// DailySeries returns raw daily observations for a region or customer, oldest first.
	DailySeries(ctx context.Context, entityID string, from, to time.Time) ([]models.Observation, error)
	// CustomerReadings returns per-customer rows in [from, to].
	CustomerReadings(ctx context.Context, from, to time.Time) ([]models.CustomerReading, error)
	// Weather returns hourly or daily weather rows in [from, to].
	Weather(ctx context.Context, from, to time.Time) ([]models.WeatherRecord, error)
	Health(ctx context.Context) error
}

// ResultStore persists pipeline outputs.
type ResultStore interface {
	Init(ctx context.Context) error // ensure tables
	StoreForecast(ctx context.Context, res *models.ForecastResult) error
	StoreAnomalies(ctx context.Context, report *models.AnomalyReport) error
	Health(ctx context.Context) error
}

// Publisher fans pipeline outputs out to downstream consumers.
type Publisher interface {
	PublishForecast(ctx context.Context, res *models.ForecastResult) error
	PublishReport(ctx context.Context, report *models.AnomalyReport) error
	PublishAlerts(ctx context.Context, alerts []models.RealTimeAlert) error
	Close() error
}

type Metrics interface {
	RecordFit(kind string, seconds float64, ok bool)
	RecordCVError(kind, metric string, value float64)
	RecordAnomalies(sensitivity string, count int)
	RecordAlert(kind string)
	RecordMessageSent(backend, topic string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
