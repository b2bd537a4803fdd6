package models

import "time"

// Job type names shared by the Redis queue and the Kafka intake topic.
const (
	JobTypeForecast    = "forecast.run"
	JobTypeAnomalyScan = "anomaly.scan"
)

// ForecastJob is the payload of an asynchronous forecast run.
type ForecastJob struct {
	ForecastRequest
	RequestID   string    `json:"request_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// AnomalyScanJob is the payload of an asynchronous anomaly scan.
type AnomalyScanJob struct {
	AnomalyScanRequest
	RequestID   string    `json:"request_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// JobAccepted is returned when a job has been queued.
type JobAccepted struct {
	JobID     string    `json:"job_id"`
	Type      string    `json:"type"`
	QueuedAt  time.Time `json:"queued_at"`
	RequestID string    `json:"request_id"`
}
