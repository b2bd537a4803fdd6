package usecase

import (
	"context"
	"fmt"

	"LoadCast/internal/domain/models"
	applogger "LoadCast/pkg/logger"
	"LoadCast/pkg/queue"
)

// NewForecastJob runs queued forecast requests.
func NewForecastJob(p *ForecastPipeline, l *applogger.Logger) queue.Job {
	if l == nil {
		l = applogger.Nop()
	}
	return queue.NewTypedJob("forecast-runner", models.JobTypeForecast, func(ctx context.Context, job *models.ForecastJob) error {
		res, err := p.Run(ctx, withForecastDefaults(job.ForecastRequest))
		if err != nil {
			return queueError(fmt.Errorf("forecast job %s: %w", job.RequestID, err))
		}
		l.Info("queued forecast done",
			applogger.String("request_id", job.RequestID),
			applogger.String("entity", res.EntityID),
			applogger.Duration("queued_for", res.GeneratedAt.Sub(job.RequestedAt)),
		)
		return nil
	})
}

// NewAnomalyScanJob runs queued anomaly scans.
func NewAnomalyScanJob(s *AnomalyScanner, l *applogger.Logger) queue.Job {
	if l == nil {
		l = applogger.Nop()
	}
	return queue.NewTypedJob("anomaly-scanner", models.JobTypeAnomalyScan, func(ctx context.Context, job *models.AnomalyScanJob) error {
		rep, err := s.Scan(ctx, withScanDefaults(job.AnomalyScanRequest))
		if err != nil {
			return queueError(fmt.Errorf("anomaly scan job %s: %w", job.RequestID, err))
		}
		l.Info("queued anomaly scan done",
			applogger.String("request_id", job.RequestID),
			applogger.Int("anomalies", rep.Summary.TotalAnomalies),
		)
		return nil
	})
}

// queueError keeps store and network failures retryable; data errors are not.
func queueError(err error) error {
	if isDataError(err) {
		return queue.Permanent(err)
	}
	return err
}

// Jobs lists the queue jobs served by the worker.
func Jobs(p *ForecastPipeline, s *AnomalyScanner, l *applogger.Logger) []queue.Job {
	return []queue.Job{NewForecastJob(p, l), NewAnomalyScanJob(s, l)}
}
