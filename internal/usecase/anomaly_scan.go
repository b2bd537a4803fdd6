package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"LoadCast/internal/domain/models"
	domrepo "LoadCast/internal/domain/repository"
	"LoadCast/internal/middleware"
	"LoadCast/internal/services/anomaly"
	applogger "LoadCast/pkg/logger"
)

// RealTimeResult is the outcome of one real-time alert check.
type RealTimeResult struct {
	Detected  []models.RealTimeAlert `json:"alerts"`
	Delivered int                    `json:"delivered"`
	Threshold float64                `json:"threshold"`
	CheckedAt time.Time              `json:"checked_at"`
}

// AnomalyScanner loads customer readings and runs the anomaly detector over them.
type AnomalyScanner struct {
	store     domrepo.SeriesStore
	results   domrepo.ResultStore
	publisher domrepo.Publisher
	detector  *anomaly.Detector
	alerts    *middleware.AlertPipeline
	metrics   domrepo.Metrics
	log       *applogger.Logger
	now       func() time.Time

	threshold float64

	sensitivity models.Sensitivity
	topN        int

	mu   sync.RWMutex
	last *models.AnomalyReport
}

// ScannerDeps are the collaborators of AnomalyScanner. Results, Publisher and Alerts are optional.
type ScannerDeps struct {
	Store     domrepo.SeriesStore
	Results   domrepo.ResultStore
	Publisher domrepo.Publisher
	Detector  *anomaly.Detector
	Alerts    *middleware.AlertPipeline
	Metrics   domrepo.Metrics
	Logger    *applogger.Logger
}

func NewAnomalyScanner(d ScannerDeps, realtimeThreshold float64) *AnomalyScanner {
	s := &AnomalyScanner{
		store:     d.Store,
		results:   d.Results,
		publisher: d.Publisher,
		detector:  d.Detector,
		alerts:    d.Alerts,
		metrics:   d.Metrics,
		log:       d.Logger,
		now:       func() time.Time { return time.Now().UTC() },
		threshold: realtimeThreshold,

		sensitivity: models.SensitivityMedium,
	}
	if s.log == nil {
		s.log = applogger.Nop()
	}
	if s.detector == nil {
		s.detector = anomaly.New(anomaly.WithLogger(s.log))
	}
	if s.threshold <= 0 {
		s.threshold = 2.0
	}
	return s
}

// WithDefaults sets the sensitivity and top-N used when a scan request leaves them empty.
func (s *AnomalyScanner) WithDefaults(sens models.Sensitivity, topN int) *AnomalyScanner {
	if sens.Valid() {
		s.sensitivity = sens
	}
	s.topN = topN
	return s
}

// Scan analyses the last req.Days of readings. Per-record flags are kept only
// when req.Details is set.
func (s *AnomalyScanner) Scan(ctx context.Context, req models.AnomalyScanRequest) (*models.AnomalyReport, error) {
	if req.Sensitivity == "" {
		req.Sensitivity = string(s.sensitivity)
	}
	if req.TopN <= 0 {
		req.TopN = s.topN
	}
	sens := models.Sensitivity(req.Sensitivity)
	if !sens.Valid() {
		return nil, fmt.Errorf("unknown sensitivity %q", req.Sensitivity)
	}
	start := time.Now()
	readings, err := s.readings(ctx, req.Days)
	if err != nil {
		return nil, err
	}
	report, err := s.detector.Analyze(ctx, readings, anomaly.Options{Sensitivity: sens, TopN: req.TopN})
	if err != nil {
		s.recordError("anomaly_scan")
		return nil, err
	}
	if !req.Details {
		for _, e := range report.AnomalyDetails {
			e.Records = nil
		}
	}
	if s.metrics != nil {
		s.metrics.RecordLatency("anomaly_scan_seconds", time.Since(start).Seconds())
	}

	s.mu.Lock()
	s.last = report
	s.mu.Unlock()

	if s.results != nil {
		if err := s.results.StoreAnomalies(ctx, report); err != nil {
			s.recordError("store_anomalies")
			s.log.Error("store anomaly report failed", applogger.Error(err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishReport(ctx, report); err != nil {
			s.recordError("publish_report")
		} else if s.metrics != nil {
			s.metrics.RecordMessageSent("kafka", "reports")
		}
	}
	s.log.Info("anomaly scan finished",
		applogger.String("sensitivity", string(sens)),
		applogger.Int("customers", report.Summary.TotalCustomers),
		applogger.Int("anomalies", report.Summary.TotalAnomalies),
		applogger.Int("alerts", len(report.Alerts)),
	)
	return report, nil
}

// RealTime checks the most recent days of every customer against its own
// window and pushes the resulting alerts through the alert pipeline.
func (s *AnomalyScanner) RealTime(ctx context.Context, req models.RealTimeAlertRequest) (*RealTimeResult, error) {
	threshold := req.Threshold
	if threshold <= 0 {
		threshold = s.threshold
	}
	readings, err := s.readings(ctx, req.Days)
	if err != nil {
		return nil, err
	}
	detected := s.detector.RealTimeAlerts(readings, threshold)
	res := &RealTimeResult{Detected: detected, Threshold: threshold, CheckedAt: s.now()}
	if s.alerts == nil {
		res.Delivered = len(detected)
		return res, nil
	}
	accepted, err := s.alerts.Process(ctx, detected)
	res.Delivered = len(accepted)
	if err != nil {
		// failed deliveries are buffered for retry by the pipeline
		s.log.Warn("some alerts not delivered", applogger.Error(err))
	}
	return res, nil
}

// Watch runs RealTime every interval until ctx is done.
func (s *AnomalyScanner) Watch(ctx context.Context, interval time.Duration, days int) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.RealTime(ctx, models.RealTimeAlertRequest{Threshold: s.threshold, Days: days}); err != nil {
				s.log.Error("real-time alert check failed", applogger.Error(err))
			}
		}
	}
}

// Last returns the most recent scan report, or nil.
func (s *AnomalyScanner) Last() *models.AnomalyReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *AnomalyScanner) readings(ctx context.Context, days int) ([]models.CustomerReading, error) {
	if days <= 0 {
		days = 90
	}
	from, to := domrepo.Window(s.now(), days)
	rows, err := s.store.CustomerReadings(ctx, from, to)
	if err != nil {
		s.recordError("series_store")
		return nil, fmt.Errorf("load customer readings: %w", err)
	}
	return rows, nil
}

func (s *AnomalyScanner) recordError(kind string) {
	if s.metrics != nil {
		s.metrics.RecordError(kind)
	}
}
