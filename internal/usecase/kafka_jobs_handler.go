package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"LoadCast/internal/domain/errs"
	"LoadCast/internal/domain/models"
	domrepo "LoadCast/internal/domain/repository"
	pkgkafka "LoadCast/pkg/kafka"
	applogger "LoadCast/pkg/logger"
)

// JobEnvelope is the message schema of the job intake topic.
type JobEnvelope struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// KafkaJobsHandler consumes job envelopes and runs them against the pipeline or the scanner.
type KafkaJobsHandler struct {
	topic    string
	pipeline *ForecastPipeline
	scanner  *AnomalyScanner
	metrics  domrepo.Metrics
	log      *applogger.Logger
}

func NewKafkaJobsHandler(topic string, pipeline *ForecastPipeline, scanner *AnomalyScanner, metrics domrepo.Metrics, l *applogger.Logger) *KafkaJobsHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &KafkaJobsHandler{topic: topic, pipeline: pipeline, scanner: scanner, metrics: metrics, log: l}
}

func (h *KafkaJobsHandler) Topic() string { return h.topic }

// Handle decodes one envelope. Malformed envelopes and data errors are not
// retried; transient failures are returned as-is so the consumer backs off.
func (h *KafkaJobsHandler) Handle(ctx context.Context, b []byte) error {
	var env JobEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		h.recordError("consumer_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode job envelope: %w", err))
	}
	start := time.Now()
	l := h.log.With(
		applogger.String("type", env.Type),
		applogger.String("request_id", env.RequestID),
		applogger.String("trace_id", pkgkafka.TraceID(ctx)),
	)

	var err error
	switch env.Type {
	case models.JobTypeForecast:
		var req models.ForecastRequest
		if err = decodePayload(env.Payload, &req); err != nil {
			break
		}
		var res *models.ForecastResult
		res, err = h.pipeline.Run(ctx, withForecastDefaults(req))
		if err == nil {
			l.Info("forecast job done", applogger.String("entity", res.EntityID), applogger.Int("warnings", len(res.Warnings)))
		}
	case models.JobTypeAnomalyScan:
		var req models.AnomalyScanRequest
		if err = decodePayload(env.Payload, &req); err != nil {
			break
		}
		var rep *models.AnomalyReport
		rep, err = h.scanner.Scan(ctx, withScanDefaults(req))
		if err == nil {
			l.Info("anomaly scan job done", applogger.Int("anomalies", rep.Summary.TotalAnomalies))
		}
	default:
		err = pkgkafka.Permanent(fmt.Errorf("unknown job type %q", env.Type))
	}

	if h.metrics != nil {
		h.metrics.RecordLatency("job_"+env.Type+"_seconds", time.Since(start).Seconds())
	}
	if err != nil {
		h.recordError("consumer_job")
		l.Warn("job failed", applogger.Error(err))
		if isDataError(err) {
			return pkgkafka.Permanent(err)
		}
		return err
	}
	if h.metrics != nil {
		h.metrics.RecordMessageSent("kafka", h.topic)
	}
	return nil
}

func (h *KafkaJobsHandler) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return pkgkafka.Permanent(errors.New("empty job payload"))
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return pkgkafka.Permanent(fmt.Errorf("decode job payload: %w", err))
	}
	return nil
}

// isDataError reports failures that a retry of the same message cannot fix.
func isDataError(err error) bool {
	return errors.Is(err, errs.ErrInsufficientData) ||
		errors.Is(err, errs.ErrCapabilityUnavailable) ||
		errors.Is(err, errs.ErrModelNotTrained)
}

// withForecastDefaults fills zero fields of a request that did not pass
// through HTTP binding.
func withForecastDefaults(req models.ForecastRequest) models.ForecastRequest {
	if req.Horizon <= 0 {
		req.Horizon = 30
	}
	if req.Confidence <= 0 || req.Confidence >= 1 {
		req.Confidence = 0.95
	}
	if req.Lookback <= 0 {
		req.Lookback = 730
	}
	return req
}

func withScanDefaults(req models.AnomalyScanRequest) models.AnomalyScanRequest {
	if req.Sensitivity == "" {
		req.Sensitivity = string(models.SensitivityMedium)
	}
	if req.TopN <= 0 {
		req.TopN = 20
	}
	if req.Days <= 0 {
		req.Days = 90
	}
	return req
}

var _ pkgkafka.MessageHandler = (*KafkaJobsHandler)(nil)
