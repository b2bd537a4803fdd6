package repository

import (
	"context"
	"fmt"

	"LoadCast/internal/domain/models"
	domrepo "LoadCast/internal/domain/repository"
	pkgkafka "LoadCast/pkg/kafka"
	applogger "LoadCast/pkg/logger"
)

// Topics names the output topics of the publisher. An empty topic disables that stream.
type Topics struct {
	Forecasts string
	Reports   string
	Alerts    string
}

type producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// KafkaPublisher implements Publisher on top of the shared Kafka producer.
// Messages are keyed by entity or customer ID so per-entity ordering holds
// under the hash balancer.
type KafkaPublisher struct {
	producer producer
	topics   Topics
	l        *applogger.Logger
}

var _ domrepo.Publisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(p *pkgkafka.Producer, topics Topics) *KafkaPublisher {
	return newKafkaPublisher(p, topics)
}

func newKafkaPublisher(p producer, topics Topics) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topics: topics, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (p *KafkaPublisher) SetLogger(l *applogger.Logger) {
	if l != nil {
		p.l = l
	}
}

func (p *KafkaPublisher) PublishForecast(ctx context.Context, res *models.ForecastResult) error {
	if p.topics.Forecasts == "" || res == nil {
		return nil
	}
	if err := p.producer.Publish(ctx, p.topics.Forecasts, []byte(res.EntityID), res); err != nil {
		p.l.Error("kafka publish forecast failed",
			applogger.String("topic", p.topics.Forecasts),
			applogger.String("entity", res.EntityID),
			applogger.Error(err),
		)
		return fmt.Errorf("publish forecast: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) PublishReport(ctx context.Context, report *models.AnomalyReport) error {
	if p.topics.Reports == "" || report == nil {
		return nil
	}
	key := []byte(report.Summary.AnalysisDate.UTC().Format("2006-01-02T15:04:05Z"))
	if err := p.producer.Publish(ctx, p.topics.Reports, key, report); err != nil {
		p.l.Error("kafka publish report failed", applogger.String("topic", p.topics.Reports), applogger.Error(err))
		return fmt.Errorf("publish report: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) PublishAlerts(ctx context.Context, alerts []models.RealTimeAlert) error {
	if p.topics.Alerts == "" || len(alerts) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(alerts))
	for i, a := range alerts {
		msgs[i] = pkgkafka.Message{Key: []byte(a.CustomerID), Value: a}
	}
	if err := p.producer.PublishBatch(ctx, p.topics.Alerts, msgs); err != nil {
		p.l.Error("kafka publish alerts failed",
			applogger.String("topic", p.topics.Alerts),
			applogger.Int("count", len(alerts)),
			applogger.Error(err),
		)
		return fmt.Errorf("publish alerts: %w", err)
	}
	return nil
}

// Deliver publishes a single alert; it lets the publisher act as an alert pipeline sink.
func (p *KafkaPublisher) Deliver(ctx context.Context, a models.RealTimeAlert) error {
	return p.PublishAlerts(ctx, []models.RealTimeAlert{a})
}

func (p *KafkaPublisher) Close() error { return p.producer.Close() }
