package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"LoadCast/internal/domain/models"
	domrepo "LoadCast/internal/domain/repository"
	"LoadCast/internal/service/ratelimit"
	"LoadCast/pkg/logger"
)

// Sink receives alerts that passed validation and throttling.
type Sink interface {
	Deliver(ctx context.Context, alert models.RealTimeAlert) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, alert models.RealTimeAlert) error

func (f SinkFunc) Deliver(ctx context.Context, a models.RealTimeAlert) error { return f(ctx, a) }

// AlertPipeline sits between the real-time detector and its consumers.
// It validates alerts, throttles them per customer, and buffers deliveries
// that failed so a background loop can retry them with backoff.
type AlertPipeline struct {
	sinks   []Sink
	metrics domrepo.Metrics
	limiter *ratelimit.Limiter
	log     *logger.Logger
	bufSize int
	bufCh   chan models.RealTimeAlert
	stopCh  chan struct{}
	done    chan struct{}
	started bool
	mu      sync.Mutex
}

// pruneEvery is how often idle per-customer throttle buckets are dropped.
const pruneEvery = 10 * time.Minute

type PipelineOption func(*AlertPipeline)

// WithThrottle allows ratePerSec alerts per customer with the given burst.
func WithThrottle(ratePerSec float64, burst int) PipelineOption {
	return func(p *AlertPipeline) {
		if ratePerSec > 0 {
			p.limiter = ratelimit.New(ratePerSec, burst)
		}
	}
}

// WithBufferSize sets how many failed deliveries are kept for retry.
func WithBufferSize(n int) PipelineOption {
	return func(p *AlertPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func WithPipelineLogger(l *logger.Logger) PipelineOption {
	return func(p *AlertPipeline) { p.log = l }
}

// NewAlertPipeline creates a pipeline delivering to every sink in order.
func NewAlertPipeline(metrics domrepo.Metrics, sinks []Sink, opts ...PipelineOption) *AlertPipeline {
	p := &AlertPipeline{
		sinks:   sinks,
		metrics: metrics,
		log:     logger.Nop(),
		bufSize: 1000,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan models.RealTimeAlert, p.bufSize)
	return p
}

// Start launches background redelivery of buffered alerts.
func (p *AlertPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.done)
		backoff := 50 * time.Millisecond
		prune := time.NewTicker(pruneEvery)
		defer prune.Stop()
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case <-prune.C:
				if p.limiter != nil {
					p.limiter.Prune(pruneEvery)
				}
			case a := <-p.bufCh:
				if err := p.deliver(ctx, a); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("alert_redeliver")
					select {
					case <-time.After(backoff):
					case <-p.stopCh:
						return
					}
					select {
					case p.bufCh <- a:
					default:
						p.metrics.RecordError("alert_buffer_drop")
					}
					continue
				}
				backoff = 50 * time.Millisecond
			}
		}
	}()
}

// Stop stops the redelivery loop and waits for it to exit.
func (p *AlertPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.done
}

// Pending returns the number of alerts waiting for redelivery.
func (p *AlertPipeline) Pending() int { return len(p.bufCh) }

// Process validates, throttles and delivers alerts. It returns the alerts that
// were accepted; throttled alerts are dropped silently and failed deliveries
// are buffered and reported in the joined error.
func (p *AlertPipeline) Process(ctx context.Context, alerts []models.RealTimeAlert) ([]models.RealTimeAlert, error) {
	var accepted []models.RealTimeAlert
	var errs []error
	for _, a := range alerts {
		if err := validateAlert(a); err != nil {
			p.metrics.RecordError("alert_validate")
			errs = append(errs, err)
			continue
		}
		if p.limiter != nil && !p.limiter.Allow(a.CustomerID) {
			p.metrics.RecordError("alert_throttle")
			p.log.Debug("alert throttled", logger.String("customer", a.CustomerID))
			continue
		}
		accepted = append(accepted, a)
		p.metrics.RecordAlert(a.AlertType)
		if err := p.deliver(ctx, a); err != nil {
			select {
			case p.bufCh <- a:
			default:
				p.metrics.RecordError("alert_buffer_full")
			}
			errs = append(errs, fmt.Errorf("deliver alert for %s: %w", a.CustomerID, err))
		}
	}
	return accepted, errors.Join(errs...)
}

func (p *AlertPipeline) deliver(ctx context.Context, a models.RealTimeAlert) error {
	var errs []error
	for _, s := range p.sinks {
		if err := s.Deliver(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func validateAlert(a models.RealTimeAlert) error {
	if a.CustomerID == "" {
		return fmt.Errorf("alert without customer")
	}
	if a.Date.IsZero() {
		return fmt.Errorf("alert for %s without date", a.CustomerID)
	}
	if math.IsNaN(a.ZScore) || math.IsInf(a.ZScore, 0) {
		return fmt.Errorf("alert for %s has invalid z-score", a.CustomerID)
	}
	return nil
}
