package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fitDuration  *prometheus.HistogramVec
	fitsTotal    *prometheus.CounterVec
	cvError      *prometheus.GaugeVec
	anomalies    *prometheus.CounterVec
	alertsTotal  *prometheus.CounterVec
	messagesSent *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a recorder on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a recorder whose collectors are registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		fitDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loadcast_model_fit_duration_seconds",
				Help:    "Duration of model fits per model kind",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"kind"},
		),
		fitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadcast_model_fits_total",
				Help: "Model fits per kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		cvError: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "loadcast_cv_error",
				Help: "Mean cross-validation error of the last run per model kind and metric",
			},
			[]string{"kind", "metric"},
		),
		anomalies: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadcast_anomalies_total",
				Help: "Anomalous readings found per sensitivity tier",
			},
			[]string{"sensitivity"},
		),
		alertsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadcast_alerts_total",
				Help: "Alerts emitted per alert type",
			},
			[]string{"type"},
		),
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadcast_messages_sent_total",
				Help: "Total number of messages sent to a backend",
			},
			[]string{"backend", "topic"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loadcast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loadcast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordFit records one model fit.
func (r *Recorder) RecordFit(kind string, seconds float64, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	r.fitDuration.WithLabelValues(kind).Observe(seconds)
	r.fitsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordCVError sets the latest mean CV error.
func (r *Recorder) RecordCVError(kind, metric string, value float64) {
	r.cvError.WithLabelValues(kind, metric).Set(value)
}

func (r *Recorder) RecordAnomalies(sensitivity string, count int) {
	r.anomalies.WithLabelValues(sensitivity).Add(float64(count))
}

func (r *Recorder) RecordAlert(kind string) {
	r.alertsTotal.WithLabelValues(kind).Inc()
}

// RecordMessageSent records a message sent to a backend.
func (r *Recorder) RecordMessageSent(backend, topic string) {
	r.messagesSent.WithLabelValues(backend, topic).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
