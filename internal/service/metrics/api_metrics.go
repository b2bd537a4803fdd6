package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	EndpointLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "loadcast",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of forecasting and anomaly endpoints",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"endpoint"},
	)

	EndpointErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loadcast",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by endpoint and error code",
		},
		[]string{"endpoint", "code"},
	)

	JobsEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loadcast",
			Subsystem: "api",
			Name:      "jobs_enqueued_total",
			Help:      "Asynchronous jobs accepted by type",
		},
		[]string{"type"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(EndpointLatency, EndpointErrors, JobsEnqueued)
	})
}

// ObserveSince records the latency of endpoint measured from start.
func ObserveSince(endpoint string, start time.Time) {
	EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// ObserveError counts a failed request by its error code.
func ObserveError(endpoint, code string) {
	EndpointErrors.WithLabelValues(endpoint, code).Inc()
}
