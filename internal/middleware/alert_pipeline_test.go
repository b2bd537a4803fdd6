package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LoadCast/internal/domain/models"
)

type countingMetrics struct {
	mu     sync.Mutex
	alerts int
	errors map[string]int
}

func newCountingMetrics() *countingMetrics { return &countingMetrics{errors: map[string]int{}} }

func (m *countingMetrics) RecordFit(string, float64, bool)       {}
func (m *countingMetrics) RecordCVError(string, string, float64) {}
func (m *countingMetrics) RecordAnomalies(string, int)           {}
func (m *countingMetrics) RecordAlert(string)                    { m.mu.Lock(); m.alerts++; m.mu.Unlock() }
func (m *countingMetrics) RecordMessageSent(string, string)      {}
func (m *countingMetrics) RecordError(kind string)               { m.mu.Lock(); m.errors[kind]++; m.mu.Unlock() }
func (m *countingMetrics) RecordLatency(string, float64)         {}

func alert(id string) models.RealTimeAlert {
	return models.RealTimeAlert{CustomerID: id, AlertType: models.AlertTypeRealTime, Date: time.Now(), ZScore: 3}
}

func TestPipelineThrottlesPerCustomer(t *testing.T) {
	var got []string
	sink := SinkFunc(func(_ context.Context, a models.RealTimeAlert) error {
		got = append(got, a.CustomerID)
		return nil
	})
	m := newCountingMetrics()
	p := NewAlertPipeline(m, []Sink{sink}, WithThrottle(0.001, 1))

	accepted, err := p.Process(context.Background(), []models.RealTimeAlert{alert("a"), alert("a"), alert("b"), {CustomerID: ""}})
	require.Error(t, err)
	assert.Len(t, accepted, 2)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 2, m.alerts)
	assert.Equal(t, 1, m.errors["alert_throttle"])
	assert.Equal(t, 1, m.errors["alert_validate"])
}

func TestPipelineRedeliversFailedAlerts(t *testing.T) {
	var mu sync.Mutex
	fail := true
	delivered := 0
	sink := SinkFunc(func(context.Context, models.RealTimeAlert) error {
		mu.Lock()
		defer mu.Unlock()
		if fail {
			return errors.New("broker down")
		}
		delivered++
		return nil
	})
	p := NewAlertPipeline(newCountingMetrics(), []Sink{sink})

	_, err := p.Process(context.Background(), []models.RealTimeAlert{alert("a")})
	require.Error(t, err)
	assert.Equal(t, 1, p.Pending())

	mu.Lock()
	fail = false
	mu.Unlock()
	p.Start(context.Background())
	defer p.Stop()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered == 1
	}, time.Second, 10*time.Millisecond)
}
