package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, "environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 30, c.Forecast.Horizon)
	assert.InDelta(t, 0.95, c.Forecast.Confidence, 1e-12)
	assert.Equal(t, []int{7, 365}, c.Forecast.SeasonalPeriods)
	assert.True(t, c.Forecast.UseTrend)
	assert.Equal(t, "fixed", c.Forecast.Weighting)
	assert.Equal(t, 5, c.Forecast.CVFolds)
	assert.Equal(t, 100, c.Residual.Trees)
	assert.Equal(t, "medium", c.Anomaly.Sensitivity)
	assert.Equal(t, 20, c.Anomaly.TopN)
	assert.Equal(t, 10*time.Second, c.Queue.RetryDelay)
	assert.Equal(t, 30*time.Second, c.Alerts.PingInterval)
}

func TestLoadCommittedConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "loadcast.jobs", c.Kafka.Topics.Jobs)
	assert.Len(t, c.Forecast.Weights, 4)
	assert.True(t, c.Queue.Enabled)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing environment", "server:\n  port: 9000\n"},
		{"horizon", "environment: t\nforecast:\n  horizon: 400\n"},
		{"confidence", "environment: t\nforecast:\n  confidence: 1.5\n"},
		{"weighting", "environment: t\nforecast:\n  weighting: softmax\n"},
		{"folds", "environment: t\nforecast:\n  cv_folds: 1\n"},
		{"negative weight", "environment: t\nforecast:\n  weights:\n    arima: -1\n"},
		{"period", "environment: t\nforecast:\n  seasonal_periods: [1]\n"},
		{"sensitivity", "environment: t\nanomaly:\n  sensitivity: extreme\n"},
		{"holiday date", "environment: t\nholidays:\n  static: [\"2024-13-01\"]\n"},
		{"queue without redis", "environment: t\nqueue:\n  enabled: true\n"},
		{"test fraction", "environment: t\nresidual:\n  test_fraction: 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("LOADCAST_PORT", "9191")
	t.Setenv("LOADCAST_WEIGHTING", "inverse_error")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_ADDR", "cache:6379")

	c, err := LoadWithEnv(writeConfig(t, "environment: test\n"))
	require.NoError(t, err)
	assert.Equal(t, 9191, c.Server.Port)
	assert.Equal(t, "inverse_error", c.Forecast.Weighting)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Redis.Enabled)
	assert.Equal(t, "cache:6379", c.Redis.Addr)

	t.Setenv("LOADCAST_WEIGHTING", "softmax")
	_, err = LoadWithEnv(writeConfig(t, "environment: test\n"))
	assert.Error(t, err)
}
