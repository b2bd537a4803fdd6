package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scanPayload struct {
	Sensitivity string `json:"sensitivity"`
	TopN        int    `json:"top"`
}

func TestParsePayloadShapes(t *testing.T) {
	want := scanPayload{Sensitivity: "high", TopN: 5}

	got, err := ParsePayload[scanPayload](map[string]interface{}{"sensitivity": "high", "top": 5})
	require.NoError(t, err)
	assert.Equal(t, want, *got)

	raw, _ := json.Marshal(want)
	got, err = ParsePayload[scanPayload](json.RawMessage(raw))
	require.NoError(t, err)
	assert.Equal(t, want, *got)

	got, err = ParsePayload[scanPayload](want)
	require.NoError(t, err)
	assert.Equal(t, want, *got)

	_, err = ParsePayload[scanPayload](42)
	assert.Error(t, err)
}

func TestRetryDelayBackoff(t *testing.T) {
	base := time.Second
	assert.Equal(t, time.Second, retryDelay(base, 0))
	assert.Equal(t, time.Second, retryDelay(base, 1))
	assert.Equal(t, 4*time.Second, retryDelay(base, 3))
	assert.Equal(t, 32*time.Second, retryDelay(base, 10))
}

func TestEnqueueRequiresRunningQueue(t *testing.T) {
	q := NewRedisQueue(nil, nil, nil, ModeProducerOnly)
	_, err := q.Enqueue(t.Context(), "forecast.run", map[string]int{"horizon": 7})
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.Equal(t, "loadcast:queue:messages", q.getQueueKey())
}

func TestTypedJobDecodesPayload(t *testing.T) {
	var seen *scanPayload
	job := NewTypedJob("anomaly-scanner", "anomaly.scan", func(_ context.Context, p *scanPayload) error {
		seen = p
		if p.TopN == 0 {
			return errors.New("store unavailable")
		}
		return nil
	})
	assert.Equal(t, "anomaly-scanner", job.Name())
	assert.Equal(t, "anomaly.scan", job.Type())

	require.NoError(t, job.Handle(t.Context(), map[string]interface{}{"sensitivity": "low", "top": 3}))
	assert.Equal(t, &scanPayload{Sensitivity: "low", TopN: 3}, seen)

	err := job.Handle(t.Context(), scanPayload{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPermanent)

	err = job.Handle(t.Context(), "not a payload")
	assert.ErrorIs(t, err, ErrPermanent)
	assert.Nil(t, Permanent(nil))
}
