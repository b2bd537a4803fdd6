package kafka

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducerValidatesOptions(t *testing.T) {
	tests := []struct {
		name string
		opts []ProducerOption
		ok   bool
	}{
		{"no brokers", nil, false},
		{"defaults", []ProducerOption{WithBrokers([]string{"localhost:9092"})}, true},
		{"unknown codec", []ProducerOption{WithBrokers([]string{"b:9092"}), WithCompression("brotli")}, false},
		{"bad acks", []ProducerOption{WithBrokers([]string{"b:9092"}), WithRequiredAcks(2)}, false},
		{"uncompressed", []ProducerOption{WithBrokers([]string{"b:9092"}), WithCompression("")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProducer(tt.opts...)
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, p.Close())
		})
	}
}

func TestZeroOptionsKeepDefaults(t *testing.T) {
	cfg := defaultProducerConfig()
	for _, opt := range []ProducerOption{
		WithBrokers([]string{"b:9092"}),
		WithBatchSize(0),
		WithBatchBytes(0),
		WithBatchTimeout(0),
		WithTimeouts(0, time.Second),
		WithMaxAttempts(0),
		WithCompression("zstd"),
		WithHashByKey(true),
	} {
		opt(cfg)
	}
	require.NoError(t, cfg.validate())

	w := cfg.writer()
	assert.Equal(t, 100, w.BatchSize)
	assert.Equal(t, 50*time.Millisecond, w.BatchTimeout)
	assert.Equal(t, 10*time.Second, w.WriteTimeout)
	assert.Equal(t, time.Second, w.ReadTimeout)
	assert.Equal(t, 3, w.MaxAttempts)
	assert.Equal(t, kafka.Zstd, w.Compression)
	assert.IsType(t, &kafka.Hash{}, w.Balancer)
}
