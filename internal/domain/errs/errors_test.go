package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaxonomyMatchesSentinels(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		sentinel error
		entity   string
	}{
		{"insufficient", &InsufficientDataError{EntityID: "north", Have: 12, Need: 30}, ErrInsufficientData, "north"},
		{"not trained", &ModelNotTrainedError{ModelID: "residual-forest", Op: "correct"}, ErrModelNotTrained, "residual-forest"},
		{"load", &ModelLoadError{ModelID: "residual-forest", Path: "/tmp/x", Err: errors.New("eof")}, ErrModelLoad, "residual-forest"},
		{"capability", &CapabilityUnavailableError{Capability: "arima", ModelID: "arima"}, ErrCapabilityUnavailable, "arima"},
		{"upstream", &UpstreamFeatureError{EntityID: "north", Group: "weather", Err: errors.New("misaligned")}, ErrUpstreamFeature, "north"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("pipeline: %w", tc.err)
			assert.ErrorIs(t, wrapped, tc.sentinel)
			assert.Equal(t, tc.entity, EntityOf(wrapped))
			assert.Contains(t, wrapped.Error(), tc.entity)
		})
	}
}

func TestEntityOfUnknown(t *testing.T) {
	assert.Empty(t, EntityOf(errors.New("boom")))
}
