package capability

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"LoadCast/internal/domain/errs"
	"LoadCast/internal/domain/models"
)

func TestResolveDefaultsAndFlags(t *testing.T) {
	r := Resolve(map[string]bool{ARIMA: false}, nil, nil)

	assert.True(t, r.Available(SeasonalTrend))
	assert.True(t, r.Available(SequenceRegressor))
	assert.False(t, r.Available(ARIMA))
	assert.Equal(t, "disabled by configuration", r.Reason(ARIMA))
	assert.NotContains(t, r.AvailableKinds(), models.KindARIMA)

	err := r.Require(ARIMA, string(models.KindARIMA))
	assert.ErrorIs(t, err, errs.ErrCapabilityUnavailable)
	assert.Equal(t, "arima", errs.EntityOf(err))
	assert.NoError(t, r.Require(SeasonalTrend, "seasonal-trend"))
}

func TestResolveProbeFailures(t *testing.T) {
	r := Resolve(nil, map[string]Probe{
		AdditiveRegression: func() error { return errors.New("no solver") },
		SequenceRegressor:  func() error { panic("boom") },
	}, nil)

	assert.False(t, r.Available(AdditiveRegression))
	assert.Equal(t, "no solver", r.Reason(AdditiveRegression))
	assert.False(t, r.Available(SequenceRegressor))
	assert.Contains(t, r.Reason(SequenceRegressor), "panicked")
	assert.True(t, r.Available(SeasonalTrend))
}

func TestDefaultProbesPass(t *testing.T) {
	r := Resolve(nil, DefaultProbes(), nil)
	assert.True(t, r.Available(ARIMA), r.Reason(ARIMA))
}

func TestNilRegistryIsUnavailable(t *testing.T) {
	var r *Registry
	assert.False(t, r.Available(SeasonalTrend))
}
