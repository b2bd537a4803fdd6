// Package capability resolves, once at startup, which optional model backends may be used.
package capability

import (
	"fmt"
	"math"

	"github.com/sartorproj/goarima/arima"
	"github.com/sartorproj/goarima/timeseries"

	"LoadCast/internal/domain/errs"
	"LoadCast/internal/domain/models"
	"LoadCast/pkg/logger"
)

// Capability names.
const (
	SeasonalTrend      = "seasonal_trend"
	AdditiveRegression = "additive_regression"
	ARIMA              = "arima"
	SequenceRegressor  = "sequence_regressor"
	ResidualForest     = "residual_forest"
)

// Names returns every known capability in a stable order.
func Names() []string {
	return []string{SeasonalTrend, AdditiveRegression, ARIMA, SequenceRegressor, ResidualForest}
}

// ForKind maps a model kind to the capability gating it.
func ForKind(kind models.ModelKind) string {
	switch kind {
	case models.KindSeasonalTrend:
		return SeasonalTrend
	case models.KindAdditive:
		return AdditiveRegression
	case models.KindARIMA:
		return ARIMA
	case models.KindSequence:
		return SequenceRegressor
	}
	return string(kind)
}

// Probe checks that a backend works. A panic inside a probe counts as failure.
type Probe func() error

// Registry is an immutable set of named capabilities.
type Registry struct {
	caps    map[string]bool
	reasons map[string]string
}

// Resolve builds a registry. Capabilities absent from flags default to enabled;
// an enabled capability with a probe is kept only when the probe succeeds.
func Resolve(flags map[string]bool, probes map[string]Probe, log *logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	r := &Registry{caps: make(map[string]bool), reasons: make(map[string]string)}
	for _, name := range Names() {
		enabled, set := flags[name]
		if !set {
			enabled = true
		}
		if !enabled {
			r.reasons[name] = "disabled by configuration"
			r.caps[name] = false
			continue
		}
		if probe, ok := probes[name]; ok {
			if err := runProbe(probe); err != nil {
				r.reasons[name] = err.Error()
				r.caps[name] = false
				log.Warn("capability probe failed",
					logger.String("capability", name),
					logger.Error(err),
				)
				continue
			}
		}
		r.caps[name] = true
	}
	log.Info("capabilities resolved", logger.Any("capabilities", r.caps))
	return r
}

// Static builds a registry from explicit values without probing. Unknown names are ignored.
func Static(flags map[string]bool) *Registry {
	r := &Registry{caps: make(map[string]bool), reasons: make(map[string]string)}
	for _, name := range Names() {
		v, ok := flags[name]
		r.caps[name] = !ok || v
		if !r.caps[name] {
			r.reasons[name] = "disabled by configuration"
		}
	}
	return r
}

func runProbe(p Probe) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("probe panicked: %v", rec)
		}
	}()
	return p()
}

// Available reports whether name may be used.
func (r *Registry) Available(name string) bool {
	if r == nil {
		return false
	}
	return r.caps[name]
}

// Require returns a CapabilityUnavailableError naming modelID when name is unavailable.
func (r *Registry) Require(name, modelID string) error {
	if r.Available(name) {
		return nil
	}
	return &errs.CapabilityUnavailableError{Capability: name, ModelID: modelID}
}

// Reason explains why name is unavailable; empty when available.
func (r *Registry) Reason(name string) string { return r.reasons[name] }

// Snapshot returns a copy of the resolved flags.
func (r *Registry) Snapshot() map[string]bool {
	out := make(map[string]bool, len(r.caps))
	for k, v := range r.caps {
		out[k] = v
	}
	return out
}

// AvailableKinds returns the model kinds whose capability resolved true.
func (r *Registry) AvailableKinds() []models.ModelKind {
	var out []models.ModelKind
	for _, k := range models.AllKinds() {
		if r.Available(ForKind(k)) {
			out = append(out, k)
		}
	}
	return out
}

// DefaultProbes checks the ARIMA backend on a small synthetic AR(1) series.
func DefaultProbes() map[string]Probe {
	arimaProbe := func() error {
		vals := make([]float64, 60)
		vals[0] = 1
		for i := 1; i < len(vals); i++ {
			vals[i] = 0.6*vals[i-1] + math.Sin(float64(i))
		}
		m := arima.New(1, 0, 0)
		if err := m.Fit(timeseries.New(vals)); err != nil {
			return fmt.Errorf("arima probe fit: %w", err)
		}
		f, err := m.Predict(3)
		if err != nil {
			return fmt.Errorf("arima probe predict: %w", err)
		}
		for _, v := range f {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("arima probe produced non-finite forecast")
			}
		}
		return nil
	}
	return map[string]Probe{ARIMA: arimaProbe}
}
