// Package errs defines the error taxonomy shared by the forecasting and anomaly services.
//
// Every error carries the identifier of the series or model it concerns, so a caller
// running many entities or models can report exactly which one failed.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientData      = errors.New("insufficient data")
	ErrModelNotTrained       = errors.New("model not trained")
	ErrModelLoad             = errors.New("model load failed")
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	ErrUpstreamFeature       = errors.New("upstream feature unavailable")
)

// InsufficientDataError reports a series that is too short or too sparse.
type InsufficientDataError struct {
	EntityID string
	Have     int
	Need     int
	Reason   string
}

func (e *InsufficientDataError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("insufficient data for %q: %s", e.EntityID, e.Reason)
	}
	return fmt.Sprintf("insufficient data for %q: have %d, need %d", e.EntityID, e.Have, e.Need)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// ModelNotTrainedError reports predict/correct calls made before fit/train.
type ModelNotTrainedError struct {
	ModelID string
	Op      string
}

func (e *ModelNotTrainedError) Error() string {
	return fmt.Sprintf("model %q not trained: %s requires a successful fit", e.ModelID, e.Op)
}

func (e *ModelNotTrainedError) Is(target error) bool { return target == ErrModelNotTrained }

// ModelLoadError reports a missing or unreadable persisted artifact.
type ModelLoadError struct {
	ModelID string
	Path    string
	Err     error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %q from %s: %v", e.ModelID, e.Path, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

func (e *ModelLoadError) Is(target error) bool { return target == ErrModelLoad }

// CapabilityUnavailableError reports a disabled or absent backend.
type CapabilityUnavailableError struct {
	Capability string
	ModelID    string
}

func (e *CapabilityUnavailableError) Error() string {
	if e.ModelID != "" && e.ModelID != e.Capability {
		return fmt.Sprintf("capability %q unavailable for model %q", e.Capability, e.ModelID)
	}
	return fmt.Sprintf("capability %q unavailable", e.Capability)
}

func (e *CapabilityUnavailableError) Is(target error) bool { return target == ErrCapabilityUnavailable }

// UpstreamFeatureError reports a weather or holiday table that is missing or misaligned.
// It is a warning: the affected feature group is omitted and preparation continues.
type UpstreamFeatureError struct {
	EntityID string
	Group    string
	Err      error
}

func (e *UpstreamFeatureError) Error() string {
	return fmt.Sprintf("feature group %q for %q: %v", e.Group, e.EntityID, e.Err)
}

func (e *UpstreamFeatureError) Unwrap() error { return e.Err }

func (e *UpstreamFeatureError) Is(target error) bool { return target == ErrUpstreamFeature }

// EntityOf extracts the entity or model identifier carried by a taxonomy error.
func EntityOf(err error) string {
	var (
		ide *InsufficientDataError
		nte *ModelNotTrainedError
		mle *ModelLoadError
		cue *CapabilityUnavailableError
		ufe *UpstreamFeatureError
	)
	switch {
	case errors.As(err, &ide):
		return ide.EntityID
	case errors.As(err, &nte):
		return nte.ModelID
	case errors.As(err, &mle):
		return mle.ModelID
	case errors.As(err, &cue):
		if cue.ModelID != "" {
			return cue.ModelID
		}
		return cue.Capability
	case errors.As(err, &ufe):
		return ufe.EntityID
	}
	return ""
}
