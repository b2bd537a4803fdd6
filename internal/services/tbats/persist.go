package tbats

import (
	"fmt"
	"time"

	"LoadCast/internal/domain/errs"
	"LoadCast/pkg/artifact"
)

var modelFormat = artifact.Format{Magic: [4]byte{'L', 'C', 'S', 'T'}, Version: 1}

// snapshot is the exported mirror of FittedModel that goes through gob.
type snapshot struct {
	EntityID  string
	Config    Config
	Simulated bool
	Lambda    float64
	Smooth    smoothParams
	State     smoothState
	Seasonal  []seasonalTerm
	ARMA      armaErrors

	Values    []float64
	Fitted    []float64
	Residuals []float64
	LastDate  time.Time
	LastInnov float64
	LastResid float64
	Sigma     float64
	Params    int
	AIC       *float64
	BIC       *float64
}

// Save persists the fitted model to path atomically.
func (m *FittedModel) Save(path string) error {
	if m == nil {
		return &errs.ModelNotTrainedError{ModelID: SourceTag, Op: "save"}
	}
	if _, err := modelFormat.WriteFile(path, m.snapshot()); err != nil {
		return fmt.Errorf("save %s model of %q: %w", SourceTag, m.EntityID, err)
	}
	return nil
}

// Load reads a model written by Save. A missing or damaged file yields a ModelLoadError.
func Load(path string) (*FittedModel, error) {
	var s snapshot
	err := modelFormat.ReadFile(path, &s)
	if err == nil && (len(s.Values) == 0 || len(s.Fitted) != len(s.Values) || len(s.Residuals) != len(s.Values)) {
		err = fmt.Errorf("%w: inconsistent model", artifact.ErrCorrupt)
	}
	if err != nil {
		return nil, &errs.ModelLoadError{ModelID: SourceTag, Path: path, Err: err}
	}
	return s.model(), nil
}

func (m *FittedModel) snapshot() snapshot {
	return snapshot{
		EntityID:  m.EntityID,
		Config:    m.Config,
		Simulated: m.Simulated,
		Lambda:    m.Lambda,
		Smooth:    m.Smooth,
		State:     m.State,
		Seasonal:  m.Seasonal,
		ARMA:      m.ARMA,
		Values:    m.values,
		Fitted:    m.fitted,
		Residuals: m.residuals,
		LastDate:  m.lastDate,
		LastInnov: m.lastInnov,
		LastResid: m.lastResid,
		Sigma:     m.sigma,
		Params:    m.params,
		AIC:       m.aic,
		BIC:       m.bic,
	}
}

func (s snapshot) model() *FittedModel {
	return &FittedModel{
		EntityID:  s.EntityID,
		Config:    s.Config,
		Simulated: s.Simulated,
		Lambda:    s.Lambda,
		Smooth:    s.Smooth,
		State:     s.State,
		Seasonal:  s.Seasonal,
		ARMA:      s.ARMA,
		values:    s.Values,
		fitted:    s.Fitted,
		residuals: s.Residuals,
		lastDate:  s.LastDate,
		lastInnov: s.LastInnov,
		lastResid: s.LastResid,
		sigma:     s.Sigma,
		params:    s.Params,
		aic:       s.AIC,
		bic:       s.BIC,
	}
}
