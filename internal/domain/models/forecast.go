package models

import "time"

// ModelKind enumerates the forecaster variants the pipeline knows about.
type ModelKind string

const (
	KindSeasonalTrend ModelKind = "seasonal-trend"
	KindAdditive      ModelKind = "additive-regression"
	KindARIMA         ModelKind = "arima"
	KindSequence      ModelKind = "sequence-regressor"
)

// AllKinds returns every model kind in a stable order.
func AllKinds() []ModelKind {
	return []ModelKind{KindSeasonalTrend, KindAdditive, KindARIMA, KindSequence}
}

// Valid reports whether k is one of the enumerated kinds.
func (k ModelKind) Valid() bool {
	switch k {
	case KindSeasonalTrend, KindAdditive, KindARIMA, KindSequence:
		return true
	}
	return false
}

// SourceEnsemble tags rows produced by the ensemble combiner.
const SourceEnsemble = "ensemble"

// ForecastRow is one forecast day.
type ForecastRow struct {
	Date   time.Time `json:"date"`
	Point  float64   `json:"forecast"`
	Lower  float64   `json:"lower_bound"`
	Upper  float64   `json:"upper_bound"`
	Source string    `json:"source"`
}

// Forecast is an immutable run of contiguous forecast days.
type Forecast struct {
	EntityID   string        `json:"entity_id"`
	Source     string        `json:"source"`
	Confidence float64       `json:"confidence"`
	Simulated  bool          `json:"simulated,omitempty"`
	// Members lists the source tags blended into an ensemble forecast.
	Members    []string      `json:"members,omitempty"`
	Rows       []ForecastRow `json:"rows"`
}

// Empty reports whether the forecast carries no rows.
func (f Forecast) Empty() bool { return len(f.Rows) == 0 }

// Points returns the point forecasts in date order.
func (f Forecast) Points() []float64 {
	out := make([]float64, len(f.Rows))
	for i, r := range f.Rows {
		out[i] = r.Point
	}
	return out
}

// FitSummary describes a fitted model.
type FitSummary struct {
	Kind            ModelKind          `json:"kind"`
	ModelType       string             `json:"model_type"`
	AIC             *float64           `json:"aic"`
	BIC             *float64           `json:"bic"`
	ParametersCount int                `json:"parameters_count"`
	FittedLength    int                `json:"fitted_length"`
	ResidualStd     float64            `json:"residual_std"`
	Simulated       bool               `json:"simulated"`
	SeasonalPeriods []int              `json:"seasonal_periods,omitempty"`
	Params          map[string]float64 `json:"params,omitempty"`
}

// FitResult records the outcome of fitting one model inside a multi-model run.
type FitResult struct {
	Kind       ModelKind   `json:"kind"`
	Success    bool        `json:"success"`
	Skipped    bool        `json:"skipped,omitempty"`
	Summary    *FitSummary `json:"summary,omitempty"`
	Error      string      `json:"error,omitempty"`
	DurationMS int64       `json:"duration_ms"`
}

// Evaluation holds in-sample quality metrics of a fitted model.
type Evaluation struct {
	RMSE         float64  `json:"rmse"`
	MSE          float64  `json:"mse"`
	MAE          float64  `json:"mae"`
	MAPE         float64  `json:"mape"`
	ResidualStd  float64  `json:"residual_std"`
	ResidualMean float64  `json:"residual_mean"`
	AIC          *float64 `json:"aic"`
	BIC          *float64 `json:"bic"`
}

// FoldScore is the error of one model on one held-out fold.
type FoldScore struct {
	Fold       int     `json:"fold"`
	TrainSize  int     `json:"train_size"`
	TestSize   int     `json:"test_size"`
	MAE        float64 `json:"mae"`
	RMSE       float64 `json:"rmse"`
	MAPE       float64 `json:"mape"`
	MAPEPoints int     `json:"mape_points"`
	Error      string  `json:"error,omitempty"`
}

// ModelCVScore aggregates one model's fold scores.
type ModelCVScore struct {
	Kind     ModelKind   `json:"kind"`
	Folds    []FoldScore `json:"folds"`
	MeanMAE  float64     `json:"mae"`
	MeanRMSE float64     `json:"rmse"`
	MeanMAPE float64     `json:"mape"`
}

// CVReport is the outcome of a K-fold cross-validation run.
type CVReport struct {
	EntityID string                      `json:"entity_id"`
	K        int                         `json:"k"`
	FoldSize int                         `json:"fold_size"`
	Models   map[ModelKind]*ModelCVScore `json:"models"`
	Errors   map[ModelKind]string        `json:"errors,omitempty"`
}

// ModelComparison summarises what the forecaster suite can and did do.
type ModelComparison struct {
	Available []ModelKind             `json:"available_models"`
	Trained   []ModelKind             `json:"trained_models"`
	Weights   map[ModelKind]float64   `json:"model_weights"`
	Strategy  string                  `json:"weighting"`
	Fits      map[ModelKind]FitResult `json:"fits,omitempty"`
	CV        *CVReport               `json:"cross_validation,omitempty"`
}

// ForecastResult is the full output of one pipeline run for an entity.
type ForecastResult struct {
	EntityID    string                  `json:"entity_id"`
	Fingerprint string                  `json:"fingerprint"`
	Horizon     int                     `json:"horizon"`
	Primary     Forecast                `json:"primary"`
	Ensemble    Forecast                `json:"ensemble"`
	Corrected   *CorrectedForecast      `json:"corrected,omitempty"`
	Evaluation  *Evaluation             `json:"evaluation,omitempty"`
	Fits        map[ModelKind]FitResult `json:"fits"`
	Residual    *PerformanceMetrics     `json:"residual_model,omitempty"`
	Warnings    []string                `json:"warnings,omitempty"`
	// Simulated is set when any fitted model ran its simulated fallback.
	// Such results are neither cached nor kept in the model registry.
	Simulated   bool                    `json:"simulated,omitempty"`
	GeneratedAt time.Time               `json:"generated_at"`
}
