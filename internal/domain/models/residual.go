package models

import "time"

// FeatureTable is a dense, date-aligned design matrix for the residual regressor.
type FeatureTable struct {
	EntityID string      `json:"entity_id"`
	Dates    []time.Time `json:"dates"`
	Columns  []string    `json:"columns"`
	Rows     [][]float64 `json:"rows"`
	Warnings []string    `json:"warnings,omitempty"`
}

// Len returns the number of rows.
func (t FeatureTable) Len() int { return len(t.Rows) }

// Index returns the position of a column, or -1.
func (t FeatureTable) Index(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the named column, or nil when absent.
func (t FeatureTable) Column(name string) []float64 {
	idx := t.Index(name)
	if idx < 0 {
		return nil
	}
	out := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[idx]
	}
	return out
}

// Tail returns the last n rows as a new table.
func (t FeatureTable) Tail(n int) FeatureTable {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	start := len(t.Rows) - n
	return FeatureTable{
		EntityID: t.EntityID,
		Dates:    append([]time.Time(nil), t.Dates[start:]...),
		Columns:  t.Columns,
		Rows:     append([][]float64(nil), t.Rows[start:]...),
		Warnings: t.Warnings,
	}
}

// FeatureImportance is one entry of the importance ranking, highest first.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// SplitMetrics are regression errors on one data split.
type SplitMetrics struct {
	MSE  float64 `json:"mse"`
	MAE  float64 `json:"mae"`
	R2   float64 `json:"r2"`
	RMSE float64 `json:"rmse"`
}

// PerformanceMetrics describes a trained residual model.
type PerformanceMetrics struct {
	Train             SplitMetrics        `json:"train"`
	Test              SplitMetrics        `json:"test"`
	TrainSize         int                 `json:"train_size"`
	TestSize          int                 `json:"test_size"`
	BestParams        map[string]int      `json:"best_params,omitempty"`
	FeatureImportance []FeatureImportance `json:"feature_importance"`
}

// CorrectedRow is one corrected forecast point.
type CorrectedRow struct {
	Date       time.Time `json:"date"`
	Original   float64   `json:"original"`
	Correction float64   `json:"correction"`
	Corrected  float64   `json:"corrected"`

	// Uncorrected marks a row with no feature row for its date; it keeps
	// the original point.
	Uncorrected bool `json:"uncorrected,omitempty"`
}

// CorrectedForecast is a point forecast de-biased by the residual model. It
// has one row per forecast row.
type CorrectedForecast struct {
	EntityID string         `json:"entity_id"`
	Rows     []CorrectedRow `json:"rows"`
	Warnings []string       `json:"warnings,omitempty"`
}
