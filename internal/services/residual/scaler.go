package residual

import (
	"gonum.org/v1/gonum/stat"
)

// Scaler standardises columns to zero mean and unit population variance.
// Constant columns keep a unit scale so they map to zero.
type Scaler struct {
	Mean  []float64
	Scale []float64
}

// FitScaler learns per-column mean and scale from rows.
func FitScaler(rows [][]float64) Scaler {
	if len(rows) == 0 {
		return Scaler{}
	}
	cols := len(rows[0])
	s := Scaler{Mean: make([]float64, cols), Scale: make([]float64, cols)}
	col := make([]float64, len(rows))
	for j := 0; j < cols; j++ {
		for i, r := range rows {
			col[i] = r[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		s.Mean[j] = mean
		s.Scale[j] = std
		if std == 0 {
			s.Scale[j] = 1
		}
	}
	return s
}

// Transform returns standardised copies of rows.
func (s Scaler) Transform(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = s.TransformRow(r)
	}
	return out
}

func (s Scaler) TransformRow(r []float64) []float64 {
	out := make([]float64, len(r))
	for j, v := range r {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out
}
