package features

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// MAPEEpsilon is the smallest |actual| that contributes a MAPE term.
const MAPEEpsilon = 1e-8

// MAE returns the mean absolute error of pred against actual.
func MAE(actual, pred []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	diff := make([]float64, len(actual))
	floats.SubTo(diff, actual, pred)
	return floats.Norm(diff, 1) / float64(len(actual))
}

// MSE returns the mean squared error of pred against actual.
func MSE(actual, pred []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	diff := make([]float64, len(actual))
	floats.SubTo(diff, actual, pred)
	return floats.Dot(diff, diff) / float64(len(actual))
}

// RMSE returns the root mean squared error.
func RMSE(actual, pred []float64) float64 { return math.Sqrt(MSE(actual, pred)) }

// MAPE returns the mean absolute percentage error in percent and the number of
// points that contributed. Points with |actual| < MAPEEpsilon are skipped; with
// no contributing point the error is 0.
func MAPE(actual, pred []float64) (float64, int) {
	sum, n := 0.0, 0
	for i, a := range actual {
		if math.Abs(a) < MAPEEpsilon {
			continue
		}
		sum += math.Abs((a - pred[i]) / a)
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n) * 100, n
}

// R2 returns the coefficient of determination. A constant actual series yields 0.
func R2(actual, pred []float64) float64 {
	if len(actual) == 0 {
		return 0
	}
	mean := floats.Sum(actual) / float64(len(actual))
	ssTot, ssRes := 0.0, 0.0
	for i, a := range actual {
		ssTot += (a - mean) * (a - mean)
		ssRes += (a - pred[i]) * (a - pred[i])
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}
