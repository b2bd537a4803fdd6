package features

import "math"

// Quantile returns the p-quantile of an ascending slice, interpolating linearly
// between the order statistics around (n-1)·p. This is the convention of
// pandas and numpy; gonum's stat.LinInterp interpolates the empirical CDF
// instead and gives different quartiles on short series.
func Quantile(p float64, sorted []float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return math.NaN()
	case n == 1 || p <= 0:
		return sorted[0]
	case p >= 1:
		return sorted[n-1]
	}
	pos := p * float64(n-1)
	lo := int(math.Floor(pos))
	if lo+1 >= n {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
