package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// PctChange returns x_t / x_{t-lag} - 1. The first lag points and missing
// values are NaN. A zero predecessor gives ±Inf, signed like x_t, or NaN
// when x_t is zero too.
func PctChange(values []float64, lag int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if i < lag {
			out[i] = math.NaN()
			continue
		}
		prev := values[i-lag]
		cur := values[i]
		switch {
		case math.IsNaN(prev) || math.IsNaN(cur):
			out[i] = math.NaN()
		case prev == 0 && cur == 0:
			out[i] = math.NaN()
		case prev == 0:
			out[i] = math.Inf(int(math.Copysign(1, cur)))
		default:
			out[i] = cur/prev - 1
		}
	}
	return out
}

// Lag shifts values forward by k positions, NaN-padding the head.
func Lag(values []float64, k int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if i < k {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[i-k]
	}
	return out
}

// RollingMean returns the trailing mean over window points. The first
// window-1 positions are NaN.
func RollingMean(values []float64, window int) []float64 {
	return rolling(values, window, func(w []float64) float64 { return stat.Mean(w, nil) })
}

// RollingStd returns the trailing sample standard deviation over window points.
func RollingStd(values []float64, window int) []float64 {
	return rolling(values, window, func(w []float64) float64 {
		if len(w) < 2 {
			return math.NaN()
		}
		return stat.StdDev(w, nil)
	})
}

// RollingMin returns the trailing minimum over window points.
func RollingMin(values []float64, window int) []float64 {
	return rolling(values, window, func(w []float64) float64 {
		m := w[0]
		for _, v := range w[1:] {
			m = math.Min(m, v)
		}
		return m
	})
}

// RollingMax returns the trailing maximum over window points.
func RollingMax(values []float64, window int) []float64 {
	return rolling(values, window, func(w []float64) float64 {
		m := w[0]
		for _, v := range w[1:] {
			m = math.Max(m, v)
		}
		return m
	})
}

func rolling(values []float64, window int, fn func([]float64) float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if window <= 0 || i < window-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = fn(values[i-window+1 : i+1])
	}
	return out
}

// ForwardFill replaces NaN with the last seen value in place and returns values.
// Leading NaN are left untouched.
func ForwardFill(values []float64) []float64 {
	last := math.NaN()
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = last
			continue
		}
		last = v
	}
	return values
}

// BackwardFill replaces NaN with the next seen value in place and returns values.
func BackwardFill(values []float64) []float64 {
	next := math.NaN()
	for i := len(values) - 1; i >= 0; i-- {
		if math.IsNaN(values[i]) {
			values[i] = next
			continue
		}
		next = values[i]
	}
	return values
}

// FillZero replaces remaining NaN with zero in place and returns values.
func FillZero(values []float64) []float64 {
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = 0
		}
	}
	return values
}

// Interpolate fills interior NaN runs linearly between their neighbours in
// place. Leading and trailing runs are left as NaN.
func Interpolate(values []float64) []float64 {
	prev := -1
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			step := (v - values[prev]) / float64(i-prev)
			for j := prev + 1; j < i; j++ {
				values[j] = values[prev] + step*float64(j-prev)
			}
		}
		prev = i
	}
	return values
}

// CountNaN returns the number of NaN entries.
func CountNaN(values []float64) int {
	n := 0
	for _, v := range values {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}
