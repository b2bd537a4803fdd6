package tbats

import "math"

type smoothParams struct {
	Alpha float64
	Beta  float64
	Phi   float64
}

type smoothState struct {
	Level float64
	Trend float64
}

var (
	alphaGrid = []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.7, 0.9}
	betaGrid  = []float64{0.01, 0.05, 0.1, 0.2}
	phiGrid   = []float64{0.8, 0.9, 0.95, 0.98}
)

// initialState seeds the level with the first point and the trend with the
// mean slope of the first week.
func initialState(d []float64, useTrend bool) smoothState {
	s := smoothState{Level: d[0]}
	if useTrend && len(d) > 1 {
		m := 7
		if m > len(d)-1 {
			m = len(d) - 1
		}
		s.Trend = (d[m] - d[0]) / float64(m)
	}
	return s
}

// smooth runs the error-correction recursions and returns the one-step
// predictions, the innovations, the final state and the SSE from t = 1 on.
func smooth(d []float64, p smoothParams, init smoothState) ([]float64, []float64, smoothState, float64) {
	pred := make([]float64, len(d))
	innov := make([]float64, len(d))
	s := init
	sse := 0.0
	for t, v := range d {
		yhat := s.Level + p.Phi*s.Trend
		e := v - yhat
		pred[t] = yhat
		innov[t] = e
		if t > 0 {
			sse += e * e
		}
		s.Level = yhat + p.Alpha*e
		s.Trend = p.Phi*s.Trend + p.Beta*e
	}
	return pred, innov, s, sse
}

// searchSmoothing grid-searches α, β and φ on one-step squared error.
func searchSmoothing(d []float64, useTrend, damped bool) smoothParams {
	init := initialState(d, useTrend)
	betas := []float64{0}
	phis := []float64{1}
	if useTrend {
		betas = betaGrid
		if damped {
			phis = phiGrid
		}
	}
	best := smoothParams{Alpha: alphaGrid[0], Phi: 1}
	bestSSE := math.Inf(1)
	for _, a := range alphaGrid {
		for _, b := range betas {
			if b > a {
				continue
			}
			for _, phi := range phis {
				p := smoothParams{Alpha: a, Beta: b, Phi: phi}
				_, _, _, sse := smooth(d, p, init)
				if sse < bestSSE {
					best, bestSSE = p, sse
				}
			}
		}
	}
	return best
}

// dampedSum returns φ + φ² + … + φ^h.
func dampedSum(phi float64, h int) float64 {
	if phi == 1 {
		return float64(h)
	}
	sum, pw := 0.0, 1.0
	for i := 0; i < h; i++ {
		pw *= phi
		sum += pw
	}
	return sum
}
