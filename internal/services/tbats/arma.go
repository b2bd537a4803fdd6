package tbats

import (
	"fmt"
	"math"

	"github.com/sartorproj/goarima/arima"
	"github.com/sartorproj/goarima/stats"
	"github.com/sartorproj/goarima/timeseries"
)

const (
	armaNone = "none"
	armaFull = "arma(1,1)"
	armaAR1  = "ar(1)"
)

// armaErrors models the smoothing innovations as a stationary ARMA(1,1) process.
type armaErrors struct {
	Kind string
	Mean float64
	AR   float64
	MA   float64
}

// fitARMA fits ARMA(1,1) on the innovations and falls back to AR(1) from the
// lag-1 autocorrelation when the fit fails or is not stationary.
func fitARMA(e []float64) armaErrors {
	if a, err := fitARMA11(e); err == nil {
		return a
	}
	return fitAR1(e)
}

func fitARMA11(e []float64) (a armaErrors, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("arma fit panicked: %v", rec)
		}
	}()
	m := arima.New(1, 0, 1)
	if err := m.Fit(timeseries.New(e)); err != nil {
		return armaErrors{}, err
	}
	ar, ma := m.ARCoeffs[0], m.MACoeffs[0]
	if !finite(ar) || !finite(ma) || !finite(m.Intercept) || math.Abs(ar) >= 1 || math.Abs(ma) >= 1 {
		return armaErrors{}, fmt.Errorf("arma fit not stationary: ar=%v ma=%v", ar, ma)
	}
	return armaErrors{Kind: armaFull, Mean: m.Intercept, AR: ar, MA: ma}, nil
}

func fitAR1(e []float64) armaErrors {
	acf := stats.ACF(timeseries.New(e), 1)
	if len(acf) < 2 || !finite(acf[1]) {
		return armaErrors{Kind: armaNone}
	}
	mean := 0.0
	for _, v := range e {
		mean += v
	}
	return armaErrors{Kind: armaAR1, Mean: mean / float64(len(e)), AR: acf[1]}
}

// filter returns the one-step predictions of e and the white-noise residuals.
func (a armaErrors) filter(e []float64) ([]float64, []float64) {
	pred := make([]float64, len(e))
	resid := make([]float64, len(e))
	if a.Kind == armaNone {
		copy(resid, e)
		return pred, resid
	}
	for t := range e {
		p := a.Mean
		if t > 0 {
			p += a.AR*(e[t-1]-a.Mean) + a.MA*resid[t-1]
		}
		pred[t] = p
		resid[t] = e[t] - p
	}
	return pred, resid
}

// forecast extends the error process h steps from the last innovation and residual.
func (a armaErrors) forecast(lastE, lastResid float64, h int) []float64 {
	out := make([]float64, h)
	if a.Kind == armaNone {
		return out
	}
	prev := lastE
	for j := 0; j < h; j++ {
		v := a.Mean + a.AR*(prev-a.Mean)
		if j == 0 {
			v += a.MA * lastResid
		}
		out[j] = v
		prev = v
	}
	return out
}

func (a armaErrors) params() int {
	switch a.Kind {
	case armaFull:
		return 2
	case armaAR1:
		return 1
	}
	return 0
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
