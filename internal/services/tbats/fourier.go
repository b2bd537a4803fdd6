package tbats

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"LoadCast/internal/services/features"
)

// seasonalTerm is the trigonometric representation of one seasonal cycle.
type seasonalTerm struct {
	Period int
	K      int
	Sin    []float64
	Cos    []float64
}

func (s seasonalTerm) at(t float64) float64 {
	v := 0.0
	for k := 1; k <= s.K; k++ {
		w := 2 * math.Pi * float64(k) * t / float64(s.Period)
		v += s.Sin[k-1]*math.Sin(w) + s.Cos[k-1]*math.Cos(w)
	}
	return v
}

func seasonalAt(terms []seasonalTerm, t float64) float64 {
	v := 0.0
	for _, s := range terms {
		v += s.at(t)
	}
	return v
}

// fitSeasonal regresses z on an intercept, a linear trend and Fourier terms of
// every period that fits at least twice in the series. Only the Fourier
// coefficients are kept.
func fitSeasonal(z []float64, periods []int) ([]seasonalTerm, error) {
	n := len(z)
	var terms []seasonalTerm
	for _, p := range periods {
		if p < 2 || 2*p > n {
			continue
		}
		if k := harmonics(p); k > 0 {
			terms = append(terms, seasonalTerm{Period: p, K: k})
		}
	}
	if len(terms) == 0 {
		return nil, nil
	}

	cols := 2
	for _, s := range terms {
		cols += 2 * s.K
	}
	x := mat.NewDense(n, cols, nil)
	for t := 0; t < n; t++ {
		x.Set(t, 0, 1)
		x.Set(t, 1, float64(t)/float64(n))
		c := 2
		for _, s := range terms {
			for k := 1; k <= s.K; k++ {
				w := 2 * math.Pi * float64(k) * float64(t) / float64(s.Period)
				x.Set(t, c, math.Sin(w))
				x.Set(t, c+1, math.Cos(w))
				c += 2
			}
		}
	}
	beta, err := features.Ridge(x, z, 1e-6)
	if err != nil {
		return nil, err
	}

	c := 2
	for i := range terms {
		terms[i].Sin = make([]float64, terms[i].K)
		terms[i].Cos = make([]float64, terms[i].K)
		for k := 0; k < terms[i].K; k++ {
			terms[i].Sin[k] = beta[c]
			terms[i].Cos[k] = beta[c+1]
			c += 2
		}
	}
	return terms, nil
}
