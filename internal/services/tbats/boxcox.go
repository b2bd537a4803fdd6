package tbats

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

var lambdaGrid = []float64{0, 0.25, 0.5, 0.75, 1}

// chooseLambda picks the Box-Cox exponent maximising the profile
// log-likelihood. Series with a non-positive value keep lambda = 1.
func chooseLambda(y []float64) float64 {
	sumLog := 0.0
	for _, v := range y {
		if v <= 0 {
			return 1
		}
		sumLog += math.Log(v)
	}
	n := float64(len(y))
	best, bestLL := 1.0, math.Inf(-1)
	z := make([]float64, len(y))
	for _, lam := range lambdaGrid {
		for i, v := range y {
			z[i] = boxCox(v, lam)
		}
		variance := stat.PopVariance(z, nil)
		if variance <= 0 {
			continue
		}
		ll := -n/2*math.Log(variance) + (lam-1)*sumLog
		if ll > bestLL {
			best, bestLL = lam, ll
		}
	}
	return best
}

func boxCox(v, lambda float64) float64 {
	if lambda == 1 {
		return v
	}
	if lambda == 0 {
		return math.Log(v)
	}
	return (math.Pow(v, lambda) - 1) / lambda
}

func invBoxCox(z, lambda float64) float64 {
	if lambda == 1 {
		return z
	}
	if lambda == 0 {
		return math.Exp(z)
	}
	base := lambda*z + 1
	if base <= 0 {
		// outside the range of the transform
		return 0
	}
	return math.Pow(base, 1/lambda)
}
