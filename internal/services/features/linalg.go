package features

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// Ridge solves the ridge-regularised normal equations (XᵀX + λI)β = Xᵀy.
// An ill-conditioning warning from gonum is tolerated since λ keeps the system solvable.
func Ridge(x *mat.Dense, y []float64, lambda float64) ([]float64, error) {
	_, cols := x.Dims()
	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	for i := 0; i < cols; i++ {
		xtx.Set(i, i, xtx.At(i, i)+lambda)
	}
	var xty mat.VecDense
	xty.MulVec(x.T(), mat.NewVecDense(len(y), y))
	var beta mat.VecDense
	if err := beta.SolveVec(&xtx, &xty); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			return nil, err
		}
	}
	out := make([]float64, cols)
	for i := range out {
		out[i] = beta.AtVec(i)
	}
	return out, nil
}
