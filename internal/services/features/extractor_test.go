package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestPctChange(t *testing.T) {
	got := PctChange([]float64{10, 15, 0, 5, 10}, 1)
	require.Len(t, got, 5)
	assert.True(t, math.IsNaN(got[0]))
	assert.InDelta(t, 0.5, got[1], 1e-12)
	assert.InDelta(t, -1.0, got[2], 1e-12)
	assert.True(t, math.IsInf(got[3], 1), "growth from zero is unbounded")
	assert.InDelta(t, 1.0, got[4], 1e-12)

	got = PctChange([]float64{0, 0, -4, math.NaN(), 2}, 1)
	assert.True(t, math.IsNaN(got[1]), "0 to 0 has no ratio")
	assert.True(t, math.IsInf(got[2], -1))
	assert.True(t, math.IsNaN(got[3]))
	assert.True(t, math.IsNaN(got[4]), "missing predecessor")
}

func TestRollingWindows(t *testing.T) {
	vals := []float64{1, 2, 3, 4, 5}
	mean := RollingMean(vals, 3)
	assert.True(t, math.IsNaN(mean[1]))
	assert.InDelta(t, 2.0, mean[2], 1e-12)
	assert.InDelta(t, 4.0, mean[4], 1e-12)

	std := RollingStd(vals, 3)
	assert.InDelta(t, 1.0, std[3], 1e-12)

	assert.Equal(t, 3.0, RollingMin(vals, 3)[4])
	assert.Equal(t, 5.0, RollingMax(vals, 3)[4])
}

func TestFills(t *testing.T) {
	nan := math.NaN()
	vals := []float64{nan, 1, nan, nan, 4, nan}

	Interpolate(vals)
	assert.InDelta(t, 2.0, vals[2], 1e-12)
	assert.InDelta(t, 3.0, vals[3], 1e-12)
	assert.True(t, math.IsNaN(vals[0]))
	assert.True(t, math.IsNaN(vals[5]))

	ForwardFill(vals)
	assert.Equal(t, 4.0, vals[5])
	BackwardFill(vals)
	assert.Equal(t, 1.0, vals[0])
	assert.Zero(t, CountNaN(vals))

	lagged := FillZero(Lag([]float64{1, 2, 3}, 2))
	assert.Equal(t, []float64{0, 0, 1}, lagged)
}

func TestErrorMetrics(t *testing.T) {
	actual := []float64{0, 10, 20}
	pred := []float64{1, 12, 18}

	assert.InDelta(t, 5.0/3, MAE(actual, pred), 1e-12)
	assert.InDelta(t, 3.0, MSE(actual, pred), 1e-12)
	assert.InDelta(t, math.Sqrt(3), RMSE(actual, pred), 1e-12)

	mape, n := MAPE(actual, pred)
	assert.Equal(t, 2, n, "zero actual contributes no term")
	assert.InDelta(t, 15.0, mape, 1e-9)

	_, n = MAPE([]float64{0, 1e-12}, []float64{1, 1})
	assert.Zero(t, n)

	assert.InDelta(t, 1.0, R2(actual, actual), 1e-12)
	assert.Zero(t, R2([]float64{5, 5}, []float64{4, 6}))
}

func TestRidgeRecoversLine(t *testing.T) {
	n := 20
	x := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
		x.Set(i, 1, float64(i))
		y[i] = 3 + 2*float64(i)
	}
	beta, err := Ridge(x, y, 1e-9)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, beta[0], 1e-4)
	assert.InDelta(t, 2.0, beta[1], 1e-4)
}
