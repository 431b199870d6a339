package firstorder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/momentum/internal/optimization"
)

func TestNesterovZeroBetaLookaheadCollapses(t *testing.T) {
	oracle := optimization.DiagonalQuadraticOracle([]float64{1, 4})
	x0 := optimization.Point{3, -2}

	tr := Nesterov(x0, oracle, 0.1, 0, 1e-8, 200)

	optimization.AssertTraceShape(t, tr, true)
	require.Greater(t, tr.Iterations, 0)
	for k := 1; k < len(tr.Lookahead); k++ {
		assert.Equal(t, tr.Points[k-1], tr.Lookahead[k], "step %d", k)
	}

	gd := GradientDescent(x0, oracle, 0.1, 1e-8, 200)
	assert.Equal(t, gd.Points, tr.Points)
	assert.Equal(t, gd.Norms, tr.Norms)
}

func TestNesterovLookaheadUpdate(t *testing.T) {
	// f(x) = x², x0 = 1, alpha = 0.1, beta = 0.5
	// y1 = 1,               x1 = 1 - 0.2 = 0.8
	// y2 = 0.8 + 0.5*(-0.2) = 0.7, x2 = 0.7 - 0.14 = 0.56
	tr := Nesterov(optimization.Point{1}, optimization.SquareOracle(), 0.1, 0.5, 0, 2)

	optimization.AssertTraceShape(t, tr, true)
	optimization.AssertPointsClose(t, tr.Lookahead, []optimization.Point{{1}, {1}, {0.7}}, 1e-12)
	optimization.AssertPointsClose(t, tr.Points, []optimization.Point{{1}, {0.8}, {0.56}}, 1e-12)
	assert.InDelta(t, 1.12, tr.Norms[2], 1e-12, "norm is taken at x, not at the look-ahead point")
}

func TestNesterovTwoGradientCallsPerIteration(t *testing.T) {
	oracle := optimization.NewCountingOracle(optimization.SquareOracle())
	tr := Nesterov(optimization.Point{10}, oracle, 0.1, 0.3, 1e-6, 100)

	require.Greater(t, tr.Iterations, 0)
	assert.Equal(t, 1+2*tr.Iterations, oracle.Gradients())
	assert.Zero(t, oracle.Evaluations())
}

func TestNesterovFirstLookaheadIsStart(t *testing.T) {
	x0 := optimization.Point{1, 2, 3}
	for _, beta := range []float64{0, 0.5, 0.99} {
		tr := Nesterov(x0, optimization.SquareOracle(), 0.05, beta, 0, 3)
		assert.Equal(t, x0, tr.Lookahead[0])
		assert.Equal(t, x0, tr.Lookahead[1], "x_prev equals x on the first step, beta=%v", beta)
	}
}

func TestNesterovAcceleratesIllConditioned(t *testing.T) {
	oracle := optimization.DiagonalQuadraticOracle([]float64{1, 100})
	x0 := optimization.Point{1, 1}

	gd := GradientDescent(x0, oracle, 0.01, 1e-6, 5000)
	nag := Nesterov(x0, oracle, 0.01, 9.0/11.0, 1e-6, 5000)

	optimization.AssertTraceShape(t, nag, true)
	optimization.AssertNormsMatch(t, nag, oracle, 1e-12)
	assert.Equal(t, optimization.StatusConverged, optimization.Classify(nag, optimization.Settings{Epsilon: 1e-6}))
	assert.Less(t, nag.Iterations, gd.Iterations)
}

func TestNesterovStationaryStart(t *testing.T) {
	tr := Nesterov(optimization.Point{0}, optimization.SquareOracle(), 0.1, 0.9, 0, 100)

	assert.Equal(t, 0, tr.Iterations)
	assert.Equal(t, []optimization.Point{{0}}, tr.Points)
	assert.Equal(t, []optimization.Point{{0}}, tr.Lookahead)
}

func TestNesterovDivergesToBudget(t *testing.T) {
	tr := Nesterov(optimization.Point{10}, optimization.SquareOracle(), 1.1, 0, 1e-6, 100)

	optimization.AssertTraceShape(t, tr, true)
	assert.Equal(t, 100, tr.Iterations)
}
