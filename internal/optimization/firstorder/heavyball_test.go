package firstorder

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/copyleftdev/momentum/internal/optimization"
)

func TestHeavyBallZeroBetaMatchesGradientDescent(t *testing.T) {
	tests := []struct {
		name   string
		oracle optimization.Oracle
		x0     optimization.Point
		alpha  float64
	}{
		{"square", optimization.SquareOracle(), optimization.Point{10}, 0.1},
		{"diagonal", optimization.DiagonalQuadraticOracle([]float64{1, 50}), optimization.Point{1, 1}, 0.02},
		{"diverging", optimization.SquareOracle(), optimization.Point{-3}, 1.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gd := GradientDescent(tt.x0, tt.oracle, tt.alpha, 1e-6, 100)
			hb := HeavyBall(tt.x0, tt.oracle, tt.alpha, 0, 1e-6, 100)

			assert.Equal(t, gd.Iterations, hb.Iterations)
			assert.Equal(t, gd.Points, hb.Points)
			assert.Equal(t, gd.Norms, hb.Norms)
		})
	}
}

func TestHeavyBallFirstStepHasNoMomentum(t *testing.T) {
	oracle := optimization.DiagonalQuadraticOracle([]float64{2, 8})
	x0 := optimization.Point{1, -1}

	gd := GradientDescent(x0, oracle, 0.05, 0, 1)
	for _, beta := range []float64{0.5, 0.9, -0.3, 2} {
		hb := HeavyBall(x0, oracle, 0.05, beta, 0, 1)
		assert.Equal(t, gd.Points[1], hb.Points[1], "beta=%v", beta)
	}
}

func TestHeavyBallMomentumUpdate(t *testing.T) {
	// f(x) = x², x0 = 1, alpha = 0.1, beta = 0.5
	// x1 = 1 - 0.2 = 0.8
	// x2 = 0.8 - 0.16 + 0.5*(0.8-1) = 0.54
	tr := HeavyBall(optimization.Point{1}, optimization.SquareOracle(), 0.1, 0.5, 0, 2)

	optimization.AssertTraceShape(t, tr, false)
	assert.InDelta(t, 0.8, tr.Points[1][0], 1e-12)
	assert.InDelta(t, 0.54, tr.Points[2][0], 1e-12)
	assert.InDelta(t, 1.08, tr.Norms[2], 1e-12)
}

func TestHeavyBallAcceleratesIllConditioned(t *testing.T) {
	// condition number 100: mu = 1, L = 100
	oracle := optimization.DiagonalQuadraticOracle([]float64{1, 100})
	x0 := optimization.Point{1, 1}

	gd := GradientDescent(x0, oracle, 0.01, 1e-6, 5000)
	hb := HeavyBall(x0, oracle, 4.0/121.0, math.Pow(9.0/11.0, 2), 1e-6, 5000)

	optimization.AssertTraceShape(t, hb, false)
	optimization.AssertNormsMatch(t, hb, oracle, 1e-12)
	assert.Less(t, gd.Iterations, 5000)
	assert.Less(t, hb.Iterations, gd.Iterations)
}

func TestHeavyBallStationaryStart(t *testing.T) {
	tr := HeavyBall(optimization.Point{0, 0, 0}, optimization.SquareOracle(), 0.1, 0.9, 0, 100)

	assert.Equal(t, 0, tr.Iterations)
	assert.Equal(t, []optimization.Point{{0, 0, 0}}, tr.Points)
}

func TestHeavyBallBudget(t *testing.T) {
	tests := []struct {
		name    string
		beta    float64
		maxIter int
	}{
		{"zero budget", 0.9, 0},
		{"unstable momentum", 1.5, 40},
		{"negative momentum", -0.5, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := optimization.NewCountingOracle(optimization.SquareOracle())
			tr := HeavyBall(optimization.Point{2}, oracle, 0.01, tt.beta, 1e-300, tt.maxIter)

			optimization.AssertTraceShape(t, tr, false)
			assert.LessOrEqual(t, tr.Iterations, tt.maxIter)
			assert.Equal(t, tr.Iterations+1, oracle.Gradients())
		})
	}
}

func TestHeavyBallSeededNoiseIsRepeatable(t *testing.T) {
	run := func() optimization.Trace {
		rng := rand.New(rand.NewSource(7))
		oracle := optimization.NoisyOracle(optimization.SquareOracle(), 0.01, rng)
		return HeavyBall(optimization.Point{1, 2}, oracle, 0.1, 0.5, 1e-3, 200)
	}

	assert.Equal(t, run(), run())
}
