package optimization

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/floats"
)

// SquareOracle is f(x) = Σ x_i², whose gradient is 2x.
// It is the fixture used throughout the descent tests.
func SquareOracle() Oracle {
	return OracleFuncs{
		Value: func(x Point) float64 {
			return floats.Dot(x, x)
		},
		Grad: func(x Point) Point {
			g := make(Point, len(x))
			floats.ScaleTo(g, 2, x)
			return g
		},
	}
}

// DiagonalQuadraticOracle is f(x) = ½ Σ d_i x_i², an ill-conditioned bowl
// when the entries of d differ by orders of magnitude.
func DiagonalQuadraticOracle(d []float64) Oracle {
	return OracleFuncs{
		Value: func(x Point) float64 {
			sum := 0.0
			for i, v := range x {
				sum += 0.5 * d[i] * v * v
			}
			return sum
		},
		Grad: func(x Point) Point {
			g := make(Point, len(x))
			floats.MulTo(g, d, x)
			return g
		},
	}
}

// NoisyOracle adds uniform noise in [-scale/2, scale/2) to every gradient
// coordinate of o.
func NoisyOracle(o Oracle, scale float64, rng *rand.Rand) Oracle {
	return OracleFuncs{
		Value: o.Evaluate,
		Grad: func(x Point) Point {
			g := o.Gradient(x)
			for i := range g {
				g[i] += scale * (rng.Float64() - 0.5)
			}
			return g
		},
	}
}

// AssertTraceShape checks the length invariants every trace must satisfy.
func AssertTraceShape(t *testing.T, tr Trace, withLookahead bool) {
	t.Helper()

	if len(tr.Points) != tr.Iterations+1 {
		t.Fatalf("points: got %d entries, want %d", len(tr.Points), tr.Iterations+1)
	}
	if len(tr.Norms) != tr.Iterations+1 {
		t.Fatalf("norms: got %d entries, want %d", len(tr.Norms), tr.Iterations+1)
	}
	if withLookahead && len(tr.Lookahead) != tr.Iterations+1 {
		t.Fatalf("lookahead: got %d entries, want %d", len(tr.Lookahead), tr.Iterations+1)
	}
	if !withLookahead && tr.Lookahead != nil {
		t.Fatalf("lookahead: got %d entries, want none", len(tr.Lookahead))
	}
}

// AssertPointsClose checks if two point sequences are approximately equal
func AssertPointsClose(t *testing.T, got, want []Point, tol float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}

	for k := range got {
		if !floats.EqualApprox(got[k], want[k], tol) {
			t.Fatalf("at step %d: got %v, want %v (tolerance %v)", k, got[k], want[k], tol)
		}
	}
}

// AssertNormsMatch checks that every recorded norm is the L2 norm of the
// oracle's gradient at the matching point.
func AssertNormsMatch(t *testing.T, tr Trace, o Oracle, tol float64) {
	t.Helper()

	for k, x := range tr.Points {
		want := floats.Norm(o.Gradient(x), 2)
		if math.Abs(tr.Norms[k]-want) > tol {
			t.Fatalf("norm at step %d: got %v, want %v (tolerance %v)", k, tr.Norms[k], want, tol)
		}
	}
}
