package firstorder

import (
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/momentum/internal/optimization"
)

// HeavyBall minimizes with Polyak's momentum update
//
//	x_new = x − alpha·∇f(x) + beta·(x − x_prev)
//
// x_prev starts at x0, so the first step carries no momentum and matches
// plain gradient descent. Any beta is accepted.
func HeavyBall(x0 optimization.Point, oracle optimization.Oracle, alpha, beta, epsilon float64, maxIter int) optimization.Trace {
	x := x0.Clone()
	prev := x
	g := oracle.Gradient(x)
	norm := floats.Norm(g, 2)

	step := make(optimization.Point, len(x))
	tr := newTrace(x, norm, maxIter)
	for norm > epsilon && tr.Iterations < maxIter {
		floats.SubTo(step, x, prev)
		next := make(optimization.Point, len(x))
		floats.AddScaledTo(next, x, -alpha, g)
		floats.AddScaled(next, beta, step)
		prev, x = x, next
		tr.Iterations++

		g = oracle.Gradient(x)
		norm = floats.Norm(g, 2)

		tr.Points = append(tr.Points, x)
		tr.Norms = append(tr.Norms, norm)
	}
	return tr
}
