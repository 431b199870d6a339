package firstorder

import (
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/momentum/internal/optimization"
)

// Nesterov minimizes with Nesterov's accelerated gradient. Each step first
// extrapolates to the look-ahead point
//
//	y = x + beta·(x − x_prev)
//
// and then takes the gradient step from there, x = y − alpha·∇f(y).
//
// The gradient is evaluated a second time at the new x to record its norm
// and decide whether to stop, so every iteration costs two oracle calls.
// The look-ahead history is returned in Trace.Lookahead.
func Nesterov(x0 optimization.Point, oracle optimization.Oracle, alpha, beta, epsilon float64, maxIter int) optimization.Trace {
	x := x0.Clone()
	prev := x
	g := oracle.Gradient(x)
	norm := floats.Norm(g, 2)

	step := make(optimization.Point, len(x))
	tr := newTrace(x, norm, maxIter)
	tr.Lookahead = make([]optimization.Point, 0, cap(tr.Points))
	tr.Lookahead = append(tr.Lookahead, x)
	for norm > epsilon && tr.Iterations < maxIter {
		floats.SubTo(step, x, prev)
		y := make(optimization.Point, len(x))
		floats.AddScaledTo(y, x, beta, step)

		next := make(optimization.Point, len(x))
		floats.AddScaledTo(next, y, -alpha, oracle.Gradient(y))
		prev, x = x, next
		tr.Iterations++

		g = oracle.Gradient(x)
		norm = floats.Norm(g, 2)

		tr.Points = append(tr.Points, x)
		tr.Lookahead = append(tr.Lookahead, y)
		tr.Norms = append(tr.Norms, norm)
	}
	return tr
}
