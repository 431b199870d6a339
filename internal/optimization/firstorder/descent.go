// Package firstorder implements fixed-step gradient descent, the Heavy-Ball
// method and Nesterov's accelerated gradient.
//
// All three routines share one control loop. The gradient norm is checked at
// loop entry, so a starting point that is already stationary yields a trace
// with zero iterations. Iteration stops once the norm is at or below epsilon
// or maxIter updates have been made, whichever comes first; the returned
// Trace does not say which. Use optimization.Classify for that.
//
// No argument is validated. A step size that diverges simply runs to
// maxIter. A NaN norm fails the "norm > epsilon" test and halts the loop as
// if it had converged; callers rely on that, so it is kept.
package firstorder

import (
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/momentum/internal/optimization"
)

// GradientDescent minimizes with the constant step x ← x − alpha·∇f(x).
func GradientDescent(x0 optimization.Point, oracle optimization.Oracle, alpha, epsilon float64, maxIter int) optimization.Trace {
	x := x0.Clone()
	g := oracle.Gradient(x)
	norm := floats.Norm(g, 2)

	tr := newTrace(x, norm, maxIter)
	for norm > epsilon && tr.Iterations < maxIter {
		next := make(optimization.Point, len(x))
		floats.AddScaledTo(next, x, -alpha, g)
		x = next
		tr.Iterations++

		g = oracle.Gradient(x)
		norm = floats.Norm(g, 2)

		tr.Points = append(tr.Points, x)
		tr.Norms = append(tr.Norms, norm)
	}
	return tr
}

// newTrace seeds a trace with the starting point. Capacity is capped so a
// huge budget does not preallocate memory the run may never use.
func newTrace(x0 optimization.Point, norm float64, maxIter int) optimization.Trace {
	n := maxIter + 1
	if n > 1024 || n < 1 {
		n = 1024
	}
	tr := optimization.Trace{
		Points: make([]optimization.Point, 0, n),
		Norms:  make([]float64, 0, n),
	}
	tr.Points = append(tr.Points, x0)
	tr.Norms = append(tr.Norms, norm)
	return tr
}
