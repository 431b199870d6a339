package optimization

import (
	"sync/atomic"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

// Oracle answers value and gradient queries for an objective function.
// Gradient must return a vector with the same length as x and must not
// retain or modify x.
type Oracle interface {
	// Evaluate returns f(x)
	Evaluate(x Point) float64

	// Gradient returns ∇f(x)
	Gradient(x Point) Point
}

// OracleFuncs adapts a pair of plain functions to the Oracle interface.
type OracleFuncs struct {
	Value func(x Point) float64
	Grad  func(x Point) Point
}

// Evaluate implements Oracle
func (o OracleFuncs) Evaluate(x Point) float64 {
	return o.Value(x)
}

// Gradient implements Oracle
func (o OracleFuncs) Gradient(x Point) Point {
	return o.Grad(x)
}

// problemOracle exposes a gonum optimize.Problem as an Oracle
type problemOracle struct {
	problem optimize.Problem
}

// FromProblem adapts a gonum optimize.Problem. The problem must define Grad.
func FromProblem(p optimize.Problem) Oracle {
	return problemOracle{problem: p}
}

func (o problemOracle) Evaluate(x Point) float64 {
	return o.problem.Func(x)
}

func (o problemOracle) Gradient(x Point) Point {
	grad := make(Point, len(x))
	o.problem.Grad(grad, x)
	return grad
}

// finiteDifference approximates the gradient numerically
type finiteDifference struct {
	f        func(x []float64) float64
	settings *fd.Settings
}

// FiniteDifference builds an Oracle whose gradient is estimated with central
// differences of f. A nil settings uses fd.Central with the default step.
func FiniteDifference(f func(x []float64) float64, settings *fd.Settings) Oracle {
	if settings == nil {
		settings = &fd.Settings{Formula: fd.Central}
	}
	return finiteDifference{f: f, settings: settings}
}

func (o finiteDifference) Evaluate(x Point) float64 {
	return o.f(x)
}

func (o finiteDifference) Gradient(x Point) Point {
	return fd.Gradient(nil, o.f, x, o.settings)
}

// CountingOracle wraps an Oracle and counts the calls made through it.
// It is safe for concurrent use.
type CountingOracle struct {
	Oracle

	evaluations atomic.Int64
	gradients   atomic.Int64
}

// NewCountingOracle wraps o.
func NewCountingOracle(o Oracle) *CountingOracle {
	return &CountingOracle{Oracle: o}
}

// Evaluate implements Oracle
func (c *CountingOracle) Evaluate(x Point) float64 {
	c.evaluations.Add(1)
	return c.Oracle.Evaluate(x)
}

// Gradient implements Oracle
func (c *CountingOracle) Gradient(x Point) Point {
	c.gradients.Add(1)
	return c.Oracle.Gradient(x)
}

// Evaluations returns the number of Evaluate calls so far.
func (c *CountingOracle) Evaluations() int {
	return int(c.evaluations.Load())
}

// Gradients returns the number of Gradient calls so far.
func (c *CountingOracle) Gradients() int {
	return int(c.gradients.Load())
}
