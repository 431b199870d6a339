package optimization

import (
	"math"
)

// Point is a location in R^n.
type Point []float64

// Clone returns a copy of p that shares no storage with it.
func (p Point) Clone() Point {
	if p == nil {
		return nil
	}
	return append(Point(nil), p...)
}

// Method defines the interface for first-order descent algorithms
type Method interface {
	// Name returns the registry name of the method
	Name() string

	// Minimize runs the method from x0 and returns the full iteration trace
	Minimize(x0 Point, oracle Oracle, settings Settings) Trace
}

// Settings contains the step parameters shared by every method.
// Beta is ignored by plain gradient descent.
type Settings struct {
	// Step size
	Alpha float64 `json:"alpha" yaml:"alpha"`

	// Momentum coefficient
	Beta float64 `json:"beta" yaml:"beta"`

	// Gradient norm at or below which iteration stops
	Epsilon float64 `json:"epsilon" yaml:"epsilon"`

	// Maximum number of update steps
	MaxIterations int `json:"max_iter" yaml:"max_iter"`
}

// Validate checks settings received from outside the process. The descent
// routines themselves accept any values.
func (s Settings) Validate() error {
	if s.MaxIterations < 0 {
		return NewErrorf("max_iter must be non-negative, got %d", s.MaxIterations).
			WithOperation("validate").WithComponent("settings")
	}
	if math.IsNaN(s.Epsilon) || s.Epsilon < 0 {
		return NewErrorf("epsilon must be non-negative, got %v", s.Epsilon).
			WithOperation("validate").WithComponent("settings")
	}
	if math.IsNaN(s.Alpha) || math.IsInf(s.Alpha, 0) {
		return NewErrorf("alpha must be finite, got %v", s.Alpha).
			WithOperation("validate").WithComponent("settings")
	}
	if math.IsNaN(s.Beta) || math.IsInf(s.Beta, 0) {
		return NewErrorf("beta must be finite, got %v", s.Beta).
			WithOperation("validate").WithComponent("settings")
	}
	return nil
}

// Trace is the history produced by a single run.
//
// Points[k] is the k-th iterate and Norms[k] the gradient norm evaluated at
// it, so both slices always hold Iterations+1 entries. Lookahead is only set
// by Nesterov's method and has the same length, Lookahead[0] being x0.
type Trace struct {
	Points     []Point   `json:"points" yaml:"points"`
	Lookahead  []Point   `json:"lookahead,omitempty" yaml:"lookahead,omitempty"`
	Norms      []float64 `json:"norms" yaml:"norms"`
	Iterations int       `json:"iterations" yaml:"iterations"`
}

// Final returns the last recorded point and its gradient norm.
func (t Trace) Final() (Point, float64) {
	if len(t.Points) == 0 {
		return nil, math.NaN()
	}
	return t.Points[len(t.Points)-1], t.Norms[len(t.Norms)-1]
}

// Status describes why a run stopped.
type Status string

const (
	// StatusConverged means the final gradient norm is within epsilon.
	StatusConverged Status = "converged"
	// StatusBudgetExhausted means the iteration budget ran out first.
	StatusBudgetExhausted Status = "budget_exhausted"
	// StatusNonFinite means the run stopped on a NaN or infinite value.
	// The routines cannot tell this apart from convergence.
	StatusNonFinite Status = "non_finite"
)

// Classify inspects a finished trace and reports which terminal state the
// run reached.
func Classify(t Trace, settings Settings) Status {
	x, norm := t.Final()
	if math.IsNaN(norm) || math.IsInf(norm, 0) || !isFinite(x) {
		return StatusNonFinite
	}
	if norm <= settings.Epsilon {
		return StatusConverged
	}
	return StatusBudgetExhausted
}

func isFinite(x Point) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
