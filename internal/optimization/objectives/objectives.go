// Package objectives provides named test functions for exercising the
// descent methods. Most entries come from gonum's optimize/functions.
package objectives

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/optimize/functions"

	"github.com/copyleftdev/momentum/internal/optimization"
)

// Objective describes a differentiable test function.
type Objective struct {
	// Name is the registry key
	Name string `json:"name" yaml:"name"`
	// Description is a one-line summary
	Description string `json:"description" yaml:"description"`
	// Dim is the required dimension, or 0 when any dimension is accepted
	Dim int `json:"dim,omitempty" yaml:"dim,omitempty"`
	// MinDim is the smallest accepted dimension when Dim is 0
	MinDim int `json:"min_dim,omitempty" yaml:"min_dim,omitempty"`
	// Multiple constrains the dimension to a multiple of this value
	Multiple int `json:"multiple,omitempty" yaml:"multiple,omitempty"`
	// Minimum is the known optimal value, attained at Minimizer
	Minimum float64 `json:"minimum" yaml:"minimum"`

	problem optimize.Problem
	argmin  func(dim int) optimization.Point
}

// Minimizer returns the point at which the objective attains Minimum in dim
// dimensions.
func (o Objective) Minimizer(dim int) (optimization.Point, error) {
	if err := o.CheckDim(dim); err != nil {
		return nil, err
	}
	return o.argmin(dim), nil
}

// constant returns a minimizer with every coordinate equal to v.
func constant(v float64) func(int) optimization.Point {
	return func(dim int) optimization.Point {
		x := make(optimization.Point, dim)
		for i := range x {
			x[i] = v
		}
		return x
	}
}

// fixed returns a minimizer for an objective of a single dimension.
func fixed(x ...float64) func(int) optimization.Point {
	return func(int) optimization.Point {
		return append(optimization.Point(nil), x...)
	}
}

// CheckDim reports whether dim is acceptable for the objective.
func (o Objective) CheckDim(dim int) error {
	switch {
	case dim < 1:
		return optimization.WrapErrorf(optimization.ErrDimensionMismatch, "%s: empty starting point", o.Name)
	case o.Dim > 0 && dim != o.Dim:
		return optimization.WrapErrorf(optimization.ErrDimensionMismatch, "%s: got %d coordinates, want %d", o.Name, dim, o.Dim)
	case dim < o.MinDim:
		return optimization.WrapErrorf(optimization.ErrDimensionMismatch, "%s: got %d coordinates, want at least %d", o.Name, dim, o.MinDim)
	case o.Multiple > 0 && dim%o.Multiple != 0:
		return optimization.WrapErrorf(optimization.ErrDimensionMismatch, "%s: got %d coordinates, want a multiple of %d", o.Name, dim, o.Multiple)
	}
	return nil
}

// Oracle returns an oracle for the objective in dim dimensions. With
// numeric set, the gradient is estimated by central differences instead of
// the closed form.
func (o Objective) Oracle(dim int, numeric bool) (optimization.Oracle, error) {
	if err := o.CheckDim(dim); err != nil {
		return nil, err
	}
	if numeric {
		return optimization.FiniteDifference(o.problem.Func, nil), nil
	}
	return optimization.FromProblem(o.problem), nil
}

// sphere is f(x) = Σ x_i²
type sphere struct{}

func (sphere) Func(x []float64) float64 {
	return floats.Dot(x, x)
}

func (sphere) Grad(grad, x []float64) {
	floats.ScaleTo(grad, 2, x)
}

func problemOf(f interface {
	Func(x []float64) float64
	Grad(grad, x []float64)
}) optimize.Problem {
	return optimize.Problem{Func: f.Func, Grad: f.Grad}
}

var registry = map[string]Objective{
	"sphere": {
		Name:        "sphere",
		Description: "sum of squares, minimum 0 at the origin",
		MinDim:      1,
		Minimum:     0,
		problem:     problemOf(sphere{}),
		argmin:      constant(0),
	},
	"rosenbrock": {
		Name:        "rosenbrock",
		Description: "extended Rosenbrock valley, minimum 0 at (1, ..., 1)",
		MinDim:      2,
		Minimum:     0,
		problem:     problemOf(functions.ExtendedRosenbrock{}),
		argmin:      constant(1),
	},
	"beale": {
		Name:        "beale",
		Description: "Beale function, minimum 0 at (3, 0.5)",
		Dim:         2,
		Minimum:     0,
		problem:     problemOf(functions.Beale{}),
		argmin:      fixed(3, 0.5),
	},
	"brownbadlyscaled": {
		Name:        "brownbadlyscaled",
		Description: "Brown badly scaled function, minimum 0 at (1e6, 2e-6)",
		Dim:         2,
		Minimum:     0,
		problem:     problemOf(functions.BrownBadlyScaled{}),
		argmin:      fixed(1e6, 2e-6),
	},
	"helicalvalley": {
		Name:        "helicalvalley",
		Description: "Fletcher-Powell helical valley, minimum 0 at (1, 0, 0)",
		Dim:         3,
		Minimum:     0,
		problem:     problemOf(functions.HelicalValley{}),
		argmin:      fixed(1, 0, 0),
	},
	"wood": {
		Name:        "wood",
		Description: "Wood function, minimum 0 at (1, 1, 1, 1)",
		Dim:         4,
		Minimum:     0,
		problem:     problemOf(functions.Wood{}),
		argmin:      constant(1),
	},
	"powell": {
		Name:        "powell",
		Description: "extended Powell singular function, minimum 0 at the origin",
		Multiple:    4,
		MinDim:      4,
		Minimum:     0,
		problem:     problemOf(functions.ExtendedPowellSingular{}),
		argmin:      constant(0),
	},
}

// Lookup returns the objective registered under name.
func Lookup(name string) (Objective, error) {
	o, ok := registry[name]
	if !ok {
		return Objective{}, optimization.WrapErrorf(optimization.ErrUnknownObjective, "%q", name).
			WithComponent("objectives").WithOperation("lookup")
	}
	return o, nil
}

// All returns every registered objective sorted by name.
func All() []Objective {
	all := make([]Objective, 0, len(registry))
	for _, o := range registry {
		all = append(all, o)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all
}

// Names returns the registered names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
