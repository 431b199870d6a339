package objectives

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/momentum/internal/optimization"
	"github.com/copyleftdev/momentum/internal/optimization/firstorder"
)

func TestLookup(t *testing.T) {
	for _, name := range Names() {
		o, err := Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, name, o.Name)
	}

	_, err := Lookup("himmelblau")
	require.Error(t, err)
	assert.True(t, errors.Is(err, optimization.ErrUnknownObjective))
}

func TestAllSorted(t *testing.T) {
	all := All()
	require.Len(t, all, len(Names()))
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Name, all[i].Name)
	}
}

func TestCheckDim(t *testing.T) {
	tests := []struct {
		name    string
		dim     int
		wantErr bool
	}{
		{"sphere", 1, false},
		{"sphere", 7, false},
		{"sphere", 0, true},
		{"rosenbrock", 1, true},
		{"rosenbrock", 2, false},
		{"rosenbrock", 5, false},
		{"beale", 2, false},
		{"beale", 3, true},
		{"wood", 4, false},
		{"wood", 2, true},
		{"powell", 4, false},
		{"powell", 8, false},
		{"powell", 6, true},
		{"helicalvalley", 3, false},
	}

	for _, tt := range tests {
		o, err := Lookup(tt.name)
		require.NoError(t, err)

		err = o.CheckDim(tt.dim)
		if tt.wantErr {
			assert.True(t, errors.Is(err, optimization.ErrDimensionMismatch), "%s dim %d", tt.name, tt.dim)
		} else {
			assert.NoError(t, err, "%s dim %d", tt.name, tt.dim)
		}
	}
}

// dims returns the smallest accepted dimension and, for objectives of
// variable dimension, a larger one.
func dims(o Objective) []int {
	if o.Dim > 0 {
		return []int{o.Dim}
	}
	smallest := o.MinDim
	if o.Multiple > smallest {
		smallest = o.Multiple
	}
	return []int{smallest, 2 * smallest}
}

func TestMinimumAttainedAtMinimizer(t *testing.T) {
	for _, o := range All() {
		for _, dim := range dims(o) {
			o, dim := o, dim
			t.Run(fmt.Sprintf("%s/%d", o.Name, dim), func(t *testing.T) {
				x, err := o.Minimizer(dim)
				require.NoError(t, err)
				require.Len(t, x, dim)

				oracle, err := o.Oracle(dim, false)
				require.NoError(t, err)

				assert.InDelta(t, o.Minimum, oracle.Evaluate(x), 1e-12)
				assert.InDelta(t, 0, floats.Norm(oracle.Gradient(x), 2), 1e-8)

				tr := firstorder.GradientDescent(x, oracle, 1e-3, 1e-8, 10)
				assert.Equal(t, 0, tr.Iterations)
			})
		}
	}
}

func TestMinimizerRejectsBadDimension(t *testing.T) {
	o, err := Lookup("wood")
	require.NoError(t, err)

	_, err = o.Minimizer(3)
	assert.True(t, errors.Is(err, optimization.ErrDimensionMismatch))
}

func TestNumericGradientMatchesAnalytic(t *testing.T) {
	points := map[string]optimization.Point{
		"sphere":     {1, -2, 3},
		"rosenbrock": {-1.2, 1},
		"beale":      {1, 1},
		"wood":       {-3, -1, -3, -1},
		"powell":     {3, -1, 0, 1},
	}

	for name, x := range points {
		t.Run(name, func(t *testing.T) {
			o, err := Lookup(name)
			require.NoError(t, err)

			analytic, err := o.Oracle(len(x), false)
			require.NoError(t, err)
			numeric, err := o.Oracle(len(x), true)
			require.NoError(t, err)

			want := analytic.Gradient(x)
			got := numeric.Gradient(x)
			assert.True(t, floats.EqualApprox(got, want, 1e-4*(1+floats.Norm(want, 2))),
				"numeric %v, analytic %v", got, want)
			assert.Equal(t, analytic.Evaluate(x), numeric.Evaluate(x))
		})
	}
}

func TestOracleRejectsBadDimension(t *testing.T) {
	o, err := Lookup("beale")
	require.NoError(t, err)

	_, err = o.Oracle(3, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, optimization.ErrDimensionMismatch))
}

func TestRosenbrockDescent(t *testing.T) {
	o, err := Lookup("rosenbrock")
	require.NoError(t, err)
	oracle, err := o.Oracle(2, false)
	require.NoError(t, err)

	x0 := optimization.Point{-1.2, 1}
	settings := optimization.Settings{Alpha: 5e-4, Beta: 0.5, Epsilon: 1e-4, MaxIterations: 20000}

	for _, name := range firstorder.Names() {
		t.Run(name, func(t *testing.T) {
			m, err := firstorder.Lookup(name)
			require.NoError(t, err)

			tr := m.Minimize(x0, oracle, settings)
			optimization.AssertTraceShape(t, tr, name == firstorder.NameNesterov)
			_, norm := tr.Final()
			assert.Less(t, norm, tr.Norms[0], "descent should reduce the gradient norm")
		})
	}
}
