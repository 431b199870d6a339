package firstorder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/momentum/internal/optimization"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name     string
		wantName string
		wantErr  bool
	}{
		{"gd", NameGradientDescent, false},
		{"fixed", NameGradientDescent, false},
		{"heavyball", NameHeavyBall, false},
		{"momentum", NameHeavyBall, false},
		{"nesterov", NameNesterov, false},
		{"nag", NameNesterov, false},
		{"adam", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Lookup(tt.name)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, optimization.ErrUnknownMethod))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, m.Name())
		})
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"gd", "heavyball", "nesterov"}, Names())
}

// Every method must satisfy the shared stopping contract.
func TestMethodsSharedContract(t *testing.T) {
	settings := optimization.Settings{Alpha: 0.1, Beta: 0.4, Epsilon: 1e-6, MaxIterations: 100}

	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			m, err := Lookup(name)
			require.NoError(t, err)

			tr := m.Minimize(optimization.Point{10}, optimization.SquareOracle(), settings)
			optimization.AssertTraceShape(t, tr, name == NameNesterov)
			assert.LessOrEqual(t, tr.Iterations, settings.MaxIterations)
			assert.Equal(t, optimization.Point{10}, tr.Points[0])

			origin := m.Minimize(optimization.Point{0}, optimization.SquareOracle(), optimization.Settings{Alpha: 0.1, Beta: 0.4})
			assert.Equal(t, 0, origin.Iterations)
			assert.Equal(t, []optimization.Point{{0}}, origin.Points)
		})
	}
}

func TestMethodsMatchRoutines(t *testing.T) {
	oracle := optimization.DiagonalQuadraticOracle([]float64{1, 3})
	x0 := optimization.Point{2, 2}
	s := optimization.Settings{Alpha: 0.2, Beta: 0.3, Epsilon: 1e-9, MaxIterations: 50}

	gd, _ := Lookup(NameGradientDescent)
	hb, _ := Lookup(NameHeavyBall)
	nag, _ := Lookup(NameNesterov)

	assert.Equal(t, GradientDescent(x0, oracle, s.Alpha, s.Epsilon, s.MaxIterations), gd.Minimize(x0, oracle, s))
	assert.Equal(t, HeavyBall(x0, oracle, s.Alpha, s.Beta, s.Epsilon, s.MaxIterations), hb.Minimize(x0, oracle, s))
	assert.Equal(t, Nesterov(x0, oracle, s.Alpha, s.Beta, s.Epsilon, s.MaxIterations), nag.Minimize(x0, oracle, s))
}

func TestUsesMomentum(t *testing.T) {
	assert.False(t, UsesMomentum(NameGradientDescent))
	assert.True(t, UsesMomentum(NameHeavyBall))
	assert.True(t, UsesMomentum(NameNesterov))
}
