package firstorder

import (
	"sort"

	"github.com/copyleftdev/momentum/internal/optimization"
)

// Registry names of the built-in methods.
const (
	NameGradientDescent = "gd"
	NameHeavyBall       = "heavyball"
	NameNesterov        = "nesterov"
)

type gradientDescent struct{}

func (gradientDescent) Name() string { return NameGradientDescent }

func (gradientDescent) Minimize(x0 optimization.Point, o optimization.Oracle, s optimization.Settings) optimization.Trace {
	return GradientDescent(x0, o, s.Alpha, s.Epsilon, s.MaxIterations)
}

type heavyBall struct{}

func (heavyBall) Name() string { return NameHeavyBall }

func (heavyBall) Minimize(x0 optimization.Point, o optimization.Oracle, s optimization.Settings) optimization.Trace {
	return HeavyBall(x0, o, s.Alpha, s.Beta, s.Epsilon, s.MaxIterations)
}

type nesterov struct{}

func (nesterov) Name() string { return NameNesterov }

func (nesterov) Minimize(x0 optimization.Point, o optimization.Oracle, s optimization.Settings) optimization.Trace {
	return Nesterov(x0, o, s.Alpha, s.Beta, s.Epsilon, s.MaxIterations)
}

var methods = map[string]optimization.Method{
	NameGradientDescent: gradientDescent{},
	NameHeavyBall:       heavyBall{},
	NameNesterov:        nesterov{},
}

// aliases accepted by Lookup in addition to the registry names
var aliases = map[string]string{
	"fixed":    NameGradientDescent,
	"sgd":      NameGradientDescent,
	"momentum": NameHeavyBall,
	"hb":       NameHeavyBall,
	"nag":      NameNesterov,
}

// Lookup returns the method registered under name or one of its aliases.
func Lookup(name string) (optimization.Method, error) {
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	m, ok := methods[name]
	if !ok {
		return nil, optimization.WrapErrorf(optimization.ErrUnknownMethod, "%q", name).
			WithComponent("firstorder").WithOperation("lookup")
	}
	return m, nil
}

// Names returns the registry names in sorted order.
func Names() []string {
	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UsesMomentum reports whether the named method reads Settings.Beta.
func UsesMomentum(name string) bool {
	return name == NameHeavyBall || name == NameNesterov
}
