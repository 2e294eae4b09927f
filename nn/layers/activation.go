package layers

import (
	"fmt"
	"math"

	"hwnet/nn"

	"gonum.org/v1/gonum/mat"
)

// activationFunc pairs an element-wise function with its derivative, the
// latter expressed in terms of the cached input and output.
type activationFunc struct {
	Name  string
	Fn    func(x float64) float64
	Deriv func(x, y float64) float64
}

// SupportedActivations lists the element-wise nonlinearities by name.
var SupportedActivations = map[string]activationFunc{
	"relu": {
		Name: "relu",
		Fn: func(x float64) float64 {
			if x > 0 {
				return x
			}
			return 0
		},
		Deriv: func(x, _ float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		},
	},
	"sigmoid": {
		Name:  "sigmoid",
		Fn:    func(x float64) float64 { return 1 / (1 + math.Exp(-x)) },
		Deriv: func(_, y float64) float64 { return y * (1 - y) },
	},
}

// Activation is a layer that applies an element-wise nonlinearity.
type Activation struct {
	fn         activationFunc
	lastInput  *mat.Dense
	lastOutput *mat.Dense
}

// NewActivation creates a new activation layer.
func NewActivation(name string) (*Activation, error) {
	fn, ok := SupportedActivations[name]
	if !ok {
		return nil, fmt.Errorf("unsupported activation: %s", name)
	}
	return &Activation{fn: fn}, nil
}

func (a *Activation) Forward(x *mat.Dense, _ nn.Bindings) (*mat.Dense, error) {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 { return a.fn.Fn(v) }, x)
	a.lastInput = x
	a.lastOutput = &out
	return &out, nil
}

func (a *Activation) Backward(gradOut *mat.Dense) (*mat.Dense, error) {
	if a.lastInput == nil {
		return nil, fmt.Errorf("%s: no cached input for backward pass", a.Tag())
	}
	r, c := a.lastInput.Dims()
	gr, gc := gradOut.Dims()
	if r != gr || c != gc {
		return nil, fmt.Errorf("%s: gradient is %dx%d, want %dx%d", a.Tag(), gr, gc, r, c)
	}
	var grad mat.Dense
	grad.Apply(func(i, j int, g float64) float64 {
		return g * a.fn.Deriv(a.lastInput.At(i, j), a.lastOutput.At(i, j))
	}, gradOut)
	return &grad, nil
}

func (a *Activation) Tag() string {
	return "Activation_" + a.fn.Name
}
