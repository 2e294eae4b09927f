package nn

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Bindings carries the per-run placeholder values layers read during a
// forward pass. They are bound fresh on every run.
type Bindings struct {
	Training bool
	KeepProb float64
}

// Inference is the binding used for evaluation and prediction passes.
var Inference = Bindings{Training: false, KeepProb: 1.0}

// Module defines a single layer/unit in the network. Inputs and outputs are
// batch matrices with one sample per row.
type Module interface {
	Forward(x *mat.Dense, b Bindings) (*mat.Dense, error)
	// Backward computes gradients and propagates them.
	// It takes the gradient of the loss with respect to the module's output,
	// and returns the gradient of the loss with respect to the module's input.
	// Parameter gradients are left in the Grad field of the module's params.
	Backward(gradOut *mat.Dense) (*mat.Dense, error)
	Tag() string
}

// Sequential chains multiple Modules in order.
type Sequential struct {
	Layers []Module
}

// Forward applies each layer in sequence.
func (s *Sequential) Forward(x *mat.Dense, b Bindings) (*mat.Dense, error) {
	var err error
	out := x
	for _, layer := range s.Layers {
		out, err = layer.Forward(out, b)
		if err != nil {
			return nil, fmt.Errorf("%s forward: %w", layer.Tag(), err)
		}
	}
	return out, nil
}

// Backward applies Backward in reverse order.
func (s *Sequential) Backward(grad *mat.Dense) (*mat.Dense, error) {
	var err error
	out := grad
	for i := len(s.Layers) - 1; i >= 0; i-- {
		out, err = s.Layers[i].Backward(out)
		if err != nil {
			return nil, fmt.Errorf("%s backward: %w", s.Layers[i].Tag(), err)
		}
	}
	return out, nil
}

func (s *Sequential) Tag() string {
	tags := make([]string, len(s.Layers))
	for i, m := range s.Layers {
		tags[i] = m.Tag()
	}
	return "Sequential[" + strings.Join(tags, ",") + "]"
}
