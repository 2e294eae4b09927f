package layers

import (
	"fmt"

	"hwnet/nn"
	"hwnet/tensor"

	"gonum.org/v1/gonum/mat"
)

// Linear is a fully-connected layer: y = x·W + b.
type Linear struct {
	W, B *nn.Param

	inDim, outDim int
	lastInput     *mat.Dense
}

// NewLinear registers W (inDim×outDim) and b (outDim) under the given names.
func NewLinear(reg *nn.Registry, wName, bName string, inDim, outDim int) (*Linear, error) {
	w, err := reg.Weight(wName, []int{inDim, outDim})
	if err != nil {
		return nil, err
	}
	b, err := reg.Bias(bName, []int{outDim})
	if err != nil {
		return nil, err
	}
	return &Linear{W: w, B: b, inDim: inDim, outDim: outDim}, nil
}

func (l *Linear) InDim() int  { return l.inDim }
func (l *Linear) OutDim() int { return l.outDim }

func (l *Linear) Forward(x *mat.Dense, _ nn.Bindings) (*mat.Dense, error) {
	if err := tensor.CheckShape(x, -1, l.inDim); err != nil {
		return nil, fmt.Errorf("%s input: %w", l.Tag(), err)
	}
	// Cache input for backward
	l.lastInput = x
	out, err := tensor.MatMul(x, l.W.Value)
	if err != nil {
		return nil, err
	}
	tensor.AddRowVector(out, l.B.Value.RawRowView(0))
	return out, nil
}

// Backward stores dL/dW and dL/db in the params and returns dL/dx.
func (l *Linear) Backward(gradOut *mat.Dense) (*mat.Dense, error) {
	if l.lastInput == nil {
		return nil, fmt.Errorf("%s: no cached input for backward pass", l.Tag())
	}
	rows, _ := l.lastInput.Dims()
	if err := tensor.CheckShape(gradOut, rows, l.outDim); err != nil {
		return nil, fmt.Errorf("%s gradient: %w", l.Tag(), err)
	}

	var gradW mat.Dense
	gradW.Mul(l.lastInput.T(), gradOut)
	l.W.Grad = &gradW
	l.B.Grad = mat.NewDense(1, l.outDim, tensor.SumRows(gradOut))

	var gradIn mat.Dense
	gradIn.Mul(gradOut, l.W.Value.T())
	return &gradIn, nil
}

func (l *Linear) Tag() string {
	return fmt.Sprintf("Linear_%d_%d", l.inDim, l.outDim)
}
