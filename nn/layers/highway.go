package layers

import (
	"fmt"

	"hwnet/nn"
	"hwnet/tensor"

	"gonum.org/v1/gonum/mat"
)

// Highway is one gated block:
//
//	T = sigmoid(X·W_T + b_T)
//	H = relu(X·W + b)
//	Y = H⊙T + X⊙(1-T)
//
// followed by batch normalization. Input and output widths are equal.
type Highway struct {
	Transform *Linear
	Main      *Linear
	Norm      *BatchNorm

	gate  *Activation
	act   *Activation
	index int
	width int

	// cached by the last forward pass
	x, t, h *mat.Dense
}

// NewHighway registers the parameters of block n (hw<n>_wt, hw<n>_bt, hw<n>_w,
// hw<n>_b, hw<n>_bn_beta) and returns the block.
func NewHighway(reg *nn.Registry, n, width int) (*Highway, error) {
	prefix := fmt.Sprintf("hw%d", n)
	transform, err := NewLinear(reg, prefix+"_wt", prefix+"_bt", width, width)
	if err != nil {
		return nil, err
	}
	main, err := NewLinear(reg, prefix+"_w", prefix+"_b", width, width)
	if err != nil {
		return nil, err
	}
	norm, err := NewBatchNorm(reg, prefix+"_bn", width)
	if err != nil {
		return nil, err
	}
	gate, err := NewActivation("sigmoid")
	if err != nil {
		return nil, err
	}
	act, err := NewActivation("relu")
	if err != nil {
		return nil, err
	}
	return &Highway{
		Transform: transform,
		Main:      main,
		Norm:      norm,
		gate:      gate,
		act:       act,
		index:     n,
		width:     width,
	}, nil
}

func (hw *Highway) Width() int { return hw.width }

// Gate returns the pre-normalization output Y for x.
func (hw *Highway) Gate(x *mat.Dense) (*mat.Dense, error) {
	return hw.combine(x, nn.Inference)
}

func (hw *Highway) combine(x *mat.Dense, b nn.Bindings) (*mat.Dense, error) {
	if err := tensor.CheckShape(x, -1, hw.width); err != nil {
		return nil, fmt.Errorf("%s input: %w", hw.Tag(), err)
	}
	tPre, err := hw.Transform.Forward(x, b)
	if err != nil {
		return nil, err
	}
	t, err := hw.gate.Forward(tPre, b)
	if err != nil {
		return nil, err
	}
	hPre, err := hw.Main.Forward(x, b)
	if err != nil {
		return nil, err
	}
	h, err := hw.act.Forward(hPre, b)
	if err != nil {
		return nil, err
	}

	rows, _ := x.Dims()
	y := mat.NewDense(rows, hw.width, nil)
	for i := 0; i < rows; i++ {
		xr, tr, hr, yr := x.RawRowView(i), t.RawRowView(i), h.RawRowView(i), y.RawRowView(i)
		for j := range yr {
			yr[j] = hr[j]*tr[j] + xr[j]*(1-tr[j])
		}
	}
	hw.x, hw.t, hw.h = x, t, h
	return y, nil
}

func (hw *Highway) Forward(x *mat.Dense, b nn.Bindings) (*mat.Dense, error) {
	y, err := hw.combine(x, b)
	if err != nil {
		return nil, err
	}
	return hw.Norm.Forward(y, b)
}

// Backward sums the input gradient of the carry path, the transform gate and
// the main path.
func (hw *Highway) Backward(gradOut *mat.Dense) (*mat.Dense, error) {
	if hw.x == nil {
		return nil, fmt.Errorf("%s: no cached input for backward pass", hw.Tag())
	}
	gy, err := hw.Norm.Backward(gradOut)
	if err != nil {
		return nil, err
	}

	rows, _ := hw.x.Dims()
	gh := mat.NewDense(rows, hw.width, nil)
	gt := mat.NewDense(rows, hw.width, nil)
	gx := mat.NewDense(rows, hw.width, nil)
	for i := 0; i < rows; i++ {
		g := gy.RawRowView(i)
		xr, tr, hr := hw.x.RawRowView(i), hw.t.RawRowView(i), hw.h.RawRowView(i)
		ghr, gtr, gxr := gh.RawRowView(i), gt.RawRowView(i), gx.RawRowView(i)
		for j := range g {
			ghr[j] = g[j] * tr[j]
			gtr[j] = g[j] * (hr[j] - xr[j])
			gxr[j] = g[j] * (1 - tr[j])
		}
	}

	ghPre, err := hw.act.Backward(gh)
	if err != nil {
		return nil, err
	}
	gMain, err := hw.Main.Backward(ghPre)
	if err != nil {
		return nil, err
	}
	gtPre, err := hw.gate.Backward(gt)
	if err != nil {
		return nil, err
	}
	gTransform, err := hw.Transform.Backward(gtPre)
	if err != nil {
		return nil, err
	}
	gx.Add(gx, gMain)
	gx.Add(gx, gTransform)
	return gx, nil
}

func (hw *Highway) Tag() string {
	return fmt.Sprintf("Highway%d_%d", hw.index, hw.width)
}
