package layers

import (
	"fmt"
	"math/rand"

	"hwnet/nn"

	"gonum.org/v1/gonum/mat"
)

// Dropout zeroes activations with probability 1-KeepProb and scales the
// survivors by 1/KeepProb. A keep probability of 1 makes it the identity,
// which is how evaluation and prediction passes disable it.
type Dropout struct {
	rng  *rand.Rand
	mask *mat.Dense
}

// NewDropout returns a dropout layer drawing its masks from rng.
func NewDropout(rng *rand.Rand) *Dropout {
	return &Dropout{rng: rng}
}

func (d *Dropout) Forward(x *mat.Dense, b nn.Bindings) (*mat.Dense, error) {
	if b.KeepProb <= 0 || b.KeepProb > 1 {
		return nil, fmt.Errorf("%s: keep probability %v not in (0, 1]", d.Tag(), b.KeepProb)
	}
	if b.KeepProb == 1 {
		d.mask = nil
		return x, nil
	}
	r, c := x.Dims()
	mask := mat.NewDense(r, c, nil)
	scale := 1 / b.KeepProb
	for i := 0; i < r; i++ {
		row := mask.RawRowView(i)
		for j := range row {
			if d.rng.Float64() < b.KeepProb {
				row[j] = scale
			}
		}
	}
	d.mask = mask
	var out mat.Dense
	out.MulElem(x, mask)
	return &out, nil
}

func (d *Dropout) Backward(gradOut *mat.Dense) (*mat.Dense, error) {
	if d.mask == nil {
		return gradOut, nil
	}
	var grad mat.Dense
	grad.MulElem(gradOut, d.mask)
	return &grad, nil
}

func (d *Dropout) Tag() string { return "Dropout" }
