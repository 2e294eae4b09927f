package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Adam implements the Adam update with bias-corrected step size. The
// learning rate is supplied per step so a schedule can drive it.
type Adam struct {
	Beta1   float64
	Beta2   float64
	Epsilon float64

	t int
	m map[*Param]*mat.Dense
	v map[*Param]*mat.Dense
}

// NewAdam returns an optimizer with beta1 0.9, beta2 0.999 and epsilon 1e-8.
func NewAdam() *Adam {
	a := &Adam{Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8}
	a.Reset()
	return a
}

// Reset drops the moment estimates and the step counter.
func (a *Adam) Reset() {
	a.t = 0
	a.m = make(map[*Param]*mat.Dense)
	a.v = make(map[*Param]*mat.Dense)
}

// Steps returns the number of updates applied since the last Reset.
func (a *Adam) Steps() int { return a.t }

// Step applies one update to every parameter using its current Grad.
func (a *Adam) Step(params []*Param, lr float64) error {
	for _, p := range params {
		if p.Grad == nil {
			return fmt.Errorf("adam: no gradient for %s", p.Name)
		}
		pr, pc := p.Value.Dims()
		gr, gc := p.Grad.Dims()
		if pr != gr || pc != gc {
			return fmt.Errorf("adam: gradient for %s is %dx%d, want %dx%d", p.Name, gr, gc, pr, pc)
		}
	}

	a.t++
	t := float64(a.t)
	lrT := lr * math.Sqrt(1-math.Pow(a.Beta2, t)) / (1 - math.Pow(a.Beta1, t))

	for _, p := range params {
		rows, cols := p.Value.Dims()
		m, ok := a.m[p]
		if !ok {
			m = mat.NewDense(rows, cols, nil)
			a.m[p] = m
			a.v[p] = mat.NewDense(rows, cols, nil)
		}
		v := a.v[p]
		for i := 0; i < rows; i++ {
			w := p.Value.RawRowView(i)
			g := p.Grad.RawRowView(i)
			mr := m.RawRowView(i)
			vr := v.RawRowView(i)
			for j := range w {
				mr[j] = a.Beta1*mr[j] + (1-a.Beta1)*g[j]
				vr[j] = a.Beta2*vr[j] + (1-a.Beta2)*g[j]*g[j]
				w[j] -= lrT * mr[j] / (math.Sqrt(vr[j]) + a.Epsilon)
			}
		}
	}
	return nil
}
