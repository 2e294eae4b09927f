package nn

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// dummy layer: adds a constant
type addLayer struct{ c float64 }

func (l *addLayer) Forward(x *mat.Dense, _ Bindings) (*mat.Dense, error) {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 { return v + l.c }, x)
	return &out, nil
}
func (l *addLayer) Backward(gradOut *mat.Dense) (*mat.Dense, error) {
	return gradOut, nil
}
func (l *addLayer) Tag() string { return "add" }

// dummy layer: scales the gradient so the backward order is observable
type scaleLayer struct{ c float64 }

func (l *scaleLayer) Forward(x *mat.Dense, _ Bindings) (*mat.Dense, error) {
	var out mat.Dense
	out.Scale(l.c, x)
	return &out, nil
}
func (l *scaleLayer) Backward(gradOut *mat.Dense) (*mat.Dense, error) {
	var out mat.Dense
	out.Scale(l.c, gradOut)
	return &out, nil
}
func (l *scaleLayer) Tag() string { return "scale" }

// dummy layer: error on forward
type errLayer struct{}

func (l *errLayer) Forward(*mat.Dense, Bindings) (*mat.Dense, error) {
	return nil, errors.New("fail")
}
func (l *errLayer) Backward(*mat.Dense) (*mat.Dense, error) {
	return nil, nil
}
func (l *errLayer) Tag() string { return "err" }

func TestSequentialPlain(t *testing.T) {
	a := mat.NewDense(1, 1, []float64{1})
	seq := &Sequential{Layers: []Module{&addLayer{c: 2}, &scaleLayer{c: 3}}}
	out, err := seq.Forward(a, Inference)
	if err != nil {
		t.Fatal(err)
	}
	if out.At(0, 0) != 9 {
		t.Fatalf("expected 9, got %f", out.At(0, 0))
	}
	grad, err := seq.Backward(mat.NewDense(1, 1, []float64{1}))
	if err != nil {
		t.Fatal(err)
	}
	if grad.At(0, 0) != 3 {
		t.Fatalf("expected 3, got %f", grad.At(0, 0))
	}
}

func TestSequentialForwardError(t *testing.T) {
	seq := &Sequential{Layers: []Module{&addLayer{c: 0}, &errLayer{}}}
	if _, err := seq.Forward(mat.NewDense(1, 1, nil), Inference); err == nil {
		t.Fatal("expected error from errLayer")
	}
	if got := seq.Tag(); got != "Sequential[add,err]" {
		t.Errorf("unexpected tag %q", got)
	}
}
