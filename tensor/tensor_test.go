package tensor

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewShape(t *testing.T) {
	t1 := New(2, 3)
	r, c := t1.Dims()
	if r != 2 || c != 3 {
		t.Fatalf("unexpected shape: %dx%d", r, c)
	}
}

func TestFromRows(t *testing.T) {
	m, err := FromRows([][]float64{{1, 2}, {3, 4}, {5, 6}})
	require.NoError(t, err)
	require.Equal(t, 4.0, m.At(1, 1))

	_, err = FromRows([][]float64{{1, 2}, {3}})
	require.ErrorIs(t, err, ErrShapeMismatch)

	_, err = FromRows(nil)
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestAdd(t *testing.T) {
	a := mat.NewDense(1, 3, []float64{1, 2, 3})
	b := mat.NewDense(1, 3, []float64{4, 5, 6})
	c, err := Add(a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{5, 7, 9}
	for i := range want {
		if c.At(0, i) != want[i] {
			t.Errorf("at %d, got %f, want %f", i, c.At(0, i), want[i])
		}
	}

	_, err = Add(a, mat.NewDense(3, 1, nil))
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestMatMul(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	b := mat.NewDense(2, 2, []float64{5, 6, 7, 8})
	c, err := MatMul(a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{19, 22, 43, 50}
	for i := range want {
		if got := c.At(i/2, i%2); got != want[i] {
			t.Errorf("at %d, got %f, want %f", i, got, want[i])
		}
	}

	_, err = MatMul(a, mat.NewDense(3, 2, nil))
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestRowHelpers(t *testing.T) {
	m := mat.NewDense(3, 2, []float64{1, 5, 7, 2, 3, 3})
	AddRowVector(m, []float64{1, -1})
	require.Equal(t, []float64{2, 4, 8, 1, 4, 2}, m.RawMatrix().Data)
	require.Equal(t, []float64{14, 7}, SumRows(m))
	require.Equal(t, []int{1, 0, 0}, ArgMaxRows(m))

	view := Rows(m, 1, 3)
	r, c := view.Dims()
	require.Equal(t, 2, r)
	require.Equal(t, 2, c)
	require.Equal(t, 8.0, view.At(0, 0))
}

func TestAllFinite(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	require.True(t, AllFinite(m))
	m.Set(1, 0, math.NaN())
	require.False(t, AllFinite(m))
	m.Set(1, 0, math.Inf(-1))
	require.False(t, AllFinite(m))
}
