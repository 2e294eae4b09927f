package tensor

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch reports operands, feeds or configured dimensions that do
// not line up.
var ErrShapeMismatch = errors.New("shape mismatch")

// New allocates a zeroed rows×cols batch matrix (rows = samples).
func New(rows, cols int) *mat.Dense {
	return mat.NewDense(rows, cols, nil)
}

// FromRows copies equal-length rows into a dense batch matrix.
func FromRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("empty rows: %w", ErrShapeMismatch)
	}
	cols := len(rows[0])
	out := mat.NewDense(len(rows), cols, nil)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("row %d has %d columns, want %d: %w", i, len(r), cols, ErrShapeMismatch)
		}
		out.SetRow(i, r)
	}
	return out, nil
}

// CheckShape verifies m is rows×cols. A negative expectation matches any size.
func CheckShape(m mat.Matrix, rows, cols int) error {
	if m == nil {
		return fmt.Errorf("nil matrix: %w", ErrShapeMismatch)
	}
	r, c := m.Dims()
	if (rows >= 0 && r != rows) || (cols >= 0 && c != cols) {
		return fmt.Errorf("got %dx%d, want %s: %w", r, c, dimString(rows, cols), ErrShapeMismatch)
	}
	return nil
}

func dimString(rows, cols int) string {
	f := func(d int) string {
		if d < 0 {
			return "?"
		}
		return fmt.Sprint(d)
	}
	return f(rows) + "x" + f(cols)
}

// Add returns a+b (same shape), or error if shapes differ.
func Add(a, b mat.Matrix) (*mat.Dense, error) {
	ar, ac := a.Dims()
	if err := CheckShape(b, ar, ac); err != nil {
		return nil, err
	}
	var out mat.Dense
	out.Add(a, b)
	return &out, nil
}

// MatMul returns a×b, or error if the inner dimensions differ.
func MatMul(a, b mat.Matrix) (*mat.Dense, error) {
	_, k := a.Dims()
	k2, _ := b.Dims()
	if k != k2 {
		return nil, fmt.Errorf("inner dimensions must match: %d vs %d: %w", k, k2, ErrShapeMismatch)
	}
	var out mat.Dense
	out.Mul(a, b)
	return &out, nil
}

// AddRowVector adds v to every row of m in place.
func AddRowVector(m *mat.Dense, v []float64) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		floats.Add(m.RawRowView(i), v)
	}
}

// SumRows returns the column-wise sum over all rows of m.
func SumRows(m *mat.Dense) []float64 {
	r, c := m.Dims()
	sum := make([]float64, c)
	for i := 0; i < r; i++ {
		floats.Add(sum, m.RawRowView(i))
	}
	return sum
}

// ArgMaxRows returns the index of the largest entry of each row. Ties resolve
// to the first index.
func ArgMaxRows(m *mat.Dense) []int {
	r, _ := m.Dims()
	out := make([]int, r)
	for i := range out {
		out[i] = floats.MaxIdx(m.RawRowView(i))
	}
	return out
}

// AllFinite reports whether m contains neither NaN nor ±Inf.
func AllFinite(m *mat.Dense) bool {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		for _, v := range m.RawRowView(i) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// Rows returns a view of rows [lo, hi) of m. The view shares storage with m.
func Rows(m *mat.Dense, lo, hi int) *mat.Dense {
	_, c := m.Dims()
	return m.Slice(lo, hi, 0, c).(*mat.Dense)
}
