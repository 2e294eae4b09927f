package highway

import (
	"hwnet/tensor"

	"gonum.org/v1/gonum/mat"
)

// BatchIter walks contiguous row slices of x (and optionally y) of at most
// size rows. The last batch holds the remainder. Batches are views, not
// copies.
type BatchIter struct {
	x, y *mat.Dense
	size int
	rows int
	pos  int
}

// NewBatchIter returns an iterator over x and y; y may be nil. size must be
// positive.
func NewBatchIter(x, y *mat.Dense, size int) *BatchIter {
	rows, _ := x.Dims()
	return &BatchIter{x: x, y: y, size: size, rows: rows}
}

// Next returns the next batch, or ok=false when the data is exhausted.
func (it *BatchIter) Next() (xb, yb *mat.Dense, ok bool) {
	if it.pos >= it.rows {
		return nil, nil, false
	}
	lo := it.pos
	hi := min(lo+it.size, it.rows)
	it.pos = hi
	xb = tensor.Rows(it.x, lo, hi)
	if it.y != nil {
		yb = tensor.Rows(it.y, lo, hi)
	}
	return xb, yb, true
}

// Reset rewinds the iterator to the first batch.
func (it *BatchIter) Reset() { it.pos = 0 }

// Len is the number of batches in a full pass.
func (it *BatchIter) Len() int {
	return (it.rows + it.size - 1) / it.size
}
