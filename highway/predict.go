package highway

import (
	"fmt"
	"time"

	"hwnet/tensor"

	"gonum.org/v1/gonum/mat"
)

// Predict returns the logits for every row of x, computed in batches of
// batchSize with training off and dropout disabled. Rows keep their order.
func (c *Classifier) Predict(x *mat.Dense, batchSize int) (*mat.Dense, error) {
	if err := c.sess.Err(); err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size %d: %w", batchSize, ErrInvalidOptions)
	}
	if isEmpty(x) {
		return nil, ErrEmptyInput
	}
	if err := c.graph.checkFeed(Feed{X: x}, false); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { c.graph.stats.InferenceTime += time.Since(start) }()

	rows, _ := x.Dims()
	out := mat.NewDense(rows, c.cfg.OutputDim, nil)
	it := NewBatchIter(x, nil, batchSize)
	lo := 0
	for {
		xb, _, ok := it.Next()
		if !ok {
			break
		}
		logits, err := c.graph.Logits(Feed{X: xb, KeepProb: 1.0})
		if err != nil {
			return nil, err
		}
		n, _ := logits.Dims()
		tensor.Rows(out, lo, lo+n).Copy(logits)
		lo += n
	}
	return out, nil
}

// PredictClasses returns the arg-max class of every row of x.
func (c *Classifier) PredictClasses(x *mat.Dense, batchSize int) ([]int, error) {
	logits, err := c.Predict(x, batchSize)
	if err != nil {
		return nil, err
	}
	return tensor.ArgMaxRows(logits), nil
}
