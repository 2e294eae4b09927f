package nn

import (
	"fmt"
	"math"

	"hwnet/tensor"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Softmax applies the softmax function to every row of logits.
func Softmax(logits *mat.Dense) *mat.Dense {
	r, c := logits.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		row := logits.RawRowView(i)
		dst := out.RawRowView(i)
		maxLogit := floats.Max(row)
		expSum := 0.0
		for j, v := range row {
			e := math.Exp(v - maxLogit)
			dst[j] = e
			expSum += e
		}
		floats.Scale(1/expSum, dst)
	}
	return out
}

// SoftmaxCrossEntropy returns the batch-mean softmax cross-entropy between
// logits and label rows, and the gradient of that mean with respect to the
// logits.
func SoftmaxCrossEntropy(logits, labels *mat.Dense) (float64, *mat.Dense, error) {
	r, c := logits.Dims()
	if err := tensor.CheckShape(labels, r, c); err != nil {
		return 0, nil, fmt.Errorf("labels: %w", err)
	}
	probs := Softmax(logits)
	grad := mat.NewDense(r, c, nil)
	n := float64(r)
	loss := 0.0
	for i := 0; i < r; i++ {
		z := logits.RawRowView(i)
		y := labels.RawRowView(i)
		p := probs.RawRowView(i)
		g := grad.RawRowView(i)

		// log-sum-exp keeps the loss finite for large logits.
		maxLogit := floats.Max(z)
		lse := 0.0
		for _, v := range z {
			lse += math.Exp(v - maxLogit)
		}
		lse = maxLogit + math.Log(lse)

		ySum := floats.Sum(y)
		for j := range z {
			if y[j] != 0 {
				loss -= y[j] * (z[j] - lse)
			}
			g[j] = (p[j]*ySum - y[j]) / n
		}
	}
	return loss / n, grad, nil
}

// Accuracy is the fraction of rows whose arg-max prediction matches the
// arg-max label.
func Accuracy(logits, labels *mat.Dense) (float64, error) {
	r, c := logits.Dims()
	if err := tensor.CheckShape(labels, r, c); err != nil {
		return 0, fmt.Errorf("labels: %w", err)
	}
	pred := tensor.ArgMaxRows(logits)
	want := tensor.ArgMaxRows(labels)
	hits := 0
	for i := range pred {
		if pred[i] == want[i] {
			hits++
		}
	}
	return float64(hits) / float64(r), nil
}
