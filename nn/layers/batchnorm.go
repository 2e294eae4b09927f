package layers

import (
	"fmt"
	"math"

	"hwnet/nn"
	"hwnet/tensor"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultBatchNormDecay   = 0.999
	DefaultBatchNormEpsilon = 0.001
)

// BatchNorm normalizes each feature column. Training passes use the batch
// statistics and leave them pending; ApplyUpdate folds them into the moving
// averages that inference passes use. Only an offset (beta) is learned.
type BatchNorm struct {
	Beta       *nn.Param
	MovingMean *nn.Param
	MovingVar  *nn.Param
	Decay      float64
	Epsilon    float64

	width       int
	pendingMean []float64
	pendingVar  []float64

	// forward cache
	xhat     *mat.Dense
	invStd   []float64
	training bool
}

// NewBatchNorm registers beta and the moving statistics under prefix and
// adds the moving-average update to the registry's update ops.
func NewBatchNorm(reg *nn.Registry, prefix string, width int) (*BatchNorm, error) {
	beta, err := reg.Param(prefix+"_beta", []int{width}, nn.Constant{Value: 0})
	if err != nil {
		return nil, err
	}
	mean, err := reg.Variable(prefix+"_moving_mean", []int{width}, nn.Constant{Value: 0})
	if err != nil {
		return nil, err
	}
	variance, err := reg.Variable(prefix+"_moving_variance", []int{width}, nn.Constant{Value: 1})
	if err != nil {
		return nil, err
	}
	bn := &BatchNorm{
		Beta:       beta,
		MovingMean: mean,
		MovingVar:  variance,
		Decay:      DefaultBatchNormDecay,
		Epsilon:    DefaultBatchNormEpsilon,
		width:      width,
	}
	reg.AddUpdateOp(bn)
	return bn, nil
}

func (bn *BatchNorm) Forward(x *mat.Dense, b nn.Bindings) (*mat.Dense, error) {
	if err := tensor.CheckShape(x, -1, bn.width); err != nil {
		return nil, fmt.Errorf("%s input: %w", bn.Tag(), err)
	}
	n, c := x.Dims()

	var mean, variance []float64
	if b.Training {
		mean = make([]float64, c)
		variance = make([]float64, c)
		col := make([]float64, n)
		for j := 0; j < c; j++ {
			mat.Col(col, j, x)
			if n == 1 {
				mean[j] = col[0]
				continue
			}
			mean[j], variance[j] = stat.PopMeanVariance(col, nil)
		}
		bn.pendingMean, bn.pendingVar = mean, variance
	} else {
		mean = bn.MovingMean.Value.RawRowView(0)
		variance = bn.MovingVar.Value.RawRowView(0)
	}

	invStd := make([]float64, c)
	for j := range invStd {
		invStd[j] = 1 / math.Sqrt(variance[j]+bn.Epsilon)
	}
	beta := bn.Beta.Value.RawRowView(0)

	xhat := mat.NewDense(n, c, nil)
	out := mat.NewDense(n, c, nil)
	for i := 0; i < n; i++ {
		in := x.RawRowView(i)
		h := xhat.RawRowView(i)
		o := out.RawRowView(i)
		for j := range in {
			h[j] = (in[j] - mean[j]) * invStd[j]
			o[j] = h[j] + beta[j]
		}
	}
	bn.xhat = xhat
	bn.invStd = invStd
	bn.training = b.Training
	return out, nil
}

func (bn *BatchNorm) Backward(gradOut *mat.Dense) (*mat.Dense, error) {
	if bn.xhat == nil {
		return nil, fmt.Errorf("%s: no cached input for backward pass", bn.Tag())
	}
	n, c := bn.xhat.Dims()
	if err := tensor.CheckShape(gradOut, n, c); err != nil {
		return nil, fmt.Errorf("%s gradient: %w", bn.Tag(), err)
	}
	bn.Beta.Grad = mat.NewDense(1, c, tensor.SumRows(gradOut))

	gradIn := mat.NewDense(n, c, nil)
	if !bn.training {
		// Frozen statistics: the normalization is affine in x.
		for i := 0; i < n; i++ {
			g := gradOut.RawRowView(i)
			d := gradIn.RawRowView(i)
			for j := range g {
				d[j] = g[j] * bn.invStd[j]
			}
		}
		return gradIn, nil
	}

	sumG := make([]float64, c)
	sumGX := make([]float64, c)
	for i := 0; i < n; i++ {
		g := gradOut.RawRowView(i)
		h := bn.xhat.RawRowView(i)
		for j := range g {
			sumG[j] += g[j]
			sumGX[j] += g[j] * h[j]
		}
	}
	fn := float64(n)
	for i := 0; i < n; i++ {
		g := gradOut.RawRowView(i)
		h := bn.xhat.RawRowView(i)
		d := gradIn.RawRowView(i)
		for j := range g {
			d[j] = bn.invStd[j] / fn * (fn*g[j] - sumG[j] - h[j]*sumGX[j])
		}
	}
	return gradIn, nil
}

// ApplyUpdate moves the running statistics toward the last training batch.
// It is a no-op when no training pass happened since the previous update.
func (bn *BatchNorm) ApplyUpdate() {
	if bn.pendingMean == nil {
		return
	}
	mm := bn.MovingMean.Value.RawRowView(0)
	mv := bn.MovingVar.Value.RawRowView(0)
	for j := range mm {
		mm[j] = bn.Decay*mm[j] + (1-bn.Decay)*bn.pendingMean[j]
		mv[j] = bn.Decay*mv[j] + (1-bn.Decay)*bn.pendingVar[j]
	}
	bn.pendingMean, bn.pendingVar = nil, nil
}

func (bn *BatchNorm) Tag() string {
	return fmt.Sprintf("BatchNorm_%d", bn.width)
}
