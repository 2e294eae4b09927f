package layers

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"hwnet/nn"
	"hwnet/tensor"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

var training = nn.Bindings{Training: true, KeepProb: 1.0}

func randDense(rng *rand.Rand, r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(r, c, data)
}

// weightedSum is the scalar sum(out ⊙ w); its gradient w.r.t. out is w.
func weightedSum(out, w *mat.Dense) float64 {
	var p mat.Dense
	p.MulElem(out, w)
	return mat.Sum(&p)
}

// checkGradients compares the analytic input and parameter gradients of m
// against central differences of weightedSum.
func checkGradients(t *testing.T, m nn.Module, x *mat.Dense, params []*nn.Param, b nn.Bindings) {
	t.Helper()
	out, err := m.Forward(x, b)
	require.NoError(t, err)
	r, c := out.Dims()
	w := randDense(rand.New(rand.NewSource(99)), r, c)

	gx, err := m.Backward(w)
	require.NoError(t, err)
	gotX := append([]float64(nil), gx.RawMatrix().Data...)
	gotParams := make([][]float64, len(params))
	for i, p := range params {
		require.NotNil(t, p.Grad, p.Name)
		gotParams[i] = append([]float64(nil), p.Grad.RawMatrix().Data...)
	}

	settings := &fd.Settings{Formula: fd.Central, Step: 1e-6}
	xr, xc := x.Dims()
	x0 := append([]float64(nil), x.RawMatrix().Data...)
	wantX := fd.Gradient(nil, func(v []float64) float64 {
		out, err := m.Forward(mat.NewDense(xr, xc, append([]float64(nil), v...)), b)
		require.NoError(t, err)
		return weightedSum(out, w)
	}, x0, settings)
	require.InDeltaSlice(t, wantX, gotX, 1e-5, "input gradient of %s", m.Tag())

	for i, p := range params {
		data := p.Value.RawMatrix().Data
		orig := append([]float64(nil), data...)
		want := fd.Gradient(nil, func(v []float64) float64 {
			copy(data, v)
			out, err := m.Forward(x, b)
			require.NoError(t, err)
			return weightedSum(out, w)
		}, orig, settings)
		copy(data, orig)
		require.InDeltaSlice(t, want, gotParams[i], 1e-5, "gradient of %s", p.Name)
	}
}

func TestLinearForward(t *testing.T) {
	reg := nn.NewRegistry()
	lin, err := NewLinear(reg, "w", "b", 2, 3)
	require.NoError(t, err)
	lin.W.Value = mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	lin.B.Value = mat.NewDense(1, 3, []float64{10, 20, 30})

	out, err := lin.Forward(mat.NewDense(1, 2, []float64{1, 1}), training)
	require.NoError(t, err)
	require.Equal(t, []float64{15, 27, 39}, out.RawRowView(0))
	require.Equal(t, "Linear_2_3", lin.Tag())

	_, err = lin.Forward(mat.NewDense(1, 3, nil), training)
	require.True(t, errors.Is(err, tensor.ErrShapeMismatch))
}

func TestLinearGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	reg := nn.NewRegistry()
	lin, err := NewLinear(reg, "w", "b", 4, 3)
	require.NoError(t, err)
	reg.Initialize(rng)
	checkGradients(t, lin, randDense(rng, 5, 4), []*nn.Param{lin.W, lin.B}, training)
}

func TestLinearBackwardWithoutForward(t *testing.T) {
	reg := nn.NewRegistry()
	lin, err := NewLinear(reg, "w", "b", 2, 2)
	require.NoError(t, err)
	_, err = lin.Backward(mat.NewDense(1, 2, nil))
	require.Error(t, err)
}

func TestActivations(t *testing.T) {
	relu, err := NewActivation("relu")
	require.NoError(t, err)
	out, err := relu.Forward(mat.NewDense(1, 3, []float64{-1, 0, 2}), training)
	require.NoError(t, err)
	require.Equal(t, []float64{0, 0, 2}, out.RawRowView(0))

	sig, err := NewActivation("sigmoid")
	require.NoError(t, err)
	out, err = sig.Forward(mat.NewDense(1, 3, []float64{0, -1e9, 1e9}), training)
	require.NoError(t, err)
	require.Equal(t, []float64{0.5, 0, 1}, out.RawRowView(0))

	g, err := sig.Backward(mat.NewDense(1, 3, []float64{1, 1, 1}))
	require.NoError(t, err)
	require.InDelta(t, 0.25, g.At(0, 0), 1e-12)

	_, err = NewActivation("tanh")
	require.Error(t, err)
}

func TestBatchNormTrainingNormalizesColumns(t *testing.T) {
	reg := nn.NewRegistry()
	bn, err := NewBatchNorm(reg, "bn", 2)
	require.NoError(t, err)
	reg.Initialize(rand.New(rand.NewSource(1)))
	require.Len(t, reg.Trainable(), 1)
	require.Len(t, reg.All(), 3)

	x := mat.NewDense(4, 2, []float64{1, 10, 2, 20, 3, 30, 4, 40})
	out, err := bn.Forward(x, training)
	require.NoError(t, err)
	for j := 0; j < 2; j++ {
		col := mat.Col(nil, j, out)
		mean, sq := 0.0, 0.0
		for _, v := range col {
			mean += v
			sq += v * v
		}
		require.InDelta(t, 0, mean/4, 1e-12)
		// Variance is slightly below 1 because of epsilon.
		require.InDelta(t, 1, sq/4, 0.01)
	}
}

func TestBatchNormUpdateAndInference(t *testing.T) {
	reg := nn.NewRegistry()
	bn, err := NewBatchNorm(reg, "bn", 1)
	require.NoError(t, err)
	reg.Initialize(rand.New(rand.NewSource(1)))

	x := mat.NewDense(2, 1, []float64{4, 6})
	_, err = bn.Forward(x, training)
	require.NoError(t, err)
	// Moving statistics only change when the update op runs.
	require.Equal(t, 0.0, bn.MovingMean.Value.At(0, 0))

	reg.RunUpdateOps()
	require.InDelta(t, 0.001*5, bn.MovingMean.Value.At(0, 0), 1e-12)
	require.InDelta(t, 0.999+0.001*1, bn.MovingVar.Value.At(0, 0), 1e-12)

	// A second run without a training pass is a no-op.
	reg.RunUpdateOps()
	require.InDelta(t, 0.005, bn.MovingMean.Value.At(0, 0), 1e-12)

	out, err := bn.Forward(mat.NewDense(1, 1, []float64{5}), nn.Inference)
	require.NoError(t, err)
	want := (5 - 0.005) / math.Sqrt(1+0.001)
	require.InDelta(t, want, out.At(0, 0), 1e-12)
}

func TestBatchNormSingleRowStaysFinite(t *testing.T) {
	reg := nn.NewRegistry()
	bn, err := NewBatchNorm(reg, "bn", 3)
	require.NoError(t, err)
	reg.Initialize(rand.New(rand.NewSource(1)))
	out, err := bn.Forward(mat.NewDense(1, 3, []float64{1, 2, 3}), training)
	require.NoError(t, err)
	require.True(t, tensor.AllFinite(out))
	require.Equal(t, []float64{0, 0, 0}, out.RawRowView(0))
}

func TestBatchNormGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	reg := nn.NewRegistry()
	bn, err := NewBatchNorm(reg, "bn", 3)
	require.NoError(t, err)
	reg.Initialize(rng)
	bn.Beta.Value = mat.NewDense(1, 3, []float64{0.1, -0.2, 0.3})
	x := randDense(rng, 6, 3)

	checkGradients(t, bn, x, []*nn.Param{bn.Beta}, training)
	checkGradients(t, bn, x, []*nn.Param{bn.Beta}, nn.Inference)
}

func TestDropout(t *testing.T) {
	d := NewDropout(rand.New(rand.NewSource(3)))
	x := mat.NewDense(20, 20, nil)
	for i := 0; i < 20; i++ {
		for j := 0; j < 20; j++ {
			x.Set(i, j, 1)
		}
	}

	out, err := d.Forward(x, nn.Bindings{Training: true, KeepProb: 1})
	require.NoError(t, err)
	require.Same(t, x, out)

	out, err = d.Forward(x, nn.Bindings{Training: true, KeepProb: 0.5})
	require.NoError(t, err)
	kept := 0
	for _, v := range out.RawMatrix().Data {
		require.True(t, v == 0 || v == 2, "unexpected value %v", v)
		if v != 0 {
			kept++
		}
	}
	require.Greater(t, kept, 100)
	require.Less(t, kept, 300)

	g, err := d.Backward(x)
	require.NoError(t, err)
	require.Equal(t, out.RawMatrix().Data, g.RawMatrix().Data)

	_, err = d.Forward(x, nn.Bindings{KeepProb: 0})
	require.Error(t, err)
}

func TestHighwayIdentityWhenGateClosed(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	reg := nn.NewRegistry()
	hw, err := NewHighway(reg, 0, 5)
	require.NoError(t, err)
	reg.Initialize(rng)

	for j := 0; j < 5; j++ {
		hw.Transform.B.Value.Set(0, j, -1e9)
	}
	x := randDense(rng, 7, 5)
	y, err := hw.Gate(x)
	require.NoError(t, err)
	require.True(t, mat.Equal(x, y))
}

func TestHighwayParameterNames(t *testing.T) {
	reg := nn.NewRegistry()
	_, err := NewHighway(reg, 3, 4)
	require.NoError(t, err)
	var names []string
	for _, p := range reg.Trainable() {
		names = append(names, p.Name)
	}
	require.Equal(t, []string{"hw3_wt", "hw3_bt", "hw3_w", "hw3_b", "hw3_bn_beta"}, names)

	_, err = NewHighway(reg, 3, 4)
	require.True(t, errors.Is(err, nn.ErrDuplicateParam))
}

func TestHighwayGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	reg := nn.NewRegistry()
	hw, err := NewHighway(reg, 0, 4)
	require.NoError(t, err)
	reg.Initialize(rng)
	x := randDense(rng, 6, 4)

	checkGradients(t, hw, x, reg.Trainable(), training)
}

func TestHighwayRejectsWrongWidth(t *testing.T) {
	reg := nn.NewRegistry()
	hw, err := NewHighway(reg, 0, 4)
	require.NoError(t, err)
	_, err = hw.Forward(mat.NewDense(2, 3, nil), training)
	require.True(t, errors.Is(err, tensor.ErrShapeMismatch))
}
