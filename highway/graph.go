package highway

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"hwnet/nn"
	"hwnet/nn/layers"
	"hwnet/tensor"
	"hwnet/utils"

	"gonum.org/v1/gonum/mat"
)

// Feed binds the per-run placeholders. Y is only read by Evaluate and
// TrainStep, LR only by TrainStep. A zero KeepProb means 1.
type Feed struct {
	X        *mat.Dense
	Y        *mat.Dense
	KeepProb float64
	Training bool
	LR       float64
}

func (f Feed) bindings() nn.Bindings {
	kp := f.KeepProb
	if kp == 0 {
		kp = 1
	}
	return nn.Bindings{Training: f.Training, KeepProb: kp}
}

// Graph is the composed network:
//
//	X -> fc -> bn -> relu -> dropout -> highway_0 .. highway_{N-1} -> logits
//
// together with its loss, accuracy and optimizer.
type Graph struct {
	cfg    Config
	reg    *nn.Registry
	net    *nn.Sequential
	blocks []*layers.Highway
	logits *layers.Linear
	opt    *nn.Adam
	rng    *rand.Rand

	// width of the last layer added while building
	width int
	stats utils.TimingStats
}

// Build composes the graph for cfg. rng drives dropout masks. Variables are
// registered but left zeroed until a session initializes them. A malformed
// config returns tensor.ErrShapeMismatch.
func Build(cfg Config, rng *rand.Rand) (*Graph, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &Graph{
		cfg:   cfg,
		reg:   nn.NewRegistry(),
		net:   &nn.Sequential{},
		opt:   nn.NewAdam(),
		rng:   rng,
		width: cfg.InputDim,
	}
	if err := g.addFC(cfg.HighwayWidth); err != nil {
		return nil, err
	}
	for n := 0; n < cfg.HighwayBlocks; n++ {
		if err := g.addHighway(n); err != nil {
			return nil, err
		}
	}
	if err := g.addOutput(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) addFC(outDim int) error {
	fc, err := layers.NewLinear(g.reg, "fc_w", "fc_b", g.width, outDim)
	if err != nil {
		return err
	}
	bn, err := layers.NewBatchNorm(g.reg, "fc_bn", outDim)
	if err != nil {
		return err
	}
	relu, err := layers.NewActivation("relu")
	if err != nil {
		return err
	}
	g.net.Layers = append(g.net.Layers, fc, bn, relu, layers.NewDropout(g.rng))
	g.width = outDim
	return nil
}

func (g *Graph) addHighway(n int) error {
	if g.width != g.cfg.HighwayWidth {
		return fmt.Errorf("highway block %d: input width %d, block width %d: %w",
			n, g.width, g.cfg.HighwayWidth, tensor.ErrShapeMismatch)
	}
	hw, err := layers.NewHighway(g.reg, n, g.cfg.HighwayWidth)
	if err != nil {
		return err
	}
	g.net.Layers = append(g.net.Layers, hw)
	g.blocks = append(g.blocks, hw)
	g.width = hw.Width()
	return nil
}

func (g *Graph) addOutput() error {
	out, err := layers.NewLinear(g.reg, "logits_w", "logits_b", g.width, g.cfg.OutputDim)
	if err != nil {
		return err
	}
	g.net.Layers = append(g.net.Layers, out)
	g.logits = out
	g.width = out.OutDim()
	return nil
}

func (g *Graph) Config() Config { return g.cfg }

// Registry returns the graph's variables.
func (g *Graph) Registry() *nn.Registry { return g.reg }

// Blocks returns the highway blocks in stacking order.
func (g *Graph) Blocks() []*layers.Highway { return g.blocks }

// Output returns the logits projection.
func (g *Graph) Output() *layers.Linear { return g.logits }

// ResetOptimizer clears the Adam moments and step counter.
func (g *Graph) ResetOptimizer() { g.opt.Reset() }

// OptimizerSteps is the number of Adam steps since the last reset.
func (g *Graph) OptimizerSteps() int { return g.opt.Steps() }

func (g *Graph) Stats() utils.TimingStats { return g.stats }

func (g *Graph) checkFeed(f Feed, labels bool) error {
	if err := tensor.CheckShape(f.X, -1, g.cfg.InputDim); err != nil {
		return fmt.Errorf("feature batch: %w", err)
	}
	if !labels {
		return nil
	}
	rows, _ := f.X.Dims()
	if err := tensor.CheckShape(f.Y, rows, g.cfg.OutputDim); err != nil {
		return fmt.Errorf("label batch: %w", err)
	}
	return nil
}

// Logits runs a forward pass and returns the output logits.
func (g *Graph) Logits(f Feed) (*mat.Dense, error) {
	if err := g.checkFeed(f, false); err != nil {
		return nil, err
	}
	if !tensor.AllFinite(f.X) {
		return nil, fmt.Errorf("feature batch: %w", ErrNonFinite)
	}
	start := time.Now()
	logits, err := g.net.Forward(f.X, f.bindings())
	g.stats.ForwardPassTime += time.Since(start)
	if err != nil {
		return nil, err
	}
	if !tensor.AllFinite(logits) {
		return nil, fmt.Errorf("logits: %w", ErrNonFinite)
	}
	return logits, nil
}

// Evaluate returns the mean softmax cross-entropy and the accuracy of the
// batch without touching any variable.
func (g *Graph) Evaluate(f Feed) (loss, acc float64, err error) {
	if err := g.checkFeed(f, true); err != nil {
		return 0, 0, err
	}
	logits, err := g.Logits(f)
	if err != nil {
		return 0, 0, err
	}
	loss, _, err = nn.SoftmaxCrossEntropy(logits, f.Y)
	if err != nil {
		return 0, 0, err
	}
	acc, err = nn.Accuracy(logits, f.Y)
	return loss, acc, err
}

// TrainStep runs one optimization step: forward, loss, batch-norm update
// ops, backward, then Adam with learning rate f.LR. The returned loss and
// accuracy are those of the forward pass before the update.
func (g *Graph) TrainStep(f Feed) (loss, acc float64, err error) {
	if err := g.checkFeed(f, true); err != nil {
		return 0, 0, err
	}
	if f.LR <= 0 || math.IsNaN(f.LR) || math.IsInf(f.LR, 0) {
		return 0, 0, fmt.Errorf("learning rate %v: %w", f.LR, ErrInvalidOptions)
	}
	logits, err := g.Logits(f)
	if err != nil {
		return 0, 0, err
	}

	start := time.Now()
	loss, grad, err := nn.SoftmaxCrossEntropy(logits, f.Y)
	if err != nil {
		return 0, 0, err
	}
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return 0, 0, fmt.Errorf("loss: %w", ErrNonFinite)
	}
	acc, err = nn.Accuracy(logits, f.Y)
	if err != nil {
		return 0, 0, err
	}
	g.stats.LossComputationTime += time.Since(start)

	start = time.Now()
	g.reg.RunUpdateOps()
	g.stats.UpdateTime += time.Since(start)

	start = time.Now()
	_, err = g.net.Backward(grad)
	g.stats.BackwardPassTime += time.Since(start)
	if err != nil {
		return 0, 0, err
	}

	start = time.Now()
	err = g.opt.Step(g.reg.Trainable(), f.LR)
	g.stats.UpdateTime += time.Since(start)
	if err != nil {
		return 0, 0, err
	}
	g.stats.Steps++
	return loss, acc, nil
}
