package nn

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"hwnet/tensor"

	"gonum.org/v1/gonum/mat"
)

// BiasInit is the constant every bias created by Registry.Bias starts from.
const BiasInit = 0.01

// ErrDuplicateParam is returned when a name is registered twice.
var ErrDuplicateParam = errors.New("duplicate parameter name")

// Param is a named variable. Matrices are stored rows×cols; vectors are
// stored as a single 1×n row.
type Param struct {
	Name      string
	Value     *mat.Dense
	Grad      *mat.Dense
	Trainable bool

	init Initializer
}

// Initializer fills a freshly registered (or re-initialized) variable.
type Initializer interface {
	Fill(dst *mat.Dense, rng *rand.Rand)
}

// FanMode selects which fan the variance-scaling initializer divides by.
type FanMode int

const (
	FanIn FanMode = iota
	FanOut
	FanAvg
)

// VarianceScaling draws from a normal distribution truncated at two standard
// deviations, with stddev = sqrt(1.3 * Factor / n) where n is the selected fan.
type VarianceScaling struct {
	Factor float64
	Mode   FanMode
}

// DefaultWeightInit is He-style scaling on the fan-in.
var DefaultWeightInit = VarianceScaling{Factor: 2.0, Mode: FanIn}

func (v VarianceScaling) Fill(dst *mat.Dense, rng *rand.Rand) {
	r, c := dst.Dims()
	fanIn, fanOut := float64(r), float64(c)
	n := fanIn
	switch v.Mode {
	case FanOut:
		n = fanOut
	case FanAvg:
		n = (fanIn + fanOut) / 2
	}
	// 1.3 corrects for the variance lost to truncation.
	stddev := math.Sqrt(1.3 * v.Factor / n)
	for i := 0; i < r; i++ {
		row := dst.RawRowView(i)
		for j := range row {
			row[j] = truncatedNormal(rng) * stddev
		}
	}
}

func truncatedNormal(rng *rand.Rand) float64 {
	for {
		x := rng.NormFloat64()
		if math.Abs(x) <= 2 {
			return x
		}
	}
}

// Constant fills every element with Value.
type Constant struct {
	Value float64
}

func (c Constant) Fill(dst *mat.Dense, _ *rand.Rand) {
	r, _ := dst.Dims()
	for i := 0; i < r; i++ {
		row := dst.RawRowView(i)
		for j := range row {
			row[j] = c.Value
		}
	}
}

// UpdateOp is a side effect that must run once per optimizer step, before
// the gradient update (batch-norm moving averages).
type UpdateOp interface {
	ApplyUpdate()
}

// Registry is the parameter factory and the set of variables owned by one
// graph. Names are only used to reject collisions; layers keep the returned
// *Param handles.
type Registry struct {
	names   map[string]struct{}
	params  []*Param
	updates []UpdateOp
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// Weight registers a trainable 2-D weight with variance-scaling init.
func (r *Registry) Weight(name string, shape []int) (*Param, error) {
	if len(shape) != 2 {
		return nil, fmt.Errorf("weight %q: want 2-D shape, got %v: %w", name, shape, tensor.ErrShapeMismatch)
	}
	return r.Param(name, shape, DefaultWeightInit)
}

// Bias registers a trainable 1-D bias initialized to BiasInit.
func (r *Registry) Bias(name string, shape []int) (*Param, error) {
	if len(shape) != 1 {
		return nil, fmt.Errorf("bias %q: want 1-D shape, got %v: %w", name, shape, tensor.ErrShapeMismatch)
	}
	return r.Param(name, shape, Constant{Value: BiasInit})
}

// Param registers a trainable variable with an arbitrary initializer.
func (r *Registry) Param(name string, shape []int, init Initializer) (*Param, error) {
	return r.register(name, shape, init, true)
}

// Variable registers a non-trainable variable. It is reset by Initialize but
// never touched by an optimizer.
func (r *Registry) Variable(name string, shape []int, init Initializer) (*Param, error) {
	return r.register(name, shape, init, false)
}

func (r *Registry) register(name string, shape []int, init Initializer, trainable bool) (*Param, error) {
	if name == "" {
		return nil, fmt.Errorf("parameter name must not be empty")
	}
	if _, dup := r.names[name]; dup {
		return nil, fmt.Errorf("parameter %q: %w", name, ErrDuplicateParam)
	}
	rows, cols, err := matrixDims(shape)
	if err != nil {
		return nil, fmt.Errorf("parameter %q: %w", name, err)
	}
	if init == nil {
		init = Constant{}
	}
	p := &Param{
		Name:      name,
		Value:     mat.NewDense(rows, cols, nil),
		Trainable: trainable,
		init:      init,
	}
	r.names[name] = struct{}{}
	r.params = append(r.params, p)
	return p, nil
}

func matrixDims(shape []int) (int, int, error) {
	for _, d := range shape {
		if d <= 0 {
			return 0, 0, fmt.Errorf("non-positive dimension in %v: %w", shape, tensor.ErrShapeMismatch)
		}
	}
	switch len(shape) {
	case 1:
		return 1, shape[0], nil
	case 2:
		return shape[0], shape[1], nil
	}
	return 0, 0, fmt.Errorf("unsupported rank %d: %w", len(shape), tensor.ErrShapeMismatch)
}

// AddUpdateOp appends op to the ops run by RunUpdateOps.
func (r *Registry) AddUpdateOp(op UpdateOp) {
	r.updates = append(r.updates, op)
}

// RunUpdateOps applies every registered update op in registration order.
func (r *Registry) RunUpdateOps() {
	for _, op := range r.updates {
		op.ApplyUpdate()
	}
}

// Initialize (re)applies every variable's initializer and clears gradients.
func (r *Registry) Initialize(rng *rand.Rand) {
	for _, p := range r.params {
		p.init.Fill(p.Value, rng)
		p.Grad = nil
	}
}

// Trainable returns the trainable parameters in registration order.
func (r *Registry) Trainable() []*Param {
	out := make([]*Param, 0, len(r.params))
	for _, p := range r.params {
		if p.Trainable {
			out = append(out, p)
		}
	}
	return out
}

// All returns every registered variable in registration order.
func (r *Registry) All() []*Param {
	return append([]*Param(nil), r.params...)
}

// NumElements counts the scalar entries of the trainable parameters.
func (r *Registry) NumElements() int {
	n := 0
	for _, p := range r.Trainable() {
		rows, cols := p.Value.Dims()
		n += rows * cols
	}
	return n
}
