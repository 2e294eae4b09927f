package highway

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// logEvery is the number of local steps between step log lines.
const logEvery = 100

// Dataset pairs a feature matrix with one-hot labels, one sample per row.
type Dataset struct {
	X, Y *mat.Dense
}

// FitOptions controls a training run.
type FitOptions struct {
	// Validation, when set, is evaluated after every epoch.
	Validation *Dataset
	Epochs     int
	BatchSize  int
	// Decay enables the exponential learning-rate schedule.
	Decay    bool
	KeepProb float64
}

// DefaultFitOptions returns 10 epochs of 128-sample batches with decay on.
func DefaultFitOptions() FitOptions {
	return FitOptions{Epochs: 10, BatchSize: 128, Decay: true, KeepProb: 1.0}
}

func (o FitOptions) Validate() error {
	if o.Epochs <= 0 {
		return fmt.Errorf("epochs %d: %w", o.Epochs, ErrInvalidOptions)
	}
	if o.BatchSize <= 0 {
		return fmt.Errorf("batch size %d: %w", o.BatchSize, ErrInvalidOptions)
	}
	if o.KeepProb <= 0 || o.KeepProb > 1 {
		return fmt.Errorf("keep probability %v: %w", o.KeepProb, ErrInvalidOptions)
	}
	return nil
}

// Epoch is one training-log entry. Loss and Acc come from the epoch's last
// training batch; LR is the last learning rate used.
type Epoch struct {
	Index         int
	Loss          float64
	Acc           float64
	ValLoss       float64
	ValAcc        float64
	HasValidation bool
	LR            float64
}

// TrainingLog records one Epoch entry per completed epoch.
type TrainingLog struct {
	Epochs []Epoch
}

// Last returns the final epoch entry.
func (l *TrainingLog) Last() (Epoch, bool) {
	if l == nil || len(l.Epochs) == 0 {
		return Epoch{}, false
	}
	return l.Epochs[len(l.Epochs)-1], true
}

func isEmpty(m *mat.Dense) bool {
	return m == nil || m.IsEmpty()
}

// Fit re-initializes every variable and trains on x, y for opts.Epochs
// passes. The global step, and with it the learning rate, runs across
// epochs. A failing step aborts the run.
func (c *Classifier) Fit(x, y *mat.Dense, opts FitOptions) (*TrainingLog, error) {
	if err := c.sess.Err(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if isEmpty(x) || isEmpty(y) {
		return nil, fmt.Errorf("training set: %w", ErrEmptyInput)
	}
	if err := c.graph.checkFeed(Feed{X: x, Y: y}, true); err != nil {
		return nil, fmt.Errorf("training set: %w", err)
	}
	val := opts.Validation
	if val != nil {
		if isEmpty(val.X) || isEmpty(val.Y) {
			return nil, fmt.Errorf("validation set: %w", ErrEmptyInput)
		}
		if err := c.graph.checkFeed(Feed{X: val.X, Y: val.Y}, true); err != nil {
			return nil, fmt.Errorf("validation set: %w", err)
		}
	}

	start := time.Now()
	defer func() { c.graph.stats.TotalTime += time.Since(start) }()

	samples, _ := x.Dims()
	if val == nil {
		c.sess.Logf("Train %d samples", samples)
	} else {
		valRows, _ := val.X.Dims()
		c.sess.Logf("Train %d samples | Test %d samples", samples, valRows)
	}

	if err := c.sess.Initialize(c.graph.Registry()); err != nil {
		return nil, err
	}
	c.graph.ResetOptimizer()

	sched := NewSchedule(opts.Decay, opts.Epochs, samples, opts.BatchSize)
	stepsPerEpoch := samples / opts.BatchSize
	batches := NewBatchIter(x, y, opts.BatchSize)
	log := &TrainingLog{}
	globalStep := 0

	for epoch := 1; epoch <= opts.Epochs; epoch++ {
		var loss, acc, lr float64
		localStep := 1
		batches.Reset()
		for {
			xb, yb, ok := batches.Next()
			if !ok {
				break
			}
			lr = sched.At(globalStep)
			var err error
			loss, acc, err = c.graph.TrainStep(Feed{
				X:        xb,
				Y:        yb,
				KeepProb: opts.KeepProb,
				Training: true,
				LR:       lr,
			})
			if err != nil {
				return log, fmt.Errorf("epoch %d step %d: %w", epoch, localStep, err)
			}
			localStep++
			globalStep++
			if localStep%logEvery == 0 {
				c.sess.Logf("Epoch %d/%d | Step %d/%d | train_loss: %.4f | train_acc: %.4f | lr: %.4f",
					epoch, opts.Epochs, localStep, stepsPerEpoch, loss, acc, lr)
			}
		}

		entry := Epoch{Index: epoch, Loss: loss, Acc: acc, LR: lr}
		if val != nil {
			vl, va, err := c.evaluate(val, opts.BatchSize)
			if err != nil {
				return log, fmt.Errorf("epoch %d validation: %w", epoch, err)
			}
			entry.ValLoss, entry.ValAcc, entry.HasValidation = vl, va, true
			c.sess.Logf("Epoch %d/%d | train_loss: %.4f | train_acc: %.4f | test_loss: %.4f | test_acc: %.4f | lr: %.4f",
				epoch, opts.Epochs, loss, acc, vl, va, lr)
		} else {
			c.sess.Logf("Epoch %d/%d | train_loss: %.4f | train_acc: %.4f | lr: %.4f",
				epoch, opts.Epochs, loss, acc, lr)
		}
		log.Epochs = append(log.Epochs, entry)
	}
	return log, nil
}

// evaluate averages loss and accuracy over the batches of d, each batch
// weighted equally.
func (c *Classifier) evaluate(d *Dataset, batchSize int) (loss, acc float64, err error) {
	start := time.Now()
	defer func() { c.graph.stats.EvaluationTime += time.Since(start) }()

	it := NewBatchIter(d.X, d.Y, batchSize)
	losses := make([]float64, 0, it.Len())
	accs := make([]float64, 0, it.Len())
	for {
		xb, yb, ok := it.Next()
		if !ok {
			break
		}
		l, a, err := c.graph.Evaluate(Feed{X: xb, Y: yb, KeepProb: 1.0})
		if err != nil {
			return 0, 0, err
		}
		losses = append(losses, l)
		accs = append(accs, a)
	}
	return stat.Mean(losses, nil), stat.Mean(accs, nil), nil
}
