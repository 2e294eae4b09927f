package highway

import "math"

const (
	MaxLR      = 0.003
	MinLR      = 0.0001
	ConstantLR = 0.001
)

// Schedule is the learning rate as a function of the global step. With
// decay it falls exponentially from MaxLR and reaches MinLR after the
// number of steps a full run takes; without decay it is ConstantLR.
type Schedule struct {
	Decay bool
	Rate  float64
}

// NewSchedule computes the decay rate for a run of epochs over samples rows
// in batches of batchSize.
func NewSchedule(decay bool, epochs, samples, batchSize int) Schedule {
	if !decay {
		return Schedule{}
	}
	steps := float64(epochs) * float64(samples) / float64(batchSize)
	return Schedule{
		Decay: true,
		Rate:  math.Log(MinLR/MaxLR) / -steps,
	}
}

// At returns the learning rate for global step.
func (s Schedule) At(step int) float64 {
	if !s.Decay {
		return ConstantLR
	}
	return MaxLR * math.Exp(-s.Rate*float64(step))
}
