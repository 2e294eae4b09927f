package highway

import (
	"fmt"

	"hwnet/tensor"
)

// Config fixes every shape of the network. It is immutable once a
// classifier has been built from it.
type Config struct {
	InputDim      int
	OutputDim     int
	HighwayBlocks int
	HighwayWidth  int
}

// DefaultConfig returns a config with 10 highway blocks of width 64.
func DefaultConfig(inputDim, outputDim int) Config {
	return Config{
		InputDim:      inputDim,
		OutputDim:     outputDim,
		HighwayBlocks: 10,
		HighwayWidth:  64,
	}
}

// Validate reports non-positive dimensions or a negative block count.
func (c Config) Validate() error {
	switch {
	case c.InputDim <= 0:
		return fmt.Errorf("input dim %d: %w", c.InputDim, tensor.ErrShapeMismatch)
	case c.OutputDim <= 0:
		return fmt.Errorf("output dim %d: %w", c.OutputDim, tensor.ErrShapeMismatch)
	case c.HighwayBlocks < 0:
		return fmt.Errorf("highway blocks %d: %w", c.HighwayBlocks, tensor.ErrShapeMismatch)
	case c.HighwayWidth <= 0:
		return fmt.Errorf("highway width %d: %w", c.HighwayWidth, tensor.ErrShapeMismatch)
	}
	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("in=%d out=%d blocks=%d width=%d", c.InputDim, c.OutputDim, c.HighwayBlocks, c.HighwayWidth)
}
