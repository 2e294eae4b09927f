package highway

import "errors"

var (
	// ErrEmptyInput is returned for zero-row inputs to Fit or Predict.
	ErrEmptyInput = errors.New("empty input")
	// ErrNonFinite is returned when a pass produces NaN or Inf.
	ErrNonFinite = errors.New("non-finite value in computation")
	// ErrInvalidOptions is returned for unusable fit or predict options.
	ErrInvalidOptions = errors.New("invalid options")
)
