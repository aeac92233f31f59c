package ml

import "errors"

var (
	// ErrNotFitted is returned when a scaler, vectorizer or classifier is
	// used before training artifacts exist.
	ErrNotFitted = errors.New("model not fitted")

	// ErrDimensionMismatch is returned when an input vector does not match
	// the width fixed at fit time.
	ErrDimensionMismatch = errors.New("feature dimension mismatch")
)
