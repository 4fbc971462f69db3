package domain

import "errors"

var (
	// ErrInsufficientData is returned when a series is empty or shorter than
	// the lookback an operation needs.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidParameter is returned when a parameter set or configuration
	// value violates its constraints.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrMisalignedData is returned when series that must share timestamps do
	// not, or when timestamps are not strictly increasing.
	ErrMisalignedData = errors.New("misaligned data")

	// ErrNoValidCandidate is returned when an optimization could not score a
	// single candidate.
	ErrNoValidCandidate = errors.New("no valid candidate")

	// ErrNotFound is returned when a cache entry or saved result does not
	// exist.
	ErrNotFound = errors.New("not found")
)
