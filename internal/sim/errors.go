package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameter is returned before any integration starts when
	// the parameters or a species configuration are out of range.
	ErrInvalidParameter = errors.New("sim: invalid parameter")

	// ErrIntegrationFailure indicates the solver gave up on a species.
	ErrIntegrationFailure = errors.New("sim: integration failure")

	// ErrCancelled indicates the run's context ended before a species
	// finished.
	ErrCancelled = errors.New("sim: cancelled")
)

// SpeciesError attaches the failing species and solver time to an
// integration or cancellation failure.
type SpeciesError struct {
	Species string
	Time    float64
	Kind    error
	Err     error
}

func (e *SpeciesError) Error() string {
	return fmt.Sprintf("%v: species %q at t=%.4f: %v", e.Kind, e.Species, e.Time, e.Err)
}

func (e *SpeciesError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
