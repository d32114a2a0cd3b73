// Package errdefs holds the error conditions shared by the simulation packages.
// Callers match them with errors.Is; producers wrap them with context.
package errdefs

import "errors"

var (
	// ErrInvalidDiscretization is returned when the step count is not supported
	// by the selected transform or sampling scheme.
	ErrInvalidDiscretization = errors.New("invalid discretization")

	// ErrInvalidParameter is returned for model parameters or grids that violate
	// their invariants (H outside (0, 0.5), rho outside [-1, 1], mismatched lengths).
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNumericalDegeneracy is returned when a simulated quantity is not finite.
	ErrNumericalDegeneracy = errors.New("numerical degeneracy")
)
