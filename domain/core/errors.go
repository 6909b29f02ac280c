package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Hierarchy construction errors
	ErrLevelMismatch   = errors.New("per-level parameter lengths differ")
	ErrEmptyHierarchy  = errors.New("hierarchy needs at least one level")
	ErrInvalidGamma    = errors.New("gamma must be at least 1")
	ErrIdleCoarseLevel = errors.New("coarse level with zero pre and post sweeps")
	ErrInvalidSweeps   = errors.New("sweep counts must be non-negative")
	ErrInvalidStep     = errors.New("integrator step parameters must be positive")

	// Coarsening errors
	ErrNotCoarsenable = errors.New("lattice extent cannot be halved")
	ErrShapeMismatch  = errors.New("field shape does not match lattice")

	// Not found errors
	ErrNotFound      = errors.New("resource not found")
	ErrRunNotFound   = fmt.Errorf("%w: run", ErrNotFound)
	ErrSweepNotFound = fmt.Errorf("%w: sweep", ErrNotFound)

	// Determinism errors
	ErrSeedMismatch = errors.New("seed mismatch")
	ErrHashMismatch = errors.New("hash mismatch")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

func NewLevelMismatchError(what string, got, want int) error {
	return fmt.Errorf("%w: %s has %d entries, want %d", ErrLevelMismatch, what, got, want)
}

func NewIdleCoarseLevelError(level int) error {
	return fmt.Errorf("%w: level %d", ErrIdleCoarseLevel, level)
}

func NewNotCoarsenableError(dim, extent int) error {
	return fmt.Errorf("%w: dimension %d has extent %d", ErrNotCoarsenable, dim, extent)
}

// Error checking helpers
func IsConstructionError(err error) bool {
	return errors.Is(err, ErrLevelMismatch) ||
		errors.Is(err, ErrEmptyHierarchy) ||
		errors.Is(err, ErrInvalidGamma) ||
		errors.Is(err, ErrIdleCoarseLevel) ||
		errors.Is(err, ErrInvalidSweeps) ||
		errors.Is(err, ErrInvalidStep)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsDeterminismError(err error) bool {
	return errors.Is(err, ErrSeedMismatch) ||
		errors.Is(err, ErrHashMismatch)
}
