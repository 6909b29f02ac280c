package ports

import (
	"context"
	"math/rand"
)

// RNGPort provides seeded random number generation for deterministic runs
type RNGPort interface {
	// SeededStream creates a deterministic random number generator for a named operation
	SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error)

	// ChainStream creates a deterministic RNG stream for one chain of a sweep.
	// Chains must draw from disjoint streams so sweep points reproduce
	// independently of scheduling order.
	ChainStream(ctx context.Context, sweepID string, pointIndex int, baseSeed int64) (*rand.Rand, error)

	// ValidateSeed ensures the seed produces expected deterministic results
	ValidateSeed(ctx context.Context, name string, seed int64, expected []float64) error
}
