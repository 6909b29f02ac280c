package ports

// Field is the capability constraint every configuration type must satisfy
// to flow through a sampling hierarchy. The constraint is self-referential:
// a concrete type F implements Field[F].
type Field[F any] interface {
	// Clone returns an independent deep copy of the configuration
	Clone() F

	// IsZero reports whether the configuration equals the model's
	// designated identity value (an empty correction)
	IsZero() bool
}
