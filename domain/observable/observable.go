package observable

import (
	"mlhmc/domain/lattice"
)

// Observable is a first-class named measurement over a configuration type.
// Dispatch through a plain closure keeps the export path decoupled from any
// specific model type.
type Observable[F any] struct {
	Name string
	Eval func(F) float64
}

// New creates a named observable from an evaluation closure
func New[F any](name string, eval func(F) float64) Observable[F] {
	return Observable[F]{Name: name, Eval: eval}
}

// Magnetization is the site average of the field
func Magnetization() Observable[lattice.Field] {
	return New("magnetization", func(f lattice.Field) float64 {
		return f.Mean()
	})
}

// MagnetizationSquared is the squared site average
func MagnetizationSquared() Observable[lattice.Field] {
	return New("magnetization_squared", func(f lattice.Field) float64 {
		m := f.Mean()
		return m * m
	})
}

// FieldSquared is the site average of the squared field
func FieldSquared() Observable[lattice.Field] {
	return New("field_squared", func(f lattice.Field) float64 {
		if f.Size() == 0 {
			return 0
		}
		sum := 0.0
		for _, v := range f.Data {
			sum += v * v
		}
		return sum / float64(f.Size())
	})
}

// Standard returns the model-independent lattice observables
func Standard() []Observable[lattice.Field] {
	return []Observable[lattice.Field]{
		Magnetization(),
		MagnetizationSquared(),
		FieldSquared(),
	}
}
