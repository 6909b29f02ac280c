package lattice

import (
	"fmt"
	"math/rand"
)

// Field is a site-indexed scalar configuration on a periodic lattice.
// Data is stored flat in row-major order; Shape holds the per-dimension
// extents. The zero-valued field doubles as the identity correction.
type Field struct {
	Data  []float64
	Shape []int
}

// New creates a zero-initialized field with the given extents
func New(shape ...int) (Field, error) {
	if len(shape) == 0 {
		return Field{}, fmt.Errorf("field needs at least one dimension")
	}
	size := 1
	for d, extent := range shape {
		if extent < 1 {
			return Field{}, fmt.Errorf("dimension %d has non-positive extent %d", d, extent)
		}
		size *= extent
	}
	return Field{
		Data:  make([]float64, size),
		Shape: append([]int(nil), shape...),
	}, nil
}

// Of wraps existing data into a field after checking it matches the shape
func Of(data []float64, shape ...int) (Field, error) {
	f, err := New(shape...)
	if err != nil {
		return Field{}, err
	}
	if len(data) != len(f.Data) {
		return Field{}, fmt.Errorf("data length %d does not match shape size %d", len(data), len(f.Data))
	}
	copy(f.Data, data)
	return f, nil
}

// Hot creates a field with unit-normal entries drawn from rng
func Hot(rng *rand.Rand, shape ...int) (Field, error) {
	f, err := New(shape...)
	if err != nil {
		return Field{}, err
	}
	for i := range f.Data {
		f.Data[i] = rng.NormFloat64()
	}
	return f, nil
}

// Clone returns an independent deep copy
func (f Field) Clone() Field {
	return Field{
		Data:  append([]float64(nil), f.Data...),
		Shape: append([]int(nil), f.Shape...),
	}
}

// IsZero reports whether every site holds the identity value
func (f Field) IsZero() bool {
	for _, v := range f.Data {
		if v != 0 {
			return false
		}
	}
	return true
}

// Size returns the total number of sites
func (f Field) Size() int {
	return len(f.Data)
}

// Dims returns the number of lattice dimensions
func (f Field) Dims() int {
	return len(f.Shape)
}

// SameShape reports whether two fields share identical extents
func (f Field) SameShape(other Field) bool {
	if len(f.Shape) != len(other.Shape) {
		return false
	}
	for d := range f.Shape {
		if f.Shape[d] != other.Shape[d] {
			return false
		}
	}
	return true
}

// Zero resets every site to the identity value in place
func (f Field) Zero() {
	for i := range f.Data {
		f.Data[i] = 0
	}
}

// CopyFrom overwrites this field's sites with another's of the same shape
func (f Field) CopyFrom(other Field) error {
	if !f.SameShape(other) {
		return fmt.Errorf("shape mismatch: %v vs %v", f.Shape, other.Shape)
	}
	copy(f.Data, other.Data)
	return nil
}

// Mean returns the site average
func (f Field) Mean() float64 {
	if len(f.Data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range f.Data {
		sum += v
	}
	return sum / float64(len(f.Data))
}
