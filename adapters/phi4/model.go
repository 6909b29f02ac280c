// Package phi4 implements a scalar φ⁴ field theory on a periodic lattice as
// the concrete model behind the multilevel hierarchy. Couplings are kept in
// coefficient form so deriving a coarser model is a pure rescaling, and each
// coarse model carries the restricted fine field as a fixed background, so its
// action is evaluated on background plus correction.
package phi4

import (
	"fmt"
	"math"

	"mlhmc/domain/core"
	"mlhmc/domain/lattice"
	"mlhmc/domain/observable"
	"mlhmc/ports"
)

// Couplings are the physical parameters of the theory on the finest lattice
type Couplings struct {
	M2     float64
	Lambda float64
	H      float64
}

// Model is one level's φ⁴ theory. The action in coefficient form is
//
//	S[φ] = Σ_x [ k·Σ_μ (φ(x+μ̂)−φ(x))² + m·φ(x)² + q·φ(x)⁴ − h·φ(x) ]
//
// with k = a^(d−2)/2, m = a^d·m²/2, q = a^d·λ/24, h = a^d·h over spacing a.
// On coarse levels the field argument is a correction δ and the action is
// evaluated at background+δ, the background being the restricted fine field.
type Model struct {
	shape   []int
	spacing float64
	scheme  ports.InterpolationScheme

	m2     float64
	lambda float64
	hField float64

	// coefficient-form couplings derived from spacing and physical couplings
	k, m, q, h float64

	background lattice.Field
	neighbors  lattice.NeighborTable
}

var _ ports.Model[lattice.Field] = (*Model)(nil)

// NewModel builds the finest-level model (spacing 1) over the given extents
func NewModel(shape []int, m2, lambda, h float64) (*Model, error) {
	background, err := lattice.New(shape...)
	if err != nil {
		return nil, fmt.Errorf("invalid lattice shape: %w", err)
	}
	m := &Model{
		shape:      append([]int(nil), shape...),
		spacing:    1,
		scheme:     ports.InterpolationConstant,
		m2:         m2,
		lambda:     lambda,
		hField:     h,
		background: background,
		neighbors:  lattice.BuildNeighborTable(shape),
	}
	m.recompute()
	return m, nil
}

// recompute refreshes the coefficient-form couplings from spacing and the
// physical parameters
func (m *Model) recompute() {
	d := float64(len(m.shape))
	ad := math.Pow(m.spacing, d)
	m.k = math.Pow(m.spacing, d-2) / 2
	m.m = ad * m.m2 / 2
	m.q = ad * m.lambda / 24
	m.h = ad * m.hField
}

// Shape returns a copy of the lattice extents
func (m *Model) Shape() []int {
	return append([]int(nil), m.shape...)
}

// Spacing returns the lattice spacing of this level
func (m *Model) Spacing() float64 {
	return m.spacing
}

// Params returns the physical couplings
func (m *Model) Params() Couplings {
	return Couplings{M2: m.m2, Lambda: m.lambda, H: m.hField}
}

// SetCouplings replaces the physical couplings. Coarser levels derived
// earlier keep their old values until PullAttributes runs.
func (m *Model) SetCouplings(c Couplings) {
	m.m2 = c.M2
	m.lambda = c.Lambda
	m.hField = c.H
	m.recompute()
}

// Attributes returns the model parameters for sink export
func (m *Model) Attributes() map[string]any {
	return map[string]any{
		"model":   "phi4",
		"shape":   append([]int(nil), m.shape...),
		"spacing": m.spacing,
		"m2":      m.m2,
		"lambda":  m.lambda,
		"h":       m.hField,
	}
}

// CopyModel returns an independent deep copy
func (m *Model) CopyModel() ports.Model[lattice.Field] {
	clone := *m
	clone.shape = append([]int(nil), m.shape...)
	clone.background = m.background.Clone()
	// the neighbor table is immutable once built and safe to share
	return &clone
}

// Coarser derives the next-coarser model: every extent halves, the spacing
// doubles, and the coefficient couplings rescale accordingly. The coarse
// background starts zero until Restrict installs a fine field.
func (m *Model) Coarser(scheme ports.InterpolationScheme) (ports.Model[lattice.Field], error) {
	coarseShape := make([]int, len(m.shape))
	for d, extent := range m.shape {
		if extent < 2 || extent%2 != 0 {
			return nil, core.NewNotCoarsenableError(d, extent)
		}
		coarseShape[d] = extent / 2
	}
	background, err := lattice.New(coarseShape...)
	if err != nil {
		return nil, err
	}
	coarse := &Model{
		shape:      coarseShape,
		spacing:    2 * m.spacing,
		scheme:     scheme,
		m2:         m.m2,
		lambda:     m.lambda,
		hField:     m.hField,
		background: background,
		neighbors:  lattice.BuildNeighborTable(coarseShape),
	}
	coarse.recompute()
	return coarse, nil
}

// EmptyField returns the zero field at this level's resolution, the identity
// correction
func (m *Model) EmptyField() lattice.Field {
	f, _ := lattice.New(m.shape...)
	return f
}

// Restrict installs the block average of a finer field as this model's
// background, so subsequent Action and Grad calls see background plus
// correction. Panics when the fine field is not exactly double this model's
// resolution.
func (m *Model) Restrict(fine lattice.Field) {
	m.checkFineShape(fine, "restrict")
	d := len(m.shape)
	corners := 1 << uint(d)
	fineCoords := make([]int, d)
	for site := range m.background.Data {
		coords := lattice.CoordsOf(site, m.shape)
		sum := 0.0
		for mask := 0; mask < corners; mask++ {
			for dim := 0; dim < d; dim++ {
				fineCoords[dim] = 2*coords[dim] + (mask>>uint(dim))&1
			}
			sum += fine.Data[lattice.IndexOf(fineCoords, fine.Shape)]
		}
		m.background.Data[site] = sum / float64(corners)
	}
}

// Background returns a copy of the currently restricted fine field
func (m *Model) Background() lattice.Field {
	return m.background.Clone()
}

// Interpolate prolongates a correction at this model's resolution onto a
// finer field in place. The constant scheme injects each coarse value into
// its 2^d children; the linear scheme averages the straddled coarse sites
// with periodic wrap. Panics on shape mismatch.
func (m *Model) Interpolate(coarse lattice.Field, fine lattice.Field) {
	m.checkOwnShape(coarse, "interpolate")
	m.checkFineShape(fine, "interpolate")
	d := len(m.shape)
	base := make([]int, d)
	corner := make([]int, d)
	for site := range fine.Data {
		coords := lattice.CoordsOf(site, fine.Shape)
		var oddDims []int
		for dim := 0; dim < d; dim++ {
			base[dim] = coords[dim] / 2
			if m.scheme == ports.InterpolationLinear && coords[dim]%2 == 1 {
				oddDims = append(oddDims, dim)
			}
		}
		if len(oddDims) == 0 {
			fine.Data[site] += coarse.Data[lattice.IndexOf(base, m.shape)]
			continue
		}
		// average the 2^len(oddDims) coarse corners straddled by this site
		sum := 0.0
		for mask := 0; mask < 1<<uint(len(oddDims)); mask++ {
			copy(corner, base)
			for bit, dim := range oddDims {
				corner[dim] = base[dim] + (mask>>uint(bit))&1
			}
			sum += coarse.Data[lattice.IndexOf(corner, m.shape)]
		}
		fine.Data[site] += sum / float64(int(1)<<uint(len(oddDims)))
	}
}

// PullAttributes adopts the physical couplings of the adjacent finer model
// and rebuilds this level's coefficients from its own spacing
func (m *Model) PullAttributes(finer ports.Model[lattice.Field]) {
	parent, ok := finer.(*Model)
	if !ok {
		panic(fmt.Sprintf("phi4: cannot pull attributes from %T", finer))
	}
	m.m2 = parent.m2
	m.lambda = parent.lambda
	m.hField = parent.hField
	m.recompute()
}

// Action evaluates S at background plus f. Panics on shape mismatch.
func (m *Model) Action(f lattice.Field) float64 {
	m.checkOwnShape(f, "action")
	phi := f.Data
	psi := m.background.Data
	dims := len(m.shape)
	s := 0.0
	for site, row := range m.neighbors {
		v := phi[site] + psi[site]
		for d := 0; d < dims; d++ {
			fwd := row[2*d]
			diff := phi[fwd] + psi[fwd] - v
			s += m.k * diff * diff
		}
		v2 := v * v
		s += m.m*v2 + m.q*v2*v2 - m.h*v
	}
	return s
}

// Grad writes the analytic gradient ∂S/∂f(x) at background plus f into out.
// Panics on shape mismatch.
func (m *Model) Grad(f lattice.Field, out lattice.Field) {
	m.checkOwnShape(f, "grad")
	m.checkOwnShape(out, "grad")
	phi := f.Data
	psi := m.background.Data
	for site, row := range m.neighbors {
		v := phi[site] + psi[site]
		lap := 0.0
		for _, n := range row {
			lap += phi[n] + psi[n] - v
		}
		out.Data[site] = -2*m.k*lap + 2*m.m*v + 4*m.q*v*v*v - m.h
	}
}

// EnergyObservable measures the action density per site
func (m *Model) EnergyObservable() observable.Observable[lattice.Field] {
	return observable.New("energy", func(f lattice.Field) float64 {
		return m.Action(f) / float64(f.Size())
	})
}

// EnergySquaredObservable measures the squared action density per site
func (m *Model) EnergySquaredObservable() observable.Observable[lattice.Field] {
	return observable.New("energy_squared", func(f lattice.Field) float64 {
		e := m.Action(f) / float64(f.Size())
		return e * e
	})
}

func (m *Model) checkOwnShape(f lattice.Field, op string) {
	if len(f.Shape) != len(m.shape) {
		panic(fmt.Sprintf("phi4: %s: field rank %d does not match lattice rank %d", op, len(f.Shape), len(m.shape)))
	}
	for d := range m.shape {
		if f.Shape[d] != m.shape[d] {
			panic(fmt.Sprintf("phi4: %s: field shape %v does not match lattice %v", op, f.Shape, m.shape))
		}
	}
}

func (m *Model) checkFineShape(f lattice.Field, op string) {
	if len(f.Shape) != len(m.shape) {
		panic(fmt.Sprintf("phi4: %s: field rank %d does not match lattice rank %d", op, len(f.Shape), len(m.shape)))
	}
	for d := range m.shape {
		if f.Shape[d] != 2*m.shape[d] {
			panic(fmt.Sprintf("phi4: %s: fine shape %v is not double the lattice %v", op, f.Shape, m.shape))
		}
	}
}
