package ports

import "fmt"

// InterpolationScheme selects how coarser models are derived from finer ones
// and how corrections move between adjacent levels. It is chosen once at
// hierarchy construction and applied uniformly.
type InterpolationScheme int

const (
	// InterpolationConstant injects each coarse value into all of its fine children
	InterpolationConstant InterpolationScheme = iota

	// InterpolationLinear distributes coarse values with a periodic linear stencil
	InterpolationLinear
)

// String returns the scheme's wire name
func (s InterpolationScheme) String() string {
	switch s {
	case InterpolationConstant:
		return "constant"
	case InterpolationLinear:
		return "linear"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ParseInterpolationScheme converts a wire name back into a scheme
func ParseInterpolationScheme(s string) (InterpolationScheme, error) {
	switch s {
	case "constant":
		return InterpolationConstant, nil
	case "linear":
		return InterpolationLinear, nil
	default:
		return 0, fmt.Errorf("unknown interpolation scheme %q", s)
	}
}

// Model is the per-level model collaborator. A hierarchy owns exactly one
// instance per level; coarser instances are derived strictly from their
// immediate finer parent.
type Model[F Field[F]] interface {
	// CopyModel returns an independent deep copy of this model
	CopyModel() Model[F]

	// Coarser derives the next-coarser counterpart of this model under the
	// given scheme
	Coarser(scheme InterpolationScheme) (Model[F], error)

	// EmptyField returns the identity field at this model's resolution
	EmptyField() F

	// Restrict pushes a finer-level field into this model's internal state,
	// conditioning its action on the current fine configuration
	Restrict(fine F)

	// Interpolate applies a coarse correction onto a fine field in place
	Interpolate(coarse F, fine F)

	// PullAttributes recomputes this model's attributes from the adjacent
	// finer level's model
	PullAttributes(finer Model[F])
}
