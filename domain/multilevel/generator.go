// Package multilevel implements the multilevel Hybrid Monte Carlo
// orchestration: a hierarchy of models from finest to coarsest, a dedicated
// sampler per level, and a recursive correction cycle that interleaves
// pre/post sweeps with coarse-level sampling.
package multilevel

import (
	"fmt"

	"mlhmc/domain/core"
	"mlhmc/domain/observable"
	"mlhmc/ports"
)

// DefaultThermalization is the burn-in cycle count used when callers pass
// no explicit value.
const DefaultThermalization = 10

// level0Namespace is the sink namespace the finest level exports into.
const level0Namespace = "level0"

// Params fixes the cycle shape of a hierarchy. All per-level slices must have
// equal length L; level 0 is finest, level L-1 coarsest.
type Params struct {
	// NuPre holds the sweep counts run before descending from each level
	NuPre []int

	// NuPost holds the sweep counts run after the coarse correction returns
	NuPost []int

	// Gamma is the repetition factor of the coarse recursion: 1 yields a
	// V-cycle, larger values W-style cycles
	Gamma int

	// Scheme selects the interpolation used to derive and couple levels
	Scheme ports.InterpolationScheme

	// Steps holds the integrator step count per level, passed through to
	// the samplers uninterpreted
	Steps []int

	// StepSizes holds the integrator step size per level
	StepSizes []float64
}

// Levels returns the hierarchy depth L
func (p Params) Levels() int {
	return len(p.NuPre)
}

func (p Params) validate() error {
	L := len(p.NuPre)
	if L == 0 {
		return core.ErrEmptyHierarchy
	}
	if len(p.NuPost) != L {
		return core.NewLevelMismatchError("nu_post", len(p.NuPost), L)
	}
	if len(p.Steps) != L {
		return core.NewLevelMismatchError("steps", len(p.Steps), L)
	}
	if len(p.StepSizes) != L {
		return core.NewLevelMismatchError("step_sizes", len(p.StepSizes), L)
	}
	if p.Gamma < 1 {
		return fmt.Errorf("%w: got %d", core.ErrInvalidGamma, p.Gamma)
	}
	for i := 0; i < L; i++ {
		if p.NuPre[i] < 0 || p.NuPost[i] < 0 {
			return fmt.Errorf("%w: level %d", core.ErrInvalidSweeps, i)
		}
		if p.Steps[i] < 1 || p.StepSizes[i] <= 0 {
			return fmt.Errorf("%w: level %d", core.ErrInvalidStep, i)
		}
	}
	// A coarse level doing no sweeps at all contributes nothing but cost.
	for i := 1; i < L; i++ {
		if p.NuPre[i]+p.NuPost[i] == 0 {
			return core.NewIdleCoarseLevelError(i)
		}
	}
	return nil
}

func (p Params) clone() Params {
	return Params{
		NuPre:     append([]int(nil), p.NuPre...),
		NuPost:    append([]int(nil), p.NuPost...),
		Gamma:     p.Gamma,
		Scheme:    p.Scheme,
		Steps:     append([]int(nil), p.Steps...),
		StepSizes: append([]float64(nil), p.StepSizes...),
	}
}

// Generator owns a fixed hierarchy of models and samplers and drives the
// multilevel sampling cycle over it. It is not safe for concurrent use; the
// whole hierarchy shares one random source and correctness depends on
// strictly sequential draws.
type Generator[F ports.Field[F]] struct {
	params Params

	// models[0] is an independent copy of the construction-time base model;
	// models[i] derives from models[i-1]. Owned exclusively by the generator.
	models []ports.Model[F]

	// samplers[i] is bound to models[i] for the generator's lifetime
	samplers []ports.Sampler[F]

	// accepted accumulates raw acceptance measures per level during one
	// generation run; rates holds the normalized result of the last run
	accepted []float64
	rates    []float64

	// sampled counts top-level cycles since the accumulators were cleared,
	// so extension calls normalize rates over the whole measurement phase
	sampled int
}

// New builds a hierarchy of p.Levels() models and samplers on top of base.
// The finest model is a deep copy of base, so later caller-side mutation does
// not alias generator state; every coarser model derives from its immediate
// finer parent under p.Scheme. Invalid parameters or a failing factory abort
// construction.
func New[F ports.Field[F]](base ports.Model[F], p Params, factory ports.SamplerFactory[F]) (*Generator[F], error) {
	if base == nil {
		return nil, fmt.Errorf("base model is required")
	}
	if factory == nil {
		return nil, fmt.Errorf("sampler factory is required")
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("invalid hierarchy parameters: %w", err)
	}

	L := p.Levels()
	g := &Generator[F]{
		params:   p.clone(),
		models:   make([]ports.Model[F], 0, L),
		samplers: make([]ports.Sampler[F], 0, L),
		accepted: make([]float64, L),
		rates:    make([]float64, L),
	}

	g.models = append(g.models, base.CopyModel())
	s, err := factory(0, g.models[0], p.Steps[0], p.StepSizes[0])
	if err != nil {
		return nil, fmt.Errorf("build sampler for level 0: %w", err)
	}
	g.samplers = append(g.samplers, s)

	for i := 1; i < L; i++ {
		coarser, err := g.models[i-1].Coarser(p.Scheme)
		if err != nil {
			return nil, fmt.Errorf("derive model for level %d: %w", i, err)
		}
		g.models = append(g.models, coarser)

		s, err := factory(i, g.models[i], p.Steps[i], p.StepSizes[i])
		if err != nil {
			return nil, fmt.Errorf("build sampler for level %d: %w", i, err)
		}
		g.samplers = append(g.samplers, s)
	}

	return g, nil
}

// GenerateEnsembles burns in with therm top-level cycles, clears the finest
// level's recorded history and all acceptance accumulators, then runs one
// top-level cycle per requested sample. It returns the per-level acceptance
// rates, each normalized by samples * (NuPre[i]+NuPost[i]) * Gamma^i — the
// total number of proposal sweeps level i performed during measurement.
func (g *Generator[F]) GenerateEnsembles(start F, samples, therm int) ([]float64, error) {
	if samples < 0 {
		return nil, fmt.Errorf("sample count must be non-negative, got %d", samples)
	}
	if therm < 0 {
		return nil, fmt.Errorf("thermalization count must be non-negative, got %d", therm)
	}

	phi := start.Clone()
	for i := 0; i < therm; i++ {
		phi = g.levelRecursion(0, phi)
	}

	g.samplers[0].ClearHistory()
	for i := range g.accepted {
		g.accepted[i] = 0
	}
	g.sampled = 0

	return g.extend(phi, samples), nil
}

// ExtendEnsembles runs additional top-level cycles without clearing recorded
// history or acceptance accumulators, continuing the measurement phase of an
// earlier GenerateEnsembles call. Returned rates are cumulative over every
// cycle since the last clear. Callers resume the chain by passing the finest
// level's last configuration as start.
func (g *Generator[F]) ExtendEnsembles(start F, samples int) ([]float64, error) {
	if samples < 0 {
		return nil, fmt.Errorf("sample count must be non-negative, got %d", samples)
	}
	return g.extend(start.Clone(), samples), nil
}

func (g *Generator[F]) extend(phi F, samples int) []float64 {
	for i := 0; i < samples; i++ {
		phi = g.levelRecursion(0, phi)
	}
	g.sampled += samples

	for i := range g.rates {
		proposals := float64(g.sampled*(g.params.NuPre[i]+g.params.NuPost[i])) * float64(intPow(g.params.Gamma, i))
		if proposals > 0 {
			g.rates[i] = g.accepted[i] / proposals
		} else {
			g.rates[i] = 0
		}
	}
	return append([]float64(nil), g.rates...)
}

// levelRecursion performs one correction cycle rooted at level: pre-sweeps,
// gamma recursive visits to the coarser level with each repetition's result
// feeding the next, interpolation of the composed correction, post-sweeps.
// Only the finest level records into persistent history.
func (g *Generator[F]) levelRecursion(level int, phi F) F {
	current := phi.Clone()
	record := level == 0

	g.accepted[level] += g.samplers[level].Run(current, g.params.NuPre[level], 0, record)
	current = g.samplers[level].LastConfiguration(current)

	if level < g.params.Levels()-1 {
		next := g.models[level+1]
		next.Restrict(current)
		corrections := next.EmptyField()
		for i := 0; i < g.params.Gamma; i++ {
			corrections = g.levelRecursion(level+1, corrections)
		}
		next.Interpolate(corrections, current)
	}

	g.accepted[level] += g.samplers[level].Run(current, g.params.NuPost[level], 0, record)
	return g.samplers[level].LastConfiguration(current)
}

// PropagateUpdate walks the hierarchy strictly fine to coarse, letting each
// model pull attribute changes from its finer neighbor. Callers invoke it
// after changing the finest model's defining parameters outside of sampling.
func (g *Generator[F]) PropagateUpdate() {
	for i := 1; i < len(g.models); i++ {
		g.models[i].PullAttributes(g.models[i-1])
	}
}

// Export writes the cycle-shape attributes and the finest level's sampling
// output into the sink's level0 namespace, creating it if needed.
func (g *Generator[F]) Export(sink ports.Sink) error {
	ns, err := sink.Namespace(level0Namespace)
	if err != nil {
		return fmt.Errorf("open %s namespace: %w", level0Namespace, err)
	}
	attrs := map[string]any{
		"levels":        g.params.Levels(),
		"gamma":         g.params.Gamma,
		"interpolation": g.params.Scheme.String(),
		"nu_pre":        append([]int(nil), g.params.NuPre...),
		"nu_post":       append([]int(nil), g.params.NuPost...),
		"steps":         append([]int(nil), g.params.Steps...),
		"step_sizes":    append([]float64(nil), g.params.StepSizes...),
	}
	if err := ns.WriteAttrs(attrs); err != nil {
		return fmt.Errorf("write cycle attributes: %w", err)
	}
	return g.samplers[0].Export(ns)
}

// ExportObservable evaluates obs over the finest level's recorded history
// into the sink's level0 namespace.
func (g *Generator[F]) ExportObservable(obs observable.Observable[F], sink ports.Sink) error {
	ns, err := sink.Namespace(level0Namespace)
	if err != nil {
		return fmt.Errorf("open %s namespace: %w", level0Namespace, err)
	}
	return g.samplers[0].ExportObservable(obs, ns)
}

// Levels returns the hierarchy depth
func (g *Generator[F]) Levels() int {
	return g.params.Levels()
}

// Params returns a copy of the cycle parameters
func (g *Generator[F]) Params() Params {
	return g.params.clone()
}

// AcceptanceRates returns a copy of the normalized per-level rates from the
// most recent GenerateEnsembles call
func (g *Generator[F]) AcceptanceRates() []float64 {
	return append([]float64(nil), g.rates...)
}

// intPow computes base^exp for small non-negative integer exponents
func intPow(base, exp int) int {
	result := 1
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}
