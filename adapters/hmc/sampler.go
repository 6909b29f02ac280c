// Package hmc implements the per-level Hybrid Monte Carlo sampler: unit
// normal momenta, leapfrog integration of the molecular dynamics, and a
// Metropolis accept/reject on the total energy change.
package hmc

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"mlhmc/domain/lattice"
	"mlhmc/domain/observable"
	"mlhmc/internal/analysis"
	"mlhmc/ports"
)

// Target is what the sampler needs from a model: the action, its analytic
// gradient, and a zero field fixing the resolution.
type Target interface {
	Action(f lattice.Field) float64
	Grad(f lattice.Field, out lattice.Field)
	EmptyField() lattice.Field
}

// Sampler drives HMC sweeps against one target. All levels of a hierarchy
// share one random source, so a Sampler is not safe for concurrent use and
// the draw order across samplers must stay strictly sequential.
type Sampler struct {
	target   Target
	rng      *rand.Rand
	steps    int
	stepSize float64

	current   lattice.Field
	candidate lattice.Field
	momentum  lattice.Field
	grad      lattice.Field
	anchored  bool

	history []lattice.Field

	// lifetime counters across all Run calls, exported as metadata
	sweepsRun int
	accepted  float64
}

var _ ports.Sampler[lattice.Field] = (*Sampler)(nil)

// NewSampler creates a sampler for one level's target
func NewSampler(target Target, rng *rand.Rand, steps int, stepSize float64) (*Sampler, error) {
	if target == nil {
		return nil, fmt.Errorf("sampler target is required")
	}
	if rng == nil {
		return nil, fmt.Errorf("sampler random source is required")
	}
	if steps < 1 {
		return nil, fmt.Errorf("integrator steps must be at least 1, got %d", steps)
	}
	if stepSize <= 0 {
		return nil, fmt.Errorf("integrator step size must be positive, got %v", stepSize)
	}
	return &Sampler{
		target:    target,
		rng:       rng,
		steps:     steps,
		stepSize:  stepSize,
		candidate: target.EmptyField(),
		momentum:  target.EmptyField(),
		grad:      target.EmptyField(),
	}, nil
}

// Factory adapts NewSampler to the hierarchy construction contract, closing
// over the shared random source. Every level's model must implement Target.
func Factory(rng *rand.Rand) ports.SamplerFactory[lattice.Field] {
	return func(level int, m ports.Model[lattice.Field], steps int, stepSize float64) (ports.Sampler[lattice.Field], error) {
		target, ok := m.(Target)
		if !ok {
			return nil, fmt.Errorf("model %T exposes no action and gradient", m)
		}
		return NewSampler(target, rng, steps, stepSize)
	}
}

// Run re-anchors the chain at start, burns in therm sweeps, then performs
// sweeps proposal sweeps, recording each resulting configuration when record
// is set. Returns the number of accepted proposals in the sweeps phase.
func (s *Sampler) Run(start lattice.Field, sweeps, therm int, record bool) float64 {
	s.anchor(start)
	for i := 0; i < therm; i++ {
		s.sweep()
	}
	accepted := 0.0
	for i := 0; i < sweeps; i++ {
		if s.sweep() {
			accepted++
		}
		if record {
			s.history = append(s.history, s.current.Clone())
		}
	}
	s.sweepsRun += sweeps
	s.accepted += accepted
	return accepted
}

func (s *Sampler) anchor(start lattice.Field) {
	if len(start.Data) != len(s.momentum.Data) {
		panic(fmt.Sprintf("hmc: start field has %d sites, target has %d", len(start.Data), len(s.momentum.Data)))
	}
	s.current = start.Clone()
	s.anchored = true
}

// sweep performs one full HMC update of the current state and reports
// whether the proposal was accepted
func (s *Sampler) sweep() bool {
	for i := range s.momentum.Data {
		s.momentum.Data[i] = s.rng.NormFloat64()
	}
	h0 := 0.5*floats.Dot(s.momentum.Data, s.momentum.Data) + s.target.Action(s.current)

	copy(s.candidate.Data, s.current.Data)
	s.integrate()

	h1 := 0.5*floats.Dot(s.momentum.Data, s.momentum.Data) + s.target.Action(s.candidate)
	if dH := h1 - h0; dH > 0 && s.rng.Float64() >= math.Exp(-dH) {
		return false
	}
	s.current, s.candidate = s.candidate, s.current
	return true
}

// integrate advances candidate and momentum through the leapfrog scheme:
// half kick, alternating drifts and kicks, half kick
func (s *Sampler) integrate() {
	eps := s.stepSize
	s.target.Grad(s.candidate, s.grad)
	floats.AddScaled(s.momentum.Data, -eps/2, s.grad.Data)
	for step := 0; step < s.steps; step++ {
		floats.AddScaled(s.candidate.Data, eps, s.momentum.Data)
		if step < s.steps-1 {
			s.target.Grad(s.candidate, s.grad)
			floats.AddScaled(s.momentum.Data, -eps, s.grad.Data)
		}
	}
	s.target.Grad(s.candidate, s.grad)
	floats.AddScaled(s.momentum.Data, -eps/2, s.grad.Data)
}

// LastConfiguration returns a copy of the chain's current state, or fallback
// when Run has never anchored it
func (s *Sampler) LastConfiguration(fallback lattice.Field) lattice.Field {
	if !s.anchored {
		return fallback.Clone()
	}
	return s.current.Clone()
}

// ClearHistory drops the recorded ensemble; lifetime counters survive
func (s *Sampler) ClearHistory() {
	s.history = nil
}

// HistoryLen reports the number of recorded configurations
func (s *Sampler) HistoryLen() int {
	return len(s.history)
}

// AcceptanceRate returns the lifetime fraction of accepted proposals
func (s *Sampler) AcceptanceRate() float64 {
	if s.sweepsRun == 0 {
		return 0
	}
	return s.accepted / float64(s.sweepsRun)
}

// ObservableSeries evaluates obs over the recorded history in order
func (s *Sampler) ObservableSeries(obs observable.Observable[lattice.Field]) []float64 {
	values := make([]float64, len(s.history))
	for i, f := range s.history {
		values[i] = obs.Eval(f)
	}
	return values
}

// Export writes the sampler parameters, lifetime acceptance, and the raw
// recorded configurations into ns
func (s *Sampler) Export(ns ports.Namespace) error {
	attrs := map[string]any{
		"sampler":    "hmc",
		"steps":      s.steps,
		"step_size":  s.stepSize,
		"sweeps_run": s.sweepsRun,
		"acceptance": s.AcceptanceRate(),
		"history":    len(s.history),
	}
	if err := ns.WriteAttrs(attrs); err != nil {
		return fmt.Errorf("write sampler attributes: %w", err)
	}
	if len(s.history) == 0 {
		return nil
	}

	configs, err := ns.Namespace("configurations")
	if err != nil {
		return fmt.Errorf("open configurations namespace: %w", err)
	}
	volume := s.history[0].Size()
	flat := make([]float64, 0, len(s.history)*volume)
	for _, f := range s.history {
		flat = append(flat, f.Data...)
	}
	if err := configs.WriteSeries("flat", flat); err != nil {
		return fmt.Errorf("write configurations: %w", err)
	}
	return configs.WriteAttrs(map[string]any{"count": len(s.history), "volume": volume})
}

// ExportObservable writes the observable's series and its statistical
// summary under measurements/<name> inside ns
func (s *Sampler) ExportObservable(obs observable.Observable[lattice.Field], ns ports.Namespace) error {
	meas, err := ns.Namespace("measurements")
	if err != nil {
		return fmt.Errorf("open measurements namespace: %w", err)
	}
	group, err := meas.Namespace(obs.Name)
	if err != nil {
		return fmt.Errorf("open %s namespace: %w", obs.Name, err)
	}

	values := s.ObservableSeries(obs)
	if err := group.WriteSeries("values", values); err != nil {
		return fmt.Errorf("write %s series: %w", obs.Name, err)
	}
	if len(values) < 2 {
		return group.WriteAttrs(map[string]any{"samples": len(values)})
	}

	summary, err := analysis.Summarize(obs.Name, values)
	if err != nil {
		return fmt.Errorf("summarize %s: %w", obs.Name, err)
	}
	return group.WriteAttrs(map[string]any{
		"samples":           summary.Samples,
		"mean":              summary.Mean,
		"std_error":         summary.StdError,
		"variance":          summary.Variance,
		"autocorr_time":     summary.AutocorrTime,
		"effective_samples": summary.EffectiveSamples,
	})
}
