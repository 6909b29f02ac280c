package ports

import (
	"mlhmc/domain/observable"
)

// Sampler is the per-level sampling collaborator. Each instance is bound to
// one level's model at construction and shares one random source with every
// other level, so invocation order fully determines the sampled stream.
type Sampler[F Field[F]] interface {
	// Run re-anchors the sampler's current state at start, performs therm
	// unrecorded burn-in sweeps followed by sweeps proposal sweeps, appending
	// each resulting configuration to persistent history when record is set,
	// and returns the cumulative acceptance measure of the sweeps phase.
	// A call with sweeps == 0 still re-anchors the current state. Run must
	// not retain or mutate start.
	Run(start F, sweeps, therm int, record bool) float64

	// LastConfiguration returns the most recent configuration produced or
	// re-anchored by Run, or fallback if Run has never been called. The
	// returned value must not alias sampler-internal state; callers mutate it.
	LastConfiguration(fallback F) F

	// ClearHistory drops the recorded ensemble history
	ClearHistory()

	// HistoryLen reports how many configurations are currently recorded
	HistoryLen() int

	// Export writes sampling metadata and history-derived series into ns
	Export(ns Namespace) error

	// ExportObservable evaluates a named observable over the recorded history
	// and writes the series plus its statistical summary under
	// measurements/<name> inside ns
	ExportObservable(obs observable.Observable[F], ns Namespace) error
}

// SamplerFactory builds one sampler per level during hierarchy construction.
// The composition layer supplies it, closing over the shared random source;
// a factory error aborts construction.
type SamplerFactory[F Field[F]] func(level int, m Model[F], steps int, stepSize float64) (Sampler[F], error)
