package testkit

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"mlhmc/domain/core"
	"mlhmc/domain/lattice"
	"mlhmc/domain/observable"
	"mlhmc/domain/run"
	"mlhmc/ports"
)

// TestKit bundles the deterministic fakes used across the test suites
type TestKit struct {
	Sink     *MemorySink
	Registry *MemoryRegistry
	Progress *ProgressRecorder
	Log      *CallLog
}

// NewTestKit creates a fresh kit with empty fakes
func NewTestKit() *TestKit {
	return &TestKit{
		Sink:     NewMemorySink(),
		Registry: NewMemoryRegistry(),
		Progress: NewProgressRecorder(),
		Log:      &CallLog{},
	}
}

// CallLog records collaborator invocations in order, shared across a fake
// hierarchy so cross-level ordering can be asserted.
type CallLog struct {
	Events []string
}

// Record appends one formatted event
func (l *CallLog) Record(format string, args ...any) {
	l.Events = append(l.Events, fmt.Sprintf(format, args...))
}

// FakeModel implements ports.Model[lattice.Field] with full call
// instrumentation. Depth 0 is the finest level; Coarser children share the
// parent's CallLog.
type FakeModel struct {
	Depth int
	Log   *CallLog

	// Shape of fields this fake hands out; identical across depths so
	// structural tests stay trivial
	Shape []int

	// CoarserErr, when set, makes Coarser fail (construction fault injection)
	CoarserErr error

	// InterpolateAdd, when set, makes Interpolate add the coarse values onto
	// the fine field site-wise instead of leaving it untouched
	InterpolateAdd bool

	Restricted []lattice.Field
}

// NewFakeModel creates a finest-level fake over a tiny lattice
func NewFakeModel(log *CallLog) *FakeModel {
	return &FakeModel{Log: log, Shape: []int{4}}
}

func (m *FakeModel) CopyModel() ports.Model[lattice.Field] {
	m.Log.Record("copy depth=%d", m.Depth)
	clone := *m
	clone.Restricted = nil
	return &clone
}

func (m *FakeModel) Coarser(scheme ports.InterpolationScheme) (ports.Model[lattice.Field], error) {
	m.Log.Record("coarser depth=%d scheme=%s", m.Depth, scheme)
	if m.CoarserErr != nil {
		return nil, m.CoarserErr
	}
	child := *m
	child.Depth = m.Depth + 1
	child.Restricted = nil
	return &child, nil
}

func (m *FakeModel) EmptyField() lattice.Field {
	f, _ := lattice.New(m.Shape...)
	return f
}

func (m *FakeModel) Restrict(fine lattice.Field) {
	m.Log.Record("restrict depth=%d", m.Depth)
	m.Restricted = append(m.Restricted, fine.Clone())
}

func (m *FakeModel) Interpolate(coarse lattice.Field, fine lattice.Field) {
	m.Log.Record("interpolate depth=%d", m.Depth)
	if m.InterpolateAdd {
		for i := range fine.Data {
			fine.Data[i] += coarse.Data[i]
		}
	}
}

func (m *FakeModel) PullAttributes(finer ports.Model[lattice.Field]) {
	m.Log.Record("pull depth=%d", m.Depth)
}

// RunCall captures the arguments of one Sampler.Run invocation
type RunCall struct {
	Sweeps int
	Therm  int
	Record bool
}

// FakeSampler implements ports.Sampler[lattice.Field] deterministically:
// every sweep shifts each site by Delta and counts AcceptPerSweep toward the
// acceptance measure.
type FakeSampler struct {
	Level int
	Log   *CallLog

	// AcceptPerSweep is the acceptance measure contributed per sweep, so the
	// generator's normalized rate for a level of fakes equals this value
	AcceptPerSweep float64

	// Delta is the per-sweep site shift, making evolution observable
	Delta float64

	Calls    []RunCall
	Clears   int
	current  lattice.Field
	anchored bool
	history  []lattice.Field
}

// NewFakeSampler creates a sampler fake that accepts everything
func NewFakeSampler(level int, log *CallLog) *FakeSampler {
	return &FakeSampler{Level: level, Log: log, AcceptPerSweep: 1, Delta: 1}
}

func (s *FakeSampler) Run(start lattice.Field, sweeps, therm int, record bool) float64 {
	s.Log.Record("run level=%d sweeps=%d record=%v", s.Level, sweeps, record)
	s.Calls = append(s.Calls, RunCall{Sweeps: sweeps, Therm: therm, Record: record})
	s.current = start.Clone()
	s.anchored = true
	for i := 0; i < therm; i++ {
		s.evolve()
	}
	for i := 0; i < sweeps; i++ {
		s.evolve()
		if record {
			s.history = append(s.history, s.current.Clone())
		}
	}
	return s.AcceptPerSweep * float64(sweeps)
}

func (s *FakeSampler) evolve() {
	for i := range s.current.Data {
		s.current.Data[i] += s.Delta
	}
}

func (s *FakeSampler) LastConfiguration(fallback lattice.Field) lattice.Field {
	if !s.anchored {
		return fallback.Clone()
	}
	return s.current.Clone()
}

func (s *FakeSampler) ClearHistory() {
	s.Clears++
	s.history = nil
}

func (s *FakeSampler) HistoryLen() int {
	return len(s.history)
}

func (s *FakeSampler) Export(ns ports.Namespace) error {
	return ns.WriteAttrs(map[string]any{"fake_level": s.Level, "history": len(s.history)})
}

func (s *FakeSampler) ExportObservable(obs observable.Observable[lattice.Field], ns ports.Namespace) error {
	meas, err := ns.Namespace("measurements")
	if err != nil {
		return err
	}
	group, err := meas.Namespace(obs.Name)
	if err != nil {
		return err
	}
	series := make([]float64, len(s.history))
	for i, f := range s.history {
		series[i] = obs.Eval(f)
	}
	return group.WriteSeries("values", series)
}

// Visits reports how many correction cycles touched this sampler: every
// cycle issues exactly one pre-sweep and one post-sweep Run call.
func (s *FakeSampler) Visits() int {
	return len(s.Calls) / 2
}

// FactoryCall captures the construction arguments handed to the factory
type FactoryCall struct {
	Level    int
	Steps    int
	StepSize float64
}

// FakeFactory builds FakeSamplers for a hierarchy, retaining each sampler
// and the hierarchy-owned models for later inspection.
type FakeFactory struct {
	Log      *CallLog
	Err      error
	Samplers []*FakeSampler
	Models   []ports.Model[lattice.Field]
	Calls    []FactoryCall
}

// NewFakeFactory creates a factory whose samplers share the given log
func NewFakeFactory(log *CallLog) *FakeFactory {
	return &FakeFactory{Log: log}
}

// Factory returns the ports.SamplerFactory closure
func (f *FakeFactory) Factory() ports.SamplerFactory[lattice.Field] {
	return func(level int, m ports.Model[lattice.Field], steps int, stepSize float64) (ports.Sampler[lattice.Field], error) {
		if f.Err != nil {
			return nil, f.Err
		}
		f.Models = append(f.Models, m)
		f.Calls = append(f.Calls, FactoryCall{Level: level, Steps: steps, StepSize: stepSize})
		s := NewFakeSampler(level, f.Log)
		f.Samplers = append(f.Samplers, s)
		return s, nil
	}
}

// MemorySink implements ports.Sink as an in-memory namespace tree
type MemorySink struct {
	mu       sync.RWMutex
	children map[string]*MemoryNamespace
}

// NewMemorySink creates an empty in-memory sink
func NewMemorySink() *MemorySink {
	return &MemorySink{children: make(map[string]*MemoryNamespace)}
}

func (s *MemorySink) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.children[name]
	return ok
}

func (s *MemorySink) Namespace(name string) (ports.Namespace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ns, ok := s.children[name]; ok {
		return ns, nil
	}
	ns := newMemoryNamespace(name)
	s.children[name] = ns
	return ns, nil
}

// Root fetches an existing top-level namespace without creating it
func (s *MemorySink) Root(name string) (*MemoryNamespace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ns, ok := s.children[name]
	return ns, ok
}

// MemoryNamespace is one node of a MemorySink tree
type MemoryNamespace struct {
	Name string

	mu       sync.RWMutex
	children map[string]*MemoryNamespace
	series   map[string][]float64
	attrs    map[string]any
}

func newMemoryNamespace(name string) *MemoryNamespace {
	return &MemoryNamespace{
		Name:     name,
		children: make(map[string]*MemoryNamespace),
		series:   make(map[string][]float64),
		attrs:    make(map[string]any),
	}
}

func (n *MemoryNamespace) Has(name string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.children[name]
	return ok
}

func (n *MemoryNamespace) Namespace(name string) (ports.Namespace, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if ns, ok := n.children[name]; ok {
		return ns, nil
	}
	ns := newMemoryNamespace(name)
	n.children[name] = ns
	return ns, nil
}

func (n *MemoryNamespace) WriteSeries(name string, values []float64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.series[name] = append([]float64(nil), values...)
	return nil
}

func (n *MemoryNamespace) WriteAttrs(attrs map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for k, v := range attrs {
		n.attrs[k] = v
	}
	return nil
}

// Series returns a stored series copy, or nil when absent
func (n *MemoryNamespace) Series(name string) []float64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	values, ok := n.series[name]
	if !ok {
		return nil
	}
	return append([]float64(nil), values...)
}

// Attr returns a stored attribute value
func (n *MemoryNamespace) Attr(name string) (any, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.attrs[name]
	return v, ok
}

// Child fetches an existing child namespace without creating it
func (n *MemoryNamespace) Child(name string) (*MemoryNamespace, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	c, ok := n.children[name]
	return c, ok
}

// MemoryRegistry implements ports.RunRegistry in memory
type MemoryRegistry struct {
	mu   sync.RWMutex
	runs map[core.RunID]*run.Record
}

// NewMemoryRegistry creates an empty registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{runs: make(map[core.RunID]*run.Record)}
}

func (r *MemoryRegistry) SaveRun(ctx context.Context, rec *run.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.runs[rec.Manifest.RunID]; exists {
		return fmt.Errorf("run %s already stored", rec.Manifest.RunID)
	}
	stored := *rec
	r.runs[rec.Manifest.RunID] = &stored
	return nil
}

func (r *MemoryRegistry) GetRun(ctx context.Context, id core.RunID) (*run.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.runs[id]
	if !ok {
		return nil, core.NewNotFoundError("run", id.String())
	}
	found := *rec
	return &found, nil
}

func (r *MemoryRegistry) ListRuns(ctx context.Context, filters ports.RunFilters) ([]*run.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*run.Record, 0, len(r.runs))
	for _, rec := range r.runs {
		if filters.SweepID != nil && rec.SweepID != *filters.SweepID {
			continue
		}
		if filters.Status != nil && rec.Status != *filters.Status {
			continue
		}
		found := *rec
		out = append(out, &found)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Time().After(out[j].CreatedAt.Time())
	})
	if filters.Offset > 0 {
		if filters.Offset >= len(out) {
			return nil, nil
		}
		out = out[filters.Offset:]
	}
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

// ProgressRecorder implements ports.ProgressPort by collecting events
type ProgressRecorder struct {
	mu     sync.Mutex
	events []ports.ProgressEvent
}

// NewProgressRecorder creates an empty recorder
func NewProgressRecorder() *ProgressRecorder {
	return &ProgressRecorder{}
}

func (p *ProgressRecorder) Publish(event ports.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

// Events returns a copy of everything published so far
func (p *ProgressRecorder) Events() []ports.ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ports.ProgressEvent(nil), p.events...)
}

// Stages returns just the event stages, in publication order
func (p *ProgressRecorder) Stages() []ports.ProgressStage {
	p.mu.Lock()
	defer p.mu.Unlock()
	stages := make([]ports.ProgressStage, len(p.events))
	for i, e := range p.events {
		stages[i] = e.Stage
	}
	return stages
}
