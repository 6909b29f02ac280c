// Package app wires the sampling domain to its adapters: it turns run
// requests into configured hierarchies, drives generation with progress
// reporting, and fans results out to storage, reporting and the registry.
package app

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"mlhmc/adapters/excel"
	"mlhmc/adapters/hmc"
	"mlhmc/adapters/phi4"
	"mlhmc/domain/core"
	"mlhmc/domain/lattice"
	"mlhmc/domain/multilevel"
	"mlhmc/domain/observable"
	"mlhmc/domain/run"
	"mlhmc/internal"
	"mlhmc/internal/analysis"
	apperrors "mlhmc/internal/errors"
	"mlhmc/internal/report"
	"mlhmc/ports"
)

// defaultProgressBatches bounds how many sample_progress events one run emits
const defaultProgressBatches = 20

// SinkProvider opens the measurement sink for one run
type SinkProvider func(runID string) (ports.Sink, error)

// RunServiceConfig carries the composition-level settings of run execution
type RunServiceConfig struct {
	OutputDir       string
	CodeVersion     string
	ExportExcel     bool
	WriteReport     bool
	ProgressBatches int
}

// RunService executes one multilevel sampling run end to end
type RunService struct {
	registry ports.RunRegistry
	rngPort  ports.RNGPort
	progress ports.ProgressPort
	sinks    SinkProvider
	excel    *excel.Writer
	log      *internal.Logger
	cfg      RunServiceConfig
}

// NewRunService creates a run service. progress may be nil when no live
// monitoring is attached.
func NewRunService(registry ports.RunRegistry, rngPort ports.RNGPort,
	progress ports.ProgressPort, sinks SinkProvider, logger *internal.Logger,
	cfg RunServiceConfig) *RunService {

	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &RunService{
		registry: registry,
		rngPort:  rngPort,
		progress: progress,
		sinks:    sinks,
		excel:    excel.NewWriter(),
		log:      logger.Component("RunService"),
		cfg:      cfg,
	}
}

// RunRequest defines one run completely; equal requests with equal seeds
// reproduce bit-identical ensembles.
type RunRequest struct {
	Shape  []int   `json:"shape"`
	M2     float64 `json:"m2"`
	Lambda float64 `json:"lambda"`
	H      float64 `json:"h"`

	NuPre     []int     `json:"nu_pre"`
	NuPost    []int     `json:"nu_post"`
	Gamma     int       `json:"gamma"`
	Scheme    string    `json:"scheme"`
	Steps     []int     `json:"steps"`
	StepSizes []float64 `json:"step_sizes"`

	Samples        int   `json:"samples"`
	Thermalization int   `json:"thermalization"`
	Seed           int64 `json:"seed"`

	// RunID is generated when empty. SweepID and PointIndex are set by the
	// sweep service so chains draw from disjoint random streams.
	RunID      core.RunID   `json:"run_id,omitempty"`
	SweepID    core.SweepID `json:"sweep_id,omitempty"`
	PointIndex int          `json:"point_index,omitempty"`
}

// RunResult is the complete output of one run
type RunResult struct {
	Record    *run.Record             `json:"record"`
	Rates     []float64               `json:"rates"`
	Summaries []run.ObservableSummary `json:"summaries"`
	Series    map[string][]float64    `json:"-"`
	RuntimeMs int64                   `json:"runtime_ms"`
}

// Execute runs the full lifecycle for one request: build, thermalize,
// generate with progress, summarize, export, register. Failures are stored
// as failed records before the error returns.
func (s *RunService) Execute(ctx context.Context, req RunRequest) (*RunResult, error) {
	startTime := time.Now()

	runID := req.RunID
	if runID == "" {
		runID = core.RunID(core.NewID())
	}
	req.RunID = runID

	scheme, err := ports.ParseInterpolationScheme(req.Scheme)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	modelSpec := run.ModelSpec{Kind: "phi4", Shape: req.Shape, M2: req.M2, Lambda: req.Lambda, H: req.H}
	cycleSpec := run.CycleSpec{
		NuPre:         req.NuPre,
		NuPost:        req.NuPost,
		Gamma:         req.Gamma,
		Interpolation: scheme.String(),
		Steps:         req.Steps,
		StepSizes:     req.StepSizes,
	}
	manifest := run.NewManifest(runID, modelSpec, cycleSpec, req.Seed,
		req.Thermalization, req.Samples, s.cfg.CodeVersion)
	if err := manifest.Validate(); err != nil {
		return nil, err
	}

	s.log.Info("run %s starting: %v lattice, %d levels, %d samples",
		runID, req.Shape, len(req.NuPre), req.Samples)

	result, err := s.generate(ctx, req, manifest, scheme, startTime)
	if err != nil {
		rec := run.NewFailedRecord(*manifest, err)
		rec.SweepID = req.SweepID
		if saveErr := s.registry.SaveRun(ctx, rec); saveErr != nil {
			s.log.Warn("failed to store failure record for run %s: %v", runID, saveErr)
		}
		s.publish(ports.ProgressEvent{
			RunID:   runID.String(),
			Stage:   ports.ProgressFailed,
			Message: err.Error(),
			At:      time.Now(),
		})
		return nil, apperrors.RunFailed(runID.String(), err)
	}

	s.publish(ports.ProgressEvent{
		RunID: runID.String(),
		Stage: ports.ProgressCompleted,
		Total: req.Samples,
		Rates: result.Rates,
		At:    time.Now(),
	})
	s.log.Info("run %s completed: %d samples in %d ms, finest acceptance %.4f",
		runID, req.Samples, result.RuntimeMs, finestRate(result.Rates))

	return result, nil
}

func (s *RunService) generate(ctx context.Context, req RunRequest,
	manifest *run.Manifest, scheme ports.InterpolationScheme,
	startTime time.Time) (*RunResult, error) {

	model, err := phi4.NewModel(req.Shape, req.M2, req.Lambda, req.H)
	if err != nil {
		return nil, err
	}

	rng, err := s.chainRNG(ctx, req)
	if err != nil {
		return nil, err
	}

	// The factory wraps the sampler constructor to capture the finest-level
	// sampler; its recorded history is the run's ensemble.
	var finest *hmc.Sampler
	base := hmc.Factory(rng)
	factory := func(level int, m ports.Model[lattice.Field], steps int, stepSize float64) (ports.Sampler[lattice.Field], error) {
		smp, err := base(level, m, steps, stepSize)
		if err != nil {
			return nil, err
		}
		if level == 0 {
			finest = smp.(*hmc.Sampler)
		}
		return smp, nil
	}

	gen, err := multilevel.New[lattice.Field](model, multilevel.Params{
		NuPre:     req.NuPre,
		NuPost:    req.NuPost,
		Gamma:     req.Gamma,
		Scheme:    scheme,
		Steps:     req.Steps,
		StepSizes: req.StepSizes,
	}, factory)
	if err != nil {
		return nil, err
	}

	runID := manifest.RunID.String()
	s.publish(ports.ProgressEvent{
		RunID: runID,
		Stage: ports.ProgressStarted,
		Total: req.Samples,
		At:    time.Now(),
	})

	start := model.EmptyField()
	rates, err := gen.GenerateEnsembles(start, 0, req.Thermalization)
	if err != nil {
		return nil, err
	}
	s.publish(ports.ProgressEvent{
		RunID:   runID,
		Stage:   ports.ProgressThermalized,
		Total:   req.Samples,
		Message: fmt.Sprintf("thermalized with %d cycles", req.Thermalization),
		At:      time.Now(),
	})

	phi := finest.LastConfiguration(start)
	batch := s.batchSize(req.Samples)
	for done := 0; done < req.Samples; {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := batch
		if done+n > req.Samples {
			n = req.Samples - done
		}
		rates, err = gen.ExtendEnsembles(phi, n)
		if err != nil {
			return nil, err
		}
		phi = finest.LastConfiguration(phi)
		done += n

		s.publish(ports.ProgressEvent{
			RunID:  runID,
			Stage:  ports.ProgressSampling,
			Sample: done,
			Total:  req.Samples,
			Rates:  rates,
			At:     time.Now(),
		})
	}

	observables := runObservables(model)
	series := make(map[string][]float64, len(observables))
	for _, obs := range observables {
		series[obs.Name] = finest.ObservableSeries(obs)
	}

	var summaries []run.ObservableSummary
	if finest.HistoryLen() >= 2 {
		summaries, err = analysis.SummarizeAll(series)
		if err != nil {
			return nil, err
		}
	}

	snk, err := s.sinks(runID)
	if err != nil {
		return nil, err
	}
	if err := gen.Export(snk); err != nil {
		return nil, err
	}
	for _, obs := range observables {
		if err := gen.ExportObservable(obs, snk); err != nil {
			return nil, err
		}
	}

	runtimeMs := time.Since(startTime).Milliseconds()
	rec := run.NewRecord(*manifest, rates, summaries, runtimeMs)
	rec.SweepID = req.SweepID

	runDir := filepath.Join(s.cfg.OutputDir, runID)
	if s.cfg.ExportExcel || s.cfg.WriteReport {
		if err := os.MkdirAll(runDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create run directory: %w", err)
		}
		if err := report.WriteRecord(runDir, rec); err != nil {
			return nil, err
		}
	}
	if s.cfg.ExportExcel {
		if err := s.excel.WriteWorkbook(filepath.Join(runDir, "run.xlsx"), rec, series); err != nil {
			return nil, err
		}
	}
	if s.cfg.WriteReport {
		if err := report.WriteFiles(runDir, rec); err != nil {
			return nil, err
		}
	}

	if err := s.registry.SaveRun(ctx, rec); err != nil {
		return nil, err
	}

	return &RunResult{
		Record:    rec,
		Rates:     rates,
		Summaries: summaries,
		Series:    series,
		RuntimeMs: runtimeMs,
	}, nil
}

// chainRNG builds the run's random source. Standalone runs draw directly
// from the seed; sweep points draw from per-chain disjoint streams.
func (s *RunService) chainRNG(ctx context.Context, req RunRequest) (*rand.Rand, error) {
	if req.SweepID != "" {
		return s.rngPort.ChainStream(ctx, req.SweepID.String(), req.PointIndex, req.Seed)
	}
	return s.rngPort.SeededStream(ctx, "", req.Seed)
}

func (s *RunService) batchSize(samples int) int {
	batches := s.cfg.ProgressBatches
	if batches <= 0 {
		batches = defaultProgressBatches
	}
	batch := samples / batches
	if batch < 1 {
		batch = 1
	}
	return batch
}

func (s *RunService) publish(event ports.ProgressEvent) {
	if s.progress != nil {
		s.progress.Publish(event)
	}
}

// runObservables returns everything measured on the recorded ensemble: the
// standard lattice observables plus the model's energy densities.
func runObservables(model *phi4.Model) []observable.Observable[lattice.Field] {
	obs := observable.Standard()
	return append(obs, model.EnergyObservable(), model.EnergySquaredObservable())
}

func finestRate(rates []float64) float64 {
	if len(rates) == 0 {
		return 0
	}
	return rates[0]
}
