package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlhmc/adapters/rng"
	"mlhmc/domain/core"
	"mlhmc/domain/run"
	"mlhmc/internal/testkit"
	"mlhmc/ports"
)

// runHarness bundles one run service with inspectable fakes
type runHarness struct {
	service  *RunService
	registry *testkit.MemoryRegistry
	progress *testkit.ProgressRecorder
	sinks    map[string]*testkit.MemorySink
}

func newRunHarness(t *testing.T) *runHarness {
	t.Helper()
	h := &runHarness{
		registry: testkit.NewMemoryRegistry(),
		progress: testkit.NewProgressRecorder(),
		sinks:    make(map[string]*testkit.MemorySink),
	}
	provider := func(runID string) (ports.Sink, error) {
		s := testkit.NewMemorySink()
		h.sinks[runID] = s
		return s, nil
	}
	h.service = NewRunService(h.registry, rng.NewSeededProvider(), h.progress,
		provider, nil, RunServiceConfig{
			OutputDir:   t.TempDir(),
			CodeVersion: "test",
		})
	return h
}

func smallRequest(seed int64) RunRequest {
	return RunRequest{
		Shape:          []int{8},
		M2:             -0.5,
		Lambda:         1.0,
		H:              0.0,
		NuPre:          []int{1, 1},
		NuPost:         []int{1, 1},
		Gamma:          1,
		Scheme:         "linear",
		Steps:          []int{5, 5},
		StepSizes:      []float64{0.2, 0.2},
		Samples:        10,
		Thermalization: 2,
		Seed:           seed,
	}
}

func TestRunServiceExecute(t *testing.T) {
	h := newRunHarness(t)

	req := smallRequest(42)
	result, err := h.service.Execute(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result.Record)

	assert.Equal(t, run.StatusCompleted, result.Record.Status)
	require.Len(t, result.Rates, 2)
	for level, rate := range result.Rates {
		assert.GreaterOrEqual(t, rate, 0.0, "level %d", level)
		assert.LessOrEqual(t, rate, 1.0, "level %d", level)
	}

	// every standard observable plus the model energies; the finest level
	// records one configuration per sweep, so each measurement cycle
	// contributes nu_pre[0]+nu_post[0] values
	wantLen := req.Samples * (req.NuPre[0] + req.NuPost[0])
	require.Contains(t, result.Series, "magnetization")
	require.Contains(t, result.Series, "energy")
	for name, series := range result.Series {
		assert.Len(t, series, wantLen, "series %s", name)
	}
	assert.NotEmpty(t, result.Summaries)

	stored, err := h.registry.GetRun(context.Background(), result.Record.Manifest.RunID)
	require.NoError(t, err)
	assert.Equal(t, result.Record.Manifest.Fingerprint.Hash, stored.Manifest.Fingerprint.Hash)
}

func TestRunServiceProgressLifecycle(t *testing.T) {
	h := newRunHarness(t)

	_, err := h.service.Execute(context.Background(), smallRequest(42))
	require.NoError(t, err)

	stages := h.progress.Stages()
	require.NotEmpty(t, stages)
	assert.Equal(t, ports.ProgressStarted, stages[0])
	assert.Equal(t, ports.ProgressCompleted, stages[len(stages)-1])
	assert.Contains(t, stages, ports.ProgressThermalized)
	assert.Contains(t, stages, ports.ProgressSampling)
}

func TestRunServiceExportsLevel0(t *testing.T) {
	h := newRunHarness(t)

	result, err := h.service.Execute(context.Background(), smallRequest(42))
	require.NoError(t, err)

	sink, ok := h.sinks[result.Record.Manifest.RunID.String()]
	require.True(t, ok, "run sink was never opened")
	assert.True(t, sink.Has("level0"))

	root, ok := sink.Root("level0")
	require.True(t, ok)
	assert.True(t, root.Has("measurements"))

	gamma, ok := root.Attr("gamma")
	require.True(t, ok)
	assert.Equal(t, 1, gamma)
}

func TestRunServiceDeterministicGivenSeed(t *testing.T) {
	first, err := newRunHarness(t).service.Execute(context.Background(), smallRequest(7))
	require.NoError(t, err)
	second, err := newRunHarness(t).service.Execute(context.Background(), smallRequest(7))
	require.NoError(t, err)

	assert.Equal(t, first.Rates, second.Rates)
	assert.Equal(t, first.Series["magnetization"], second.Series["magnetization"])

	different, err := newRunHarness(t).service.Execute(context.Background(), smallRequest(8))
	require.NoError(t, err)
	assert.NotEqual(t, first.Series["magnetization"], different.Series["magnetization"])
}

func TestRunServiceRejectsUnknownScheme(t *testing.T) {
	h := newRunHarness(t)

	req := smallRequest(42)
	req.Scheme = "cubic"
	_, err := h.service.Execute(context.Background(), req)
	require.Error(t, err)
	assert.Empty(t, h.progress.Events())
}

func TestRunServiceStoresFailureRecord(t *testing.T) {
	h := newRunHarness(t)

	req := smallRequest(42)
	req.RunID = core.RunID(core.NewID())
	req.Gamma = 0
	_, err := h.service.Execute(context.Background(), req)
	require.Error(t, err)

	stored, err := h.registry.GetRun(context.Background(), req.RunID)
	require.NoError(t, err)
	assert.Equal(t, run.StatusFailed, stored.Status)
	assert.NotEmpty(t, stored.Error)

	stages := h.progress.Stages()
	require.NotEmpty(t, stages)
	assert.Equal(t, ports.ProgressFailed, stages[len(stages)-1])
}
