package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlhmc/domain/run"
	"mlhmc/ports"
)

func newSweepHarness(t *testing.T, workers int) (*SweepService, *runHarness) {
	t.Helper()
	h := newRunHarness(t)
	s := NewSweepService(h.service, nil, SweepServiceConfig{
		OutputDir: t.TempDir(),
		Workers:   workers,
	})
	return s, h
}

func smallSweep(points, workers int) SweepRequest {
	return SweepRequest{
		Base:    smallRequest(100),
		Param:   "m2",
		From:    -1.0,
		To:      0.0,
		Points:  points,
		Workers: workers,
	}
}

func TestSweepServiceExecute(t *testing.T) {
	sweeps, h := newSweepHarness(t, 2)

	result, err := sweeps.Execute(context.Background(), smallSweep(3, 2))
	require.NoError(t, err)
	require.Len(t, result.Points, 3)
	assert.Zero(t, result.Failed)

	// linear spacing over [from, to]
	assert.InDelta(t, -1.0, result.Points[0].Value, 1e-12)
	assert.InDelta(t, -0.5, result.Points[1].Value, 1e-12)
	assert.InDelta(t, 0.0, result.Points[2].Value, 1e-12)

	for _, p := range result.Points {
		assert.False(t, p.Failed, "point %d", p.Index)
		assert.NotEmpty(t, p.RunID, "point %d", p.Index)
		assert.Len(t, p.Rates, 2, "point %d", p.Index)
	}

	stored, err := h.registry.ListRuns(context.Background(), ports.RunFilters{SweepID: &result.SweepID})
	require.NoError(t, err)
	assert.Len(t, stored, 3)
	for _, rec := range stored {
		assert.Equal(t, run.StatusCompleted, rec.Status)
		assert.Equal(t, result.SweepID, rec.SweepID)
	}
}

// Per-point seeds derive from the base seed and the point index, so the
// results cannot depend on how many chains run concurrently.
func TestSweepServiceDeterministicAcrossWorkerCounts(t *testing.T) {
	req := smallSweep(3, 1)
	req.SweepID = "fixed-sweep"

	serial, _ := newSweepHarness(t, 1)
	serialResult, err := serial.Execute(context.Background(), req)
	require.NoError(t, err)

	req.Workers = 3
	parallel, _ := newSweepHarness(t, 3)
	parallelResult, err := parallel.Execute(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, parallelResult.Points, len(serialResult.Points))
	for i := range serialResult.Points {
		assert.Equal(t, serialResult.Points[i].Rates, parallelResult.Points[i].Rates, "point %d", i)
	}
}

func TestSweepServiceSinglePointUsesFrom(t *testing.T) {
	sweeps, _ := newSweepHarness(t, 1)

	result, err := sweeps.Execute(context.Background(), smallSweep(1, 1))
	require.NoError(t, err)
	require.Len(t, result.Points, 1)
	assert.InDelta(t, -1.0, result.Points[0].Value, 1e-12)
}

func TestSweepServiceRejectsUnknownParam(t *testing.T) {
	sweeps, _ := newSweepHarness(t, 1)

	req := smallSweep(3, 1)
	req.Param = "beta"
	_, err := sweeps.Execute(context.Background(), req)
	require.Error(t, err)
}

func TestSweepServiceRejectsZeroPoints(t *testing.T) {
	sweeps, _ := newSweepHarness(t, 1)

	req := smallSweep(3, 1)
	req.Points = 0
	_, err := sweeps.Execute(context.Background(), req)
	require.Error(t, err)
}

func TestSweepServiceReportsChainFailures(t *testing.T) {
	sweeps, _ := newSweepHarness(t, 1)

	// break the base request so every chain fails identically
	req := smallSweep(2, 1)
	req.Base.Gamma = 0
	result, err := sweeps.Execute(context.Background(), req)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.Failed)
	for _, p := range result.Points {
		assert.True(t, p.Failed)
		assert.NotEmpty(t, p.Error)
	}
}
