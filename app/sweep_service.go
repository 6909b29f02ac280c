package app

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"mlhmc/domain/core"
	"mlhmc/domain/run"
	"mlhmc/internal"
	apperrors "mlhmc/internal/errors"
	"mlhmc/internal/report"

	"context"
)

// SweepServiceConfig carries the composition-level settings of sweeps
type SweepServiceConfig struct {
	OutputDir   string
	Workers     int
	WriteReport bool
}

// SweepService scans one coupling over a range of values, running an
// independent chain per point. Chains share nothing: each gets its own
// hierarchy and its own disjoint random stream, so results reproduce
// independently of scheduling order.
type SweepService struct {
	runs *RunService
	log  *internal.Logger
	cfg  SweepServiceConfig
}

// NewSweepService creates a sweep service on top of a run service
func NewSweepService(runs *RunService, logger *internal.Logger, cfg SweepServiceConfig) *SweepService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &SweepService{
		runs: runs,
		log:  logger.Component("SweepService"),
		cfg:  cfg,
	}
}

// SweepRequest defines a linear scan of one coupling
type SweepRequest struct {
	Base    RunRequest   `json:"base"`
	Param   string       `json:"param"`
	From    float64      `json:"from"`
	To      float64      `json:"to"`
	Points  int          `json:"points"`
	Workers int          `json:"workers,omitempty"`
	SweepID core.SweepID `json:"sweep_id,omitempty"`
}

// SweepPoint is the outcome of one chain of the sweep
type SweepPoint struct {
	Index  int        `json:"index"`
	Value  float64    `json:"value"`
	RunID  core.RunID `json:"run_id"`
	Rates  []float64  `json:"rates,omitempty"`
	Error  string     `json:"error,omitempty"`
	Failed bool       `json:"failed"`
}

// SweepResult contains the complete output of a sweep
type SweepResult struct {
	SweepID   core.SweepID  `json:"sweep_id"`
	Param     string        `json:"param"`
	Points    []SweepPoint  `json:"points"`
	Records   []*run.Record `json:"-"`
	Failed    int           `json:"failed"`
	RuntimeMs int64         `json:"runtime_ms"`
}

// Execute runs every point of the sweep with bounded concurrency and writes
// the combined report. Individual chain failures do not abort the sweep;
// they are reported per point.
func (s *SweepService) Execute(ctx context.Context, req SweepRequest) (*SweepResult, error) {
	startTime := time.Now()

	if req.Points < 1 {
		return nil, apperrors.InvalidInput(fmt.Sprintf("sweep needs at least one point, got %d", req.Points))
	}
	if err := applyParam(&RunRequest{}, req.Param, 0); err != nil {
		return nil, err
	}

	sweepID := req.SweepID
	if sweepID == "" {
		sweepID = core.SweepID(core.NewID())
	}

	workers := req.Workers
	if workers < 1 {
		workers = s.cfg.Workers
	}

	s.log.Info("sweep %s starting: %s from %g to %g over %d points, %d workers",
		sweepID, req.Param, req.From, req.To, req.Points, workers)

	points := make([]SweepPoint, req.Points)
	results := make([]*RunResult, req.Points)

	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup
	var acquireErr error

	for i := 0; i < req.Points; i++ {
		value := pointValue(req.From, req.To, i, req.Points)

		preq := req.Base
		preq.RunID = ""
		preq.SweepID = sweepID
		preq.PointIndex = i
		preq.Seed = req.Base.Seed + int64(i)
		if err := applyParam(&preq, req.Param, value); err != nil {
			return nil, err
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			acquireErr = err
			for j := i; j < req.Points; j++ {
				points[j] = SweepPoint{Index: j, Value: pointValue(req.From, req.To, j, req.Points),
					Error: err.Error(), Failed: true}
			}
			break
		}

		wg.Add(1)
		go func(i int, preq RunRequest, value float64) {
			defer wg.Done()
			defer sem.Release(1)

			res, err := s.runs.Execute(ctx, preq)
			point := SweepPoint{Index: i, Value: value}
			if err != nil {
				point.Error = err.Error()
				point.Failed = true
			} else {
				point.RunID = res.Record.Manifest.RunID
				point.Rates = res.Rates
				results[i] = res
			}
			points[i] = point
		}(i, preq, value)
	}

	wg.Wait()

	result := &SweepResult{
		SweepID: sweepID,
		Param:   req.Param,
		Points:  points,
	}
	for _, res := range results {
		if res != nil {
			result.Records = append(result.Records, res.Record)
		}
	}
	for _, p := range points {
		if p.Failed {
			result.Failed++
		}
	}
	result.RuntimeMs = time.Since(startTime).Milliseconds()

	if acquireErr != nil {
		return result, fmt.Errorf("sweep %s interrupted: %w", sweepID, acquireErr)
	}
	if result.Failed == req.Points {
		return result, fmt.Errorf("sweep %s failed: all %d points errored", sweepID, req.Points)
	}

	if s.cfg.WriteReport && len(result.Records) > 0 {
		dir := filepath.Join(s.cfg.OutputDir, "sweep-"+sweepID.String())
		if err := report.WriteSweepFiles(dir, req.Param, result.Records); err != nil {
			return result, err
		}
	}

	s.log.Info("sweep %s completed: %d/%d points in %d ms",
		sweepID, req.Points-result.Failed, req.Points, result.RuntimeMs)

	return result, nil
}

// pointValue spaces the swept coupling linearly over [from, to]
func pointValue(from, to float64, index, points int) float64 {
	if points == 1 {
		return from
	}
	return from + (to-from)*float64(index)/float64(points-1)
}

func applyParam(req *RunRequest, param string, value float64) error {
	switch param {
	case "m2":
		req.M2 = value
	case "lambda":
		req.Lambda = value
	case "h":
		req.H = value
	default:
		return apperrors.InvalidInput(fmt.Sprintf("unknown sweep parameter %q", param))
	}
	return nil
}
