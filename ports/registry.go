package ports

import (
	"context"

	"mlhmc/domain/core"
	"mlhmc/domain/run"
)

// RunRegistry persists completed run records for later browsing and reporting
type RunRegistry interface {
	// SaveRun stores a run record; saving an existing run ID is an error
	SaveRun(ctx context.Context, rec *run.Record) error

	// GetRun loads one run record by ID
	GetRun(ctx context.Context, id core.RunID) (*run.Record, error)

	// ListRuns returns run records matching the filters, newest first
	ListRuns(ctx context.Context, filters RunFilters) ([]*run.Record, error)
}

// RunFilters for querying stored runs
type RunFilters struct {
	SweepID *core.SweepID
	Status  *run.Status
	Limit   int
	Offset  int
}
