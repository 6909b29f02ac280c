package run

import (
	"mlhmc/domain/core"
)

// Status of a stored run
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ObservableSummary captures one observable's ensemble statistics
type ObservableSummary struct {
	Name             string  `json:"name"`
	Samples          int     `json:"samples"`
	Mean             float64 `json:"mean"`
	StdError         float64 `json:"std_error"`
	Variance         float64 `json:"variance"`
	AutocorrTime     float64 `json:"autocorr_time"`
	EffectiveSamples float64 `json:"effective_samples"`
}

// Record is everything the registry stores for one run
type Record struct {
	Manifest  Manifest            `json:"manifest"`
	SweepID   core.SweepID        `json:"sweep_id,omitempty"`
	Rates     []float64           `json:"rates"`
	Summaries []ObservableSummary `json:"summaries"`
	Status    Status              `json:"status"`
	Error     string              `json:"error,omitempty"`
	RuntimeMs int64               `json:"runtime_ms"`
	CreatedAt core.Timestamp      `json:"created_at"`
}

// NewRecord creates a completed record for a manifest
func NewRecord(manifest Manifest, rates []float64, summaries []ObservableSummary, runtimeMs int64) *Record {
	return &Record{
		Manifest:  manifest,
		Rates:     append([]float64(nil), rates...),
		Summaries: append([]ObservableSummary(nil), summaries...),
		Status:    StatusCompleted,
		RuntimeMs: runtimeMs,
		CreatedAt: core.Now(),
	}
}

// NewFailedRecord creates a failure record carrying the error message
func NewFailedRecord(manifest Manifest, cause error) *Record {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &Record{
		Manifest:  manifest,
		Status:    StatusFailed,
		Error:     msg,
		CreatedAt: core.Now(),
	}
}
