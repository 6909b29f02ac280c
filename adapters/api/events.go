// Package api defines the wire-level run events streamed to monitoring
// clients over SSE.
package api

import (
	"encoding/json"
	"fmt"
	"time"

	"mlhmc/ports"
)

// RunEventType defines the types of SSE events emitted during a run
type RunEventType string

const (
	EventTypeRunStarted         RunEventType = "run_started"
	EventTypeThermalizationDone RunEventType = "thermalization_done"
	EventTypeSampleProgress     RunEventType = "sample_progress"
	EventTypeRunCompleted       RunEventType = "run_completed"
	EventTypeRunFailed          RunEventType = "run_failed"
)

// RunEvent represents a server-sent event for run monitoring
type RunEvent struct {
	EventType RunEventType `json:"event_type"`
	RunID     string       `json:"run_id,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
	Data      interface{}  `json:"data"`
}

// ToSSEFormat converts the event to SSE wire format
func (e *RunEvent) ToSSEFormat() string {
	eventData := map[string]interface{}{
		"event_type": e.EventType,
		"timestamp":  e.Timestamp,
		"data":       e.Data,
	}

	if e.RunID != "" {
		eventData["run_id"] = e.RunID
	}

	jsonData, err := json.Marshal(eventData)
	if err != nil {
		// Fallback to basic format
		return fmt.Sprintf("event: %s\ndata: %s\n\n", e.EventType, "error marshalling event")
	}

	return fmt.Sprintf("event: %s\ndata: %s\n\n", e.EventType, string(jsonData))
}

// RunStartedData carries the planned extent of a run
type RunStartedData struct {
	Samples int    `json:"samples"`
	Message string `json:"message,omitempty"`
}

// ThermalizationDoneData signals that burn-in finished and recording begins
type ThermalizationDoneData struct {
	Message string `json:"message,omitempty"`
}

// SampleProgressData reports generation progress between top-level samples
type SampleProgressData struct {
	Sample          int       `json:"sample"`
	Total           int       `json:"total"`
	ProgressPercent float64   `json:"progress_percent"`
	Rates           []float64 `json:"rates,omitempty"`
}

// RunCompletedData carries the final per-level acceptance rates
type RunCompletedData struct {
	Samples int       `json:"samples"`
	Rates   []float64 `json:"rates,omitempty"`
}

// RunFailedData carries the failure cause
type RunFailedData struct {
	Error string `json:"error"`
}

// RunEventBuilder provides methods to create run events
type RunEventBuilder struct{}

// NewRunEventBuilder creates a new event builder
func NewRunEventBuilder() *RunEventBuilder {
	return &RunEventBuilder{}
}

// BuildRunStarted creates a run started event
func (b *RunEventBuilder) BuildRunStarted(runID string, data RunStartedData) *RunEvent {
	return &RunEvent{
		EventType: EventTypeRunStarted,
		RunID:     runID,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// BuildThermalizationDone creates a thermalization done event
func (b *RunEventBuilder) BuildThermalizationDone(runID string, data ThermalizationDoneData) *RunEvent {
	return &RunEvent{
		EventType: EventTypeThermalizationDone,
		RunID:     runID,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// BuildSampleProgress creates a sample progress event
func (b *RunEventBuilder) BuildSampleProgress(runID string, data SampleProgressData) *RunEvent {
	return &RunEvent{
		EventType: EventTypeSampleProgress,
		RunID:     runID,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// BuildRunCompleted creates a run completed event
func (b *RunEventBuilder) BuildRunCompleted(runID string, data RunCompletedData) *RunEvent {
	return &RunEvent{
		EventType: EventTypeRunCompleted,
		RunID:     runID,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// BuildRunFailed creates a run failed event
func (b *RunEventBuilder) BuildRunFailed(runID string, data RunFailedData) *RunEvent {
	return &RunEvent{
		EventType: EventTypeRunFailed,
		RunID:     runID,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// FromProgress converts a lifecycle event from the sampling services into
// its wire representation. The event timestamp is preserved.
func FromProgress(ev ports.ProgressEvent) *RunEvent {
	out := &RunEvent{
		EventType: RunEventType(ev.Stage),
		RunID:     ev.RunID,
		Timestamp: ev.At,
	}
	if out.Timestamp.IsZero() {
		out.Timestamp = time.Now()
	}

	switch ev.Stage {
	case ports.ProgressStarted:
		out.Data = RunStartedData{Samples: ev.Total, Message: ev.Message}
	case ports.ProgressThermalized:
		out.Data = ThermalizationDoneData{Message: ev.Message}
	case ports.ProgressSampling:
		percent := 0.0
		if ev.Total > 0 {
			percent = float64(ev.Sample) / float64(ev.Total) * 100
		}
		out.Data = SampleProgressData{
			Sample:          ev.Sample,
			Total:           ev.Total,
			ProgressPercent: percent,
			Rates:           ev.Rates,
		}
	case ports.ProgressCompleted:
		out.Data = RunCompletedData{Samples: ev.Total, Rates: ev.Rates}
	case ports.ProgressFailed:
		out.Data = RunFailedData{Error: ev.Message}
	default:
		out.Data = map[string]string{"message": ev.Message}
	}

	return out
}
