package ports

import "time"

// ProgressStage identifies where in its lifecycle a run currently is
type ProgressStage string

const (
	ProgressStarted     ProgressStage = "run_started"
	ProgressThermalized ProgressStage = "thermalization_done"
	ProgressSampling    ProgressStage = "sample_progress"
	ProgressCompleted   ProgressStage = "run_completed"
	ProgressFailed      ProgressStage = "run_failed"
)

// ProgressEvent is one lifecycle notification emitted by run execution.
// Events are advisory; losing one must never affect the run itself.
type ProgressEvent struct {
	RunID   string        `json:"run_id"`
	Stage   ProgressStage `json:"stage"`
	Sample  int           `json:"sample"`
	Total   int           `json:"total"`
	Rates   []float64     `json:"rates,omitempty"`
	Message string        `json:"message,omitempty"`
	At      time.Time     `json:"at"`
}

// ProgressPort receives lifecycle events from run execution. Publish must not
// block the sampling loop; implementations drop events under backpressure.
type ProgressPort interface {
	Publish(event ProgressEvent)
}
