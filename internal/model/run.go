package model

import "time"

// RunStatus represents the current state of a recorded run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunKind distinguishes cleaning runs from model trainings.
type RunKind string

const (
	RunKindClean RunKind = "clean"
	RunKindTrain RunKind = "train"
)

// Run is one recorded pipeline invocation.
type Run struct {
	ID        string     `json:"id"`
	Kind      RunKind    `json:"kind"`
	DatasetID string     `json:"dataset_id"`
	Status    RunStatus  `json:"status"`
	Result    *RunResult `json:"result,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the outcome of a finished run.
type RunResult struct {
	Rows       int      `json:"rows"`
	OutputPath string   `json:"output_path,omitempty"`
	ReportPath string   `json:"report_path,omitempty"`
	ModelPath  string   `json:"model_path,omitempty"`
	MAE        *float64 `json:"mae,omitempty"`
	Error      string   `json:"error,omitempty"`
}
