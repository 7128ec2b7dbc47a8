package domain

import "time"

type PipelineState string

const (
	StateDoneSuccess PipelineState = "Done(Success)"
	StateDoneFailed  PipelineState = "Done(Failed)"
)

// PipelineResult is the aggregate outcome of a run.
type PipelineResult struct {
	RunID       string        `json:"run_id"`
	Status      RunStatus     `json:"status"`
	State       PipelineState `json:"state"`
	FailedStage Stage         `json:"failed_stage,omitempty"`
	Error       *StageError   `json:"error,omitempty"`
	Stages      []StageResult `json:"stages"`
	Artifacts   Artifacts     `json:"artifacts"`

	Engine     *EngineStatus       `json:"engine,omitempty"`
	Weather    *WeatherArtifact    `json:"weather,omitempty"`
	Model      *ModelArtifact      `json:"model,omitempty"`
	Simulation *SimulationArtifact `json:"simulation,omitempty"`
	Results    *ResultsSummary     `json:"results,omitempty"`
	Export     *ExportManifest     `json:"export,omitempty"`

	ExportPartialFailure bool   `json:"export_partial_failure,omitempty"`
	ExportSkippedReason  string `json:"export_skipped_reason,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMS  int64     `json:"duration_ms"`
}

func (r *PipelineResult) Succeeded() bool {
	return r.Status == RunStatusSucceeded
}

// StageResult returns the recorded result of stage, if it executed.
func (r *PipelineResult) StageResult(stage Stage) (StageResult, bool) {
	for _, sr := range r.Stages {
		if sr.Stage == stage {
			return sr, true
		}
	}
	return StageResult{}, false
}
