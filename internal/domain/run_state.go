package domain

import "time"

// RunStatus is the overall status of one coordinator invocation.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// RunState is owned by a single coordinator invocation and never shared.
type RunState struct {
	RunID       string        `json:"run_id"`
	Current     Stage         `json:"current_stage"`
	Status      RunStatus     `json:"status"`
	Results     []StageResult `json:"stages"`
	StartedAt   time.Time     `json:"started_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	CompletedAt time.Time     `json:"completed_at,omitempty"`
}

func NewRunState(runID string, now time.Time) *RunState {
	return &RunState{
		RunID:     runID,
		Current:   StageInit,
		Status:    RunStatusPending,
		Results:   make([]StageResult, 0, len(PipelineStages())),
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Begin moves the run onto stage.
func (s *RunState) Begin(stage Stage, now time.Time) {
	if s.Terminal() {
		return
	}
	s.Current = stage
	s.Status = RunStatusRunning
	s.UpdatedAt = now
}

// Record appends the outcome of the current stage.
func (s *RunState) Record(result StageResult, now time.Time) {
	s.Results = append(s.Results, result)
	s.UpdatedAt = now
}

// Succeed transitions to Done(Success). It returns false if the run was
// already terminal.
func (s *RunState) Succeed(now time.Time) bool {
	return s.finish(RunStatusSucceeded, now)
}

// Fail transitions to Done(Failed). It returns false if the run was already
// terminal.
func (s *RunState) Fail(now time.Time) bool {
	return s.finish(RunStatusFailed, now)
}

func (s *RunState) Terminal() bool {
	return s.Status == RunStatusSucceeded || s.Status == RunStatusFailed
}

func (s *RunState) finish(status RunStatus, now time.Time) bool {
	if s.Terminal() {
		return false
	}
	s.Status = status
	s.Current = StageDone
	s.UpdatedAt = now
	s.CompletedAt = now
	return true
}
