package dto

import (
	"net/http"

	"simflow/internal/domain"
)

// SubmitRunResponse is returned for an accepted asynchronous run.
type SubmitRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

func (SubmitRunResponse) HTTPStatus() int { return http.StatusAccepted }

// RunResponse represents a single ledger record
type RunResponse struct {
	RunID        string                 `json:"run_id"`
	Status       string                 `json:"status"`
	AnalysisType string                 `json:"analysis_type"`
	BuildingType string                 `json:"building_type"`
	FailedStage  string                 `json:"failed_stage,omitempty"`
	Error        string                 `json:"error,omitempty"`
	Result       *domain.PipelineResult `json:"result,omitempty"`
	SubmittedAt  int64                  `json:"submitted_at"`
	CompletedAt  int64                  `json:"completed_at,omitempty"`
	UpdatedAt    int64                  `json:"updated_at"`
}

// ListRunsResponse represents response for listing runs
type ListRunsResponse struct {
	Runs []RunResponse `json:"runs"`
	PaginationResponse
}
