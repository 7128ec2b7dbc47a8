package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// RecordStatus is the ledger status, indexed by status_index.
type RecordStatus string

const (
	RecordQueued    RecordStatus = "QUEUED"
	RecordSucceeded RecordStatus = "SUCCEEDED"
	RecordFailed    RecordStatus = "FAILED"
)

// RunRecord is a ledger entry for one run.
type RunRecord struct {
	RunID        string       `json:"run_id" dynamodbav:"run_id"`
	Status       RecordStatus `json:"status" dynamodbav:"status"`
	AnalysisType AnalysisType `json:"analysis_type" dynamodbav:"analysis_type"`
	BuildingType string       `json:"building_type" dynamodbav:"building_type"`
	FailedStage  Stage        `json:"failed_stage,omitempty" dynamodbav:"failed_stage,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty" dynamodbav:"error_message,omitempty"`
	// Result is the JSON encoded PipelineResult of a finished run.
	Result      string `json:"result,omitempty" dynamodbav:"result,omitempty"`
	SubmittedAt int64  `json:"submitted_at" dynamodbav:"submitted_at"`
	CompletedAt int64  `json:"completed_at,omitempty" dynamodbav:"completed_at,omitempty"`
	UpdatedAt   int64  `json:"updated_at" dynamodbav:"updated_at"`
}

// NewQueuedRecord creates the ledger entry for an accepted async run.
func NewQueuedRecord(req *RunRequest, now time.Time) *RunRecord {
	ms := now.UnixMilli()
	return &RunRecord{
		RunID:        req.RunID,
		Status:       RecordQueued,
		AnalysisType: req.AnalysisType,
		BuildingType: req.Building.BuildingType,
		SubmittedAt:  ms,
		UpdatedAt:    ms,
	}
}

// NewRecordFromResult builds the terminal ledger entry for res. submittedAt
// is kept from an earlier QUEUED record when there is one.
func NewRecordFromResult(req *RunRequest, res *PipelineResult, submittedAt int64) (*RunRecord, error) {
	encoded, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pipeline result: %w", err)
	}

	completed := res.CompletedAt.UnixMilli()
	if submittedAt == 0 {
		submittedAt = res.StartedAt.UnixMilli()
	}

	rec := &RunRecord{
		RunID:        res.RunID,
		Status:       RecordSucceeded,
		AnalysisType: req.AnalysisType,
		BuildingType: req.Building.BuildingType,
		Result:       string(encoded),
		SubmittedAt:  submittedAt,
		CompletedAt:  completed,
		UpdatedAt:    completed,
	}
	if !res.Succeeded() {
		rec.Status = RecordFailed
		rec.FailedStage = res.FailedStage
		if res.Error != nil {
			rec.ErrorMessage = res.Error.Error()
		}
	}
	return rec, nil
}

// DecodeResult returns the stored PipelineResult, or nil for queued runs.
func (r *RunRecord) DecodeResult() (*PipelineResult, error) {
	if r.Result == "" {
		return nil, nil
	}
	var res PipelineResult
	if err := json.Unmarshal([]byte(r.Result), &res); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline result for run %s: %w", r.RunID, err)
	}
	return &res, nil
}

func (r *RunRecord) Terminal() bool {
	return r.Status == RecordSucceeded || r.Status == RecordFailed
}
