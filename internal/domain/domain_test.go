package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() *RunRequest {
	return &RunRequest{
		RunID:    "run-1",
		Location: Location{Latitude: 52.2053, Longitude: 0.1218, Name: "Cambridge_UK"},
		Building: BuildingSpec{BuildingType: "manufacturing"},
		Simulation: SimulationOptions{
			DesignDay: true,
		},
	}
}

func TestRunRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RunRequest)
		problem string
	}{
		{"valid", func(*RunRequest) {}, ""},
		{"bad run id", func(r *RunRequest) { r.RunID = "run/1" }, "run_id"},
		{"empty run id", func(r *RunRequest) { r.RunID = "" }, "run_id"},
		{"latitude", func(r *RunRequest) { r.Location.Latitude = 91 }, "latitude"},
		{"longitude", func(r *RunRequest) { r.Location.Longitude = -181 }, "longitude"},
		{"building type", func(r *RunRequest) { r.Building.BuildingType = "" }, "building_type"},
		{"no simulation mode", func(r *RunRequest) { r.Simulation.DesignDay = false }, "annual or design_day"},
		{"negative timeout", func(r *RunRequest) { r.Simulation.TimeoutSeconds = -1 }, "timeout_seconds"},
		{"one day timeout", func(r *RunRequest) { r.Simulation.TimeoutSeconds = MaxTimeoutSeconds }, ""},
		{"timeout over one day", func(r *RunRequest) { r.Simulation.TimeoutSeconds = 100000 }, "timeout_seconds"},
		{"timeout overflowing duration", func(r *RunRequest) { r.Simulation.TimeoutSeconds = 10_000_000_000 }, "timeout_seconds"},
		{"analysis type", func(r *RunRequest) { r.AnalysisType = "hydro" }, "analysis_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			req.Normalize()
			tt.mutate(req)

			err := req.Validate()
			if tt.problem == "" {
				require.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}

func TestRunRequestNormalize(t *testing.T) {
	req := &RunRequest{Building: BuildingSpec{BuildingType: " Data_Center "}}
	req.Normalize()

	assert.NotEmpty(t, req.RunID)
	assert.Equal(t, AnalysisBuilding, req.AnalysisType)
	assert.Equal(t, "data_center", req.Building.BuildingType)
	assert.Equal(t, "Site_0.00_0.00", req.SiteName())
}

func TestExportDestinationsOrder(t *testing.T) {
	opts := ExportOptions{ObjectStore: true, Supabase: true, GDrive: true}
	assert.True(t, opts.Requested())
	assert.Equal(t, []string{DestinationSupabase, DestinationGDrive, DestinationObjectStore}, opts.Destinations())

	assert.False(t, ExportOptions{}.Requested())
	assert.Empty(t, ExportOptions{}.Destinations())
}

func TestStageOrderAndKinds(t *testing.T) {
	stages := PipelineStages()
	require.Len(t, stages, 6)
	for i, s := range stages {
		assert.Equal(t, i, s.Index())
	}
	assert.Equal(t, -1, StageDone.Index())

	assert.Equal(t, KindWeatherUnavailable, StageWeatherFetch.ErrorKind())
	assert.Equal(t, KindSimulationFailed, StageSimulationRun.ErrorKind())
	assert.True(t, KindSimulationFailed.Terminal())
	assert.False(t, KindExportPartialFailure.Terminal())
	assert.False(t, KindExportFailed.Terminal())
}

func TestAsStageError(t *testing.T) {
	assert.Nil(t, AsStageError(StageModelGenerate, nil))

	plain := AsStageError(StageModelGenerate, errors.New("boom"))
	assert.Equal(t, KindModelGenerationFailed, plain.Kind)
	assert.Equal(t, "boom", plain.Message)

	wrapped := fmt.Errorf("call: %w", NewStageError(StageWeatherFetch, "no data").WithDetail("PVGIS 400"))
	se := AsStageError(StageWeatherFetch, wrapped)
	assert.Equal(t, KindWeatherUnavailable, se.Kind)
	assert.Equal(t, "PVGIS 400", se.Detail)

	timeout := NewTimeoutError(StageSimulationRun, 2*time.Second)
	assert.True(t, timeout.Timeout)
	assert.Contains(t, timeout.Error(), "timed out after 2s")
}

func TestRunStateSingleTerminalTransition(t *testing.T) {
	now := time.Unix(1700000000, 0)
	s := NewRunState("run-1", now)
	assert.Equal(t, StageInit, s.Current)
	assert.Equal(t, RunStatusPending, s.Status)

	s.Begin(StageHealthCheck, now)
	assert.Equal(t, RunStatusRunning, s.Status)

	require.True(t, s.Fail(now.Add(time.Second)))
	assert.False(t, s.Succeed(now.Add(2*time.Second)))
	assert.Equal(t, RunStatusFailed, s.Status)
	assert.Equal(t, StageDone, s.Current)
	assert.Equal(t, now.Add(time.Second), s.CompletedAt)

	s.Begin(StageWeatherFetch, now)
	assert.Equal(t, StageDone, s.Current)
}

func TestExportManifestOutcome(t *testing.T) {
	var m ExportManifest
	m.Add(DestinationOutcome{Destination: "supabase", Success: true, Location: "supabase://b/f", FilesUploaded: 3, TotalSizeBytes: 30})
	assert.Equal(t, ErrorKind(""), m.Outcome())

	m.Add(DestinationOutcome{Destination: "gdrive", Success: false, FilesFailed: 3})
	assert.Equal(t, KindExportPartialFailure, m.Outcome())
	assert.Equal(t, 3, m.FilesUploaded)
	assert.Equal(t, 3, m.FilesFailed)
	assert.Equal(t, "supabase://b/f", m.Ref())

	var none ExportManifest
	none.Add(DestinationOutcome{Destination: "gdrive", Error: "not configured"})
	assert.Equal(t, KindExportFailed, none.Outcome())
}

func TestRunRecordFromResult(t *testing.T) {
	req := validRequest()
	req.Normalize()
	started := time.UnixMilli(1700000000000)

	res := &PipelineResult{
		RunID:       req.RunID,
		Status:      RunStatusFailed,
		State:       StateDoneFailed,
		FailedStage: StageWeatherFetch,
		Error:       NewStageError(StageWeatherFetch, "no coverage"),
		StartedAt:   started,
		CompletedAt: started.Add(time.Second),
	}

	rec, err := NewRecordFromResult(req, res, 0)
	require.NoError(t, err)
	assert.Equal(t, RecordFailed, rec.Status)
	assert.Equal(t, StageWeatherFetch, rec.FailedStage)
	assert.Equal(t, started.UnixMilli(), rec.SubmittedAt)
	assert.True(t, rec.Terminal())

	decoded, err := rec.DecodeResult()
	require.NoError(t, err)
	assert.Equal(t, KindWeatherUnavailable, decoded.Error.Kind)

	queued := NewQueuedRecord(req, started)
	assert.False(t, queued.Terminal())
	empty, err := queued.DecodeResult()
	require.NoError(t, err)
	assert.Nil(t, empty)
}
