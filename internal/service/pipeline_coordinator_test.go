package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	adapter "simflow/internal/adapter/iface"
	"simflow/internal/domain"
	"simflow/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine implements every adapter with call counters and injectable failures.
type fakeEngine struct {
	healthCalls, weatherCalls, modelCalls, simCalls, resultsCalls, exportCalls atomic.Int32

	failAt     domain.Stage
	failErr    error
	simSleep   time.Duration
	exportFunc func(req adapter.ExportRequest) (*domain.DestinationOutcome, error)
	mu         sync.Mutex
	lastSim    adapter.SimulationRequest
	lastExport []adapter.ExportRequest
}

func (f *fakeEngine) adapters() adapter.Adapters {
	return adapter.Adapters{Health: f, Weather: f, Model: f, Simulation: f, Results: f, Export: f}
}

func (f *fakeEngine) err(stage domain.Stage) error {
	if f.failAt != stage {
		return nil
	}
	if f.failErr != nil {
		return f.failErr
	}
	return errors.New(string(stage) + " broke")
}

func (f *fakeEngine) CheckHealth(ctx context.Context) (*domain.EngineStatus, error) {
	f.healthCalls.Add(1)
	if err := f.err(domain.StageHealthCheck); err != nil {
		return nil, err
	}
	return &domain.EngineStatus{Status: "healthy", EnergyPlusVersion: "25.2.0", ServerVersion: "0.1.0"}, nil
}

func (f *fakeEngine) FetchWeather(ctx context.Context, req adapter.WeatherRequest) (*domain.WeatherArtifact, error) {
	f.weatherCalls.Add(1)
	if err := f.err(domain.StageWeatherFetch); err != nil {
		return nil, err
	}
	return &domain.WeatherArtifact{EPWPath: "outputs/weather_files/" + req.Name + ".epw", DataSource: "PVGIS-SARAH3"}, nil
}

func (f *fakeEngine) GenerateModel(ctx context.Context, req adapter.ModelRequest) (*domain.ModelArtifact, error) {
	f.modelCalls.Add(1)
	if err := f.err(domain.StageModelGenerate); err != nil {
		return nil, err
	}
	return &domain.ModelArtifact{ModelPath: "outputs/models/" + req.RunID + ".idf", TemplateUsed: "Manufacturing_Warehouse"}, nil
}

func (f *fakeEngine) RunSimulation(ctx context.Context, req adapter.SimulationRequest) (*domain.SimulationArtifact, error) {
	f.simCalls.Add(1)
	f.mu.Lock()
	f.lastSim = req
	f.mu.Unlock()
	if f.simSleep > 0 {
		// ignores ctx on purpose
		time.Sleep(f.simSleep)
	}
	if err := f.err(domain.StageSimulationRun); err != nil {
		return nil, err
	}
	return &domain.SimulationArtifact{OutputDirectory: "outputs/simulations/run", Files: []string{"eplusout.err", "eplustbl.htm"}}, nil
}

func (f *fakeEngine) CollectResults(ctx context.Context, dir string) (*domain.ResultsSummary, error) {
	f.resultsCalls.Add(1)
	if err := f.err(domain.StageResultsCollect); err != nil {
		return nil, err
	}
	return &domain.ResultsSummary{
		OutputDirectory:     dir,
		SimulationCompleted: true,
		WarningsCount:       3,
		EnergySummary: map[string]domain.EnergyTotal{
			"Electricity:Facility [J](Hourly)": {TotalJ: 3.6e9, TotalKWh: 1000, TotalGJ: 3.6},
		},
		KeyMetrics: map[string]float64{"PUE": 1.4},
	}, nil
}

func (f *fakeEngine) Export(ctx context.Context, req adapter.ExportRequest) (*domain.DestinationOutcome, error) {
	f.exportCalls.Add(1)
	f.mu.Lock()
	f.lastExport = append(f.lastExport, req)
	f.mu.Unlock()
	if f.exportFunc != nil {
		return f.exportFunc(req)
	}
	return &domain.DestinationOutcome{
		Destination:    req.Destination,
		Success:        true,
		Location:       req.Destination + "://bucket/run",
		FilesUploaded:  2,
		TotalSizeBytes: 2048,
	}, nil
}

func (f *fakeEngine) simRequest() adapter.SimulationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSim
}

func (f *fakeEngine) exportRequests() []adapter.ExportRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.lastExport)
}

func testConfig() CoordinatorConfig {
	return CoordinatorConfig{
		HealthTimeout:    time.Second,
		WeatherTimeout:   time.Second,
		ModelTimeout:     time.Second,
		DesignDayTimeout: time.Second,
		AnnualTimeout:    2 * time.Second,
		ResultsTimeout:   time.Second,
		ExportTimeout:    time.Second,
	}
}

func fixedClock() func() time.Time {
	t := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func newTestCoordinator(f *fakeEngine, cfg CoordinatorConfig) PipelineCoordinator {
	log := logger.NewNopLogger()
	return NewPipelineCoordinator(f.adapters(), NewExportGate(log), cfg, log, WithClock(fixedClock()))
}

func cambridgeRequest() *domain.RunRequest {
	racks, watts := 25, 2000.0
	req := &domain.RunRequest{
		RunID:       "cambridge-1",
		ProjectName: "Cambridge Plant",
		Location:    domain.Location{Latitude: 52.2053, Longitude: 0.1218, Name: "Cambridge_UK"},
		Building: domain.BuildingSpec{
			BuildingType: "manufacturing",
			DataCenter:   &domain.DataCenterSpec{RackCount: &racks, WattsPerRack: &watts},
		},
		Simulation: domain.SimulationOptions{DesignDay: true},
		Export:     domain.ExportOptions{Supabase: true},
	}
	req.Normalize()
	return req
}

func TestCoordinatorAllStagesSucceed(t *testing.T) {
	f := &fakeEngine{}
	req := cambridgeRequest()
	req.Export = domain.ExportOptions{}

	res := newTestCoordinator(f, testConfig()).Run(context.Background(), req)

	require.True(t, res.Succeeded())
	assert.Equal(t, domain.StateDoneSuccess, res.State)
	assert.Nil(t, res.Error)
	assert.Empty(t, res.FailedStage)

	require.Len(t, res.Stages, 5)
	for i, sr := range res.Stages {
		assert.Equal(t, domain.PipelineStages()[i], sr.Stage)
		assert.True(t, sr.Success)
		assert.NotEmpty(t, sr.Artifact, "stage %s has no artifact", sr.Stage)
	}
	assert.Equal(t, int32(0), f.exportCalls.Load())
	assert.Nil(t, res.Export)
	assert.Equal(t, "outputs/simulations/run", res.Artifacts.OutputDirectory)
}

func TestCoordinatorStopsAtFailingStage(t *testing.T) {
	stages := []domain.Stage{
		domain.StageHealthCheck,
		domain.StageWeatherFetch,
		domain.StageModelGenerate,
		domain.StageSimulationRun,
		domain.StageResultsCollect,
	}

	for k, stage := range stages {
		t.Run(string(stage), func(t *testing.T) {
			f := &fakeEngine{failAt: stage}
			res := newTestCoordinator(f, testConfig()).Run(context.Background(), cambridgeRequest())

			require.False(t, res.Succeeded())
			assert.Equal(t, domain.StateDoneFailed, res.State)
			assert.Equal(t, stage, res.FailedStage)
			require.NotNil(t, res.Error)
			assert.Equal(t, stage.ErrorKind(), res.Error.Kind)
			require.Len(t, res.Stages, k+1)
			assert.False(t, res.Stages[k].Success)

			counts := []int32{
				f.healthCalls.Load(),
				f.weatherCalls.Load(),
				f.modelCalls.Load(),
				f.simCalls.Load(),
				f.resultsCalls.Load(),
			}
			for i, n := range counts {
				if i <= k {
					assert.Equal(t, int32(1), n, "stage %d should run once", i)
				} else {
					assert.Equal(t, int32(0), n, "stage %d should not run", i)
				}
			}
			assert.Equal(t, int32(0), f.exportCalls.Load())
		})
	}
}

func TestCoordinatorKeepsAdapterStageError(t *testing.T) {
	f := &fakeEngine{
		failAt:  domain.StageWeatherFetch,
		failErr: domain.NewStageError(domain.StageWeatherFetch, "PVGIS returned 400").WithDetail("location over sea"),
	}
	res := newTestCoordinator(f, testConfig()).Run(context.Background(), cambridgeRequest())

	require.NotNil(t, res.Error)
	assert.Equal(t, domain.KindWeatherUnavailable, res.Error.Kind)
	assert.Equal(t, "location over sea", res.Error.Detail)
}

func TestCoordinatorExportFailuresNeverDowngrade(t *testing.T) {
	tests := []struct {
		name     string
		export   func(adapter.ExportRequest) (*domain.DestinationOutcome, error)
		wantKind domain.ErrorKind
	}{
		{
			name: "partial",
			export: func(req adapter.ExportRequest) (*domain.DestinationOutcome, error) {
				if req.Destination == domain.DestinationGDrive {
					return nil, errors.New("drive quota exceeded")
				}
				return &domain.DestinationOutcome{Destination: req.Destination, Success: true, FilesUploaded: 4, Location: "supabase://b/f"}, nil
			},
			wantKind: domain.KindExportPartialFailure,
		},
		{
			name: "per file failures",
			export: func(req adapter.ExportRequest) (*domain.DestinationOutcome, error) {
				return &domain.DestinationOutcome{Destination: req.Destination, Success: false, FilesUploaded: 3, FilesFailed: 1}, nil
			},
			wantKind: domain.KindExportPartialFailure,
		},
		{
			name: "nothing uploaded",
			export: func(req adapter.ExportRequest) (*domain.DestinationOutcome, error) {
				return nil, errors.New("destination not configured")
			},
			wantKind: domain.KindExportFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeEngine{exportFunc: tt.export}
			req := cambridgeRequest()
			req.Export.GDrive = true

			res := newTestCoordinator(f, testConfig()).Run(context.Background(), req)

			require.True(t, res.Succeeded())
			assert.Equal(t, domain.StateDoneSuccess, res.State)
			assert.Nil(t, res.Error)
			assert.True(t, res.ExportPartialFailure)

			sr, ok := res.StageResult(domain.StageExport)
			require.True(t, ok)
			assert.False(t, sr.Success)
			require.NotNil(t, sr.Error)
			assert.Equal(t, tt.wantKind, sr.Error.Kind)
			assert.Equal(t, int32(2), f.exportCalls.Load())
		})
	}
}

func TestCoordinatorExportOrderAndFolders(t *testing.T) {
	f := &fakeEngine{}
	req := cambridgeRequest()
	req.Export = domain.ExportOptions{
		ObjectStore:       true,
		GDrive:            true,
		Supabase:          true,
		DestinationFolder: "custom",
	}
	cfg := testConfig()
	cfg.DefaultGDriveFolder = "https://drive.google.com/drive/folders/abc"

	res := newTestCoordinator(f, cfg).Run(context.Background(), req)
	require.True(t, res.Succeeded())

	exports := f.exportRequests()
	require.Len(t, exports, 3)
	assert.Equal(t, domain.DestinationSupabase, exports[0].Destination)
	assert.Equal(t, domain.DestinationGDrive, exports[1].Destination)
	assert.Equal(t, domain.DestinationObjectStore, exports[2].Destination)
	assert.Equal(t, "custom", exports[0].DestinationFolder)
	assert.Equal(t, "custom", exports[1].DestinationFolder)

	assert.Equal(t, 6, res.Export.FilesUploaded)
	assert.False(t, res.ExportPartialFailure)
	assert.Equal(t, "supabase://bucket/run,gdrive://bucket/run,objectstore://bucket/run", res.Artifacts.ExportManifest)
}

func TestCoordinatorExportGate(t *testing.T) {
	t.Run("false condition skips export", func(t *testing.T) {
		f := &fakeEngine{}
		req := cambridgeRequest()
		req.Export.When = "errors_count == 0 && pue > 2.0"

		res := newTestCoordinator(f, testConfig()).Run(context.Background(), req)

		require.True(t, res.Succeeded())
		assert.Equal(t, int32(0), f.exportCalls.Load())
		assert.Contains(t, res.ExportSkippedReason, "evaluated to false")
		_, ran := res.StageResult(domain.StageExport)
		assert.False(t, ran)
	})

	t.Run("true condition exports", func(t *testing.T) {
		f := &fakeEngine{}
		req := cambridgeRequest()
		req.Export.When = `simulation_completed && energy_kwh["Electricity:Facility [J](Hourly)"] > 500`

		res := newTestCoordinator(f, testConfig()).Run(context.Background(), req)

		require.True(t, res.Succeeded())
		assert.Equal(t, int32(1), f.exportCalls.Load())
		assert.Empty(t, res.ExportSkippedReason)
	})
}

func TestCoordinatorIdempotent(t *testing.T) {
	f := &fakeEngine{}
	c := newTestCoordinator(f, testConfig())

	first := c.Run(context.Background(), cambridgeRequest())
	second := c.Run(context.Background(), cambridgeRequest())

	assert.Equal(t, first, second)
	assert.Equal(t, int32(2), f.simCalls.Load())
}

func TestCoordinatorSimulationTimeout(t *testing.T) {
	f := &fakeEngine{simSleep: 2 * time.Second}
	cfg := testConfig()
	cfg.DesignDayTimeout = 50 * time.Millisecond
	cfg.Grace = 10 * time.Millisecond

	log := logger.NewNopLogger()
	c := NewPipelineCoordinator(f.adapters(), NewExportGate(log), cfg, log)

	start := time.Now()
	res := c.Run(context.Background(), cambridgeRequest())
	elapsed := time.Since(start)

	assert.Less(t, elapsed, time.Second)
	require.False(t, res.Succeeded())
	assert.Equal(t, domain.StageSimulationRun, res.FailedStage)
	assert.Equal(t, domain.KindSimulationFailed, res.Error.Kind)
	assert.True(t, res.Error.Timeout)
	assert.Equal(t, int32(0), f.resultsCalls.Load())
	assert.Equal(t, 50*time.Millisecond, f.simRequest().Timeout)
}

func TestCoordinatorSimulationTimeoutOverride(t *testing.T) {
	f := &fakeEngine{}
	req := cambridgeRequest()
	req.Simulation.Annual = true

	newTestCoordinator(f, testConfig()).Run(context.Background(), req)
	assert.Equal(t, 2*time.Second, f.simRequest().Timeout)
	assert.True(t, f.simRequest().ReadVars)
	assert.True(t, f.simRequest().ExpandObjects)

	req.Simulation.TimeoutSeconds = 7
	newTestCoordinator(f, testConfig()).Run(context.Background(), req)
	assert.Equal(t, 7*time.Second, f.simRequest().Timeout)
}

func TestCoordinatorMalformedResponse(t *testing.T) {
	f := &fakeEngine{}
	bad := &emptyWeather{fakeEngine: f}
	adapters := f.adapters()
	adapters.Weather = bad

	log := logger.NewNopLogger()
	res := NewPipelineCoordinator(adapters, NewExportGate(log), testConfig(), log).Run(context.Background(), cambridgeRequest())

	require.False(t, res.Succeeded())
	assert.Equal(t, domain.KindWeatherUnavailable, res.Error.Kind)
	assert.Equal(t, "malformed adapter response", res.Error.Message)
	assert.Equal(t, int32(0), f.modelCalls.Load())
}

type emptyWeather struct {
	*fakeEngine
}

func (e *emptyWeather) FetchWeather(ctx context.Context, req adapter.WeatherRequest) (*domain.WeatherArtifact, error) {
	return &domain.WeatherArtifact{}, nil
}

func TestCambridgeScenario(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := &fakeEngine{}
		res := newTestCoordinator(f, testConfig()).Run(context.Background(), cambridgeRequest())

		require.True(t, res.Succeeded())
		assert.Equal(t, domain.StateDoneSuccess, res.State)
		assert.NotEmpty(t, res.Artifacts.WeatherFile)
		assert.NotEmpty(t, res.Artifacts.ModelFile)
		assert.NotEmpty(t, res.Artifacts.OutputDirectory)
		assert.NotEmpty(t, res.Artifacts.ExportManifest)
		require.NotNil(t, res.Export)
		assert.GreaterOrEqual(t, res.Export.FilesUploaded, 1)
	})

	t.Run("weather unavailable", func(t *testing.T) {
		f := &fakeEngine{failAt: domain.StageWeatherFetch}
		res := newTestCoordinator(f, testConfig()).Run(context.Background(), cambridgeRequest())

		require.False(t, res.Succeeded())
		assert.Equal(t, domain.StageWeatherFetch, res.FailedStage)
		assert.Equal(t, domain.KindWeatherUnavailable, res.Error.Kind)
		assert.Equal(t, int32(0), f.modelCalls.Load())
		assert.Equal(t, int32(0), f.simCalls.Load())
		assert.Equal(t, int32(0), f.exportCalls.Load())
	})
}

func TestRunWithTimeoutRecoversPanic(t *testing.T) {
	_, timedOut, err := runWithTimeout(context.Background(), time.Second, func(context.Context) (int, error) {
		panic("boom")
	})
	assert.False(t, timedOut)
	assert.ErrorContains(t, err, "adapter panic: boom")
}
