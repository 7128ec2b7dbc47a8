package adapter

import (
	"context"
	"time"

	"simflow/internal/domain"
)

// HealthChecker confirms the engine is reachable before a run starts.
type HealthChecker interface {
	CheckHealth(ctx context.Context) (*domain.EngineStatus, error)
}

type WeatherRequest struct {
	Latitude  float64
	Longitude float64
	Name      string
}

// WeatherAdapter resolves a weather file for a location.
type WeatherAdapter interface {
	FetchWeather(ctx context.Context, req WeatherRequest) (*domain.WeatherArtifact, error)
}

type ModelRequest struct {
	RunID       string
	ProjectName string
	ProjectID   string
	Location    domain.Location
	Building    domain.BuildingSpec
	Simulation  domain.SimulationOptions
}

// ModelGeneratorAdapter turns a building spec into a simulation model file.
type ModelGeneratorAdapter interface {
	GenerateModel(ctx context.Context, req ModelRequest) (*domain.ModelArtifact, error)
}

type SimulationRequest struct {
	ModelPath     string
	WeatherPath   string
	Annual        bool
	DesignDay     bool
	ReadVars      bool
	ExpandObjects bool
	// Timeout is forwarded to the engine, which enforces it on the process.
	Timeout time.Duration
}

// SimulationRunnerAdapter executes a model against a weather file.
type SimulationRunnerAdapter interface {
	RunSimulation(ctx context.Context, req SimulationRequest) (*domain.SimulationArtifact, error)
}

// ResultsCollector summarizes a finished simulation's output directory.
type ResultsCollector interface {
	CollectResults(ctx context.Context, outputDirectory string) (*domain.ResultsSummary, error)
}

type ExportRequest struct {
	OutputDirectory   string
	Destination       string
	DestinationFolder string
}

// ExportAdapter copies an output directory to a single destination. Per-file
// failures are reported in the outcome, not as an error.
type ExportAdapter interface {
	Export(ctx context.Context, req ExportRequest) (*domain.DestinationOutcome, error)
}

// Adapters is the full set of stage boundaries a coordinator drives.
type Adapters struct {
	Health     HealthChecker
	Weather    WeatherAdapter
	Model      ModelGeneratorAdapter
	Simulation SimulationRunnerAdapter
	Results    ResultsCollector
	Export     ExportAdapter
}
