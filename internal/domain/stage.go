package domain

// Stage is one step of the simulation pipeline.
type Stage string

const (
	StageInit           Stage = "Init"
	StageHealthCheck    Stage = "HealthCheck"
	StageWeatherFetch   Stage = "WeatherFetch"
	StageModelGenerate  Stage = "ModelGenerate"
	StageSimulationRun  Stage = "SimulationRun"
	StageResultsCollect Stage = "ResultsCollect"
	StageExport         Stage = "ExportOptional"
	StageDone           Stage = "Done"
)

// PipelineStages lists the executable stages in the only order they may run.
func PipelineStages() []Stage {
	return []Stage{
		StageHealthCheck,
		StageWeatherFetch,
		StageModelGenerate,
		StageSimulationRun,
		StageResultsCollect,
		StageExport,
	}
}

// Index returns the position of s in PipelineStages, or -1.
func (s Stage) Index() int {
	for i, st := range PipelineStages() {
		if st == s {
			return i
		}
	}
	return -1
}

// ErrorKind returns the failure kind reported when s fails.
func (s Stage) ErrorKind() ErrorKind {
	switch s {
	case StageHealthCheck:
		return KindHealthCheckFailed
	case StageWeatherFetch:
		return KindWeatherUnavailable
	case StageModelGenerate:
		return KindModelGenerationFailed
	case StageSimulationRun:
		return KindSimulationFailed
	case StageResultsCollect:
		return KindResultsUnavailable
	case StageExport:
		return KindExportFailed
	default:
		return KindInternal
	}
}
