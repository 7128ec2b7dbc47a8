package domain

import "time"

// StageResult is the outcome of one executed stage.
type StageResult struct {
	Stage      Stage       `json:"stage"`
	Success    bool        `json:"success"`
	Artifact   string      `json:"artifact,omitempty"`
	Error      *StageError `json:"error,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	DurationMS int64       `json:"duration_ms"`
}

// Artifacts collects the references produced along the pipeline.
type Artifacts struct {
	WeatherFile     string `json:"weather_file,omitempty"`
	ModelFile       string `json:"model_file,omitempty"`
	OutputDirectory string `json:"output_directory,omitempty"`
	ExportManifest  string `json:"export_manifest,omitempty"`
}

type EngineStatus struct {
	Status            string `json:"status"`
	EnergyPlusVersion string `json:"energyplus_version,omitempty"`
	ServerVersion     string `json:"server_version,omitempty"`
}

type WeatherArtifact struct {
	EPWPath       string   `json:"epw_path"`
	LocationName  string   `json:"location_name,omitempty"`
	DataSource    string   `json:"data_source,omitempty"`
	CoverageNotes []string `json:"coverage_notes,omitempty"`
	APISource     string   `json:"api_source,omitempty"`
}

type ModelArtifact struct {
	ModelPath     string   `json:"model_path"`
	TemplateUsed  string   `json:"template_used,omitempty"`
	Modifications []string `json:"modifications_applied,omitempty"`
}

type SimulationArtifact struct {
	OutputDirectory string   `json:"output_directory"`
	DurationSeconds float64  `json:"duration_seconds"`
	Files           []string `json:"files,omitempty"`
}

type EnergyTotal struct {
	TotalJ   float64 `json:"total_J"`
	TotalKWh float64 `json:"total_kWh"`
	TotalGJ  float64 `json:"total_GJ"`
}

// ResultsSummary is what ResultsCollect extracts from a finished simulation.
type ResultsSummary struct {
	OutputDirectory     string                 `json:"output_directory"`
	SimulationCompleted bool                   `json:"simulation_completed"`
	WarningsCount       int                    `json:"warnings_count"`
	ErrorsCount         int                    `json:"errors_count"`
	EnergySummary       map[string]EnergyTotal `json:"energy_summary,omitempty"`
	KeyMetrics          map[string]float64     `json:"key_metrics,omitempty"`
}

// PUE returns the power usage effectiveness when it could be computed.
func (r *ResultsSummary) PUE() (float64, bool) {
	if r == nil || r.KeyMetrics == nil {
		return 0, false
	}
	v, ok := r.KeyMetrics["PUE"]
	return v, ok
}

type FileOutcome struct {
	Name        string `json:"name"`
	Success     bool   `json:"success"`
	SizeBytes   int64  `json:"size_bytes"`
	ContentType string `json:"content_type,omitempty"`
	Error       string `json:"error,omitempty"`
}

// DestinationOutcome is the export result for one destination.
type DestinationOutcome struct {
	Destination    string        `json:"destination"`
	Success        bool          `json:"success"`
	Location       string        `json:"location,omitempty"`
	FilesUploaded  int           `json:"files_uploaded"`
	FilesFailed    int           `json:"files_failed"`
	TotalSizeBytes int64         `json:"total_size_bytes"`
	Files          []FileOutcome `json:"files,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// ExportManifest aggregates every destination of one export stage.
type ExportManifest struct {
	Destinations   []DestinationOutcome `json:"destinations"`
	FilesUploaded  int                  `json:"files_uploaded"`
	FilesFailed    int                  `json:"files_failed"`
	TotalSizeBytes int64                `json:"total_size_bytes"`
}

// Add folds one destination outcome into the totals.
func (m *ExportManifest) Add(o DestinationOutcome) {
	m.Destinations = append(m.Destinations, o)
	m.FilesUploaded += o.FilesUploaded
	m.FilesFailed += o.FilesFailed
	m.TotalSizeBytes += o.TotalSizeBytes
}

// Ref lists the destination locations, comma separated.
func (m *ExportManifest) Ref() string {
	ref := ""
	for _, d := range m.Destinations {
		if d.Location == "" {
			continue
		}
		if ref != "" {
			ref += ","
		}
		ref += d.Location
	}
	return ref
}

// Outcome classifies the manifest: nil when everything uploaded, otherwise
// ExportPartialFailure or ExportFailed.
func (m *ExportManifest) Outcome() ErrorKind {
	failed := m.FilesFailed > 0
	for _, d := range m.Destinations {
		if !d.Success {
			failed = true
		}
	}
	switch {
	case !failed:
		return ""
	case m.FilesUploaded > 0:
		return KindExportPartialFailure
	default:
		return KindExportFailed
	}
}
