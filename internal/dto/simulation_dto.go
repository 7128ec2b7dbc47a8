package dto

import "simflow/internal/domain"

type SimulationRunRequest struct {
	IDFPath         string `json:"idf_path" binding:"required"`
	WeatherFile     string `json:"weather_file" binding:"required"`
	OutputDirectory string `json:"output_directory,omitempty"`
	Annual          bool   `json:"annual"`
	DesignDay       bool   `json:"design_day"`
	ReadVars        *bool  `json:"readvars,omitempty"`
	ExpandObjects   *bool  `json:"expandobjects,omitempty"`
	// TimeoutSeconds of 0 selects the engine default for the run kind.
	TimeoutSeconds int `json:"timeout_seconds,omitempty" binding:"gte=0,lte=86400"`
}

type SimulationRunResponse struct {
	Success         bool     `json:"success"`
	IDFPath         string   `json:"idf_path"`
	WeatherFile     string   `json:"weather_file"`
	OutputDirectory string   `json:"output_directory"`
	DurationSeconds float64  `json:"duration_seconds"`
	ReturnCode      int      `json:"return_code"`
	Files           []string `json:"files"`
}

type SimulationStatusResponse struct {
	Status              string `json:"status"`
	EnergyPlusAvailable bool   `json:"energyplus_available"`
	EnergyPlusVersion   string `json:"energyplus_version"`
	ExecutablePath      string `json:"executable_path"`
	Timestamp           string `json:"timestamp"`
}

// ResultsSummaryResponse is the condensed view the coordinator collects.
type ResultsSummaryResponse struct {
	Success             bool                          `json:"success"`
	OutputDirectory     string                        `json:"output_directory"`
	SimulationCompleted bool                          `json:"simulation_completed"`
	WarningsCount       int                           `json:"warnings_count"`
	ErrorsCount         int                           `json:"errors_count"`
	EnergySummary       map[string]domain.EnergyTotal `json:"energy_summary"`
	KeyMetrics          map[string]float64            `json:"key_metrics"`
	ParseError          string                        `json:"parse_error,omitempty"`
}

type MeterTotal struct {
	Total float64 `json:"total"`
	Unit  string  `json:"unit"`
}

type ResultsDetail struct {
	CompletionStatus    string                `json:"completion_status,omitempty"`
	Meters              []string              `json:"meters,omitempty"`
	EnergyTotals        map[string]MeterTotal `json:"energy_totals,omitempty"`
	HTMLReportAvailable bool                  `json:"html_report_available"`
	HasEnergySummary    bool                  `json:"has_energy_summary"`
}

// ResultsResponse is the full results view of an output directory.
type ResultsResponse struct {
	Success         bool                `json:"success"`
	OutputDirectory string              `json:"output_directory"`
	Files           map[string][]string `json:"files"`
	Summary         ResultsDetail       `json:"summary"`
	Errors          []string            `json:"errors"`
	Warnings        []string            `json:"warnings"`
	Timeseries      []map[string]string `json:"timeseries,omitempty"`
}

func (r *ResultsSummaryResponse) ToDomain() *domain.ResultsSummary {
	return &domain.ResultsSummary{
		OutputDirectory:     r.OutputDirectory,
		SimulationCompleted: r.SimulationCompleted,
		WarningsCount:       r.WarningsCount,
		ErrorsCount:         r.ErrorsCount,
		EnergySummary:       r.EnergySummary,
		KeyMetrics:          r.KeyMetrics,
	}
}
