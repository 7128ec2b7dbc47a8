package dto

// WeatherFetchRequest asks the engine for a TMY weather file.
type WeatherFetchRequest struct {
	Latitude     *float64 `json:"latitude" binding:"required,gte=-90,lte=90"`
	Longitude    *float64 `json:"longitude" binding:"required,gte=-180,lte=180"`
	LocationName string   `json:"location_name,omitempty"`
	StartYear    int      `json:"start_year,omitempty" binding:"omitempty,gte=1990,lte=2100"`
	EndYear      int      `json:"end_year,omitempty" binding:"omitempty,gte=1990,lte=2100,gtefield=StartYear"`
}

type WeatherLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation"`
	Name      string  `json:"name"`
}

// EPWMetadata is parsed from the EPW header lines.
type EPWMetadata struct {
	City        string   `json:"city,omitempty"`
	State       string   `json:"state,omitempty"`
	Country     string   `json:"country,omitempty"`
	DataSource  string   `json:"data_source,omitempty"`
	WMOID       string   `json:"wmo_id,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Timezone    *float64 `json:"timezone,omitempty"`
	Elevation   *float64 `json:"elevation,omitempty"`
	Comments1   string   `json:"comments1,omitempty"`
	Comments2   string   `json:"comments2,omitempty"`
	DataPeriods string   `json:"data_periods,omitempty"`
}

type WeatherFetchResponse struct {
	Success   bool                   `json:"success"`
	EPWPath   string                 `json:"epw_path"`
	Location  WeatherLocation        `json:"location"`
	Metadata  EPWMetadata            `json:"metadata"`
	Coverage  *CoverageCheckResponse `json:"coverage,omitempty"`
	APISource string                 `json:"api_source"`
	Timestamp string                 `json:"timestamp"`
}

type CoverageResponse struct {
	Success         bool              `json:"success"`
	CoverageRegions map[string]string `json:"coverage_regions"`
	APISource       string            `json:"api_source"`
}

type CoverageCheckResponse struct {
	Success             bool     `json:"success"`
	Latitude            float64  `json:"latitude"`
	Longitude           float64  `json:"longitude"`
	AvailableDatabases  []string `json:"available_databases"`
	RecommendedDatabase string   `json:"recommended_database"`
	Notes               []string `json:"notes"`
}
