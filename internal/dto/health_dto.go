package dto

// HealthCheckResponse represents the coordinator health response
type HealthCheckResponse struct {
	Status        string `json:"status"`
	Service       string `json:"service"`
	Version       string `json:"version"`
	EngineBaseURL string `json:"engine_base_url,omitempty"`
}

// EngineHealthResponse is what the engine reports on /health.
type EngineHealthResponse struct {
	Status            string `json:"status"`
	Timestamp         string `json:"timestamp"`
	EnergyPlusVersion string `json:"energyplus_version"`
	ServerVersion     string `json:"server_version"`
}

// ServiceInfoResponse is the engine root document.
type ServiceInfoResponse struct {
	Name      string            `json:"name"`
	Version   string            `json:"version"`
	Status    string            `json:"status"`
	Endpoints map[string]string `json:"endpoints"`
}
