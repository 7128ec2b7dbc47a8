package domain

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

type AnalysisType string

const (
	AnalysisBuilding   AnalysisType = "building"
	AnalysisWastewater AnalysisType = "wastewater"
)

// Export destinations, in the order the coordinator runs them.
const (
	DestinationSupabase    = "supabase"
	DestinationGDrive      = "gdrive"
	DestinationObjectStore = "objectstore"
)

// MaxTimeoutSeconds caps simulation.timeout_seconds at one day, the same
// bound the engine enforces.
const MaxTimeoutSeconds = 86400

var runIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// RunRequest describes one pipeline invocation. It is not modified after
// acceptance; the coordinator only reads it.
type RunRequest struct {
	RunID        string            `json:"run_id"`
	AnalysisType AnalysisType      `json:"analysis_type"`
	ProjectName  string            `json:"project_name,omitempty"`
	ProjectID    string            `json:"project_id,omitempty"`
	Location     Location          `json:"location"`
	Building     BuildingSpec      `json:"building"`
	Simulation   SimulationOptions `json:"simulation"`
	Export       ExportOptions     `json:"export"`
}

type Location struct {
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	Name       string   `json:"name,omitempty"`
	ElevationM *float64 `json:"elevation_m,omitempty"`
}

type BuildingSpec struct {
	BuildingType  string             `json:"building_type"`
	TemplateID    string             `json:"template_id,omitempty"`
	Geometry      *Geometry          `json:"geometry,omitempty"`
	DataCenter    *DataCenterSpec    `json:"data_center,omitempty"`
	Manufacturing *ManufacturingSpec `json:"manufacturing,omitempty"`
	Setpoints     *Setpoints         `json:"setpoints,omitempty"`
}

type Geometry struct {
	FloorAreaM2    *float64 `json:"floor_area_m2,omitempty"`
	LengthM        *float64 `json:"length_m,omitempty"`
	WidthM         *float64 `json:"width_m,omitempty"`
	HeightM        *float64 `json:"height_m,omitempty"`
	NumFloors      *int     `json:"num_floors,omitempty"`
	OrientationDeg *float64 `json:"orientation_deg,omitempty"`
}

type DataCenterSpec struct {
	ITLoadKW     *float64 `json:"it_load_kw,omitempty"`
	TargetPUE    *float64 `json:"target_pue,omitempty"`
	TierLevel    *int     `json:"tier_level,omitempty"`
	CoolingType  string   `json:"cooling_type,omitempty"`
	RackCount    *int     `json:"rack_count,omitempty"`
	WattsPerRack *float64 `json:"watts_per_rack,omitempty"`
}

type ManufacturingSpec struct {
	ProcessType         string   `json:"process_type,omitempty"`
	ProcessLoadKW       *float64 `json:"process_load_kw,omitempty"`
	ProcessHeatKW       *float64 `json:"process_heat_kw,omitempty"`
	ProcessHeatFraction *float64 `json:"process_heat_fraction,omitempty"`
	VentilationACH      *float64 `json:"ventilation_ach,omitempty"`
	OccupancyCount      *int     `json:"occupancy_count,omitempty"`
}

type Setpoints struct {
	CoolingSetpointC *float64 `json:"cooling_setpoint_c,omitempty"`
	HeatingSetpointC *float64 `json:"heating_setpoint_c,omitempty"`
}

type SimulationOptions struct {
	Annual        bool  `json:"annual"`
	DesignDay     bool  `json:"design_day"`
	ReadVars      *bool `json:"readvars,omitempty"`
	ExpandObjects *bool `json:"expandobjects,omitempty"`
	// TimeoutSeconds overrides the configured simulation timeout when > 0.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

type ExportOptions struct {
	Supabase          bool   `json:"supabase"`
	GDrive            bool   `json:"gdrive"`
	ObjectStore       bool   `json:"objectstore"`
	DestinationFolder string `json:"destination_folder,omitempty"`
	GDriveFolder      string `json:"gdrive_folder,omitempty"`
	// When is an optional boolean expression over the results summary.
	When string `json:"when,omitempty"`
}

// Requested reports whether any export destination is selected.
func (e ExportOptions) Requested() bool {
	return e.Supabase || e.GDrive || e.ObjectStore
}

// Destinations returns the selected destinations in execution order.
func (e ExportOptions) Destinations() []string {
	out := make([]string, 0, 3)
	if e.Supabase {
		out = append(out, DestinationSupabase)
	}
	if e.GDrive {
		out = append(out, DestinationGDrive)
	}
	if e.ObjectStore {
		out = append(out, DestinationObjectStore)
	}
	return out
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Normalize fills defaults in place: a run id, the analysis type and the
// lowercase building type. It is called once, before acceptance.
func (r *RunRequest) Normalize() {
	if r.RunID == "" {
		r.RunID = NewRunID()
	}
	if r.AnalysisType == "" {
		r.AnalysisType = AnalysisBuilding
	}
	r.Building.BuildingType = strings.ToLower(strings.TrimSpace(r.Building.BuildingType))
}

// Validate checks the fields the coordinator depends on. Building parameter
// ranges are left to the model generation stage.
func (r *RunRequest) Validate() error {
	var problems []string

	if !runIDPattern.MatchString(r.RunID) {
		problems = append(problems, "run_id must be 1-128 characters of [A-Za-z0-9_-]")
	}
	switch r.AnalysisType {
	case AnalysisBuilding, AnalysisWastewater:
	default:
		problems = append(problems, fmt.Sprintf("unknown analysis_type %q", r.AnalysisType))
	}
	if !inRange(r.Location.Latitude, -90, 90) {
		problems = append(problems, "location.latitude must be between -90 and 90")
	}
	if !inRange(r.Location.Longitude, -180, 180) {
		problems = append(problems, "location.longitude must be between -180 and 180")
	}
	if r.Building.BuildingType == "" {
		problems = append(problems, "building.building_type is required")
	}
	if !r.Simulation.Annual && !r.Simulation.DesignDay {
		problems = append(problems, "simulation requires annual or design_day")
	}
	if r.Simulation.TimeoutSeconds < 0 || r.Simulation.TimeoutSeconds > MaxTimeoutSeconds {
		problems = append(problems, fmt.Sprintf("simulation.timeout_seconds must be between 0 and %d", MaxTimeoutSeconds))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// SiteName is the location name used for weather and model files.
func (r *RunRequest) SiteName() string {
	if r.Location.Name != "" {
		return r.Location.Name
	}
	return fmt.Sprintf("Site_%.2f_%.2f", r.Location.Latitude, r.Location.Longitude)
}

func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}
