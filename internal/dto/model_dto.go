package dto

import "simflow/internal/domain"

// Parameter ranges mirror what the templates can represent. Out of range
// values are rejected with a 400 before any file is written.

type LocationDTO struct {
	Latitude   *float64 `json:"latitude" binding:"required,gte=-90,lte=90"`
	Longitude  *float64 `json:"longitude" binding:"required,gte=-180,lte=180"`
	SiteName   string   `json:"site_name,omitempty"`
	ElevationM *float64 `json:"elevation_m,omitempty"`
}

type GeometryDTO struct {
	FloorAreaM2    *float64 `json:"floor_area_m2,omitempty" binding:"omitempty,gte=50,lte=100000"`
	LengthM        *float64 `json:"length_m,omitempty" binding:"omitempty,gte=5,lte=500"`
	WidthM         *float64 `json:"width_m,omitempty" binding:"omitempty,gte=5,lte=500"`
	HeightM        *float64 `json:"height_m,omitempty" binding:"omitempty,gte=2.5,lte=50"`
	NumFloors      *int     `json:"num_floors,omitempty" binding:"omitempty,gte=1,lte=50"`
	OrientationDeg *float64 `json:"orientation_deg,omitempty" binding:"omitempty,gte=0,lte=360"`
}

type DataCenterDTO struct {
	ITLoadKW     *float64 `json:"it_load_kw,omitempty" binding:"omitempty,gte=1,lte=100000"`
	TargetPUE    *float64 `json:"target_pue,omitempty" binding:"omitempty,gte=1,lte=3"`
	TierLevel    *int     `json:"tier_level,omitempty" binding:"omitempty,gte=1,lte=4"`
	CoolingType  string   `json:"cooling_type,omitempty"`
	RackCount    *int     `json:"rack_count,omitempty" binding:"omitempty,gte=1,lte=10000"`
	WattsPerRack *float64 `json:"watts_per_rack,omitempty" binding:"omitempty,gte=100,lte=50000"`
}

type ManufacturingDTO struct {
	ProcessType         string   `json:"process_type,omitempty"`
	ProcessLoadKW       *float64 `json:"process_load_kw,omitempty" binding:"omitempty,gte=0,lte=100000"`
	ProcessHeatKW       *float64 `json:"process_heat_kw,omitempty" binding:"omitempty,gte=0,lte=100000"`
	ProcessHeatFraction *float64 `json:"process_heat_fraction,omitempty" binding:"omitempty,gte=0,lte=1"`
	VentilationACH      *float64 `json:"ventilation_ach,omitempty" binding:"omitempty,gte=0.5,lte=50"`
	OccupancyCount      *int     `json:"occupancy_count,omitempty" binding:"omitempty,gte=0,lte=10000"`
}

type SetpointsDTO struct {
	CoolingSetpointC *float64 `json:"cooling_setpoint_c,omitempty" binding:"omitempty,gte=15,lte=35"`
	HeatingSetpointC *float64 `json:"heating_setpoint_c,omitempty" binding:"omitempty,gte=10,lte=25"`
}

type SimulationOptionsDTO struct {
	RunAnnual     bool `json:"run_annual"`
	RunDesignDays bool `json:"run_design_days"`
}

// ModelGenerateRequest is the building specification sent to the engine.
type ModelGenerateRequest struct {
	ProjectID         string                `json:"project_id,omitempty"`
	ProjectName       string                `json:"project_name,omitempty"`
	Location          LocationDTO           `json:"location" binding:"required"`
	BuildingType      string                `json:"building_type" binding:"required"`
	Geometry          *GeometryDTO          `json:"geometry,omitempty"`
	DataCenter        *DataCenterDTO        `json:"data_center,omitempty"`
	Manufacturing     *ManufacturingDTO     `json:"manufacturing,omitempty"`
	Setpoints         *SetpointsDTO         `json:"setpoints,omitempty"`
	SimulationOptions *SimulationOptionsDTO `json:"simulation_options,omitempty"`
	TemplateID        string                `json:"template_id,omitempty"`
	OutputFilename    string                `json:"output_filename,omitempty" binding:"omitempty,max=200"`
}

type ModelGenerateResponse struct {
	Success              bool     `json:"success"`
	OutputPath           string   `json:"output_path"`
	TemplateUsed         string   `json:"template_used"`
	ModificationsApplied []string `json:"modifications_applied"`
	Timestamp            string   `json:"timestamp"`
}

type TemplateSummary struct {
	TemplateID   string `json:"template_id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	BuildingType string `json:"building_type"`
	HVACSystem   string `json:"hvac_system"`
	Category     string `json:"category"`
}

type TemplateListResponse struct {
	Success   bool              `json:"success"`
	Count     int               `json:"count"`
	Templates []TemplateSummary `json:"templates"`
}

type TemplateDetailResponse struct {
	Success    bool           `json:"success"`
	TemplateID string         `json:"template_id"`
	Metadata   map[string]any `json:"metadata"`
}

// NewModelGenerateRequest converts the coordinator's view of a run into the
// engine request body.
func NewModelGenerateRequest(projectID, projectName string, loc domain.Location, b domain.BuildingSpec, sim domain.SimulationOptions) ModelGenerateRequest {
	lat, lon := loc.Latitude, loc.Longitude
	req := ModelGenerateRequest{
		ProjectID:    projectID,
		ProjectName:  projectName,
		BuildingType: b.BuildingType,
		TemplateID:   b.TemplateID,
		Location: LocationDTO{
			Latitude:   &lat,
			Longitude:  &lon,
			SiteName:   loc.Name,
			ElevationM: loc.ElevationM,
		},
		SimulationOptions: &SimulationOptionsDTO{
			RunAnnual:     sim.Annual,
			RunDesignDays: sim.DesignDay,
		},
	}
	if g := b.Geometry; g != nil {
		req.Geometry = &GeometryDTO{
			FloorAreaM2:    g.FloorAreaM2,
			LengthM:        g.LengthM,
			WidthM:         g.WidthM,
			HeightM:        g.HeightM,
			NumFloors:      g.NumFloors,
			OrientationDeg: g.OrientationDeg,
		}
	}
	if dc := b.DataCenter; dc != nil {
		req.DataCenter = &DataCenterDTO{
			ITLoadKW:     dc.ITLoadKW,
			TargetPUE:    dc.TargetPUE,
			TierLevel:    dc.TierLevel,
			CoolingType:  dc.CoolingType,
			RackCount:    dc.RackCount,
			WattsPerRack: dc.WattsPerRack,
		}
	}
	if m := b.Manufacturing; m != nil {
		req.Manufacturing = &ManufacturingDTO{
			ProcessType:         m.ProcessType,
			ProcessLoadKW:       m.ProcessLoadKW,
			ProcessHeatKW:       m.ProcessHeatKW,
			ProcessHeatFraction: m.ProcessHeatFraction,
			VentilationACH:      m.VentilationACH,
			OccupancyCount:      m.OccupancyCount,
		}
	}
	if s := b.Setpoints; s != nil {
		req.Setpoints = &SetpointsDTO{
			CoolingSetpointC: s.CoolingSetpointC,
			HeatingSetpointC: s.HeatingSetpointC,
		}
	}
	return req
}

// BuildingSpec converts the request back into the domain shape the template
// engine works on.
func (r *ModelGenerateRequest) BuildingSpec() (domain.Location, domain.BuildingSpec) {
	loc := domain.Location{Name: r.Location.SiteName, ElevationM: r.Location.ElevationM}
	if r.Location.Latitude != nil {
		loc.Latitude = *r.Location.Latitude
	}
	if r.Location.Longitude != nil {
		loc.Longitude = *r.Location.Longitude
	}

	b := domain.BuildingSpec{BuildingType: r.BuildingType, TemplateID: r.TemplateID}
	if g := r.Geometry; g != nil {
		b.Geometry = &domain.Geometry{
			FloorAreaM2:    g.FloorAreaM2,
			LengthM:        g.LengthM,
			WidthM:         g.WidthM,
			HeightM:        g.HeightM,
			NumFloors:      g.NumFloors,
			OrientationDeg: g.OrientationDeg,
		}
	}
	if dc := r.DataCenter; dc != nil {
		b.DataCenter = &domain.DataCenterSpec{
			ITLoadKW:     dc.ITLoadKW,
			TargetPUE:    dc.TargetPUE,
			TierLevel:    dc.TierLevel,
			CoolingType:  dc.CoolingType,
			RackCount:    dc.RackCount,
			WattsPerRack: dc.WattsPerRack,
		}
	}
	if m := r.Manufacturing; m != nil {
		b.Manufacturing = &domain.ManufacturingSpec{
			ProcessType:         m.ProcessType,
			ProcessLoadKW:       m.ProcessLoadKW,
			ProcessHeatKW:       m.ProcessHeatKW,
			ProcessHeatFraction: m.ProcessHeatFraction,
			VentilationACH:      m.VentilationACH,
			OccupancyCount:      m.OccupancyCount,
		}
	}
	if s := r.Setpoints; s != nil {
		b.Setpoints = &domain.Setpoints{
			CoolingSetpointC: s.CoolingSetpointC,
			HeatingSetpointC: s.HeatingSetpointC,
		}
	}
	return loc, b
}
