package dto

type GeometryExportRequest struct {
	IDFPath    string   `json:"idf_path" binding:"required"`
	OutputDir  string   `json:"output_dir,omitempty"`
	OutputName string   `json:"output_name,omitempty" binding:"omitempty,excludesall=/\\"`
	Formats    []string `json:"formats,omitempty"`
}

type GeometryFileExport struct {
	Path      string `json:"path"`
	MTLPath   string `json:"mtl_path,omitempty"`
	SizeBytes int64  `json:"file_size_bytes"`
}

type GeometryExportResponse struct {
	Success  bool                          `json:"success"`
	Exports  map[string]GeometryFileExport `json:"exports"`
	Errors   []string                      `json:"errors,omitempty"`
	Surfaces int                           `json:"surfaces"`
	Message  string                        `json:"message"`
}

type GeometryInfoResponse struct {
	IDFPath         string   `json:"idf_path"`
	Zones           int      `json:"zones"`
	Surfaces        int      `json:"surfaces"`
	Fenestrations   int      `json:"fenestrations"`
	ShadingSurfaces int      `json:"shading_surfaces"`
	TotalVertices   int      `json:"total_vertices"`
	ZoneNames       []string `json:"zone_names"`
}
