package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"simflow/commons/routes"
	"simflow/internal/dto"
	"simflow/internal/export"
	"simflow/internal/files"
	"simflow/internal/geometry"
	"simflow/internal/handler"
	"simflow/internal/logger"
	internalRoutes "simflow/internal/routes"
	"simflow/internal/simulation"
	"simflow/internal/template"
	"simflow/internal/weather"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWeather struct{}

func (stubWeather) Fetch(ctx context.Context, req weather.Request) (*weather.Result, error) {
	return &weather.Result{
		EPWPath:      "/outputs/weather_files/site.epw",
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		LocationName: req.LocationName,
		Header:       weather.Header{City: "Turin", DataSource: "PVGIS-TMY"},
		Coverage:     weather.CheckCoverage(req.Latitude, req.Longitude),
	}, nil
}

type stubDestination struct{}

func (stubDestination) Name() string { return export.DestinationSupabase }

func (stubDestination) Export(_ context.Context, src *export.Source, destinationFolder string) (*export.Result, error) {
	return &export.Result{
		Location:       "outputs/" + src.Name,
		FilesUploaded:  len(src.Files),
		SupabaseBucket: "outputs",
		SupabaseFolder: src.Name,
	}, nil
}

type engineFixture struct {
	router *gin.Engine
	root   string
	runDir string
}

func newEngineFixture(t *testing.T) engineFixture {
	t.Helper()
	log := logger.NewNopLogger()
	root := t.TempDir()

	runDir := filepath.Join(root, "simulations", "office_run")
	require.NoError(t, os.MkdirAll(runDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "eplusout.end"), []byte("EnergyPlus Completed Successfully-- 1 Warning; 0 Severe Errors\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "eplusout.err"), []byte("   ** Warning ** something minor\n"), 0o644))
	meter := "Date/Time,Electricity:Facility [J](Hourly)\n 01/01  01:00:00,3600000\n 01/01  02:00:00,3600000\n"
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "eplusMeter.csv"), []byte(meter), 0o644))

	catalog, err := template.LoadCatalog(filepath.Join("..", "template", "testdata", "templates"), log)
	require.NoError(t, err)
	sandbox, err := files.NewSandbox(root)
	require.NoError(t, err)
	runner := simulation.NewRunner(simulation.RunnerConfig{Executable: filepath.Join(root, "no-energyplus"), OutputDir: root}, log)

	r := routes.NewRouter(routes.RouterConfig{ServiceName: "engine"}, routes.RouteDependencies{Logger: log})
	internalRoutes.InitEngineRoutes(r, internalRoutes.EngineHandlers{
		Engine:     handler.NewEngineHandler(log, "0.1.0", "25.2.0"),
		Weather:    handler.NewWeatherHandler(log, stubWeather{}),
		Model:      handler.NewModelHandler(log, template.NewGenerator(catalog, filepath.Join(root, "models"), log)),
		Simulation: handler.NewSimulationHandler(log, runner, "25.2.0"),
		Files:      handler.NewFilesHandler(log, sandbox),
		Export:     handler.NewExportHandler(log, export.NewExporter(log, stubDestination{}), sandbox),
		Geometry:   handler.NewGeometryHandler(log, geometry.NewExporter(log), sandbox),
	}, log)

	return engineFixture{router: r, root: root, runDir: runDir}
}

func TestEngineInfoAndHealth(t *testing.T) {
	f := newEngineFixture(t)

	w := serve(f.router, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	var info dto.ServiceInfoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "EnergyPlus HTTP API", info.Name)
	assert.Contains(t, info.Endpoints, "simulation")

	w = serve(f.router, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	var health dto.EngineHealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "25.2.0", health.EnergyPlusVersion)

	w = serve(f.router, http.MethodGet, "/api/simulation/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var status dto.SimulationStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "ready", status.Status)
	assert.False(t, status.EnergyPlusAvailable)
}

func TestEngineWeather(t *testing.T) {
	f := newEngineFixture(t)

	w := serve(f.router, http.MethodPost, "/api/weather/fetch", `{"latitude":45.07,"longitude":7.69,"location_name":"Turin"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp dto.WeatherFetchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "/outputs/weather_files/site.epw", resp.EPWPath)
	assert.Equal(t, "Turin", resp.Metadata.City)
	assert.Equal(t, weather.APISource, resp.APISource)
	require.NotNil(t, resp.Coverage)

	w = serve(f.router, http.MethodPost, "/api/weather/fetch", `{"latitude":95,"longitude":7.69}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(f.router, http.MethodPost, "/api/weather/fetch", `{"longitude":7.69}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "latitude is required")

	w = serve(f.router, http.MethodGet, "/api/weather/check-coverage?latitude=45&longitude=7", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(f.router, http.MethodGet, "/api/weather/check-coverage?latitude=abc&longitude=7", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(f.router, http.MethodGet, "/api/weather/coverage", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestEngineTemplatesAndModels(t *testing.T) {
	f := newEngineFixture(t)

	w := serve(f.router, http.MethodGet, "/api/templates?building_type=manufacturing", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list dto.TemplateListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "Manufacturing_Warehouse", list.Templates[0].TemplateID)

	w = serve(f.router, http.MethodGet, "/api/templates/Missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	body := `{"project_name":"Plant","building_type":"manufacturing","location":{"latitude":45.07,"longitude":7.69},"geometry":{"orientation_deg":90}}`
	w = serve(f.router, http.MethodPost, "/api/models/generate", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var gen dto.ModelGenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &gen))
	assert.Equal(t, "Manufacturing_Warehouse", gen.TemplateUsed)
	assert.FileExists(t, gen.OutputPath)

	w = serve(f.router, http.MethodPost, "/api/models/generate", `{"location":{"latitude":1,"longitude":1}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(f.router, http.MethodPost, "/api/models/generate", `{"building_type":"office","template_id":"Nope","location":{"latitude":1,"longitude":1}}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEngineSimulationErrors(t *testing.T) {
	f := newEngineFixture(t)

	w := serve(f.router, http.MethodPost, "/api/simulation/run", `{"idf_path":"/nope.idf","weather_file":"/nope.epw","design_day":true}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(f.router, http.MethodPost, "/api/simulation/run", `{"weather_file":"/nope.epw"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEngineResults(t *testing.T) {
	f := newEngineFixture(t)

	w := serve(f.router, http.MethodGet, "/api/simulation/results/summary?output_directory="+f.runDir, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sum dto.ResultsSummaryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sum))
	assert.True(t, sum.SimulationCompleted)
	assert.Equal(t, 1, sum.WarningsCount)
	assert.InDelta(t, 2.0, sum.EnergySummary["Electricity:Facility [J](Hourly)"].TotalKWh, 1e-9)

	w = serve(f.router, http.MethodGet, "/api/simulation/results?include_timeseries=true&output_directory="+f.runDir, "")
	require.Equal(t, http.StatusOK, w.Code)
	var full dto.ResultsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &full))
	assert.Len(t, full.Timeseries, 2)

	w = serve(f.router, http.MethodGet, "/api/simulation/results/summary?output_directory="+filepath.Join(f.root, "absent"), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(f.router, http.MethodGet, "/api/simulation/results/summary", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEngineFiles(t *testing.T) {
	f := newEngineFixture(t)

	w := serve(f.router, http.MethodGet, "/api/files/list?folder_path="+f.runDir, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list dto.FileListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 3, list.FileCount)
	assert.Equal(t, "office_run", list.FolderName)

	w = serve(f.router, http.MethodGet, "/api/files/read?max_lines=1&file_path="+filepath.Join(f.runDir, "eplusMeter.csv"), "")
	require.Equal(t, http.StatusOK, w.Code)
	var read dto.FileReadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &read))
	assert.True(t, read.Truncated)
	assert.Equal(t, 3, read.TotalLines)

	w = serve(f.router, http.MethodGet, "/api/files/download?file_path="+filepath.Join(f.runDir, "eplusMeter.csv"), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "eplusMeter.csv")

	outside := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))
	w = serve(f.router, http.MethodGet, "/api/files/read?file_path="+outside, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(f.router, http.MethodGet, "/api/files/download?file_path="+filepath.Join(f.runDir, "absent.csv"), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEngineExport(t *testing.T) {
	f := newEngineFixture(t)

	w := serve(f.router, http.MethodPost, "/api/export/supabase", `{"source_folder":"`+f.runDir+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp dto.ExportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.FilesUploaded)
	assert.Equal(t, "office_run", resp.SupabaseFolder)

	w = serve(f.router, http.MethodPost, "/api/export/dropbox", `{"source_folder":"`+f.runDir+`"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(f.router, http.MethodPost, "/api/export/gdrive", `{"source_folder":"`+f.runDir+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "unconfigured destination")

	w = serve(f.router, http.MethodPost, "/api/export/supabase", `{"source_folder":"`+filepath.Join(f.root, "absent")+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(f.router, http.MethodPost, "/api/export/supabase", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "passwd"), []byte("root:x:0:0"), 0o644))
	w = serve(f.router, http.MethodPost, "/api/export/supabase", `{"source_folder":"`+outside+`"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(f.router, http.MethodPost, "/api/export/supabase", `{"source_folder":"`+filepath.Join(f.runDir, "..", "..", "..")+`"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

const boxIDF = `
  GlobalGeometryRules,UpperLeftCorner,Counterclockwise,World;

  Zone,Box Zone,0,0,0,0;

  BuildingSurface:Detailed,
    Box Floor,               !- Name
    Floor,                   !- Surface Type
    Slab,                    !- Construction Name
    Box Zone,                !- Zone Name
    ,                        !- Space Name
    Ground,,NoSun,NoWind,autocalculate,
    4,                       !- Number of Vertices
    0,0,0, 0,4,0, 4,4,0, 4,0,0;

  BuildingSurface:Detailed,Box South,Wall,Ext,Box Zone,,Outdoors,,SunExposed,WindExposed,autocalculate,4,
    0,0,3, 0,0,0, 4,0,0, 4,0,3;

  FenestrationSurface:Detailed,South Window,Window,Glass,Box South,,autocalculate,,1,4,
    1,0,2, 1,0,1, 3,0,1, 3,0,2;
`

func TestEngineGeometry(t *testing.T) {
	f := newEngineFixture(t)
	modelDir := filepath.Join(f.root, "models")
	require.NoError(t, os.MkdirAll(modelDir, 0o755))
	idfPath := filepath.Join(modelDir, "box.idf")
	require.NoError(t, os.WriteFile(idfPath, []byte(boxIDF), 0o644))

	w := serve(f.router, http.MethodGet, "/api/geometry/info?idf_path="+idfPath, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var info dto.GeometryInfoResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, 1, info.Zones)
	assert.Equal(t, 2, info.Surfaces)
	assert.Equal(t, 1, info.Fenestrations)
	assert.Equal(t, 12, info.TotalVertices)
	assert.Equal(t, []string{"Box Zone"}, info.ZoneNames)

	w = serve(f.router, http.MethodPost, "/api/geometry/export",
		`{"idf_path":"`+idfPath+`","output_dir":"`+filepath.Join(f.root, "geometry")+`","formats":["obj","glb"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp dto.GeometryExportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Len(t, resp.Errors, 1)
	require.Contains(t, resp.Exports, geometry.FormatOBJ)
	assert.FileExists(t, resp.Exports[geometry.FormatOBJ].Path)
	assert.FileExists(t, resp.Exports[geometry.FormatOBJ].MTLPath)
	assert.Equal(t, "box.obj", filepath.Base(resp.Exports[geometry.FormatOBJ].Path))

	w = serve(f.router, http.MethodPost, "/api/geometry/export", `{"idf_path":"`+idfPath+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp = dto.GeometryExportResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, modelDir, filepath.Dir(resp.Exports[geometry.FormatOBJ].Path))

	w = serve(f.router, http.MethodPost, "/api/geometry/export", `{"idf_path":"`+filepath.Join(modelDir, "absent.idf")+`"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = serve(f.router, http.MethodPost, "/api/geometry/export",
		`{"idf_path":"`+idfPath+`","output_dir":"`+t.TempDir()+`"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	outside := filepath.Join(t.TempDir(), "other.idf")
	require.NoError(t, os.WriteFile(outside, []byte(boxIDF), 0o644))
	w = serve(f.router, http.MethodGet, "/api/geometry/info?idf_path="+outside, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(f.router, http.MethodGet, "/api/geometry/info", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
