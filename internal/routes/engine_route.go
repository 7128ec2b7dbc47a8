package routes

import (
	"net/http"

	"simflow/commons/routes"
	"simflow/internal/dto"
	"simflow/internal/handler"
	"simflow/internal/logger"

	"github.com/gin-gonic/gin"
)

// EngineHandlers groups every handler served by the engine.
type EngineHandlers struct {
	Engine     *handler.EngineHandler
	Weather    *handler.WeatherHandler
	Model      *handler.ModelHandler
	Simulation *handler.SimulationHandler
	Files      *handler.FilesHandler
	Export     *handler.ExportHandler
	Geometry   *handler.GeometryHandler
}

func InitEngineRoutes(
	router *gin.Engine,
	h EngineHandlers,
	log logger.Logger,
) {
	deps := routes.RouteDependencies{
		Logger: log,
	}
	api := routes.CreateAPIGroup(router, "")

	routes.RegisterRoute(router, deps, routes.RouteOptions[dto.EmptyRequest, dto.ServiceInfoResponse]{
		Path: "/", Method: http.MethodGet, ServiceFunc: h.Engine.InfoService,
	})
	routes.RegisterRoute(router, deps, routes.RouteOptions[dto.EmptyRequest, dto.EngineHealthResponse]{
		Path: "/health", Method: http.MethodGet, ServiceFunc: h.Engine.HealthService,
	})

	// weather
	routes.RegisterRoute(api, deps, routes.RouteOptions[dto.WeatherFetchRequest, dto.WeatherFetchResponse]{
		Path: "/weather/fetch", Method: http.MethodPost, ServiceFunc: h.Weather.FetchService,
	})
	routes.RegisterRoute(api, deps, routes.RouteOptions[dto.EmptyRequest, dto.CoverageResponse]{
		Path: "/weather/coverage", Method: http.MethodGet, ServiceFunc: h.Weather.CoverageService,
	})
	routes.RegisterRoute(api, deps, routes.RouteOptions[dto.EmptyRequest, dto.CoverageCheckResponse]{
		Path: "/weather/check-coverage", Method: http.MethodGet, ServiceFunc: h.Weather.CheckCoverageService,
	})

	// templates and models
	routes.RegisterRoute(api, deps, routes.RouteOptions[dto.EmptyRequest, dto.TemplateListResponse]{
		Path: "/templates", Method: http.MethodGet, ServiceFunc: h.Model.ListTemplatesService,
	})
	routes.RegisterRoute(api, deps, routes.RouteOptions[dto.EmptyRequest, dto.TemplateDetailResponse]{
		Path: "/templates/:id", Method: http.MethodGet, ServiceFunc: h.Model.GetTemplateService,
	})
	routes.RegisterRoute(api, deps, routes.RouteOptions[dto.ModelGenerateRequest, dto.ModelGenerateResponse]{
		Path: "/models/generate", Method: http.MethodPost, ServiceFunc: h.Model.GenerateService,
	})

	// simulation
	routes.RegisterRoute(api, deps, routes.RouteOptions[dto.SimulationRunRequest, dto.SimulationRunResponse]{
		Path: "/simulation/run", Method: http.MethodPost, ServiceFunc: h.Simulation.RunService,
	})
	routes.RegisterRoute(api, deps, routes.RouteOptions[dto.EmptyRequest, dto.SimulationStatusResponse]{
		Path: "/simulation/status", Method: http.MethodGet, ServiceFunc: h.Simulation.StatusService,
	})
	routes.RegisterRoute(api, deps, routes.RouteOptions[dto.EmptyRequest, dto.ResultsResponse]{
		Path: "/simulation/results", Method: http.MethodGet, ServiceFunc: h.Simulation.ResultsService,
	})
	routes.RegisterRoute(api, deps, routes.RouteOptions[dto.EmptyRequest, dto.ResultsSummaryResponse]{
		Path: "/simulation/results/summary", Method: http.MethodGet, ServiceFunc: h.Simulation.SummaryService,
	})

	// files
	routes.RegisterRoute(api, deps, routes.RouteOptions[dto.EmptyRequest, dto.FileListResponse]{
		Path: "/files/list", Method: http.MethodGet, ServiceFunc: h.Files.ListService,
	})
	routes.RegisterRoute(api, deps, routes.RouteOptions[dto.EmptyRequest, dto.FileReadResponse]{
		Path: "/files/read", Method: http.MethodGet, ServiceFunc: h.Files.ReadService,
	})
	routes.RegisterRawRoute(api, deps, http.MethodGet, "/files/download", h.Files.Download)

	routes.RegisterRoute(api, deps, routes.RouteOptions[dto.ExportRequest, dto.ExportResponse]{
		Path: "/export/:destination", Method: http.MethodPost, ServiceFunc: h.Export.ExportService,
	})

	// geometry
	routes.RegisterRoute(api, deps, routes.RouteOptions[dto.GeometryExportRequest, dto.GeometryExportResponse]{
		Path: "/geometry/export", Method: http.MethodPost, ServiceFunc: h.Geometry.ExportService,
	})
	routes.RegisterRoute(api, deps, routes.RouteOptions[dto.EmptyRequest, dto.GeometryInfoResponse]{
		Path: "/geometry/info", Method: http.MethodGet, ServiceFunc: h.Geometry.InfoService,
	})
}
