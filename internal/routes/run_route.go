package routes

import (
	"net/http"

	"simflow/commons/routes"
	"simflow/internal/domain"
	"simflow/internal/dto"
	"simflow/internal/handler"
	"simflow/internal/logger"

	"github.com/gin-gonic/gin"
)

func InitRunRoutes(
	router *gin.Engine,
	runHandler *handler.RunHandler,
	log logger.Logger,
) {
	pipeline := routes.CreateAPIGroup(router, "v1").Group("/pipeline")

	deps := routes.RouteDependencies{
		Logger: log,
	}

	routes.RegisterRoute(
		pipeline,
		deps,
		routes.RouteOptions[domain.RunRequest, *domain.PipelineResult]{
			Path:        "/runs",
			Method:      http.MethodPost,
			ServiceFunc: runHandler.RunSyncService,
		},
	)

	routes.RegisterRoute(
		pipeline,
		deps,
		routes.RouteOptions[domain.RunRequest, dto.SubmitRunResponse]{
			Path:        "/runs/async",
			Method:      http.MethodPost,
			ServiceFunc: runHandler.SubmitRunService,
		},
	)

	routes.RegisterRoute(
		pipeline,
		deps,
		routes.RouteOptions[dto.EmptyRequest, dto.ListRunsResponse]{
			Path:        "/runs",
			Method:      http.MethodGet,
			ServiceFunc: runHandler.ListRunsService,
		},
	)

	routes.RegisterRoute(
		pipeline,
		deps,
		routes.RouteOptions[dto.EmptyRequest, dto.RunResponse]{
			Path:        "/runs/:id",
			Method:      http.MethodGet,
			ServiceFunc: runHandler.GetRunService,
		},
	)
}
